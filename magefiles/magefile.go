//go:build mage

// Package main provides build targets for the shelf project using Mage.
//
// Usage:
//
//	mage build        Compile the shelf binary to bin/
//	mage install      Install shelf to GOPATH/bin
//	mage clean        Remove build artifacts
//	mage test:all     Run every test with -v
//	mage test:unit    Run tests with -short -race
//	mage test:cover   Write coverage.out and print per-function coverage
//	mage lint         Run go vet and golangci-lint
//	mage stats        Print Go lines of code and documentation word counts
package main
