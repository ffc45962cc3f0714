//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import "github.com/magefile/mage/sh"

const binLint = "golangci-lint"

// lintPackages are the shelf packages; the magefiles are linted by mage
// itself when it compiles them.
var lintPackages = []string{"./cmd/...", "./internal/...", "./pkg/..."}

// Lint runs go vet, then golangci-lint, over the shelf packages.
func Lint() error {
	if err := sh.RunV(binGo, append([]string{"vet"}, lintPackages...)...); err != nil {
		return err
	}
	return sh.RunV(binLint, append([]string{"run"}, lintPackages...)...)
}
