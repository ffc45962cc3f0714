// Package cli implements the shelf command-line interface: record CRUD over
// any registered entity, plus init, schema inspection and an interactive
// shell.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/shelf"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Output formats for --output.
const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// app holds the state of one command tree: global flag values and the
// configuration and shelf opened for the running command.
type app struct {
	configDir string
	dataDir   string
	output    string

	v     *viper.Viper
	shelf *shelf.Shelf
	log   logging.Logger

	// inShell is set for command trees run from the interactive shell.
	inShell bool
}

// NewRootCmd creates the top-level "shelf" command with global flags and all
// subcommands registered. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shelf",
		Short: "A schema-driven flat-file record store",
		Long: "Shelf keeps collections of records (projects, tasks, conversations, snippets,\n" +
			"and any entity described by a schema file) in plain JSON, JSONL or SQLite files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case outputJSON, outputYAML:
				return nil
			default:
				return usageErrorf("unknown output format %q (valid: json, yaml)", a.output)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/shelf)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: $(CWD)/.shelf-db)")
	pf.StringVarP(&a.output, "output", "o", outputJSON, "record output format: json or yaml")
	pf.String(cfgKeyBackend, "", "storage backend: json, jsonl or sqlite (overrides config.yaml)")
	pf.String("log", "", "log provider: none, jellog or std (overrides config.yaml)")
	bindFlag(a.v, cfgKeyBackend, pf.Lookup(cfgKeyBackend))
	bindFlag(a.v, cfgKeyLogProvider, pf.Lookup("log"))

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(
		a.versionCmd(),
		a.initCmd(),
		a.entitiesCmd(),
		a.schemaCmd(),
		a.createCmd(),
		a.getCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.listCmd(),
		a.compactCmd(),
	)
	if !a.inShell {
		root.AddCommand(a.shellCmd())
	}
	return root
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	// BindPFlag only fails for a nil flag.
	if err := v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

// Execute runs the root command with os.Args and returns the process exit
// code.
func Execute() int {
	return run(NewRootCmd(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(root *cobra.Command, args []string, stdout, stderr io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "shelf:", describe(err))
		return exitCode(err)
	}
	return exitSuccess
}

// usageError marks bad invocations: wrong arguments, unknown flags,
// malformed field=value pairs.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageErrorf(format string, a ...any) error {
	return usageError{fmt.Errorf(format, a...)}
}

// systemError marks failures of the environment rather than the request,
// such as an unreadable config file.
type systemError struct{ err error }

func (e systemError) Error() string { return e.err.Error() }
func (e systemError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit code: storage, lock and
// environment failures are system errors; everything else is the caller's.
func exitCode(err error) int {
	var sysErr systemError
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrStorageCorruption),
		errors.Is(err, types.ErrStorageWrite),
		errors.Is(err, types.ErrLockTimeout),
		errors.Is(err, types.ErrIDExhausted),
		errors.As(err, &sysErr):
		return exitSysError
	default:
		return exitUserError
	}
}

// describe renders err for the terminal. Storage failures always say that
// the data file was left as it was.
func describe(err error) string {
	msg := err.Error()
	if errors.Is(err, types.ErrStorageCorruption) || errors.Is(err, types.ErrLockTimeout) ||
		errors.Is(err, types.ErrIDExhausted) {
		msg += " (no change was made)"
	}
	return msg
}

// cobraArgs wraps a cobra positional-argument validator so its failures are
// reported as usage errors.
func cobraArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
