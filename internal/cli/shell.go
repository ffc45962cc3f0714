package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mesh-intelligence/shelf/internal/paths"
)

const (
	shellPrompt = "shelf> "
	historyName = "history"
)

// shellCommands are offered by tab completion; entityCommands take an entity
// name as their first argument.
var (
	shellCommands  = []string{"compact", "create", "delete", "entities", "exit", "get", "help", "list", "quit", "schema", "update", "version"}
	entityCommands = map[string]bool{"compact": true, "create": true, "delete": true, "get": true, "list": true, "schema": true, "update": true}
)

// lineReader is the part of liner.State the shell loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// shell runs command lines against fresh command trees that inherit the
// global flags the shell itself was started with.
type shell struct {
	globals  []string
	entities []string
	out      io.Writer
	errOut   io.Writer
}

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run shelf commands interactively",
		Long: "Read shelf commands line by line, with history and tab completion.\n" +
			"Lines are split like a POSIX shell; type 'exit' or Ctrl-D to leave.",
		Args: cobraArgs(cobra.NoArgs),
		RunE: a.runShell,
	}
}

func (a *app) runShell(cmd *cobra.Command, args []string) error {
	sh, err := a.openShelf()
	if err != nil {
		return err
	}
	entities := sh.Entities()
	a.closeShelf()

	s := &shell{
		globals:  globalArgs(cmd.Root().PersistentFlags()),
		entities: entities,
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	history := ""
	if configDir, err := paths.ResolveConfigDir(a.configDir); err == nil {
		history = filepath.Join(configDir, historyName)
	}
	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if history == "" {
			return
		}
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(s.out, "Type 'help' for commands, 'exit' to leave.")
	return s.loop(line)
}

// globalArgs renders the persistent flags that were set explicitly so each
// shell line sees the same configuration.
func globalArgs(fs *pflag.FlagSet) []string {
	var args []string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			args = append(args, "--"+f.Name+"="+f.Value.String())
		}
	})
	return args
}

// loop prompts until end of input, an abort or an exit command.
func (s *shell) loop(in lineReader) error {
	for {
		text, err := in.Prompt(shellPrompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		in.AppendHistory(text)

		if s.exec(text) {
			return nil
		}
	}
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(text string) bool {
	words, err := shellquote.Split(text)
	if err != nil {
		fmt.Fprintln(s.errOut, "shelf:", err)
		return false
	}
	if len(words) == 0 {
		return false
	}

	switch words[0] {
	case "exit", "quit":
		return true
	case "?":
		words[0] = "help"
	case "shell":
		fmt.Fprintln(s.errOut, "shelf: already in the shell")
		return false
	}

	sub := newApp()
	sub.inShell = true
	run(sub.rootCmd(), append(append([]string(nil), s.globals...), words...), s.out, s.errOut)
	return false
}

// complete offers command names for the first word and entity names for the
// second.
func (s *shell) complete(line string) []string {
	fields := strings.Fields(line)
	endsInSpace := strings.HasSuffix(line, " ")

	switch {
	case len(fields) == 0:
		return shellCommands
	case len(fields) == 1 && !endsInSpace:
		return withPrefix(shellCommands, fields[0], "")
	case entityCommands[fields[0]] && (len(fields) == 1 || len(fields) == 2 && !endsInSpace):
		prefix := ""
		if len(fields) == 2 {
			prefix = fields[1]
		}
		return withPrefix(s.entities, prefix, fields[0]+" ")
	default:
		return nil
	}
}

func withPrefix(candidates []string, prefix, lead string) []string {
	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, prefix) {
			out = append(out, lead+c)
		}
	}
	return out
}
