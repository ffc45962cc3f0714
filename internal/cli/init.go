package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// configFile holds the structure init writes to config.yaml.
type configFile struct {
	Backend     string    `yaml:"backend"`
	DataDir     string    `yaml:"data_dir,omitempty"`
	Indent      int       `yaml:"indent"`
	LockTimeout string    `yaml:"lock_timeout"`
	Log         logConfig `yaml:"log"`
}

type logConfig struct {
	Provider string `yaml:"provider"`
	File     string `yaml:"file,omitempty"`
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize shelf storage",
		Long: "Create the configuration and data directories and write config.yaml\n" +
			"if it does not exist. Flags given to init are recorded in the new file.",
		Args: cobraArgs(cobra.NoArgs),
		RunE: a.runInit,
	}
}

func (a *app) runInit(cmd *cobra.Command, args []string) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return systemError{fmt.Errorf("resolve config dir: %w", err)}
	}
	if err := ensureConfigDir(configDir); err != nil {
		return systemError{fmt.Errorf("create config directory: %w", err)}
	}
	if err := a.writeConfigIfMissing(filepath.Join(configDir, configFileExt)); err != nil {
		return systemError{fmt.Errorf("write config: %w", err)}
	}

	sh, err := a.openShelf()
	if err != nil {
		return err
	}
	defer a.closeShelf()

	cfg := sh.Config()
	fmt.Fprintf(cmd.OutOrStdout(), "Shelf initialized at %s (%s backend)\n", cfg.DataDir, cfg.Backend)
	return nil
}

// writeConfigIfMissing creates config.yaml from the current flags and the
// defaults. An existing file is left untouched.
func (a *app) writeConfigIfMissing(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	cfg := configFile{
		Backend:     a.v.GetString(cfgKeyBackend),
		Indent:      types.DefaultIndent,
		LockTimeout: types.DefaultLockTimeout.String(),
		Log:         logConfig{Provider: a.v.GetString(cfgKeyLogProvider)},
	}
	if cfg.Backend == "" {
		cfg.Backend = types.DefaultBackend
	}
	if cfg.Log.Provider == "" {
		cfg.Log.Provider = "none"
	}
	if a.dataDir != "" {
		dataDir, err := filepath.Abs(a.dataDir)
		if err != nil {
			return err
		}
		cfg.DataDir = dataDir
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
