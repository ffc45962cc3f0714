package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/shelf/internal/logging"
	"github.com/mesh-intelligence/shelf/internal/paths"
	"github.com/mesh-intelligence/shelf/internal/shelf"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyIndent      = "indent"
	cfgKeyLockTimeout = "lock_timeout"
	cfgKeySchemaDir   = "schema_dir"
	cfgKeyLogProvider = "log.provider"
	cfgKeyLogFile     = "log.file"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# Shelf configuration

# Storage backend: json, jsonl or sqlite
backend: json

# Spaces of indentation in .json files (0 writes compact JSON)
indent: 2

# How long to wait for another process holding a collection (0 fails at once)
lock_timeout: 2s

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

# Extra entity schemas (*.json, *.jsonc), relative to this directory
# schema_dir: schemas

log:
  # none, jellog or std
  provider: none
  # file:
`

// loadConfig reads config.yaml from configDir into v. It creates the config
// directory and a default config.yaml on first run. A missing config.yaml is
// not an error.
func loadConfig(v *viper.Viper, configDir string) error {
	if err := ensureConfigDir(configDir); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return fmt.Errorf("ensure default config: %w", err)
	}

	v.SetDefault(cfgKeyBackend, types.DefaultBackend)
	v.SetDefault(cfgKeyIndent, types.DefaultIndent)
	v.SetDefault(cfgKeyLockTimeout, types.DefaultLockTimeout)
	v.SetDefault(cfgKeyLogProvider, logging.NoLog.String())
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile writes defaultConfigYAML if configDir has no
// config.yaml yet.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// settings is everything a command needs after flags and config.yaml have
// been resolved.
type settings struct {
	configDir   string
	config      types.Config
	logProvider logging.Provider
	logFile     string
}

// resolve loads config.yaml and applies the directory precedence chains.
func (a *app) resolve() (settings, error) {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return settings{}, systemError{fmt.Errorf("resolve config dir: %w", err)}
	}
	if err := loadConfig(a.v, configDir); err != nil {
		return settings{}, systemError{err}
	}

	dataDir, err := paths.ResolveDataDir(a.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return settings{}, systemError{fmt.Errorf("resolve data dir: %w", err)}
	}
	provider, err := logging.ParseProvider(a.v.GetString(cfgKeyLogProvider))
	if err != nil {
		return settings{}, usageError{err}
	}

	// An explicit 0 in config.yaml means "do not wait"; Config treats a zero
	// timeout as unset.
	lockTimeout := a.v.GetDuration(cfgKeyLockTimeout)
	if lockTimeout == 0 && a.v.InConfig(cfgKeyLockTimeout) {
		lockTimeout = types.LockNoWait
	}

	return settings{
		configDir: configDir,
		config: types.Config{
			Backend:     a.v.GetString(cfgKeyBackend),
			DataDir:     dataDir,
			SchemaDir:   paths.ResolveSchemaDir(configDir, a.v.GetString(cfgKeySchemaDir)),
			Indent:      a.v.GetInt(cfgKeyIndent),
			LockTimeout: lockTimeout,
		},
		logProvider: provider,
		logFile:     a.v.GetString(cfgKeyLogFile),
	}, nil
}

// openShelf resolves settings and attaches a shelf for the running command.
// Callers release it with closeShelf.
func (a *app) openShelf() (*shelf.Shelf, error) {
	if a.shelf != nil {
		return a.shelf, nil
	}
	s, err := a.resolve()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(s.logProvider, s.logFile)
	if err != nil {
		return nil, systemError{err}
	}

	sh := shelf.New(shelf.WithLogger(log))
	if err := sh.Attach(s.config); err != nil {
		logging.Close(log)
		return nil, attachError(err)
	}
	a.shelf = sh
	a.log = log
	return sh, nil
}

func (a *app) closeShelf() {
	if a.shelf != nil {
		a.shelf.Detach()
		a.shelf = nil
	}
	if a.log != nil {
		logging.Close(a.log)
		a.log = nil
	}
}

// attachError classifies an Attach failure: bad configuration values are the
// user's to fix, anything else is the environment.
func attachError(err error) error {
	switch err {
	case types.ErrBackendEmpty, types.ErrBackendUnknown, types.ErrIndentInvalid, types.ErrLockTimeoutInvalid:
		return usageError{fmt.Errorf("invalid configuration: %w", err)}
	default:
		return systemError{err}
	}
}
