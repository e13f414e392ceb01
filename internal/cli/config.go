package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/catmig/internal/paths"
	"github.com/mesh-intelligence/catmig/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyLogLevel    = "log_level"
	cfgKeyParallelism = "parallelism"

	defaultBackend = types.BackendSQLite
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# catmig configuration

# Backend that plan and --engine use by default: sqlite or cypher
backend: sqlite

# Data directory for databases and exported instances
# (optional; overridable by --data-dir flag)
# data_dir:

# Log level: debug, info, warn or error
log_level: info

# Source nodes Δ computes at once (0 means one per CPU)
parallelism: 0
`

// loadConfig reads config.yaml from the resolved config directory, creating
// the directory and a default file on first run. CATMIG_BACKEND,
// CATMIG_LOG_LEVEL and CATMIG_PARALLELISM override the file. The data
// directory is resolved against dataDirFlag.
func loadConfig(configDirFlag, dataDirFlag string) (types.Config, error) {
	configDir, err := paths.ResolveConfigDir(configDirFlag)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return types.Config{}, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return types.Config{}, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyParallelism, 0)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	for key, env := range map[string]string{
		cfgKeyBackend:     "CATMIG_BACKEND",
		cfgKeyLogLevel:    "CATMIG_LOG_LEVEL",
		cfgKeyParallelism: "CATMIG_PARALLELISM",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return types.Config{}, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg := types.Config{
		Backend:     v.GetString(cfgKeyBackend),
		DataDir:     dataDir,
		LogLevel:    v.GetString(cfgKeyLogLevel),
		Parallelism: v.GetInt(cfgKeyParallelism),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", filepath.Join(configDir, paths.ConfigFileName), err)
	}
	return cfg, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
