// Config loading for the depot CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys.
	cfgKeyStoreDir      = "store_dir"
	cfgKeyLogLevel      = "log_level"
	cfgKeyLogFile       = "log_file"
	cfgKeyLogMaxSize    = "log_max_size_mb"
	cfgKeyLogMaxBackups = "log_max_backups"
	cfgKeyGCRetention   = "gc_retention"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Depot CLI configuration

# Store directory (optional; overridable by --store-dir flag or DEPOT_STORE_DIR)
# store_dir:

# Logging
log_level: info
# log_file:

# Garbage collection retention window
gc_retention: 720h
`

// loadConfig reads config.yaml from the config directory using Viper,
// creating the directory and a default file on first run. A missing
// config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, "info")
	v.SetDefault(cfgKeyGCRetention, "720h")
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile writes config.yaml if it does not exist yet.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileName+"."+configFileType)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
