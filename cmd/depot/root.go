// Root command and global flag handling for the depot CLI.
package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/panelhost/depot/internal/logging"
	"github.com/panelhost/depot/internal/paths"
	"github.com/panelhost/depot/pkg/depot"
)

// Global flag values.
var (
	flagConfigDir string
	flagStoreDir  string
	flagLogLevel  string
	flagJSON      bool
)

// resolvedStoreDir is set by PersistentPreRunE so all subcommands share
// one resolution of flag, environment, config, and default.
var resolvedStoreDir string

// resolvedGCRetention is the configured retention window, applied when the
// gc command is run without --older-than.
var resolvedGCRetention time.Duration

// log is the CLI-wide logger, initialized in PersistentPreRunE.
var log *logrus.Logger = logrus.StandardLogger()

var rootCmd = &cobra.Command{
	Use:     "depot",
	Short:   "Depot manages the content-addressed package store",
	Version: depot.Version,
	Long: `Depot is the maintenance CLI for the panel package store: a
content-addressed cache that materializes resolved dependency trees into
node_modules directories via hard links.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagStoreDir, "store-dir", "", "store directory (default: platform cache dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (default: info)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(gcCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup resolves directories, loads config.yaml, and configures logging
// before any subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	configDir, err := paths.ResolveConfigDir(flagConfigDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}

	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}

	storeDir := flagStoreDir
	if storeDir == "" {
		storeDir = cfg.GetString(cfgKeyStoreDir)
	}
	resolvedStoreDir, err = paths.ResolveStoreDir(storeDir)
	if err != nil {
		return fmt.Errorf("resolve store dir: %w", err)
	}

	if retention := cfg.GetString(cfgKeyGCRetention); retention != "" {
		parsed, err := time.ParseDuration(retention)
		if err != nil {
			return fmt.Errorf("parse gc_retention: %w", err)
		}
		resolvedGCRetention = parsed
	}

	level := flagLogLevel
	if level == "" {
		level = cfg.GetString(cfgKeyLogLevel)
	}
	logger, err := logging.New(logging.Config{
		Level:      level,
		FilePath:   cfg.GetString(cfgKeyLogFile),
		MaxSizeMB:  cfg.GetInt(cfgKeyLogMaxSize),
		MaxBackups: cfg.GetInt(cfgKeyLogMaxBackups),
	})
	if err != nil {
		return err
	}
	log = logger
	return nil
}
