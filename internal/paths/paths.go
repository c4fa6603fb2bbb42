// Package paths resolves configuration and store directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "DEPOT_CONFIG_DIR"
	EnvStoreDir  = "DEPOT_STORE_DIR"
)

// appDirName is the per-user directory name used on every platform.
const appDirName = "depot"

// platformDir holds platform-detection functions that can be overridden in
// tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	userCacheDir  func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	userCacheDir:  os.UserCacheDir,
}

// DefaultConfigDir returns the platform-specific default configuration
// directory.
//
// Linux:   $XDG_CONFIG_HOME/depot (fallback ~/.config/depot)
// macOS:   ~/Library/Application Support/depot
// Windows: %APPDATA%/depot
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appDirName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
}

// DefaultStoreDir returns the platform-specific default store directory.
// The store is a cache by nature, so it lives under the user cache root.
//
// Linux:   $XDG_CACHE_HOME/depot (fallback ~/.cache/depot)
// macOS:   ~/Library/Caches/depot
// Windows: %LocalAppData%/depot
func DefaultStoreDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".cache", appDirName), nil
	default:
		dir, err := platformDir.userCacheDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
}

// ResolveConfigDir returns the config directory from the flag value, the
// environment, or the platform default, in that order.
func ResolveConfigDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(EnvConfigDir); v != "" {
		return v, nil
	}
	return DefaultConfigDir()
}

// ResolveStoreDir returns the store directory from the flag value, the
// environment, or the platform default, in that order.
func ResolveStoreDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(EnvStoreDir); v != "" {
		return v, nil
	}
	return DefaultStoreDir()
}
