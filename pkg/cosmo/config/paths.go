package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = ".cosmo"
	defaultSettingsFile  = "settings.yaml"
	defaultTokenFile     = "config.json"
)

// DefaultConfigDir returns the per-user directory holding the settings and
// token files. COSMO_HOME overrides the location.
func DefaultConfigDir() string {
	if env := os.Getenv("COSMO_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigDirName
	}
	return filepath.Join(home, defaultConfigDirName)
}

func DefaultConfigPath() string {
	if env := os.Getenv("COSMO_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(DefaultConfigDir(), defaultSettingsFile)
}

// DefaultTokenPath is shared with the JavaScript cosmo CLI, which keeps the
// token in config.json.
func DefaultTokenPath() string {
	return filepath.Join(DefaultConfigDir(), defaultTokenFile)
}
