package config

import (
	"os"
	"path/filepath"
)

const appName = "passplay"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultDBPath returns the default path for the SQLite catalog database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "catalog.db")
}

// DefaultCatalogPath returns the path of a user catalog that replaces the built-in one when present.
func DefaultCatalogPath() string {
	return filepath.Join(XDGConfigHome(), appName, "problems.yaml")
}
