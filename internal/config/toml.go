// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Playback PlaybackConfig `toml:"playback"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Server   ServerConfig   `toml:"server"`
}

// PlaybackConfig maps playback-related settings.
type PlaybackConfig struct {
	Problem *string  `toml:"problem"`
	Passes  *int     `toml:"passes"`
	Speed   *float64 `toml:"speed"`
	PauseMs *int     `toml:"pause-ms"`
}

// CatalogConfig maps catalog sources.
type CatalogConfig struct {
	Path *string `toml:"path"`
	DB   *string `toml:"db"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
