package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override config file values.
const (
	EnvProblem = "PASSPLAY_PROBLEM"
	EnvPasses  = "PASSPLAY_PASSES"
	EnvSpeed   = "PASSPLAY_SPEED"
	EnvPauseMs = "PASSPLAY_PAUSE_MS"
	EnvCatalog = "PASSPLAY_CATALOG"
	EnvDB      = "PASSPLAY_DB"
	EnvAddr    = "PASSPLAY_ADDR"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads variables from .env files into the process environment.
// Variables already set win. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with PASSPLAY_* variables found by lookup.
func ApplyEnv(cfg *FileConfig, lookup LookupFunc) error {
	if v, ok := nonEmpty(lookup, EnvProblem); ok {
		cfg.Playback.Problem = &v
	}
	if v, ok := nonEmpty(lookup, EnvPasses); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPasses, err)
		}
		cfg.Playback.Passes = &n
	}
	if v, ok := nonEmpty(lookup, EnvSpeed); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSpeed, err)
		}
		cfg.Playback.Speed = &f
	}
	if v, ok := nonEmpty(lookup, EnvPauseMs); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPauseMs, err)
		}
		cfg.Playback.PauseMs = &n
	}
	if v, ok := nonEmpty(lookup, EnvCatalog); ok {
		cfg.Catalog.Path = &v
	}
	if v, ok := nonEmpty(lookup, EnvDB); ok {
		cfg.Catalog.DB = &v
	}
	if v, ok := nonEmpty(lookup, EnvAddr); ok {
		cfg.Server.Addr = &v
	}
	return nil
}

func nonEmpty(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
