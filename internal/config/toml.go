// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store   StoreConfig   `toml:"store"`
	Board   BoardConfig   `toml:"board"`
	Capture CaptureConfig `toml:"capture"`
}

// StoreConfig locates the timing database.
type StoreConfig struct {
	Path *string `toml:"path"`
}

// BoardConfig maps leaderboard settings.
type BoardConfig struct {
	Race      *string `toml:"race"`
	RefreshMs *int    `toml:"refresh-ms"`
	CacheSize *int    `toml:"cache-size"`
}

// CaptureConfig maps capture station settings.
type CaptureConfig struct {
	Race    *string `toml:"race"`
	Station *string `toml:"station"`
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
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
