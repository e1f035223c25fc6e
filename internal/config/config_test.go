package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if cfg.Store.Path != nil || cfg.Board.Race != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[store]
path = "/tmp/race.db"

[board]
race = "trail-20"
refresh-ms = 500

[capture]
station = "arrivee-1"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Store.Path == nil || *cfg.Store.Path != "/tmp/race.db" {
		t.Fatalf("unexpected store path: %v", cfg.Store.Path)
	}
	if cfg.Board.RefreshMs == nil || *cfg.Board.RefreshMs != 500 {
		t.Fatalf("unexpected refresh: %v", cfg.Board.RefreshMs)
	}
	if cfg.Capture.Race != nil {
		t.Fatalf("expected unset capture race, got %q", *cfg.Capture.Race)
	}
	if cfg.Capture.Station == nil || *cfg.Capture.Station != "arrivee-1" {
		t.Fatalf("unexpected station: %v", cfg.Capture.Station)
	}
}

func TestDefaultPathsHonorXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "livetiming", "config.toml") {
		t.Fatalf("unexpected config path: %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "livetiming", "livetiming.db") {
		t.Fatalf("unexpected db path: %s", got)
	}
}
