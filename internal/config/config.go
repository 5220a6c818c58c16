// Package config loads and persists the backscroll configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Config is the root configuration structure.
type Config struct {
	// ExportDir holds the .jsonl room-log exports to ingest and watch.
	ExportDir string `json:"exportDir"`
	// DBPath is the SQLite database location.
	DBPath string `json:"dbPath"`
	// PageSize is the windowed-list page granularity.
	PageSize int `json:"pageSize"`
	// PrefetchRadius is how many messages around the viewport to
	// materialize on each load trigger.
	PrefetchRadius int `json:"prefetchRadius"`
	// CoalesceWindowMS batches rapid export-file changes into one refresh.
	CoalesceWindowMS int `json:"coalesceWindowMs"`
	// Theme selects the color palette.
	Theme string `json:"theme"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ExportDir:        "exports",
		DBPath:           filepath.Join(dataDir(), "backscroll.db"),
		PageSize:         50,
		PrefetchRadius:   25,
		CoalesceWindowMS: 250,
		Theme:            "dusk",
	}
}

// Path returns the default config file location.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "backscroll.json"
	}
	return filepath.Join(dir, "backscroll", "config.json")
}

func dataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "backscroll")
}

// Load reads the config at path, filling unset fields with defaults. A
// missing file is not an error; it yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parse config %s: %w", path, err)
	}

	def := Default()
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.PrefetchRadius <= 0 {
		cfg.PrefetchRadius = def.PrefetchRadius
	}
	if cfg.CoalesceWindowMS <= 0 {
		cfg.CoalesceWindowMS = def.CoalesceWindowMS
	}
	if cfg.Theme == "" {
		cfg.Theme = def.Theme
	}
	if cfg.DBPath == "" {
		cfg.DBPath = def.DBPath
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
