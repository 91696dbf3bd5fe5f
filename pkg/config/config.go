// Package config loads the clinic-sync service configuration from an
// optional YAML file, with CLINIC_SYNC_* environment variables taking
// precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Cache  CacheConfig  `yaml:"cache"`
	Server ServerConfig `yaml:"server"`
	Import ImportConfig `yaml:"import"`
}

// APIConfig configures the remote CRM API client. An empty BaseURL means
// no remote: the loader starts at the cache stage.
type APIConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
}

// CacheConfig configures the local cache store.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// ServerConfig configures the REST/WebSocket server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ImportConfig configures the optional import-file watch: a JSON export
// dropped by the desktop app that should be re-imported on change.
type ImportConfig struct {
	File     string   `yaml:"file"`
	Debounce Duration `yaml:"debounce"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() Config {
	cacheDir := ".clinic-sync"
	if home, err := os.UserHomeDir(); err == nil {
		cacheDir = filepath.Join(home, ".clinic-sync", "cache")
	}
	return Config{
		API:    APIConfig{Timeout: Duration(30 * time.Second)},
		Cache:  CacheConfig{Dir: cacheDir},
		Server: ServerConfig{Addr: ":8080"},
		Import: ImportConfig{Debounce: Duration(time.Second)},
	}
}

// Load builds the configuration from defaults, then the YAML file at
// path (skipped when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = Duration(30 * time.Second)
	}
	if cfg.Import.Debounce < 0 {
		return Config{}, fmt.Errorf("import debounce must not be negative, got %s", cfg.Import.Debounce.Std())
	}
	return cfg, nil
}

// applyEnv overlays CLINIC_SYNC_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CLINIC_SYNC_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CLINIC_SYNC_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("CLINIC_SYNC_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = Duration(d)
		}
	}
	if v := os.Getenv("CLINIC_SYNC_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("CLINIC_SYNC_CACHE_IN_MEMORY"); v != "" {
		cfg.Cache.InMemory = v == "true" || v == "1"
	}
	if v := os.Getenv("CLINIC_SYNC_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CLINIC_SYNC_IMPORT_FILE"); v != "" {
		cfg.Import.File = v
	}
}
