package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file configuration.
const (
	EnvBaseURL          = "DOG_TRANSLATOR_API_URL"
	EnvLogLevel         = "DOG_TRANSLATOR_LOG_LEVEL"
	EnvDataDir          = "DOG_TRANSLATOR_DATA_DIR"
	EnvAttestationToken = "DOG_TRANSLATOR_APPCHECK_TOKEN"
	EnvKVDriver         = "DOG_TRANSLATOR_KV_DRIVER"
	EnvRedisAddr        = "DOG_TRANSLATOR_REDIS_ADDR"
	EnvConfigPath       = "DOG_TRANSLATOR_CONFIG"
)

const defaultConfigFile = ".dogtranslator.yaml"

// Loader reads the YAML file, .env and the environment, in that order.
type Loader struct {
	useDotEnv bool
	path      string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a loader that reads .dogtranslator.yaml from the working directory.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		lookupEnv: os.LookupEnv,
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file location.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	// Path is empty when no file was found and defaults were used.
	Path string
}

// Load builds the effective configuration.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// a missing .env is not an error
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		if p, ok := l.lookupEnv(EnvConfigPath); ok && p != "" {
			path = p
		} else {
			path = defaultConfigFile
		}
	}

	usedPath := ""
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		usedPath = path
	case errors.Is(err, fs.ErrNotExist) && l.path == "":
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	l.applyEnv(cfg)
	cfg.fillDerived()

	if err := l.validate(cfg); err != nil {
		return nil, err
	}
	return &Result{Config: cfg, Path: usedPath}, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v, ok := l.lookupEnv(EnvBaseURL); ok && strings.TrimSpace(v) != "" {
		cfg.API.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := l.lookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := l.lookupEnv(EnvDataDir); ok && v != "" {
		cfg.Storage.DataDir = v
	}
	if v, ok := l.lookupEnv(EnvAttestationToken); ok && v != "" {
		cfg.API.AttestationToken = v
	}
	if v, ok := l.lookupEnv(EnvKVDriver); ok && v != "" {
		cfg.Storage.KV.Driver = strings.ToLower(v)
	}
	if v, ok := l.lookupEnv(EnvRedisAddr); ok && v != "" {
		cfg.Storage.KV.Redis.Addr = v
	}
}

// fillDerived places output directories under the data directory unless set explicitly.
func (c *Config) fillDerived() {
	if c.Image.OutputDir == "" {
		c.Image.OutputDir = filepath.Join(c.Storage.DataDir, "tmp")
	}
	if c.Speech.OutputDir == "" {
		c.Speech.OutputDir = filepath.Join(c.Storage.DataDir, "speech")
	}
}

// DatabasePath returns the SQLite file location.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Storage.Database) {
		return c.Storage.Database
	}
	return filepath.Join(c.Storage.DataDir, c.Storage.Database)
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0 (got %s)", cfg.API.Timeout)
	}
	if cfg.API.RetryDelay < 0 {
		return fmt.Errorf("api.retry_delay must be >= 0 (got %s)", cfg.API.RetryDelay)
	}
	if cfg.Image.MaxWidth <= 0 {
		return fmt.Errorf("image.max_width must be > 0 (got %d)", cfg.Image.MaxWidth)
	}
	if cfg.Image.Quality < 1 || cfg.Image.Quality > 100 {
		return fmt.Errorf("image.quality must be in [1,100] (got %d)", cfg.Image.Quality)
	}
	if cfg.Scans.DailyFreeLimit < 0 {
		return fmt.Errorf("scans.daily_free_limit must be >= 0 (got %d)", cfg.Scans.DailyFreeLimit)
	}
	switch cfg.Storage.KV.Driver {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unsupported storage.kv.driver: %q", cfg.Storage.KV.Driver)
	}
	if base := cfg.API.BaseURL; base != "" &&
		!strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return fmt.Errorf("api.base_url must be an http(s) URL (got %q)", base)
	}
	return nil
}
