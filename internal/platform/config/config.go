package config

import (
	"strings"
	"time"
)

// DefaultBaseURL is used whenever no base URL is configured.
const DefaultBaseURL = "https://dog-translator-service-736369571076.us-east1.run.app"

type Config struct {
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Image   ImageConfig   `yaml:"image"`
	Offline OfflineConfig `yaml:"offline"`
	Scans   ScanConfig    `yaml:"scans"`
	Speech  SpeechConfig  `yaml:"speech"`
}

type APIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	AttestationToken string        `yaml:"attestation_token"`
	// AttestationTimeout bounds how long the upload waits for an attestation token.
	AttestationTimeout time.Duration `yaml:"attestation_timeout"`
}

// ResolvedBaseURL returns the configured base URL without a trailing slash,
// or DefaultBaseURL when none is set.
func (c APIConfig) ResolvedBaseURL() string {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/")
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type StorageConfig struct {
	DataDir  string   `yaml:"data_dir"`
	Database string   `yaml:"database"`
	KV       KVConfig `yaml:"kv"`
}

type KVConfig struct {
	Driver string        `yaml:"driver"`
	Redis  KVRedisConfig `yaml:"redis,omitempty"`
}

type KVRedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type ImageConfig struct {
	MaxWidth  int            `yaml:"max_width"`
	Quality   int            `yaml:"quality"`
	OutputDir string         `yaml:"output_dir"`
	Security  SecurityConfig `yaml:"security"`
}

type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`
	MaxPixels      int64    `yaml:"max_pixels"`
	MaxWidth       int      `yaml:"max_width"`
	MaxHeight      int      `yaml:"max_height"`
	AllowedFormats []string `yaml:"allowed_formats"`
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}

type OfflineConfig struct {
	Enabled             bool          `yaml:"enabled"`
	QueueOnNetworkError bool          `yaml:"queue_on_network_error"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	RequireInterface    bool          `yaml:"require_interface"`
}

type ScanConfig struct {
	DailyFreeLimit int `yaml:"daily_free_limit"`
}

type SpeechConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Voice     string `yaml:"voice"`
	OutputDir string `yaml:"output_dir"`
}
