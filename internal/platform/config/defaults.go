package config

import "time"

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:            "",
			Timeout:            60 * time.Second,
			RetryDelay:         2 * time.Second,
			AttestationTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "dogtranslator.log",
		},
		Storage: StorageConfig{
			DataDir:  "data",
			Database: "dog_translator.db",
			KV: KVConfig{
				Driver: "sqlite",
				Redis: KVRedisConfig{
					Addr:   "127.0.0.1:6379",
					Prefix: "dogtranslator:",
				},
			},
		},
		Image: ImageConfig{
			MaxWidth: 800,
			Quality:  70,
			Security: SecurityConfig{
				MaxFileSize:    25 * 1024 * 1024,
				MaxPixels:      64 * 1024 * 1024,
				MaxWidth:       12000,
				MaxHeight:      12000,
				AllowedFormats: []string{"jpeg", "jpg", "png", "webp", "gif"},
				EnableDeepScan: true,
			},
		},
		Offline: OfflineConfig{
			Enabled:             true,
			QueueOnNetworkError: true,
			ProbeTimeout:        3 * time.Second,
			RequireInterface:    false,
		},
		Scans: ScanConfig{
			DailyFreeLimit: 5,
		},
		Speech: SpeechConfig{
			Enabled: true,
			Voice:   "en-US-AnaNeural",
		},
	}
}
