package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/releasesync/internal/fetcher"
)

// Default values
const (
	// Download defaults
	DefaultDownloadDir = "downloads"

	// Concurrency defaults
	DefaultMaxDownloads    = 0
	DefaultRateLimitFactor = 1.0

	// HTTP defaults
	DefaultTimeout    = 5 * time.Minute
	DefaultMaxRetries = 0

	// GitHub defaults
	DefaultAPIURL = fetcher.DefaultAPIURL
	DefaultWebURL = fetcher.DefaultWebURL

	// Cache defaults
	DefaultCacheEnabled = false
	DefaultCacheTTL     = 10 * time.Minute

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "pretty"

	// Progress defaults
	DefaultProgressEnabled = true
)

// TokenEnv is the environment variable holding the API token
const TokenEnv = "GITHUB_TOKEN"

// ConfigDir returns the config directory path
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".releasesync"
	}
	return filepath.Join(home, ".releasesync")
}

// CacheDir returns the cache directory path
func CacheDir() string {
	return filepath.Join(ConfigDir(), "cache")
}

// ConfigFilePath returns the config file path
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Download: DownloadConfig{
			Directory: DefaultDownloadDir,
		},
		Concurrency: ConcurrencyConfig{
			MaxDownloads:    DefaultMaxDownloads,
			RateLimitFactor: DefaultRateLimitFactor,
		},
		HTTP: HTTPConfig{
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		GitHub: GitHubConfig{
			APIURL: DefaultAPIURL,
			WebURL: DefaultWebURL,
		},
		Cache: CacheConfig{
			Enabled:   DefaultCacheEnabled,
			TTL:       DefaultCacheTTL,
			Directory: CacheDir(),
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Progress: ProgressConfig{
			Enabled: DefaultProgressEnabled,
		},
	}
}
