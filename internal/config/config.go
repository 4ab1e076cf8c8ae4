package config

import (
	"fmt"
	"time"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// Config represents the application settings
type Config struct {
	Download    DownloadConfig    `mapstructure:"download" yaml:"download"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	Branch      BranchConfig      `mapstructure:"branch" yaml:"branch"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Progress    ProgressConfig    `mapstructure:"progress" yaml:"progress"`
}

// DownloadConfig contains download and placement settings
type DownloadConfig struct {
	Directory          string `mapstructure:"directory" yaml:"directory"`
	RemoveAfterExtract bool   `mapstructure:"remove_after_extract" yaml:"remove_after_extract"`
	MoveNonArchives    bool   `mapstructure:"move_non_archives" yaml:"move_non_archives"`
	DryRun             bool   `mapstructure:"dry_run" yaml:"dry_run"`
}

// ConcurrencyConfig contains concurrency settings
type ConcurrencyConfig struct {
	// MaxDownloads of 0 means one slot per CPU
	MaxDownloads    int     `mapstructure:"max_downloads" yaml:"max_downloads"`
	RateLimitFactor float64 `mapstructure:"rate_limit_factor" yaml:"rate_limit_factor"`
}

// HTTPConfig contains HTTP client settings
type HTTPConfig struct {
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// GitHubConfig contains hosting provider settings
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	WebURL string `mapstructure:"web_url" yaml:"web_url"`
	Token  string `mapstructure:"token" yaml:"token"`
}

// BranchConfig contains branch snapshot settings
type BranchConfig struct {
	// Pin resolves the branch head and downloads that commit's archive
	Pin bool `mapstructure:"pin" yaml:"pin"`
}

// CacheConfig contains release listing cache settings
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	Directory string        `mapstructure:"directory" yaml:"directory"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ProgressConfig contains progress bar settings
type ProgressConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// Validate validates the configuration and fills in defaults for zero values
func (c *Config) Validate() error {
	if c.Download.Directory == "" {
		c.Download.Directory = DefaultDownloadDir
	}
	if c.Concurrency.MaxDownloads < 0 {
		return invalid("concurrency.max_downloads", "must not be negative, got %d", c.Concurrency.MaxDownloads)
	}
	if c.Concurrency.RateLimitFactor <= 0 {
		return invalid("concurrency.rate_limit_factor", "must be positive, got %g", c.Concurrency.RateLimitFactor)
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = DefaultTimeout
	}
	if c.HTTP.MaxRetries < 0 {
		return invalid("http.max_retries", "must not be negative, got %d", c.HTTP.MaxRetries)
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = DefaultAPIURL
	}
	if c.GitHub.WebURL == "" {
		c.GitHub.WebURL = DefaultWebURL
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.Directory == "" {
		c.Cache.Directory = CacheDir()
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = DefaultLogFormat
	case "pretty", "json":
	default:
		return invalid("logging.format", "must be pretty or json, got %q", c.Logging.Format)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return domain.NewConfigError(field, fmt.Sprintf(format, args...))
}
