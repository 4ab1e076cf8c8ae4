package config

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. RELEASESYNC_HTTP_TIMEOUT
const EnvPrefix = "RELEASESYNC"

// Load loads configuration from file, environment, and defaults.
// Uses the global viper instance to access CLI flag bindings.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper(), "")
}

// LoadFrom loads configuration into v. A non-empty configFile replaces the
// search of ~/.releasesync and the working directory and must exist.
func LoadFrom(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, &domain.ConfigError{Path: configFile, Message: "failed to read settings", Err: err}
		}
	}

	// Environment variables (RELEASESYNC_*)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domain.ConfigError{Path: v.ConfigFileUsed(), Message: "invalid settings", Err: err}
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = strings.TrimSpace(os.Getenv(TokenEnv))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	v.SetDefault("download.directory", DefaultDownloadDir)
	v.SetDefault("download.remove_after_extract", false)
	v.SetDefault("download.move_non_archives", false)
	v.SetDefault("download.dry_run", false)

	v.SetDefault("concurrency.max_downloads", DefaultMaxDownloads)
	v.SetDefault("concurrency.rate_limit_factor", DefaultRateLimitFactor)

	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("http.max_retries", DefaultMaxRetries)

	v.SetDefault("github.api_url", DefaultAPIURL)
	v.SetDefault("github.web_url", DefaultWebURL)
	v.SetDefault("github.token", "")

	v.SetDefault("branch.pin", false)

	v.SetDefault("cache.enabled", DefaultCacheEnabled)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.directory", CacheDir())

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.format", DefaultLogFormat)

	v.SetDefault("progress.enabled", DefaultProgressEnabled)
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir() error {
	return os.MkdirAll(ConfigDir(), 0755)
}
