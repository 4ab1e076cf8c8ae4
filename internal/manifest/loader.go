package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// Loader loads and validates manifest files
type Loader struct{}

// NewLoader creates a new manifest loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses a manifest file from the given path. Relative
// paths inside it are resolved against the manifest's directory. Every
// failure is reported as a *domain.ConfigError wrapping a sentinel.
func (l *Loader) Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, invalid(path, fmt.Errorf("%w: %s", ErrFileNotFound, path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, invalid(path, err)
	}

	cfg, err := l.LoadFromBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, invalid(path, err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, invalid(path, err)
	}
	cfg.resolve(dir)

	// entries naming one file two ways only collide once resolved
	if err := cfg.Validate(); err != nil {
		return nil, invalid(path, err)
	}

	return cfg, nil
}

// LoadFromBytes parses manifest configuration from raw bytes
func (l *Loader) LoadFromBytes(data []byte, ext string) (*Config, error) {
	ext = strings.ToLower(ext)

	var cfg Config
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, ext)
	}

	l.applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (l *Loader) applyDefaults(cfg *Config) {
	if cfg.Options.Concurrency <= 0 {
		cfg.Options.Concurrency = DefaultOptions().Concurrency
	}
}

// resolve makes relative paths absolute against dir
func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	for i := range c.Repositories {
		c.Repositories[i].Rules = abs(c.Repositories[i].Rules)
		c.Repositories[i].DownloadDir = abs(c.Repositories[i].DownloadDir)
	}
	c.Options.DownloadDir = abs(c.Options.DownloadDir)
}

func invalid(path string, err error) error {
	return &domain.ConfigError{Path: path, Message: "invalid manifest", Err: err}
}
