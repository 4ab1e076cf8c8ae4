package manifest

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config represents the complete manifest configuration
type Config struct {
	Repositories []Repository `yaml:"repositories" json:"repositories"`
	Options      Options      `yaml:"options" json:"options"`
}

// Repository is one rule file to sync
type Repository struct {
	Rules       string `yaml:"rules" json:"rules"`
	DownloadDir string `yaml:"download_dir,omitempty" json:"download_dir,omitempty"`
}

// Name returns the rule file name without its extension
func (r Repository) Name() string {
	base := filepath.Base(r.Rules)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Options represents global manifest options
type Options struct {
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
	// Concurrency is the number of rule files synced at once
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
	// DownloadDir overrides the download.directory setting for every entry
	DownloadDir string `yaml:"download_dir,omitempty" json:"download_dir,omitempty"`
}

// Validate validates the manifest configuration
func (c *Config) Validate() error {
	if len(c.Repositories) == 0 {
		return ErrNoRepositories
	}

	seen := make(map[string]int, len(c.Repositories))
	for i, repo := range c.Repositories {
		if repo.Rules == "" {
			return fmt.Errorf("repository %d: %w", i, ErrEmptyRules)
		}
		key := filepath.Clean(repo.Rules)
		if first, dup := seen[key]; dup {
			return fmt.Errorf("repositories %d and %d: %w: %s", first, i, ErrDuplicateRules, repo.Rules)
		}
		seen[key] = i
	}
	return nil
}

// DownloadDirFor returns where repo's downloads go. base is used when neither
// the entry nor the manifest options name a directory.
func (c *Config) DownloadDirFor(repo Repository, base string) string {
	if repo.DownloadDir != "" {
		return repo.DownloadDir
	}
	if c.Options.DownloadDir != "" {
		base = c.Options.DownloadDir
	}
	return filepath.Join(base, repo.Name())
}

// DefaultOptions returns options with sensible defaults
func DefaultOptions() Options {
	return Options{
		ContinueOnError: false,
		Concurrency:     1,
	}
}
