package cache

import (
	"github.com/quantmind-br/releasesync/internal/domain"
)

// Ensure BadgerCache implements domain.Cache
var _ domain.Cache = (*BadgerCache)(nil)

// DefaultDirectory is used when Options.Directory is empty
const DefaultDirectory = "~/.releasesync/cache"

// Options contains cache configuration options
type Options struct {
	Directory string
	InMemory  bool
	// Logger enables badger's internal logging
	Logger bool
}

// DefaultOptions returns default cache options
func DefaultOptions() Options {
	return Options{
		Directory: DefaultDirectory,
		InMemory:  false,
		Logger:    false,
	}
}
