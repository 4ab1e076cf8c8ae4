package domain

import (
	"context"
	"time"
)

// ReleaseSource lists releases and downloads files from the hosting provider
type ReleaseSource interface {
	// ListReleases returns every release of owner/repo
	ListReleases(ctx context.Context, owner, repo string) ([]Release, error)
	// Download streams url into localPath and returns the number of bytes written
	Download(ctx context.Context, url, localPath string) (int64, error)
	// BranchArchiveURL returns the zip snapshot URL for a branch or pinned commit
	BranchArchiveURL(owner, repo string, ref BranchRef) string
}

// BranchRef identifies a branch snapshot, optionally pinned to a commit
type BranchRef struct {
	Name   string
	Commit string
}

// Cache defines the interface for response caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close releases cache resources
	Close() error
}
