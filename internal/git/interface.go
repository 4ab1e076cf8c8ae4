package git

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Client defines the remote Git operations used to pin branch snapshots
type Client interface {
	ListRemoteContext(ctx context.Context, url string, o *git.ListOptions) ([]*plumbing.Reference, error)
}
