package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// Resolver pins a branch to the commit its head currently points at
type Resolver struct {
	client Client
	webURL string
	token  string
	logger *utils.Logger
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	Client Client
	// WebURL is the hosting provider's web root, e.g. https://github.com
	WebURL string
	Token  string
	Logger *utils.Logger
}

// NewResolver creates a Resolver
func NewResolver(opts ResolverOptions) *Resolver {
	client := opts.Client
	if client == nil {
		client = NewClient()
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.Nop()
	}

	return &Resolver{
		client: client,
		webURL: strings.TrimRight(opts.WebURL, "/"),
		token:  opts.Token,
		logger: logger.WithComponent("git"),
	}
}

// RepoURL returns the clone URL of owner/repo
func (r *Resolver) RepoURL(owner, repo string) string {
	return fmt.Sprintf("%s/%s/%s.git", r.webURL, owner, repo)
}

// Resolve returns a BranchRef carrying the current head commit of branch
func (r *Resolver) Resolve(ctx context.Context, owner, repo, branch string) (domain.BranchRef, error) {
	url := r.RepoURL(owner, repo)

	opts := &git.ListOptions{}
	if r.token != "" {
		opts.Auth = &githttp.BasicAuth{
			Username: "token",
			Password: r.token,
		}
	}

	refs, err := r.client.ListRemoteContext(ctx, url, opts)
	if err != nil {
		return domain.BranchRef{}, fmt.Errorf("list remote %s: %w", url, err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() != want || ref.Type() != plumbing.HashReference {
			continue
		}

		commit := ref.Hash().String()
		r.logger.Debug().
			Str("branch", branch).
			Str("commit", commit).
			Msg("Resolved branch head")
		return domain.BranchRef{Name: branch, Commit: commit}, nil
	}

	return domain.BranchRef{}, fmt.Errorf("branch %q not found in %s", branch, url)
}
