package pipeline

import (
	"errors"
	"fmt"
	"time"
)

// AssetResult is the outcome of one asset task
type AssetResult struct {
	Release string
	Asset   string
	URL     string
	Parts   []string
	State   State
	// FailedAt is the last state reached before a failure
	FailedAt State
	// Destination is the resolved directory of the matching rule
	Destination string
	// Path is the path handed to the post-action
	Path  string
	Bytes int64
	Err   error
}

// BranchResult is the outcome of the branch task
type BranchResult struct {
	Name        string
	URL         string
	Destination string
	State       State
	FailedAt    State
	Bytes       int64
	Err         error
}

// Summary collects the results of a run
type Summary struct {
	// Releases is the number of releases that passed the filter
	Releases int
	Assets   []AssetResult
	Branch   *BranchResult
	// ListErr is set when the release listing failed
	ListErr  error
	Duration time.Duration
}

// Count returns the number of asset tasks that ended in state
func (s *Summary) Count(state State) int {
	n := 0
	for _, a := range s.Assets {
		if a.State == state {
			n++
		}
	}
	return n
}

// Failed returns the asset tasks that failed
func (s *Summary) Failed() []AssetResult {
	var failed []AssetResult
	for _, a := range s.Assets {
		if a.State == Failed {
			failed = append(failed, a)
		}
	}
	return failed
}

// Bytes returns the number of bytes downloaded during the run
func (s *Summary) Bytes() int64 {
	var total int64
	for _, a := range s.Assets {
		total += a.Bytes
	}
	if s.Branch != nil {
		total += s.Branch.Bytes
	}
	return total
}

// Err joins every failure of the run, or returns nil
func (s *Summary) Err() error {
	var errs []error
	if s.ListErr != nil {
		errs = append(errs, s.ListErr)
	}
	for _, a := range s.Assets {
		if a.Err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", a.Release, a.Asset, a.Err))
		}
	}
	if s.Branch != nil && s.Branch.Err != nil {
		errs = append(errs, fmt.Errorf("branch %s: %w", s.Branch.Name, s.Branch.Err))
	}
	return errors.Join(errs...)
}
