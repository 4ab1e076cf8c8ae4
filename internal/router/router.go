// Package router decides where an asset lands: the first rule whose
// pattern matches the asset's base name wins.
package router

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quantmind-br/releasesync/internal/rules"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// PlaceFunc puts src into dir and returns the path the post-action receives
type PlaceFunc func(ctx context.Context, src, dir string) (string, error)

// Resolution is a matched rule with its formatted destination directory
type Resolution struct {
	Rule *rules.Rule
	Dir  string
}

// Result describes the outcome of Place or Route
type Result struct {
	Matched     bool
	Rule        *rules.Rule
	Destination string
	Path        string
}

// Options configures a Router
type Options struct {
	Logger *utils.Logger
}

// Router evaluates rules in declaration order
type Router struct {
	rules  []rules.Rule
	logger *utils.Logger
}

// New creates a router over rs. The slice is not copied.
func New(rs []rules.Rule, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = utils.Nop()
	}
	return &Router{
		rules:  rs,
		logger: logger.WithComponent("router"),
	}
}

// Rules returns the rules in evaluation order
func (r *Router) Rules() []rules.Rule {
	return r.rules
}

// Match returns the first rule matching the base name of name
func (r *Router) Match(name string) (*rules.Rule, bool) {
	base := filepath.Base(name)
	for i := range r.rules {
		if r.rules[i].Matches(base) {
			return &r.rules[i], true
		}
	}
	return nil, false
}

// Resolve matches name and formats the destination with parts
func (r *Router) Resolve(name string, parts []string) (Resolution, bool, error) {
	rule, ok := r.Match(name)
	if !ok {
		return Resolution{}, false, nil
	}

	dir, err := rule.Destination.Format(parts)
	if err != nil {
		return Resolution{Rule: rule}, true, fmt.Errorf("resolve destination for %s: %w", filepath.Base(name), err)
	}
	return Resolution{Rule: rule, Dir: dir}, true, nil
}

// Place resolves filePath, creates the destination, hands the file to place
// and runs the rule's post-action on the returned path. An unmatched file is
// left untouched and reported with Matched false.
func (r *Router) Place(ctx context.Context, filePath string, parts []string, place PlaceFunc) (Result, error) {
	res, ok, err := r.Resolve(filePath, parts)
	if !ok {
		return Result{}, nil
	}
	result := Result{Matched: true, Rule: res.Rule, Destination: res.Dir}
	if err != nil {
		return result, err
	}

	if err := utils.EnsureDir(res.Dir); err != nil {
		return result, fmt.Errorf("create destination %s: %w", res.Dir, err)
	}

	path, err := place(ctx, filePath, res.Dir)
	if err != nil {
		return result, err
	}
	result.Path = path

	if res.Rule.Action != nil {
		r.logger.Debug().
			Str("action", res.Rule.ActionName).
			Str("path", path).
			Msg("Running post-action")
		if err := res.Rule.Action(ctx, path); err != nil {
			return result, fmt.Errorf("post-action %s on %s: %w", res.Rule.ActionName, path, err)
		}
	}

	return result, nil
}

// Route moves filePath into its destination directory
func (r *Router) Route(ctx context.Context, filePath string, parts []string) (Result, error) {
	return r.Place(ctx, filePath, parts, MoveInto)
}

// MoveInto is a PlaceFunc that renames src into dir
func MoveInto(_ context.Context, src, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := utils.MoveFile(src, dst); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", src, dir, err)
	}
	return dst, nil
}
