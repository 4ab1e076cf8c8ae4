package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantmind-br/releasesync/internal/manifest"
	"github.com/quantmind-br/releasesync/internal/pipeline"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// ManifestResult represents the result of syncing one manifest entry
type ManifestResult struct {
	Repository  manifest.Repository
	DownloadDir string
	// Summary is nil when the entry failed before any task started
	Summary  *pipeline.Summary
	Error    error
	Duration time.Duration
}

// RunManifest syncs every rule file listed in the manifest. Without
// continue_on_error the first failing entry cancels the rest.
func (o *Orchestrator) RunManifest(ctx context.Context, m *manifest.Config) ([]ManifestResult, error) {
	startTime := time.Now()
	total := len(m.Repositories)

	o.logger.Info().
		Int("repositories", total).
		Int("concurrency", m.Options.Concurrency).
		Bool("continue_on_error", m.Options.ContinueOnError).
		Msg("Starting batch sync")

	results := make([]ManifestResult, total)
	for i, repo := range m.Repositories {
		results[i] = ManifestResult{
			Repository:  repo,
			DownloadDir: m.DownloadDirFor(repo, o.config.Download.Directory),
		}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if !m.Options.ContinueOnError {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	indexes := make([]int, total)
	for i := range indexes {
		indexes[i] = i
	}

	var mu sync.Mutex
	errs := utils.ParallelForEach(runCtx, indexes, m.Options.Concurrency, func(ctx context.Context, idx int) error {
		res := results[idx]
		start := time.Now()

		o.logger.Info().
			Int("index", idx).
			Str("rules", res.Repository.Rules).
			Str("downloads", res.DownloadDir).
			Msg("Processing repository")

		summary, err := o.run(ctx, res.Repository.Rules, res.DownloadDir)

		mu.Lock()
		results[idx].Summary = summary
		results[idx].Error = err
		results[idx].Duration = time.Since(start)
		mu.Unlock()

		if err != nil && cancel != nil {
			cancel()
		}
		return err
	})

	var failures []error
	success := 0
	for i, err := range errs {
		if err == nil {
			success++
			continue
		}
		if results[i].Error == nil {
			// never started
			results[i].Error = err
		}
		failures = append(failures, fmt.Errorf("%s: %w", m.Repositories[i].Rules, err))
	}

	o.logger.Info().
		Dur("total_duration", time.Since(startTime)).
		Int("total", total).
		Int("success", success).
		Int("failed", len(failures)).
		Msg("Batch sync completed")

	if ctx.Err() != nil {
		o.logger.Warn().Msg("Batch sync cancelled")
		return results, ctx.Err()
	}
	return results, errors.Join(failures...)
}
