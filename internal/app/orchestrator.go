package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/semaphore"

	"github.com/quantmind-br/releasesync/internal/actions"
	"github.com/quantmind-br/releasesync/internal/archive"
	"github.com/quantmind-br/releasesync/internal/cache"
	"github.com/quantmind-br/releasesync/internal/config"
	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/fetcher"
	"github.com/quantmind-br/releasesync/internal/git"
	"github.com/quantmind-br/releasesync/internal/ledger"
	"github.com/quantmind-br/releasesync/internal/pipeline"
	"github.com/quantmind-br/releasesync/internal/rules"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// Orchestrator builds every dependency of a sync run from settings
type Orchestrator struct {
	config   *config.Config
	logger   *utils.Logger
	cache    *cache.BadgerCache
	source   domain.ReleaseSource
	resolver pipeline.BranchResolver
	actions  rules.ActionResolver
	limiter  *semaphore.Weighted
	slots    int64
	out      io.Writer
}

// OrchestratorOptions contains options for creating an orchestrator
type OrchestratorOptions struct {
	Config  *config.Config
	Verbose bool

	// Source replaces the HTTP client built from Config.GitHub
	Source domain.ReleaseSource
	// Resolver replaces the git resolver used when branch pinning is on
	Resolver pipeline.BranchResolver
	// Actions defaults to actions.Default
	Actions rules.ActionResolver

	// Out receives dry-run notices, os.Stdout by default
	Out io.Writer
	// LogOutput receives log lines, os.Stderr by default
	LogOutput io.Writer
}

// NewOrchestrator creates a new orchestrator with the given configuration
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := utils.NewLogger(utils.LoggerOptions{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  opts.LogOutput,
		Verbose: opts.Verbose,
	})

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		source:   opts.Source,
		resolver: opts.Resolver,
		actions:  opts.Actions,
		out:      opts.Out,
	}
	if o.actions == nil {
		o.actions = actions.Default(logger)
	}
	if o.out == nil {
		o.out = os.Stdout
	}

	// shared by every run of a batch
	o.slots = int64(cfg.Concurrency.MaxDownloads)
	if o.slots <= 0 {
		o.slots = pipeline.DefaultConcurrency()
	}
	o.limiter = semaphore.NewWeighted(o.slots)
	progress := utils.ProgressOptions{Silent: !cfg.Progress.Enabled}

	if o.source == nil {
		var store domain.Cache
		if cfg.Cache.Enabled {
			c, err := cache.NewBadgerCache(cache.Options{Directory: cfg.Cache.Directory})
			if err != nil {
				return nil, fmt.Errorf("failed to open cache: %w", err)
			}
			o.cache = c
			store = c
		}

		client, err := fetcher.NewClient(fetcher.ClientOptions{
			APIURL:          cfg.GitHub.APIURL,
			WebURL:          cfg.GitHub.WebURL,
			Token:           cfg.GitHub.Token,
			Timeout:         cfg.HTTP.Timeout,
			MaxRetries:      cfg.HTTP.MaxRetries,
			RateLimitFactor: cfg.Concurrency.RateLimitFactor,
			Cache:           store,
			CacheTTL:        cfg.Cache.TTL,
			Progress:        progress,
			Logger:          logger,
		})
		if err != nil {
			o.Close()
			return nil, err
		}
		o.source = client
	}

	if o.resolver == nil && cfg.Branch.Pin {
		o.resolver = git.NewResolver(git.ResolverOptions{
			WebURL: cfg.GitHub.WebURL,
			Token:  cfg.GitHub.Token,
			Logger: logger,
		})
	}

	return o, nil
}

// Logger returns the orchestrator's logger
func (o *Orchestrator) Logger() *utils.Logger {
	return o.logger
}

// Run loads ruleFile and syncs its repository. A nil summary means the run
// never started; the error then describes the setup failure.
func (o *Orchestrator) Run(ctx context.Context, ruleFile string) (*pipeline.Summary, error) {
	return o.run(ctx, ruleFile, o.config.Download.Directory)
}

func (o *Orchestrator) run(ctx context.Context, ruleFile, downloadDir string) (*pipeline.Summary, error) {
	cfg := o.config

	rs, err := rules.Load(ruleFile, rules.Options{Actions: o.actions})
	if err != nil {
		return nil, err
	}
	for _, w := range rs.Warnings() {
		o.logger.Warn().Str("rules", ruleFile).Msg(w)
	}

	ledgerPath, err := ledger.PathFor(ruleFile)
	if err != nil {
		return nil, fmt.Errorf("failed to locate ledger: %w", err)
	}
	book := ledger.NewManager(ledger.ManagerOptions{
		Path:     ledgerPath,
		Logger:   o.logger.WithComponent("ledger"),
		ReadOnly: cfg.Download.DryRun,
	})
	if err := book.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	opts := pipeline.Options{
		Config:           rs,
		Source:           o.source,
		Ledger:           book,
		Extractor:        archive.NewExtractor(archive.ExtractorOptions{Logger: o.logger}),
		Limiter:          o.limiter,
		DownloadDir:      utils.ExpandPath(downloadDir),
		DryRun:           cfg.Download.DryRun,
		RemoveDownloaded: cfg.Download.RemoveAfterExtract,
		MoveNonArchives:  cfg.Download.MoveNonArchives,
		Progress:         utils.ProgressOptions{Silent: !cfg.Progress.Enabled},
		Out:              o.out,
		Logger:           o.logger,
	}
	if rs.Branch != nil && cfg.Branch.Pin {
		opts.Resolver = o.resolver
	}

	p, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("repository", rs.Repository()).
		Str("rules", ruleFile).
		Str("downloads", opts.DownloadDir).
		Int64("concurrency", o.slots).
		Bool("dry_run", cfg.Download.DryRun).
		Msg("Starting release sync")

	summary, err := p.Run(ctx)
	o.logSummary(summary)

	if ctx.Err() != nil {
		o.logger.Warn().Msg("Sync cancelled")
	}
	return summary, err
}

func (o *Orchestrator) logSummary(s *pipeline.Summary) {
	for _, a := range s.Failed() {
		o.logger.Error().
			Err(a.Err).
			Str("release", a.Release).
			Str("asset", a.Asset).
			Str("kind", domain.KindOf(a.Err)).
			Str("failed_at", a.FailedAt.String()).
			Msg("Asset failed")
	}
	if b := s.Branch; b != nil && b.Err != nil {
		o.logger.Error().
			Err(b.Err).
			Str("branch", b.Name).
			Str("kind", domain.KindOf(b.Err)).
			Str("failed_at", b.FailedAt.String()).
			Msg("Branch snapshot failed")
	}

	event := o.logger.Info()
	if s.Err() != nil {
		event = o.logger.Warn()
	}
	event = event.
		Int("releases", s.Releases).
		Int("assets", len(s.Assets)).
		Int("recorded", s.Count(pipeline.Recorded)).
		Int("skipped", s.Count(pipeline.SkippedDuplicate)).
		Int("planned", s.Count(pipeline.TestLogged)).
		Int("failed", s.Count(pipeline.Failed)).
		Str("downloaded", humanize.Bytes(uint64(s.Bytes()))).
		Dur("duration", s.Duration.Round(time.Millisecond))
	if s.Branch != nil {
		event = event.Str("branch", s.Branch.State.String())
	}
	event.Msg("Release sync completed")
}

// Close releases all resources held by the orchestrator
func (o *Orchestrator) Close() error {
	if o.cache != nil {
		return o.cache.Close()
	}
	return nil
}

// IsSetupError reports whether err stopped a run before any task started
// because of invalid rules or settings
func IsSetupError(err error) bool {
	var cfgErr *domain.ConfigError
	return errors.As(err, &cfgErr)
}
