package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/semaphore"

	"github.com/quantmind-br/releasesync/internal/archive"
	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/ledger"
	"github.com/quantmind-br/releasesync/internal/router"
	"github.com/quantmind-br/releasesync/internal/rules"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// DefaultDownloadDir is used when Options.DownloadDir is empty
const DefaultDownloadDir = "downloads"

// Extractor unpacks an archive into a directory
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string, opts archive.Options) (int64, error)
}

// Ledger records completed downloads
type Ledger interface {
	IsDownloaded(url string) bool
	BranchURL() string
	Record(ctx context.Context, entry ledger.Entry) error
	RecordBranch(ctx context.Context, url string) error
}

// BranchResolver pins a branch to its current head commit
type BranchResolver interface {
	Resolve(ctx context.Context, owner, repo, branch string) (domain.BranchRef, error)
}

// Options configures a Pipeline
type Options struct {
	Config    *rules.Config
	Source    domain.ReleaseSource
	Ledger    Ledger
	Extractor Extractor
	// Router defaults to a router over Config.Rules
	Router *router.Router
	// Resolver pins the branch snapshot to a commit when set
	Resolver BranchResolver
	// Limiter caps concurrent download+extract sections.
	// Defaults to DefaultConcurrency slots.
	Limiter *semaphore.Weighted

	DownloadDir      string
	DryRun           bool
	RemoveDownloaded bool
	MoveNonArchives  bool

	Progress utils.ProgressOptions
	// Out receives dry-run notices, os.Stdout by default
	Out    io.Writer
	Logger *utils.Logger
}

// DefaultConcurrency returns the default number of concurrent downloads
func DefaultConcurrency() int64 {
	n := runtime.NumCPU()
	if n < 1 {
		return 4
	}
	return int64(n)
}

// Pipeline syncs releases and the branch snapshot of one repository
type Pipeline struct {
	cfg       *rules.Config
	source    domain.ReleaseSource
	ledger    Ledger
	extractor Extractor
	router    *router.Router
	resolver  BranchResolver
	limiter   *semaphore.Weighted

	downloadDir      string
	dryRun           bool
	removeDownloaded bool
	moveNonArchives  bool

	progress utils.ProgressOptions
	out      io.Writer
	outMu    sync.Mutex
	logger   *utils.Logger
}

// New creates a Pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if opts.Source == nil {
		return nil, errors.New("pipeline: release source is required")
	}
	if opts.Ledger == nil {
		return nil, errors.New("pipeline: ledger is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.Nop()
	}

	p := &Pipeline{
		cfg:              opts.Config,
		source:           opts.Source,
		ledger:           opts.Ledger,
		extractor:        opts.Extractor,
		router:           opts.Router,
		resolver:         opts.Resolver,
		limiter:          opts.Limiter,
		downloadDir:      opts.DownloadDir,
		dryRun:           opts.DryRun,
		removeDownloaded: opts.RemoveDownloaded,
		moveNonArchives:  opts.MoveNonArchives,
		progress:         opts.Progress,
		out:              opts.Out,
		logger:           logger.WithComponent("pipeline"),
	}

	if p.extractor == nil {
		p.extractor = archive.NewExtractor(archive.ExtractorOptions{Logger: logger})
	}
	if p.router == nil {
		p.router = router.New(opts.Config.Rules, router.Options{Logger: logger})
	}
	if p.limiter == nil {
		p.limiter = semaphore.NewWeighted(DefaultConcurrency())
	}
	if p.downloadDir == "" {
		p.downloadDir = DefaultDownloadDir
	}
	if p.out == nil {
		p.out = os.Stdout
	}

	return p, nil
}

// run holds the state of a single Run call
type run struct {
	*Pipeline

	mu     sync.Mutex
	claims map[string]string
}

// claim reserves key for owner; it fails if another task holds it
func (r *run) claim(key, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.claims[key]; taken {
		return false
	}
	r.claims[key] = owner
	return true
}

// Run syncs every matching release asset and the branch snapshot. All
// tasks run to completion; the returned error joins every failure.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	r := &run{Pipeline: p, claims: make(map[string]string)}
	summary := &Summary{}

	var wg sync.WaitGroup

	if p.cfg.Branch != nil {
		summary.Branch = &BranchResult{Name: p.cfg.Branch.Name}
		wg.Add(1)
		go func() {
			defer wg.Done()
			*summary.Branch = r.runBranch(ctx)
		}()
	}

	releases, err := p.source.ListReleases(ctx, p.cfg.Owner, p.cfg.Repo)
	if err != nil {
		summary.ListErr = fmt.Errorf("list releases of %s: %w", p.cfg.Repository(), err)
		p.logger.Error().Err(err).Str("repository", p.cfg.Repository()).Msg("Failed to list releases")
	}

	type task struct {
		release domain.Release
		parts   []string
		asset   domain.Asset
	}
	var tasks []task

	for _, rel := range releases {
		name := rel.DisplayName()
		parts, ok := p.cfg.ReleaseFilter.Groups(name)
		if !ok {
			p.logger.Debug().Str("release", name).Msg("Release does not match filter")
			continue
		}
		summary.Releases++
		for _, asset := range rel.Assets {
			tasks = append(tasks, task{release: rel, parts: parts, asset: asset})
		}
	}

	summary.Assets = make([]AssetResult, len(tasks))
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t task) {
			defer wg.Done()
			summary.Assets[i] = r.runAsset(ctx, t.release, t.parts, t.asset)
		}(i, t)
	}

	wg.Wait()
	summary.Duration = time.Since(start)

	return summary, summary.Err()
}

func (r *run) runAsset(ctx context.Context, rel domain.Release, parts []string, asset domain.Asset) (res AssetResult) {
	res = AssetResult{
		Release: rel.DisplayName(),
		Asset:   asset.Name,
		URL:     asset.BrowserDownloadURL,
		Parts:   parts,
		State:   Pending,
	}
	logger := r.logger.WithRelease(res.Release).WithAsset(asset.Name)

	fail := func(err error) AssetResult {
		res.FailedAt = res.State
		res.State = Failed
		res.Err = err
		logger.Error().Err(err).Str("kind", domain.KindOf(err)).Str("at", res.FailedAt.String()).Msg("Asset failed")
		return res
	}

	resolution, matched, err := r.router.Resolve(asset.Name, parts)
	if !matched {
		res.State = FilteredOut
		return res
	}
	if err != nil {
		return fail(err)
	}
	res.Destination = resolution.Dir

	if r.ledger.IsDownloaded(res.URL) || !r.claim("url:"+res.URL, asset.Name) {
		logger.Warn().Str("url", res.URL).Msg("Already downloaded, skipping")
		res.State = SkippedDuplicate
		return res
	}

	if r.dryRun {
		r.printf("Test run: would download %s and extract to '%s'\n", asset.Name, resolution.Dir)
		res.State = TestLogged
		return res
	}

	isArchive := archive.IsArchive(asset.Name)
	if !isArchive && !r.moveNonArchives {
		return fail(&domain.UnsupportedFormatError{Path: asset.Name})
	}

	downloadPath := filepath.Join(r.downloadDir, utils.SanitizeFilename(res.Release), asset.Name)
	target := filepath.Join(resolution.Dir, asset.Name)
	if !r.claim("file:"+downloadPath, res.URL) {
		return fail(fmt.Errorf("%w: %s", domain.ErrDestinationConflict, downloadPath))
	}
	if !r.claim("dest:"+target, res.URL) {
		return fail(fmt.Errorf("%w: %s", domain.ErrDestinationConflict, target))
	}

	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer r.limiter.Release(1)

	res.State = Downloading
	logger.Info().Str("path", downloadPath).Msg("Downloading")
	n, err := r.source.Download(ctx, res.URL, downloadPath)
	res.Bytes = n
	if err != nil {
		return fail(err)
	}

	res.State = Extracting
	var place router.PlaceFunc = router.MoveInto
	if isArchive {
		place = func(ctx context.Context, src, dir string) (string, error) {
			if err := r.extract(ctx, src, dir, false); err != nil {
				return "", err
			}
			return filepath.Join(dir, asset.Name), nil
		}
	}

	placed, err := r.router.Place(ctx, downloadPath, parts, place)
	if err != nil {
		return fail(err)
	}
	res.State = Routed
	res.Path = placed.Path

	if err := r.ledger.Record(ctx, ledger.Entry{Version: parts, URL: res.URL}); err != nil {
		return fail(fmt.Errorf("record %s: %w", res.URL, err))
	}
	res.State = Recorded
	logger.Info().Str("destination", res.Destination).Msg("Recorded")

	if r.removeDownloaded && isArchive {
		if err := os.Remove(downloadPath); err != nil {
			logger.Warn().Err(err).Str("path", downloadPath).Msg("Failed to remove downloaded file")
		}
	}

	return res
}

func (r *run) runBranch(ctx context.Context) (res BranchResult) {
	b := r.cfg.Branch
	res = BranchResult{Name: b.Name, State: Pending}

	fail := func(err error) BranchResult {
		res.FailedAt = res.State
		res.State = Failed
		res.Err = err
		r.logger.Error().Err(err).Str("branch", b.Name).Str("at", res.FailedAt.String()).Msg("Branch snapshot failed")
		return res
	}

	dest, err := b.Resolve()
	if err != nil {
		return fail(err)
	}
	res.Destination = dest

	if r.dryRun {
		r.printf("Test run: would download branch %s and extract to '%s'\n", b.Name, dest)
		res.State = TestLogged
		return res
	}

	ref := domain.BranchRef{Name: b.Name}
	if r.resolver != nil {
		ref, err = r.resolver.Resolve(ctx, r.cfg.Owner, r.cfg.Repo, b.Name)
		if err != nil {
			return fail(err)
		}
	}
	res.URL = r.source.BranchArchiveURL(r.cfg.Owner, r.cfg.Repo, ref)

	if r.ledger.BranchURL() == res.URL {
		r.logger.Info().Str("branch", b.Name).Str("url", res.URL).Msg("Branch snapshot already downloaded, skipping")
		res.State = SkippedDuplicate
		return res
	}

	downloadPath := filepath.Join(r.downloadDir, utils.SanitizeFilename(b.Name)+".zip")
	if !r.claim("file:"+downloadPath, res.URL) {
		return fail(fmt.Errorf("%w: %s", domain.ErrDestinationConflict, downloadPath))
	}

	if err := r.limiter.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer r.limiter.Release(1)

	res.State = Downloading
	r.logger.Info().Str("branch", b.Name).Str("url", res.URL).Msg("Downloading branch snapshot")
	n, err := r.source.Download(ctx, res.URL, downloadPath)
	res.Bytes = n
	if err != nil {
		return fail(err)
	}

	res.State = Extracting
	if err := r.extract(ctx, downloadPath, dest, true); err != nil {
		return fail(err)
	}
	res.State = Routed

	if err := r.ledger.RecordBranch(ctx, res.URL); err != nil {
		return fail(fmt.Errorf("record branch %s: %w", res.URL, err))
	}
	res.State = Recorded
	r.logger.Info().Str("branch", b.Name).Str("destination", dest).Msg("Branch snapshot recorded")

	if r.removeDownloaded {
		if err := os.Remove(downloadPath); err != nil {
			r.logger.Warn().Err(err).Str("path", downloadPath).Msg("Failed to remove downloaded file")
		}
	}

	return res
}

// extract runs the extractor with a progress bar created on the first update
func (r *run) extract(ctx context.Context, src, dir string, strip bool) error {
	var bar *progressbar.ProgressBar
	defer func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}()

	_, err := r.extractor.Extract(ctx, src, dir, archive.Options{
		StripFirstComponent: strip,
		Progress: func(done, total int64) {
			if bar == nil {
				bar = utils.NewBytesBar(total, utils.DescExtracting+" "+filepath.Base(src), r.progress)
			}
			_ = bar.Set64(done)
		},
	})
	if err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(src), err)
	}
	return nil
}

func (p *Pipeline) printf(format string, args ...any) {
	p.outMu.Lock()
	defer p.outMu.Unlock()
	_, _ = fmt.Fprintf(p.out, format, args...)
}
