package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quantmind-br/releasesync/internal/cache"
	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/utils"
	"github.com/quantmind-br/releasesync/pkg/version"
)

// Hosting provider defaults
const (
	DefaultAPIURL = "https://api.github.com"
	DefaultWebURL = "https://github.com"
)

// ChunkSize is the read size used when streaming downloads
const ChunkSize = 8 * 1024

const releasesPerPage = 100

// Client talks to the GitHub REST API and downloads release assets
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	apiURL     string
	webURL     string
	token      string
	userAgent  string
	retrier    *Retrier
	cache      domain.Cache
	cacheTTL   time.Duration
	rateDelay  time.Duration
	progress   utils.ProgressOptions
	logger     *utils.Logger
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	APIURL string
	WebURL string
	// Token is sent as a bearer token when set
	Token      string
	// Timeout bounds each API request and the wait for a download's
	// response headers. Download bodies stream without a deadline.
	Timeout    time.Duration
	MaxRetries int
	// RetryInterval is the first backoff interval, 1s by default
	RetryInterval time.Duration
	// RateLimitFactor sets the pause after each download to 1/factor seconds
	RateLimitFactor float64
	// Cache stores release listings when set
	Cache      domain.Cache
	CacheTTL   time.Duration
	UserAgent  string
	HTTPClient *http.Client
	Progress   utils.ProgressOptions
	Logger     *utils.Logger
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		APIURL:          DefaultAPIURL,
		WebURL:          DefaultWebURL,
		Timeout:         5 * time.Minute,
		MaxRetries:      0,
		RateLimitFactor: 1,
		CacheTTL:        10 * time.Minute,
		UserAgent:       version.UserAgent(),
	}
}

// NewClient creates a new hosting provider client
func NewClient(opts ClientOptions) (*Client, error) {
	defaults := DefaultClientOptions()
	if opts.APIURL == "" {
		opts.APIURL = defaults.APIURL
	}
	if opts.WebURL == "" {
		opts.WebURL = defaults.WebURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.RateLimitFactor < 0 {
		return nil, domain.NewConfigError("rate_limit_factor", fmt.Sprintf("must be positive, got %g", opts.RateLimitFactor))
	}
	if opts.RateLimitFactor == 0 {
		opts.RateLimitFactor = defaults.RateLimitFactor
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}

	for name, raw := range map[string]string{"api_url": opts.APIURL, "web_url": opts.WebURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, domain.NewConfigError(name, fmt.Sprintf("invalid URL %q", raw))
		}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: newTransport(opts.Timeout)}
	}

	logger := opts.Logger
	if logger == nil {
		logger = utils.Nop()
	}

	return &Client{
		httpClient: httpClient,
		timeout:    opts.Timeout,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		webURL:     strings.TrimRight(opts.WebURL, "/"),
		token:      opts.Token,
		userAgent:  opts.UserAgent,
		retrier: NewRetrier(RetrierOptions{
			MaxRetries:      opts.MaxRetries,
			InitialInterval: opts.RetryInterval,
			MaxInterval:     30 * time.Second,
			Multiplier:      2.0,
		}),
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		rateDelay: time.Duration(float64(time.Second) / opts.RateLimitFactor),
		progress:  opts.Progress,
		logger:    logger.WithComponent("fetcher"),
	}, nil
}

// newTransport limits connection setup and header waits but not body reads
func newTransport(timeout time.Duration) http.RoundTripper {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	t := base.Clone()
	t.ResponseHeaderTimeout = timeout
	return t
}

// RateDelay returns the pause applied after each download
func (c *Client) RateDelay() time.Duration {
	return c.rateDelay
}

// ListReleases returns every release of owner/repo, following pagination
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]domain.Release, error) {
	first := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.apiURL, url.PathEscape(owner), url.PathEscape(repo), releasesPerPage)

	if cached, ok := c.cachedReleases(ctx, first); ok {
		c.logger.Debug().Str("url", first).Int("releases", len(cached)).Msg("Release list served from cache")
		return cached, nil
	}

	var releases []domain.Release
	next := first
	for next != "" {
		page, err := RetryWithValue(ctx, c.retrier, func() (releasePage, error) {
			return c.fetchReleasePage(ctx, next)
		})
		if err != nil {
			return nil, err
		}
		releases = append(releases, page.releases...)
		next = page.next
	}

	c.logger.Debug().
		Str("repository", owner+"/"+repo).
		Int("releases", len(releases)).
		Msg("Fetched release list")

	c.storeReleases(ctx, first, releases)
	return releases, nil
}

type releasePage struct {
	releases []domain.Release
	next     string
}

func (c *Client) fetchReleasePage(ctx context.Context, pageURL string) (releasePage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, pageURL, true)
	if err != nil {
		return releasePage{}, err
	}
	defer resp.Body.Close()

	var releases []domain.Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return releasePage{}, fmt.Errorf("decode releases from %s: %w", pageURL, err)
	}
	return releasePage{releases: releases, next: nextLink(resp.Header.Get("Link"))}, nil
}

// Download streams rawURL into localPath and pauses for the rate delay
func (c *Client) Download(ctx context.Context, rawURL, localPath string) (int64, error) {
	n, err := RetryWithValue(ctx, c.retrier, func() (int64, error) {
		return c.download(ctx, rawURL, localPath)
	})
	if err != nil {
		return n, err
	}

	if err := c.pause(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func (c *Client) download(ctx context.Context, rawURL, localPath string) (int64, error) {
	if err := utils.EnsureDir(filepath.Dir(localPath)); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}

	resp, err := c.do(ctx, rawURL, false)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	bar := utils.NewBytesBar(resp.ContentLength, utils.DescDownloading+" "+filepath.Base(localPath), c.progress)
	defer func() { _ = bar.Finish() }()

	buf := make([]byte, ChunkSize)
	var written int64
	for {
		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, err := f.Write(buf[:nr])
			written += int64(nw)
			_ = bar.Add(nw)
			if err != nil {
				return written, fmt.Errorf("write %s: %w", localPath, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("download %s: %w", rawURL, readErr)
		}
	}

	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", localPath, err)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Str("path", localPath).
		Int64("bytes", written).
		Msg("Downloaded")
	return written, nil
}

// BranchArchiveURL returns the zip snapshot URL of a branch or pinned commit
func (c *Client) BranchArchiveURL(owner, repo string, ref domain.BranchRef) string {
	if ref.Commit != "" {
		return fmt.Sprintf("%s/%s/%s/archive/%s.zip", c.webURL, owner, repo, ref.Commit)
	}
	return fmt.Sprintf("%s/%s/%s/archive/refs/heads/%s.zip", c.webURL, owner, repo, ref.Name)
}

// do performs a GET and maps non-2xx responses to *domain.HTTPError
func (c *Client) do(ctx context.Context, rawURL string, api bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()

		httpErr := domain.NewHTTPError(rawURL, resp.StatusCode, resp.Status)
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, fmt.Errorf("%w: %w", domain.ErrRateLimited, httpErr)
		}
		return nil, httpErr
	}

	return resp, nil
}

// pause waits for the rate delay unless ctx ends first
func (c *Client) pause(ctx context.Context) error {
	if c.rateDelay <= 0 {
		return nil
	}

	timer := time.NewTimer(c.rateDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) cachedReleases(ctx context.Context, key string) ([]domain.Release, bool) {
	if c.cache == nil {
		return nil, false
	}

	data, err := c.cache.Get(ctx, cache.ReleasesKey(key))
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			c.logger.Debug().Err(err).Msg("Cache read failed")
		}
		return nil, false
	}

	var releases []domain.Release
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, false
	}
	return releases, true
}

func (c *Client) storeReleases(ctx context.Context, key string, releases []domain.Release) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(releases)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, cache.ReleasesKey(key), data, c.cacheTTL); err != nil {
		c.logger.Debug().Err(err).Msg("Cache write failed")
	}
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}

		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}

		for _, param := range segments[1:] {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if ok && strings.TrimSpace(key) == "rel" && strings.Trim(strings.TrimSpace(value), `"`) == "next" {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}
