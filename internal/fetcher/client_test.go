package fetcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantmind-br/releasesync/internal/cache"
	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/fetcher"
	"github.com/quantmind-br/releasesync/internal/mocks"
	"github.com/quantmind-br/releasesync/internal/testutil"
	"github.com/quantmind-br/releasesync/internal/utils"
)

func newClient(t *testing.T, srv *testutil.GitHubServer, mutate func(*fetcher.ClientOptions)) *fetcher.Client {
	t.Helper()

	opts := fetcher.ClientOptions{
		APIURL:          srv.URL,
		WebURL:          srv.URL,
		RateLimitFactor: 1000,
		RetryInterval:   time.Millisecond,
		Progress:        utils.ProgressOptions{Silent: true},
	}
	if mutate != nil {
		mutate(&opts)
	}

	client, err := fetcher.NewClient(opts)
	require.NoError(t, err)
	return client
}

func TestDefaultClientOptions(t *testing.T) {
	opts := fetcher.DefaultClientOptions()

	assert.Equal(t, fetcher.DefaultAPIURL, opts.APIURL)
	assert.Equal(t, fetcher.DefaultWebURL, opts.WebURL)
	assert.Equal(t, 5*time.Minute, opts.Timeout)
	assert.Equal(t, 0, opts.MaxRetries)
	assert.Equal(t, 1.0, opts.RateLimitFactor)
	assert.True(t, strings.HasPrefix(opts.UserAgent, "releasesync/"))
}

func TestNewClient(t *testing.T) {
	t.Run("zero options use defaults", func(t *testing.T) {
		client, err := fetcher.NewClient(fetcher.ClientOptions{})
		require.NoError(t, err)
		assert.Equal(t, time.Second, client.RateDelay())
	})

	t.Run("rate limit factor sets delay", func(t *testing.T) {
		client, err := fetcher.NewClient(fetcher.ClientOptions{RateLimitFactor: 4})
		require.NoError(t, err)
		assert.Equal(t, 250*time.Millisecond, client.RateDelay())
	})

	t.Run("negative rate limit factor", func(t *testing.T) {
		_, err := fetcher.NewClient(fetcher.ClientOptions{RateLimitFactor: -1})
		var cfgErr *domain.ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("invalid api url", func(t *testing.T) {
		_, err := fetcher.NewClient(fetcher.ClientOptions{APIURL: "not a url"})
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "api_url", cfgErr.Field)
	})
}

func TestClient_ListReleases(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	srv.AddRelease("v2.5", testutil.Asset{Name: "widget-linux-x64.tar.gz", Body: []byte("a")})
	srv.AddRelease("v2.6", testutil.Asset{Name: "widget-src.zip", Body: []byte("bb")})

	client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.Token = "secret" })

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	require.NoError(t, err)

	require.Len(t, releases, 2)
	assert.Equal(t, "v2.5", releases[0].Name)
	require.Len(t, releases[0].Assets, 1)
	assert.Equal(t, "widget-linux-x64.tar.gz", releases[0].Assets[0].Name)
	assert.Equal(t, srv.URL+"/download/v2.5/widget-linux-x64.tar.gz", releases[0].Assets[0].BrowserDownloadURL)
	assert.Equal(t, int64(2), releases[1].Assets[0].Size)

	headers := srv.LastHeaders("/repos/acme/widget/releases")
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "application/vnd.github+json", headers.Get("Accept"))
	assert.True(t, strings.HasPrefix(headers.Get("User-Agent"), "releasesync/"))
}

func TestClient_ListReleases_NoToken(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	client := newClient(t, srv, nil)

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	require.NoError(t, err)
	assert.Empty(t, releases)
	assert.Empty(t, srv.LastHeaders("/repos/acme/widget/releases").Get("Authorization"))
}

func TestClient_ListReleases_Pagination(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	for _, name := range []string{"v1.0", "v1.1", "v1.2", "v1.3", "v1.4"} {
		srv.AddRelease(name)
	}
	srv.SetPageSize(2)

	client := newClient(t, srv, nil)

	releases, err := client.ListReleases(context.Background(), "acme", "widget")
	require.NoError(t, err)

	require.Len(t, releases, 5)
	assert.Equal(t, "v1.4", releases[4].Name)
	assert.Equal(t, 3, srv.Hits("/repos/acme/widget/releases"))
}

func TestClient_ListReleases_HTTPError(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	srv.SetStatus("/repos/acme/widget/releases", http.StatusNotFound)

	client := newClient(t, srv, nil)

	_, err := client.ListReleases(context.Background(), "acme", "widget")

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, domain.KindHTTP, domain.KindOf(err))
}

func TestClient_ListReleases_Retries(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantHits   int
	}{
		{"no retries by default", 0, 1},
		{"retries when configured", 2, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := testutil.NewGitHubServer(t)
			srv.SetStatus("/repos/acme/widget/releases", http.StatusServiceUnavailable)

			client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.MaxRetries = tc.maxRetries })

			_, err := client.ListReleases(context.Background(), "acme", "widget")
			assert.Error(t, err)
			assert.Equal(t, tc.wantHits, srv.Hits("/repos/acme/widget/releases"))
		})
	}
}

func TestClient_ListReleases_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := fetcher.NewClient(fetcher.ClientOptions{APIURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ListReleases(context.Background(), "acme", "widget")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.True(t, domain.IsRetryable(err))
}

func TestClient_ListReleases_Cache(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	srv.AddRelease("v2.5")

	t.Run("miss stores listing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockCache := mocks.NewMockCache(ctrl)
		key := cache.ReleasesKey(srv.URL + "/repos/acme/widget/releases?per_page=100")

		mockCache.EXPECT().Get(gomock.Any(), key).Return(nil, domain.ErrCacheMiss)
		mockCache.EXPECT().Set(gomock.Any(), key, gomock.Any(), 10*time.Minute).
			DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
				var stored []domain.Release
				require.NoError(t, json.Unmarshal(value, &stored))
				assert.Equal(t, "v2.5", stored[0].Name)
				return nil
			})

		client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.Cache = mockCache })

		releases, err := client.ListReleases(context.Background(), "acme", "widget")
		require.NoError(t, err)
		assert.Len(t, releases, 1)
	})

	t.Run("hit skips the network", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockCache := mocks.NewMockCache(ctrl)

		cached, err := json.Marshal([]domain.Release{{Name: "cached"}})
		require.NoError(t, err)
		mockCache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(cached, nil)

		before := srv.Hits("/repos/acme/widget/releases")
		client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.Cache = mockCache })

		releases, err := client.ListReleases(context.Background(), "acme", "widget")
		require.NoError(t, err)
		require.Len(t, releases, 1)
		assert.Equal(t, "cached", releases[0].Name)
		assert.Equal(t, before, srv.Hits("/repos/acme/widget/releases"))
	})

	t.Run("cache errors are ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockCache := mocks.NewMockCache(ctrl)

		mockCache.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, os.ErrPermission)
		mockCache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(os.ErrPermission)

		client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.Cache = mockCache })

		releases, err := client.ListReleases(context.Background(), "acme", "widget")
		require.NoError(t, err)
		assert.Len(t, releases, 1)
	})
}

func TestClient_Download(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	body := []byte(strings.Repeat("x", 3*fetcher.ChunkSize+17))
	rel := srv.AddRelease("v2.5", testutil.Asset{Name: "widget.tar.gz", Body: body})

	client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.Token = "secret" })
	dest := filepath.Join(t.TempDir(), "downloads", "v2.5", "widget.tar.gz")

	n, err := client.Download(context.Background(), rel.Assets[0].BrowserDownloadURL, dest)
	require.NoError(t, err)

	assert.Equal(t, int64(len(body)), n)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, data)

	headers := srv.LastHeaders("/download/v2.5/widget.tar.gz")
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Empty(t, headers.Get("Accept"))
}

func TestClient_Download_HTTPError(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	client := newClient(t, srv, nil)
	dest := filepath.Join(t.TempDir(), "missing.zip")

	_, err := client.Download(context.Background(), srv.URL+"/download/v1/missing.zip", dest)

	var httpErr *domain.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.NoFileExists(t, dest)
}

func TestClient_Download_RateDelayHonorsContext(t *testing.T) {
	srv := testutil.NewGitHubServer(t)
	rel := srv.AddRelease("v1", testutil.Asset{Name: "a.zip", Body: []byte("zip")})

	client := newClient(t, srv, func(o *fetcher.ClientOptions) { o.RateLimitFactor = 0.001 })
	dest := filepath.Join(t.TempDir(), "a.zip")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	n, err := client.Download(ctx, rel.Assets[0].BrowserDownloadURL, dest)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(3), n)
	assert.FileExists(t, dest)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestClient_Download_SlowBodyOutlivesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 4; i++ {
			_, _ = w.Write([]byte("chunk"))
			flusher.Flush()
			time.Sleep(40 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client, err := fetcher.NewClient(fetcher.ClientOptions{
		APIURL:          srv.URL,
		WebURL:          srv.URL,
		Timeout:         100 * time.Millisecond,
		RateLimitFactor: 1000,
		Progress:        utils.ProgressOptions{Silent: true},
	})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "slow.bin")
	n, err := client.Download(context.Background(), srv.URL+"/slow.bin", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(20), n)
}

func TestClient_Download_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := fetcher.NewClient(fetcher.ClientOptions{
		APIURL:   srv.URL,
		WebURL:   srv.URL,
		Timeout:  50 * time.Millisecond,
		Progress: utils.ProgressOptions{Silent: true},
	})
	require.NoError(t, err)

	_, err = client.Download(context.Background(), srv.URL+"/stuck.bin", filepath.Join(t.TempDir(), "stuck.bin"))
	assert.Error(t, err)
}

func TestClient_BranchArchiveURL(t *testing.T) {
	client, err := fetcher.NewClient(fetcher.ClientOptions{WebURL: "https://github.com/"})
	require.NoError(t, err)

	assert.Equal(t,
		"https://github.com/acme/widget/archive/refs/heads/main.zip",
		client.BranchArchiveURL("acme", "widget", domain.BranchRef{Name: "main"}))
	assert.Equal(t,
		"https://github.com/acme/widget/archive/0123abcd.zip",
		client.BranchArchiveURL("acme", "widget", domain.BranchRef{Name: "main", Commit: "0123abcd"}))
}

func TestClient_ImplementsReleaseSource(t *testing.T) {
	var _ domain.ReleaseSource = (*fetcher.Client)(nil)
}
