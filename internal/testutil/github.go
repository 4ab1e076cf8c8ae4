package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/quantmind-br/releasesync/internal/domain"
)

// Asset is a downloadable file served by GitHubServer
type Asset struct {
	Name string
	Body []byte
}

// GitHubServer fakes the subset of the GitHub REST API and web archive
// endpoints the fetcher uses. It serves both API and web routes.
type GitHubServer struct {
	*httptest.Server

	mu       sync.Mutex
	releases []domain.Release
	files    map[string][]byte
	status   map[string]int
	hits     map[string]int
	headers  map[string]http.Header
	pageSize int
}

// NewGitHubServer starts a fake hosting provider closed on test cleanup
func NewGitHubServer(t *testing.T) *GitHubServer {
	t.Helper()

	s := &GitHubServer{
		files:   make(map[string][]byte),
		status:  make(map[string]int),
		hits:    make(map[string]int),
		headers: make(map[string]http.Header),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddRelease publishes a release with the given assets
func (s *GitHubServer) AddRelease(name string, assets ...Asset) domain.Release {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel := domain.Release{Name: name, TagName: name}
	for _, a := range assets {
		path := fmt.Sprintf("/download/%s/%s", name, a.Name)
		s.files[path] = a.Body
		rel.Assets = append(rel.Assets, domain.Asset{
			Name:               a.Name,
			BrowserDownloadURL: s.URL + path,
			Size:               int64(len(a.Body)),
		})
	}
	s.releases = append(s.releases, rel)
	return rel
}

// SetBranchArchive serves data as the zip snapshot of owner/repo@branch
func (s *GitHubServer) SetBranchArchive(owner, repo, branch string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := fmt.Sprintf("/%s/%s/archive/refs/heads/%s.zip", owner, repo, branch)
	s.files[path] = data
	return s.URL + path
}

// SetCommitArchive serves data as the zip snapshot of owner/repo at a commit
func (s *GitHubServer) SetCommitArchive(owner, repo, sha string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := fmt.Sprintf("/%s/%s/archive/%s.zip", owner, repo, sha)
	s.files[path] = data
	return s.URL + path
}

// SetPageSize splits release listings into pages linked with a Link header
func (s *GitHubServer) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetStatus forces a status code for a path
func (s *GitHubServer) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = code
}

// Hits returns how many requests a path received
func (s *GitHubServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// DownloadHits returns the number of requests to asset and archive paths
func (s *GitHubServer) DownloadHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for path, n := range s.hits {
		if !strings.HasPrefix(path, "/repos/") {
			total += n
		}
	}
	return total
}

// LastHeaders returns the headers of the most recent request to path
func (s *GitHubServer) LastHeaders(path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[path]
}

func (s *GitHubServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.headers[r.URL.Path] = r.Header.Clone()
	code, forced := s.status[r.URL.Path]
	body, isFile := s.files[r.URL.Path]
	releases := append([]domain.Release(nil), s.releases...)
	pageSize := s.pageSize
	s.mu.Unlock()

	if forced {
		w.WriteHeader(code)
		return
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/repos/") && strings.HasSuffix(r.URL.Path, "/releases"):
		w.Header().Set("Content-Type", "application/json")
		if releases == nil {
			releases = []domain.Release{}
		}
		if pageSize > 0 {
			releases = s.page(w, r, releases, pageSize)
		}
		_ = json.NewEncoder(w).Encode(releases)
	case isFile:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write(body)
	default:
		http.NotFound(w, r)
	}
}

func (s *GitHubServer) page(w http.ResponseWriter, r *http.Request, releases []domain.Release, size int) []domain.Release {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	start := (page - 1) * size
	if start >= len(releases) {
		return []domain.Release{}
	}
	end := start + size
	if end < len(releases) {
		next := *r.URL
		q := next.Query()
		q.Set("page", strconv.Itoa(page+1))
		next.RawQuery = q.Encode()
		w.Header().Set("Link", fmt.Sprintf(`<%s%s>; rel="next"`, s.URL, next.RequestURI()))
	} else {
		end = len(releases)
	}
	return releases[start:end]
}
