package manifest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.False(t, opts.ContinueOnError)
	assert.Equal(t, 1, opts.Concurrency)
	assert.Empty(t, opts.DownloadDir)
}

func TestRepository_Name(t *testing.T) {
	assert.Equal(t, "widget", Repository{Rules: "/etc/rules/widget.conf"}.Name())
	assert.Equal(t, "gadget.v2", Repository{Rules: "gadget.v2.yaml"}.Name())
	assert.Equal(t, "plain", Repository{Rules: "plain"}.Name())
}

func TestConfig_DownloadDirFor(t *testing.T) {
	tests := []struct {
		name    string
		options Options
		repo    Repository
		want    string
	}{
		{
			name: "settings directory",
			repo: Repository{Rules: "widget.conf"},
			want: filepath.Join("downloads", "widget"),
		},
		{
			name:    "manifest directory",
			options: Options{DownloadDir: "/srv/dl"},
			repo:    Repository{Rules: "widget.conf"},
			want:    filepath.Join("/srv/dl", "widget"),
		},
		{
			name:    "entry directory wins",
			options: Options{DownloadDir: "/srv/dl"},
			repo:    Repository{Rules: "widget.conf", DownloadDir: "/tmp/widget"},
			want:    "/tmp/widget",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Options: tt.options}
			assert.Equal(t, tt.want, cfg.DownloadDirFor(tt.repo, "downloads"))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Config{}).Validate(), ErrNoRepositories)
	assert.ErrorIs(t, (&Config{Repositories: []Repository{{Rules: "a"}, {}}}).Validate(), ErrEmptyRules)
	assert.ErrorIs(t, (&Config{Repositories: []Repository{{Rules: "a/b.conf"}, {Rules: "a//b.conf"}}}).Validate(), ErrDuplicateRules)
	assert.NoError(t, (&Config{Repositories: []Repository{{Rules: "a.conf"}, {Rules: "b.conf"}}}).Validate())
}
