package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/rules"
)

func newRule(t *testing.T, pattern string, dest rules.Template, action func(context.Context, string) error) rules.Rule {
	t.Helper()
	p, err := rules.CompilePattern(pattern)
	require.NoError(t, err)
	r := rules.Rule{Pattern: p, Destination: dest}
	if action != nil {
		r.ActionName = "test"
		r.Action = action
	}
	return r
}

func TestRouter_Match_FirstRuleWins(t *testing.T) {
	r := New([]rules.Rule{
		newRule(t, `^widget-linux`, "first", nil),
		newRule(t, `^widget`, "second", nil),
		newRule(t, `.*\.tar\.gz$`, "third", nil),
	}, Options{})

	for i := 0; i < 20; i++ {
		rule, ok := r.Match("/tmp/downloads/widget-linux-x64.tar.gz")
		require.True(t, ok)
		assert.Equal(t, rules.Template("first"), rule.Destination)
	}

	rule, ok := r.Match("widget-src.zip")
	require.True(t, ok)
	assert.Equal(t, rules.Template("second"), rule.Destination)

	_, ok = r.Match("other.zip")
	assert.False(t, ok)
}

func TestRouter_Match_UsesBaseName(t *testing.T) {
	r := New([]rules.Rule{newRule(t, `^lib`, "out", nil)}, Options{})

	_, ok := r.Match("lib/dir/app.zip")
	assert.False(t, ok)
	_, ok = r.Match("app/dir/lib.zip")
	assert.True(t, ok)
}

func TestRouter_Resolve(t *testing.T) {
	r := New([]rules.Rule{newRule(t, `^widget`, "build/{0}/{1}/linux", nil)}, Options{})

	res, ok, err := r.Resolve("widget.tar.gz", []string{"2", "5"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "build/2/5/linux", res.Dir)
	assert.NotNil(t, res.Rule)

	_, ok, err = r.Resolve("nope.zip", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRouter_Resolve_Arity(t *testing.T) {
	r := New([]rules.Rule{newRule(t, `^widget`, "build/{0}/{1}", nil)}, Options{})

	_, ok, err := r.Resolve("widget.zip", []string{"2"})
	assert.True(t, ok)
	assert.ErrorIs(t, err, domain.ErrTemplateArity)
}

func TestRouter_Route_MovesAndRunsAction(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "downloads", "widget-1.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	var got []string
	action := func(_ context.Context, path string) error {
		got = append(got, path)
		return nil
	}
	dest := rules.Template(filepath.Join(tmp, "out", "{0}"))
	r := New([]rules.Rule{newRule(t, `^widget`, dest, action)}, Options{})

	result, err := r.Route(context.Background(), src, []string{"v1"})
	require.NoError(t, err)

	want := filepath.Join(tmp, "out", "v1", "widget-1.bin")
	assert.True(t, result.Matched)
	assert.Equal(t, filepath.Join(tmp, "out", "v1"), result.Destination)
	assert.Equal(t, want, result.Path)
	assert.Equal(t, []string{want}, got)

	assert.NoFileExists(t, src)
	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestRouter_Route_CreatesNestedDestination(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "widget.bin")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	dest := rules.Template(filepath.Join(tmp, "build", "{0}", "linux"))
	r := New([]rules.Rule{newRule(t, `^widget`, dest, nil)}, Options{})

	result, err := r.Route(context.Background(), src, []string{"2"})
	require.NoError(t, err)

	want := filepath.Join(tmp, "build", "2", "linux", "widget.bin")
	assert.Equal(t, want, result.Path)
	assert.FileExists(t, want)
	assert.NoFileExists(t, src)
}

func TestRouter_Route_NoMatchLeavesFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "readme.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))

	r := New([]rules.Rule{newRule(t, `^widget`, rules.Template(filepath.Join(tmp, "out")), nil)}, Options{})

	result, err := r.Route(context.Background(), src, nil)
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.FileExists(t, src)
	assert.NoDirExists(t, filepath.Join(tmp, "out"))
}

func TestRouter_Place_CustomPlacement(t *testing.T) {
	tmp := t.TempDir()
	dest := rules.Template(filepath.Join(tmp, "build", "{0}"))

	var actionPath string
	r := New([]rules.Rule{newRule(t, `^widget`, dest, func(_ context.Context, path string) error {
		actionPath = path
		return nil
	})}, Options{})

	var placedDir string
	result, err := r.Place(context.Background(), "/downloads/widget.tar.gz", []string{"3"},
		func(_ context.Context, src, dir string) (string, error) {
			placedDir = dir
			return filepath.Join(dir, filepath.Base(src)), nil
		})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmp, "build", "3"), placedDir)
	assert.DirExists(t, placedDir)
	assert.Equal(t, filepath.Join(placedDir, "widget.tar.gz"), actionPath)
	assert.Equal(t, actionPath, result.Path)
}

func TestRouter_Place_Errors(t *testing.T) {
	tmp := t.TempDir()
	dest := rules.Template(filepath.Join(tmp, "out"))
	placeErr := errors.New("extract failed")

	t.Run("placement error skips action", func(t *testing.T) {
		called := false
		r := New([]rules.Rule{newRule(t, `.*`, dest, func(context.Context, string) error {
			called = true
			return nil
		})}, Options{})

		result, err := r.Place(context.Background(), "a.zip", nil, func(context.Context, string, string) (string, error) {
			return "", placeErr
		})
		assert.ErrorIs(t, err, placeErr)
		assert.True(t, result.Matched)
		assert.False(t, called)
	})

	t.Run("action error is wrapped", func(t *testing.T) {
		actionErr := errors.New("boom")
		r := New([]rules.Rule{newRule(t, `.*`, dest, func(context.Context, string) error {
			return actionErr
		})}, Options{})

		_, err := r.Place(context.Background(), "a.zip", nil, func(_ context.Context, _, dir string) (string, error) {
			return filepath.Join(dir, "a.zip"), nil
		})
		assert.ErrorIs(t, err, actionErr)
		assert.Contains(t, err.Error(), "post-action test")
	})
}

func TestMoveInto_MissingSource(t *testing.T) {
	_, err := MoveInto(context.Background(), filepath.Join(t.TempDir(), "missing"), t.TempDir())
	assert.Error(t, err)
}
