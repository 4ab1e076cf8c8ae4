package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "release tag", input: "v2.5", expected: "v2.5"},
		{name: "valid filename", input: "test-file.md", expected: "test-file.md"},
		{name: "spaces", input: "Release 1.0 (final)", expected: "Release-1.0-(final)"},
		{name: "branch with slash", input: "feature/login", expected: "feature-login"},
		{name: "backslash", input: `win\path`, expected: "win-path"},
		{name: "invalid characters", input: "test:file<>?*.md", expected: "test-file-.md"},
		{name: "dash and space runs", input: "test--file  name.md", expected: "test-file-name.md"},
		{name: "tab", input: "tab\tname", expected: "tab-name"},
		{name: "control characters", input: "bell\x07name", expected: "bellname"},
		{name: "leading and trailing dashes", input: "-test-file-", expected: "test-file"},
		{name: "trailing dot", input: "v1.", expected: "v1"},
		{name: "dot dot", input: "..", expected: "untitled"},
		{name: "Windows reserved name", input: "CON.md", expected: "_CON.md"},
		{name: "Windows reserved lower case", input: "nul", expected: "_nul"},
		{name: "empty string", input: "", expected: "untitled"},
		{name: "only invalid characters", input: "<>:\"|?*", expected: "untitled"},
		{name: "decomposed accent", input: "cafe\u0301", expected: "caf\u00e9"},
		{name: "very long name", input: strings.Repeat("a", 250), expected: strings.Repeat("a", MaxFilenameLength)},
		{name: "long name cut at rune boundary", input: strings.Repeat("a", 199) + "\u00e9\u00e9", expected: strings.Repeat("a", 199)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	t.Run("creates every level", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "build", "2", "linux")

		require.NoError(t, EnsureDir(dir))

		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing directory", func(t *testing.T) {
		dir := t.TempDir()

		require.NoError(t, EnsureDir(dir))
		require.NoError(t, EnsureDir(dir))
	})

	t.Run("file in the way", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

		assert.Error(t, EnsureDir(filepath.Join(file, "sub")))
	})
}

func TestExpandPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "home directory with slash",
			input:    "~/test",
			expected: filepath.Join(os.Getenv("HOME"), "test"),
		},
		{
			name:     "home directory only",
			input:    "~",
			expected: os.Getenv("HOME"),
		},
		{
			name:     "regular path",
			input:    "/tmp/test",
			expected: "/tmp/test",
		},
		{
			name:     "relative path",
			input:    "./test",
			expected: "./test",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExpandPath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithinDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		dir      string
		target   string
		expected bool
	}{
		{"child", "/data/out", "/data/out/a/b.txt", true},
		{"same dir", "/data/out", "/data/out", true},
		{"parent escape", "/data/out", "/data/out/../secret", false},
		{"sibling prefix", "/data/out", "/data/outside/file", false},
		{"dotdot named file", "/data/out", "/data/out/..hidden", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WithinDir(tt.dir, tt.target))
		})
	}
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	src := filepath.Join(tempDir, "src.bin")
	dst := filepath.Join(tempDir, "dest", "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, MoveFile(src, dst))

	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestMoveFile_MissingSource(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	err := MoveFile(filepath.Join(tempDir, "nope"), filepath.Join(tempDir, "dst"))
	assert.Error(t, err)
}
