package testutil

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// Entry is one file or directory inside a generated archive.
// Names ending in "/" are directories.
type Entry struct {
	Name string
	Body string
	Mode int64
}

// TarGzBytes builds a gzip-compressed tar in memory
func TarGzBytes(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	for _, e := range entries {
		mode := e.Mode
		if mode == 0 {
			mode = 0644
		}
		hdr := &tar.Header{
			Name: e.Name,
			Mode: mode,
			Size: int64(len(e.Body)),
		}
		if isDir(e.Name) {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
			hdr.Size = 0
		} else {
			hdr.Typeflag = tar.TypeReg
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if !isDir(e.Name) {
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gzw.Close())
	return buf.Bytes()
}

// ZipBytes builds a zip archive in memory
func ZipBytes(t *testing.T, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		w, err := zw.Create(e.Name)
		require.NoError(t, err)
		if !isDir(e.Name) {
			_, err = w.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// WriteTarGz writes a gzip-compressed tar to dir/name and returns its path
func WriteTarGz(t *testing.T, dir, name string, entries []Entry) string {
	t.Helper()
	return writeBytes(t, dir, name, TarGzBytes(t, entries))
}

// WriteZip writes a zip archive to dir/name and returns its path
func WriteZip(t *testing.T, dir, name string, entries []Entry) string {
	t.Helper()
	return writeBytes(t, dir, name, ZipBytes(t, entries))
}

// ListFiles returns every regular file under root as slash-separated relative paths
func ListFiles(t *testing.T, root string) []string {
	t.Helper()

	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return files
}

func writeBytes(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func isDir(name string) bool {
	return len(name) > 0 && name[len(name)-1] == '/'
}
