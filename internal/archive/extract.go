package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/quantmind-br/releasesync/internal/domain"
	"github.com/quantmind-br/releasesync/internal/utils"
)

// Format is an archive kind
type Format string

const (
	FormatTarGz   Format = "tar.gz"
	FormatZip     Format = "zip"
	FormatUnknown Format = ""
)

// Options controls a single extraction
type Options struct {
	// StripFirstComponent removes the leading path segment of every entry.
	StripFirstComponent bool
	// Progress receives cumulative extracted bytes after each entry.
	// total is -1 when it cannot be known up front (tar streams).
	Progress func(done, total int64)
}

// Extractor unpacks archives into directories
type Extractor struct {
	logger *utils.Logger
}

// ExtractorOptions contains options for creating an Extractor
type ExtractorOptions struct {
	Logger *utils.Logger
}

// NewExtractor creates a new Extractor
func NewExtractor(opts ExtractorOptions) *Extractor {
	return &Extractor{
		logger: opts.Logger,
	}
}

// FormatOf returns the archive kind for a file name
func FormatOf(name string) Format {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	default:
		return FormatUnknown
	}
}

// IsArchive reports whether name has a supported archive suffix
func IsArchive(name string) bool {
	return FormatOf(name) != FormatUnknown
}

// Extract unpacks archivePath into destDir and returns the number of bytes written
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string, opts Options) (int64, error) {
	format := FormatOf(archivePath)
	if format == FormatUnknown {
		return 0, &domain.UnsupportedFormatError{Path: archivePath}
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, fmt.Errorf("mkdir failed: %w", err)
	}

	if e.logger != nil {
		e.logger.Debug().
			Str("archive", archivePath).
			Str("dest", destDir).
			Bool("strip", opts.StripFirstComponent).
			Msg("Extracting archive")
	}

	switch format {
	case FormatTarGz:
		return e.extractTarGz(ctx, archivePath, destDir, opts)
	default:
		return e.extractZip(ctx, archivePath, destDir, opts)
	}
}

func (e *Extractor) extractTarGz(ctx context.Context, archivePath, destDir string, opts Options) (int64, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("gzip reader failed: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	var done int64
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return done, fmt.Errorf("tar read failed: %w", err)
		}

		targetPath, ok := e.targetPath(destDir, header.Name, opts.StripFirstComponent)
		if !ok {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return done, fmt.Errorf("mkdir failed: %w", err)
			}
		case tar.TypeReg:
			n, err := writeFile(targetPath, tr, os.FileMode(header.Mode).Perm())
			done += n
			if err != nil {
				return done, err
			}
		case tar.TypeSymlink:
			if err := e.writeSymlink(destDir, targetPath, header.Linkname); err != nil {
				return done, err
			}
		default:
			continue
		}

		if opts.Progress != nil {
			opts.Progress(done, -1)
		}
	}

	return done, nil
}

func (e *Extractor) extractZip(ctx context.Context, archivePath, destDir string, opts Options) (int64, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("zip reader failed: %w", err)
	}
	defer zr.Close()

	type entry struct {
		file   *zip.File
		target string
	}

	var entries []entry
	var total int64
	for _, zf := range zr.File {
		targetPath, ok := e.targetPath(destDir, zf.Name, opts.StripFirstComponent)
		if !ok {
			continue
		}
		entries = append(entries, entry{file: zf, target: targetPath})
		if !zf.FileInfo().IsDir() {
			total += int64(zf.UncompressedSize64)
		}
	}

	var done int64
	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		if en.file.FileInfo().IsDir() {
			if err := os.MkdirAll(en.target, 0755); err != nil {
				return done, fmt.Errorf("mkdir failed: %w", err)
			}
		} else {
			n, err := extractZipFile(en.file, en.target)
			done += n
			if err != nil {
				return done, err
			}
		}

		if opts.Progress != nil {
			opts.Progress(done, total)
		}
	}

	return done, nil
}

func extractZipFile(zf *zip.File, targetPath string) (int64, error) {
	rc, err := zf.Open()
	if err != nil {
		return 0, fmt.Errorf("open zip entry %s: %w", zf.Name, err)
	}
	defer rc.Close()

	return writeFile(targetPath, rc, zf.Mode().Perm())
}

// targetPath maps an entry name to its destination, reporting false for entries to skip
func (e *Extractor) targetPath(destDir, name string, strip bool) (string, bool) {
	if strip {
		idx := strings.Index(name, "/")
		if idx < 0 {
			return "", false
		}
		name = name[idx+1:]
	}

	if name == "" || name == "." || name == "./" {
		return "", false
	}

	targetPath := filepath.Join(destDir, filepath.FromSlash(name))
	if !utils.WithinDir(destDir, targetPath) {
		if e.logger != nil {
			e.logger.Warn().Str("entry", name).Msg("Skipping archive entry outside destination")
		}
		return "", false
	}

	return targetPath, true
}

func (e *Extractor) writeSymlink(destDir, targetPath, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(targetPath), linkname)
	}
	if filepath.IsAbs(linkname) || !utils.WithinDir(destDir, resolved) {
		if e.logger != nil {
			e.logger.Warn().Str("link", linkname).Msg("Skipping symlink pointing outside destination")
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return fmt.Errorf("mkdir failed: %w", err)
	}
	if err := os.Remove(targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return os.Symlink(linkname, targetPath)
}

func writeFile(targetPath string, r io.Reader, mode os.FileMode) (int64, error) {
	if mode == 0 {
		mode = 0644
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return 0, fmt.Errorf("mkdir failed: %w", err)
	}

	file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}

	n, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		return n, fmt.Errorf("copy failed: %w", err)
	}
	return n, file.Close()
}
