// Package archive extracts downloaded release assets and branch snapshots.
//
// Two kinds are supported, selected by file name suffix:
//   - gzip-compressed tar (.tar.gz, .tgz)
//   - zip (.zip)
//
// Anything else fails with *domain.UnsupportedFormatError.
//
// Branch snapshots wrap their content in a single top-level folder; pass
// Options.StripFirstComponent to drop it. With stripping enabled, entries that
// sit at the archive root (no "/" in their name) are skipped.
//
// Usage:
//
//	x := archive.NewExtractor(archive.ExtractorOptions{Logger: logger})
//	n, err := x.Extract(ctx, "main.zip", "src/main", archive.Options{StripFirstComponent: true})
package archive
