package utils

import (
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Standard progress bar descriptions
const (
	DescDownloading = "Downloading"
	DescExtracting  = "Extracting"
)

// ProgressOptions controls where progress bars render
type ProgressOptions struct {
	// Silent disables rendering; the bar still counts.
	Silent bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// NewBytesBar creates a consistently styled byte-count progress bar.
//
// Parameters:
//   - total: Total number of bytes. Use -1 (or 0) for unknown totals (spinner mode).
//   - description: Text shown before the bar, usually DescDownloading or DescExtracting
//     followed by the file name.
//
// Example:
//
//	bar := utils.NewBytesBar(resp.ContentLength, utils.DescDownloading+" "+name, opts)
//	defer bar.Finish()
//	bar.Add64(int64(n))
func NewBytesBar(total int64, description string, opts ProgressOptions) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}

	if opts.Silent {
		return progressbar.DefaultBytesSilent(total, description)
	}

	var output io.Writer = os.Stderr
	if opts.Output != nil {
		output = opts.Output
	}

	barOpts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(output),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			_, _ = io.WriteString(output, "\n")
		}),
		progressbar.OptionFullWidth(),
	}

	if total < 0 {
		barOpts = append(barOpts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	return progressbar.NewOptions64(total, barOpts...)
}
