package train

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// progress wraps an optional progress bar. A nil *progress is a no-op.
type progress struct {
	bar *progressbar.ProgressBar
}

func newProgress(enabled bool, w io.Writer, total int, description string) *progress {
	if !enabled {
		return nil
	}
	return &progress{bar: progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)}
}

func (p *progress) add(n int) {
	if p == nil {
		return
	}
	_ = p.bar.Add(n)
}

func (p *progress) describe(description string) {
	if p == nil {
		return
	}
	p.bar.Describe(description)
}

func (p *progress) finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}
