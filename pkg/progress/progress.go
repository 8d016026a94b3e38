// Package progress renders the single download bar shown on stderr. It is
// fed by the download progress callback rather than wrapping a reader,
// since chunks are accepted one at a time rather than streamed.
package progress

import (
	"io"

	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
)

type Bar struct {
	container *mpb.Progress
	bar       *mpb.Bar
}

// NewBar creates a bar for a download of total bytes, labeled with name.
func NewBar(out io.Writer, name string, total int64) *Bar {
	container := mpb.New(mpb.WithOutput(out), mpb.WithWidth(60))
	bar := container.AddBar(
		total,
		mpb.PrependDecorators(
			decor.Name(name+" "),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" ] "),
			decor.AverageSpeed(decor.UnitKiB, "% .2f"),
		),
	)
	return &Bar{container: container, bar: bar}
}

// Set moves the bar to an absolute position.
func (b *Bar) Set(position int64) {
	b.bar.SetCurrent(position)
}

// Done completes the bar at its current position and waits for the final
// render. Called on both clean completion and mismatch, so the bar never
// leaves the terminal mid-line.
func (b *Bar) Done() {
	b.bar.SetTotal(-1, true)
	b.container.Wait()
}
