package sget

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/replicate/sget/pkg/download"
	"github.com/replicate/sget/pkg/logging"
	"github.com/replicate/sget/pkg/sink"
)

// Getter drives one retrieval end to end: open the sink, run the download
// strategy against it, close the sink, and report what happened. It holds
// no state across runs.
type Getter struct {
	Downloader download.Strategy
	Sink       sink.Writer
}

func (g *Getter) DownloadFile(ctx context.Context, url string, dest string) (*download.Result, time.Duration, error) {
	if g.Sink == nil {
		if dest == "-" {
			g.Sink = &sink.StdoutWriter{}
		} else {
			g.Sink = &sink.FileWriter{}
		}
	}
	logger := logging.GetLogger()
	startTime := time.Now()

	out, err := g.Sink.Open(dest)
	if err != nil {
		return nil, 0, err
	}

	result, err := g.Downloader.Fetch(ctx, url, out)
	if err != nil {
		// Bytes already flushed stay on disk in a truncated state; the
		// non-zero exit is the signal that they are not the whole resource.
		_ = out.Close()
		return nil, 0, err
	}
	if err := out.Close(); err != nil {
		return nil, 0, fmt.Errorf("error finalizing %s: %w", dest, err)
	}

	elapsed := time.Since(startTime)
	throughput := humanize.Bytes(uint64(float64(result.BytesWritten) / elapsed.Seconds()))
	logger.Info().
		Str("dest", dest).
		Str("size", humanize.Bytes(uint64(result.BytesWritten))).
		Str("digest", fmt.Sprintf("sha256:%s", result.Digest)).
		Str("throughput", fmt.Sprintf("%s/s", throughput)).
		Str("elapsed", fmt.Sprintf("%.3fs", elapsed.Seconds())).
		Msg("Complete")
	return result, elapsed, nil
}
