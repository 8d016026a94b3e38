// Package sink provides the output destinations a download can be written
// to. A sink is opened once at the start of a run, written strictly
// forward, and closed when the run ends.
package sink

import (
	"fmt"
	"io"
	"os"
)

// Writer opens the sink for a destination path. The returned WriteCloser
// receives chunks sequentially in download order; no seeking ever happens.
type Writer interface {
	Open(destPath string) (io.WriteCloser, error)
}

// FileWriter writes to a regular file, truncating or creating it at open.
type FileWriter struct{}

var _ Writer = &FileWriter{}

func (FileWriter) Open(destPath string) (io.WriteCloser, error) {
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", destPath, err)
	}
	return out, nil
}

// StdoutWriter streams the body to stdout, ignoring the destination path.
type StdoutWriter struct{}

var _ Writer = &StdoutWriter{}

func (StdoutWriter) Open(destPath string) (io.WriteCloser, error) {
	// stdout is shared with the process; Close must not close it.
	return nopCloser{os.Stdout}, nil
}

// Discard swallows everything. Useful for tests and benchmarking the
// retrieval path without disk I/O.
type Discard struct{}

var _ Writer = &Discard{}

func (Discard) Open(destPath string) (io.WriteCloser, error) {
	return nopCloser{io.Discard}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
