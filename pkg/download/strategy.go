package download

import (
	"context"
	"io"
)

type Strategy interface {
	// Fetch retrieves the resource at url, writing every accepted chunk to
	// sink in order, and reports what was collected.
	Fetch(ctx context.Context, url string, sink io.Writer) (*Result, error)
}

// Result describes a completed fetch. BytesWritten may legitimately differ
// from ExpectedSize when the peer truncates or overshoots the final chunk;
// callers decide how loudly to complain.
type Result struct {
	ExpectedSize int64
	BytesWritten int64
	// Digest is the hex-encoded SHA-256 over the bytes written, in order.
	Digest string
}
