package download

import (
	"time"

	"github.com/replicate/sget/pkg/transport"
)

type Options struct {
	// Number of bytes requested per ranged fetch. If set to zero, 64 KiB
	// will be used.
	ChunkSize int64

	// Timeout for establishing each connection.
	ConnectTimeout time.Duration

	// Maximum number of consecutive empty reads tolerated at a single
	// offset before the run fails with ErrRetriesExhausted. Zero retries
	// forever with no delay, matching the historical behavior.
	MaxRetries int

	// Transport overrides how connections are opened. If nil, a plain TCP
	// dialer is used.
	Transport transport.Opener

	// Progress, if set, is invoked after every accepted chunk with the
	// bytes confirmed written so far and the discovered total.
	Progress func(position, total int64)
}
