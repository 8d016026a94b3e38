package download

import (
	"errors"
)

// ErrRetriesExhausted is returned when a bounded run (MaxRetries > 0) sees
// more consecutive empty chunks at one offset than it is willing to retry.
var ErrRetriesExhausted = errors.New("empty chunk retries exhausted")
