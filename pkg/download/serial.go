package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/replicate/sget/pkg/logging"
	"github.com/replicate/sget/pkg/transport"
	"github.com/replicate/sget/pkg/wire"
)

const (
	defaultChunkSize = 64 * 1024

	// headerReadSize is the read granularity while hunting for the
	// header/body separator on the discovery response.
	headerReadSize = 1024

	retryMinWait     = 100 * time.Millisecond
	retryMaxWait     = 3000 * time.Millisecond
	retrySleepJitter = 500 // will add 0-500 additional milliseconds
)

// SerialMode downloads a resource one chunk at a time over single-use
// connections: discover the total size, then walk the resource in
// fixed-size windows, writing each chunk through to the sink and into a
// running SHA-256.
type SerialMode struct {
	opener transport.Opener
	opts   Options
}

var _ Strategy = &SerialMode{}

func GetSerialMode(opts Options) *SerialMode {
	opener := opts.Transport
	if opener == nil {
		opener = &transport.Dialer{Timeout: opts.ConnectTimeout}
	}
	return &SerialMode{opener: opener, opts: opts}
}

// target is a resolved endpoint: the dial address plus the pieces of the
// request line.
type target struct {
	addr string
	host string
	path string
}

func resolveTarget(urlString string) (target, error) {
	parsed, err := url.Parse(urlString)
	if err != nil {
		return target{}, fmt.Errorf("invalid url %s: %w", urlString, err)
	}
	// Secure transport is out of scope; refusing is better than silently
	// attempting a plaintext exchange against a TLS listener.
	if parsed.Scheme != "http" {
		return target{}, fmt.Errorf("unsupported scheme %q in %s, only http is supported", parsed.Scheme, urlString)
	}
	if parsed.Host == "" {
		return target{}, fmt.Errorf("missing host in url %s", urlString)
	}
	addr := parsed.Host
	if parsed.Port() == "" {
		addr = net.JoinHostPort(parsed.Hostname(), "80")
	}
	return target{addr: addr, host: parsed.Host, path: parsed.RequestURI()}, nil
}

func (m *SerialMode) chunkSize() int64 {
	if m.opts.ChunkSize > 0 {
		return m.opts.ChunkSize
	}
	return defaultChunkSize
}

// getRemoteFileSize issues one unconditional request and reads only far
// enough to see the header/body separator, then extracts the declared
// Content-Length. Body bytes that arrive before the separator is found are
// read and dropped; this is a byte stream, not a framed protocol.
func (m *SerialMode) getRemoteFileSize(ctx context.Context, tgt target) (int64, error) {
	conn, err := m.opener.Open(ctx, tgt.addr)
	if err != nil {
		return -1, err
	}
	defer conn.Close()

	if _, err := conn.Write(wire.GetRequest(tgt.host, tgt.path)); err != nil {
		return -1, &transport.ConnectionError{Op: "send", Addr: tgt.addr, Err: err}
	}

	var raw []byte
	buf := make([]byte, headerReadSize)
	for !wire.HasSeparator(raw) {
		n, err := conn.Read(buf)
		if n > 0 {
			raw = append(raw, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return -1, &transport.ConnectionError{Op: "read", Addr: tgt.addr, Err: err}
		}
	}

	// Only the bytes before the separator are headers; anything after is
	// body and must not be scanned for Content-Length.
	head, _, _ := wire.Split(raw)
	return wire.ParseContentLength(head)
}

// fetchChunk requests the inclusive range [offset, offset+chunkSize-1] on a
// fresh connection and drains the response to EOF. A response with no bytes
// at all yields an empty chunk, which is recoverable, not an error.
func (m *SerialMode) fetchChunk(ctx context.Context, tgt target, offset int64) ([]byte, error) {
	end := offset + m.chunkSize() - 1

	conn, err := m.opener.Open(ctx, tgt.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if _, err := conn.Write(wire.RangeRequest(tgt.host, tgt.path, offset, end)); err != nil {
		return nil, &transport.ConnectionError{Op: "send", Addr: tgt.addr, Err: err}
	}

	raw, err := io.ReadAll(conn)
	if err != nil {
		return nil, &transport.ConnectionError{Op: "read", Addr: tgt.addr, Err: err}
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return wire.ExtractBody(raw), nil
}

func (m *SerialMode) Fetch(ctx context.Context, urlString string, sink io.Writer) (*Result, error) {
	logger := logging.GetLogger()

	tgt, err := resolveTarget(urlString)
	if err != nil {
		return nil, err
	}

	totalSize, err := m.getRemoteFileSize(ctx, tgt)
	if err != nil {
		return nil, fmt.Errorf("error discovering size of %s: %w", urlString, err)
	}
	logger.Info().Str("url", urlString).
		Str("size", humanize.Bytes(uint64(totalSize))).
		Int64("bytes", totalSize).
		Int64("chunk_size", m.chunkSize()).
		Msg("Discovered")

	hasher := sha256.New()
	var position int64
	attempts := 0

	for position < totalSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunk, err := m.fetchChunk(ctx, tgt, position)
		if err != nil {
			return nil, fmt.Errorf("error fetching chunk at offset %d: %w", position, err)
		}
		if len(chunk) == 0 {
			attempts++
			logger.Warn().Int64("offset", position).Int("attempt", attempts).Msg("Empty chunk, retrying")
			if m.opts.MaxRetries > 0 {
				if attempts > m.opts.MaxRetries {
					return nil, fmt.Errorf("%w: offset %d after %d attempts", ErrRetriesExhausted, position, attempts)
				}
				time.Sleep(retryBackoff(attempts))
			}
			continue
		}
		attempts = 0

		if _, err := sink.Write(chunk); err != nil {
			return nil, fmt.Errorf("error writing output at offset %d: %w", position, err)
		}
		// hash.Hash.Write never returns an error
		_, _ = hasher.Write(chunk)
		position += int64(len(chunk))

		if m.opts.Progress != nil {
			m.opts.Progress(position, totalSize)
		}
		logger.Debug().Int64("position", position).Int64("total", totalSize).Msg("Progress")
	}

	if position != totalSize {
		logger.Warn().
			Int64("expected", totalSize).
			Int64("received", position).
			Msg("Downloaded size does not match expected size")
	}

	return &Result{
		ExpectedSize: totalSize,
		BytesWritten: position,
		Digest:       hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// retryBackoff follows the retryablehttp schedule with added jitter so a
// flapping peer is not hammered in lockstep. Only bounded runs sleep;
// unbounded runs keep the historical retry-immediately behavior.
func retryBackoff(attemptNum int) time.Duration {
	sleep := time.Duration(rand.Intn(retrySleepJitter)) * time.Millisecond
	sleep += retryablehttp.DefaultBackoff(retryMinWait, retryMaxWait, attemptNum, nil)
	return sleep
}
