package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replicate/sget/pkg/transport"
	"github.com/replicate/sget/pkg/wire"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

const testURL = "http://127.0.0.1:8080/data.bin"

// generateTestContent generates a byte slice of the given size
func generateTestContent(size int64) []byte {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(rand.Intn(256))
	}
	return content
}

func sha256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func okResponse(body []byte) []byte {
	return append([]byte(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\nConnection: close\r\n\r\n", len(body))), body...)
}

// scriptedOpener hands out one in-memory connection per Open call. Each
// connection reads a full request, records it, replies with the next
// scripted response and closes. The final response repeats if the download
// opens more connections than were scripted.
type scriptedOpener struct {
	responses [][]byte

	mu       sync.Mutex
	opens    int
	requests []string
}

var _ transport.Opener = &scriptedOpener{}

func (o *scriptedOpener) Open(ctx context.Context, addr string) (net.Conn, error) {
	o.mu.Lock()
	idx := o.opens
	if idx >= len(o.responses) {
		idx = len(o.responses) - 1
	}
	response := o.responses[idx]
	o.opens++
	o.mu.Unlock()

	client, server := net.Pipe()
	go func() {
		defer server.Close()
		var request []byte
		buf := make([]byte, 4096)
		for !wire.HasSeparator(request) {
			n, err := server.Read(buf)
			if n > 0 {
				request = append(request, buf[:n]...)
			}
			if err != nil {
				return
			}
		}
		o.mu.Lock()
		o.requests = append(o.requests, string(request))
		o.mu.Unlock()
		// The peer may stop reading once it has what it needs; a failed
		// write just means the client hung up first.
		_, _ = server.Write(response)
	}()
	return client, nil
}

func (o *scriptedOpener) recordedRequests() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.requests...)
}

func TestFetchSingleChunk(t *testing.T) {
	content := []byte("0123456789")
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(content),
		okResponse(content),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.ExpectedSize)
	assert.Equal(t, int64(10), result.BytesWritten)
	assert.Equal(t, sha256Hex(content), result.Digest)
	assert.Equal(t, content, sink.Bytes())

	requests := opener.recordedRequests()
	require.Len(t, requests, 2)
	assert.Equal(t, "GET /data.bin HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nConnection: close\r\n\r\n", requests[0])
	assert.Equal(t, "GET /data.bin HTTP/1.1\r\nHost: 127.0.0.1:8080\r\nRange: bytes=0-65535\r\nConnection: close\r\n\r\n", requests[1])
}

func TestFetchAssemblesChunksInOrder(t *testing.T) {
	content := generateTestContent(10)
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(content),
		okResponse(content[0:4]),
		okResponse(content[4:8]),
		okResponse(content[8:10]),
	}}

	progressCalls := [][2]int64{}
	var sink bytes.Buffer
	mode := GetSerialMode(Options{
		ChunkSize: 4,
		Transport: opener,
		Progress: func(position, total int64) {
			progressCalls = append(progressCalls, [2]int64{position, total})
		},
	})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)

	assert.Equal(t, content, sink.Bytes())
	assert.Equal(t, sha256Hex(content), result.Digest)
	assert.Equal(t, [][2]int64{{4, 10}, {8, 10}, {10, 10}}, progressCalls)

	requests := opener.recordedRequests()
	require.Len(t, requests, 4)
	assert.Contains(t, requests[1], "Range: bytes=0-3\r\n")
	assert.Contains(t, requests[2], "Range: bytes=4-7\r\n")
	assert.Contains(t, requests[3], "Range: bytes=8-11\r\n")
}

func TestFetchZeroLengthResource(t *testing.T) {
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(nil),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.ExpectedSize)
	assert.Equal(t, int64(0), result.BytesWritten)
	assert.Zero(t, sink.Len())
	// SHA-256 of the empty byte sequence
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", result.Digest)
	// only the discovery request goes out
	assert.Len(t, opener.recordedRequests(), 1)
}

func TestFetchRetriesEmptyChunkAtSameOffset(t *testing.T) {
	content := []byte("hello world")
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(content),
		{}, // connection yields no bytes at all
		{},
		okResponse(content),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)
	assert.Equal(t, content, sink.Bytes())

	// two empty reads then success: exactly three fetches at offset 0
	requests := opener.recordedRequests()
	require.Len(t, requests, 4)
	for _, request := range requests[1:] {
		assert.Contains(t, request, "Range: bytes=0-65535\r\n")
	}
	assert.Equal(t, int64(len(content)), result.BytesWritten)
}

func TestFetchMalformedResponseRetriedAsEmpty(t *testing.T) {
	content := []byte("payload")
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(content),
		[]byte("HTTP/1.1 200 OK\r\nContent-Length: 7"), // no separator, never framed
		okResponse(content),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	_, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)
	assert.Equal(t, content, sink.Bytes())
	assert.Len(t, opener.recordedRequests(), 3)
}

func TestFetchBoundedRetriesExhausted(t *testing.T) {
	opener := &scriptedOpener{responses: [][]byte{
		okResponse([]byte("abc")),
		{}, // every chunk fetch comes back empty
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener, MaxRetries: 2})
	_, err := mode.Fetch(context.Background(), testURL, &sink)
	require.ErrorIs(t, err, ErrRetriesExhausted)

	// initial attempt plus two retries before giving up
	assert.Len(t, opener.recordedRequests(), 4)
	assert.Zero(t, sink.Len())
}

func TestFetchMissingContentLength(t *testing.T) {
	opener := &scriptedOpener{responses: [][]byte{
		[]byte("HTTP/1.1 200 OK\r\nServer: test\r\n\r\nbody without a length"),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	_, err := mode.Fetch(context.Background(), testURL, &sink)
	require.ErrorIs(t, err, wire.ErrMissingContentLength)

	// the run fails before any chunk is fetched
	assert.Len(t, opener.recordedRequests(), 1)
	assert.Zero(t, sink.Len())
}

func TestFetchIgnoresLengthLookalikesInBody(t *testing.T) {
	// The discovery body arrives with the headers; anything after the
	// separator must not be mistaken for a header.
	body := []byte("Content-Length: 999\r\n\r\nxx")
	discovery := append([]byte(fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n", len(body))), body...)
	opener := &scriptedOpener{responses: [][]byte{
		discovery,
		okResponse(body),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), result.ExpectedSize)
	assert.Equal(t, body, sink.Bytes())
}

func TestFetchSizeMismatchStillCompletes(t *testing.T) {
	// Peer declares 100 bytes but the final window overshoots: the run
	// completes with a warning and reports a digest over what arrived.
	declared := append([]byte("HTTP/1.1 200 OK\r\nContent-Length: 100\r\n\r\n"), generateTestContent(100)...)
	first := generateTestContent(64)
	second := generateTestContent(46)
	opener := &scriptedOpener{responses: [][]byte{
		declared,
		okResponse(first),
		okResponse(second),
	}}

	var sink bytes.Buffer
	mode := GetSerialMode(Options{ChunkSize: 64, Transport: opener})
	result, err := mode.Fetch(context.Background(), testURL, &sink)
	require.NoError(t, err)

	assert.Equal(t, int64(100), result.ExpectedSize)
	assert.Equal(t, int64(110), result.BytesWritten)
	assert.Equal(t, sha256Hex(append(append([]byte{}, first...), second...)), result.Digest)
}

func TestFetchConnectionErrorIsFatal(t *testing.T) {
	opener := &failingOpener{}
	var sink bytes.Buffer
	mode := GetSerialMode(Options{Transport: opener})
	_, err := mode.Fetch(context.Background(), testURL, &sink)
	require.Error(t, err)

	var connErr *transport.ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

type failingOpener struct{}

func (failingOpener) Open(ctx context.Context, addr string) (net.Conn, error) {
	return nil, &transport.ConnectionError{Op: "open", Addr: addr, Err: errors.New("connection refused")}
}

func TestFetchSinkWriteFailureIsFatal(t *testing.T) {
	content := []byte("doomed")
	opener := &scriptedOpener{responses: [][]byte{
		okResponse(content),
		okResponse(content),
	}}

	mode := GetSerialMode(Options{Transport: opener})
	_, err := mode.Fetch(context.Background(), testURL, failWriter{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "writing output")
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestResolveTarget(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected target
		wantErr  bool
	}{
		{
			name:     "host with port and path",
			url:      "http://127.0.0.1:8080/data.bin",
			expected: target{addr: "127.0.0.1:8080", host: "127.0.0.1:8080", path: "/data.bin"},
		},
		{
			name:     "default port",
			url:      "http://example.com/file",
			expected: target{addr: "example.com:80", host: "example.com", path: "/file"},
		},
		{
			name:     "empty path becomes root",
			url:      "http://example.com:9000",
			expected: target{addr: "example.com:9000", host: "example.com:9000", path: "/"},
		},
		{
			name:    "https is refused",
			url:     "https://example.com/file",
			wantErr: true,
		},
		{
			name:    "missing host",
			url:     "http:///file",
			wantErr: true,
		},
		{
			name:    "not a url",
			url:     "::",
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tgt, err := resolveTarget(tc.url)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, tgt)
		})
	}
}
