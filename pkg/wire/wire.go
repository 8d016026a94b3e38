// Package wire implements the minimal HTTP/1.1 framing sget speaks over a
// raw connection: rendering requests, splitting a drained response into
// headers and body at the first CRLFCRLF separator, and extracting the
// declared Content-Length. The transport and download layers never touch
// raw bytes directly; all scanning lives here.
package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Separator marks the boundary between response headers and body.
const Separator = "\r\n\r\n"

const contentLengthField = "content-length:"

var ErrMissingContentLength = errors.New("no usable Content-Length header")

// GetRequest renders a non-persistent full-resource request. The peer is
// told to close the connection after responding, so draining to EOF is a
// complete read.
func GetRequest(host, path string) []byte {
	return []byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, host))
}

// RangeRequest renders a non-persistent request for the inclusive byte
// range [start, end].
func RangeRequest(host, path string, start, end int64) []byte {
	return []byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nRange: bytes=%d-%d\r\nConnection: close\r\n\r\n", path, host, start, end))
}

// Split cuts a raw response at the first separator. found reports whether
// a separator was present; when it is not, head is the entire input and
// body is empty.
func Split(raw []byte) (head, body []byte, found bool) {
	return bytes.Cut(raw, []byte(Separator))
}

// ExtractBody returns the bytes after the first separator, or an empty
// slice when no separator exists. A truncated or malformed response is
// treated as carrying no data rather than guessed at.
func ExtractBody(raw []byte) []byte {
	_, body, found := Split(raw)
	if !found {
		return nil
	}
	return body
}

// HasSeparator reports whether raw already contains the header/body
// separator, used to decide when an incremental header read may stop.
func HasSeparator(raw []byte) bool {
	return bytes.Contains(raw, []byte(Separator))
}

// ParseContentLength scans header lines for the first one beginning with
// Content-Length (case-insensitive) and returns its trimmed value as a
// non-negative integer. The first matching line wins; if it is absent or
// its value does not parse, ErrMissingContentLength is returned.
func ParseContentLength(head []byte) (int64, error) {
	for _, line := range strings.Split(string(head), "\r\n") {
		if len(line) < len(contentLengthField) {
			continue
		}
		if !strings.EqualFold(line[:len(contentLengthField)], contentLengthField) {
			continue
		}
		value := strings.TrimSpace(line[len(contentLengthField):])
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil || size < 0 {
			return -1, fmt.Errorf("%w: %q", ErrMissingContentLength, value)
		}
		return size, nil
	}
	return -1, ErrMissingContentLength
}
