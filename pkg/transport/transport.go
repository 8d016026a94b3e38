// Package transport owns the single-use connections sget opens against the
// remote peer. Every request/response exchange gets a fresh connection and
// the peer closes it after responding; nothing here is pooled or reused.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Opener opens a point-to-point connection for exactly one request/response
// exchange. The caller owns the returned connection and must close it on
// every exit path. Tests substitute in-memory implementations.
type Opener interface {
	Open(ctx context.Context, addr string) (net.Conn, error)
}

// ConnectionError is a hard transport-level failure during connect, send
// or read. It is fatal to the run.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

var _ error = &ConnectionError{}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Dialer opens plain TCP connections.
type Dialer struct {
	// Timeout bounds connection establishment. Zero means no bound beyond
	// the context's.
	Timeout time.Duration
}

var _ Opener = &Dialer{}

func (d *Dialer) Open(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Addr: addr, Err: err}
	}
	return conn, nil
}
