package relay

import (
	"errors"
	"fmt"
	"io"
	"net"
)

var (
	// ErrDisposed is returned by Start on a relay that was already disposed.
	ErrDisposed = errors.New("relay disposed")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("relay already started")

	// ErrSocksRejected indicates the proxy refused the connect request.
	ErrSocksRejected = errors.New("socks request rejected")
)

const (
	errorCodeConnection = "CONNECTION_ERROR"
	errorCodeRelay      = "RELAY_ERROR"
)

// ConnectionError reports a failure to bind, accept, connect or complete a
// proxy handshake.
type ConnectionError struct {
	Op   string // listen, accept, dial, handshake
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Code implements the CLI error-code contract.
func (e *ConnectionError) Code() string { return errorCodeConnection }

// RelayError reports a read or write failure on an established pair.
type RelayError struct {
	Direction Direction
	Op        string // read, write
	Err       error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s %s: %v", e.Direction, e.Op, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Code implements the CLI error-code contract.
func (e *RelayError) Code() string { return errorCodeRelay }

// isHarmless reports errors that are expected when a pair shuts down.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
