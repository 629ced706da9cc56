package modem

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// that has no transport.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, or when an operation is attempted after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrLoopRunning is returned by Run when another Run call is active.
	ErrLoopRunning = errors.New("modem loop already running")

	// ErrInvalidState is returned when a Handler operation is called in a
	// state that does not allow it. Connect, Send, Listen, Disconnect and
	// buffered writes are only valid while the handler is idle.
	ErrInvalidState = errors.New("operation not valid in current state")

	// ErrNoFreeLink is returned by Connect when all link ids are in use.
	ErrNoFreeLink = errors.New("no free link id")

	// ErrInvalidLink is returned for link ids outside 0..MaxLinks-1.
	ErrInvalidLink = errors.New("link id out of range")

	// ErrSendBufferFull is returned when a buffered write would exceed
	// SendBufferSize. Nothing is buffered in that case.
	ErrSendBufferFull = errors.New("send buffer full")
)

// WriteError reports a failed write of a command or payload to the modem.
// The handler state is left as it was before the operation.
type WriteError struct {
	Op  string // Operation that issued the write
	Err error  // Underlying transport error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write to modem: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
