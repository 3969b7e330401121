package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is a raw encoded signal payload.
type Frame []byte

// ConnID identifies one live transport session. Many may exist over time
// for the same identity.
type ConnID string

// SignalConnection is the outbound side of one client transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() ConnID
	// TrySend never blocks. It returns ErrBackpressure when the outbound
	// buffer is full and ErrConnClosed after Close.
	TrySend(Frame) error
	Close()
}
