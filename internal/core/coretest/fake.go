// Package coretest provides an in-memory SignalConnection for tests.
package coretest

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Relay/internal/core"
)

// Conn records every frame sent to it.
type Conn struct {
	id core.ConnID

	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func NewConn(id string) *Conn {
	return &Conn{id: core.ConnID(id)}
}

func (c *Conn) ID() core.ConnID { return c.id }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// SetFull makes TrySend report backpressure.
func (c *Conn) SetFull(full bool) {
	c.mu.Lock()
	c.full = full
	c.mu.Unlock()
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Events decodes every recorded frame.
func (c *Conn) Events(t testing.TB) []map[string]any {
	t.Helper()
	c.mu.Lock()
	frames := append([]core.Frame(nil), c.frames...)
	c.mu.Unlock()

	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("frame %q is not a json object: %v", f, err)
		}
		out = append(out, m)
	}
	return out
}

// OfType returns the recorded events whose type is kind.
func (c *Conn) OfType(t testing.TB, kind string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, e := range c.Events(t) {
		if e["type"] == kind {
			out = append(out, e)
		}
	}
	return out
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
