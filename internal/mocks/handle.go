package mocks

import (
	"errors"
	"sync"
)

// HandleFake is an in-memory ws.Handle that records pushed payloads. Set
// FailPush to simulate a dead connection.
type HandleFake struct {
	mu       sync.Mutex
	pushes   [][]byte
	closed   bool
	FailPush bool
}

func (h *HandleFake) Push(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.FailPush || h.closed {
		return errors.New("connection gone")
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	h.pushes = append(h.pushes, buf)
	return nil
}

func (h *HandleFake) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Pushes returns a snapshot of everything pushed so far.
func (h *HandleFake) Pushes() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][]byte, len(h.pushes))
	copy(out, h.pushes)
	return out
}

// Closed reports whether Close was called.
func (h *HandleFake) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
