package ws

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type stubHandle struct {
	pushed [][]byte
	closed bool
	fail   bool
}

func (s *stubHandle) Push(payload []byte) error {
	if s.fail {
		return errors.New("push failed")
	}
	s.pushed = append(s.pushed, payload)
	return nil
}

func (s *stubHandle) Close() error {
	s.closed = true
	return nil
}

func TestRegistryRegisterAndUnregister(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	conn := r.Register("alice", &stubHandle{})
	if len(r.byUser) != 1 {
		t.Fatalf("expected user entry to be created")
	}
	if got := r.ActiveConns(); got != 1 {
		t.Fatalf("expected 1 active conn, got %d", got)
	}

	r.Unregister(conn.ID)
	if len(r.byUser) != 0 {
		t.Fatalf("expected user entry to be removed")
	}
	if got := r.ActiveConns(); got != 0 {
		t.Fatalf("expected 0 active conns, got %d", got)
	}

	// removing twice is safe
	r.Unregister(conn.ID)
}

func TestRegistryMultipleHandlesPerUser(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	first := r.Register("alice", &stubHandle{})
	second := r.Register("alice", &stubHandle{})

	if got := len(r.HandlesFor("alice")); got != 2 {
		t.Fatalf("expected 2 handles, got %d", got)
	}

	r.Unregister(first.ID)
	if got := len(r.HandlesFor("alice")); got != 1 {
		t.Fatalf("expected 1 handle after unregister, got %d", got)
	}

	r.Unregister(second.ID)
	if got := r.HandlesFor("alice"); got != nil {
		t.Fatalf("expected no handles for offline user, got %d", len(got))
	}
}

func TestRegistryDropClosesHandle(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	handle := &stubHandle{}
	conn := r.Register("alice", handle)

	r.Drop(conn.ID)
	if !handle.closed {
		t.Fatalf("expected dropped handle to be closed")
	}
	if got := r.ActiveConns(); got != 0 {
		t.Fatalf("expected 0 active conns, got %d", got)
	}
}

func TestRegistryCloseAllPushesNotice(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	ok := &stubHandle{}
	dead := &stubHandle{fail: true}
	r.Register("alice", ok)
	r.Register("bob", dead)

	r.CloseAll([]byte("bye"))

	if len(ok.pushed) != 1 || string(ok.pushed[0]) != "bye" {
		t.Fatalf("expected notice push, got %v", ok.pushed)
	}
	if !ok.closed || !dead.closed {
		t.Fatalf("expected all handles closed")
	}
	if got := r.ActiveConns(); got != 0 {
		t.Fatalf("expected empty registry, got %d conns", got)
	}
}
