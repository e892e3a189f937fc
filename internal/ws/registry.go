package ws

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConnInfo carries per-connection metadata for events and logging.
type ConnInfo struct {
	ConnID      string
	UserID      string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// Conn pairs a registered handle with its registry id.
type Conn struct {
	ID     string
	UserID string
	Handle Handle
}

// Registry maps connected user identities to their live transport handles.
// A user may hold several handles at once (one per tab or device); all of
// them receive fan-out. Nothing here is persisted - state is rebuilt from
// durable membership when clients reconnect.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Handle
	owner  map[string]string
	log    zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]map[string]Handle),
		owner:  make(map[string]string),
		log:    log.With().Str("component", "ws_registry").Logger(),
	}
}

// Register adds a handle for the user and returns its connection id.
func (r *Registry) Register(userID string, handle Handle) Conn {
	connID := newConnID()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[string]Handle)
	}
	r.byUser[userID][connID] = handle
	r.owner[connID] = userID
	return Conn{ID: connID, UserID: userID, Handle: handle}
}

// Unregister removes a connection. Safe to call on an already-removed id.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connID)
}

// Drop closes a dead handle and removes it. Used when a push fails.
func (r *Registry) Drop(connID string) {
	r.mu.Lock()
	handle := r.removeLocked(connID)
	r.mu.Unlock()

	if handle != nil {
		_ = handle.Close()
	}
}

// HandlesFor returns a snapshot of the user's live connections, possibly
// empty when the user is offline. The snapshot is safe to iterate while
// concurrent connects and disconnects mutate the registry.
func (r *Registry) HandlesFor(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byUser[userID]
	if len(handles) == 0 {
		return nil
	}
	conns := make([]Conn, 0, len(handles))
	for connID, handle := range handles {
		conns = append(conns, Conn{ID: connID, UserID: userID, Handle: handle})
	}
	return conns
}

// ActiveConns reports the number of live connections.
func (r *Registry) ActiveConns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owner)
}

// CloseAll pushes a final notice to every live handle and closes them.
// Called on process shutdown.
func (r *Registry) CloseAll(notice []byte) {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.owner))
	for connID := range r.owner {
		if handle := r.removeLocked(connID); handle != nil {
			handles = append(handles, handle)
		}
	}
	r.mu.Unlock()

	for _, handle := range handles {
		if len(notice) > 0 {
			if err := handle.Push(notice); err != nil {
				r.log.Debug().Err(err).Msg("shutdown notice push failed")
			}
		}
		_ = handle.Close()
	}
}

func (r *Registry) removeLocked(connID string) Handle {
	userID, ok := r.owner[connID]
	if !ok {
		return nil
	}
	delete(r.owner, connID)

	handles := r.byUser[userID]
	handle := handles[connID]
	delete(handles, connID)
	if len(handles) == 0 {
		delete(r.byUser, userID)
	}
	return handle
}
