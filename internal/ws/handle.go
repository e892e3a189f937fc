package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/apperrors"
)

// Handle is a live, open transport reference capable of pushing data to one
// connected client.
type Handle interface {
	Push(payload []byte) error
	Close() error
}

// wsHandle wraps a gorilla connection. Writes are serialized and bounded by a
// deadline so a stalled peer fails the push instead of blocking fan-out.
type wsHandle struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// NewHandle wraps a websocket connection in a push handle.
func NewHandle(conn *websocket.Conn, writeTimeout time.Duration) Handle {
	return &wsHandle{conn: conn, writeTimeout: writeTimeout}
}

func (h *wsHandle) Push(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := h.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransport, err)
	}
	return nil
}

func (h *wsHandle) Close() error {
	return h.conn.Close()
}
