package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

const wsEventsRoutingKey = "ws_events.messaging"

// MessageSink routes inbound client frames into the delivery pipeline.
type MessageSink interface {
	Send(ctx context.Context, roomID int64, senderID, body string, attachments []models.Attachment) (models.Message, error)
	SetTyping(ctx context.Context, roomID int64, userID string, isTyping bool)
}

// Handler upgrades websocket connections and pumps inbound frames.
type Handler struct {
	registry     *Registry
	sink         MessageSink
	writeTimeout time.Duration
	log          zerolog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(registry *Registry, sink MessageSink, writeTimeout time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		registry:     registry,
		sink:         sink,
		writeTimeout: writeTimeout,
		log:          log.With().Str("component", "ws_handler").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and registers the client. The caller
// identity rides in the URL and is trusted as already authenticated by the
// upstream gateway.
func (h *Handler) Handle(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}

	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	rawConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	handle := NewHandle(rawConn, h.writeTimeout)
	conn := h.registry.Register(userID, handle)
	info := ConnInfo{
		ConnID:      conn.ID,
		UserID:      userID,
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishConnEvent(ctx, "ws_connect", info, "")
	h.log.Info().Str("user_id", userID).Str("conn_id", conn.ID).Msg("websocket connected")

	welcome, _ := json.Marshal(models.Event{Type: models.EventSystem, Text: "connected to messaging server"})
	if err := handle.Push(welcome); err != nil {
		h.log.Debug().Err(err).Str("conn_id", conn.ID).Msg("welcome push failed")
	}

	// The request context dies as soon as this handler returns, but the
	// connection outlives it. Detach so inbound frames and the disconnect
	// event still carry the handshake trace values.
	go h.readLoop(context.WithoutCancel(ctx), rawConn, conn, info)
}

func (h *Handler) readLoop(ctx context.Context, rawConn *websocket.Conn, conn Conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.registry.Unregister(conn.ID)
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishConnEvent(ctx, "ws_disconnect", info, closeReason)
		h.log.Info().Str("user_id", conn.UserID).Str("conn_id", conn.ID).Msg("websocket disconnected")
		rawConn.Close()
	}()

	for {
		_, raw, err := rawConn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishConnEvent(ctx, "ws_error", info, closeReason)
			}
			return
		}
		h.route(ctx, conn, raw)
	}
}

// route dispatches one inbound control frame. Unknown types are ignored with
// a warning rather than dropping the connection.
func (h *Handler) route(ctx context.Context, conn Conn, raw []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.log.Warn().Err(err).Str("user_id", conn.UserID).Msg("malformed inbound frame")
		return
	}

	switch frame.Type {
	case models.EventChat:
		msg, err := h.sink.Send(ctx, frame.RoomID, conn.UserID, frame.Content, nil)
		if err != nil {
			h.log.Warn().Err(err).
				Str("user_id", conn.UserID).
				Int64("room_id", frame.RoomID).
				Msg("inbound chat message rejected")
			return
		}
		// Fan-out skips the sender, so echo the accepted message back on
		// the originating handle.
		payload, _ := json.Marshal(models.Event{
			Type:     models.EventChat,
			RoomID:   msg.RoomID,
			SenderID: conn.UserID,
			Message:  &msg,
		})
		if err := conn.Handle.Push(payload); err != nil {
			h.registry.Drop(conn.ID)
		}
	case models.EventTyping:
		h.sink.SetTyping(ctx, frame.RoomID, conn.UserID, frame.IsTyping)
	default:
		h.log.Warn().Str("type", frame.Type).Str("user_id", conn.UserID).Msg("unknown message type")
	}
}

func (h *Handler) publishConnEvent(ctx context.Context, name string, info ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       name,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id": info.UserID,
			"ip":      info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := observability.PublishEvent(ctx, wsEventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, headers); err != nil {
		h.log.Debug().Err(err).Str("event", name).Msg("ws event publish failed")
	}
}
