package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/dispatcher"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// MessageHandler serves the message log over HTTP: posting, history,
// read receipts, edits and reactions.
type MessageHandler struct {
	rooms      repositories.RoomRepository
	messages   repositories.MessageRepository
	dispatcher *dispatcher.Dispatcher
	audit      *telemetry.AuditEmitter
	log        zerolog.Logger
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(rooms repositories.RoomRepository, messages repositories.MessageRepository, disp *dispatcher.Dispatcher, audit *telemetry.AuditEmitter, log zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		rooms:      rooms,
		messages:   messages,
		dispatcher: disp,
		audit:      audit,
		log:        log.With().Str("component", "message_handler").Logger(),
	}
}

// PostMessage handles POST /rooms/:room_id/messages. The message is durable
// once this returns 201; live push to other members is best-effort.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	var req struct {
		Body        string              `json:"body" binding:"required"`
		Attachments []models.Attachment `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.dispatcher.Send(c.Request.Context(), roomID, userID, req.Body, req.Attachments)
	if err != nil {
		h.emitAudit(c, "ERROR", "could not send message")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// ListMessages handles GET /rooms/:room_id/messages. Cursors `after` and
// `before` are exclusive message ids; pages always come back in chronological
// order.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetString("userID")
	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	after, ok := parseQueryInt(c, "after", 0)
	if !ok {
		return
	}
	before, ok := parseQueryInt(c, "before", 0)
	if !ok {
		return
	}
	limit, ok := parseQueryInt(c, "limit", repositories.DefaultPageSize)
	if !ok {
		return
	}

	msgs, err := h.messages.ListSince(c.Request.Context(), roomID, after, before, int(limit))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

// MarkRead handles POST /rooms/:room_id/messages/:message_id/read.
// Marking twice is a no-op.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	userID := c.GetString("userID")
	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), roomID, userID, messageID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// EditMessage handles PUT /rooms/:room_id/messages/:message_id. Only the
// original sender may edit; live members get an edited-message event.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	msg, err := h.messages.EditBody(c.Request.Context(), roomID, messageID, userID, req.Body)
	if err != nil {
		h.emitAudit(c, "ERROR", "could not edit message")
		respondError(c, err)
		return
	}

	h.dispatcher.NotifyEdit(c.Request.Context(), msg)
	c.JSON(http.StatusOK, msg)
}

// AddReaction handles POST /rooms/:room_id/messages/:message_id/reactions.
func (h *MessageHandler) AddReaction(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	member, err := h.rooms.IsMember(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	msg, err := h.messages.AddReaction(c.Request.Context(), roomID, messageID, userID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseMessageID(c *gin.Context) (int64, bool) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return messageID, true
}

func parseQueryInt(c *gin.Context, name string, def int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter"})
		return 0, false
	}
	return val, true
}
