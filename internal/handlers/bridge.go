package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/bridge"
	"messaging-service/internal/telemetry"
)

// BridgeHandler exposes the session-to-room bridge.
type BridgeHandler struct {
	bridge *bridge.Bridge
	audit  *telemetry.AuditEmitter
	log    zerolog.Logger
}

// NewBridgeHandler constructs a BridgeHandler.
func NewBridgeHandler(b *bridge.Bridge, audit *telemetry.AuditEmitter, log zerolog.Logger) *BridgeHandler {
	return &BridgeHandler{
		bridge: b,
		audit:  audit,
		log:    log.With().Str("component", "bridge_handler").Logger(),
	}
}

// EnsureRoom handles POST /bridge/sessions/:session_id/room. Repeated calls
// for the same session return the same room id.
func (h *BridgeHandler) EnsureRoom(c *gin.Context) {
	sessionID := c.Param("session_id")

	var req struct {
		ParticipantIDs []string `json:"participant_ids" binding:"required"`
		Mode           string   `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	roomID, err := h.bridge.EnsureRoom(c.Request.Context(), sessionID, req.ParticipantIDs, req.Mode)
	if err != nil {
		if h.audit != nil {
			h.audit.Emit(c.Request.Context(), "ERROR", "could not bridge session", requestIDFromContext(c), userIDFromContext(c))
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": roomID})
}
