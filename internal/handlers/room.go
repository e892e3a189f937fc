package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/dispatcher"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// RoomHandler manages room and membership endpoints.
type RoomHandler struct {
	rooms      repositories.RoomRepository
	dispatcher *dispatcher.Dispatcher
	audit      *telemetry.AuditEmitter
	log        zerolog.Logger
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms repositories.RoomRepository, disp *dispatcher.Dispatcher, audit *telemetry.AuditEmitter, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:      rooms,
		dispatcher: disp,
		audit:      audit,
		log:        log.With().Str("component", "room_handler").Logger(),
	}
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := c.GetString("userID")

	var req struct {
		Name        string   `json:"name" binding:"required"`
		Description string   `json:"description"`
		Kind        string   `json:"kind"`
		MemberIDs   []string `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), userID, req.Name, req.Description, req.Kind, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "could not create room")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Room created")
	c.JSON(http.StatusCreated, room)
}

// ListRooms returns the rooms the caller belongs to, most recently updated
// first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetString("userID")

	rooms, err := h.rooms.ListRoomsForMember(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// GetRoom returns a single room with its members.
func (h *RoomHandler) GetRoom(c *gin.Context) {
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

	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	members, err := h.rooms.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"room": room, "members": members})
}

// JoinRoom handles POST /rooms/:room_id/join. Joining twice is a no-op.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetString("userID")
	if err := h.rooms.AddMember(c.Request.Context(), roomID, userID); err != nil {
		h.emitAudit(c, "ERROR", "could not join room")
		respondError(c, err)
		return
	}

	if _, err := h.dispatcher.SendSystem(c.Request.Context(), roomID, fmt.Sprintf("%s joined the room", userID)); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("join notice failed")
	}

	h.emitAudit(c, "INFO", "Room joined")
	c.JSON(http.StatusOK, gin.H{"message": "successfully joined room"})
}

// LeaveRoom handles POST /rooms/:room_id/leave. Leaving an already-left room
// is a no-op and removing the last member does not delete the room.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetString("userID")
	if err := h.rooms.RemoveMember(c.Request.Context(), roomID, userID); err != nil {
		h.emitAudit(c, "ERROR", "could not leave room")
		respondError(c, err)
		return
	}

	if _, err := h.dispatcher.SendSystem(c.Request.Context(), roomID, fmt.Sprintf("%s left the room", userID)); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("leave notice failed")
	}

	h.emitAudit(c, "INFO", "Room left")
	c.JSON(http.StatusOK, gin.H{"message": "successfully left room"})
}

// DeactivateRoom handles DELETE /rooms/:room_id. Rooms are never hard-deleted;
// only the creator may clear the active flag.
func (h *RoomHandler) DeactivateRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	userID := c.GetString("userID")
	room, err := h.rooms.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if room.CreatedBy != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the creator may deactivate a room"})
		return
	}

	if err := h.rooms.DeactivateRoom(c.Request.Context(), roomID); err != nil {
		h.emitAudit(c, "ERROR", "could not deactivate room")
		respondError(c, err)
		return
	}

	h.emitAudit(c, "INFO", "Room deactivated")
	c.JSON(http.StatusOK, gin.H{"message": "room deactivated"})
}

func (h *RoomHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseRoomID(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return 0, false
	}
	return roomID, true
}
