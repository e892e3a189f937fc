package bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// MappingStore persists the session-to-room association so EnsureRoom stays
// idempotent across restarts. The session record itself lives outside this
// service.
type MappingStore interface {
	RoomForSession(ctx context.Context, sessionID string) (int64, bool, error)
	AttachRoom(ctx context.Context, sessionID string, roomID int64) error
}

// Bridge translates application sessions into chat rooms. Live two-party
// sessions map to direct rooms; everything else gets a private room.
type Bridge struct {
	rooms repositories.RoomRepository
	store MappingStore
	log   zerolog.Logger
}

// New constructs a Bridge.
func New(rooms repositories.RoomRepository, store MappingStore, log zerolog.Logger) *Bridge {
	return &Bridge{
		rooms: rooms,
		store: store,
		log:   log.With().Str("component", "session_bridge").Logger(),
	}
}

// EnsureRoom returns the room backing a session, creating it on first use.
// Concurrent calls for the same session converge on a single room.
func (b *Bridge) EnsureRoom(ctx context.Context, sessionID string, participantIDs []string, mode string) (int64, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	if len(participantIDs) == 0 {
		return 0, fmt.Errorf("%w: at least one participant is required", apperrors.ErrValidation)
	}

	if roomID, ok, err := b.store.RoomForSession(ctx, sessionID); err != nil {
		return 0, err
	} else if ok {
		return roomID, nil
	}

	kind := models.RoomKindPrivate
	if mode == "live" && len(participantIDs) == 2 {
		kind = models.RoomKindDirect
	}

	room, err := b.rooms.CreateRoom(ctx, participantIDs[0], "session "+sessionID, "", kind, participantIDs)
	if err != nil {
		return 0, err
	}

	if err := b.store.AttachRoom(ctx, sessionID, room.ID); err != nil {
		return 0, err
	}

	// A concurrent EnsureRoom may have won the insert; the recorded mapping
	// is authoritative either way.
	roomID, ok, err := b.store.RoomForSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: session mapping vanished", apperrors.ErrPersistence)
	}
	if roomID != room.ID {
		b.log.Info().Str("session_id", sessionID).Int64("room_id", roomID).Msg("lost ensure-room race, reusing existing room")
	}
	return roomID, nil
}

// SQLMappingStore is a sqlx implementation of MappingStore.
type SQLMappingStore struct {
	db *sqlx.DB
}

// NewSQLMappingStore constructs a SQLMappingStore.
func NewSQLMappingStore(db *sqlx.DB) *SQLMappingStore {
	return &SQLMappingStore{db: db}
}

func (s *SQLMappingStore) RoomForSession(ctx context.Context, sessionID string) (int64, bool, error) {
	var roomID int64
	err := s.db.GetContext(ctx, &roomID,
		`SELECT room_id FROM session_rooms WHERE session_id=$1`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: session lookup: %v", apperrors.ErrPersistence, err)
	}
	return roomID, true, nil
}

func (s *SQLMappingStore) AttachRoom(ctx context.Context, sessionID string, roomID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO session_rooms (session_id, room_id) VALUES ($1, $2)
         ON CONFLICT (session_id) DO NOTHING`, sessionID, roomID); err != nil {
		return fmt.Errorf("%w: attach room: %v", apperrors.ErrPersistence, err)
	}
	return nil
}
