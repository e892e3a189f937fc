package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

const maxRoomNameLen = 100
const maxRoomDescriptionLen = 500

// RoomRepository abstracts room and membership persistence.
type RoomRepository interface {
	CreateRoom(ctx context.Context, createdBy, name, description, kind string, memberIDs []string) (models.Room, error)
	GetRoom(ctx context.Context, roomID int64) (models.Room, error)
	ListRoomsForMember(ctx context.Context, userID string) ([]models.Room, error)
	ListMembers(ctx context.Context, roomID int64) ([]models.Member, error)
	AddMember(ctx context.Context, roomID int64, userID string) error
	RemoveMember(ctx context.Context, roomID int64, userID string) error
	IsMember(ctx context.Context, roomID int64, userID string) (bool, error)
	DeactivateRoom(ctx context.Context, roomID int64) error
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// roomSlug normalizes a display name into an identifier-safe slug and appends
// a timestamp fragment to keep concurrent rooms with the same name distinct.
func roomSlug(name string, now time.Time) string {
	base := slugStrip.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	base = strings.Trim(base, "-")
	stamp := strconv.FormatInt(now.UnixMilli(), 10)
	if len(stamp) > 6 {
		stamp = stamp[len(stamp)-6:]
	}
	return base + "-" + stamp
}

// normalizeRoomInput trims the name, defaults the kind and enforces the
// length limits. Limits count characters, not bytes.
func normalizeRoomInput(name, description, kind string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: room name is required", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxRoomNameLen {
		return "", "", fmt.Errorf("%w: room name cannot be more than %d characters", apperrors.ErrValidation, maxRoomNameLen)
	}
	if utf8.RuneCountInString(description) > maxRoomDescriptionLen {
		return "", "", fmt.Errorf("%w: description cannot be more than %d characters", apperrors.ErrValidation, maxRoomDescriptionLen)
	}
	if kind == "" {
		kind = models.RoomKindPrivate
	}
	if !models.ValidRoomKind(kind) {
		return "", "", fmt.Errorf("%w: unknown room kind %q", apperrors.ErrValidation, kind)
	}
	return name, kind, nil
}

// CreateRoom creates a room and its initial members atomically. The creator
// is always a member regardless of the supplied member list.
func (r *RoomRepo) CreateRoom(ctx context.Context, createdBy, name, description, kind string, memberIDs []string) (models.Room, error) {
	name, kind, err := normalizeRoomInput(name, description, kind)
	if err != nil {
		return models.Room{}, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, fmt.Errorf("%w: begin tx: %v", apperrors.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO rooms (name, slug, kind, description, created_by)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, name, slug, kind, description, is_active, created_by, created_at, updated_at`,
		name, roomSlug(name, time.Now()), kind, description, createdBy).
		StructScan(&room); err != nil {
		return models.Room{}, fmt.Errorf("%w: insert room: %v", apperrors.ErrPersistence, err)
	}

	// ensure creator present and dedupe members
	memberSet := map[string]struct{}{createdBy: {}}
	for _, id := range memberIDs {
		if id != "" {
			memberSet[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)`, room.ID, id); err != nil {
			return models.Room{}, fmt.Errorf("%w: insert member: %v", apperrors.ErrPersistence, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Room{}, fmt.Errorf("%w: commit: %v", apperrors.ErrPersistence, err)
	}
	return room, nil
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int64) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room,
		`SELECT id, name, slug, kind, description, is_active, created_by, created_at, updated_at
         FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, fmt.Errorf("%w: room %d", apperrors.ErrNotFound, roomID)
	}
	if err != nil {
		return models.Room{}, fmt.Errorf("%w: get room: %v", apperrors.ErrPersistence, err)
	}
	return room, nil
}

// ListRoomsForMember returns rooms that include the user, most recently
// updated first.
func (r *RoomRepo) ListRoomsForMember(ctx context.Context, userID string) ([]models.Room, error) {
	var rooms []models.Room
	err := r.db.SelectContext(ctx, &rooms,
		`SELECT r.id, r.name, r.slug, r.kind, r.description, r.is_active, r.created_by, r.created_at, r.updated_at
         FROM rooms r
         INNER JOIN room_members rm ON rm.room_id = r.id
         WHERE rm.user_id=$1
         ORDER BY r.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list rooms: %v", apperrors.ErrPersistence, err)
	}
	return rooms, nil
}

// ListMembers returns the membership set of a room.
func (r *RoomRepo) ListMembers(ctx context.Context, roomID int64) ([]models.Member, error) {
	var members []models.Member
	err := r.db.SelectContext(ctx, &members,
		`SELECT room_id, user_id, joined_at, last_read_at FROM room_members WHERE room_id=$1`, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list members: %v", apperrors.ErrPersistence, err)
	}
	return members, nil
}

// AddMember joins a user to a room. Adding an existing member is a no-op.
func (r *RoomRepo) AddMember(ctx context.Context, roomID int64, userID string) error {
	if err := r.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)
         ON CONFLICT (room_id, user_id) DO NOTHING`, roomID, userID); err != nil {
		return fmt.Errorf("%w: add member: %v", apperrors.ErrPersistence, err)
	}
	return r.touch(ctx, roomID)
}

// RemoveMember leaves a room. Removing an absent member is a no-op and
// removing the last member never deletes the room.
func (r *RoomRepo) RemoveMember(ctx context.Context, roomID int64, userID string) error {
	if err := r.requireRoom(ctx, roomID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM room_members WHERE room_id=$1 AND user_id=$2`, roomID, userID); err != nil {
		return fmt.Errorf("%w: remove member: %v", apperrors.ErrPersistence, err)
	}
	return r.touch(ctx, roomID)
}

// IsMember checks membership.
func (r *RoomRepo) IsMember(ctx context.Context, roomID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("%w: membership check: %v", apperrors.ErrPersistence, err)
	}
	return exists, nil
}

// DeactivateRoom clears the active flag. Rooms are never hard-deleted here.
func (r *RoomRepo) DeactivateRoom(ctx context.Context, roomID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET is_active = FALSE, updated_at = NOW() WHERE id=$1`, roomID)
	if err != nil {
		return fmt.Errorf("%w: deactivate room: %v", apperrors.ErrPersistence, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: deactivate room: %v", apperrors.ErrPersistence, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: room %d", apperrors.ErrNotFound, roomID)
	}
	return nil
}

func (r *RoomRepo) requireRoom(ctx context.Context, roomID int64) error {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1)`, roomID)
	if err != nil {
		return fmt.Errorf("%w: room lookup: %v", apperrors.ErrPersistence, err)
	}
	if !exists {
		return fmt.Errorf("%w: room %d", apperrors.ErrNotFound, roomID)
	}
	return nil
}

func (r *RoomRepo) touch(ctx context.Context, roomID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET updated_at = NOW() WHERE id=$1`, roomID); err != nil {
		return fmt.Errorf("%w: touch room: %v", apperrors.ErrPersistence, err)
	}
	return nil
}
