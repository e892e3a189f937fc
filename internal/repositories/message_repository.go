package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
)

const (
	// DefaultPageSize is applied when a caller passes no limit.
	DefaultPageSize = 50
	// MaxPageSize caps history pages to bound response size.
	MaxPageSize = 200
)

const messageColumns = `id, room_id, sender_id, body, attachments, reactions, is_system, is_edited, created_at`

// MessageRepository defines interactions with a room's append-only message log.
type MessageRepository interface {
	Append(ctx context.Context, roomID int64, senderID *string, body string, attachments []models.Attachment) (models.Message, error)
	ListSince(ctx context.Context, roomID, after, before int64, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, roomID int64, userID string, messageID int64) error
	EditBody(ctx context.Context, roomID, messageID int64, senderID, body string) (models.Message, error)
	AddReaction(ctx context.Context, roomID, messageID int64, userID, emoji string) (models.Message, error)
}

// MessageRepo is a sqlx-backed implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append persists a message and returns it with the server-assigned id and
// timestamp. The id sequence is the single source of per-room ordering, so
// concurrent senders serialize here and nowhere else. The insert and the
// room touch commit together: a returned error always means nothing was
// persisted.
func (r *MessageRepo) Append(ctx context.Context, roomID int64, senderID *string, body string, attachments []models.Attachment) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, fmt.Errorf("%w: message body is required", apperrors.ErrValidation)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: begin tx: %v", apperrors.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (room_id, sender_id, body, attachments, is_system)
         VALUES ($1, $2, $3, $4, $2 IS NULL)
         RETURNING `+messageColumns,
		roomID, senderID, body, models.AttachmentList(attachments)).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: append message: %v", apperrors.ErrPersistence, err)
	}

	// New traffic bumps the room so ListRoomsForMember surfaces it first.
	if _, err = tx.ExecContext(ctx,
		`UPDATE rooms SET updated_at = NOW() WHERE id=$1`, roomID); err != nil {
		return models.Message{}, fmt.Errorf("%w: touch room: %v", apperrors.ErrPersistence, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("%w: commit: %v", apperrors.ErrPersistence, err)
	}
	return msg, nil
}

// ListSince returns a page of messages for a room in chronological order.
// Cursors are exclusive message ids: after pages forward, before pages
// backward. Backward pages are fetched newest-first and re-sorted ascending
// so callers always receive chronological order regardless of direction.
func (r *MessageRepo) ListSince(ctx context.Context, roomID, after, before int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var msgs []models.Message
	var err error
	switch {
	case before > 0 && after > 0:
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE room_id=$1 AND id > $2 AND id < $3
             ORDER BY id ASC LIMIT $4`, roomID, after, before, limit)
	case before > 0:
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE room_id=$1 AND id < $2
             ORDER BY id DESC LIMIT $3`, roomID, before, limit)
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	default:
		err = r.db.SelectContext(ctx, &msgs,
			`SELECT `+messageColumns+` FROM messages
             WHERE room_id=$1 AND id > $2
             ORDER BY id ASC LIMIT $3`, roomID, after, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", apperrors.ErrPersistence, err)
	}
	return msgs, nil
}

// MarkRead appends the user to the message's read set and advances the
// member's last-read marker. Both writes are idempotent.
func (r *MessageRepo) MarkRead(ctx context.Context, roomID int64, userID string, messageID int64) error {
	msg, err := r.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != roomID {
		return fmt.Errorf("%w: message %d does not belong to room %d", apperrors.ErrValidation, messageID, roomID)
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
         ON CONFLICT (message_id, user_id) DO NOTHING`, messageID, userID); err != nil {
		return fmt.Errorf("%w: mark read: %v", apperrors.ErrPersistence, err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE room_members SET last_read_at = GREATEST(COALESCE(last_read_at, 'epoch'), $3)
         WHERE room_id=$1 AND user_id=$2`, roomID, userID, msg.CreatedAt); err != nil {
		return fmt.Errorf("%w: advance last read: %v", apperrors.ErrPersistence, err)
	}
	return nil
}

// EditBody replaces a message body in place. Only the original sender may
// edit, and the edit flag is set permanently.
func (r *MessageRepo) EditBody(ctx context.Context, roomID, messageID int64, senderID, body string) (models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Message{}, fmt.Errorf("%w: message body is required", apperrors.ErrValidation)
	}

	msg, err := r.getMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.RoomID != roomID {
		return models.Message{}, fmt.Errorf("%w: message %d does not belong to room %d", apperrors.ErrValidation, messageID, roomID)
	}
	if msg.SenderID == nil || *msg.SenderID != senderID {
		return models.Message{}, fmt.Errorf("%w: only the sender may edit a message", apperrors.ErrAuthorization)
	}

	var updated models.Message
	err = r.db.QueryRowxContext(ctx,
		`UPDATE messages SET body=$2, is_edited=TRUE WHERE id=$1 RETURNING `+messageColumns,
		messageID, body).
		StructScan(&updated)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: edit message: %v", apperrors.ErrPersistence, err)
	}
	return updated, nil
}

// AddReaction records an emoji reaction. The message must belong to the
// given room; reacting twice with the same emoji is a no-op for the same user.
func (r *MessageRepo) AddReaction(ctx context.Context, roomID, messageID int64, userID, emoji string) (models.Message, error) {
	if strings.TrimSpace(emoji) == "" {
		return models.Message{}, fmt.Errorf("%w: emoji is required", apperrors.ErrValidation)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: begin tx: %v", apperrors.ErrPersistence, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID).
		StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, fmt.Errorf("%w: message %d", apperrors.ErrNotFound, messageID)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: lock message: %v", apperrors.ErrPersistence, err)
	}
	if msg.RoomID != roomID {
		err = fmt.Errorf("%w: message %d does not belong to room %d", apperrors.ErrValidation, messageID, roomID)
		return models.Message{}, err
	}

	msg.Reactions = tally(msg.Reactions, userID, emoji)

	err = tx.QueryRowxContext(ctx,
		`UPDATE messages SET reactions=$2 WHERE id=$1 RETURNING `+messageColumns,
		messageID, msg.Reactions).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: update reactions: %v", apperrors.ErrPersistence, err)
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("%w: commit: %v", apperrors.ErrPersistence, err)
	}
	return msg, nil
}

func tally(reactions models.ReactionList, userID, emoji string) models.ReactionList {
	for i, reaction := range reactions {
		if reaction.Emoji != emoji {
			continue
		}
		for _, u := range reaction.Users {
			if u == userID {
				return reactions
			}
		}
		reactions[i].Users = append(reaction.Users, userID)
		reactions[i].Count = len(reactions[i].Users)
		return reactions
	}
	return append(reactions, models.Reaction{Emoji: emoji, Count: 1, Users: []string{userID}})
}

func (r *MessageRepo) getMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, fmt.Errorf("%w: message %d", apperrors.ErrNotFound, messageID)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: get message: %v", apperrors.ErrPersistence, err)
	}
	return msg, nil
}
