package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// Dispatcher ties the room store, message log and connection registry
// together for the send path. Persistence is the source of truth; live push
// is a best-effort optimization and never fails a send.
type Dispatcher struct {
	rooms    repositories.RoomRepository
	messages repositories.MessageRepository
	registry *ws.Registry
	log      zerolog.Logger
}

// New constructs a Dispatcher.
func New(rooms repositories.RoomRepository, messages repositories.MessageRepository, registry *ws.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rooms:    rooms,
		messages: messages,
		registry: registry,
		log:      log.With().Str("component", "dispatcher").Logger(),
	}
}

// Send authorizes, persists and fans out a message. Once the append commits
// the message is delivered at least once: every member without a live handle
// recovers it on their next history fetch, and a push failure only prunes
// the dead handle.
func (d *Dispatcher) Send(ctx context.Context, roomID int64, senderID, body string, attachments []models.Attachment) (models.Message, error) {
	member, err := d.rooms.IsMember(ctx, roomID, senderID)
	if err != nil {
		return models.Message{}, err
	}
	if !member {
		return models.Message{}, fmt.Errorf("%w: user %s is not a member of room %d", apperrors.ErrAuthorization, senderID, roomID)
	}

	msg, err := d.messages.Append(ctx, roomID, &senderID, body, attachments)
	if err != nil {
		return models.Message{}, err
	}

	d.fanOut(ctx, roomID, senderID, models.Event{
		Type:     models.EventChat,
		RoomID:   roomID,
		SenderID: senderID,
		Message:  &msg,
	})
	return msg, nil
}

// SendSystem appends a system message (no sender) and pushes it to every
// live member.
func (d *Dispatcher) SendSystem(ctx context.Context, roomID int64, text string) (models.Message, error) {
	msg, err := d.messages.Append(ctx, roomID, nil, text, nil)
	if err != nil {
		return models.Message{}, err
	}

	d.fanOut(ctx, roomID, "", models.Event{
		Type:    models.EventSystem,
		RoomID:  roomID,
		Message: &msg,
	})
	return msg, nil
}

// NotifyEdit pushes an edited message to every live member. The edit itself
// was already persisted by the message log.
func (d *Dispatcher) NotifyEdit(ctx context.Context, msg models.Message) {
	event := models.Event{Type: models.EventEdited, RoomID: msg.RoomID, Message: &msg}
	if msg.SenderID != nil {
		event.SenderID = *msg.SenderID
	}
	d.fanOut(ctx, msg.RoomID, "", event)
}

// SetTyping fans out an ephemeral typing signal to the other live members of
// the room. Nothing is persisted and a dropped signal is acceptable loss.
func (d *Dispatcher) SetTyping(ctx context.Context, roomID int64, userID string, isTyping bool) {
	member, err := d.rooms.IsMember(ctx, roomID, userID)
	if err != nil || !member {
		d.log.Warn().Err(err).Str("user_id", userID).Int64("room_id", roomID).Msg("typing signal from non-member dropped")
		return
	}

	d.fanOut(ctx, roomID, userID, models.Event{
		Type:     models.EventTyping,
		RoomID:   roomID,
		SenderID: userID,
		IsTyping: isTyping,
	})
}

// fanOut pushes an event to every live handle of every room member except
// excludeUserID. Pushes run concurrently and are supervised: a failure is
// logged, counted and prunes the handle, and no recipient's outcome affects
// another's. Ordering across recipients is unspecified; per-recipient order
// comes from the message log.
func (d *Dispatcher) fanOut(ctx context.Context, roomID int64, excludeUserID string, event models.Event) {
	members, err := d.rooms.ListMembers(ctx, roomID)
	if err != nil {
		d.log.Warn().Err(err).Int64("room_id", roomID).Msg("membership resolve failed, skipping fan-out")
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.log.Error().Err(err).Int64("room_id", roomID).Msg("event marshal failed")
		return
	}

	var wg sync.WaitGroup
	for _, m := range members {
		if m.UserID == excludeUserID {
			continue
		}
		for _, conn := range d.registry.HandlesFor(m.UserID) {
			wg.Add(1)
			go func(conn ws.Conn) {
				defer wg.Done()
				if err := conn.Handle.Push(payload); err != nil {
					observability.IncFanoutPush("failed")
					d.log.Warn().Err(err).
						Str("user_id", conn.UserID).
						Str("conn_id", conn.ID).
						Int64("room_id", roomID).
						Msg("push failed, pruning handle")
					d.registry.Drop(conn.ID)
					return
				}
				observability.IncFanoutPush("delivered")
			}(conn)
		}
	}
	wg.Wait()
}
