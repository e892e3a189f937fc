package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Attachment types.
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
	AttachmentLink  = "link"
)

// Attachment describes a file or link carried by a message.
type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// Reaction is an emoji tally on a message.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// AttachmentList maps to a JSONB column.
type AttachmentList []Attachment

// ReactionList maps to a JSONB column.
type ReactionList []Reaction

// Message is one entry in a room's append-only log. SenderID is nil for
// system messages. Messages are never reordered or deleted; only edits,
// reaction tallies and read receipts mutate them after creation.
type Message struct {
	ID          int64          `db:"id" json:"id"`
	RoomID      int64          `db:"room_id" json:"room_id"`
	SenderID    *string        `db:"sender_id" json:"sender_id,omitempty"`
	Body        string         `db:"body" json:"body"`
	Attachments AttachmentList `db:"attachments" json:"attachments,omitempty"`
	Reactions   ReactionList   `db:"reactions" json:"reactions,omitempty"`
	IsSystem    bool           `db:"is_system" json:"is_system"`
	IsEdited    bool           `db:"is_edited" json:"is_edited"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *AttachmentList) Scan(src any) error {
	return scanJSON(src, a)
}

func (r ReactionList) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

func (r *ReactionList) Scan(src any) error {
	return scanJSON(src, r)
}

func scanJSON(src, dst any) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, dst)
	case string:
		return json.Unmarshal([]byte(data), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
