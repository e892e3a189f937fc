package models

import "time"

// Room kinds.
const (
	RoomKindPrivate = "private"
	RoomKindPublic  = "public"
	RoomKindDirect  = "direct"
)

// Room is a named, membership-scoped container for an ordered message stream.
type Room struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Kind        string    `db:"kind" json:"kind"`
	Description string    `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Member relates a user identity to a room. LastReadAt tracks read-receipt
// bookkeeping and is nil until the member first marks a message read.
type Member struct {
	RoomID     int64      `db:"room_id" json:"room_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at,omitempty"`
}

// ValidRoomKind reports whether kind is one of the known room kinds.
func ValidRoomKind(kind string) bool {
	switch kind {
	case RoomKindPrivate, RoomKindPublic, RoomKindDirect:
		return true
	}
	return false
}
