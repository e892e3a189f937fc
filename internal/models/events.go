package models

// Event types pushed over websocket connections.
const (
	EventChat   = "chat"
	EventSystem = "system"
	EventTyping = "typing"
	EventEdited = "edited"
)

// Event is the outbound frame pushed to live websocket clients.
type Event struct {
	Type     string   `json:"type"`
	RoomID   int64    `json:"room_id,omitempty"`
	SenderID string   `json:"sender_id,omitempty"`
	Message  *Message `json:"message,omitempty"`
	Text     string   `json:"text,omitempty"`
	IsTyping bool     `json:"is_typing,omitempty"`
}

// InboundFrame is a control message received from a connected client.
type InboundFrame struct {
	Type     string `json:"type"`
	RoomID   int64  `json:"room_id"`
	Content  string `json:"content,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}
