package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the wire event union
type EventType string

const (
	EventJoin   EventType = "join"
	EventLeave  EventType = "leave"
	EventChat   EventType = "chat"
	EventDraw   EventType = "draw"
	EventClear  EventType = "clear"
	EventSystem EventType = "system"
	EventPing   EventType = "ping"
	EventPong   EventType = "pong"
)

// SystemUserID is the origin of server-generated system events
const (
	SystemUserID   = "system"
	SystemUserName = "System"
)

// Event is the single wire envelope exchanged over the socket.
// Fields beyond id/type/userId/userName/timestamp are present per variant:
// chat carries Content, draw carries Stroke, room-scoped events carry RoomID.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RoomID    string    `json:"roomId,omitempty"`
	Content   string    `json:"content,omitempty"`
	Stroke    *Stroke   `json:"stroke,omitempty"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and timestamp.
// Identity fields are always set by the caller that asserts them -
// on the server that is the gateway, never the remote client.
func NewEvent(eventType EventType, userID, userName string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    userID,
		UserName:  userName,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemEvent creates a server-originated system event
func NewSystemEvent(content string) *Event {
	ev := NewEvent(EventSystem, SystemUserID, SystemUserName)
	ev.Content = content
	return ev
}
