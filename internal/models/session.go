package models

import (
	"time"

	"github.com/segmentio/ksuid"
)

// Session represents a live, authenticated binding between one user
// identity and one socket connection. RoomID is the room the session is
// currently bound to, empty while unbound; it is only ever touched by the
// hub's event loop.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserName     string    `json:"user_name"`
	RoomID       string    `json:"room_id,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// UserInfo is the identity slice of a session as seen by other members
type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func NewSession(userID, userName string) *Session {
	return &Session{
		ID:           ksuid.New().String(),
		UserID:       userID,
		UserName:     userName,
		ConnectedAt:  time.Now(),
		LastActiveAt: time.Now(),
	}
}
