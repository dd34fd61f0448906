package hub

import (
	"fmt"

	"drawsync/internal/models"
)

// ChatHistoryLimit caps each room's in-memory chat history. The 101st
// message evicts the 1st.
const ChatHistoryLimit = 100

// Room is the live state of a named room: membership, the bounded chat
// history used for replay, and the append-only stroke log. Rooms exist
// only while they have members; state dies with the room.
type Room struct {
	ID   string
	Name string

	members map[string]*Session // userId -> session, one session per user
	chat    []*models.Event
	strokes []*models.Stroke
}

// Registry owns the roomId -> live room mapping. It has no locking of
// its own: every method is called from the hub's event loop, which is
// the single writer for all room state.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreateRoom returns the existing room or lazily creates an empty one
func (r *Registry) GetOrCreateRoom(roomID string) *Room {
	if room, ok := r.rooms[roomID]; ok {
		return room
	}

	room := &Room{
		ID:      roomID,
		Name:    fmt.Sprintf("Room %s", roomID),
		members: make(map[string]*Session),
	}
	r.rooms[roomID] = room
	return room
}

// Room returns the live room for an id, if it exists
func (r *Registry) Room(roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// Remove deletes a room and discards its history and stroke log
func (r *Registry) Remove(roomID string) {
	delete(r.rooms, roomID)
}

// RoomCount returns the number of live rooms
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}

// Rooms returns all live rooms
func (r *Registry) Rooms() []*Room {
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// AddMember registers a session under its userId. Last writer wins: a
// second session for the same user replaces the first in the membership
// map, but the older transport is not closed here.
func (rm *Room) AddMember(s *Session) {
	rm.members[s.UserID] = s
}

// RemoveMember removes the session from the room, but only if the
// membership entry still belongs to it. A session that was displaced by
// a newer one for the same user must not evict its replacement.
func (rm *Room) RemoveMember(s *Session) bool {
	current, ok := rm.members[s.UserID]
	if !ok || current != s {
		return false
	}
	delete(rm.members, s.UserID)
	return true
}

// MemberCount returns the number of member sessions
func (rm *Room) MemberCount() int {
	return len(rm.members)
}

// Members returns the current member sessions
func (rm *Room) Members() []*Session {
	members := make([]*Session, 0, len(rm.members))
	for _, s := range rm.members {
		members = append(members, s)
	}
	return members
}

// Member returns the session registered for a userId, if any
func (rm *Room) Member(userID string) (*Session, bool) {
	s, ok := rm.members[userID]
	return s, ok
}

// RecordChat appends to the bounded chat history, evicting the oldest
// entry first when the cap is reached.
func (rm *Room) RecordChat(ev *models.Event) {
	if len(rm.chat) >= ChatHistoryLimit {
		rm.chat = rm.chat[1:]
	}
	rm.chat = append(rm.chat, ev)
}

// ChatHistory returns the chat history oldest-first
func (rm *Room) ChatHistory() []*models.Event {
	history := make([]*models.Event, len(rm.chat))
	copy(history, rm.chat)
	return history
}

// RecordStroke appends to the stroke log
func (rm *Room) RecordStroke(stroke *models.Stroke) {
	rm.strokes = append(rm.strokes, stroke)
}

// Strokes returns the stroke log in insertion order
func (rm *Room) Strokes() []*models.Stroke {
	strokes := make([]*models.Stroke, len(rm.strokes))
	copy(strokes, rm.strokes)
	return strokes
}

// ClearStrokes empties the stroke log. Chat history is unaffected.
func (rm *Room) ClearStrokes() {
	rm.strokes = nil
}
