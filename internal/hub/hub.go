package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"drawsync/internal/middleware"
	"drawsync/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// Outbound buffer per session. A member whose buffer is full misses
	// the event; delivery is best-effort fan-out, not a durable log.
	sendBufferSize = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Session is a live, authenticated connection bound to the hub. It owns
// its transport handle rather than extending it; identity comes from the
// verified token, never from inbound frames.
type Session struct {
	*models.Session
	Conn *websocket.Conn
	Send chan *models.Event

	hub    *Hub
	closed bool // loop-confined: set once by handleUnregister
}

// Archiver is what the hub needs from chat persistence
type Archiver interface {
	Archive(ev *models.Event) error
}

type inboundFrame struct {
	session *Session
	data    []byte
}

// Hub is the server-side synchronization core. A single event-loop
// goroutine owns the registry and the live-user table; every inbound
// frame is handled to completion (parse, validate, mutate, broadcast)
// before the next one, which gives per-room causal ordering without
// locks.
type Hub struct {
	registry *Registry
	users    map[string]*models.UserInfo

	register   chan *Session
	unregister chan *Session
	inbound    chan inboundFrame

	archiver Archiver

	done    chan struct{}
	stopped chan struct{}
}

func New() *Hub {
	return &Hub{
		registry:   NewRegistry(),
		users:      make(map[string]*models.UserInfo),
		register:   make(chan *Session),
		unregister: make(chan *Session),
		inbound:    make(chan inboundFrame, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// SetArchiver attaches optional chat persistence
func (h *Hub) SetArchiver(archiver Archiver) {
	h.archiver = archiver
}

// Start begins the hub event loop
func (h *Hub) Start() {
	log.Println("🔄 Starting room hub...")

	go h.run()

	log.Println("✓ Room hub started")
}

func (h *Hub) run() {
	defer close(h.stopped)

	for {
		select {
		case <-h.done:
			log.Println("Room hub shutting down...")
			return

		case session := <-h.register:
			h.handleRegister(session)

		case session := <-h.unregister:
			h.handleUnregister(session)

		case frame := <-h.inbound:
			h.handleFrame(frame.session, frame.data)
		}
	}
}

// Register binds a freshly authenticated session to the hub
func (h *Hub) Register(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

// Unregister tears a session down; called by the read pump on any
// transport close, so an unexpected drop and an explicit leave follow
// the same path.
func (h *Hub) Unregister(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// Dispatch hands a raw inbound frame to the event loop
func (h *Hub) Dispatch(s *Session, data []byte) {
	select {
	case h.inbound <- inboundFrame{session: s, data: data}:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(s *Session) {
	if s.closed {
		return
	}

	h.users[s.UserID] = &models.UserInfo{ID: s.UserID, Name: s.UserName}

	log.Printf("  Session %s connected (user: %s, total users: %d)",
		s.ID, s.UserName, len(h.users))

	h.sendTo(s, models.NewSystemEvent("Connected to server"))
}

func (h *Hub) handleUnregister(s *Session) {
	if s.closed {
		return
	}
	s.closed = true

	h.leaveRoom(s)
	delete(h.users, s.UserID)
	close(s.Send)

	log.Printf("  Session %s disconnected (user: %s)", s.ID, s.UserName)
}

// handleFrame is one unit of work: parse, validate, mutate room state,
// broadcast. Nothing here blocks. Frames queued on the inbound channel
// can be dequeued after the same session's unregister; once the session
// is closed its Send channel is gone, so late frames are dropped.
func (h *Hub) handleFrame(s *Session, data []byte) {
	if s.closed {
		return
	}

	s.LastActiveAt = time.Now()

	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		h.sendError(s, "Error processing message")
		return
	}

	switch ev.Type {
	case models.EventJoin:
		if ev.RoomID == "" {
			h.sendError(s, "join requires a roomId")
			return
		}
		h.joinRoom(s, ev.RoomID)

	case models.EventLeave:
		h.leaveRoom(s)

	case models.EventChat:
		h.handleChat(s, &ev)

	case models.EventDraw:
		h.handleDraw(s, &ev)

	case models.EventClear:
		h.handleClear(s)

	case models.EventPing:
		h.sendTo(s, models.NewEvent(models.EventPong, models.SystemUserID, models.SystemUserName))

	default:
		h.sendError(s, "Error processing message")
	}
}

func (h *Hub) joinRoom(s *Session, roomID string) {
	// Leave current room if in one
	if s.RoomID != "" {
		h.leaveRoom(s)
	}

	room := h.registry.GetOrCreateRoom(roomID)
	room.AddMember(s)
	s.RoomID = roomID

	log.Printf("  Session %s joined room %s (total: %d users)",
		s.ID, roomID, room.MemberCount())

	join := models.NewSystemEvent(fmt.Sprintf("%s joined room %s", s.UserName, roomID))
	join.RoomID = roomID
	h.broadcast(room, join)

	// Replay history to the new member only, in original insertion
	// order, before any live event it could observe next.
	for _, msg := range room.ChatHistory() {
		h.sendTo(s, msg)
	}
	for _, stroke := range room.Strokes() {
		h.sendTo(s, h.strokeEvent(roomID, stroke))
	}
}

func (h *Hub) leaveRoom(s *Session) {
	if s.RoomID == "" {
		return
	}

	room, ok := h.registry.Room(s.RoomID)
	if ok && room.RemoveMember(s) {
		leave := models.NewSystemEvent(fmt.Sprintf("%s left room %s", s.UserName, room.ID))
		leave.RoomID = room.ID
		h.broadcast(room, leave)

		// Clean up empty rooms; their history dies with them
		if room.MemberCount() == 0 {
			h.registry.Remove(room.ID)
		}
	}

	s.RoomID = ""
}

func (h *Hub) handleChat(s *Session, ev *models.Event) {
	room, ok := h.requireRoom(s)
	if !ok {
		return
	}

	formatted := models.NewEvent(models.EventChat, s.UserID, s.UserName)
	formatted.RoomID = room.ID
	formatted.Content = ev.Content

	room.RecordChat(formatted)

	if h.archiver != nil {
		if err := h.archiver.Archive(formatted); err != nil {
			log.Printf("  Failed to archive chat event: %v", err)
		}
	}

	h.broadcast(room, formatted)
}

func (h *Hub) handleDraw(s *Session, ev *models.Event) {
	room, ok := h.requireRoom(s)
	if !ok {
		return
	}
	if ev.Stroke == nil {
		h.sendError(s, "draw requires a stroke")
		return
	}

	// Identity and id are server-asserted: a fresh stroke id is minted
	// and whatever user fields the client sent are discarded.
	stroke := *ev.Stroke
	stroke.ID = uuid.NewString()
	stroke.UserID = s.UserID

	room.RecordStroke(&stroke)

	formatted := models.NewEvent(models.EventDraw, s.UserID, s.UserName)
	formatted.RoomID = room.ID
	formatted.Stroke = &stroke

	h.broadcast(room, formatted)
}

func (h *Hub) handleClear(s *Session) {
	room, ok := h.requireRoom(s)
	if !ok {
		return
	}

	room.ClearStrokes()

	marker := models.NewEvent(models.EventClear, s.UserID, s.UserName)
	marker.RoomID = room.ID
	h.broadcast(room, marker)
}

// requireRoom resolves the sender's bound room; room-scoped events
// without a prior join earn a private system error, nothing else.
func (h *Hub) requireRoom(s *Session) (*Room, bool) {
	if s.RoomID == "" {
		h.sendError(s, "You must join a room first")
		return nil, false
	}

	room, ok := h.registry.Room(s.RoomID)
	if !ok {
		s.RoomID = ""
		h.sendError(s, "You must join a room first")
		return nil, false
	}
	return room, true
}

// strokeEvent wraps a logged stroke for replay
func (h *Hub) strokeEvent(roomID string, stroke *models.Stroke) *models.Event {
	userName := ""
	if user, ok := h.users[stroke.UserID]; ok {
		userName = user.Name
	}

	ev := models.NewEvent(models.EventDraw, stroke.UserID, userName)
	ev.RoomID = roomID
	ev.Stroke = stroke
	return ev
}

// broadcast fans an event out to every member of a room. Best-effort per
// recipient: a member whose buffer is full is skipped and never blocks
// delivery to the others.
func (h *Hub) broadcast(room *Room, ev *models.Event) {
	for _, member := range room.members {
		if member.closed {
			continue
		}
		select {
		case member.Send <- ev:
		default:
			log.Printf("⚠️  Session %s buffer full, dropping event %s", member.ID, ev.ID)
		}
	}
}

// sendTo delivers an event to a single session, same best-effort rules
func (h *Hub) sendTo(s *Session, ev *models.Event) {
	if s.closed {
		return
	}
	select {
	case s.Send <- ev:
	default:
		log.Printf("⚠️  Session %s buffer full, dropping event %s", s.ID, ev.ID)
	}
}

func (h *Hub) sendError(s *Session, content string) {
	h.sendTo(s, models.NewSystemEvent(content))
}

// Shutdown stops the event loop, waits for its current iteration to
// finish, and closes all live connections. Waiting matters: callers tear
// collaborators down next (the archiver closes its queue), which is only
// safe once no frame handler can still be running.
func (h *Hub) Shutdown() {
	log.Println("🛑 Shutting down room hub...")

	close(h.done)
	<-h.stopped

	for _, room := range h.registry.Rooms() {
		for _, s := range room.Members() {
			if s.Conn != nil {
				s.Conn.Close()
			}
		}
		h.registry.Remove(room.ID)
	}

	log.Println("✓ Room hub shutdown complete")
}

// Session pumps

// ReadPump reads frames from the socket and hands them to the hub loop.
// Any read error, expected or not, ends in Unregister, so a transport
// drop is handled exactly like an explicit leave.
func (s *Session) ReadPump(ctx context.Context) {
	defer func() {
		s.hub.Unregister(s)
		s.Conn.Close()
	}()

	s.Conn.SetReadDeadline(time.Now().Add(pongWait))
	s.Conn.SetPongHandler(func(string) error {
		s.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.Conn.SetReadDeadline(time.Now().Add(pongWait))

		_, span := middleware.StartSpan(ctx, "WebSocket.ProcessFrame",
			attribute.String("session.id", s.ID),
			attribute.Int("frame.size", len(data)),
		)

		s.hub.Dispatch(s, data)

		span.End()
	}
}

// WritePump drains the session's Send channel onto the socket. A
// separate goroutine per connection keeps a slow client from blocking
// the hub loop.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.Send:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.Conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			s.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
