package client

import (
	"log"
	"net/url"
	"regexp"
	"sync"
	"time"

	"drawsync/internal/models"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay         = 1000 * time.Millisecond
	defaultMaxDelay          = 10000 * time.Millisecond
	defaultMaxAttempts       = 5
	defaultHeartbeatInterval = 30 * time.Second
)

var joinedRoomPattern = regexp.MustCompile(`joined room (\S+)`)

// Conn is the transport surface the manager needs from a socket
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a socket to the gateway
type Dialer interface {
	Dial(rawURL string) (Conn, error)
}

type gorillaDialer struct{}

func (gorillaDialer) Dial(rawURL string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Manager. Zero values fall back to the defaults
// above; URL is required.
type Options struct {
	// URL of the gateway socket endpoint, e.g. "ws://localhost:8080/ws".
	// The token is appended as a query parameter at connect time.
	URL string

	BaseDelay         time.Duration
	MaxDelay          time.Duration
	MaxAttempts       int
	HeartbeatInterval time.Duration

	Dialer    Dialer
	Scheduler Scheduler
}

// Manager presents one logical connection over an unreliable transport:
// connect/disconnect lifecycle, heartbeat, capped-exponential-backoff
// reconnection, and FIFO queueing of outbound events while disconnected.
type Manager struct {
	opts Options

	mu      sync.Mutex
	state   ConnectionState
	conn    Conn
	token   string
	queue   []*models.Event
	attempt int

	// generation invalidates callbacks from connections that have been
	// superseded; bumped on every new dial and on explicit disconnect
	generation int

	explicit bool // last close was a local Disconnect

	cancelReconnect CancelFunc
	cancelHeartbeat CancelFunc

	// writeMu serializes socket writes and is held across the whole
	// queue flush, so queued events always precede newly-issued sends
	writeMu sync.Mutex

	nextHandlerID   int
	messageHandlers map[int]func(*models.Event)
	roomHandlers    map[int]func(roomID string)
	stateHandlers   map[int]func(ConnectionState)
}

// NewManager creates a manager. It does not connect.
func NewManager(opts Options) *Manager {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = defaultHeartbeatInterval
	}
	if opts.Dialer == nil {
		opts.Dialer = gorillaDialer{}
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler()
	}

	return &Manager{
		opts:            opts,
		state:           StateDisconnected,
		messageHandlers: make(map[int]func(*models.Event)),
		roomHandlers:    make(map[int]func(string)),
		stateHandlers:   make(map[int]func(ConnectionState)),
	}
}

// Connect starts connecting with the given token. A no-op while already
// CONNECTING or CONNECTED; from ERROR or DISCONNECTED it starts fresh.
func (m *Manager) Connect(token string) {
	m.mu.Lock()

	if token == "" {
		notify := m.setStateLocked(StateError)
		m.mu.Unlock()
		m.notifyState(notify, StateError)
		return
	}
	if m.state == StateConnecting || m.state == StateConnected {
		m.mu.Unlock()
		return
	}

	m.cleanupLocked()
	m.token = token
	m.explicit = false
	// A user-initiated connect gets the full retry budget, whatever a
	// previous run left behind
	m.attempt = 0
	m.generation++
	generation := m.generation

	notify := m.setStateLocked(StateConnecting)
	m.mu.Unlock()
	m.notifyState(notify, StateConnecting)

	go m.dial(generation, token)
}

func (m *Manager) dial(generation int, token string) {
	conn, err := m.opts.Dialer.Dial(m.dialURL(token))

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		m.mu.Unlock()
		m.handleClose(generation, err)
		return
	}

	m.conn = conn
	m.attempt = 0
	queued := m.queue
	m.queue = nil

	// Hold writeMu across the flush so no newly-issued send can slip in
	// between queued events.
	m.writeMu.Lock()

	notify := m.setStateLocked(StateConnected)
	m.startHeartbeatLocked(generation)
	m.mu.Unlock()

	for _, ev := range queued {
		if err := conn.WriteJSON(ev); err != nil {
			log.Printf("[WS] Failed to flush queued event: %v", err)
		}
	}
	m.writeMu.Unlock()

	m.notifyState(notify, StateConnected)

	go m.readLoop(generation, conn)
}

func (m *Manager) readLoop(generation int, conn Conn) {
	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			m.handleClose(generation, err)
			return
		}
		m.dispatch(&ev)
	}
}

func (m *Manager) dispatch(ev *models.Event) {
	// Heartbeat acknowledgment, never forwarded
	if ev.Type == models.EventPong {
		return
	}

	if ev.Type == models.EventSystem {
		if match := joinedRoomPattern.FindStringSubmatch(ev.Content); match != nil {
			roomID := match[1]
			for _, handler := range m.snapshotRoomHandlers() {
				handler(roomID)
			}
		}
	}

	for _, handler := range m.snapshotMessageHandlers() {
		handler(ev)
	}
}

// handleClose is the single exit path for a dead transport: dial
// failures and read errors both land here.
func (m *Manager) handleClose(generation int, cause error) {
	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		return
	}

	m.stopHeartbeatLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}

	if m.explicit {
		notify := m.setStateLocked(StateDisconnected)
		m.mu.Unlock()
		m.notifyState(notify, StateDisconnected)
		return
	}

	if m.attempt >= m.opts.MaxAttempts {
		log.Printf("[WS] Max reconnection attempts reached")
		notify := m.setStateLocked(StateError)
		m.mu.Unlock()
		m.notifyState(notify, StateError)
		return
	}

	m.attempt++
	delay := backoffDelay(m.attempt, m.opts.BaseDelay, m.opts.MaxDelay)
	token := m.token

	log.Printf("[WS] Reconnecting in %s (attempt %d/%d): %v",
		delay, m.attempt, m.opts.MaxAttempts, cause)

	notify := m.setStateLocked(StateReconnecting)
	m.cancelReconnect = m.opts.Scheduler.Schedule(delay, func() {
		m.Connect(token)
	})
	m.mu.Unlock()
	m.notifyState(notify, StateReconnecting)
}

// backoffDelay is the capped exponential schedule:
// min(base * 2^attempt, max)
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}

// Disconnect closes the connection for good. Unlike a network drop it
// never triggers reconnection; only a fresh Connect resumes.
func (m *Manager) Disconnect() {
	m.mu.Lock()

	m.explicit = true
	m.generation++
	m.cleanupLocked()

	notify := m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	m.notifyState(notify, StateDisconnected)
}

// cleanupLocked cancels timers and closes any live socket
func (m *Manager) cleanupLocked() {
	if m.cancelReconnect != nil {
		m.cancelReconnect()
		m.cancelReconnect = nil
	}
	m.stopHeartbeatLocked()

	if m.conn != nil {
		m.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"))
		m.conn.Close()
		m.conn = nil
	}
}

func (m *Manager) startHeartbeatLocked(generation int) {
	var tick func()
	tick = func() {
		m.mu.Lock()
		if m.generation != generation || m.state != StateConnected || m.conn == nil {
			m.mu.Unlock()
			return
		}
		conn := m.conn
		m.cancelHeartbeat = m.opts.Scheduler.Schedule(m.opts.HeartbeatInterval, tick)
		m.mu.Unlock()

		ping := models.NewEvent(models.EventPing, "", "")
		m.writeMu.Lock()
		if err := conn.WriteJSON(ping); err != nil {
			log.Printf("[WS] Heartbeat write failed: %v", err)
		}
		m.writeMu.Unlock()
	}

	m.cancelHeartbeat = m.opts.Scheduler.Schedule(m.opts.HeartbeatInterval, tick)
}

func (m *Manager) stopHeartbeatLocked() {
	if m.cancelHeartbeat != nil {
		m.cancelHeartbeat()
		m.cancelHeartbeat = nil
	}
}

// Send transmits an event, or queues it in FIFO order while not
// CONNECTED. Queued events are flushed, in order, after the next
// successful (re)connection; nothing is dropped and no error is raised.
func (m *Manager) Send(ev *models.Event) {
	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.queue = append(m.queue, ev)
		m.mu.Unlock()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	m.writeMu.Lock()
	err := conn.WriteJSON(ev)
	m.writeMu.Unlock()
	if err != nil {
		// The read loop will observe the dead transport and drive the
		// reconnect; the event is lost like any other in-flight frame.
		log.Printf("[WS] Send failed: %v", err)
	}
}

// JoinRoom asks the gateway to bind this session to a room
func (m *Manager) JoinRoom(roomID string) {
	ev := models.NewEvent(models.EventJoin, "", "")
	ev.RoomID = roomID
	m.Send(ev)
}

// LeaveRoom unbinds from the current room
func (m *Manager) LeaveRoom() {
	m.Send(models.NewEvent(models.EventLeave, "", ""))
}

// SendChat sends a chat message to a room
func (m *Manager) SendChat(roomID, content string) {
	ev := models.NewEvent(models.EventChat, "", "")
	ev.RoomID = roomID
	ev.Content = content
	m.Send(ev)
}

// SendDraw sends a stroke. The server discards the embedded user fields
// and stroke id and asserts its own.
func (m *Manager) SendDraw(roomID string, stroke *models.Stroke) {
	ev := models.NewEvent(models.EventDraw, "", "")
	ev.RoomID = roomID
	ev.Stroke = stroke
	m.Send(ev)
}

// SendClear asks the room to drop its stroke log
func (m *Manager) SendClear(roomID string) {
	ev := models.NewEvent(models.EventClear, "", "")
	ev.RoomID = roomID
	m.Send(ev)
}

// OnMessage subscribes to inbound events (except pong). Returns an
// unsubscribe function.
func (m *Manager) OnMessage(handler func(*models.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.messageHandlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.messageHandlers, id)
	}
}

// OnRoomJoined subscribes to room-join notifications parsed from system
// events. Returns an unsubscribe function.
func (m *Manager) OnRoomJoined(handler func(roomID string)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.roomHandlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.roomHandlers, id)
	}
}

// OnStateChange subscribes to connection state transitions. Returns an
// unsubscribe function.
func (m *Manager) OnStateChange(handler func(ConnectionState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextHandlerID
	m.nextHandlerID++
	m.stateHandlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateHandlers, id)
	}
}

// State returns the current connection state
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// QueueLength returns the number of events waiting for a connection
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

func (m *Manager) dialURL(token string) string {
	return m.opts.URL + "?token=" + url.QueryEscape(token)
}

// setStateLocked updates state and returns the handlers to notify once
// the lock is released; handlers never run under the manager lock.
func (m *Manager) setStateLocked(state ConnectionState) []func(ConnectionState) {
	if m.state == state {
		return nil
	}
	m.state = state
	log.Printf("[WS] State changed to: %s", state)

	handlers := make([]func(ConnectionState), 0, len(m.stateHandlers))
	for _, handler := range m.stateHandlers {
		handlers = append(handlers, handler)
	}
	return handlers
}

func (m *Manager) notifyState(handlers []func(ConnectionState), state ConnectionState) {
	for _, handler := range handlers {
		handler(state)
	}
}

func (m *Manager) snapshotMessageHandlers() []func(*models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handlers := make([]func(*models.Event), 0, len(m.messageHandlers))
	for _, handler := range m.messageHandlers {
		handlers = append(handlers, handler)
	}
	return handlers
}

func (m *Manager) snapshotRoomHandlers() []func(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handlers := make([]func(string), 0, len(m.roomHandlers))
	for _, handler := range m.roomHandlers {
		handlers = append(handlers, handler)
	}
	return handlers
}
