package client

import (
	"errors"
	"sync"
	"testing"
	"time"

	"drawsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fakeConn is an in-memory transport: reads come from the inbound
// channel, writes are recorded, Close unblocks pending reads.
type fakeConn struct {
	mu        sync.Mutex
	writes    []*models.Event
	inbound   chan *models.Event
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan *models.Event, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v interface{}) error {
	select {
	case ev := <-c.inbound:
		*(v.(*models.Event)) = *ev
		return nil
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev, ok := v.(*models.Event); ok {
		clone := *ev
		c.writes = append(c.writes, &clone)
	}
	return nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() []*models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]*models.Event, len(c.writes))
	copy(events, c.writes)
	return events
}

// fakeDialer hands out one conn per attempt; a nil entry fails the dial
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
}

func (d *fakeDialer) Dial(rawURL string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, rawURL)

	if len(d.conns) == 0 {
		return nil, errors.New("dial refused")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	if conn == nil {
		return nil, errors.New("dial refused")
	}
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// fakeScheduler records tasks; tests fire them by hand
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	delay     time.Duration
	run       func()
	cancelled bool
	fired     bool
}

func (s *fakeScheduler) Schedule(delay time.Duration, task func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	ft := &fakeTask{delay: delay, run: task}
	s.tasks = append(s.tasks, ft)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ft.cancelled = true
	}
}

func (s *fakeScheduler) fireNext(t *testing.T) time.Duration {
	t.Helper()
	s.mu.Lock()
	var next *fakeTask
	for _, task := range s.tasks {
		if !task.fired && !task.cancelled {
			next = task
			break
		}
	}
	require.NotNil(t, next, "no pending task to fire")
	next.fired = true
	run := next.run
	delay := next.delay
	s.mu.Unlock()

	run()
	return delay
}

func (s *fakeScheduler) pendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if !task.fired && !task.cancelled {
			n++
		}
	}
	return n
}

func newTestManager(dialer *fakeDialer, scheduler *fakeScheduler) *Manager {
	return NewManager(Options{
		URL:       "ws://example.test/ws",
		Dialer:    dialer,
		Scheduler: scheduler,
	})
}

func chatEvents(events []*models.Event) []*models.Event {
	var chats []*models.Event
	for _, ev := range events {
		if ev.Type == models.EventChat {
			chats = append(chats, ev)
		}
	}
	return chats
}

func TestBackoffDelaySequence(t *testing.T) {
	base := 1000 * time.Millisecond
	max := 10000 * time.Millisecond

	want := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	for attempt := 1; attempt <= 5; attempt++ {
		assert.Equal(t, want[attempt-1], backoffDelay(attempt, base, max),
			"attempt %d", attempt)
	}
}

func TestConnect_TransitionsToConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	m := newTestManager(dialer, &fakeScheduler{})

	m.Connect("tok-123")

	require.Eventually(t, func() bool {
		return m.State() == StateConnected
	}, waitFor, tick)

	require.Equal(t, 1, dialer.dialCount())
	assert.Contains(t, dialer.urls[0], "token=tok-123")
}

func TestConnect_NoOpWhileConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn, newFakeConn()}}
	m := newTestManager(dialer, &fakeScheduler{})

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	m.Connect("tok")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount())
}

func TestConnect_EmptyTokenIsError(t *testing.T) {
	dialer := &fakeDialer{}
	m := newTestManager(dialer, &fakeScheduler{})

	m.Connect("")

	assert.Equal(t, StateError, m.State())
	assert.Equal(t, 0, dialer.dialCount())
}

func TestSend_QueuedWhileDisconnectedAndFlushedInOrder(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	m := newTestManager(dialer, &fakeScheduler{})

	m.SendChat("r1", "one")
	m.SendChat("r1", "two")
	m.SendChat("r1", "three")
	assert.Equal(t, 3, m.QueueLength())

	m.Connect("tok")
	require.Eventually(t, func() bool {
		return len(chatEvents(conn.written())) == 3
	}, waitFor, tick)

	m.SendChat("r1", "four")

	require.Eventually(t, func() bool {
		return len(chatEvents(conn.written())) == 4
	}, waitFor, tick)

	var contents []string
	for _, ev := range chatEvents(conn.written()) {
		contents = append(contents, ev.Content)
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, contents)
	assert.Equal(t, 0, m.QueueLength())
}

func TestReconnect_BackoffScheduleAndTerminalError(t *testing.T) {
	dialer := &fakeDialer{} // every dial fails
	scheduler := &fakeScheduler{}
	m := newTestManager(dialer, scheduler)

	m.Connect("tok")

	wantDelays := []time.Duration{
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}

	for i, want := range wantDelays {
		require.Eventually(t, func() bool {
			return scheduler.pendingCount() == 1
		}, waitFor, tick, "reconnect %d not scheduled", i+1)

		require.Equal(t, StateReconnecting, m.State())
		got := scheduler.fireNext(t)
		assert.Equal(t, want, got, "delay for attempt %d", i+1)
	}

	require.Eventually(t, func() bool {
		return m.State() == StateError
	}, waitFor, tick)
	assert.Equal(t, 0, scheduler.pendingCount())

	// Terminal: recovery needs an explicit Connect
	conn := newFakeConn()
	dialer.mu.Lock()
	dialer.conns = []*fakeConn{conn}
	dialer.mu.Unlock()

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)
}

func TestConnect_FreshConnectRestartsBackoff(t *testing.T) {
	dialer := &fakeDialer{} // every dial fails
	scheduler := &fakeScheduler{}
	m := newTestManager(dialer, scheduler)

	m.Connect("tok")

	// Burn two retries: delays 2000 then 4000, leaving the third pending
	for i := 0; i < 2; i++ {
		require.Eventually(t, func() bool {
			return scheduler.pendingCount() == 1
		}, waitFor, tick)
		scheduler.fireNext(t)
	}
	require.Eventually(t, func() bool {
		return scheduler.pendingCount() == 1
	}, waitFor, tick)

	m.Disconnect()
	require.Equal(t, 0, scheduler.pendingCount())

	// A fresh user-initiated Connect starts the schedule over at the
	// base delay instead of resuming mid-run
	m.Connect("tok")
	require.Eventually(t, func() bool {
		return scheduler.pendingCount() == 1
	}, waitFor, tick)
	assert.Equal(t, 2000*time.Millisecond, scheduler.fireNext(t))
}

func TestDisconnect_IsExplicitAndFinal(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	scheduler := &fakeScheduler{}
	m := newTestManager(dialer, scheduler)

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	m.Disconnect()

	assert.Equal(t, StateDisconnected, m.State())
	require.Eventually(t, func() bool {
		return scheduler.pendingCount() == 0
	}, waitFor, tick)

	// The dead transport's read error must not resurrect the connection
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestDispatch_PongSwallowedOthersForwardedInOrder(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	m := newTestManager(dialer, &fakeScheduler{})

	var mu sync.Mutex
	var received []*models.Event
	m.OnMessage(func(ev *models.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, ev)
	})

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	conn.inbound <- models.NewEvent(models.EventPong, models.SystemUserID, models.SystemUserName)
	first := models.NewEvent(models.EventChat, "user-b", "Bob")
	first.Content = "hello"
	second := models.NewEvent(models.EventDraw, "user-b", "Bob")
	second.Stroke = &models.Stroke{Type: models.ShapeCircle}
	conn.inbound <- first
	conn.inbound <- second

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, models.EventChat, received[0].Type)
	assert.Equal(t, models.EventDraw, received[1].Type)
}

func TestDispatch_RoomJoinedNotification(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	m := newTestManager(dialer, &fakeScheduler{})

	var mu sync.Mutex
	var joined []string
	m.OnRoomJoined(func(roomID string) {
		mu.Lock()
		defer mu.Unlock()
		joined = append(joined, roomID)
	})

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	notice := models.NewSystemEvent("Alice joined room r42")
	conn.inbound <- notice

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(joined) == 1 && joined[0] == "r42"
	}, waitFor, tick)
}

func TestHeartbeat_SendsPingWhileConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	scheduler := &fakeScheduler{}
	m := newTestManager(dialer, scheduler)

	m.Connect("tok")
	require.Eventually(t, func() bool { return m.State() == StateConnected }, waitFor, tick)

	// The only pending task after connect is the heartbeat
	require.Equal(t, 1, scheduler.pendingCount())
	delay := scheduler.fireNext(t)
	assert.Equal(t, defaultHeartbeatInterval, delay)

	var pings int
	for _, ev := range conn.written() {
		if ev.Type == models.EventPing {
			pings++
		}
	}
	assert.Equal(t, 1, pings)

	// Heartbeat reschedules itself
	assert.Equal(t, 1, scheduler.pendingCount())
}

func TestStateChangeSubscriptionAndUnsubscribe(t *testing.T) {
	conn := newFakeConn()
	dialer := &fakeDialer{conns: []*fakeConn{conn}}
	m := newTestManager(dialer, &fakeScheduler{})

	var mu sync.Mutex
	var states []ConnectionState
	unsubscribe := m.OnStateChange(func(s ConnectionState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	m.Connect("tok")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(states) == 2
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, []ConnectionState{StateConnecting, StateConnected}, states)
	mu.Unlock()

	unsubscribe()
	m.Disconnect()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, states, 2)
}
