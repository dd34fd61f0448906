package hub

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"drawsync/internal/auth"
	"drawsync/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewaySecret = "gateway-test-secret"

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()

	h := New()
	h.Start()
	t.Cleanup(h.Shutdown)

	gateway := NewGateway(h, auth.NewAuthenticator(gatewaySecret))
	server := httptest.NewServer(http.HandlerFunc(gateway.HandleConnection))
	t.Cleanup(server.Close)
	return server
}

func signGatewayToken(t *testing.T, userID, userName string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    userID,
		"email": userID + "@example.com",
		"name":  userName,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(gatewaySecret))
	require.NoError(t, err)
	return signed
}

func dialGateway(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	if token != "" {
		wsURL += "?token=" + url.QueryEscape(token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return &ev
}

// readUntil reads events until one matches, failing the test on timeout
func readUntil(t *testing.T, conn *websocket.Conn, match func(*models.Event) bool) *models.Event {
	t.Helper()
	for i := 0; i < 20; i++ {
		ev := readEvent(t, conn)
		if match(ev) {
			return ev
		}
	}
	t.Fatal("event not received")
	return nil
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev *models.Event) {
	t.Helper()
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.WriteJSON(ev))
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	server := newGatewayServer(t)

	conn := dialGateway(t, server, "")

	var ev models.Event
	err := conn.ReadJSON(&ev)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation),
		"expected close code 1008, got: %v", err)
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	server := newGatewayServer(t)

	conn := dialGateway(t, server, "bogus.token.value")

	var ev models.Event
	err := conn.ReadJSON(&ev)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation))
}

func TestGateway_AcceptsValidToken(t *testing.T) {
	server := newGatewayServer(t)

	conn := dialGateway(t, server, signGatewayToken(t, "user-a", "Alice"))

	greeting := readEvent(t, conn)
	assert.Equal(t, models.EventSystem, greeting.Type)
	assert.Equal(t, "Connected to server", greeting.Content)
}

func TestGateway_DrawReachesOtherMemberWithVerifiedIdentity(t *testing.T) {
	server := newGatewayServer(t)

	connA := dialGateway(t, server, signGatewayToken(t, "user-a", "Alice"))
	connB := dialGateway(t, server, signGatewayToken(t, "user-b", "Bob"))

	joinA := models.NewEvent(models.EventJoin, "", "")
	joinA.RoomID = "r1"
	sendEvent(t, connA, joinA)
	readUntil(t, connA, func(ev *models.Event) bool {
		return ev.Type == models.EventSystem && strings.Contains(ev.Content, "joined room r1")
	})

	joinB := models.NewEvent(models.EventJoin, "", "")
	joinB.RoomID = "r1"
	sendEvent(t, connB, joinB)
	readUntil(t, connB, func(ev *models.Event) bool {
		return ev.Type == models.EventSystem && strings.Contains(ev.Content, "joined room r1")
	})

	draw := models.NewEvent(models.EventDraw, "client-asserted", "Mallory")
	draw.Stroke = &models.Stroke{
		ID:         "client-id",
		UserID:     "client-asserted",
		Type:       models.ShapeRectangle,
		StartPoint: models.Point{X: 1, Y: 1},
		EndPoint:   models.Point{X: 5, Y: 5},
	}
	sendEvent(t, connA, draw)

	received := readUntil(t, connB, func(ev *models.Event) bool {
		return ev.Type == models.EventDraw
	})

	assert.Equal(t, "user-a", received.UserID)
	require.NotNil(t, received.Stroke)
	assert.Equal(t, models.ShapeRectangle, received.Stroke.Type)
	assert.Equal(t, "user-a", received.Stroke.UserID)
	assert.NotEqual(t, "client-id", received.Stroke.ID)
}

func TestGateway_ChatWithoutJoinGetsPrivateError(t *testing.T) {
	server := newGatewayServer(t)

	conn := dialGateway(t, server, signGatewayToken(t, "user-a", "Alice"))
	readEvent(t, conn) // greeting

	chat := models.NewEvent(models.EventChat, "", "")
	chat.Content = "hello"
	sendEvent(t, conn, chat)

	ev := readEvent(t, conn)
	assert.Equal(t, models.EventSystem, ev.Type)
	assert.Equal(t, "You must join a room first", ev.Content)
}
