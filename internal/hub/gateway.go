package hub

import (
	"log"
	"net/http"
	"time"

	"drawsync/internal/auth"
	"drawsync/internal/middleware"
	"drawsync/internal/models"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the deployed frontend origins
		return true
	},
}

// TokenVerifier is what the gateway needs from the session authenticator
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// Gateway accepts socket connections, makes exactly one authentication
// attempt with the token read at connect time, and binds successful
// connections to the hub as sessions. Failed authentication closes the
// socket with a policy-violation code; no session is ever created for
// an unverified identity.
type Gateway struct {
	hub           *Hub
	authenticator TokenVerifier
}

func NewGateway(hub *Hub, authenticator TokenVerifier) *Gateway {
	return &Gateway{
		hub:           hub,
		authenticator: authenticator,
	}
}

// HandleConnection upgrades an HTTP request to a socket connection.
// The bearer token travels as a query parameter because browser
// WebSocket clients cannot set headers on the upgrade request.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := r.URL.Query().Get("token")

	ctx, span := middleware.StartSpan(ctx, "WebSocket.Connect",
		attribute.Bool("token.present", token != ""),
	)
	defer span.End()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		middleware.AddSpanError(ctx, err)
		return
	}

	identity, err := g.authenticator.Verify(token)
	if err != nil {
		log.Printf("[WS] Connection rejected: %v", err)
		middleware.AddSpanError(ctx, err)
		closeWithPolicyViolation(conn, "Authentication failed")
		return
	}

	span.SetAttributes(attribute.String("user.id", identity.ID))

	session := &Session{
		Session: models.NewSession(identity.ID, identity.Name),
		Conn:    conn,
		Send:    make(chan *models.Event, sendBufferSize),
		hub:     g.hub,
	}

	g.hub.Register(session)

	go session.WritePump()
	go session.ReadPump(ctx)

	log.Printf("✓ WebSocket connection established (user: %s, session: %s)",
		identity.Name, session.ID)
}

// closeWithPolicyViolation sends close code 1008 and drops the socket.
// A well-behaved client must not retry with the same token.
func closeWithPolicyViolation(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline,
	)
	conn.Close()
}
