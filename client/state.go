package client

// ConnectionState is the client's view of the logical connection.
// Exactly one state is active at a time; transitions drive the side
// effects (heartbeat start/stop, queue flush, reconnect scheduling).
type ConnectionState int

const (
	// StateDisconnected means no connection and none pending. The
	// initial state, and the result of an explicit Disconnect.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the socket is open and healthy.
	StateConnected

	// StateReconnecting means the transport dropped and a backoff
	// timer is pending.
	StateReconnecting

	// StateError is terminal: reconnect attempts are exhausted (or no
	// token was supplied). Only an explicit Connect leaves this state.
	StateError
)

// String returns the string representation of a ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
