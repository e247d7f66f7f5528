// Package relay multiplexes one client connection and one agent runtime
// session: an inbound relay forwards decoded client frames as runtime
// commands, an outbound relay forwards runtime events as client frames, and a
// coordinator owns the lifecycle of both.
package relay

// Transport is the client side of a session: one bidirectional,
// message-oriented connection. The inbound relay is its only reader and the
// outbound relay its only writer. Close must be safe to call more than once
// and must unblock a pending ReadMessage.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Reason says why a relay finished.
type Reason int

const (
	// ReasonClientClosed: the client transport closed; normal end of session.
	ReasonClientClosed Reason = iota
	// ReasonRuntimeEnded: the runtime event stream was exhausted.
	ReasonRuntimeEnded
	// ReasonCanceled: the coordinator cancelled the relay during teardown.
	ReasonCanceled
	// ReasonError: the relay hit an unrecoverable error (already logged).
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonClientClosed:
		return "client closed"
	case ReasonRuntimeEnded:
		return "runtime ended"
	case ReasonCanceled:
		return "canceled"
	case ReasonError:
		return "error"
	default:
		return "unknown"
	}
}

// Completion is the normal-return result of a relay task. Cancellation is a
// reason here, never an error: the coordinator's own teardown must not be
// reported as a failure.
type Completion struct {
	Reason Reason
	Err    error
}
