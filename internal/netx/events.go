package netx

import "routing-node/internal/types"

type EventKind int

const (
	// EventNewConnection follows a successful outbound Connect.
	EventNewConnection EventKind = iota + 1
	// EventAccepted reports an inbound connection.
	EventAccepted
	EventLostConnection
	EventNewMessage
	// EventDialFailed reports a Connect that never produced a connection.
	EventDialFailed
)

func (k EventKind) String() string {
	switch k {
	case EventNewConnection:
		return "new_connection"
	case EventAccepted:
		return "accepted"
	case EventLostConnection:
		return "lost_connection"
	case EventNewMessage:
		return "new_message"
	case EventDialFailed:
		return "dial_failed"
	default:
		return "unknown"
	}
}

// Event is what the manager reports to its single consumer.
type Event struct {
	Kind     EventKind
	Endpoint types.Endpoint
	Data     []byte // EventNewMessage only
	// RemoteStatic is the peer's noise static key, set on EventAccepted and
	// EventNewConnection.
	RemoteStatic []byte
}

// Listening describes what StartListening managed to bind.
type Listening struct {
	Endpoints  []types.Endpoint
	BeaconPort *uint16
}
