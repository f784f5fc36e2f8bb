package relay

// Status is the relay connection state machine of the design:
//
//	Initialized --connect()--> Connecting --open--> Connected
//	Connecting/Connected --close/err--> Disconnected --auto-reconnect--> Connecting
//	any --terminate()--> Terminated (final)
type Status int

const (
	StatusInitialized Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "initialized"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Stats tracks lightweight per-relay counters surfaced for observability.
type Stats struct {
	EventsReceived    uint64
	EventsPublished   uint64
	DuplicatesDropped uint64
	SignatureFailures uint64
	Reconnects        uint64
}
