package nostr

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the taxonomy of the relay pool error design: callers
// use errors.Is/errors.As to classify a failure without inspecting its kind.
var (
	ErrTimeout       = errors.New("nostr: timeout")
	ErrNotConnected  = errors.New("nostr: relay not connected")
	ErrRelayNotFound = errors.New("nostr: relay not found")
	ErrShutdown      = errors.New("nostr: pool shut down")
	ErrSignature     = errors.New("nostr: signature verification failed")
)

// TransportError wraps a failure at the websocket layer for a given relay url.
type TransportError struct {
	URL   string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nostr: transport error on %s: %v", e.URL, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ProtocolError wraps a malformed or unexpected relay message.
type ProtocolError struct {
	URL   string
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nostr: protocol error on %s: %v", e.URL, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// InvalidEventError reports a decoded event that fails id recomputation or
// signature verification.
type InvalidEventError struct {
	ID    string
	Cause error
}

func (e *InvalidEventError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("nostr: invalid event %s: %v", e.ID, e.Cause)
	}
	return fmt.Sprintf("nostr: invalid event: %v", e.Cause)
}

func (e *InvalidEventError) Unwrap() error { return e.Cause }

// InvalidFilterError reports a filter that cannot be serialized or applied.
type InvalidFilterError struct {
	Cause error
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("nostr: invalid filter: %v", e.Cause)
}

func (e *InvalidFilterError) Unwrap() error { return e.Cause }

// InvalidBech32Error reports a bech32 identifier with the wrong prefix, the
// wrong variant, or malformed payload.
type InvalidBech32Error struct {
	Kind string
}

func (e *InvalidBech32Error) Error() string {
	return fmt.Sprintf("nostr: invalid bech32 %s", e.Kind)
}

// RejectedError is returned when a relay acknowledges a published event with
// ok=false.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("nostr: event rejected: %s", e.Reason)
}

// LaggedError reports that a notification bus subscriber fell behind and
// skipped messages.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("nostr: notification subscriber lagged, skipped %d", e.Skipped)
}

// NotPublishedError aggregates the per-relay failures of a fan-out publish
// where no relay acknowledged the event in time.
type NotPublishedError struct {
	PerRelayErrors map[string]error
}

func (e *NotPublishedError) Error() string {
	return fmt.Sprintf("nostr: event not published to any relay (%d failures)", len(e.PerRelayErrors))
}
