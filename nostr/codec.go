package nostr

import (
	"encoding/json"
	"fmt"
)

// ClientMessage is a command this library sends to a relay.
type ClientMessage interface {
	clientMessage()
}

type ReqMessage struct {
	SubscriptionID SubscriptionID
	Filters        Filters
}

type CloseMessage struct {
	SubscriptionID SubscriptionID
}

type EventMessage struct {
	Event *Event
}

type AuthMessage struct {
	Event *Event
}

func (ReqMessage) clientMessage()   {}
func (CloseMessage) clientMessage() {}
func (EventMessage) clientMessage() {}
func (AuthMessage) clientMessage()  {}

// Encode renders a ClientMessage as the wire JSON array the relay expects.
// Unknown message kinds are a programmer error: every concrete type this
// package defines is handled below.
func Encode(msg ClientMessage) ([]byte, error) {
	switch m := msg.(type) {
	case ReqMessage:
		arr := make([]any, 0, 2+len(m.Filters))
		arr = append(arr, "REQ", string(m.SubscriptionID))
		for _, f := range m.Filters {
			arr = append(arr, f)
		}
		return json.Marshal(arr)
	case CloseMessage:
		return json.Marshal([]any{"CLOSE", string(m.SubscriptionID)})
	case EventMessage:
		return json.Marshal([]any{"EVENT", m.Event})
	case AuthMessage:
		return json.Marshal([]any{"AUTH", m.Event})
	default:
		panic(fmt.Sprintf("nostr: unreachable: unknown client message type %T", msg))
	}
}

// ServerMessage is a message received from a relay.
type ServerMessage interface {
	serverMessage()
}

type ReceivedEventMessage struct {
	SubscriptionID SubscriptionID
	Event          *Event
}

type NoticeMessage struct {
	Text string
}

type EoseMessage struct {
	SubscriptionID SubscriptionID
}

type OKMessage struct {
	EventID string
	OK      bool
	Reason  string
}

type ClosedMessage struct {
	SubscriptionID SubscriptionID
	Reason         string
}

func (ReceivedEventMessage) serverMessage() {}
func (NoticeMessage) serverMessage()        {}
func (EoseMessage) serverMessage()          {}
func (OKMessage) serverMessage()            {}
func (ClosedMessage) serverMessage()        {}

// Decode parses a relay-originated text frame. The grammar is a top-level
// JSON array whose first element is the command string. For EVENT, the
// nested object is decoded into an Event and its id/sig are re-verified: a
// mismatch is reported as InvalidEventError rather than silently accepted.
func Decode(frame []byte) (ServerMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, &ProtocolError{Cause: fmt.Errorf("decode envelope: %w", err)}
	}
	if len(raw) == 0 {
		return nil, &ProtocolError{Cause: fmt.Errorf("empty envelope")}
	}
	var command string
	if err := json.Unmarshal(raw[0], &command); err != nil {
		return nil, &ProtocolError{Cause: fmt.Errorf("decode command: %w", err)}
	}

	switch command {
	case "EVENT":
		if len(raw) < 3 {
			return nil, &ProtocolError{Cause: fmt.Errorf("EVENT envelope too short")}
		}
		var subID string
		if err := json.Unmarshal(raw[1], &subID); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode EVENT sub id: %w", err)}
		}
		var ev Event
		if err := json.Unmarshal(raw[2], &ev); err != nil {
			return nil, &InvalidEventError{Cause: fmt.Errorf("decode event object: %w", err)}
		}
		ok, err := ev.CheckSignature()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &InvalidEventError{ID: ev.ID, Cause: ErrSignature}
		}
		return ReceivedEventMessage{SubscriptionID: SubscriptionID(subID), Event: &ev}, nil

	case "NOTICE":
		if len(raw) < 2 {
			return nil, &ProtocolError{Cause: fmt.Errorf("NOTICE envelope too short")}
		}
		var text string
		if err := json.Unmarshal(raw[1], &text); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode NOTICE text: %w", err)}
		}
		return NoticeMessage{Text: text}, nil

	case "EOSE":
		if len(raw) < 2 {
			return nil, &ProtocolError{Cause: fmt.Errorf("EOSE envelope too short")}
		}
		var subID string
		if err := json.Unmarshal(raw[1], &subID); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode EOSE sub id: %w", err)}
		}
		return EoseMessage{SubscriptionID: SubscriptionID(subID)}, nil

	case "OK":
		if len(raw) < 3 {
			return nil, &ProtocolError{Cause: fmt.Errorf("OK envelope too short")}
		}
		var eventID string
		var ok bool
		var reason string
		if err := json.Unmarshal(raw[1], &eventID); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode OK event id: %w", err)}
		}
		if err := json.Unmarshal(raw[2], &ok); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode OK flag: %w", err)}
		}
		if len(raw) > 3 {
			_ = json.Unmarshal(raw[3], &reason)
		}
		return OKMessage{EventID: eventID, OK: ok, Reason: reason}, nil

	case "CLOSED":
		if len(raw) < 2 {
			return nil, &ProtocolError{Cause: fmt.Errorf("CLOSED envelope too short")}
		}
		var subID string
		var reason string
		if err := json.Unmarshal(raw[1], &subID); err != nil {
			return nil, &ProtocolError{Cause: fmt.Errorf("decode CLOSED sub id: %w", err)}
		}
		if len(raw) > 2 {
			_ = json.Unmarshal(raw[2], &reason)
		}
		return ClosedMessage{SubscriptionID: SubscriptionID(subID), Reason: reason}, nil

	default:
		return nil, &ProtocolError{Cause: fmt.Errorf("unknown message command %q", command)}
	}
}
