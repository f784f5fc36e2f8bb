// Package nip19 implements the bech32 identifier encodings of NIP-19:
// nsec/npub/note for raw 32-byte values, and nprofile/nevent for a TLV
// payload carrying an id plus zero or more relay hints.
package nip19

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	PrefixSecretKey = "nsec"
	PrefixPublicKey = "npub"
	PrefixNoteID    = "note"
	PrefixProfile   = "nprofile"
	PrefixEvent     = "nevent"
)

const (
	tlvPubKeyOrID = 0
	tlvRelay      = 1
)

// EntityKind tags which identifier a decoded Entity holds, replacing the
// per-type trait objects of a strongly-typed rewrite with a single tagged
// union switched on prefix.
type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntitySecretKey
	EntityPubKey
	EntityNoteID
	EntityProfile
	EntityEvent
)

// Entity is the decoded form of any bech32 identifier this package supports.
type Entity struct {
	Kind EntityKind

	// Set for SecretKey, PubKey, NoteID.
	Bytes []byte

	// Set for Profile and Event.
	ID     []byte
	Relays []string
}

// EncodeSecretKey encodes a 32-byte secret key as nsec1...
func EncodeSecretKey(sk []byte) (string, error) {
	return encodeRaw(PrefixSecretKey, sk)
}

// EncodePublicKey encodes a 32-byte x-only public key as npub1...
func EncodePublicKey(pk []byte) (string, error) {
	return encodeRaw(PrefixPublicKey, pk)
}

// EncodeNoteID encodes a 32-byte event id as note1...
func EncodeNoteID(id []byte) (string, error) {
	return encodeRaw(PrefixNoteID, id)
}

func encodeRaw(prefix string, raw []byte) (string, error) {
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("nip19: convert bits: %w", err)
	}
	s, err := bech32.EncodeNoLimit(prefix, data)
	if err != nil {
		return "", fmt.Errorf("nip19: encode: %w", err)
	}
	return s, nil
}

// Profile is the decoded payload of an nprofile identifier.
type Profile struct {
	PublicKey []byte
	Relays    []string
}

// EncodeProfile encodes a public key plus relay hints as nprofile1...
func EncodeProfile(p Profile) (string, error) {
	return encodeTLV(PrefixProfile, p.PublicKey, p.Relays)
}

// Nip19Event is the decoded payload of an nevent identifier.
type Nip19Event struct {
	EventID []byte
	Relays  []string
}

// EncodeEvent encodes an event id plus relay hints as nevent1...
func EncodeEvent(e Nip19Event) (string, error) {
	return encodeTLV(PrefixEvent, e.EventID, e.Relays)
}

func encodeTLV(prefix string, id []byte, relays []string) (string, error) {
	if len(id) != 32 {
		return "", fmt.Errorf("nip19: %s id must be 32 bytes, got %d", prefix, len(id))
	}
	bytes := make([]byte, 0, 2+32+len(relays)*4)
	bytes = append(bytes, tlvPubKeyOrID, 32)
	bytes = append(bytes, id...)
	for _, relay := range relays {
		if len(relay) > 255 {
			return "", fmt.Errorf("nip19: relay url too long for TLV: %s", relay)
		}
		bytes = append(bytes, tlvRelay, byte(len(relay)))
		bytes = append(bytes, relay...)
	}
	data, err := bech32.ConvertBits(bytes, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("nip19: convert bits: %w", err)
	}
	return bech32.EncodeNoLimit(prefix, data)
}

// Decode classifies and decodes any bech32 identifier this package supports.
// The bech32 variant must be the original (non-m) variant and the prefix
// must be one of the five recognized here; anything else is EntityUnknown
// with an error.
func Decode(s string) (Entity, error) {
	hrp, data5, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return Entity{}, fmt.Errorf("nip19: bech32 decode: %w", err)
	}
	data, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return Entity{}, fmt.Errorf("nip19: convert bits: %w", err)
	}

	switch hrp {
	case PrefixSecretKey:
		if len(data) != 32 {
			return Entity{}, fmt.Errorf("nip19: invalid nsec payload length %d", len(data))
		}
		return Entity{Kind: EntitySecretKey, Bytes: data}, nil
	case PrefixPublicKey:
		if len(data) != 32 {
			return Entity{}, fmt.Errorf("nip19: invalid npub payload length %d", len(data))
		}
		return Entity{Kind: EntityPubKey, Bytes: data}, nil
	case PrefixNoteID:
		if len(data) != 32 {
			return Entity{}, fmt.Errorf("nip19: invalid note payload length %d", len(data))
		}
		return Entity{Kind: EntityNoteID, Bytes: data}, nil
	case PrefixProfile:
		id, relays, err := decodeTLV(data)
		if err != nil {
			return Entity{}, fmt.Errorf("nip19: decode nprofile: %w", err)
		}
		return Entity{Kind: EntityProfile, ID: id, Relays: relays}, nil
	case PrefixEvent:
		id, relays, err := decodeTLV(data)
		if err != nil {
			return Entity{}, fmt.Errorf("nip19: decode nevent: %w", err)
		}
		return Entity{Kind: EntityEvent, ID: id, Relays: relays}, nil
	default:
		return Entity{Kind: EntityUnknown}, fmt.Errorf("nip19: unrecognized prefix %q", hrp)
	}
}

func decodeTLV(data []byte) (id []byte, relays []string, err error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("TLV payload too short")
	}
	if data[0] != tlvPubKeyOrID {
		return nil, nil, fmt.Errorf("expected TLV type 0 first, got %d", data[0])
	}
	l := int(data[1])
	if l != 32 || len(data) < 2+l {
		return nil, nil, fmt.Errorf("invalid TLV id length %d", l)
	}
	id = append([]byte(nil), data[2:2+l]...)

	rest := data[2+l:]
	for len(rest) > 0 {
		if len(rest) < 2 {
			return nil, nil, fmt.Errorf("truncated relay TLV")
		}
		if rest[0] != tlvRelay {
			return nil, nil, fmt.Errorf("expected TLV type 1 for relay, got %d", rest[0])
		}
		rl := int(rest[1])
		if len(rest) < 2+rl {
			return nil, nil, fmt.Errorf("truncated relay TLV payload")
		}
		relays = append(relays, string(rest[2:2+rl]))
		rest = rest[2+rl:]
	}
	return id, relays, nil
}
