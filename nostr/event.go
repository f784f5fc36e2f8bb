package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Kind numbers named in the spec's high-level operations.
const (
	KindSetMetadata        = 0
	KindTextNote           = 1
	KindRecommendRelay     = 2
	KindContactList        = 3
	KindEncryptedDirectMsg = 4
	KindDeletion           = 5
	KindRepost             = 6
	KindReaction           = 7
	KindChannelCreate      = 40
	KindChannelMetadata    = 41
	KindChannelMessage     = 42
	KindChannelHideMsg     = 43
	KindChannelMuteUser    = 44
)

// Event is an immutable signed record. Once constructed via NewEvent or
// decoded off the wire and signature-checked, it is shared by reference and
// never mutated.
type Event struct {
	ID        string    `json:"id"`
	PubKey    string    `json:"pubkey"`
	CreatedAt Timestamp `json:"created_at"`
	Kind      int       `json:"kind"`
	Tags      Tags      `json:"tags"`
	Content   string    `json:"content"`
	Sig       string    `json:"sig"`
}

// Serialize produces the canonical JSON array [0, pubkey, created_at, kind,
// tags, content] whose sha256 is the event id. The encoding has no
// whitespace and escapes strings the way every other Nostr implementation
// does. It is written by hand rather than with json.Marshal, which
// HTML-escapes <, > and & and would change the bytes that get hashed.
func (e *Event) Serialize() []byte {
	var b strings.Builder
	b.WriteString("[0,")
	b.WriteString(strconv.Quote(e.PubKey))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(int64(e.CreatedAt), 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(e.Kind))
	b.WriteByte(',')
	b.WriteByte('[')
	for i, tag := range e.Tags {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('[')
		for j, v := range tag {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(escapeJSONString(v))
		}
		b.WriteByte(']')
	}
	b.WriteByte(']')
	b.WriteByte(',')
	b.WriteString(escapeJSONString(e.Content))
	b.WriteByte(']')
	return []byte(b.String())
}

// escapeJSONString quotes s the way JSON.stringify does: unicode passes
// through unescaped, only the mandatory control characters and the quote/
// backslash are escaped. strconv.Quote over-escapes non-ASCII, so we hand-roll
// this instead of reusing it for arbitrary content.
func escapeJSONString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ComputeID returns the hex sha256 of e.Serialize().
func (e *Event) ComputeID() string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Sign stamps e.ID and e.Sig for the given hex secret key. The caller must
// have already set PubKey, CreatedAt, Kind, Tags and Content.
func (e *Event) Sign(secretKeyHex string) error {
	priv, err := privKeyFromHex(secretKeyHex)
	if err != nil {
		return err
	}
	e.ID = e.ComputeID()
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("decode computed id: %w", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return fmt.Errorf("schnorr sign: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// CheckSignature re-verifies both invariants the spec requires of every
// Event: id == sha256(canonical serialization), and sig verifies under
// pubkey.
func (e *Event) CheckSignature() (bool, error) {
	if e.ComputeID() != e.ID {
		return false, &InvalidEventError{ID: e.ID, Cause: fmt.Errorf("id does not match serialization")}
	}
	pub, err := pubKeyFromXOnlyHex(e.PubKey)
	if err != nil {
		return false, &InvalidEventError{ID: e.ID, Cause: fmt.Errorf("parse pubkey: %w", err)}
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false, &InvalidEventError{ID: e.ID, Cause: fmt.Errorf("decode sig: %w", err)}
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, &InvalidEventError{ID: e.ID, Cause: fmt.Errorf("parse sig: %w", err)}
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return false, &InvalidEventError{ID: e.ID, Cause: fmt.Errorf("decode id: %w", err)}
	}
	return sig.Verify(idBytes, pub), nil
}

// NewEvent stamps created_at from clock, computes the canonical id and signs
// it under keys, producing an immutable, ready-to-publish Event.
func NewEvent(clock Clock, secretKeyHex string, kind int, tags Tags, content string) (*Event, error) {
	pubKey, err := GetPublicKey(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}
	if tags == nil {
		tags = Tags{}
	}
	e := &Event{
		PubKey:    pubKey,
		CreatedAt: clock.Now(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	if err := e.Sign(secretKeyHex); err != nil {
		return nil, fmt.Errorf("sign event: %w", err)
	}
	return e, nil
}
