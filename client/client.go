// Package client is the high-level coordinator: it holds signing keys and
// options, and exposes each Nostr action (text note, repost, reaction,
// metadata, contact list, channel, direct message...) as a thin composition
// over the underlying pool's SendEvent, the way the teacher's relay/pool
// pair separates wire mechanics from the higher-level operations built on
// top of them.
package client

import (
	"context"
	"fmt"

	"github.com/relaycore/nostr/nip04"
	"github.com/relaycore/nostr/notify"
	"github.com/relaycore/nostr/nostr"
	"github.com/relaycore/nostr/pool"
)

// Options tunes client-wide defaults.
type Options struct {
	Clock nostr.Clock
}

func DefaultOptions() Options {
	return Options{Clock: nostr.SystemClock{}}
}

// Option configures Options via the functional-options idiom.
type Option func(*Options)

// WithClock overrides the clock used to stamp created_at on constructed
// events, the hook the design calls for to make event construction
// deterministic under test while defaulting to wall-clock time.
func WithClock(c nostr.Clock) Option {
	return func(o *Options) { o.Clock = c }
}

// Client composes a signing identity with a relay Pool.
type Client struct {
	secretKey string
	pubKey    string
	opts      Options
	pool      *pool.Pool
}

// New constructs a Client for secretKeyHex, owning a fresh Pool.
func New(secretKeyHex string, options ...Option) (*Client, error) {
	opts := DefaultOptions()
	for _, o := range options {
		o(&opts)
	}
	pubKey, err := nostr.GetPublicKey(secretKeyHex)
	if err != nil {
		return nil, fmt.Errorf("client: derive public key: %w", err)
	}
	return &Client{
		secretKey: secretKeyHex,
		pubKey:    pubKey,
		opts:      opts,
		pool:      pool.New(opts.Clock),
	}, nil
}

// PublicKey returns the client's hex public key.
func (c *Client) PublicKey() string {
	return c.pubKey
}

// Pool exposes the underlying relay pool for lower-level operations
// (AddRelay, Connect, Subscribe, HandleNotifications...).
func (c *Client) Pool() *pool.Pool {
	return c.pool
}

func (c *Client) newEvent(kind int, tags nostr.Tags, content string) (*nostr.Event, error) {
	return nostr.NewEvent(c.opts.Clock, c.secretKey, kind, tags, content)
}

func (c *Client) publish(ctx context.Context, ev *nostr.Event) (string, error) {
	if err := c.pool.SendEvent(ctx, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// PublishTextNote signs and sends a kind-1 text note.
func (c *Client) PublishTextNote(ctx context.Context, content string, tags nostr.Tags) (string, error) {
	ev, err := c.newEvent(nostr.KindTextNote, tags, content)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// PublishPowTextNote mines a kind-1 text note to the given NIP-13 difficulty
// before sending it.
func (c *Client) PublishPowTextNote(ctx context.Context, content string, tags nostr.Tags, difficulty int) (string, error) {
	ev, err := nostr.MineNonce(c.opts.Clock, c.secretKey, nostr.KindTextNote, tags, content, difficulty)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// RepostEvent reposts eventID (authored by authorPubKey) as a kind-6 event
// referencing it via e/p tags.
func (c *Client) RepostEvent(ctx context.Context, eventID, authorPubKey string) (string, error) {
	tags := nostr.Tags{{"e", eventID}, {"p", authorPubKey}}
	ev, err := c.newEvent(nostr.KindRepost, tags, "")
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// DeleteEvent issues a kind-5 deletion request for one or more event ids,
// with an optional human-readable reason.
func (c *Client) DeleteEvent(ctx context.Context, eventIDs []string, reason string) (string, error) {
	tags := make(nostr.Tags, 0, len(eventIDs))
	for _, id := range eventIDs {
		tags = append(tags, nostr.Tag{"e", id})
	}
	ev, err := c.newEvent(nostr.KindDeletion, tags, reason)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// Reaction sends a kind-7 reaction to eventID (authored by authorPubKey);
// content is conventionally "+", "-" or an emoji.
func (c *Client) Reaction(ctx context.Context, eventID, authorPubKey, content string) (string, error) {
	tags := nostr.Tags{{"e", eventID}, {"p", authorPubKey}}
	ev, err := c.newEvent(nostr.KindReaction, tags, content)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// Like is Reaction with content "+".
func (c *Client) Like(ctx context.Context, eventID, authorPubKey string) (string, error) {
	return c.Reaction(ctx, eventID, authorPubKey, "+")
}

// Dislike is Reaction with content "-".
func (c *Client) Dislike(ctx context.Context, eventID, authorPubKey string) (string, error) {
	return c.Reaction(ctx, eventID, authorPubKey, "-")
}

// UpdateProfile sends a kind-0 metadata event with metadataJSON as its
// content (a caller-supplied, already-serialized NIP-01 metadata object).
func (c *Client) UpdateProfile(ctx context.Context, metadataJSON string) (string, error) {
	ev, err := c.newEvent(nostr.KindSetMetadata, nil, metadataJSON)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// SetContactList replaces the client's kind-3 contact list. contactsJSON is
// the content field (a NIP-02 petname JSON blob); pTags are the p-tags
// naming each followed pubkey.
func (c *Client) SetContactList(ctx context.Context, pTags nostr.Tags, contactsJSON string) (string, error) {
	ev, err := c.newEvent(nostr.KindContactList, pTags, contactsJSON)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// NewChannel creates a kind-40 channel with metadataJSON as its content.
func (c *Client) NewChannel(ctx context.Context, metadataJSON string) (string, error) {
	ev, err := c.newEvent(nostr.KindChannelCreate, nil, metadataJSON)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// UpdateChannel sends a kind-41 metadata update for channelID, optionally
// hinting the relay it was created on.
func (c *Client) UpdateChannel(ctx context.Context, channelID, relayURL, metadataJSON string) (string, error) {
	tag := nostr.Tag{"e", channelID}
	if relayURL != "" {
		tag = append(tag, relayURL)
	}
	ev, err := c.newEvent(nostr.KindChannelMetadata, nostr.Tags{tag}, metadataJSON)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// SendChannelMessage sends a kind-42 message into channelID.
func (c *Client) SendChannelMessage(ctx context.Context, channelID, relayURL, content string) (string, error) {
	tag := nostr.Tag{"e", channelID, "", "root"}
	if relayURL != "" {
		tag[2] = relayURL
	}
	ev, err := c.newEvent(nostr.KindChannelMessage, nostr.Tags{tag}, content)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// HideChannelMessage sends a kind-43 request to hide messageID, with an
// optional reason.
func (c *Client) HideChannelMessage(ctx context.Context, messageID, reason string) (string, error) {
	ev, err := c.newEvent(nostr.KindChannelHideMsg, nostr.Tags{{"e", messageID}}, reason)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// MuteChannelUser sends a kind-44 request to mute pubKey, with an optional
// reason.
func (c *Client) MuteChannelUser(ctx context.Context, pubKey, reason string) (string, error) {
	ev, err := c.newEvent(nostr.KindChannelMuteUser, nostr.Tags{{"p", pubKey}}, reason)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// SendDirectMessage NIP-04 encrypts content under the ECDH secret shared
// with receiverPubKey and sends it as a kind-4 event.
func (c *Client) SendDirectMessage(ctx context.Context, receiverPubKey, content string) (string, error) {
	secret, err := nip04.ComputeSharedSecret(c.secretKey, receiverPubKey)
	if err != nil {
		return "", fmt.Errorf("client: derive shared secret: %w", err)
	}
	ciphertext, err := nip04.Encrypt(content, secret)
	if err != nil {
		return "", fmt.Errorf("client: encrypt direct message: %w", err)
	}
	ev, err := c.newEvent(nostr.KindEncryptedDirectMsg, nostr.Tags{{"p", receiverPubKey}}, ciphertext)
	if err != nil {
		return "", err
	}
	return c.publish(ctx, ev)
}

// GetEntityOf classifies id as an account or a channel by racing probe
// subscriptions across the pool.
func (c *Client) GetEntityOf(ctx context.Context, id string) (pool.EntityKind, error) {
	return c.pool.ResolveEntity(ctx, id)
}

// HandleNotifications runs a blocking consumer loop over the pool's
// notification bus; see pool.Pool.HandleNotifications for the exact
// propagation rules.
func (c *Client) HandleNotifications(fn func(notify.Notification) error) error {
	return c.pool.HandleNotifications(fn)
}

// Shutdown terminates every relay connection and the notification bus.
func (c *Client) Shutdown() {
	c.pool.Shutdown()
}
