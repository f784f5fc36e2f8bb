package client

import (
	"context"
	"time"

	"github.com/relaycore/nostr/notify"
	"github.com/relaycore/nostr/nostr"
	"github.com/relaycore/nostr/pool"
)

// defaultCallTimeout bounds every Blocking call that does not take its own
// explicit timeout.
const defaultCallTimeout = 30 * time.Second

// Blocking is a synchronous facade over Client: every method blocks the
// calling goroutine on a freshly derived context instead of taking one,
// mirroring the reference implementation's pattern of routing a blocking
// surface through a single process-wide executor. The async Client remains
// the source of truth; this wrapper exists for callers that have no context
// of their own to thread through.
type Blocking struct {
	client *Client
}

// NewBlocking wraps an existing Client in a blocking facade.
func NewBlocking(c *Client) *Blocking {
	return &Blocking{client: c}
}

func (b *Blocking) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), defaultCallTimeout)
}

func (b *Blocking) PublicKey() string {
	return b.client.PublicKey()
}

func (b *Blocking) Pool() *pool.Pool {
	return b.client.Pool()
}

func (b *Blocking) PublishTextNote(content string, tags nostr.Tags) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.PublishTextNote(ctx, content, tags)
}

func (b *Blocking) PublishPowTextNote(content string, tags nostr.Tags, difficulty int) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.PublishPowTextNote(ctx, content, tags, difficulty)
}

func (b *Blocking) RepostEvent(eventID, authorPubKey string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.RepostEvent(ctx, eventID, authorPubKey)
}

func (b *Blocking) DeleteEvent(eventIDs []string, reason string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.DeleteEvent(ctx, eventIDs, reason)
}

func (b *Blocking) Reaction(eventID, authorPubKey, content string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.Reaction(ctx, eventID, authorPubKey, content)
}

func (b *Blocking) Like(eventID, authorPubKey string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.Like(ctx, eventID, authorPubKey)
}

func (b *Blocking) Dislike(eventID, authorPubKey string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.Dislike(ctx, eventID, authorPubKey)
}

func (b *Blocking) UpdateProfile(metadataJSON string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.UpdateProfile(ctx, metadataJSON)
}

func (b *Blocking) SetContactList(pTags nostr.Tags, contactsJSON string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.SetContactList(ctx, pTags, contactsJSON)
}

func (b *Blocking) NewChannel(metadataJSON string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.NewChannel(ctx, metadataJSON)
}

func (b *Blocking) UpdateChannel(channelID, relayURL, metadataJSON string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.UpdateChannel(ctx, channelID, relayURL, metadataJSON)
}

func (b *Blocking) SendChannelMessage(channelID, relayURL, content string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.SendChannelMessage(ctx, channelID, relayURL, content)
}

func (b *Blocking) HideChannelMessage(messageID, reason string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.HideChannelMessage(ctx, messageID, reason)
}

func (b *Blocking) MuteChannelUser(pubKey, reason string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.MuteChannelUser(ctx, pubKey, reason)
}

func (b *Blocking) SendDirectMessage(receiverPubKey, content string) (string, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.SendDirectMessage(ctx, receiverPubKey, content)
}

func (b *Blocking) GetEntityOf(id string) (pool.EntityKind, error) {
	ctx, cancel := b.ctx()
	defer cancel()
	return b.client.GetEntityOf(ctx, id)
}

// HandleNotifications is already a blocking call on the async Client; it is
// exposed here unchanged for a uniform facade.
func (b *Blocking) HandleNotifications(fn func(notify.Notification) error) error {
	return b.client.HandleNotifications(fn)
}

func (b *Blocking) Shutdown() {
	b.client.Shutdown()
}
