// Package pool is the relay pool: it owns a set of relay.Relay actors keyed
// by normalized URL, fans subscriptions and publishes out across them, and
// republishes every notification onto a shared notify.Bus. It is the
// concurrent, multi-relay core the spec's blocking client sits on top of,
// grounded on the teacher's own protocol.SimplePool fan-out/fan-in shape.
package pool

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/relaycore/nostr/notify"
	"github.com/relaycore/nostr/nostr"
	"github.com/relaycore/nostr/relay"
)

const defaultEntityProbeTimeout = 5 * time.Second

// EntityKind classifies the result of ResolveEntity.
type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntityAccount
	EntityChannel
)

// Pool fans subscriptions, publishes, and inbound notifications across every
// relay it holds.
type Pool struct {
	mu     sync.RWMutex
	relays map[string]*relay.Relay

	poolSubs *xsync.MapOf[nostr.SubscriptionID, nostr.Filters]

	bus *notify.Bus

	clock nostr.Clock
}

// New constructs an empty pool. Call Connect (or ConnectRelay per relay)
// after AddRelay to begin connecting.
func New(clock nostr.Clock) *Pool {
	if clock == nil {
		clock = nostr.SystemClock{}
	}
	return &Pool{
		relays:   make(map[string]*relay.Relay),
		poolSubs: xsync.NewMapOf[nostr.SubscriptionID, nostr.Filters](),
		bus:      notify.NewBus(),
		clock:    clock,
	}
}

// Bus returns the pool's notification bus.
func (p *Pool) Bus() *notify.Bus {
	return p.bus
}

// AddRelay inserts a new Initialized relay for url, optionally dialed through
// a SOCKS5 proxy. It does not start connecting; call Connect or ConnectRelay.
func (p *Pool) AddRelay(url, proxyAddr string) *relay.Relay {
	url = nostr.NormalizeURL(url)

	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.relays[url]; ok {
		return r
	}
	r := relay.New(url, proxyAddr, p.clock, relay.DefaultOptions(), p.onEvent(url), p.onMessage(url))
	p.relays[url] = r
	return r
}

// RemoveRelay terminates and forgets the relay at url, if present.
func (p *Pool) RemoveRelay(url string) {
	url = nostr.NormalizeURL(url)
	p.mu.Lock()
	r, ok := p.relays[url]
	if ok {
		delete(p.relays, url)
	}
	p.mu.Unlock()
	if ok {
		r.Terminate()
	}
}

// Connect starts every relay's connect/reconnect loop. Idempotent per relay.
func (p *Pool) Connect() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.relays {
		r.Start()
	}
}

// ConnectRelay starts url's relay (adding it first if needed) and, when
// waitForConnection is true, blocks until it reaches Connected or ctx is
// done.
func (p *Pool) ConnectRelay(ctx context.Context, url, proxyAddr string, waitForConnection bool) (*relay.Relay, error) {
	r := p.AddRelay(url, proxyAddr)
	if !waitForConnection {
		r.Start()
		return r, nil
	}
	if err := r.ConnectAndWait(ctx); err != nil {
		return r, err
	}
	return r, nil
}

// Shutdown terminates every relay and the notification bus.
func (p *Pool) Shutdown() {
	p.mu.RLock()
	relays := make([]*relay.Relay, 0, len(p.relays))
	for _, r := range p.relays {
		relays = append(relays, r)
	}
	p.mu.RUnlock()
	for _, r := range relays {
		r.Terminate()
	}
	p.bus.Shutdown()
}

func (p *Pool) connectedRelays() []*relay.Relay {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*relay.Relay, 0, len(p.relays))
	for _, r := range p.relays {
		if r.Status() == relay.StatusConnected {
			out = append(out, r)
		}
	}
	return out
}

func (p *Pool) allRelays() []*relay.Relay {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*relay.Relay, 0, len(p.relays))
	for _, r := range p.relays {
		out = append(out, r)
	}
	return out
}

// Subscribe stores filters under subID in pool_subs and fans a REQ out to
// every currently Connected relay; each of those relays keeps the
// subscription in its own table and replays it on its future reconnects.
// Relays that are not Connected at this moment, and relays added later, are
// not sent the subscription: pool_subs is not replayed to them.
func (p *Pool) Subscribe(ctx context.Context, subID nostr.SubscriptionID, filters nostr.Filters) {
	p.poolSubs.Store(subID, filters)
	for _, r := range p.connectedRelays() {
		_ = r.Subscribe(ctx, subID, filters)
	}
}

// Unsubscribe removes subID from pool_subs and sends CLOSE to every relay
// in the pool.
func (p *Pool) Unsubscribe(ctx context.Context, subID nostr.SubscriptionID) {
	p.poolSubs.Delete(subID)
	for _, r := range p.allRelays() {
		_ = r.Unsubscribe(ctx, subID)
	}
}

// SendEvent fans ev out to every relay concurrently. It returns success as
// soon as any relay acknowledges ok=true within the deadline carried by ctx;
// otherwise it returns a NotPublishedError aggregating every relay's
// failure.
func (p *Pool) SendEvent(ctx context.Context, ev *nostr.Event) error {
	relays := p.connectedRelays()
	if len(relays) == 0 {
		return nostr.ErrNotConnected
	}

	type result struct {
		url string
		err error
	}
	results := make(chan result, len(relays))

	for _, r := range relays {
		go func(r *relay.Relay) {
			_, err := r.Publish(ctx, ev)
			results <- result{url: r.URL, err: err}
		}(r)
	}

	perRelayErrors := make(map[string]error, len(relays))
	for i := 0; i < len(relays); i++ {
		res := <-results
		if res.err == nil {
			return nil
		}
		perRelayErrors[res.url] = res.err
	}
	return &nostr.NotPublishedError{PerRelayErrors: perRelayErrors}
}

// SendEventTo publishes ev to exactly one relay, identified by url, and
// returns that relay's own error directly.
func (p *Pool) SendEventTo(ctx context.Context, url string, ev *nostr.Event) error {
	url = nostr.NormalizeURL(url)
	p.mu.RLock()
	r, ok := p.relays[url]
	p.mu.RUnlock()
	if !ok {
		return nostr.ErrRelayNotFound
	}
	_, err := r.Publish(ctx, ev)
	return err
}

// GetEventsOf opens a transient subscription across every Connected relay,
// collects events deduplicated by id, and returns once every relay that was
// Connected at the start has sent EOSE or timeout elapses, whichever comes
// first. CLOSE is always sent before returning. Results are sorted by
// created_at descending.
func (p *Pool) GetEventsOf(ctx context.Context, filters nostr.Filters, timeout time.Duration) ([]*nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	subID := nostr.NewSubscriptionID()
	relays := p.connectedRelays()
	if len(relays) == 0 {
		return nil, nostr.ErrNotConnected
	}

	sub := p.bus.Subscribe()
	defer sub.Close()

	for _, r := range relays {
		_ = r.Subscribe(ctx, subID, filters)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		for _, r := range relays {
			_ = r.Unsubscribe(closeCtx, subID)
		}
	}()

	seen := make(map[string]*nostr.Event)
	eosed := make(map[string]bool, len(relays))

	for len(eosed) < len(relays) {
		select {
		case n := <-sub.C():
			switch n.Kind {
			case notify.KindEvent:
				if n.SubscriptionID == subID && n.Event != nil {
					if _, ok := seen[n.Event.ID]; !ok {
						seen[n.Event.ID] = n.Event
					}
				}
			case notify.KindEOSE:
				if n.SubscriptionID == subID {
					eosed[n.RelayURL] = true
				}
			}
		case <-ctx.Done():
			events := collectSorted(seen)
			if ctx.Err() == context.DeadlineExceeded {
				return events, nostr.ErrTimeout
			}
			return events, ctx.Err()
		}
	}
	return collectSorted(seen), nil
}

func collectSorted(seen map[string]*nostr.Event) []*nostr.Event {
	out := make([]*nostr.Event, 0, len(seen))
	for _, ev := range seen {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

// ReqEventsOf is like GetEventsOf but streams matching events through the
// notification bus with no collected return value; the caller is
// responsible for eventually unsubscribing via Unsubscribe.
func (p *Pool) ReqEventsOf(ctx context.Context, subID nostr.SubscriptionID, filters nostr.Filters) {
	p.Subscribe(ctx, subID, filters)
}

// HandleNotifications runs a blocking consumer loop over the pool's bus:
// each notification is passed to fn; a non-nil error from fn stops the loop
// and is returned; a Lagged notification is dropped and the loop continues;
// bus shutdown ends the loop successfully.
func (p *Pool) HandleNotifications(fn func(notify.Notification) error) error {
	sub := p.bus.Subscribe()
	defer sub.Close()

	for n := range sub.C() {
		if n.Kind == notify.KindLagged {
			continue
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

type entityProbeResult struct {
	events []*nostr.Event
	err    error
}

// ResolveEntity classifies id as EntityAccount (events authored by id exist)
// or EntityChannel (an event with id exists), by racing both probe
// subscriptions concurrently and returning the kind of whichever probe
// first yields a match. If neither probe yields a match it returns
// EntityUnknown. A Timeout from either probe just means no match arrived in
// time and is not reported as an error; any other probe failure is returned
// alongside EntityUnknown.
func (p *Pool) ResolveEntity(ctx context.Context, id string) (EntityKind, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultEntityProbeTimeout)
	defer cancel()

	runProbe := func(filter nostr.Filter) <-chan entityProbeResult {
		out := make(chan entityProbeResult, 1)
		go func() {
			events, err := p.GetEventsOf(ctx, nostr.Filters{filter}, defaultEntityProbeTimeout)
			out <- entityProbeResult{events: events, err: err}
		}()
		return out
	}

	authorCh := runProbe(nostr.Filter{Authors: []string{id}, Limit: 1})
	idCh := runProbe(nostr.Filter{IDs: []string{id}, Limit: 1})

	var authorRes, idRes *entityProbeResult
	for authorRes == nil || idRes == nil {
		select {
		case r := <-authorCh:
			if len(r.events) > 0 {
				return EntityAccount, nil
			}
			authorRes = &r
		case r := <-idCh:
			if len(r.events) > 0 {
				return EntityChannel, nil
			}
			idRes = &r
		}
	}

	if authorRes.err != nil && authorRes.err != nostr.ErrTimeout {
		return EntityUnknown, authorRes.err
	}
	if idRes.err != nil && idRes.err != nostr.ErrTimeout {
		return EntityUnknown, idRes.err
	}
	return EntityUnknown, nil
}

// onEvent republishes a signature-verified inbound event onto the bus under
// the subscription id the relay received it on.
func (p *Pool) onEvent(_ string) relay.EventHandler {
	return func(relayURL string, subID nostr.SubscriptionID, ev *nostr.Event) {
		p.bus.Publish(notify.Notification{
			Kind:           notify.KindEvent,
			RelayURL:       relayURL,
			SubscriptionID: subID,
			Event:          ev,
		})
	}
}

// onMessage republishes any non-EVENT relay server message onto the bus.
func (p *Pool) onMessage(_ string) relay.MessageHandler {
	return func(relayURL string, msg nostr.ServerMessage) {
		switch m := msg.(type) {
		case nostr.NoticeMessage:
			p.bus.Publish(notify.Notification{Kind: notify.KindNotice, RelayURL: relayURL, Text: m.Text})
		case nostr.EoseMessage:
			p.bus.Publish(notify.Notification{Kind: notify.KindEOSE, RelayURL: relayURL, SubscriptionID: m.SubscriptionID})
		case nostr.OKMessage:
			p.bus.Publish(notify.Notification{Kind: notify.KindOK, RelayURL: relayURL, OKEventID: m.EventID, OK: m.OK, Reason: m.Reason})
		case nostr.ClosedMessage:
			p.bus.Publish(notify.Notification{Kind: notify.KindClosed, RelayURL: relayURL, SubscriptionID: m.SubscriptionID, Reason: m.Reason})
		}
	}
}
