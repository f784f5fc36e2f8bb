// Package notify is the pool-wide notification bus: a broadcast hub that
// fans relay events and messages out to every subscriber, the way a
// websocket hub fans outbound frames out to every connected client, adapted
// here to carry typed pool notifications instead of raw bytes and to report
// a Lagged marker to any subscriber that falls behind instead of silently
// dropping it.
package notify

import (
	"sync"

	"github.com/relaycore/nostr/nostr"
)

// Kind discriminates the payload carried by a Notification.
type Kind int

const (
	KindEvent Kind = iota
	KindNotice
	KindEOSE
	KindOK
	KindClosed
	KindLagged
	KindRelayStatus
	KindShutdown
)

// Notification is the envelope every bus subscriber receives. Only the
// field matching Kind is populated.
type Notification struct {
	Kind Kind

	RelayURL string

	SubscriptionID nostr.SubscriptionID
	Event          *nostr.Event

	Text string // NOTICE text

	OKEventID string
	OK        bool
	Reason    string // OK/CLOSED reason

	RelayStatus string

	Skipped uint64 // KindLagged: how many notifications this subscriber missed
}

const defaultSubscriberBuffer = 1024

type subscriber struct {
	ch      chan Notification
	skipped uint64
}

// Bus is a broadcast hub: Publish never blocks on a slow subscriber. A
// subscriber whose buffer fills has its notifications counted instead of
// delivered, and the next successfully delivered notification is preceded by
// a KindLagged envelope reporting how many were skipped.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[*subscriber]struct{})}
}

// Subscription is a handle returned by Subscribe. Callers must call Close
// when done to free the subscriber slot.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

// Subscribe registers a new subscriber and returns a handle to read from.
// After Shutdown, the returned channel carries a single KindShutdown
// notification and is already closed.
func (b *Bus) Subscribe() *Subscription {
	sub := &subscriber{ch: make(chan Notification, defaultSubscriberBuffer)}
	b.mu.Lock()
	if b.closed {
		sub.ch <- Notification{Kind: KindShutdown}
		close(sub.ch)
	} else {
		b.subscribers[sub] = struct{}{}
	}
	b.mu.Unlock()
	return &Subscription{bus: b, sub: sub}
}

// C returns the channel notifications arrive on.
func (s *Subscription) C() <-chan Notification {
	return s.sub.ch
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subscribers[s.sub]; ok {
		delete(s.bus.subscribers, s.sub)
		close(s.sub.ch)
	}
}

// Publish fans n out to every current subscriber without blocking. A
// subscriber whose buffer is full has n counted as skipped rather than
// delivered; Publish itself never waits.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for sub := range b.subscribers {
		b.deliver(sub, n)
	}
}

func (b *Bus) deliver(sub *subscriber, n Notification) {
	if sub.skipped > 0 {
		select {
		case sub.ch <- Notification{Kind: KindLagged, Skipped: sub.skipped}:
			sub.skipped = 0
		default:
			sub.skipped++
			return
		}
	}
	select {
	case sub.ch <- n:
	default:
		sub.skipped++
	}
}

// Shutdown delivers a KindShutdown notification to every subscriber, then
// closes its channel, and marks the bus closed; further Publish calls are
// no-ops. Delivery of the shutdown notification follows the same
// best-effort, non-blocking rule as Publish: a subscriber whose buffer is
// already full has it counted as skipped like any other notification,
// rather than Shutdown blocking on a subscriber that stopped reading.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		b.deliver(sub, Notification{Kind: KindShutdown})
		close(sub.ch)
		delete(b.subscribers, sub)
	}
}
