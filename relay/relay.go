// Package relay owns a single websocket connection to one remote relay URL:
// its reconnect/backoff loop, outbound writer queue, inbound dispatch, and
// subscription table. Mutable state lives behind the relay's own goroutines;
// outside callers only ever send commands or read snapshots, the actor-style
// handle the design calls for.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/relaycore/nostr/nostr"
	"github.com/relaycore/nostr/transport"
)

const (
	defaultSeenEventsCapacity = 10_000
	defaultOutboxCapacity     = 256
	defaultAckTimeout         = 10 * time.Second
	decodeFailureThreshold    = 20
)

// PublishStatus classifies the outcome of Publish.
type PublishStatus int

const (
	PublishOK PublishStatus = iota
	PublishRejected
	PublishTimeout
)

// PublishOutcome is the result of an ack-awaited publish.
type PublishOutcome struct {
	Status PublishStatus
	Reason string
}

// EventHandler receives a signature-verified event freshly arrived from this
// relay on subID, deduplicated against seen_events.
type EventHandler func(relayURL string, subID nostr.SubscriptionID, ev *nostr.Event)

// MessageHandler receives every relay server message other than EVENT
// (NOTICE, EOSE, OK, CLOSED) for forwarding onto the pool notification bus;
// EVENT messages go to EventHandler only.
type MessageHandler func(relayURL string, msg nostr.ServerMessage)

// Options tunes the relay's reconnect and timeout behavior.
type Options struct {
	AutoReconnect bool
	AckTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{AutoReconnect: true, AckTimeout: defaultAckTimeout}
}

type outboundFrame struct {
	data []byte
	done chan struct{}
}

// Relay is the connection actor for one remote URL.
type Relay struct {
	URL   string
	Proxy string

	clock   nostr.Clock
	options Options

	onEvent   EventHandler
	onMessage MessageHandler

	mu         sync.RWMutex
	status     Status
	lastError  error
	stats      Stats
	waitingFor []chan struct{} // closed in order as status reaches Connected or Terminated

	subs        *xsync.MapOf[nostr.SubscriptionID, nostr.Filters]
	ackWaiters  *xsync.MapOf[string, chan nostr.OKMessage]
	seen        *seenSet

	outbox chan outboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startOnce sync.Once
}

// New constructs a relay in the Initialized state. Call Start to begin
// connecting.
func New(url, proxy string, clock nostr.Clock, opts Options, onEvent EventHandler, onMessage MessageHandler) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		URL:        url,
		Proxy:      proxy,
		clock:      clock,
		options:    opts,
		onEvent:    onEvent,
		onMessage:  onMessage,
		status:     StatusInitialized,
		subs:       xsync.NewMapOf[nostr.SubscriptionID, nostr.Filters](),
		ackWaiters: xsync.NewMapOf[string, chan nostr.OKMessage](),
		seen:       newSeenSet(defaultSeenEventsCapacity),
		outbox:     make(chan outboundFrame, defaultOutboxCapacity),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

func (r *Relay) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

func (r *Relay) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastError
}

func (r *Relay) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Relay) setStatus(s Status) {
	r.mu.Lock()
	if r.status == StatusTerminated {
		r.mu.Unlock()
		return
	}
	r.status = s
	var wake []chan struct{}
	if s == StatusConnected || s == StatusTerminated {
		wake = r.waitingFor
		r.waitingFor = nil
	}
	r.mu.Unlock()
	for _, ch := range wake {
		close(ch)
	}
}

func (r *Relay) setLastError(err error) {
	r.mu.Lock()
	r.lastError = err
	r.mu.Unlock()
}

// Start begins the connect/reconnect loop in the background. Idempotent.
func (r *Relay) Start() {
	r.startOnce.Do(func() {
		go r.runLoop()
	})
}

// waitChan returns a channel closed the next time the relay reaches
// Connected or Terminated.
func (r *Relay) waitChan() chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	if r.status == StatusConnected || r.status == StatusTerminated {
		r.mu.Unlock()
		close(ch)
		return ch
	}
	r.waitingFor = append(r.waitingFor, ch)
	r.mu.Unlock()
	return ch
}

// ConnectAndWait starts the relay if needed and blocks until it reaches
// Connected, ctx is done, or the relay terminates. A failed connection
// attempt does not end the wait: with auto-reconnect on, the background loop
// keeps retrying; with it off, the wait lasts until ctx is done.
func (r *Relay) ConnectAndWait(ctx context.Context) error {
	r.Start()
	ch := r.waitChan()
	select {
	case <-ch:
		if r.Status() == StatusTerminated {
			return nostr.ErrShutdown
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate transitions the relay to Terminated, cancels its background
// tasks and clears the subscription table. It does not block for the tasks
// to fully exit; Done() reports that.
func (r *Relay) Terminate() {
	r.cancel()
	r.setStatus(StatusTerminated)
	r.subs.Range(func(id nostr.SubscriptionID, _ nostr.Filters) bool {
		r.subs.Delete(id)
		return true
	})
}

// Done is closed once the relay's background loop has fully exited.
func (r *Relay) Done() <-chan struct{} {
	return r.done
}

func (r *Relay) runLoop() {
	defer close(r.done)
	bo := newBackoff()

	for {
		if r.ctx.Err() != nil {
			return
		}
		r.setStatus(StatusConnecting)

		conn, err := transport.Dial(r.ctx, r.URL, r.Proxy)
		if err != nil {
			r.setLastError(&nostr.TransportError{URL: r.URL, Cause: err})
			r.setStatus(StatusDisconnected)
			if !r.options.AutoReconnect {
				return
			}
			if !r.sleepBackoff(bo) {
				return
			}
			continue
		}

		r.setStatus(StatusConnected)
		bo.reset()
		r.mu.Lock()
		r.stats.Reconnects++
		r.mu.Unlock()

		err = r.serveConnection(conn)
		_ = conn.Close()
		if err != nil {
			r.setLastError(&nostr.TransportError{URL: r.URL, Cause: err})
		}

		if r.ctx.Err() != nil {
			return
		}
		r.setStatus(StatusDisconnected)
		if !r.options.AutoReconnect {
			return
		}
		if !r.sleepBackoff(bo) {
			return
		}
	}
}

func (r *Relay) sleepBackoff(bo *backoff) bool {
	t := time.NewTimer(bo.next())
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// serveConnection runs the reader and writer loops for one live connection
// and returns when either exits (error or context cancellation).
func (r *Relay) serveConnection(conn transport.Conn) error {
	connCtx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- r.writerLoop(connCtx, conn) }()
	go func() { errCh <- r.readerLoop(connCtx, conn) }()

	err := <-errCh
	cancel()
	<-errCh
	return err
}

// writerLoop re-sends every active subscription as a fresh REQ before
// draining the outbound queue, so a relay that reconnects observes the same
// REQ frames it would have on initial connect.
func (r *Relay) writerLoop(ctx context.Context, conn transport.Conn) error {
	var replayErr error
	r.subs.Range(func(id nostr.SubscriptionID, filters nostr.Filters) bool {
		frame, err := nostr.Encode(nostr.ReqMessage{SubscriptionID: id, Filters: filters})
		if err != nil {
			replayErr = err
			return false
		}
		if err := conn.Write(ctx, frame); err != nil {
			replayErr = err
			return false
		}
		return true
	})
	if replayErr != nil {
		return replayErr
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item := <-r.outbox:
			if err := conn.Write(ctx, item.data); err != nil {
				return err
			}
			if item.done != nil {
				close(item.done)
			}
		}
	}
}

func (r *Relay) readerLoop(ctx context.Context, conn transport.Conn) error {
	failures := 0
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := nostr.Decode(data)
		if err != nil {
			var invalid *nostr.InvalidEventError
			if errors.As(err, &invalid) {
				r.mu.Lock()
				r.stats.SignatureFailures++
				r.mu.Unlock()
			}
			failures++
			slog.Warn("relay: decode failure", "url", r.URL, "error", err)
			if failures >= decodeFailureThreshold {
				return fmt.Errorf("too many consecutive decode failures: %w", err)
			}
			continue
		}
		failures = 0
		r.dispatch(msg)
	}
}

func (r *Relay) dispatch(msg nostr.ServerMessage) {
	switch m := msg.(type) {
	case nostr.ReceivedEventMessage:
		r.mu.Lock()
		r.stats.EventsReceived++
		r.mu.Unlock()
		if !r.seen.insertIfAbsent(m.Event.ID) {
			r.mu.Lock()
			r.stats.DuplicatesDropped++
			r.mu.Unlock()
			return
		}
		if r.onEvent != nil {
			r.onEvent(r.URL, m.SubscriptionID, m.Event)
		}
	case nostr.OKMessage:
		if ch, ok := r.ackWaiters.Load(m.EventID); ok {
			select {
			case ch <- m:
			default:
			}
		}
		if r.onMessage != nil {
			r.onMessage(r.URL, m)
		}
	default:
		if r.onMessage != nil {
			r.onMessage(r.URL, msg)
		}
	}
}

// enqueue pushes a frame onto the outbound queue. When wait is true it
// blocks until the writer loop has handed the frame to the socket (not until
// any relay response); queue-full applies backpressure either way.
func (r *Relay) enqueue(ctx context.Context, frame []byte, wait bool) error {
	item := outboundFrame{data: frame}
	if wait {
		item.done = make(chan struct{})
	}
	select {
	case r.outbox <- item:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return nostr.ErrShutdown
	}
	if wait {
		select {
		case <-item.done:
		case <-ctx.Done():
			return ctx.Err()
		case <-r.ctx.Done():
			return nostr.ErrShutdown
		}
	}
	return nil
}

// Subscribe records filters under subID and sends a REQ frame.
func (r *Relay) Subscribe(ctx context.Context, subID nostr.SubscriptionID, filters nostr.Filters) error {
	r.subs.Store(subID, filters)
	frame, err := nostr.Encode(nostr.ReqMessage{SubscriptionID: subID, Filters: filters})
	if err != nil {
		return &nostr.InvalidFilterError{Cause: err}
	}
	return r.enqueue(ctx, frame, false)
}

// Unsubscribe removes subID from the table and sends a CLOSE frame.
func (r *Relay) Unsubscribe(ctx context.Context, subID nostr.SubscriptionID) error {
	r.subs.Delete(subID)
	frame, err := nostr.Encode(nostr.CloseMessage{SubscriptionID: subID})
	if err != nil {
		return err
	}
	return r.enqueue(ctx, frame, false)
}

// Subscriptions returns a snapshot of the active subscription table.
func (r *Relay) Subscriptions() map[nostr.SubscriptionID]nostr.Filters {
	out := make(map[nostr.SubscriptionID]nostr.Filters)
	r.subs.Range(func(id nostr.SubscriptionID, filters nostr.Filters) bool {
		out[id] = filters
		return true
	})
	return out
}

// Publish sends the event and awaits a matching OK, bounded by
// r.options.AckTimeout (or ctx's own deadline if shorter).
func (r *Relay) Publish(ctx context.Context, ev *nostr.Event) (PublishOutcome, error) {
	if r.Status() != StatusConnected {
		return PublishOutcome{}, nostr.ErrNotConnected
	}
	frame, err := nostr.Encode(nostr.EventMessage{Event: ev})
	if err != nil {
		return PublishOutcome{}, err
	}

	ch := make(chan nostr.OKMessage, 1)
	r.ackWaiters.Store(ev.ID, ch)
	defer r.ackWaiters.Delete(ev.ID)

	if err := r.enqueue(ctx, frame, false); err != nil {
		return PublishOutcome{}, err
	}

	timeout := r.options.AckTimeout
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ok := <-ch:
		r.mu.Lock()
		r.stats.EventsPublished++
		r.mu.Unlock()
		if ok.OK {
			return PublishOutcome{Status: PublishOK}, nil
		}
		return PublishOutcome{Status: PublishRejected, Reason: ok.Reason}, &nostr.RejectedError{Reason: ok.Reason}
	case <-timer.C:
		return PublishOutcome{Status: PublishTimeout}, nostr.ErrTimeout
	case <-ctx.Done():
		return PublishOutcome{}, ctx.Err()
	case <-r.ctx.Done():
		return PublishOutcome{}, nostr.ErrShutdown
	}
}
