package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/nostr/nostr"
)

func TestSeenSetInsertIfAbsent(t *testing.T) {
	t.Parallel()

	s := newSeenSet(2)
	assert.True(t, s.insertIfAbsent("a"))
	assert.False(t, s.insertIfAbsent("a"))
	assert.True(t, s.insertIfAbsent("b"))
	assert.True(t, s.insertIfAbsent("c")) // evicts "a"
	assert.True(t, s.insertIfAbsent("a")) // "a" was evicted, so it is new again
}

func TestBackoffNextBounded(t *testing.T) {
	t.Parallel()

	b := newBackoff()
	for i := 0; i < 20; i++ {
		d := b.next()
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, backoffCeiling)
	}
	b.reset()
	assert.Equal(t, backoffFloor, b.current)
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "unknown", Status(99).String())
}

// fakeConn is an in-memory transport.Conn used to drive a Relay without a
// real websocket, grounded on how the teacher's netstr package fakes a
// net.Conn for its own connection tests.
type fakeConn struct {
	toRelay   chan []byte
	toClient  chan []byte
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toRelay:  make(chan []byte, 16),
		toClient: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.toClient:
		return data, nil
	case <-f.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	select {
	case f.toRelay <- data:
		return nil
	case <-f.closed:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

// serverSendOK writes a relay-side OK frame for eventID directly to the
// client's read side.
func (f *fakeConn) serverSendOK(t *testing.T, eventID string, ok bool, reason string) {
	t.Helper()
	frame, err := json.Marshal([]any{"OK", eventID, ok, reason})
	require.NoError(t, err)
	f.toClient <- frame
}

func (f *fakeConn) serverSendEvent(t *testing.T, subID nostr.SubscriptionID, ev *nostr.Event) {
	t.Helper()
	frame, err := json.Marshal([]any{"EVENT", string(subID), ev})
	require.NoError(t, err)
	f.toClient <- frame
}

func newTestRelay(onEvent EventHandler) *Relay {
	opts := DefaultOptions()
	opts.AckTimeout = 200 * time.Millisecond
	return New("wss://relay.example", "", nostr.SystemClock{}, opts, onEvent, nil)
}

func TestRelayPublishOK(t *testing.T) {
	t.Parallel()

	r := newTestRelay(nil)
	conn := newFakeConn()
	r.setStatus(StatusConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.writerLoop(ctx, conn) }()

	ev, err := nostr.NewEvent(nostr.SystemClock{}, nostr.GeneratePrivateKey(), nostr.KindTextNote, nil, "hello")
	require.NoError(t, err)

	done := make(chan struct{})
	var outcome PublishOutcome
	var pubErr error
	go func() {
		outcome, pubErr = r.Publish(ctx, ev)
		close(done)
	}()

	select {
	case frame := <-conn.toRelay:
		var arr []json.RawMessage
		require.NoError(t, json.Unmarshal(frame, &arr))
		var cmd string
		require.NoError(t, json.Unmarshal(arr[0], &cmd))
		require.Equal(t, "EVENT", cmd)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EVENT frame")
	}

	conn.serverSendOK(t, ev.ID, true, "")
	frame := <-conn.toClient
	msg, err := nostr.Decode(frame)
	require.NoError(t, err)
	r.dispatch(msg)

	<-done
	require.NoError(t, pubErr)
	assert.Equal(t, PublishOK, outcome.Status)
}

func TestRelayPublishTimeout(t *testing.T) {
	t.Parallel()

	r := newTestRelay(nil)
	conn := newFakeConn()
	r.setStatus(StatusConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.writerLoop(ctx, conn) }()
	go func() {
		for range conn.toRelay {
		}
	}()

	ev, err := nostr.NewEvent(nostr.SystemClock{}, nostr.GeneratePrivateKey(), nostr.KindTextNote, nil, "no ack coming")
	require.NoError(t, err)

	outcome, err := r.Publish(ctx, ev)
	assert.ErrorIs(t, err, nostr.ErrTimeout)
	assert.Equal(t, PublishTimeout, outcome.Status)
}

func TestRelayPublishNotConnected(t *testing.T) {
	t.Parallel()

	r := newTestRelay(nil)
	ev, err := nostr.NewEvent(nostr.SystemClock{}, nostr.GeneratePrivateKey(), nostr.KindTextNote, nil, "x")
	require.NoError(t, err)

	_, err = r.Publish(context.Background(), ev)
	assert.ErrorIs(t, err, nostr.ErrNotConnected)
}

func TestRelayDispatchDedup(t *testing.T) {
	t.Parallel()

	var received []*nostr.Event
	r := newTestRelay(func(_ string, _ nostr.SubscriptionID, ev *nostr.Event) {
		received = append(received, ev)
	})

	ev, err := nostr.NewEvent(nostr.SystemClock{}, nostr.GeneratePrivateKey(), nostr.KindTextNote, nil, "dup me")
	require.NoError(t, err)

	msg := nostr.ReceivedEventMessage{SubscriptionID: "sub1", Event: ev}
	r.dispatch(msg)
	r.dispatch(msg)

	assert.Len(t, received, 1)
	assert.Equal(t, uint64(2), r.Stats().EventsReceived)
	assert.Equal(t, uint64(1), r.Stats().DuplicatesDropped)
}

func TestRelaySubscribeTracksTable(t *testing.T) {
	t.Parallel()

	r := newTestRelay(nil)
	conn := newFakeConn()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.writerLoop(ctx, conn) }()

	filters := nostr.Filters{{Kinds: []int{nostr.KindTextNote}}}
	require.NoError(t, r.Subscribe(ctx, "sub1", filters))

	select {
	case <-conn.toRelay:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for REQ frame")
	}

	subs := r.Subscriptions()
	require.Contains(t, subs, nostr.SubscriptionID("sub1"))

	require.NoError(t, r.Unsubscribe(ctx, "sub1"))
	select {
	case <-conn.toRelay:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for CLOSE frame")
	}
	assert.NotContains(t, r.Subscriptions(), nostr.SubscriptionID("sub1"))
}
