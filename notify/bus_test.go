package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishDelivers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	bus.Publish(Notification{Kind: KindNotice, Text: "hello"})

	n := <-sub.C()
	require.Equal(t, KindNotice, n.Kind)
	assert.Equal(t, "hello", n.Text)
}

func TestBusFanOutToMultipleSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	defer sub1.Close()
	defer sub2.Close()

	bus.Publish(Notification{Kind: KindEOSE, SubscriptionID: "s1"})

	n1 := <-sub1.C()
	n2 := <-sub2.C()
	assert.Equal(t, KindEOSE, n1.Kind)
	assert.Equal(t, KindEOSE, n2.Kind)
}

func TestBusLaggedSubscriberReportsSkipped(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	// Fill the subscriber's buffer, then publish 10 more that can only be
	// counted as skipped since there is nowhere to put them.
	for i := 0; i < defaultSubscriberBuffer+10; i++ {
		bus.Publish(Notification{Kind: KindNotice, Text: "x"})
	}

	// Drain every queued notice, freeing room for the next publish to land
	// the deferred Lagged marker.
	for i := 0; i < defaultSubscriberBuffer; i++ {
		n := <-sub.C()
		require.Equal(t, KindNotice, n.Kind)
	}

	bus.Publish(Notification{Kind: KindNotice, Text: "after lag"})

	lagged := <-sub.C()
	require.Equal(t, KindLagged, lagged.Kind)
	assert.Equal(t, uint64(10), lagged.Skipped)

	next := <-sub.C()
	assert.Equal(t, KindNotice, next.Kind)
	assert.Equal(t, "after lag", next.Text)
}

func TestBusShutdownClosesSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewBus()
	sub := bus.Subscribe()

	bus.Shutdown()

	// The channel carries a KindShutdown notification before it closes, so
	// a caller pattern-matching on Kind inside its read loop can react to
	// shutdown as a distinct case rather than only noticing the loop ended.
	n, ok := <-sub.C()
	require.True(t, ok)
	assert.Equal(t, KindShutdown, n.Kind)

	_, ok = <-sub.C()
	assert.False(t, ok)

	// Publish after shutdown must not panic.
	bus.Publish(Notification{Kind: KindNotice})
}
