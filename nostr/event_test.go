package nostr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/nostr/nostr"
)

func TestNewEventIDAndSignatureRoundTrip(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.NewEvent(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "hello world")
	require.NoError(t, err)

	assert.Equal(t, ev.ComputeID(), ev.ID)

	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckSignatureRejectsTamperedContent(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.NewEvent(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "hello world")
	require.NoError(t, err)

	ev.Content = "tampered"
	_, err = ev.CheckSignature()
	require.Error(t, err)

	var invalidEvent *nostr.InvalidEventError
	assert.ErrorAs(t, err, &invalidEvent)
}

func TestSerializeIsCanonical(t *testing.T) {
	t.Parallel()

	ev := &nostr.Event{
		PubKey:    "abc",
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      nostr.Tags{{"e", "deadbeef"}},
		Content:   "hi \"there\"\n",
	}
	got := string(ev.Serialize())
	want := `[0,"abc",1700000000,1,[["e","deadbeef"]],"hi \"there\"\n"]`
	assert.Equal(t, want, got)
}

func TestNewEventDefaultsNilTags(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.NewEvent(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "x")
	require.NoError(t, err)
	assert.NotNil(t, ev.Tags)
	assert.Len(t, ev.Tags, 0)
}
