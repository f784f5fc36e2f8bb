package nostr_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/nostr/nostr"
)

func TestEncodeReqMessage(t *testing.T) {
	t.Parallel()

	frame, err := nostr.Encode(nostr.ReqMessage{
		SubscriptionID: "sub1",
		Filters:        nostr.Filters{{Kinds: []int{nostr.KindTextNote}}},
	})
	require.NoError(t, err)

	var arr []json.RawMessage
	require.NoError(t, json.Unmarshal(frame, &arr))
	require.Len(t, arr, 3)

	var cmd, subID string
	require.NoError(t, json.Unmarshal(arr[0], &cmd))
	require.NoError(t, json.Unmarshal(arr[1], &subID))
	assert.Equal(t, "REQ", cmd)
	assert.Equal(t, "sub1", subID)
}

func TestEncodeCloseMessage(t *testing.T) {
	t.Parallel()

	frame, err := nostr.Encode(nostr.CloseMessage{SubscriptionID: "sub1"})
	require.NoError(t, err)
	assert.JSONEq(t, `["CLOSE","sub1"]`, string(frame))
}

func TestDecodeEventMessageVerifiesSignature(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.NewEvent(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "hi")
	require.NoError(t, err)

	frame, err := json.Marshal([]any{"EVENT", "sub1", ev})
	require.NoError(t, err)

	msg, err := nostr.Decode(frame)
	require.NoError(t, err)

	received, ok := msg.(nostr.ReceivedEventMessage)
	require.True(t, ok)
	assert.Equal(t, nostr.SubscriptionID("sub1"), received.SubscriptionID)
	assert.Equal(t, ev.ID, received.Event.ID)
}

func TestDecodeEventMessageRejectsTamperedSignature(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.NewEvent(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "hi")
	require.NoError(t, err)
	ev.Content = "tampered"

	frame, err := json.Marshal([]any{"EVENT", "sub1", ev})
	require.NoError(t, err)

	_, err = nostr.Decode(frame)
	require.Error(t, err)
	var invalidEvent *nostr.InvalidEventError
	assert.ErrorAs(t, err, &invalidEvent)
}

func TestDecodeOKMessage(t *testing.T) {
	t.Parallel()

	frame, err := json.Marshal([]any{"OK", "eventid", false, "blocked: spam"})
	require.NoError(t, err)

	msg, err := nostr.Decode(frame)
	require.NoError(t, err)
	ok, isOK := msg.(nostr.OKMessage)
	require.True(t, isOK)
	assert.False(t, ok.OK)
	assert.Equal(t, "blocked: spam", ok.Reason)
}

func TestDecodeUnknownCommandIsProtocolError(t *testing.T) {
	t.Parallel()

	frame, err := json.Marshal([]any{"WEIRD", "x"})
	require.NoError(t, err)

	_, err = nostr.Decode(frame)
	require.Error(t, err)
	var protoErr *nostr.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}
