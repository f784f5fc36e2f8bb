package nostr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/nostr/nostr"
)

func TestCountLeadingZeroBits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 8, nostr.CountLeadingZeroBits("00ff"))
	assert.Equal(t, 0, nostr.CountLeadingZeroBits("ff00"))
	assert.Equal(t, 16, nostr.CountLeadingZeroBits("0000ff"))
	assert.Equal(t, 4, nostr.CountLeadingZeroBits("0f00"))
}

func TestMineNonceReachesDifficulty(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	ev, err := nostr.MineNonce(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "mined", 8)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, nostr.CountLeadingZeroBits(ev.ID), 8)

	nonceTag := ev.Tags.Find("nonce")
	require.NotNil(t, nonceTag)
	assert.Equal(t, "8", nonceTag[2])

	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMineNonceRefusesAboveMaxDifficulty(t *testing.T) {
	t.Parallel()

	sk := nostr.GeneratePrivateKey()
	_, err := nostr.MineNonce(nostr.FixedClock(1700000000), sk, nostr.KindTextNote, nil, "x", nostr.MaxDifficulty+1)
	assert.Error(t, err)
}
