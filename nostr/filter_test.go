package nostr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/nostr/nostr"
)

func TestFilterMatchesKindAuthorSince(t *testing.T) {
	t.Parallel()

	since := nostr.Timestamp(1000)
	f := nostr.Filter{Kinds: []int{nostr.KindTextNote}, Authors: []string{"A"}, Since: &since}

	e1 := &nostr.Event{Kind: nostr.KindTextNote, PubKey: "A", CreatedAt: 1001}
	assert.True(t, f.Matches(e1))

	e2 := &nostr.Event{Kind: nostr.KindTextNote, PubKey: "B", CreatedAt: 1001}
	assert.False(t, f.Matches(e2))

	e3 := &nostr.Event{Kind: nostr.KindReaction, PubKey: "A", CreatedAt: 1001}
	assert.False(t, f.Matches(e3))

	e4 := &nostr.Event{Kind: nostr.KindTextNote, PubKey: "A", CreatedAt: 999}
	assert.False(t, f.Matches(e4))
}

func TestFilterTagMatching(t *testing.T) {
	t.Parallel()

	f := nostr.Filter{Events: []string{"deadbeef"}}
	e := &nostr.Event{Tags: nostr.Tags{{"e", "deadbeef"}}}
	assert.True(t, f.Matches(e))

	f2 := nostr.Filter{Events: []string{"other"}}
	assert.False(t, f2.Matches(e))
}

func TestFilterEmptyMatchesEverything(t *testing.T) {
	t.Parallel()

	f := nostr.Filter{}
	e := &nostr.Event{Kind: 42, PubKey: "anyone"}
	assert.True(t, f.Matches(e))
}

func TestFiltersMatchesAnyIsDisjunction(t *testing.T) {
	t.Parallel()

	fs := nostr.Filters{
		{Kinds: []int{nostr.KindTextNote}},
		{Kinds: []int{nostr.KindReaction}},
	}
	e := &nostr.Event{Kind: nostr.KindReaction}
	assert.True(t, fs.MatchesAny(e))

	e2 := &nostr.Event{Kind: nostr.KindRepost}
	assert.False(t, fs.MatchesAny(e2))
}

func TestFilterUntilIsInclusive(t *testing.T) {
	t.Parallel()

	until := nostr.Timestamp(500)
	f := nostr.Filter{Until: &until}
	assert.True(t, f.Matches(&nostr.Event{CreatedAt: 500}))
	assert.False(t, f.Matches(&nostr.Event{CreatedAt: 501}))
}
