package nostr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaycore/nostr/nostr"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"adds default scheme", "relay.example.com", "wss://relay.example.com"},
		{"lowercases scheme and host", "WSS://Relay.Example.COM", "wss://relay.example.com"},
		{"strips trailing slash", "wss://relay.example.com/", "wss://relay.example.com"},
		{"already normalized", "wss://relay.example.com", "wss://relay.example.com"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, nostr.NormalizeURL(tc.in))
		})
	}
}
