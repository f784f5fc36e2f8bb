package nostr

import "time"

// Timestamp is a unix second count, the wire representation of created_at,
// since and until.
type Timestamp int64

// Clock supplies the wall-clock value stamped onto newly constructed events.
// Tests substitute a fixed clock so event ids are deterministic; production
// code defaults to SystemClock.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads time.Now, truncated to unix seconds.
type SystemClock struct{}

func (SystemClock) Now() Timestamp {
	return Timestamp(time.Now().Unix())
}

// FixedClock always returns the same instant, for deterministic tests.
type FixedClock Timestamp

func (c FixedClock) Now() Timestamp { return Timestamp(c) }
