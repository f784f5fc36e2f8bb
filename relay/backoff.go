package relay

import (
	"math/rand"
	"time"
)

const (
	backoffFloor   = time.Second
	backoffCeiling = 60 * time.Second
)

// backoff produces exponential reconnect delays with jitter, bounded between
// backoffFloor and backoffCeiling, resetting to the floor after every call to
// reset (which a successful Connected transition triggers).
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffFloor}
}

func (b *backoff) reset() {
	b.current = backoffFloor
}

// next returns the delay to wait before the next reconnect attempt and
// advances the internal state for the attempt after that.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > backoffCeiling {
		b.current = backoffCeiling
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2 + 1))
	delay := d/2 + jitter
	if delay < backoffFloor {
		delay = backoffFloor
	}
	return delay
}
