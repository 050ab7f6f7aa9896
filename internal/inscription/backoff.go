package inscription

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxGrowth = 6.0

// growingBackOff waits base*min(1+n*0.25, 6) before the n-th retry (from 0),
// so the delay grows linearly and then levels off.
type growingBackOff struct {
	base    time.Duration
	attempt int
}

var _ backoff.BackOff = (*growingBackOff)(nil)

func newGrowingBackOff(base time.Duration) *growingBackOff {
	return &growingBackOff{base: base}
}

func (b *growingBackOff) NextBackOff() time.Duration {
	d := PollDelay(b.base, b.attempt)
	b.attempt++
	return d
}

func (b *growingBackOff) Reset() {
	b.attempt = 0
}

// PollDelay is the wait after the attempt-th status check (0-based).
func PollDelay(base time.Duration, attempt int) time.Duration {
	factor := 1 + float64(attempt)*0.25
	if factor > maxGrowth {
		factor = maxGrowth
	}
	return time.Duration(float64(base) * factor)
}
