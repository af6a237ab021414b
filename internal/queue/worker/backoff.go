package worker

import (
	"math"
	"math/rand"
	"time"
)

// Backoff grows the delay between reconnect attempts exponentially up to Cap.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

var DefaultBackoff = Backoff{Base: time.Second, Cap: time.Minute}

// Delay for attempt 0 is Base, then 2*Base, 4*Base... plus up to 250ms jitter
// so reconnecting workers do not stampede the broker.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt)))
	if delay > b.Cap || delay <= 0 {
		delay = b.Cap
	}

	return delay + time.Duration(rand.Intn(250))*time.Millisecond
}
