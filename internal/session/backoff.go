package session

import (
	"time"

	"github.com/cenkalti/backoff"
)

// newBackoff returns a deterministic exponential schedule. With the default
// config it yields 1ms, 10ms, 100ms, 1s and then 10s for every later attempt.
func newBackoff(cfg BackoffConfig) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.Initial,
		RandomizationFactor: 0,
		Multiplier:          cfg.Multiplier,
		MaxInterval:         cfg.Max,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return b
}

// shouldLogRetry reports whether the n-th failed attempt (1-based) is worth a
// warning: the 4th, then every 60th after it.
func shouldLogRetry(n int) bool {
	return n == 4 || (n > 4 && (n-4)%60 == 0)
}

// sleep waits for d or until done is closed. It reports whether the full
// delay elapsed.
func sleep(done <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-done:
		return false
	}
}
