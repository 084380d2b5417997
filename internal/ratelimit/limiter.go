package ratelimit

import (
	"context"
	"time"
)

// CounterStore records rate-limit hits per key. Implementations must be
// shareable across processor instances so the window stays correct when
// more than one consumer drains the queue.
type CounterStore interface {
	// Take attempts to record a hit for key at now, counting only hits
	// newer than now minus window. When the in-window count is already at
	// the limit the hit is not recorded; oldest then carries the oldest
	// counted hit so the caller can compute a retry delay.
	Take(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (ok bool, oldest time.Time, err error)
}

// Limiter caps how many items may be processed per key within a sliding
// window. A counter-store failure fails open: throttling is load
// protection, not a correctness guarantee, so processing proceeds.
type Limiter struct {
	store  CounterStore
	window time.Duration
	limit  int
	now    func() time.Time
}

// NewLimiter creates a limiter allowing at most limit hits per key within
// each sliding window.
func NewLimiter(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		window: window,
		limit:  limit,
		now:    time.Now,
	}
}

// Allow reports whether one more item may be processed for key now. When
// the limit is exhausted it returns the delay after which the oldest
// in-window hit expires. The returned error is informational only; ok is
// true whenever the counter store misbehaves.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := l.now()

	ok, oldest, err := l.store.Take(ctx, key, now, l.window, l.limit)
	if err != nil {
		return true, 0, err
	}
	if ok {
		return true, 0, nil
	}

	retryAfter := oldest.Add(l.window).Sub(now)
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return false, retryAfter, nil
}
