package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterAllow_CapWithinWindow(t *testing.T) {
	base := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(NewMemoryCounterStore(), 3, time.Minute)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		ok, _, err := l.Allow(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Allow() hit %d error = %v", i+1, err)
		}
		if !ok {
			t.Fatalf("Allow() hit %d = false, want true", i+1)
		}
	}

	ok, retryAfter, err := l.Allow(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if ok {
		t.Fatal("Allow() fourth hit = true, want throttled")
	}
	if retryAfter != time.Minute {
		t.Errorf("retryAfter = %s, want %s (oldest hit expires a full window later)", retryAfter, time.Minute)
	}
}

func TestLimiterAllow_WindowSlides(t *testing.T) {
	base := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	now := base
	l := NewLimiter(NewMemoryCounterStore(), 2, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _, _ := l.Allow(context.Background(), "user-1"); !ok {
			t.Fatalf("Allow() hit %d = false, want true", i+1)
		}
	}
	if ok, _, _ := l.Allow(context.Background(), "user-1"); ok {
		t.Fatal("Allow() over the cap = true, want false")
	}

	// Once the first hits fall out of the window, capacity returns.
	now = base.Add(61 * time.Second)
	if ok, _, _ := l.Allow(context.Background(), "user-1"); !ok {
		t.Fatal("Allow() after window slide = false, want true")
	}
}

func TestLimiterAllow_KeysAreIndependent(t *testing.T) {
	base := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(NewMemoryCounterStore(), 1, time.Minute)
	l.now = func() time.Time { return base }

	if ok, _, _ := l.Allow(context.Background(), "user-1"); !ok {
		t.Fatal("user-1 first hit throttled")
	}
	if ok, _, _ := l.Allow(context.Background(), "user-1"); ok {
		t.Fatal("user-1 second hit allowed, want throttled")
	}
	if ok, _, _ := l.Allow(context.Background(), "user-2"); !ok {
		t.Fatal("user-2 throttled by user-1's hits")
	}
}

func TestLimiterAllow_MinimumRetryDelay(t *testing.T) {
	base := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	now := base
	l := NewLimiter(NewMemoryCounterStore(), 1, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow(context.Background(), "user-1")

	// The oldest hit is about to expire; the delay is clamped up to 1s.
	now = base.Add(59*time.Second + 800*time.Millisecond)
	ok, retryAfter, _ := l.Allow(context.Background(), "user-1")
	if ok {
		t.Fatal("Allow() = true, want throttled")
	}
	if retryAfter != time.Second {
		t.Errorf("retryAfter = %s, want clamped to %s", retryAfter, time.Second)
	}
}

type failingCounterStore struct{}

func (failingCounterStore) Take(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, time.Time, error) {
	return false, time.Time{}, errors.New("store unavailable")
}

func TestLimiterAllow_FailsOpenOnStoreError(t *testing.T) {
	l := NewLimiter(failingCounterStore{}, 1, time.Minute)

	ok, retryAfter, err := l.Allow(context.Background(), "user-1")
	if !ok {
		t.Error("Allow() = false on store error, want fail-open true")
	}
	if retryAfter != 0 {
		t.Errorf("retryAfter = %s, want 0", retryAfter)
	}
	if err == nil {
		t.Error("Allow() error = nil, want the store error surfaced")
	}
}

func TestMemoryCounterStore_PrunesExpiredHits(t *testing.T) {
	s := NewMemoryCounterStore()
	base := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	window := time.Minute

	for i := 0; i < 2; i++ {
		if ok, _, _ := s.Take(context.Background(), "k", base.Add(time.Duration(i)*time.Second), window, 2); !ok {
			t.Fatalf("Take() hit %d = false, want true", i+1)
		}
	}

	// Both earlier hits are outside the window now.
	later := base.Add(2 * time.Minute)
	ok, _, err := s.Take(context.Background(), "k", later, window, 2)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if !ok {
		t.Error("Take() = false after all hits expired, want true")
	}
	if got := len(s.hits["k"]); got != 1 {
		t.Errorf("retained %d hits, want 1 (expired hits pruned)", got)
	}
}
