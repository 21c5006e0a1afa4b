package coach

import (
	"testing"
	"time"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Unix(1_700_000_000, 0)
	rl.mu.Lock()
	rl.now = func() time.Time { return now }
	rl.mu.Unlock()

	if !rl.Allow("anon_1") || !rl.Allow("anon_1") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("anon_1") {
		t.Fatal("third request inside the window should be limited")
	}
	if !rl.Allow("anon_2") {
		t.Fatal("limits are per key")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("anon_1") {
		t.Fatal("request after the window should pass")
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	rl.Stop()
}
