package security

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3, 100)
	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.1") {
			t.Fatalf("query %d should be allowed within burst", i)
		}
	}
	if rl.Allow("203.0.113.1") {
		t.Error("query beyond burst should be throttled")
	}
}

func TestRateLimiter_TracksSourcesIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1, 100)
	if !rl.Allow("203.0.113.1") {
		t.Fatal("first source's first query should be allowed")
	}
	if !rl.Allow("203.0.113.2") {
		t.Fatal("second source should have its own bucket")
	}
}

func TestRateLimiter_EvictsWhenFull(t *testing.T) {
	rl := NewRateLimiter(1, 1, 10)
	for i := 0; i < 20; i++ {
		rl.Allow(string(rune('a' + i)))
	}
	if len(rl.sources) > 10 {
		t.Errorf("len(sources) = %d, want <= 10", len(rl.sources))
	}
}

func TestRateLimiter_CleanupRemovesStaleSources(t *testing.T) {
	rl := NewRateLimiter(1, 1, 100)
	rl.Allow("203.0.113.1")
	rl.sources["203.0.113.1"].lastSeen = time.Now().Add(-time.Hour)

	rl.Cleanup(time.Minute)

	if _, ok := rl.sources["203.0.113.1"]; ok {
		t.Error("stale source should have been removed")
	}
}
