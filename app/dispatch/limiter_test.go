package dispatch

import (
	"testing"
	"time"
)

func TestWindowLimiter_AllowsUpToCap(t *testing.T) {
	l := NewWindowLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("g1", "c1") {
			t.Fatalf("Send %d should be allowed under the cap", i+1)
		}
	}
	if l.Allow("g1", "c1") {
		t.Errorf("Send beyond the cap must be deferred")
	}
}

func TestWindowLimiter_DestinationsAreIndependent(t *testing.T) {
	l := NewWindowLimiter(1, time.Minute)

	if !l.Allow("g1", "c1") {
		t.Fatalf("First destination should be allowed")
	}
	if !l.Allow("g1", "c2") {
		t.Errorf("A different channel in the same guild has its own window")
	}
	if !l.Allow("g2", "c1") {
		t.Errorf("A different guild has its own window")
	}
	if l.Allow("g1", "c1") {
		t.Errorf("Saturated destination must stay capped")
	}
}

func TestWindowLimiter_WindowExpiryReadmits(t *testing.T) {
	current := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	l := NewWindowLimiter(2, time.Minute)
	l.now = func() time.Time { return current }

	if !l.Allow("g1", "c1") || !l.Allow("g1", "c1") {
		t.Fatalf("First two sends should be allowed")
	}
	if l.Allow("g1", "c1") {
		t.Fatalf("Third send inside the window must be deferred")
	}

	current = current.Add(30 * time.Second)
	if l.Allow("g1", "c1") {
		t.Errorf("Window has not rolled over yet")
	}

	current = current.Add(31 * time.Second)
	if !l.Allow("g1", "c1") {
		t.Errorf("Sends older than the window must no longer count")
	}
}

func TestWindowLimiter_ZeroLimitDisables(t *testing.T) {
	l := NewWindowLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("g1", "c1") {
			t.Fatalf("Limit 0 disables the limiter")
		}
	}
}
