package cooldown

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func TestCooldownEnforcement(t *testing.T) {
	table := New()
	start := time.Unix(0, 0)
	table.WithClock(fakeClock{now: start})

	if !table.CanPair("a", "b") {
		t.Fatalf("expected pair allowed before any cooldown")
	}

	table.Set("a", "b", 3*time.Minute)

	table.WithClock(fakeClock{now: start})
	if table.CanPair("a", "b") {
		t.Fatalf("expected pair blocked at T")
	}
	if table.CanPair("b", "a") {
		t.Fatalf("expected unordered key, (b,a) blocked too")
	}

	table.WithClock(fakeClock{now: start.Add(3*time.Minute - time.Second)})
	if table.CanPair("a", "b") {
		t.Fatalf("expected pair blocked just before expiry")
	}

	table.WithClock(fakeClock{now: start.Add(3 * time.Minute)})
	if !table.CanPair("a", "b") {
		t.Fatalf("expected pair allowed at expiry")
	}

	if !table.CanPair("a", "c") {
		t.Fatalf("unrelated pair should never be blocked")
	}
}

func TestCooldownOverwrite(t *testing.T) {
	table := New()
	start := time.Unix(0, 0)
	table.WithClock(fakeClock{now: start})

	table.Set("a", "b", time.Minute)
	table.Set("a", "b", 5*time.Minute)

	table.WithClock(fakeClock{now: start.Add(2 * time.Minute)})
	if table.CanPair("a", "b") {
		t.Fatalf("expected overwrite to extend the cooldown")
	}
}
