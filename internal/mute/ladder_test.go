package mute

import (
	"testing"
	"time"
)

func TestLadderEscalation(t *testing.T) {
	ladder := NewLadder(nil)

	var durations []time.Duration
	for i := 0; i < 5; i++ {
		duration, _ := ladder.Next("u1")
		durations = append(durations, duration)
	}

	want := []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute, 20 * time.Minute, 20 * time.Minute}
	for i, d := range durations {
		if d != want[i] {
			t.Fatalf("step %d: expected %v, got %v", i, want[i], d)
		}
		if i > 0 && d < durations[i-1] {
			t.Fatalf("durations must be non-decreasing, got %v after %v", d, durations[i-1])
		}
	}
	if level := ladder.Level("u1"); level != 3 {
		t.Fatalf("expected level clamped at 3, got %d", level)
	}
}

func TestLadderReset(t *testing.T) {
	ladder := NewLadder(nil)
	ladder.Next("u1")
	ladder.Next("u1")
	ladder.Reset("u1")
	if level := ladder.Level("u1"); level != 0 {
		t.Fatalf("expected level 0 after reset, got %d", level)
	}
	if duration, _ := ladder.Next("u1"); duration != 5*time.Minute {
		t.Fatalf("expected first tier after reset, got %v", duration)
	}
}
