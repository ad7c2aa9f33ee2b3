package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	window.Add(now.Add(500 * time.Millisecond))
	if count := window.Count(now.Add(1 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Count(now.Add(3 * time.Second)); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestSlidingWindowThresholdBoundary(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	now := time.Unix(1000, 0)

	var count int
	for i := 0; i < 10; i++ {
		count = window.Add(now.Add(time.Duration(i) * 900 * time.Millisecond))
	}
	if count != 10 {
		t.Fatalf("expected 10 inside window, got %d", count)
	}
	if count = window.Add(now.Add(9 * time.Second)); count != 11 {
		t.Fatalf("expected 11 inside window, got %d", count)
	}

	// Spacing an event beyond the window sheds the old burst.
	if count = window.Add(now.Add(25 * time.Second)); count != 1 {
		t.Fatalf("expected 1 after gap, got %d", count)
	}
}

func TestSlidingWindowReset(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	now := time.Unix(1000, 0)
	window.Add(now)
	window.Add(now.Add(time.Second))
	window.Reset()
	if count := window.Count(now.Add(time.Second)); count != 0 {
		t.Fatalf("expected 0 after reset, got %d", count)
	}
}
