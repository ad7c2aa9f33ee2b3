package utils

import (
	"sync"
	"time"
)

// SlidingWindow counts events inside a trailing duration. Timestamps arrive in
// non-decreasing order, so eviction only needs to trim the front.
type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hits = append(w.hits, now)
	w.evict(now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(now)
	return len(w.hits)
}

// Reset drops every recorded event. Callers clear the window after a penalty
// fires so the same burst cannot trigger it twice.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = nil
}

func (w *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}
