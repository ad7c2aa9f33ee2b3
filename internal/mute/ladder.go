package mute

import (
	"sync"
	"time"
)

// Ladder drives escalating mute durations per user. Levels only go up; they
// are cleared by an explicit reset, never by a mute expiring.
type Ladder struct {
	mu     sync.Mutex
	steps  []time.Duration
	levels map[string]int
}

// NewLadder builds a ladder over the given duration schedule. A user at level
// n is muted for steps[n]; past the last step the duration stays at the
// maximum and the level clamps at len(steps).
func NewLadder(steps []time.Duration) *Ladder {
	if len(steps) == 0 {
		steps = []time.Duration{5 * time.Minute, 10 * time.Minute, 20 * time.Minute}
	}
	return &Ladder{
		steps:  steps,
		levels: make(map[string]int),
	}
}

// Next returns the mute duration for the user's current level and advances
// the level, clamped at the top tier.
func (l *Ladder) Next(userID string) (time.Duration, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	level := l.levels[userID]
	idx := level
	if idx >= len(l.steps) {
		idx = len(l.steps) - 1
	}
	duration := l.steps[idx]

	next := level + 1
	if next > len(l.steps) {
		next = len(l.steps)
	}
	l.levels[userID] = next
	return duration, next
}

func (l *Ladder) Level(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.levels[userID]
}

func (l *Ladder) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.levels, userID)
}
