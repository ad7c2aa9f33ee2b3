package cooldown

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Table blocks a pair of users from re-matching until an expiry passes. Keys
// are unordered: (a, b) and (b, a) hit the same entry. Stale entries are only
// ever reclaimed by overwrite; the key space is small and reused.
type Table struct {
	mu      sync.Mutex
	clock   Clock
	entries map[string]time.Time
}

func New() *Table {
	return &Table{
		clock:   realClock{},
		entries: make(map[string]time.Time),
	}
}

func (t *Table) WithClock(clock Clock) {
	t.clock = clock
}

// CanPair reports whether no unexpired cooldown exists for the pair. An
// expired entry counts as absent.
func (t *Table) CanPair(a, b string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.entries[pairKey(a, b)]
	if !ok {
		return true
	}
	return !t.clock.Now().Before(until)
}

// Set inserts or overwrites the pair's cooldown expiry.
func (t *Table) Set(a, b string, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[pairKey(a, b)] = t.clock.Now().Add(duration)
}

func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
