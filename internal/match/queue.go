package match

import (
	"sync"
	"time"
)

type Gender int

const (
	GenderUnknown Gender = iota
	GenderMan
	GenderWoman
)

type Preference int

const (
	PreferEither Preference = iota
	PreferMen
	PreferWomen
)

// Profile is the compatibility snapshot a user carries into the queue.
// A zero Profile matches anyone.
type Profile struct {
	Gender     Gender
	Preference Preference
}

// Entry is one queued user with the profile snapshotted at enqueue time.
type Entry struct {
	UserID   string
	Profile  Profile
	JoinedAt time.Time
}

// Queue is the FIFO waiting list. Pair selection scans index pairs (i, j)
// with i < j and picks the first candidate the predicate accepts, so ties
// break purely by insertion order.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
}

func NewQueue() *Queue {
	return &Queue{}
}

// Add enqueues the user. Returns false if already queued.
func (q *Queue) Add(userID string, profile Profile, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.entries {
		if entry.UserID == userID {
			return false
		}
	}
	q.entries = append(q.entries, Entry{UserID: userID, Profile: profile, JoinedAt: now})
	return true
}

// Remove dequeues the user. Removing an absent user is a no-op.
func (q *Queue) Remove(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, entry := range q.entries {
		if entry.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) Contains(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, entry := range q.entries {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// FindPair returns the first (i, j) pair in scan order accepted by ok, and
// removes both entries. The scan restarts from the head every call.
func (q *Queue) FindPair(ok func(a, b Entry) bool) (Entry, Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < len(q.entries); i++ {
		for j := i + 1; j < len(q.entries); j++ {
			a, b := q.entries[i], q.entries[j]
			if !ok(a, b) {
				continue
			}
			// j > i, so removing j first keeps i stable.
			q.entries = append(q.entries[:j], q.entries[j+1:]...)
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return a, b, true
		}
	}
	return Entry{}, Entry{}, false
}

// Compatible applies the mutual gender/preference predicate. Entries without
// attributes are compatible with everyone.
func Compatible(a, b Profile) bool {
	if a.Gender == GenderUnknown || b.Gender == GenderUnknown {
		return true
	}
	return wants(a.Preference, b.Gender) && wants(b.Preference, a.Gender)
}

func wants(pref Preference, gender Gender) bool {
	switch pref {
	case PreferMen:
		return gender == GenderMan
	case PreferWomen:
		return gender == GenderWoman
	default:
		return true
	}
}
