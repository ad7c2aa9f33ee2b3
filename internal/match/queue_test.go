package match

import (
	"testing"
	"time"
)

func TestQueueAddRemove(t *testing.T) {
	q := NewQueue()
	now := time.Unix(0, 0)

	if !q.Add("a", Profile{}, now) {
		t.Fatalf("first add must succeed")
	}
	if q.Add("a", Profile{}, now) {
		t.Fatalf("duplicate add must be rejected")
	}
	if !q.Contains("a") || q.Len() != 1 {
		t.Fatalf("unexpected queue state")
	}
	if !q.Remove("a") {
		t.Fatalf("remove of queued user must succeed")
	}
	if q.Remove("a") {
		t.Fatalf("remove of absent user must be a no-op")
	}
}

func TestFindPairFirstFit(t *testing.T) {
	q := NewQueue()
	now := time.Unix(0, 0)
	man := Profile{Gender: GenderMan, Preference: PreferWomen}
	woman := Profile{Gender: GenderWoman, Preference: PreferMen}

	// A and B cannot pair with each other, C fits both; first fit is (A, C).
	q.Add("A", man, now)
	q.Add("B", man, now)
	q.Add("C", woman, now)
	q.Add("D", woman, now)

	a, b, found := q.FindPair(func(x, y Entry) bool { return Compatible(x.Profile, y.Profile) })
	if !found || a.UserID != "A" || b.UserID != "C" {
		t.Fatalf("expected first fit (A, C), got (%s, %s) found=%v", a.UserID, b.UserID, found)
	}
	if q.Len() != 2 || !q.Contains("B") || !q.Contains("D") {
		t.Fatalf("expected B and D left queued")
	}

	a, b, found = q.FindPair(func(x, y Entry) bool { return Compatible(x.Profile, y.Profile) })
	if !found || a.UserID != "B" || b.UserID != "D" {
		t.Fatalf("expected (B, D) next, got (%s, %s) found=%v", a.UserID, b.UserID, found)
	}
	if q.Len() != 0 {
		t.Fatalf("queue must be drained")
	}
}

func TestFindPairNoCandidate(t *testing.T) {
	q := NewQueue()
	now := time.Unix(0, 0)
	q.Add("A", Profile{Gender: GenderMan, Preference: PreferWomen}, now)
	q.Add("B", Profile{Gender: GenderMan, Preference: PreferWomen}, now)

	if _, _, found := q.FindPair(func(x, y Entry) bool { return Compatible(x.Profile, y.Profile) }); found {
		t.Fatalf("incompatible pair must not match")
	}
	if q.Len() != 2 {
		t.Fatalf("rejected candidates must stay queued")
	}
}

func TestCompatible(t *testing.T) {
	man := Profile{Gender: GenderMan, Preference: PreferWomen}
	woman := Profile{Gender: GenderWoman, Preference: PreferMen}
	gayMan := Profile{Gender: GenderMan, Preference: PreferMen}
	anyone := Profile{Gender: GenderWoman, Preference: PreferEither}
	unknown := Profile{}

	cases := []struct {
		name string
		a, b Profile
		want bool
	}{
		{"mutual straight", man, woman, true},
		{"one sided", man, gayMan, false},
		{"mutual gay", gayMan, gayMan, true},
		{"either accepts", anyone, man, true},
		{"unknown matches anyone", unknown, gayMan, true},
		{"both unknown", unknown, unknown, true},
	}
	for _, tc := range cases {
		if got := Compatible(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: Compatible=%v, want %v", tc.name, got, tc.want)
		}
		if got := Compatible(tc.b, tc.a); got != tc.want {
			t.Errorf("%s (flipped): Compatible=%v, want %v", tc.name, got, tc.want)
		}
	}
}
