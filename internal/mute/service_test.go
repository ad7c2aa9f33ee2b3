package mute

import (
	"context"
	"testing"
	"time"

	"lonelybot/internal/modules/audit"
	"lonelybot/internal/platform"
	"lonelybot/internal/storage"

	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newService(t *testing.T, cfg Config) (*Service, *platform.Fake, *fakeClock) {
	t.Helper()
	store, _ := storage.New(":memory:")
	_ = store.Migrate()
	api := platform.NewFake()
	clock := &fakeClock{now: time.Unix(0, 0)}
	svc := NewService(cfg, api, NewLadder(nil), audit.NewLogger(store, zap.NewNop()), zap.NewNop(), "g1")
	svc.WithClock(clock)
	return svc, api, clock
}

func TestEscalateAndSweep(t *testing.T) {
	svc, api, clock := newService(t, Config{})
	ctx := context.Background()

	duration, level, err := svc.Escalate(ctx, "u1", "repeat")
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if duration != 5*time.Minute || level != 1 {
		t.Fatalf("expected 5m level 1, got %v level %d", duration, level)
	}
	if !svc.IsMuted("u1") {
		t.Fatalf("expected muted")
	}
	if !api.HasRole("u1", api.MutedRoleID) {
		t.Fatalf("expected muted role applied")
	}

	clock.now = clock.now.Add(4 * time.Minute)
	svc.Sweep(ctx)
	if !svc.IsMuted("u1") {
		t.Fatalf("sweep must not lift an unexpired mute")
	}

	clock.now = clock.now.Add(2 * time.Minute)
	svc.Sweep(ctx)
	if svc.IsMuted("u1") {
		t.Fatalf("expected mute lifted after expiry")
	}
	if api.HasRole("u1", api.MutedRoleID) {
		t.Fatalf("expected muted role removed")
	}

	// Level survives an expiry-driven unmute.
	if duration, _ = svc.ladder.Next("u1"); duration != 10*time.Minute {
		t.Fatalf("expected second tier after expiry, got %v", duration)
	}
}

func TestLiftIdempotent(t *testing.T) {
	svc, _, clock := newService(t, Config{})
	ctx := context.Background()

	if _, _, err := svc.Escalate(ctx, "u1", "repeat"); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	clock.now = clock.now.Add(10 * time.Minute)
	svc.Lift(ctx, "u1")
	svc.Lift(ctx, "u1") // absent record, must be a no-op
	svc.Lift(ctx, "never-muted")
}

func TestClearResetsLevel(t *testing.T) {
	svc, _, _ := newService(t, Config{})
	ctx := context.Background()

	svc.Escalate(ctx, "u1", "repeat")
	svc.Escalate(ctx, "u1", "repeat")
	svc.Clear(ctx, "u1")

	if svc.IsMuted("u1") {
		t.Fatalf("expected unmuted after clear")
	}
	if duration, _ := svc.ladder.Next("u1"); duration != 5*time.Minute {
		t.Fatalf("explicit unmute must reset the ladder, got %v", duration)
	}
}

func TestResetOnExpiryPolicy(t *testing.T) {
	svc, _, clock := newService(t, Config{ResetOnExpiry: true})
	ctx := context.Background()

	svc.Escalate(ctx, "u1", "repeat")
	clock.now = clock.now.Add(6 * time.Minute)
	svc.Sweep(ctx)

	if duration, _ := svc.ladder.Next("u1"); duration != 5*time.Minute {
		t.Fatalf("expected ladder reset on expiry, got %v", duration)
	}
}
