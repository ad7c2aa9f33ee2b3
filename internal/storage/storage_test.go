package storage

import (
	"context"
	"testing"
	"time"
)

func TestUpsertGuildSettings(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	settings := GuildSettings{
		GuildID:         "g1",
		ModLogChannel:   "c1",
		AntilinkEnabled: true,
		OwnInviteCode:   "abc123",
	}
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.AntilinkEnabled = false
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(context.Background(), "g1", GuildSettings{})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.AntilinkEnabled {
		t.Fatalf("expected antilink disabled")
	}
	if got.ModLogChannel != "c1" {
		t.Fatalf("expected channel c1, got %q", got.ModLogChannel)
	}
}

func TestPairBlocklist(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()

	if err := store.AddPairBlock(ctx, "u2", "u1"); err != nil {
		t.Fatalf("add block: %v", err)
	}
	blocked, err := store.IsPairBlocked(ctx, "u1", "u2")
	if err != nil || !blocked {
		t.Fatalf("expected blocked regardless of order, err=%v", err)
	}

	others, err := store.ListPairBlocks(ctx, "u1")
	if err != nil || len(others) != 1 || others[0] != "u2" {
		t.Fatalf("unexpected list %v err=%v", others, err)
	}

	if err := store.RemovePairBlock(ctx, "u1", "u2"); err != nil {
		t.Fatalf("remove block: %v", err)
	}
	blocked, err = store.IsPairBlocked(ctx, "u2", "u1")
	if err != nil || blocked {
		t.Fatalf("expected unblocked, err=%v", err)
	}
}

func TestAuditLogRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()

	base := time.Unix(1000, 0)
	for i, event := range []string{"flood_ban", "pair_created", "pair_declined"} {
		entry := AuditLog{GuildID: "g1", UserID: "u1", Level: "WARN", Event: event, Details: "d", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.AddAuditLog(ctx, entry); err != nil {
			t.Fatalf("add audit log: %v", err)
		}
	}

	logs, err := store.ListAuditLogs(ctx, "g1", base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs since cutoff, got %d", len(logs))
	}
	if logs[0].Event != "pair_created" {
		t.Fatalf("expected chronological order, got %q first", logs[0].Event)
	}
}
