package moderation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"lonelybot/internal/modules/audit"
	"lonelybot/internal/mute"
	"lonelybot/internal/platform"
	"lonelybot/internal/storage"

	"go.uber.org/zap"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type harness struct {
	filter   *Filter
	mutes    *mute.Service
	api      *platform.Fake
	clock    *fakeClock
	settings Settings
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	api := platform.NewFake()
	clock := &fakeClock{now: time.Unix(0, 0)}
	auditLogger := audit.NewLogger(store, zap.NewNop())

	mutes := mute.NewService(mute.Config{}, api, mute.NewLadder(nil), auditLogger, zap.NewNop(), "g1")
	mutes.WithClock(clock)

	h := &harness{mutes: mutes, api: api, clock: clock}
	cfg := DefaultConfig()
	cfg.ExemptRoleIDs = []string{"mod-role"}
	h.filter = NewFilter(cfg, api, mutes, func(context.Context) Settings { return h.settings }, auditLogger, zap.NewNop(), "g1")
	h.filter.WithClock(clock)
	return h
}

func message(userID, content string) platform.Message {
	return platform.Message{
		ID:        fmt.Sprintf("m-%s-%d", userID, time.Now().UnixNano()),
		ChannelID: "c1",
		Content:   content,
		Author:    platform.Member{ID: userID, Username: userID},
	}
}

func TestFloodBansAndPurges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// 11 distinct messages inside 9 seconds against a 10-per-10s threshold.
	for i := 0; i < 10; i++ {
		msg := message("u1", fmt.Sprintf("message number %d", i))
		if action := h.filter.Process(ctx, msg); action != ActionAllow {
			t.Fatalf("message %d: expected allow, got %v", i, action)
		}
		h.clock.now = h.clock.now.Add(900 * time.Millisecond)
	}
	if action := h.filter.Process(ctx, message("u1", "message number 10")); action != ActionBanned {
		t.Fatalf("expected ban on 11th message")
	}
	if _, ok := h.api.Banned["u1"]; !ok {
		t.Fatalf("expected u1 banned")
	}
	if h.api.Purged["c1|u1"] == 0 {
		t.Fatalf("expected burst purged")
	}
}

func TestFloodWindowResets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Spacing messages past the window keeps the count at one.
	for i := 0; i < 30; i++ {
		msg := message("u1", fmt.Sprintf("slow message %d", i))
		if action := h.filter.Process(ctx, msg); action != ActionAllow {
			t.Fatalf("spaced message %d: expected allow, got %v", i, action)
		}
		h.clock.now = h.clock.now.Add(11 * time.Second)
	}
}

func TestFloodBanFailureDegradesToDelete(t *testing.T) {
	h := newHarness(t)
	h.api.FailBan = true
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		h.filter.Process(ctx, message("u1", fmt.Sprintf("burst %d", i)))
	}
	if action := h.filter.Process(ctx, message("u1", "burst 10")); action != ActionDeleted {
		t.Fatalf("expected deleted verdict when the ban is refused")
	}
	if _, ok := h.api.Banned["u1"]; ok {
		t.Fatalf("u1 must not be banned")
	}
	// The window was reset, so the next message passes.
	if action := h.filter.Process(ctx, message("u1", "hello again")); action != ActionAllow {
		t.Fatalf("expected allow after reset")
	}
}

func TestDuplicateRunDeletedAndMuted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var last Action
	for i := 0; i < 5; i++ {
		msg := message("u1", "Buy my, mixtape!!")
		last = h.filter.Process(ctx, msg)
		h.clock.now = h.clock.now.Add(2 * time.Second)
	}
	if last != ActionMuted {
		t.Fatalf("expected mute on 5th duplicate, got %v", last)
	}
	if len(h.api.DeletedMsgs) != 5 {
		t.Fatalf("expected the whole run deleted, got %d", len(h.api.DeletedMsgs))
	}
	if !h.mutes.IsMuted("u1") {
		t.Fatalf("expected u1 muted")
	}

	// The counter reset: the same content starts a fresh run.
	if action := h.filter.Process(ctx, message("u1", "Buy my, mixtape!!")); action != ActionAllow {
		t.Fatalf("expected allow after counter reset, got %v", action)
	}
}

func TestDuplicateNormalization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Case and punctuation variants normalize to the same run.
	variants := []string{"Hello World", "hello   world!", "HELLO, world", "hello world?", "hello world"}
	var last Action
	for _, content := range variants {
		last = h.filter.Process(ctx, message("u1", content))
		h.clock.now = h.clock.now.Add(time.Second)
	}
	if last != ActionMuted {
		t.Fatalf("expected normalized variants to count as duplicates, got %v", last)
	}
}

func TestForeignInviteOverridesLinkBlock(t *testing.T) {
	h := newHarness(t)
	h.settings = Settings{AntilinkEnabled: true, OwnInviteCode: "ourserver"}
	ctx := context.Background()

	// A foreign invite takes the invite path (long mute), not the blanket
	// link path.
	if action := h.filter.Process(ctx, message("u1", "join https://discord.gg/elsewhere now")); action != ActionMuted {
		t.Fatalf("expected mute for foreign invite, got %v", action)
	}
	if !h.mutes.IsMuted("u1") {
		t.Fatalf("expected u1 muted")
	}

	// The guild's own invite passes the invite rule but still trips the
	// blanket link toggle.
	if action := h.filter.Process(ctx, message("u2", "join https://discord.gg/ourserver now")); action != ActionDeleted {
		t.Fatalf("expected delete via link block, got %v", action)
	}
	if h.mutes.IsMuted("u2") {
		t.Fatalf("own invite must not mute")
	}
}

func TestLinkBlockToggle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if action := h.filter.Process(ctx, message("u1", "see https://example.com/page")); action != ActionAllow {
		t.Fatalf("links allowed while toggle is off, got %v", action)
	}
	h.settings.AntilinkEnabled = true
	if action := h.filter.Process(ctx, message("u1", "see https://example.com/other")); action != ActionDeleted {
		t.Fatalf("expected delete with toggle on, got %v", action)
	}
	if h.mutes.IsMuted("u1") {
		t.Fatalf("link block must not mute")
	}
}

func TestStickerFloodMutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var last Action
	for i := 0; i < 5; i++ {
		msg := message("u1", "")
		msg.StickerIDs = []string{fmt.Sprintf("s%d", i)}
		last = h.filter.Process(ctx, msg)
		h.clock.now = h.clock.now.Add(time.Second)
	}
	if last != ActionMuted {
		t.Fatalf("expected mute on sticker flood, got %v", last)
	}
}

func TestRepeatedStickerMutes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Spaced past the general sticker window but inside the per-sticker one.
	var last Action
	for i := 0; i < 4; i++ {
		msg := message("u1", "")
		msg.StickerIDs = []string{"same-sticker"}
		last = h.filter.Process(ctx, msg)
		h.clock.now = h.clock.now.Add(8 * time.Second)
	}
	if last != ActionMuted {
		t.Fatalf("expected mute on repeated sticker, got %v", last)
	}
	if len(h.api.DeletedMsgs) != 1 {
		t.Fatalf("expected offending message deleted")
	}
}

func TestShortMessageFlood(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var last Action
	for i := 0; i < 7; i++ {
		last = h.filter.Process(ctx, message("u1", fmt.Sprintf("y%d", i)))
		h.clock.now = h.clock.now.Add(time.Second)
	}
	if last != ActionMuted {
		t.Fatalf("expected mute on short-message flood, got %v", last)
	}
}

func TestExemptSendersBypassRules(t *testing.T) {
	h := newHarness(t)
	h.settings.AntilinkEnabled = true
	ctx := context.Background()

	mod := message("mod", "https://discord.gg/elsewhere")
	mod.Author.RoleIDs = []string{"mod-role"}
	for i := 0; i < 20; i++ {
		if action := h.filter.Process(ctx, mod); action != ActionAllow {
			t.Fatalf("exempt sender must always pass, got %v", action)
		}
	}

	bot := message("bot", "https://discord.gg/elsewhere")
	bot.Author.Bot = true
	if action := h.filter.Process(ctx, bot); action != ActionAllow {
		t.Fatalf("bot sender must always pass, got %v", action)
	}
}
