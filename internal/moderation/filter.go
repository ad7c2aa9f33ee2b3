package moderation

import (
	"context"
	"sync"
	"time"

	"lonelybot/internal/metrics"
	"lonelybot/internal/modules/audit"
	"lonelybot/internal/mute"
	"lonelybot/internal/platform"
	"lonelybot/internal/utils"

	"go.uber.org/zap"
)

// Action is the filter's verdict for one message.
type Action int

const (
	ActionAllow Action = iota
	ActionDeleted
	ActionMuted
	ActionBanned
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionDeleted:
		return "deleted"
	case ActionMuted:
		return "muted"
	case ActionBanned:
		return "banned"
	default:
		return "unknown"
	}
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Settings is the per-guild toggle state consulted on every message.
type Settings struct {
	AntilinkEnabled bool
	OwnInviteCode   string
}

// SettingsFunc resolves current settings. The bot layer backs this with the
// persisted guild settings.
type SettingsFunc func(ctx context.Context) Settings

type Config struct {
	FloodThreshold int
	FloodWindow    time.Duration

	StickerThreshold int
	StickerWindow    time.Duration

	RepeatStickerThreshold int
	RepeatStickerWindow    time.Duration

	// ShortMessageLength is the rune count below which a message counts toward
	// the short-message flood.
	ShortMessageLength    int
	ShortMessageThreshold int
	ShortMessageWindow    time.Duration

	DuplicateThreshold int
	DuplicateWindow    time.Duration

	// InviteMuteDuration is the fixed mute for posting a foreign invite link.
	// It bypasses the escalation ladder.
	InviteMuteDuration time.Duration

	ExemptRoleIDs []string
}

func DefaultConfig() Config {
	return Config{
		FloodThreshold:         10,
		FloodWindow:            10 * time.Second,
		StickerThreshold:       4,
		StickerWindow:          10 * time.Second,
		RepeatStickerThreshold: 3,
		RepeatStickerWindow:    30 * time.Second,
		ShortMessageLength:     4,
		ShortMessageThreshold:  6,
		ShortMessageWindow:     10 * time.Second,
		DuplicateThreshold:     5,
		DuplicateWindow:        15 * time.Second,
		InviteMuteDuration:     time.Hour,
	}
}

// stamped is one recorded duplicate-run message.
type stamped struct {
	id string
	at time.Time
}

// userState carries a sender's rolling counters. States are created lazily on
// first message and live for the process lifetime.
type userState struct {
	messages *utils.SlidingWindow
	stickers *utils.SlidingWindow
	shorts   *utils.SlidingWindow

	// perSticker tracks repeats of one specific sticker.
	perSticker map[string]*utils.SlidingWindow

	// Duplicate run: consecutive messages whose normalized content matches
	// lastNorm, kept so the whole run can be deleted when it trips.
	lastNorm string
	dupRun   []stamped
}

// Filter is the message-intake pipeline. Rules run in fixed precedence order
// and the first rule that fires fully short-circuits the rest for that
// message.
type Filter struct {
	mu       sync.Mutex
	cfg      Config
	api      platform.API
	mutes    *mute.Service
	audit    *audit.Logger
	logger   *zap.Logger
	clock    Clock
	settings SettingsFunc
	guildID  string
	users    map[string]*userState
	rules    []rule
}

type rule struct {
	name string
	eval func(ctx context.Context, msg platform.Message, st *userState, settings Settings, now time.Time) (Action, bool)
}

func NewFilter(cfg Config, api platform.API, mutes *mute.Service, settings SettingsFunc, auditLogger *audit.Logger, logger *zap.Logger, guildID string) *Filter {
	f := &Filter{
		cfg:      cfg,
		api:      api,
		mutes:    mutes,
		audit:    auditLogger,
		logger:   logger,
		clock:    realClock{},
		settings: settings,
		guildID:  guildID,
		users:    make(map[string]*userState),
	}
	f.rules = []rule{
		{name: "flood", eval: f.evalFlood},
		{name: "sticker_flood", eval: f.evalStickerFlood},
		{name: "repeated_sticker", eval: f.evalRepeatedSticker},
		{name: "foreign_invite", eval: f.evalForeignInvite},
		{name: "link_block", eval: f.evalLinkBlock},
		{name: "short_flood", eval: f.evalShortFlood},
		{name: "duplicate", eval: f.evalDuplicate},
	}
	return f
}

func (f *Filter) WithClock(clock Clock) {
	f.clock = clock
}

// Process runs the message through the rule pipeline and returns the verdict.
// Bots and exempt senders bypass every rule.
func (f *Filter) Process(ctx context.Context, msg platform.Message) Action {
	if msg.Author.Bot || f.exempt(msg.Author) {
		return ActionAllow
	}

	st := f.state(msg.Author.ID)
	now := f.clock.Now()
	settings := f.settings(ctx)

	for _, r := range f.rules {
		action, hit := r.eval(ctx, msg, st, settings, now)
		if !hit {
			continue
		}
		metrics.RuleHitsTotal.WithLabelValues(r.name).Inc()
		metrics.MessagesTotal.WithLabelValues(action.String()).Inc()
		return action
	}

	metrics.MessagesTotal.WithLabelValues(ActionAllow.String()).Inc()
	return ActionAllow
}

func (f *Filter) exempt(author platform.Member) bool {
	for _, roleID := range author.RoleIDs {
		for _, exemptID := range f.cfg.ExemptRoleIDs {
			if roleID == exemptID {
				return true
			}
		}
	}
	return false
}

func (f *Filter) state(userID string) *userState {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.users[userID]
	if !ok {
		st = &userState{
			messages:   utils.NewSlidingWindow(f.cfg.FloodWindow),
			stickers:   utils.NewSlidingWindow(f.cfg.StickerWindow),
			shorts:     utils.NewSlidingWindow(f.cfg.ShortMessageWindow),
			perSticker: make(map[string]*utils.SlidingWindow),
		}
		f.users[userID] = st
	}
	return st
}
