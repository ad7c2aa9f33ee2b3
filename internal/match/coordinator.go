package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"lonelybot/internal/cooldown"
	"lonelybot/internal/metrics"
	"lonelybot/internal/modules/audit"
	"lonelybot/internal/platform"

	"go.uber.org/zap"
)

// Control IDs the interaction layer routes back into the coordinator.
const (
	ControlAccept  = "pair_accept"
	ControlDecline = "pair_decline"
	ControlClose   = "pair_close"
)

const (
	colorPending = 0x9B59B6
	colorStarted = 0x2ECC71
	colorRefused = 0x992D22
	colorExpired = 0x95A5A6
)

var (
	ErrAlreadyActive = errors.New("user already in an active conversation")
	ErrAlreadyQueued = errors.New("user already queued")
)

var channelNameTemplates = []string{
	"hearts-%s-%s",
	"spark-%s-%s",
	"blind-date-%s-%s",
	"rendezvous-%s-%s",
}

var channelNameClean = regexp.MustCompile(`[^a-zA-Z0-9-]`)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Blocklist is the persisted do-not-pair relation consulted alongside the
// in-memory cooldown table. Lookup errors are treated as "not blocked".
type Blocklist interface {
	IsPairBlocked(ctx context.Context, a, b string) (bool, error)
}

type Config struct {
	PairCooldown    time.Duration
	AcceptTimeout   time.Duration
	ChannelDuration time.Duration
	SafetyTimeout   time.Duration
	// CleanupDelay is the short pause between the final prompt edit and the
	// channel deletion, so the outcome is visible.
	CleanupDelay time.Duration
}

// Coordinator owns all matchmaking shared state: the waiting queue, the pair
// cooldown table, the set of users in a live session, and the session
// registry. Every mutation goes through its methods; timer callbacks carry
// only a channel ID and re-check current state when they fire.
type Coordinator struct {
	mu        sync.Mutex
	cfg       Config
	api       platform.API
	audit     *audit.Logger
	logger    *zap.Logger
	clock     Clock
	queue     *Queue
	cooldowns *cooldown.Table
	blocklist Blocklist
	guildID   string
	active    map[string]bool
	sessions  map[string]*Session
}

func NewCoordinator(cfg Config, api platform.API, cooldowns *cooldown.Table, blocklist Blocklist, auditLogger *audit.Logger, logger *zap.Logger, guildID string) *Coordinator {
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = time.Second
	}
	return &Coordinator{
		cfg:       cfg,
		api:       api,
		audit:     auditLogger,
		logger:    logger,
		clock:     realClock{},
		queue:     NewQueue(),
		cooldowns: cooldowns,
		blocklist: blocklist,
		guildID:   guildID,
		active:    make(map[string]bool),
		sessions:  make(map[string]*Session),
	}
}

func (c *Coordinator) WithClock(clock Clock) {
	c.clock = clock
}

// Join enqueues the user and immediately attempts pairing.
func (c *Coordinator) Join(ctx context.Context, userID string, profile Profile) error {
	c.mu.Lock()
	if c.active[userID] {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	if !c.queue.Add(userID, profile, c.clock.Now()) {
		c.mu.Unlock()
		return ErrAlreadyQueued
	}
	c.mu.Unlock()

	metrics.QueueDepth.Set(float64(c.queue.Len()))
	c.tryPair(ctx)
	return nil
}

// Leave removes the user from the queue. Leaving while not queued is a no-op.
func (c *Coordinator) Leave(userID string) bool {
	removed := c.queue.Remove(userID)
	metrics.QueueDepth.Set(float64(c.queue.Len()))
	return removed
}

func (c *Coordinator) IsQueued(userID string) bool {
	return c.queue.Contains(userID)
}

func (c *Coordinator) IsActive(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[userID]
}

func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// tryPair drains the queue of pairable couples. Selection is first-fit in
// insertion order; both users are flagged active at selection time so a second
// scan cannot pick them up while their channel is being provisioned.
func (c *Coordinator) tryPair(ctx context.Context) {
	for {
		c.mu.Lock()
		a, b, found := c.queue.FindPair(func(a, b Entry) bool {
			if c.active[a.UserID] || c.active[b.UserID] {
				return false
			}
			if !Compatible(a.Profile, b.Profile) {
				return false
			}
			if blocked, err := c.blocklist.IsPairBlocked(ctx, a.UserID, b.UserID); err == nil && blocked {
				return false
			}
			return c.cooldowns.CanPair(a.UserID, b.UserID)
		})
		if !found {
			c.mu.Unlock()
			metrics.QueueDepth.Set(float64(c.queue.Len()))
			return
		}
		c.active[a.UserID] = true
		c.active[b.UserID] = true
		c.mu.Unlock()

		if !c.provision(ctx, a, b) {
			return
		}
	}
}

// provision creates the pair channel and posts the handshake prompt. The
// return value tells tryPair whether to keep scanning: false after an API
// failure, since the pair went back into the queue and retrying immediately
// would loop on the same failure.
func (c *Coordinator) provision(ctx context.Context, a, b Entry) bool {
	memberA, okA := c.api.Member(ctx, a.UserID)
	memberB, okB := c.api.Member(ctx, b.UserID)
	if !okA || !okB {
		// One of them left the roster entirely: drop both entries and keep
		// scanning. They are intentionally not re-enqueued.
		c.release(a.UserID, b.UserID)
		return true
	}

	name := c.channelName(memberA.Username, memberB.Username)
	channelID, err := c.api.CreatePairChannel(ctx, name, []string{a.UserID, b.UserID})
	if err != nil {
		c.logger.Warn("pair channel creation failed", zap.Error(err))
		c.unwind(a, b)
		return false
	}

	session := &Session{
		ChannelID: channelID,
		UserA:     a.UserID,
		UserB:     b.UserID,
		State:     StateCreating,
		Accepted:  make(map[string]bool),
		CreatedAt: c.clock.Now(),
	}
	c.mu.Lock()
	c.sessions[channelID] = session
	c.mu.Unlock()

	messageID, err := c.api.SendPrompt(ctx, channelID, c.acceptPrompt(session))
	if err != nil {
		c.mu.Lock()
		delete(c.sessions, channelID)
		c.mu.Unlock()
		_ = c.api.DeleteChannel(ctx, channelID)
		c.unwind(a, b)
		return false
	}

	c.mu.Lock()
	session.MessageID = messageID
	session.State = StateAwaitingAccept
	c.mu.Unlock()

	metrics.ActiveSessions.Set(float64(c.SessionCount()))
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, "", "pair_created", fmt.Sprintf("channel=%s a=%s b=%s", channelID, a.UserID, b.UserID))

	c.clock.AfterFunc(c.cfg.AcceptTimeout, func() { c.onAcceptTimeout(channelID) })
	c.clock.AfterFunc(c.cfg.SafetyTimeout, func() { c.onSafetyTimeout(channelID) })
	return true
}

// unwind returns a failed pairing attempt to the queue.
func (c *Coordinator) unwind(a, b Entry) {
	c.mu.Lock()
	delete(c.active, a.UserID)
	delete(c.active, b.UserID)
	c.mu.Unlock()
	now := c.clock.Now()
	c.queue.Add(a.UserID, a.Profile, now)
	c.queue.Add(b.UserID, b.Profile, now)
	metrics.QueueDepth.Set(float64(c.queue.Len()))
}

func (c *Coordinator) release(userIDs ...string) {
	c.mu.Lock()
	for _, userID := range userIDs {
		delete(c.active, userID)
	}
	c.mu.Unlock()
}

// HandleAccept records a participant's accept and opens the conversation once
// both have accepted.
func (c *Coordinator) HandleAccept(ctx context.Context, channelID, actorID string) ActionResult {
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok {
		c.mu.Unlock()
		return ResultGone
	}
	if !session.isParticipant(actorID) {
		c.mu.Unlock()
		return ResultRejected
	}
	if session.State != StateAwaitingAccept {
		c.mu.Unlock()
		return ResultIgnored
	}
	session.Accepted[actorID] = true
	started := session.bothAccepted()
	if started {
		session.State = StateActive
	}
	messageID := session.MessageID
	userA, userB := session.UserA, session.UserB
	pending := c.acceptPrompt(session)
	c.mu.Unlock()

	if !started {
		_ = c.api.EditPrompt(ctx, channelID, messageID, pending)
		return ResultRecorded
	}

	_ = c.api.SetSendPermission(ctx, channelID, userA, true)
	_ = c.api.SetSendPermission(ctx, channelID, userB, true)
	_ = c.api.EditPrompt(ctx, channelID, messageID, c.startedPrompt(userA, userB))

	metrics.PairOutcomesTotal.WithLabelValues("accepted").Inc()
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, "", "pair_started", "channel="+channelID)
	c.clock.AfterFunc(c.cfg.ChannelDuration, func() { c.onDurationElapsed(channelID) })
	return ResultStarted
}

// HandleDecline refuses the conversation, records the pair cooldown, and
// tears the channel down after a short visible delay.
func (c *Coordinator) HandleDecline(ctx context.Context, channelID, actorID string) ActionResult {
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok {
		c.mu.Unlock()
		return ResultGone
	}
	if !session.isParticipant(actorID) {
		c.mu.Unlock()
		return ResultRejected
	}
	if session.State != StateAwaitingAccept {
		c.mu.Unlock()
		return ResultIgnored
	}
	session.State = StateDeclined
	messageID := session.MessageID
	userA, userB := session.UserA, session.UserB
	c.mu.Unlock()

	c.cooldowns.Set(userA, userB, c.cfg.PairCooldown)
	_ = c.api.EditPrompt(ctx, channelID, messageID, platform.Prompt{
		Title: "conversation refused",
		Body:  fmt.Sprintf("<@%s> declined. The channel will close; you can be matched again in %d minutes.", actorID, int(c.cfg.PairCooldown.Minutes())),
		Color: colorRefused,
	})

	metrics.PairOutcomesTotal.WithLabelValues("declined").Inc()
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, actorID, "pair_declined", "channel="+channelID)
	c.scheduleDestroy(channelID)
	return ResultEnded
}

// HandleClose ends an active conversation early.
func (c *Coordinator) HandleClose(ctx context.Context, channelID, actorID string) ActionResult {
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok {
		c.mu.Unlock()
		return ResultGone
	}
	if !session.isParticipant(actorID) {
		c.mu.Unlock()
		return ResultRejected
	}
	if session.State != StateActive {
		c.mu.Unlock()
		return ResultIgnored
	}
	session.State = StateClosed
	c.mu.Unlock()

	metrics.PairOutcomesTotal.WithLabelValues("closed").Inc()
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, actorID, "pair_closed", "channel="+channelID)
	c.destroy(channelID)
	return ResultEnded
}

// HandleChannelDeleted reacts to the channel disappearing out-of-band: the
// registry entry is dropped and both users are released without touching the
// (already gone) channel.
func (c *Coordinator) HandleChannelDeleted(channelID string) {
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, channelID)
	delete(c.active, session.UserA)
	delete(c.active, session.UserB)
	c.mu.Unlock()

	metrics.ActiveSessions.Set(float64(c.SessionCount()))
	metrics.PairOutcomesTotal.WithLabelValues("external_delete").Inc()
	c.audit.Log(context.Background(), audit.LevelWarn, c.guildID, "", "pair_channel_removed", "channel="+channelID)
}

// onAcceptTimeout fires the short handshake timer. Equivalent to a decline if
// the session is still waiting with fewer than two accepts.
func (c *Coordinator) onAcceptTimeout(channelID string) {
	ctx := context.Background()
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok || session.State != StateAwaitingAccept || session.bothAccepted() {
		c.mu.Unlock()
		return
	}
	session.State = StateAcceptTimeout
	messageID := session.MessageID
	userA, userB := session.UserA, session.UserB
	c.mu.Unlock()

	c.cooldowns.Set(userA, userB, c.cfg.PairCooldown)
	_ = c.api.EditPrompt(ctx, channelID, messageID, platform.Prompt{
		Title: "no answer",
		Body:  "Both sides did not accept in time. The channel will close.",
		Color: colorExpired,
	})

	metrics.PairOutcomesTotal.WithLabelValues("accept_timeout").Inc()
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, "", "pair_accept_timeout", "channel="+channelID)
	c.scheduleDestroy(channelID)
}

// onSafetyTimeout is the long backstop for sessions that never went active.
// It should rarely fire: the accept timeout covers the same case much sooner.
func (c *Coordinator) onSafetyTimeout(channelID string) {
	ctx := context.Background()
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok || session.State == StateActive || session.State == StateClosed {
		c.mu.Unlock()
		return
	}
	if session.State != StateAwaitingAccept && session.State != StateCreating {
		c.mu.Unlock()
		return
	}
	session.State = StateSafetyTimeout
	messageID := session.MessageID
	c.mu.Unlock()

	_ = c.api.EditPrompt(ctx, channelID, messageID, platform.Prompt{
		Title: "channel closed (inactivity)",
		Body:  "Nobody accepted the conversation. The channel will close.",
		Color: colorExpired,
	})

	metrics.PairOutcomesTotal.WithLabelValues("safety_timeout").Inc()
	c.audit.Log(ctx, audit.LevelWarn, c.guildID, "", "pair_safety_timeout", "channel="+channelID)
	c.scheduleDestroy(channelID)
}

// onDurationElapsed closes a conversation that used up its time budget.
func (c *Coordinator) onDurationElapsed(channelID string) {
	ctx := context.Background()
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok || session.State != StateActive {
		c.mu.Unlock()
		return
	}
	session.State = StateClosed
	messageID := session.MessageID
	c.mu.Unlock()

	_ = c.api.EditPrompt(ctx, channelID, messageID, platform.Prompt{
		Title: "time is up",
		Body:  fmt.Sprintf("Your %d minutes are over. The channel will close.", int(c.cfg.ChannelDuration.Minutes())),
		Color: colorExpired,
	})

	metrics.PairOutcomesTotal.WithLabelValues("expired").Inc()
	c.audit.Log(ctx, audit.LevelInfo, c.guildID, "", "pair_expired", "channel="+channelID)
	c.scheduleDestroy(channelID)
}

func (c *Coordinator) scheduleDestroy(channelID string) {
	c.clock.AfterFunc(c.cfg.CleanupDelay, func() { c.destroy(channelID) })
}

// destroy removes the session, releases both users, and deletes the channel.
// Destroying an already destroyed session is a no-op, so the deletion event
// this triggers cannot double-release anyone.
func (c *Coordinator) destroy(channelID string) {
	c.mu.Lock()
	session, ok := c.sessions[channelID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, channelID)
	delete(c.active, session.UserA)
	delete(c.active, session.UserB)
	c.mu.Unlock()

	metrics.ActiveSessions.Set(float64(c.SessionCount()))
	_ = c.api.DeleteChannel(context.Background(), channelID)
}

func (c *Coordinator) acceptPrompt(session *Session) platform.Prompt {
	mark := func(userID string) string {
		if session.Accepted[userID] {
			return "✅"
		}
		return "❌"
	}
	return platform.Prompt{
		Title: "confirmation",
		Body: fmt.Sprintf("<@%s> %s\n<@%s> %s\n\nNobody can write here until both accept.",
			session.UserA, mark(session.UserA), session.UserB, mark(session.UserB)),
		Color: colorPending,
		Controls: []platform.Control{
			{ID: ControlAccept, Label: "accept 💞", Style: platform.StyleSuccess},
			{ID: ControlDecline, Label: "decline 💔", Style: platform.StyleDanger},
		},
	}
}

func (c *Coordinator) startedPrompt(userA, userB string) platform.Prompt {
	return platform.Prompt{
		Title: "conversation started",
		Body: fmt.Sprintf("<@%s> and <@%s>: the channel is open for %d minutes. Press the button to end it early.",
			userA, userB, int(c.cfg.ChannelDuration.Minutes())),
		Color: colorStarted,
		Controls: []platform.Control{
			{ID: ControlClose, Label: "end now", Style: platform.StyleDanger},
		},
	}
}

func (c *Coordinator) channelName(nameA, nameB string) string {
	template := channelNameTemplates[rand.Intn(len(channelNameTemplates))]
	return fmt.Sprintf(template, sanitizeName(nameA), sanitizeName(nameB))
}

func sanitizeName(name string) string {
	clean := channelNameClean.ReplaceAllString(name, "")
	if len(clean) > 8 {
		clean = clean[:8]
	}
	clean = strings.ToLower(clean)
	if clean == "" {
		clean = "u"
	}
	return clean
}
