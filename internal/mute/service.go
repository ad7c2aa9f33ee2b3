package mute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lonelybot/internal/metrics"
	"lonelybot/internal/modules/audit"
	"lonelybot/internal/platform"

	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	SweepInterval time.Duration
	// ResetOnExpiry controls whether a mute expiring also clears the user's
	// escalation level. An explicit unmute always clears it.
	ResetOnExpiry bool
}

// Service applies and lifts mutes through the platform role surface and keeps
// the expiry registry the periodic sweep works from.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	api     platform.API
	ladder  *Ladder
	audit   *audit.Logger
	logger  *zap.Logger
	clock   Clock
	guildID string
	records map[string]time.Time
}

func NewService(cfg Config, api platform.API, ladder *Ladder, auditLogger *audit.Logger, logger *zap.Logger, guildID string) *Service {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Service{
		cfg:     cfg,
		api:     api,
		ladder:  ladder,
		audit:   auditLogger,
		logger:  logger,
		clock:   realClock{},
		guildID: guildID,
		records: make(map[string]time.Time),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Escalate applies the next mute on the user's ladder and returns its duration.
func (s *Service) Escalate(ctx context.Context, userID, cause string) (time.Duration, int, error) {
	duration, level := s.ladder.Next(userID)
	if err := s.Apply(ctx, userID, duration, cause); err != nil {
		return 0, level, err
	}
	return duration, level, nil
}

// Apply mutes the user for the given duration. The muted role denies sending
// in every text surface; the registry entry drives the eventual unmute.
func (s *Service) Apply(ctx context.Context, userID string, duration time.Duration, cause string) error {
	roleID, err := s.api.EnsureMutedRole(ctx)
	if err != nil {
		return fmt.Errorf("ensure muted role: %w", err)
	}
	if err := s.api.AddRole(ctx, userID, roleID); err != nil {
		return fmt.Errorf("add muted role: %w", err)
	}

	s.mu.Lock()
	s.records[userID] = s.clock.Now().Add(duration)
	s.mu.Unlock()

	metrics.MutesTotal.WithLabelValues(cause).Inc()
	s.audit.Log(ctx, audit.LevelWarn, s.guildID, userID, "mute_applied", fmt.Sprintf("cause=%s minutes=%d level=%d", cause, int(duration.Minutes()), s.ladder.Level(userID)))
	return nil
}

// Lift removes the mute if a record exists. Lifting an absent mute is a no-op,
// and a failed role removal is logged, not fatal: the record is gone either
// way so the sweep cannot loop on it.
func (s *Service) Lift(ctx context.Context, userID string) {
	s.mu.Lock()
	_, ok := s.records[userID]
	if ok {
		delete(s.records, userID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.removeRole(ctx, userID)
	if s.cfg.ResetOnExpiry {
		s.ladder.Reset(userID)
	}
	s.audit.Log(ctx, audit.LevelInfo, s.guildID, userID, "mute_lifted", "expiry")
}

// Clear is the explicit unmute: it lifts any active mute and always resets the
// escalation level.
func (s *Service) Clear(ctx context.Context, userID string) {
	s.mu.Lock()
	_, ok := s.records[userID]
	delete(s.records, userID)
	s.mu.Unlock()

	s.removeRole(ctx, userID)
	s.ladder.Reset(userID)
	if ok {
		s.audit.Log(ctx, audit.LevelInfo, s.guildID, userID, "mute_lifted", "explicit")
	}
}

func (s *Service) removeRole(ctx context.Context, userID string) {
	roleID, err := s.api.EnsureMutedRole(ctx)
	if err != nil {
		s.logger.Warn("muted role lookup failed", zap.Error(err))
		return
	}
	if err := s.api.RemoveRole(ctx, userID, roleID); err != nil {
		s.logger.Warn("unmute role removal failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *Service) IsMuted(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.records[userID]
	if !ok {
		return false
	}
	return s.clock.Now().Before(until)
}

// Sweep lifts every expired mute. Records may disappear between listing and
// processing; Lift tolerates that.
func (s *Service) Sweep(ctx context.Context) {
	now := s.clock.Now()

	s.mu.Lock()
	var expired []string
	for userID, until := range s.records {
		if !now.Before(until) {
			expired = append(expired, userID)
		}
	}
	s.mu.Unlock()

	for _, userID := range expired {
		s.Lift(ctx, userID)
	}
}

// Run drives the periodic sweep until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
