package moderation

import (
	"context"
	"fmt"
	"time"

	"lonelybot/internal/modules/audit"
	"lonelybot/internal/platform"
	"lonelybot/internal/utils"

	"go.uber.org/zap"
)

// evalFlood bans a sender exceeding the message-rate threshold and purges the
// burst. A ban the bot lacks permission for is reported, not fatal: the purge
// already happened and the window resets either way so the same burst cannot
// re-trigger.
func (f *Filter) evalFlood(ctx context.Context, msg platform.Message, st *userState, _ Settings, now time.Time) (Action, bool) {
	if st.messages.Add(now) <= f.cfg.FloodThreshold {
		return ActionAllow, false
	}
	st.messages.Reset()

	purged, err := f.api.PurgeRecent(ctx, msg.ChannelID, msg.Author.ID, f.cfg.FloodWindow)
	if err != nil {
		f.logger.Warn("flood purge failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
	if err := f.api.Ban(ctx, msg.Author.ID, "message flood"); err != nil {
		f.logger.Error("flood ban failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		f.audit.Log(ctx, audit.LevelCrit, f.guildID, msg.Author.ID, "flood_ban_failed", err.Error())
		return ActionDeleted, true
	}

	f.audit.Log(ctx, audit.LevelCrit, f.guildID, msg.Author.ID, "flood_ban", fmt.Sprintf("purged=%d", purged))
	return ActionBanned, true
}

func (f *Filter) evalStickerFlood(ctx context.Context, msg platform.Message, st *userState, _ Settings, now time.Time) (Action, bool) {
	if len(msg.StickerIDs) == 0 {
		return ActionAllow, false
	}
	if st.stickers.Add(now) <= f.cfg.StickerThreshold {
		return ActionAllow, false
	}
	st.stickers.Reset()

	_ = f.api.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	if _, _, err := f.mutes.Escalate(ctx, msg.Author.ID, "sticker_flood"); err != nil {
		f.logger.Warn("sticker flood mute failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return ActionDeleted, true
	}
	return ActionMuted, true
}

// evalRepeatedSticker counts each sticker separately, so spamming one sticker
// trips faster than mixing several.
func (f *Filter) evalRepeatedSticker(ctx context.Context, msg platform.Message, st *userState, _ Settings, now time.Time) (Action, bool) {
	for _, stickerID := range msg.StickerIDs {
		window, ok := st.perSticker[stickerID]
		if !ok {
			window = utils.NewSlidingWindow(f.cfg.RepeatStickerWindow)
			st.perSticker[stickerID] = window
		}
		if window.Add(now) <= f.cfg.RepeatStickerThreshold {
			continue
		}
		window.Reset()

		_ = f.api.DeleteMessage(ctx, msg.ChannelID, msg.ID)
		if _, _, err := f.mutes.Escalate(ctx, msg.Author.ID, "repeated_sticker"); err != nil {
			f.logger.Warn("repeated sticker mute failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
			return ActionDeleted, true
		}
		return ActionMuted, true
	}
	return ActionAllow, false
}

// evalForeignInvite deletes invite links to other servers and applies a long
// fixed mute outside the ladder. The guild's own invite code passes.
func (f *Filter) evalForeignInvite(ctx context.Context, msg platform.Message, _ *userState, settings Settings, _ time.Time) (Action, bool) {
	codes := utils.InviteCodes(msg.Content)
	if len(codes) == 0 {
		return ActionAllow, false
	}
	foreign := false
	for _, code := range codes {
		if settings.OwnInviteCode == "" || code != settings.OwnInviteCode {
			foreign = true
			break
		}
	}
	if !foreign {
		return ActionAllow, false
	}

	_ = f.api.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	if err := f.mutes.Apply(ctx, msg.Author.ID, f.cfg.InviteMuteDuration, "foreign_invite"); err != nil {
		f.logger.Warn("invite mute failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return ActionDeleted, true
	}
	_ = f.api.SendTemporary(ctx, msg.ChannelID, fmt.Sprintf("<@%s> invite links to other servers are not allowed here.", msg.Author.ID), 10*time.Second)
	return ActionMuted, true
}

// evalLinkBlock enforces the per-guild blanket link toggle. Deletion only; no
// penalty escalation.
func (f *Filter) evalLinkBlock(ctx context.Context, msg platform.Message, _ *userState, settings Settings, _ time.Time) (Action, bool) {
	if !settings.AntilinkEnabled || !utils.ContainsLink(msg.Content) {
		return ActionAllow, false
	}
	_ = f.api.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	_ = f.api.SendTemporary(ctx, msg.ChannelID, fmt.Sprintf("<@%s> links are disabled on this server.", msg.Author.ID), 10*time.Second)
	return ActionDeleted, true
}

func (f *Filter) evalShortFlood(ctx context.Context, msg platform.Message, st *userState, _ Settings, now time.Time) (Action, bool) {
	runes := []rune(msg.Content)
	if len(runes) == 0 || len(runes) >= f.cfg.ShortMessageLength {
		return ActionAllow, false
	}
	if st.shorts.Add(now) <= f.cfg.ShortMessageThreshold {
		return ActionAllow, false
	}
	st.shorts.Reset()

	_ = f.api.DeleteMessage(ctx, msg.ChannelID, msg.ID)
	if _, _, err := f.mutes.Escalate(ctx, msg.Author.ID, "short_flood"); err != nil {
		f.logger.Warn("short flood mute failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return ActionDeleted, true
	}
	return ActionMuted, true
}

// evalDuplicate tracks the sender's current run of identically-normalized
// messages. When the run reaches the threshold inside the window, the whole
// run is deleted and the sender climbs the mute ladder.
func (f *Filter) evalDuplicate(ctx context.Context, msg platform.Message, st *userState, _ Settings, now time.Time) (Action, bool) {
	norm := utils.NormalizeContent(msg.Content)
	if norm == "" {
		return ActionAllow, false
	}

	if norm != st.lastNorm {
		st.lastNorm = norm
		st.dupRun = []stamped{{id: msg.ID, at: now}}
		return ActionAllow, false
	}

	st.dupRun = append(st.dupRun, stamped{id: msg.ID, at: now})
	cutoff := now.Add(-f.cfg.DuplicateWindow)
	idx := 0
	for idx < len(st.dupRun) && !st.dupRun[idx].at.After(cutoff) {
		idx++
	}
	st.dupRun = st.dupRun[idx:]

	if len(st.dupRun) < f.cfg.DuplicateThreshold {
		return ActionAllow, false
	}

	for _, entry := range st.dupRun {
		_ = f.api.DeleteMessage(ctx, msg.ChannelID, entry.id)
	}
	run := len(st.dupRun)
	st.lastNorm = ""
	st.dupRun = nil

	if _, _, err := f.mutes.Escalate(ctx, msg.Author.ID, "duplicate"); err != nil {
		f.logger.Warn("duplicate mute failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
		return ActionDeleted, true
	}
	f.audit.Log(ctx, audit.LevelWarn, f.guildID, msg.Author.ID, "duplicate_run_removed", fmt.Sprintf("count=%d", run))
	return ActionMuted, true
}
