package bot

import (
	"context"
	"fmt"
	"time"

	"lonelybot/internal/analytics"
	"lonelybot/internal/config"
	"lonelybot/internal/cooldown"
	"lonelybot/internal/match"
	"lonelybot/internal/moderation"
	"lonelybot/internal/modules/audit"
	"lonelybot/internal/mute"
	"lonelybot/internal/platform"
	"lonelybot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	session   *discordgo.Session
	api       *platform.Discord
	mutes     *mute.Service
	filter    *moderation.Filter
	pairs     *match.Coordinator
	cancel    context.CancelFunc
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, auditLogger *audit.Logger, analyticsSvc *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsSvc,
		session:   session,
	}

	b.api = platform.NewDiscord(session, logger, cfg.GuildID, cfg.PairCategoryID)

	steps := make([]time.Duration, 0, len(cfg.Mute.StepsMinutes))
	for _, minutes := range cfg.Mute.StepsMinutes {
		steps = append(steps, time.Duration(minutes)*time.Minute)
	}
	b.mutes = mute.NewService(mute.Config{
		SweepInterval: time.Duration(cfg.Mute.SweepSeconds) * time.Second,
		ResetOnExpiry: cfg.Mute.ResetOnExpiry,
	}, b.api, mute.NewLadder(steps), auditLogger, logger, cfg.GuildID)

	modCfg := moderation.Config{
		FloodThreshold:         cfg.Moderation.FloodMessages,
		FloodWindow:            time.Duration(cfg.Moderation.FloodWindowSeconds) * time.Second,
		StickerThreshold:       cfg.Moderation.StickerMessages,
		StickerWindow:          time.Duration(cfg.Moderation.StickerWindowSeconds) * time.Second,
		RepeatStickerThreshold: cfg.Moderation.RepeatStickerCount,
		RepeatStickerWindow:    time.Duration(cfg.Moderation.RepeatStickerWindowSecs) * time.Second,
		ShortMessageLength:     cfg.Moderation.ShortMessageLength,
		ShortMessageThreshold:  cfg.Moderation.ShortMessageCount,
		ShortMessageWindow:     time.Duration(cfg.Moderation.ShortMessageWindowSeconds) * time.Second,
		DuplicateThreshold:     cfg.Moderation.DuplicateCount,
		DuplicateWindow:        time.Duration(cfg.Moderation.DuplicateWindowSeconds) * time.Second,
		InviteMuteDuration:     time.Duration(cfg.Moderation.InviteMuteMinutes) * time.Minute,
	}
	if cfg.ModeratorRoleID != "" {
		modCfg.ExemptRoleIDs = []string{cfg.ModeratorRoleID}
	}
	b.filter = moderation.NewFilter(modCfg, b.api, b.mutes, b.filterSettings, auditLogger, logger, cfg.GuildID)

	b.pairs = match.NewCoordinator(match.Config{
		PairCooldown:    time.Duration(cfg.Pairing.CooldownMinutes) * time.Minute,
		AcceptTimeout:   time.Duration(cfg.Pairing.AcceptTimeoutSeconds) * time.Second,
		ChannelDuration: time.Duration(cfg.Pairing.ChannelMinutes) * time.Minute,
		SafetyTimeout:   time.Duration(cfg.Pairing.SafetyTimeoutMinutes) * time.Minute,
	}, b.api, cooldown.New(), store, auditLogger, logger, cfg.GuildID)

	auditLogger.SetNotifier(b.notifyAudit)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	go b.mutes.Run(ctx)

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.cancel != nil {
		b.cancel()
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID != b.cfg.GuildID {
		return
	}

	ctx := context.Background()
	action := b.filter.Process(ctx, b.toMessage(msg))
	if action != moderation.ActionAllow {
		b.logger.Debug("moderation verdict",
			zap.String("user_id", msg.Author.ID),
			zap.String("action", action.String()))
	}
	_ = session
}

func (b *Bot) onChannelDelete(_ *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.Channel.GuildID != b.cfg.GuildID {
		return
	}
	b.pairs.HandleChannelDeleted(event.Channel.ID)
}

func (b *Bot) toMessage(msg *discordgo.MessageCreate) platform.Message {
	var stickerIDs []string
	for _, sticker := range msg.StickerItems {
		if sticker != nil {
			stickerIDs = append(stickerIDs, sticker.ID)
		}
	}
	author := platform.Member{ID: msg.Author.ID, Username: msg.Author.Username, Bot: msg.Author.Bot}
	if msg.Member != nil {
		author.RoleIDs = msg.Member.Roles
	}
	return platform.Message{
		ID:         msg.ID,
		ChannelID:  msg.ChannelID,
		Content:    msg.Content,
		StickerIDs: stickerIDs,
		Author:     author,
	}
}

func (b *Bot) filterSettings(ctx context.Context) moderation.Settings {
	settings := b.guildSettings(ctx)
	return moderation.Settings{
		AntilinkEnabled: settings.AntilinkEnabled,
		OwnInviteCode:   settings.OwnInviteCode,
	}
}

func (b *Bot) guildSettings(ctx context.Context) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:         b.cfg.GuildID,
		ModLogChannel:   b.cfg.ModLogChannel,
		AntilinkEnabled: b.cfg.Moderation.AntilinkDefault,
		OwnInviteCode:   b.cfg.OwnInviteCode,
	}
	settings, err := b.store.GetGuildSettings(ctx, b.cfg.GuildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

// notifyAudit mirrors WARN and CRIT audit entries into the mod log channel.
func (b *Bot) notifyAudit(ctx context.Context, entry storage.AuditLog) {
	if entry.Level == audit.LevelInfo {
		return
	}
	settings := b.guildSettings(ctx)
	channelID := settings.ModLogChannel
	if channelID == "" {
		return
	}

	userValue := "system"
	if entry.UserID != "" {
		userValue = "<@" + entry.UserID + ">"
	}
	embed := &discordgo.MessageEmbed{
		Title:       entry.Event,
		Description: entry.Details,
		Color:       auditColor(entry.Level),
		Timestamp:   entry.CreatedAt.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "level", Value: entry.Level, Inline: true},
			{Name: "user", Value: userValue, Inline: true},
		},
	}
	_, _ = b.session.ChannelMessageSendEmbed(channelID, embed)
}

func auditColor(level string) int {
	switch level {
	case audit.LevelCrit:
		return 0xEF4444
	case audit.LevelWarn:
		return 0xF59E0B
	default:
		return 0x6B7280
	}
}

func (b *Bot) isModerator(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if b.cfg.ModeratorRoleID == "" {
		return false
	}
	for _, roleID := range member.Roles {
		if roleID == b.cfg.ModeratorRoleID {
			return true
		}
	}
	return false
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}

func (b *Bot) ack(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func formatReport(report analytics.Report) string {
	return fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d",
		report.Total, report.ByLevel[audit.LevelInfo], report.ByLevel[audit.LevelWarn], report.ByLevel[audit.LevelCrit])
}
