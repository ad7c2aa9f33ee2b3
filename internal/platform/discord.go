package platform

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const mutedRoleName = "muted"

// Discord implements API on top of a discordgo session. The adapter is bound
// to a single guild.
type Discord struct {
	session    *discordgo.Session
	logger     *zap.Logger
	guildID    string
	categoryID string

	mu          sync.Mutex
	mutedRoleID string
}

func NewDiscord(session *discordgo.Session, logger *zap.Logger, guildID, categoryID string) *Discord {
	return &Discord{
		session:    session,
		logger:     logger,
		guildID:    guildID,
		categoryID: categoryID,
	}
}

// CreatePairChannel provisions a text channel only the two members and the
// bot can see. Members start view-only; sending opens after the handshake.
func (d *Discord) CreatePairChannel(_ context.Context, name string, memberIDs []string) (string, error) {
	overwrites := []*discordgo.PermissionOverwrite{
		{
			ID:   d.guildID, // @everyone
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
	}
	for _, memberID := range memberIDs {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    memberID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory,
			Deny:  discordgo.PermissionSendMessages,
		})
	}
	if d.session.State != nil && d.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    d.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionManageChannels,
		})
	}

	channel, err := d.session.GuildChannelCreateComplex(d.guildID, discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             d.categoryID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (d *Discord) DeleteChannel(_ context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID)
	return err
}

func (d *Discord) SetSendPermission(_ context.Context, channelID, memberID string, allow bool) error {
	allowBits := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	denyBits := int64(0)
	if allow {
		allowBits |= discordgo.PermissionSendMessages
	} else {
		denyBits = discordgo.PermissionSendMessages
	}
	return d.session.ChannelPermissionSet(channelID, memberID, discordgo.PermissionOverwriteTypeMember, allowBits, denyBits)
}

func (d *Discord) SendPrompt(_ context.Context, channelID string, prompt Prompt) (string, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{promptEmbed(prompt)},
		Components: promptComponents(prompt),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) EditPrompt(_ context.Context, channelID, messageID string, prompt Prompt) error {
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     []*discordgo.MessageEmbed{promptEmbed(prompt)},
		Components: promptComponents(prompt),
	})
	return err
}

func (d *Discord) DeleteMessage(_ context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID)
}

// SendTemporary posts a notice and removes it after ttl.
func (d *Discord) SendTemporary(_ context.Context, channelID, content string, ttl time.Duration) error {
	msg, err := d.session.ChannelMessageSend(channelID, content)
	if err != nil {
		return err
	}
	time.AfterFunc(ttl, func() {
		if err := d.session.ChannelMessageDelete(channelID, msg.ID); err != nil {
			d.logger.Debug("temporary message cleanup failed", zap.Error(err))
		}
	})
	return nil
}

// PurgeRecent bulk-deletes the member's messages sent within the trailing
// duration, scanning at most the latest 100 messages of the channel.
func (d *Discord) PurgeRecent(_ context.Context, channelID, memberID string, within time.Duration) (int, error) {
	messages, err := d.session.ChannelMessages(channelID, 100, "", "", "")
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-within)

	var ids []string
	for _, msg := range messages {
		if msg.Author == nil || msg.Author.ID != memberID {
			continue
		}
		if msg.Timestamp.Before(cutoff) {
			continue
		}
		ids = append(ids, msg.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if len(ids) == 1 {
		return 1, d.session.ChannelMessageDelete(channelID, ids[0])
	}
	return len(ids), d.session.ChannelMessagesBulkDelete(channelID, ids)
}

func (d *Discord) Member(_ context.Context, memberID string) (Member, bool) {
	member, err := d.session.State.Member(d.guildID, memberID)
	if err != nil || member == nil {
		member, err = d.session.GuildMember(d.guildID, memberID)
		if err != nil || member == nil {
			return Member{}, false
		}
	}
	result := Member{ID: memberID, RoleIDs: member.Roles}
	if member.User != nil {
		result.Username = member.User.Username
		result.Bot = member.User.Bot
	}
	return result, true
}

// EnsureMutedRole finds or creates the muted role. On first creation every
// text and voice channel gets an overwrite denying send and speak for it.
func (d *Discord) EnsureMutedRole(_ context.Context) (string, error) {
	d.mu.Lock()
	if d.mutedRoleID != "" {
		id := d.mutedRoleID
		d.mu.Unlock()
		return id, nil
	}
	d.mu.Unlock()

	roles, err := d.session.GuildRoles(d.guildID)
	if err != nil {
		return "", err
	}
	for _, role := range roles {
		if role.Name == mutedRoleName {
			d.mu.Lock()
			d.mutedRoleID = role.ID
			d.mu.Unlock()
			return role.ID, nil
		}
	}

	perms := int64(0)
	role, err := d.session.GuildRoleCreate(d.guildID, &discordgo.RoleParams{
		Name:        mutedRoleName,
		Permissions: &perms,
	})
	if err != nil {
		return "", err
	}

	channels, err := d.session.GuildChannels(d.guildID)
	if err == nil {
		for _, channel := range channels {
			if channel == nil {
				continue
			}
			deny := int64(discordgo.PermissionSendMessages | discordgo.PermissionVoiceSpeak | discordgo.PermissionAddReactions)
			if err := d.session.ChannelPermissionSet(channel.ID, role.ID, discordgo.PermissionOverwriteTypeRole, 0, deny); err != nil {
				d.logger.Warn("muted overwrite failed", zap.String("channel_id", channel.ID), zap.Error(err))
			}
		}
	}

	d.mu.Lock()
	d.mutedRoleID = role.ID
	d.mu.Unlock()
	return role.ID, nil
}

func (d *Discord) AddRole(_ context.Context, memberID, roleID string) error {
	return d.session.GuildMemberRoleAdd(d.guildID, memberID, roleID)
}

func (d *Discord) RemoveRole(_ context.Context, memberID, roleID string) error {
	return d.session.GuildMemberRoleRemove(d.guildID, memberID, roleID)
}

func (d *Discord) Ban(_ context.Context, memberID, reason string) error {
	return d.session.GuildBanCreateWithReason(d.guildID, memberID, reason, 0)
}

func promptEmbed(prompt Prompt) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       prompt.Title,
		Description: prompt.Body,
		Color:       prompt.Color,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
}

func promptComponents(prompt Prompt) []discordgo.MessageComponent {
	if len(prompt.Controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(prompt.Controls))
	for _, control := range prompt.Controls {
		buttons = append(buttons, discordgo.Button{
			Label:    control.Label,
			Style:    buttonStyle(control.Style),
			CustomID: control.ID,
		})
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: buttons}}
}

func buttonStyle(style ControlStyle) discordgo.ButtonStyle {
	switch style {
	case StyleSuccess:
		return discordgo.SuccessButton
	case StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}
