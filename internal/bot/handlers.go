package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lonelybot/internal/match"
	"lonelybot/internal/modules/audit"
	"lonelybot/internal/platform"

	"github.com/bwmarrin/discordgo"
)

// Panel control IDs. The panel is a persistent message moderators post with
// /pairsetup; anyone can join or leave the queue from it.
const (
	controlPanelJoin  = "pair_join"
	controlPanelLeave = "pair_leave"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.GuildID != b.cfg.GuildID {
		return
	}

	ctx := context.Background()
	switch interaction.Type {
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, session, interaction)
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, session, interaction)
	}
}

func (b *Bot) handleComponent(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Member == nil || interaction.Member.User == nil {
		return
	}
	userID := interaction.Member.User.ID
	channelID := interaction.ChannelID

	switch interaction.MessageComponentData().CustomID {
	case controlPanelJoin:
		b.handleJoin(ctx, session, interaction, userID, match.Profile{})
	case controlPanelLeave:
		if b.pairs.Leave(userID) {
			b.respond(session, interaction, "You left the queue.", true)
		} else {
			b.respond(session, interaction, "You are not in the queue.", true)
		}
	case match.ControlAccept:
		b.respondToAction(session, interaction, b.pairs.HandleAccept(ctx, channelID, userID))
	case match.ControlDecline:
		b.respondToAction(session, interaction, b.pairs.HandleDecline(ctx, channelID, userID))
	case match.ControlClose:
		b.respondToAction(session, interaction, b.pairs.HandleClose(ctx, channelID, userID))
	}
}

func (b *Bot) respondToAction(session *discordgo.Session, interaction *discordgo.InteractionCreate, result match.ActionResult) {
	switch result {
	case match.ResultRejected:
		b.respond(session, interaction, "This conversation is not yours.", true)
	case match.ResultGone:
		b.respond(session, interaction, "This conversation no longer exists.", true)
	default:
		// The coordinator already edited the prompt; just acknowledge.
		b.ack(session, interaction)
	}
}

func (b *Bot) handleJoin(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, userID string, profile match.Profile) {
	err := b.pairs.Join(ctx, userID, profile)
	switch {
	case errors.Is(err, match.ErrAlreadyQueued):
		b.respond(session, interaction, "You are already waiting in the queue.", true)
	case errors.Is(err, match.ErrAlreadyActive):
		b.respond(session, interaction, "Finish your current conversation first.", true)
	case err != nil:
		b.respond(session, interaction, "Could not join the queue, try again.", true)
	default:
		b.respond(session, interaction, "You joined the queue. You will be paired as soon as someone compatible is waiting.", true)
	}
}

func (b *Bot) handleCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Member == nil || interaction.Member.User == nil {
		return
	}
	data := interaction.ApplicationCommandData()
	userID := interaction.Member.User.ID

	switch data.Name {
	case "pairjoin":
		b.handleJoin(ctx, session, interaction, userID, profileFromOptions(data.Options))
	case "pairleave":
		if b.pairs.Leave(userID) {
			b.respond(session, interaction, "You left the queue.", true)
		} else {
			b.respond(session, interaction, "You are not in the queue.", true)
		}
	case "pairsetup", "mute", "unmute", "ban", "clear", "link", "say", "report":
		if !b.isModerator(interaction.Member) {
			b.respond(session, interaction, "Moderators only.", true)
			return
		}
		b.handleModCommand(ctx, session, interaction, data)
	}
}

func (b *Bot) handleModCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	actorID := interaction.Member.User.ID

	switch data.Name {
	case "pairsetup":
		prompt := platform.Prompt{
			Title: "lonely hearts",
			Body:  "Press the button to join the matchmaking queue. You will be paired with another waiting member in a private channel.",
			Color: 0x9B59B6,
			Controls: []platform.Control{
				{ID: controlPanelJoin, Label: "join 💞", Style: platform.StyleSuccess},
				{ID: controlPanelLeave, Label: "leave", Style: platform.StyleDanger},
			},
		}
		if _, err := b.api.SendPrompt(ctx, interaction.ChannelID, prompt); err != nil {
			b.respond(session, interaction, "Could not post the panel.", true)
			return
		}
		b.respond(session, interaction, "Panel posted.", true)

	case "mute":
		target := optionUser(session, data.Options, "user")
		if target == "" {
			b.respond(session, interaction, "A user is required.", true)
			return
		}
		minutes := optionInt(data.Options, "minutes")
		if minutes > 0 {
			if err := b.mutes.Apply(ctx, target, time.Duration(minutes)*time.Minute, "manual"); err != nil {
				b.respond(session, interaction, "Mute failed.", true)
				return
			}
			b.respond(session, interaction, fmt.Sprintf("<@%s> muted for %d minutes.", target, minutes), true)
			return
		}
		duration, _, err := b.mutes.Escalate(ctx, target, "manual")
		if err != nil {
			b.respond(session, interaction, "Mute failed.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("<@%s> muted for %d minutes.", target, int(duration.Minutes())), true)

	case "unmute":
		target := optionUser(session, data.Options, "user")
		if target == "" {
			b.respond(session, interaction, "A user is required.", true)
			return
		}
		b.mutes.Clear(ctx, target)
		b.respond(session, interaction, fmt.Sprintf("<@%s> unmuted.", target), true)

	case "ban":
		target := optionUser(session, data.Options, "user")
		if target == "" {
			b.respond(session, interaction, "A user is required.", true)
			return
		}
		reason := optionString(data.Options, "reason")
		if reason == "" {
			reason = "banned by moderator"
		}
		if err := b.api.Ban(ctx, target, reason); err != nil {
			b.respond(session, interaction, "Ban failed.", true)
			return
		}
		b.audit.Log(ctx, audit.LevelCrit, b.cfg.GuildID, target, "manual_ban", "by="+actorID+" reason="+reason)
		b.respond(session, interaction, fmt.Sprintf("<@%s> banned.", target), true)

	case "clear":
		target := optionUser(session, data.Options, "user")
		if target == "" {
			b.respond(session, interaction, "A user is required.", true)
			return
		}
		purged, err := b.api.PurgeRecent(ctx, interaction.ChannelID, target, time.Hour)
		if err != nil {
			b.respond(session, interaction, "Purge failed.", true)
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Removed %d messages.", purged), true)

	case "link":
		value := optionString(data.Options, "value")
		settings := b.guildSettings(ctx)
		settings.AntilinkEnabled = value == "on"
		if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
			b.respond(session, interaction, "Update failed.", true)
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, b.cfg.GuildID, actorID, "antilink_toggle", "value="+value)
		b.respond(session, interaction, "Link blocking is now "+value+".", true)

	case "say":
		text := optionString(data.Options, "text")
		if text == "" {
			b.respond(session, interaction, "Nothing to say.", true)
			return
		}
		if _, err := session.ChannelMessageSend(interaction.ChannelID, text); err != nil {
			b.respond(session, interaction, "Send failed.", true)
			return
		}
		b.respond(session, interaction, "Sent.", true)

	case "report":
		period := optionString(data.Options, "period")
		start := time.Now().Add(-24 * time.Hour)
		if period == "week" {
			start = time.Now().Add(-7 * 24 * time.Hour)
		}
		report, err := b.analytics.Report(ctx, b.cfg.GuildID, start)
		if err != nil {
			b.respond(session, interaction, "Report failed.", true)
			return
		}
		b.respond(session, interaction, formatReport(report), true)
	}
}

func profileFromOptions(options []*discordgo.ApplicationCommandInteractionDataOption) match.Profile {
	profile := match.Profile{}
	for _, opt := range options {
		switch opt.Name {
		case "gender":
			switch opt.StringValue() {
			case "man":
				profile.Gender = match.GenderMan
			case "woman":
				profile.Gender = match.GenderWoman
			}
		case "looking_for":
			switch opt.StringValue() {
			case "men":
				profile.Preference = match.PreferMen
			case "women":
				profile.Preference = match.PreferWomen
			}
		}
	}
	return profile
}

func optionUser(session *discordgo.Session, options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionUser {
			if user := opt.UserValue(session); user != nil {
				return user.ID
			}
		}
	}
	return ""
}

func optionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func optionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	for _, opt := range options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return int(opt.IntValue())
		}
	}
	return 0
}
