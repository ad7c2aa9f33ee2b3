package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) registerCommands() error {
	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "pairsetup",
			Description: "Post the matchmaking panel in this channel",
		},
		{
			Name:        "pairjoin",
			Description: "Join the matchmaking queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "gender",
					Description: "your gender",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "man", Value: "man"},
						{Name: "woman", Value: "woman"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "looking_for",
					Description: "who you want to be paired with",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "men", Value: "men"},
						{Name: "women", Value: "women"},
						{Name: "anyone", Value: "anyone"},
					},
				},
			},
		},
		{
			Name:        "pairleave",
			Description: "Leave the matchmaking queue",
		},
		{
			Name:        "mute",
			Description: "Mute a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to mute",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "minutes",
					Description: "duration; omit to use the escalation ladder",
					Required:    false,
				},
			},
		},
		{
			Name:        "unmute",
			Description: "Unmute a member and reset their escalation level",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to unmute",
					Required:    true,
				},
			},
		},
		{
			Name:        "ban",
			Description: "Ban a member",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to ban",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "ban reason",
					Required:    false,
				},
			},
		},
		{
			Name:        "clear",
			Description: "Remove a member's recent messages in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member whose messages to remove",
					Required:    true,
				},
			},
		},
		{
			Name:        "link",
			Description: "Toggle blanket link blocking",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "on or off",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "on", Value: "on"},
						{Name: "off", Value: "off"},
					},
				},
			},
		},
		{
			Name:        "say",
			Description: "Make the bot speak in this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "text",
					Description: "message to send",
					Required:    true,
				},
			},
		},
		{
			Name:        "report",
			Description: "Moderation activity report",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day or week",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
	}

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, b.cfg.GuildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, b.cfg.GuildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, b.cfg.GuildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, b.cfg.GuildID, cmd.ID)
	}
	return nil
}
