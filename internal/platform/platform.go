package platform

import (
	"context"
	"time"
)

// Member is the minimal view of a guild member the core needs.
type Member struct {
	ID       string
	Username string
	Bot      bool
	RoleIDs  []string
}

// Message is the platform-independent view of an inbound message.
type Message struct {
	ID         string
	ChannelID  string
	Content    string
	StickerIDs []string
	Author     Member
}

// ControlStyle selects the visual style of an interactive button.
type ControlStyle int

const (
	StylePrimary ControlStyle = iota
	StyleSuccess
	StyleDanger
)

// Control is an interactive button attached to a prompt.
type Control struct {
	ID    string
	Label string
	Style ControlStyle
}

// Prompt is a status display posted into a channel and edited in place as the
// state it reflects moves on.
type Prompt struct {
	Title    string
	Body     string
	Color    int
	Controls []Control
}

// API is the chat platform collaborator. Every method maps to an external call
// and may fail transiently; callers treat failures as degraded, never fatal.
type API interface {
	// CreatePairChannel provisions a text channel visible only to the listed
	// members and the bot, with sending denied for the members.
	CreatePairChannel(ctx context.Context, name string, memberIDs []string) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	SetSendPermission(ctx context.Context, channelID, memberID string, allow bool) error

	SendPrompt(ctx context.Context, channelID string, prompt Prompt) (string, error)
	EditPrompt(ctx context.Context, channelID, messageID string, prompt Prompt) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	// SendTemporary posts a notice that the platform removes after ttl.
	SendTemporary(ctx context.Context, channelID, content string, ttl time.Duration) error
	// PurgeRecent deletes the member's messages sent within the trailing
	// duration and returns how many were removed.
	PurgeRecent(ctx context.Context, channelID, memberID string, within time.Duration) (int, error)

	Member(ctx context.Context, memberID string) (Member, bool)
	EnsureMutedRole(ctx context.Context) (string, error)
	AddRole(ctx context.Context, memberID, roleID string) error
	RemoveRole(ctx context.Context, memberID, roleID string) error
	Ban(ctx context.Context, memberID, reason string) error
}
