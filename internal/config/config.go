package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken    string           `yaml:"discord_token"`
	GuildID         string           `yaml:"guild_id"`
	DatabasePath    string           `yaml:"database_path"`
	LogLevel        string           `yaml:"log_level"`
	ModeratorRoleID string           `yaml:"moderator_role_id"`
	ModLogChannel   string           `yaml:"mod_log_channel"`
	OwnInviteCode   string           `yaml:"own_invite_code"`
	PairCategoryID  string           `yaml:"pair_category_id"`
	Health          HealthConfig     `yaml:"health"`
	Pairing         PairingConfig    `yaml:"pairing"`
	Moderation      ModerationConfig `yaml:"moderation"`
	Mute            MuteConfig       `yaml:"mute"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type PairingConfig struct {
	CooldownMinutes      int `yaml:"cooldown_minutes"`
	AcceptTimeoutSeconds int `yaml:"accept_timeout_seconds"`
	ChannelMinutes       int `yaml:"channel_minutes"`
	SafetyTimeoutMinutes int `yaml:"safety_timeout_minutes"`
}

type ModerationConfig struct {
	FloodMessages             int  `yaml:"flood_messages"`
	FloodWindowSeconds        int  `yaml:"flood_window_seconds"`
	StickerMessages           int  `yaml:"sticker_messages"`
	StickerWindowSeconds      int  `yaml:"sticker_window_seconds"`
	RepeatStickerCount        int  `yaml:"repeat_sticker_count"`
	RepeatStickerWindowSecs   int  `yaml:"repeat_sticker_window_seconds"`
	ShortMessageLength        int  `yaml:"short_message_length"`
	ShortMessageCount         int  `yaml:"short_message_count"`
	ShortMessageWindowSeconds int  `yaml:"short_message_window_seconds"`
	DuplicateCount            int  `yaml:"duplicate_count"`
	DuplicateWindowSeconds    int  `yaml:"duplicate_window_seconds"`
	InviteMuteMinutes         int  `yaml:"invite_mute_minutes"`
	AntilinkDefault           bool `yaml:"antilink_default"`
}

type MuteConfig struct {
	SweepSeconds  int   `yaml:"sweep_seconds"`
	ResetOnExpiry bool  `yaml:"reset_on_expiry"`
	StepsMinutes  []int `yaml:"steps_minutes"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath: "/data/lonelybot.db",
		LogLevel:     "info",
		Health:       HealthConfig{Enabled: false, Addr: ":8080"},
		Pairing: PairingConfig{
			CooldownMinutes:      3,
			AcceptTimeoutSeconds: 60,
			ChannelMinutes:       7,
			SafetyTimeoutMinutes: 30,
		},
		Moderation: ModerationConfig{
			FloodMessages:             10,
			FloodWindowSeconds:        10,
			StickerMessages:           4,
			StickerWindowSeconds:      10,
			RepeatStickerCount:        3,
			RepeatStickerWindowSecs:   30,
			ShortMessageLength:        4,
			ShortMessageCount:         6,
			ShortMessageWindowSeconds: 10,
			DuplicateCount:            5,
			DuplicateWindowSeconds:    15,
			InviteMuteMinutes:         60,
			AntilinkDefault:           false,
		},
		Mute: MuteConfig{
			SweepSeconds:  30,
			ResetOnExpiry: false,
			StepsMinutes:  []int{5, 10, 20},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("DISCORD_GUILD_ID is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("DISCORD_GUILD_ID", cfg.GuildID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.ModeratorRoleID = envString("MODERATOR_ROLE_ID", cfg.ModeratorRoleID)
	cfg.ModLogChannel = envString("MOD_LOG_CHANNEL", cfg.ModLogChannel)
	cfg.OwnInviteCode = envString("OWN_INVITE_CODE", cfg.OwnInviteCode)
	cfg.PairCategoryID = envString("PAIR_CATEGORY_ID", cfg.PairCategoryID)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Pairing.CooldownMinutes = envInt("PAIR_COOLDOWN_MINUTES", cfg.Pairing.CooldownMinutes)
	cfg.Pairing.AcceptTimeoutSeconds = envInt("PAIR_ACCEPT_TIMEOUT_SECONDS", cfg.Pairing.AcceptTimeoutSeconds)
	cfg.Pairing.ChannelMinutes = envInt("PAIR_CHANNEL_MINUTES", cfg.Pairing.ChannelMinutes)
	cfg.Pairing.SafetyTimeoutMinutes = envInt("PAIR_SAFETY_TIMEOUT_MINUTES", cfg.Pairing.SafetyTimeoutMinutes)
	cfg.Moderation.FloodMessages = envInt("FLOOD_MESSAGES", cfg.Moderation.FloodMessages)
	cfg.Moderation.FloodWindowSeconds = envInt("FLOOD_WINDOW_SECONDS", cfg.Moderation.FloodWindowSeconds)
	cfg.Moderation.DuplicateCount = envInt("DUPLICATE_COUNT", cfg.Moderation.DuplicateCount)
	cfg.Moderation.DuplicateWindowSeconds = envInt("DUPLICATE_WINDOW_SECONDS", cfg.Moderation.DuplicateWindowSeconds)
	cfg.Moderation.InviteMuteMinutes = envInt("INVITE_MUTE_MINUTES", cfg.Moderation.InviteMuteMinutes)
	cfg.Moderation.AntilinkDefault = envBool("ANTILINK_DEFAULT", cfg.Moderation.AntilinkDefault)
	cfg.Mute.SweepSeconds = envInt("MUTE_SWEEP_SECONDS", cfg.Mute.SweepSeconds)
	cfg.Mute.ResetOnExpiry = envBool("MUTE_RESET_ON_EXPIRY", cfg.Mute.ResetOnExpiry)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
