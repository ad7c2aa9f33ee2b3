package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

type GuildSettings struct {
	GuildID         string
	ModLogChannel   string
	AntilinkEnabled bool
	OwnInviteCode   string
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func isIgnorableMigrationError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column")
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mod_log_channel, antilink_enabled, own_invite_code
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var antilink int
	err := row.Scan(&result.ModLogChannel, &antilink, &result.OwnInviteCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	result.AntilinkEnabled = antilink == 1
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	antilink := 0
	if settings.AntilinkEnabled {
		antilink = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, mod_log_channel, antilink_enabled, own_invite_code)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			mod_log_channel = excluded.mod_log_channel,
			antilink_enabled = excluded.antilink_enabled,
			own_invite_code = excluded.own_invite_code`,
		settings.GuildID, settings.ModLogChannel, antilink, settings.OwnInviteCode)
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, entry AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.GuildID, entry.UserID, entry.Level, entry.Event, entry.Details, entry.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_log WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at ASC`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var entry AuditLog
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.GuildID, &entry.UserID, &entry.Level, &entry.Event, &entry.Details, &createdAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
