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

// AutomationSettings is the stored per-guild slowmode automation row. Zero or
// negative numeric fields are legal here; normalization happens in the
// resolver, never in the store.
type AutomationSettings struct {
	GuildID            string
	Enabled            bool
	MessageThreshold   int
	WindowSeconds      int
	CooldownSeconds    int
	DecaySeconds       int
	MaxSlowmodeSeconds int
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

// GetAutomationSettings returns the stored row for the guild, falling back to
// defaults when the guild has never been configured.
func (s *Store) GetAutomationSettings(ctx context.Context, guildID string, defaults AutomationSettings) (AutomationSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT enabled, message_threshold, window_seconds, cooldown_seconds,
		decay_seconds, max_slowmode_seconds
		FROM automation_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	var enabled int
	err := row.Scan(
		&enabled,
		&result.MessageThreshold,
		&result.WindowSeconds,
		&result.CooldownSeconds,
		&result.DecaySeconds,
		&result.MaxSlowmodeSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return AutomationSettings{}, err
	}
	result.Enabled = enabled == 1
	return result, nil
}

func (s *Store) UpsertAutomationSettings(ctx context.Context, settings AutomationSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO automation_settings (
			guild_id, enabled, message_threshold, window_seconds,
			cooldown_seconds, decay_seconds, max_slowmode_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			enabled = excluded.enabled,
			message_threshold = excluded.message_threshold,
			window_seconds = excluded.window_seconds,
			cooldown_seconds = excluded.cooldown_seconds,
			decay_seconds = excluded.decay_seconds,
			max_slowmode_seconds = excluded.max_slowmode_seconds
	`,
		settings.GuildID,
		boolToInt(settings.Enabled),
		settings.MessageThreshold,
		settings.WindowSeconds,
		settings.CooldownSeconds,
		settings.DecaySeconds,
		settings.MaxSlowmodeSeconds,
	)
	return err
}

func (s *Store) AddMonitoredChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO monitored_channels (guild_id, channel_id) VALUES (?, ?)`, guildID, channelID)
	return err
}

func (s *Store) RemoveMonitoredChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM monitored_channels WHERE guild_id = ? AND channel_id = ?`, guildID, channelID)
	return err
}

func (s *Store) ListMonitoredChannels(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id FROM monitored_channels WHERE guild_id = ? ORDER BY channel_id`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var channelID string
		if err := rows.Scan(&channelID); err != nil {
			return nil, err
		}
		channels = append(channels, channelID)
	}
	return channels, rows.Err()
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
