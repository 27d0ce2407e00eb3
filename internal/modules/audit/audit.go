package audit

import (
	"context"
	"time"

	"warden-automod/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

// Event names an automation action recorded in the audit trail. Keeping the
// vocabulary closed makes the analytics rollups stable.
type Event string

const (
	EventSlowmodeEscalated Event = "slowmode_escalated"
	EventSlowmodeDecayed   Event = "slowmode_decayed"
	EventSlowmodeReset     Event = "slowmode_reset"
	EventTagCreated        Event = "tag_created"
	EventTagDeleted        Event = "tag_deleted"
	EventThreadResolved    Event = "thread_resolved"
	EventThreadReminded    Event = "thread_reminded"
)

// Logger records automation actions to the store and the structured log. The
// notifier, when set, receives every entry for forwarding, e.g. to a staff
// channel.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.AuditLog)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.AuditLog)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID string, event Event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     string(event),
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		_ = l.store.AddAuditLog(ctx, entry)
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", string(event)),
		zap.String("details", details))
}
