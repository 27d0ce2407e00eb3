package bot

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// startScheduler runs the periodic maintenance jobs: audit-log retention and
// stale support-thread reminders. There is deliberately no job retrying
// failed slowmode decays; a failed reset stays until new traffic re-triggers
// evaluation.
func (b *Bot) startScheduler() {
	b.scheduler = cron.New()

	if _, err := b.scheduler.AddFunc(b.cfg.Scheduler.CleanupSpec, func() {
		ctx := context.Background()
		if err := b.store.CleanupAuditLogs(ctx, b.cfg.RetentionDays); err != nil {
			b.logger.Warn("audit cleanup failed", zap.Error(err))
			return
		}
		b.logger.Debug("audit logs cleaned", zap.Int("retention_days", b.cfg.RetentionDays))
	}); err != nil {
		b.logger.Error("cleanup job setup failed", zap.Error(err))
	}

	if _, err := b.scheduler.AddFunc(b.cfg.Scheduler.ReminderSpec, func() {
		ctx := context.Background()
		olderThan := time.Duration(b.cfg.Threads.RemindAfterHours) * time.Hour
		reminded, err := b.threads.RemindStale(ctx, olderThan, func(channelID, content string) error {
			_, err := b.session.ChannelMessageSend(channelID, content)
			return err
		})
		if err != nil {
			b.logger.Warn("thread reminder sweep failed", zap.Error(err))
			return
		}
		if reminded > 0 {
			b.logger.Info("stale threads reminded", zap.Int("count", reminded))
		}
	}); err != nil {
		b.logger.Error("reminder job setup failed", zap.Error(err))
	}

	b.scheduler.Start()
}

func (b *Bot) stopScheduler() {
	if b.scheduler != nil {
		b.scheduler.Stop()
	}
}
