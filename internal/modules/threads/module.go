package threads

import (
	"context"
	"fmt"
	"time"

	"warden-automod/internal/modules/audit"
	"warden-automod/internal/storage"
)

// Module tracks support-thread lifecycle: threads are recorded on creation,
// touched on activity and reminded when they go stale.
type Module struct {
	store *storage.Store
	audit *audit.Logger
}

func New(store *storage.Store, auditLogger *audit.Logger) *Module {
	return &Module{store: store, audit: auditLogger}
}

func (m *Module) Track(ctx context.Context, guildID, threadID, parentID, openedBy string, at time.Time) error {
	return m.store.TrackThread(ctx, storage.SupportThread{
		ThreadID:     threadID,
		GuildID:      guildID,
		ParentID:     parentID,
		OpenedBy:     openedBy,
		LastActivity: at,
	})
}

func (m *Module) Touch(ctx context.Context, threadID string, at time.Time) {
	_ = m.store.TouchThread(ctx, threadID, at)
}

func (m *Module) Resolve(ctx context.Context, guildID, threadID, actorID string) error {
	if err := m.store.ResolveThread(ctx, threadID); err != nil {
		return err
	}
	m.audit.Log(ctx, audit.LevelInfo, guildID, actorID, audit.EventThreadResolved, fmt.Sprintf("thread=%s", threadID))
	return nil
}

func (m *Module) Forget(ctx context.Context, threadID string) {
	_ = m.store.DeleteThread(ctx, threadID)
}

// RemindStale posts a reminder into every open thread quiet for longer than
// olderThan, at most once per quiet period, and returns how many were
// reminded. Send failures skip the thread so it is retried next sweep.
func (m *Module) RemindStale(ctx context.Context, olderThan time.Duration, send func(channelID, content string) error) (int, error) {
	now := time.Now()
	stale, err := m.store.ListStaleThreads(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, err
	}

	reminded := 0
	for _, thread := range stale {
		content := fmt.Sprintf("This support thread has been quiet for over %s. Is the issue resolved?", olderThan)
		if err := send(thread.ThreadID, content); err != nil {
			continue
		}
		if err := m.store.MarkThreadReminded(ctx, thread.ThreadID, now); err != nil {
			continue
		}
		m.audit.Log(ctx, audit.LevelInfo, thread.GuildID, "", audit.EventThreadReminded, fmt.Sprintf("thread=%s", thread.ThreadID))
		reminded++
	}
	return reminded, nil
}
