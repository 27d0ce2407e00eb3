package storage

import (
	"context"
	"time"
)

const (
	ThreadStatusOpen     = "open"
	ThreadStatusResolved = "resolved"
)

type SupportThread struct {
	ThreadID     string
	GuildID      string
	ParentID     string
	OpenedBy     string
	Status       string
	LastActivity time.Time
	LastReminded time.Time
}

func (s *Store) TrackThread(ctx context.Context, thread SupportThread) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO support_threads (thread_id, guild_id, parent_id, opened_by, status, last_activity, last_reminded)
		VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(thread_id) DO UPDATE SET
			status = excluded.status,
			last_activity = excluded.last_activity
	`, thread.ThreadID, thread.GuildID, thread.ParentID, thread.OpenedBy, ThreadStatusOpen, thread.LastActivity.Unix())
	return err
}

func (s *Store) TouchThread(ctx context.Context, threadID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE support_threads SET last_activity = ? WHERE thread_id = ?`, at.Unix(), threadID)
	return err
}

func (s *Store) ResolveThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE support_threads SET status = ? WHERE thread_id = ?`, ThreadStatusResolved, threadID)
	return err
}

func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM support_threads WHERE thread_id = ?`, threadID)
	return err
}

// ListStaleThreads returns open threads whose last activity and last reminder
// are both older than the cutoff, so one sweep never reminds a thread twice.
func (s *Store) ListStaleThreads(ctx context.Context, cutoff time.Time) ([]SupportThread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT thread_id, guild_id, parent_id, opened_by, status, last_activity, last_reminded
		FROM support_threads
		WHERE status = ? AND last_activity < ? AND last_reminded < ?
		ORDER BY last_activity
	`, ThreadStatusOpen, cutoff.Unix(), cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []SupportThread
	for rows.Next() {
		var thread SupportThread
		var activity, reminded int64
		if err := rows.Scan(&thread.ThreadID, &thread.GuildID, &thread.ParentID, &thread.OpenedBy, &thread.Status, &activity, &reminded); err != nil {
			return nil, err
		}
		thread.LastActivity = time.Unix(activity, 0)
		thread.LastReminded = time.Unix(reminded, 0)
		threads = append(threads, thread)
	}
	return threads, rows.Err()
}

func (s *Store) MarkThreadReminded(ctx context.Context, threadID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE support_threads SET last_reminded = ? WHERE thread_id = ?`, at.Unix(), threadID)
	return err
}
