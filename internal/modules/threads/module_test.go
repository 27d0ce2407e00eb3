package threads

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden-automod/internal/modules/audit"
	"warden-automod/internal/storage"

	"go.uber.org/zap"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(store, audit.NewLogger(store, zap.NewNop()))
}

func TestRemindStale(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()
	now := time.Now()

	if err := module.Track(ctx, "g1", "t1", "forum1", "u1", now.Add(-72*time.Hour)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := module.Track(ctx, "g1", "t2", "forum1", "u2", now); err != nil {
		t.Fatalf("track: %v", err)
	}

	var sent []string
	reminded, err := module.RemindStale(ctx, 48*time.Hour, func(channelID, content string) error {
		sent = append(sent, channelID)
		return nil
	})
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminded != 1 || len(sent) != 1 || sent[0] != "t1" {
		t.Fatalf("expected only t1 reminded, got %v", sent)
	}

	// A second sweep inside the same quiet period stays silent.
	reminded, err = module.RemindStale(ctx, 48*time.Hour, func(channelID, content string) error {
		t.Fatalf("unexpected send to %s", channelID)
		return nil
	})
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminded != 0 {
		t.Fatalf("expected no reminders, got %d", reminded)
	}
}

func TestRemindStaleSendFailureRetries(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	if err := module.Track(ctx, "g1", "t1", "forum1", "u1", time.Now().Add(-72*time.Hour)); err != nil {
		t.Fatalf("track: %v", err)
	}

	reminded, err := module.RemindStale(ctx, 48*time.Hour, func(channelID, content string) error {
		return errors.New("missing access")
	})
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminded != 0 {
		t.Fatalf("expected no reminders on send failure, got %d", reminded)
	}

	// Thread was not marked, so the next sweep tries again.
	reminded, err = module.RemindStale(ctx, 48*time.Hour, func(channelID, content string) error {
		return nil
	})
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminded != 1 {
		t.Fatalf("expected retry to remind, got %d", reminded)
	}
}

func TestResolveStopsReminders(t *testing.T) {
	module := newTestModule(t)
	ctx := context.Background()

	if err := module.Track(ctx, "g1", "t1", "forum1", "u1", time.Now().Add(-72*time.Hour)); err != nil {
		t.Fatalf("track: %v", err)
	}
	if err := module.Resolve(ctx, "g1", "t1", "u2"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	reminded, err := module.RemindStale(ctx, 48*time.Hour, func(channelID, content string) error {
		t.Fatalf("unexpected send to %s", channelID)
		return nil
	})
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminded != 0 {
		t.Fatalf("expected no reminders for resolved thread, got %d", reminded)
	}
}
