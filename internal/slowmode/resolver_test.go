package slowmode

import (
	"context"
	"testing"
	"time"

	"warden-automod/internal/storage"

	"go.uber.org/zap"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestResolverNormalizesDegenerateValues(t *testing.T) {
	store := testStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.UpsertAutomationSettings(ctx, storage.AutomationSettings{
		GuildID: "g1", Enabled: true,
		MessageThreshold: 0, WindowSeconds: -5, CooldownSeconds: 0,
		DecaySeconds: 0, MaxSlowmodeSeconds: -1,
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resolver := NewResolver(store, storage.AutomationSettings{}, zap.NewNop())
	cfg := resolver.Resolve(ctx, "g1")
	if !cfg.Enabled {
		t.Fatalf("expected enabled")
	}
	if cfg.MessageThreshold != 1 || cfg.WindowSeconds != 1 || cfg.CooldownSeconds != 1 || cfg.DecaySeconds != 1 || cfg.MaxSlowmodeSeconds != 1 {
		t.Fatalf("expected all fields clamped to 1, got %+v", cfg)
	}
}

func TestResolverFingerprint(t *testing.T) {
	settings := storage.AutomationSettings{Enabled: true, MessageThreshold: 5, WindowSeconds: 10, CooldownSeconds: 30, DecaySeconds: 60, MaxSlowmodeSeconds: 20}

	a := normalize(settings, []string{"c1", "c2"})
	b := normalize(settings, []string{"c2", "c1"})
	if a.Fingerprint != b.Fingerprint {
		t.Fatalf("fingerprint must not depend on channel order")
	}

	c := normalize(settings, []string{"c1"})
	if a.Fingerprint == c.Fingerprint {
		t.Fatalf("fingerprint must change with channel set")
	}

	settings.MessageThreshold = 6
	d := normalize(settings, []string{"c1", "c2"})
	if a.Fingerprint == d.Fingerprint {
		t.Fatalf("fingerprint must change with thresholds")
	}
}

func TestResolverFailsSafe(t *testing.T) {
	store := testStore(t)
	store.Close()

	resolver := NewResolver(store, storage.AutomationSettings{Enabled: true}, zap.NewNop())
	cfg := resolver.Resolve(context.Background(), "g1")
	if cfg.Enabled {
		t.Fatalf("store failure must yield a disabled config")
	}
	if !cfg.ReadFailed {
		t.Fatalf("store failure must be marked, got %+v", cfg)
	}
}

func TestResolverCacheAndInvalidate(t *testing.T) {
	store := testStore(t)
	defer store.Close()
	ctx := context.Background()

	if err := store.UpsertAutomationSettings(ctx, storage.AutomationSettings{GuildID: "g1", Enabled: true, MessageThreshold: 5, WindowSeconds: 10, CooldownSeconds: 30, DecaySeconds: 60, MaxSlowmodeSeconds: 20}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resolver := NewResolver(store, storage.AutomationSettings{}, zap.NewNop())
	clock := &fakeClock{now: time.Unix(0, 0)}
	resolver.WithClock(clock)

	first := resolver.Resolve(ctx, "g1")
	if first.MessageThreshold != 5 {
		t.Fatalf("expected threshold 5, got %d", first.MessageThreshold)
	}

	if err := store.UpsertAutomationSettings(ctx, storage.AutomationSettings{GuildID: "g1", Enabled: true, MessageThreshold: 9, WindowSeconds: 10, CooldownSeconds: 30, DecaySeconds: 60, MaxSlowmodeSeconds: 20}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cached := resolver.Resolve(ctx, "g1")
	if cached.MessageThreshold != 5 {
		t.Fatalf("expected cached threshold 5, got %d", cached.MessageThreshold)
	}

	resolver.Invalidate("g1")
	fresh := resolver.Resolve(ctx, "g1")
	if fresh.MessageThreshold != 9 {
		t.Fatalf("expected fresh threshold 9, got %d", fresh.MessageThreshold)
	}
	if fresh.Fingerprint == first.Fingerprint {
		t.Fatalf("expected fingerprint drift after settings change")
	}
}
