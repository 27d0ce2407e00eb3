package slowmode

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"warden-automod/internal/storage"

	"go.uber.org/zap"
)

// Config is an immutable snapshot of a guild's effective automation
// configuration, used for exactly one evaluation. All numeric fields are
// normalized to >= 1.
type Config struct {
	Enabled            bool
	MessageThreshold   int
	WindowSeconds      int
	CooldownSeconds    int
	DecaySeconds       int
	MaxSlowmodeSeconds int
	MonitoredChannels  map[string]struct{}
	Fingerprint        string

	// ReadFailed marks a snapshot produced after a settings read error.
	// This is not the same as "disabled": the settings are unknown, so the
	// evaluation must be skipped entirely, with no escalation, no
	// reconciliation and no teardown.
	ReadFailed bool
}

func (c Config) Monitors(channelID string) bool {
	_, ok := c.MonitoredChannels[channelID]
	return ok
}

// resolverCacheTTL bounds staleness for settings edited behind the bot's
// back; edits through the bot invalidate immediately.
const resolverCacheTTL = 20 * time.Second

type cachedConfig struct {
	config   Config
	loadedAt time.Time
}

// Resolver loads and normalizes the effective automation configuration for a
// guild from the settings store.
type Resolver struct {
	mu       sync.Mutex
	store    *storage.Store
	defaults storage.AutomationSettings
	clock    Clock
	logger   *zap.Logger
	cache    map[string]cachedConfig
}

func NewResolver(store *storage.Store, defaults storage.AutomationSettings, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		defaults: defaults,
		clock:    realClock{},
		logger:   logger,
		cache:    make(map[string]cachedConfig),
	}
}

func (r *Resolver) WithClock(clock Clock) {
	r.clock = clock
}

// Resolve returns the guild's normalized configuration. A store failure
// yields a snapshot marked ReadFailed so a read error can never cause an
// escalation, a teardown or a counter reset.
func (r *Resolver) Resolve(ctx context.Context, guildID string) Config {
	now := r.clock.Now()

	r.mu.Lock()
	if entry, ok := r.cache[guildID]; ok && now.Sub(entry.loadedAt) < resolverCacheTTL {
		r.mu.Unlock()
		return entry.config
	}
	r.mu.Unlock()

	settings, err := r.store.GetAutomationSettings(ctx, guildID, r.defaults)
	if err != nil {
		r.logger.Error("automation settings read failed", zap.String("guild_id", guildID), zap.Error(err))
		return failedConfig()
	}
	channels, err := r.store.ListMonitoredChannels(ctx, guildID)
	if err != nil {
		r.logger.Error("monitored channels read failed", zap.String("guild_id", guildID), zap.Error(err))
		return failedConfig()
	}

	cfg := normalize(settings, channels)

	r.mu.Lock()
	r.cache[guildID] = cachedConfig{config: cfg, loadedAt: now}
	r.mu.Unlock()
	return cfg
}

// Invalidate drops the cached snapshot so the next Resolve hits the store.
func (r *Resolver) Invalidate(guildID string) {
	r.mu.Lock()
	delete(r.cache, guildID)
	r.mu.Unlock()
}

func normalize(settings storage.AutomationSettings, channels []string) Config {
	cfg := Config{
		Enabled:            settings.Enabled,
		MessageThreshold:   clampMin(settings.MessageThreshold),
		WindowSeconds:      clampMin(settings.WindowSeconds),
		CooldownSeconds:    clampMin(settings.CooldownSeconds),
		DecaySeconds:       clampMin(settings.DecaySeconds),
		MaxSlowmodeSeconds: clampMin(settings.MaxSlowmodeSeconds),
		MonitoredChannels:  make(map[string]struct{}, len(channels)),
	}
	for _, channelID := range channels {
		cfg.MonitoredChannels[channelID] = struct{}{}
	}
	cfg.Fingerprint = fingerprint(cfg, channels)
	return cfg
}

func fingerprint(cfg Config, channels []string) string {
	sorted := append([]string(nil), channels...)
	sort.Strings(sorted)
	payload := fmt.Sprintf("%t|%d|%d|%d|%d|%d|%s",
		cfg.Enabled,
		cfg.MessageThreshold,
		cfg.WindowSeconds,
		cfg.CooldownSeconds,
		cfg.DecaySeconds,
		cfg.MaxSlowmodeSeconds,
		strings.Join(sorted, ","),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:8])
}

func failedConfig() Config {
	return Config{
		ReadFailed:         true,
		MessageThreshold:   1,
		WindowSeconds:      1,
		CooldownSeconds:    1,
		DecaySeconds:       1,
		MaxSlowmodeSeconds: 1,
	}
}

func clampMin(value int) int {
	if value < 1 {
		return 1
	}
	return value
}
