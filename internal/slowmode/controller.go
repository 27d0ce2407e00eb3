package slowmode

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"warden-automod/internal/modules/audit"

	"go.uber.org/zap"
)

// baselineSeconds is the rate limit a decayed or reset channel returns to.
const baselineSeconds = 1

// ConfigSource yields a normalized configuration snapshot per evaluation.
type ConfigSource interface {
	Resolve(ctx context.Context, guildID string) Config
	Invalidate(guildID string)
}

// ChannelGateway is the controller's view of the chat platform. Current
// values are read live because administrators can change a channel's rate
// limit out-of-band at any time.
type ChannelGateway interface {
	Capable(channelID string) bool
	CurrentRateLimit(channelID string) (int, error)
	SetRateLimit(channelID string, seconds int, reason string) error
}

type channelState struct {
	mu             sync.Mutex
	window         ActivityWindow
	lastEscalation time.Time
	active         int
	decay          Timer
}

type guildState struct {
	fingerprint string
	channels    map[string]*channelState
}

// Controller watches per-channel message traffic, escalates a channel's rate
// limit on bursts and decays it back to baseline after a quiet period.
//
// The registry (guild map, per-guild channel maps, fingerprints) is guarded
// by mu. Everything inside a channelState, including the read-decide-mutate
// sequence against the gateway, is guarded by the per-channel lock so a
// message evaluation and a firing decay timer cannot interleave. Lock order
// is always mu before channelState.mu.
type Controller struct {
	mu      sync.Mutex
	guilds  map[string]*guildState
	source  ConfigSource
	gateway ChannelGateway
	clock   Clock
	logger  *zap.Logger
	audit   *audit.Logger
}

func NewController(source ConfigSource, gateway ChannelGateway, logger *zap.Logger, auditLogger *audit.Logger) *Controller {
	return &Controller{
		guilds:  make(map[string]*guildState),
		source:  source,
		gateway: gateway,
		clock:   realClock{},
		logger:  logger,
		audit:   auditLogger,
	}
}

func (c *Controller) WithClock(clock Clock) {
	c.clock = clock
}

// OnMessage evaluates one inbound message. The arrival time comes from the
// source event, not the local clock.
func (c *Controller) OnMessage(ctx context.Context, guildID, channelID string, arrival time.Time) {
	cfg := c.source.Resolve(ctx, guildID)
	if cfg.ReadFailed {
		// Settings are unknown, not disabled. Tracked state and external
		// rate limits stay exactly as they are.
		c.logger.Debug("evaluation skipped, settings unavailable", zap.String("guild_id", guildID))
		return
	}

	c.mu.Lock()
	gs := c.guilds[guildID]
	if gs == nil {
		gs = &guildState{fingerprint: cfg.Fingerprint, channels: make(map[string]*channelState)}
		c.guilds[guildID] = gs
	}
	drifted := gs.fingerprint != cfg.Fingerprint
	c.mu.Unlock()

	if drifted {
		c.reconcile(ctx, guildID, cfg)
	}

	if !cfg.Enabled || !cfg.Monitors(channelID) {
		c.dropChannel(ctx, guildID, channelID, true)
		return
	}
	if !c.gateway.Capable(channelID) {
		return
	}

	c.mu.Lock()
	cs := gs.channels[channelID]
	if cs == nil {
		cs = &channelState{active: baselineSeconds}
		gs.channels[channelID] = cs
	}
	c.mu.Unlock()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	count := cs.window.Observe(arrival, time.Duration(cfg.WindowSeconds)*time.Second)
	if count < cfg.MessageThreshold {
		return
	}

	target := targetFor(count, cfg.MessageThreshold, cfg.MaxSlowmodeSeconds)
	c.logger.Debug("burst threshold reached",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.Int("count", count),
		zap.Int("target", target))

	current, err := c.gateway.CurrentRateLimit(channelID)
	if err != nil {
		c.logger.Warn("rate limit read failed", zap.String("channel_id", channelID), zap.Error(err))
		current = 0
	}
	// A channel with slowmode off is at baseline; without this a count
	// exactly at threshold (target 1) would issue a pointless mutation.
	if current < baselineSeconds {
		current = baselineSeconds
	}

	cooldown := time.Duration(cfg.CooldownSeconds) * time.Second
	if !cs.lastEscalation.IsZero() && arrival.Sub(cs.lastEscalation) < cooldown && target <= max(cs.active, current) {
		c.logger.Debug("escalation skipped within cooldown",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Int("target", target),
			zap.Int("active", cs.active))
		return
	}

	if current >= target {
		// Someone already throttled at least this hard; adopt and keep the
		// decay clock running.
		cs.active = max(current, baselineSeconds)
		c.scheduleDecayLocked(cs, guildID, channelID, cfg.DecaySeconds)
		c.logger.Debug("external rate limit already sufficient",
			zap.String("channel_id", channelID),
			zap.Int("current", current),
			zap.Int("target", target))
		return
	}

	reason := fmt.Sprintf("message burst: %d messages in %ds", count, cfg.WindowSeconds)
	if err := c.gateway.SetRateLimit(channelID, target, reason); err != nil {
		// Next qualifying message retries naturally; no backoff loop.
		c.logger.Warn("slowmode escalation failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Int("target", target),
			zap.Error(err))
		return
	}

	cs.active = target
	cs.lastEscalation = arrival
	c.scheduleDecayLocked(cs, guildID, channelID, cfg.DecaySeconds)

	c.logger.Info("slowmode escalated",
		zap.String("guild_id", guildID),
		zap.String("channel_id", channelID),
		zap.Int("seconds", target),
		zap.Int("count", count))
	level := audit.LevelWarn
	if target >= cfg.MaxSlowmodeSeconds {
		// The ceiling means the formula wanted more; worth a human look.
		level = audit.LevelCrit
	}
	c.audit.Log(ctx, level, guildID, "", audit.EventSlowmodeEscalated,
		fmt.Sprintf("channel=%s seconds=%d count=%d window=%ds", channelID, target, count, cfg.WindowSeconds))
}

// OnSettingsUpdated reconciles all tracked channels of a guild immediately
// after an administrator edits automation settings.
func (c *Controller) OnSettingsUpdated(ctx context.Context, guildID string) {
	c.source.Invalidate(guildID)
	cfg := c.source.Resolve(ctx, guildID)
	if cfg.ReadFailed {
		// The stale fingerprint stays; the next successful resolve drives
		// the reconciliation instead.
		return
	}

	c.mu.Lock()
	gs := c.guilds[guildID]
	if gs == nil {
		c.mu.Unlock()
		return
	}
	gs.fingerprint = cfg.Fingerprint
	c.mu.Unlock()

	c.reconcile(ctx, guildID, cfg)
}

// ForgetChannel drops tracked state without touching the channel, for
// channels that no longer exist.
func (c *Controller) ForgetChannel(guildID, channelID string) {
	c.dropChannel(context.Background(), guildID, channelID, false)
}

// reconcile re-applies a fresh config to every tracked channel: unmonitored
// or disabled channels are torn down, survivors restart evaluation cleanly
// under the new thresholds with their external rate limit left as-is.
func (c *Controller) reconcile(ctx context.Context, guildID string, cfg Config) {
	type victim struct {
		channelID string
		state     *channelState
	}

	c.mu.Lock()
	gs := c.guilds[guildID]
	if gs == nil {
		c.mu.Unlock()
		return
	}
	gs.fingerprint = cfg.Fingerprint
	var victims []victim
	var survivors []*channelState
	for channelID, cs := range gs.channels {
		if !cfg.Enabled || !cfg.Monitors(channelID) {
			victims = append(victims, victim{channelID: channelID, state: cs})
			delete(gs.channels, channelID)
			continue
		}
		survivors = append(survivors, cs)
	}
	c.mu.Unlock()

	for _, v := range victims {
		c.teardown(ctx, guildID, v.channelID, v.state)
	}
	for _, cs := range survivors {
		cs.mu.Lock()
		if cs.decay != nil {
			cs.decay.Stop()
			cs.decay = nil
		}
		cs.window.Reset()
		cs.lastEscalation = time.Time{}
		cs.active = baselineSeconds
		cs.mu.Unlock()
	}
	if len(victims) > 0 || len(survivors) > 0 {
		c.logger.Info("automation config reconciled",
			zap.String("guild_id", guildID),
			zap.Int("torn_down", len(victims)),
			zap.Int("reset", len(survivors)))
	}
}

// dropChannel removes a channel entry and tears it down. When resetExternal
// is false the channel itself is left untouched.
func (c *Controller) dropChannel(ctx context.Context, guildID, channelID string, resetExternal bool) {
	c.mu.Lock()
	gs := c.guilds[guildID]
	if gs == nil {
		c.mu.Unlock()
		return
	}
	cs := gs.channels[channelID]
	if cs == nil {
		c.mu.Unlock()
		return
	}
	delete(gs.channels, channelID)
	c.mu.Unlock()

	if resetExternal {
		c.teardown(ctx, guildID, channelID, cs)
		return
	}
	cs.mu.Lock()
	if cs.decay != nil {
		cs.decay.Stop()
		cs.decay = nil
	}
	cs.mu.Unlock()
}

// teardown cancels the decay timer and best-effort resets the channel when
// the controller itself had raised its rate limit. Failures are logged, not
// retried.
func (c *Controller) teardown(ctx context.Context, guildID, channelID string, cs *channelState) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.decay != nil {
		cs.decay.Stop()
		cs.decay = nil
	}
	active := cs.active
	cs.window.Reset()
	cs.lastEscalation = time.Time{}
	cs.active = baselineSeconds

	if active <= baselineSeconds {
		return
	}
	if err := c.gateway.SetRateLimit(channelID, baselineSeconds, "channel no longer under automation"); err != nil {
		c.logger.Warn("teardown reset failed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID),
			zap.Error(err))
		return
	}
	c.audit.Log(ctx, audit.LevelInfo, guildID, "", audit.EventSlowmodeReset,
		fmt.Sprintf("channel=%s reason=teardown", channelID))
}

func (c *Controller) scheduleDecayLocked(cs *channelState, guildID, channelID string, decaySeconds int) {
	if cs.decay != nil {
		cs.decay.Stop()
	}
	cs.decay = c.clock.AfterFunc(time.Duration(decaySeconds)*time.Second, func() {
		c.decayFire(guildID, channelID)
	})
}

// decayFire runs when a channel has been quiet for the configured decay
// period. It defers to the live external value over its own memory so a
// manual administrative change is never clobbered.
func (c *Controller) decayFire(guildID, channelID string) {
	ctx := context.Background()

	c.mu.Lock()
	gs := c.guilds[guildID]
	var cs *channelState
	if gs != nil {
		cs = gs.channels[channelID]
	}
	c.mu.Unlock()
	if cs == nil {
		return
	}

	prune := false
	cs.mu.Lock()
	cs.decay = nil

	switch {
	case cs.active <= baselineSeconds:
		cs.window.Reset()
		cs.lastEscalation = time.Time{}
		prune = true

	default:
		live, err := c.gateway.CurrentRateLimit(channelID)
		if err != nil {
			c.logger.Warn("decay rate limit read failed", zap.String("channel_id", channelID), zap.Error(err))
			cs.mu.Unlock()
			return
		}
		if live != cs.active {
			// Changed out-of-band since our last write; adopt it rather than
			// fighting a manual intervention.
			c.logger.Info("adopting external rate limit",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channelID),
				zap.Int("tracked", cs.active),
				zap.Int("live", live))
			cs.active = max(live, baselineSeconds)
			if live <= baselineSeconds {
				cs.window.Reset()
				cs.lastEscalation = time.Time{}
				prune = true
			}
			break
		}
		if err := c.gateway.SetRateLimit(channelID, baselineSeconds, "traffic subsided"); err != nil {
			// Not retried; the channel stays throttled until a new burst
			// re-triggers evaluation. Accepted limitation.
			c.logger.Warn("slowmode decay failed",
				zap.String("guild_id", guildID),
				zap.String("channel_id", channelID),
				zap.Error(err))
			break
		}
		cs.active = baselineSeconds
		cs.window.Reset()
		cs.lastEscalation = time.Time{}
		prune = true
		c.logger.Info("slowmode decayed",
			zap.String("guild_id", guildID),
			zap.String("channel_id", channelID))
		c.audit.Log(ctx, audit.LevelInfo, guildID, "", audit.EventSlowmodeDecayed,
			fmt.Sprintf("channel=%s", channelID))
	}
	cs.mu.Unlock()

	if prune {
		c.mu.Lock()
		if gs := c.guilds[guildID]; gs != nil && gs.channels[channelID] == cs {
			delete(gs.channels, channelID)
		}
		c.mu.Unlock()
	}
}

// targetFor maps how far a burst overshoots the threshold onto a rate limit:
// one second at the threshold, two more per full threshold of overshoot,
// capped by the configured ceiling.
func targetFor(count, threshold, ceiling int) int {
	over := float64(count)/float64(threshold) - 1
	if over < 0 {
		over = 0
	}
	target := int(math.Ceil(1 + over*2))
	if target < baselineSeconds {
		target = baselineSeconds
	}
	if target > ceiling {
		target = ceiling
	}
	return target
}
