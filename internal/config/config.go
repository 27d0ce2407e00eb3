package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string           `yaml:"discord_token"`
	DatabasePath  string           `yaml:"database_path"`
	LogLevel      string           `yaml:"log_level"`
	RetentionDays int              `yaml:"retention_days"`
	TagPrefix     string           `yaml:"tag_prefix"`
	Health        HealthConfig     `yaml:"health"`
	Automation    AutomationConfig `yaml:"automation"`
	Threads       ThreadConfig     `yaml:"threads"`
	Scheduler     SchedulerConfig  `yaml:"scheduler"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AutomationConfig holds the defaults used when a guild has no stored
// automation settings row yet.
type AutomationConfig struct {
	Enabled            bool `yaml:"enabled"`
	MessageThreshold   int  `yaml:"message_threshold"`
	WindowSeconds      int  `yaml:"window_seconds"`
	CooldownSeconds    int  `yaml:"cooldown_seconds"`
	DecaySeconds       int  `yaml:"decay_seconds"`
	MaxSlowmodeSeconds int  `yaml:"max_slowmode_seconds"`
}

type ThreadConfig struct {
	RemindAfterHours int `yaml:"remind_after_hours"`
}

type SchedulerConfig struct {
	ReminderSpec string `yaml:"reminder_spec"`
	CleanupSpec  string `yaml:"cleanup_spec"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/warden.db",
		LogLevel:      "info",
		RetentionDays: 14,
		TagPrefix:     "!",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Automation: AutomationConfig{
			Enabled:            false,
			MessageThreshold:   10,
			WindowSeconds:      10,
			CooldownSeconds:    30,
			DecaySeconds:       120,
			MaxSlowmodeSeconds: 30,
		},
		Threads:   ThreadConfig{RemindAfterHours: 48},
		Scheduler: SchedulerConfig{ReminderSpec: "@hourly", CleanupSpec: "@daily"},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	_ = godotenv.Load()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.TagPrefix = envString("TAG_PREFIX", cfg.TagPrefix)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Automation.Enabled = envBool("AUTOMATION_ENABLED", cfg.Automation.Enabled)
	cfg.Automation.MessageThreshold = envInt("AUTOMATION_MESSAGE_THRESHOLD", cfg.Automation.MessageThreshold)
	cfg.Automation.WindowSeconds = envInt("AUTOMATION_WINDOW_SECONDS", cfg.Automation.WindowSeconds)
	cfg.Automation.CooldownSeconds = envInt("AUTOMATION_COOLDOWN_SECONDS", cfg.Automation.CooldownSeconds)
	cfg.Automation.DecaySeconds = envInt("AUTOMATION_DECAY_SECONDS", cfg.Automation.DecaySeconds)
	cfg.Automation.MaxSlowmodeSeconds = envInt("AUTOMATION_MAX_SLOWMODE_SECONDS", cfg.Automation.MaxSlowmodeSeconds)
	cfg.Threads.RemindAfterHours = envInt("THREAD_REMIND_AFTER_HOURS", cfg.Threads.RemindAfterHours)
	cfg.Scheduler.ReminderSpec = envString("SCHEDULER_REMINDER_SPEC", cfg.Scheduler.ReminderSpec)
	cfg.Scheduler.CleanupSpec = envString("SCHEDULER_CLEANUP_SPEC", cfg.Scheduler.CleanupSpec)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
