package bot

import (
	"context"
	"strings"
	"time"

	"warden-automod/internal/analytics"
	"warden-automod/internal/config"
	"warden-automod/internal/modules/audit"
	"warden-automod/internal/modules/tags"
	"warden-automod/internal/modules/threads"
	"warden-automod/internal/slowmode"
	"warden-automod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *storage.Store
	audit      *audit.Logger
	controller *slowmode.Controller
	tags       *tags.Module
	threads    *threads.Module
	analytics  *analytics.Service
	session    *discordgo.Session
	scheduler  *cron.Cron
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, resolver *slowmode.Resolver, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		tags:      tags.New(store, auditLogger),
		threads:   threads.New(store, auditLogger),
		analytics: analyticsService,
		session:   session,
	}
	b.controller = slowmode.NewController(resolver, &channelGateway{session: session}, logger, auditLogger)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onChannelDelete)
	b.session.AddHandler(b.onThreadCreate)
	b.session.AddHandler(b.onThreadDelete)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	b.startScheduler()

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	b.stopScheduler()
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx := context.Background()
	b.controller.OnMessage(ctx, msg.GuildID, msg.ChannelID, msg.Timestamp)
	b.threads.Touch(ctx, msg.ChannelID, msg.Timestamp)
	b.handleTagLookup(ctx, session, msg)
}

func (b *Bot) handleTagLookup(ctx context.Context, session *discordgo.Session, msg *discordgo.MessageCreate) {
	prefix := b.cfg.TagPrefix
	if prefix == "" || !strings.HasPrefix(msg.Content, prefix) {
		return
	}
	name := strings.Fields(strings.TrimPrefix(msg.Content, prefix))
	if len(name) == 0 {
		return
	}
	content, err := b.tags.Use(ctx, msg.GuildID, name[0])
	if err != nil {
		return
	}
	if _, err := session.ChannelMessageSend(msg.ChannelID, content); err != nil {
		b.logger.Warn("tag response failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

func (b *Bot) onChannelDelete(session *discordgo.Session, event *discordgo.ChannelDelete) {
	if event.Channel == nil || event.Channel.GuildID == "" {
		return
	}
	ctx := context.Background()
	b.controller.ForgetChannel(event.Channel.GuildID, event.Channel.ID)
	if err := b.store.RemoveMonitoredChannel(ctx, event.Channel.GuildID, event.Channel.ID); err == nil {
		b.controller.OnSettingsUpdated(ctx, event.Channel.GuildID)
	}
}

func (b *Bot) onThreadCreate(session *discordgo.Session, event *discordgo.ThreadCreate) {
	if event.Channel == nil || event.GuildID == "" || !event.IsThread() {
		return
	}
	ctx := context.Background()
	if err := b.threads.Track(ctx, event.GuildID, event.ID, event.ParentID, event.OwnerID, time.Now()); err != nil {
		b.logger.Warn("thread tracking failed", zap.String("thread_id", event.ID), zap.Error(err))
	}
}

func (b *Bot) onThreadDelete(session *discordgo.Session, event *discordgo.ThreadDelete) {
	if event.Channel == nil {
		return
	}
	b.threads.Forget(context.Background(), event.ID)
}
