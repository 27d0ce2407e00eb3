package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"warden-automod/internal/config"
	"warden-automod/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works in a server.")
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "automation":
		b.handleAutomationCommand(ctx, session, interaction, data.Options)
	case "tag":
		b.handleTagCommand(ctx, session, interaction, data.Options)
	case "resolve":
		b.handleResolveCommand(ctx, session, interaction)
	case "report":
		b.handleReportCommand(ctx, session, interaction)
	}
}

func (b *Bot) handleAutomationCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	guildID := interaction.GuildID
	sub := options[0]

	settings, err := b.store.GetAutomationSettings(ctx, guildID, b.defaultSettings())
	if err != nil {
		b.respond(session, interaction, "Could not load automation settings.")
		return
	}

	switch sub.Name {
	case "status":
		channels, _ := b.store.ListMonitoredChannels(ctx, guildID)
		b.respond(session, interaction, formatStatus(settings, channels))
		return

	case "enable":
		settings.Enabled = true
	case "disable":
		settings.Enabled = false
	case "set":
		for _, opt := range sub.Options {
			value := int(opt.IntValue())
			switch opt.Name {
			case "threshold":
				settings.MessageThreshold = value
			case "window":
				settings.WindowSeconds = value
			case "cooldown":
				settings.CooldownSeconds = value
			case "decay":
				settings.DecaySeconds = value
			case "max":
				settings.MaxSlowmodeSeconds = value
			}
		}
	case "watch":
		channel := sub.Options[0].ChannelValue(session)
		if channel == nil {
			b.respond(session, interaction, "Unknown channel.")
			return
		}
		if err := b.store.AddMonitoredChannel(ctx, guildID, channel.ID); err != nil {
			b.respond(session, interaction, "Could not watch that channel.")
			return
		}
		b.controller.OnSettingsUpdated(ctx, guildID)
		b.respond(session, interaction, fmt.Sprintf("Now watching <#%s>.", channel.ID))
		return
	case "unwatch":
		channel := sub.Options[0].ChannelValue(session)
		if channel == nil {
			b.respond(session, interaction, "Unknown channel.")
			return
		}
		if err := b.store.RemoveMonitoredChannel(ctx, guildID, channel.ID); err != nil {
			b.respond(session, interaction, "Could not unwatch that channel.")
			return
		}
		b.controller.OnSettingsUpdated(ctx, guildID)
		b.respond(session, interaction, fmt.Sprintf("Stopped watching <#%s>.", channel.ID))
		return
	default:
		return
	}

	if err := b.store.UpsertAutomationSettings(ctx, settings); err != nil {
		b.logger.Error("settings update failed", zap.String("guild_id", guildID), zap.Error(err))
		b.respond(session, interaction, "Could not save automation settings.")
		return
	}
	b.controller.OnSettingsUpdated(ctx, guildID)
	b.respond(session, interaction, "Automation settings updated.")
}

func (b *Bot) handleTagCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 {
		return
	}
	guildID := interaction.GuildID
	sub := options[0]
	actorID := interactionUserID(interaction)

	switch sub.Name {
	case "add":
		name := sub.Options[0].StringValue()
		content := sub.Options[1].StringValue()
		if err := b.tags.Create(ctx, guildID, name, content, actorID); err != nil {
			b.respond(session, interaction, err.Error())
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Tag `%s` saved.", strings.ToLower(name)))
	case "remove":
		name := sub.Options[0].StringValue()
		if err := b.tags.Delete(ctx, guildID, name, actorID); err != nil {
			if errors.Is(err, storage.ErrTagNotFound) {
				b.respond(session, interaction, "No such tag.")
				return
			}
			b.respond(session, interaction, "Could not delete the tag.")
			return
		}
		b.respond(session, interaction, fmt.Sprintf("Tag `%s` deleted.", strings.ToLower(name)))
	case "show":
		name := sub.Options[0].StringValue()
		content, err := b.tags.Use(ctx, guildID, name)
		if err != nil {
			b.respond(session, interaction, "No such tag.")
			return
		}
		b.respond(session, interaction, content)
	case "list":
		tagList, err := b.tags.List(ctx, guildID)
		if err != nil || len(tagList) == 0 {
			b.respond(session, interaction, "No tags on this server yet.")
			return
		}
		names := make([]string, 0, len(tagList))
		for _, tag := range tagList {
			names = append(names, fmt.Sprintf("`%s` (%d uses)", tag.Name, tag.Uses))
		}
		b.respond(session, interaction, strings.Join(names, ", "))
	}
}

func (b *Bot) handleResolveCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if err := b.threads.Resolve(ctx, interaction.GuildID, interaction.ChannelID, interactionUserID(interaction)); err != nil {
		b.respond(session, interaction, "Could not resolve this thread.")
		return
	}
	b.respond(session, interaction, "Thread marked as resolved.")
}

func (b *Bot) handleReportCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	report, err := b.analytics.Report(ctx, interaction.GuildID, time.Now().AddDate(0, 0, -7))
	if err != nil {
		b.respond(session, interaction, "Could not build the report.")
		return
	}
	if report.Total == 0 {
		b.respond(session, interaction, "No automation activity in the last 7 days.")
		return
	}

	events := make([]string, 0, len(report.ByEvent))
	for event, count := range report.ByEvent {
		events = append(events, fmt.Sprintf("%s: %d", event, count))
	}
	sort.Strings(events)
	b.respond(session, interaction, fmt.Sprintf("%d events in the last 7 days — %s", report.Total, strings.Join(events, ", ")))
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

func (b *Bot) defaultSettings() storage.AutomationSettings {
	return automationDefaults(b.cfg.Automation)
}

func automationDefaults(cfg config.AutomationConfig) storage.AutomationSettings {
	return storage.AutomationSettings{
		Enabled:            cfg.Enabled,
		MessageThreshold:   cfg.MessageThreshold,
		WindowSeconds:      cfg.WindowSeconds,
		CooldownSeconds:    cfg.CooldownSeconds,
		DecaySeconds:       cfg.DecaySeconds,
		MaxSlowmodeSeconds: cfg.MaxSlowmodeSeconds,
	}
}

func formatStatus(settings storage.AutomationSettings, channels []string) string {
	state := "disabled"
	if settings.Enabled {
		state = "enabled"
	}
	watched := "none"
	if len(channels) > 0 {
		mentions := make([]string, 0, len(channels))
		for _, channelID := range channels {
			mentions = append(mentions, "<#"+channelID+">")
		}
		watched = strings.Join(mentions, " ")
	}
	return fmt.Sprintf(
		"Adaptive slowmode is %s. Threshold %d msgs / %ds window, cooldown %ds, decay %ds, ceiling %ds. Watched channels: %s.",
		state,
		settings.MessageThreshold,
		settings.WindowSeconds,
		settings.CooldownSeconds,
		settings.DecaySeconds,
		settings.MaxSlowmodeSeconds,
		watched,
	)
}

func interactionUserID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}
