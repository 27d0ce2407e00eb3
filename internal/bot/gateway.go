package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// channelGateway adapts the discord session to the controller's view of a
// channel. Reads prefer the gateway-maintained state cache, which tracks
// out-of-band channel edits via channel-update events, and fall back to REST.
type channelGateway struct {
	session *discordgo.Session
}

func (g *channelGateway) channel(channelID string) (*discordgo.Channel, error) {
	if channel, err := g.session.State.Channel(channelID); err == nil && channel != nil {
		return channel, nil
	}
	channel, err := g.session.Channel(channelID)
	if err != nil {
		return nil, err
	}
	return channel, nil
}

func (g *channelGateway) Capable(channelID string) bool {
	channel, err := g.channel(channelID)
	if err != nil || channel == nil {
		return false
	}
	return channel.Type == discordgo.ChannelTypeGuildText || channel.Type == discordgo.ChannelTypeGuildNews
}

func (g *channelGateway) CurrentRateLimit(channelID string) (int, error) {
	channel, err := g.channel(channelID)
	if err != nil {
		return 0, fmt.Errorf("channel %s lookup failed: %w", channelID, err)
	}
	return channel.RateLimitPerUser, nil
}

func (g *channelGateway) SetRateLimit(channelID string, seconds int, reason string) error {
	_, err := g.session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		RateLimitPerUser: &seconds,
	}, discordgo.WithAuditLogReason(reason))
	return err
}
