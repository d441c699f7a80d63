package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordAPI is the part of *discordgo.Session used for alerts
type discordAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSender posts alerts to a Discord channel over the REST API
type DiscordSender struct {
	session   discordAPI
	channelID string
}

// NewDiscordSender creates a sender for a bot token. No gateway connection is opened.
func NewDiscordSender(token, channelID string) (*DiscordSender, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordSender{session: session, channelID: channelID}, nil
}

// Name returns the channel name
func (s *DiscordSender) Name() string { return "discord" }

// Send posts the alert and returns the message id
func (s *DiscordSender) Send(ctx context.Context, alert Alert) (string, error) {
	msg, err := s.session.ChannelMessageSend(s.channelID, alert.Markdown(), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send Discord message: %w", err)
	}
	return msg.ID, nil
}
