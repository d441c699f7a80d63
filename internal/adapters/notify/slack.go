package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// slackAPI is the part of *slack.Client used for alerts
type slackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackSender posts alerts to a Slack channel
type SlackSender struct {
	client    slackAPI
	channelID string
}

// NewSlackSender creates a sender authenticated with a bot token
func NewSlackSender(token, channelID string) *SlackSender {
	return &SlackSender{client: slack.New(token), channelID: channelID}
}

// Name returns the channel name
func (s *SlackSender) Name() string { return "slack" }

// Send posts the alert and returns the message timestamp
func (s *SlackSender) Send(ctx context.Context, alert Alert) (string, error) {
	_, ts, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(alert.Markdown(), false),
	)
	if err != nil {
		return "", fmt.Errorf("failed to post Slack message: %w", err)
	}
	return ts, nil
}
