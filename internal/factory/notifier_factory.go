package factory

import (
	"fmt"

	"github.com/mikey/mail-sentinel/internal/adapters/notify"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/credential"
	"go.uber.org/zap"
)

// NotifierFactory builds the alert channels named in notify.channels
type NotifierFactory struct {
	cfg    *config.Config
	store  credential.Store
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, store credential.Store, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// CreateNotifier creates the fan-out notifier. A channel that cannot be
// built fails startup so a misconfigured alert path is noticed early.
func (f *NotifierFactory) CreateNotifier() (*notify.AlertNotifier, error) {
	notifyCfg := f.cfg.GetNotify()

	senders := make([]notify.Sender, 0, len(notifyCfg.Channels))
	for _, ch := range notifyCfg.Channels {
		sender, err := f.createSender(ch, notifyCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s channel: %w", ch, err)
		}
		senders = append(senders, sender)
	}
	if len(senders) == 0 {
		f.logger.Warn("No alert channels configured, important messages are only logged")
		senders = append(senders, notify.NewLogSender(f.logger))
	}

	return notify.NewAlertNotifier(senders, notifyCfg.SummaryLimit, f.logger), nil
}

func (f *NotifierFactory) createSender(channel string, notifyCfg config.NotifyConfig) (notify.Sender, error) {
	switch channel {
	case "log":
		return notify.NewLogSender(f.logger), nil
	case "telegram":
		token, err := credential.Resolve(f.store, notifyCfg.Telegram.BotToken, credential.ChannelTokenKey(channel))
		if err != nil {
			return nil, err
		}
		return notify.NewTelegramSender(token, notifyCfg.Telegram.ChatID, f.logger)
	case "slack":
		token, err := credential.Resolve(f.store, notifyCfg.Slack.Token, credential.ChannelTokenKey(channel))
		if err != nil {
			return nil, err
		}
		return notify.NewSlackSender(token, notifyCfg.Slack.ChannelID), nil
	case "discord":
		token, err := credential.Resolve(f.store, notifyCfg.Discord.Token, credential.ChannelTokenKey(channel))
		if err != nil {
			return nil, err
		}
		return notify.NewDiscordSender(token, notifyCfg.Discord.ChannelID)
	case "smtp":
		smtpCfg := notifyCfg.SMTP
		password := smtpCfg.Password
		if smtpCfg.Username != "" {
			var err error
			if password, err = credential.Resolve(f.store, smtpCfg.Password, credential.ChannelTokenKey(channel)); err != nil {
				return nil, err
			}
		}
		return notify.NewSMTPSender(notify.SMTPOptions{
			Host:      smtpCfg.Host,
			Port:      smtpCfg.Port,
			Username:  smtpCfg.Username,
			Password:  password,
			From:      smtpCfg.From,
			To:        smtpCfg.To,
			StartTLS:  smtpCfg.StartTLS,
			ShortForm: smtpCfg.ShortForm,
		}, f.logger)
	default:
		return nil, fmt.Errorf("unsupported alert channel: %s", channel)
	}
}
