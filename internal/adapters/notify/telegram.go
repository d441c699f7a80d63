package notify

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegramAPI is the part of *tgbotapi.BotAPI used for alerts
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender posts alerts to a Telegram chat using MarkdownV2
type TelegramSender struct {
	bot    telegramAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramSender connects to the Bot API with the given token
func NewTelegramSender(token string, chatID int64, logger *zap.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	logger.Info("Telegram alerts enabled",
		zap.String("bot", bot.Self.UserName),
		zap.Int64("chat_id", chatID))
	return newTelegramSender(bot, chatID, logger), nil
}

func newTelegramSender(bot telegramAPI, chatID int64, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, chatID: chatID, logger: logger}
}

// Name returns the channel name
func (s *TelegramSender) Name() string { return "telegram" }

// Send posts the alert. The Bot API client has no context support so
// cancellation is only checked before sending.
func (s *TelegramSender) Send(ctx context.Context, alert Alert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	msg := tgbotapi.NewMessage(s.chatID, alert.MarkdownV2())
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	sent, err := s.bot.Send(msg)
	if err != nil {
		return "", fmt.Errorf("failed to send Telegram message: %w", err)
	}
	return strconv.Itoa(sent.MessageID), nil
}
