package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/mikey/mail-sentinel/internal/core"
	"go.uber.org/zap"
)

// Sender delivers an alert on one channel and returns the channel's delivery id
type Sender interface {
	Name() string
	Send(ctx context.Context, alert Alert) (string, error)
}

// AlertNotifier fans an important-message alert out to every configured channel
type AlertNotifier struct {
	senders      []Sender
	summaryLimit int
	logger       *zap.Logger
}

// NewAlertNotifier creates a notifier over the given channels
func NewAlertNotifier(senders []Sender, summaryLimit int, logger *zap.Logger) *AlertNotifier {
	return &AlertNotifier{
		senders:      senders,
		summaryLimit: summaryLimit,
		logger:       logger,
	}
}

// Notify sends the alert on every channel. It succeeds when at least one
// channel delivered; the returned id lists each delivery as channel:id.
func (n *AlertNotifier) Notify(ctx context.Context, msg core.Message, result core.ClassificationResult) (string, error) {
	alert := NewAlert(msg, result, n.summaryLimit)

	var ids []string
	var errs []error
	for _, s := range n.senders {
		id, err := s.Send(ctx, alert)
		if err != nil {
			nerr := &core.NotifyError{Channel: s.Name(), Err: err}
			n.logger.Warn("Failed to deliver alert",
				zap.String("channel", s.Name()),
				zap.String("message_id", msg.ID),
				zap.Error(nerr))
			errs = append(errs, nerr)
			continue
		}
		ids = append(ids, s.Name()+":"+id)
	}

	if len(ids) == 0 && len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return strings.Join(ids, ","), nil
}

// LogSender writes alerts to the log only, for dry runs
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only channel
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name returns the channel name
func (s *LogSender) Name() string { return "log" }

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, alert Alert) (string, error) {
	s.logger.Info("Important email alert",
		zap.String("account", alert.Account),
		zap.String("message_id", alert.MessageID),
		zap.String("sender", alert.Sender),
		zap.String("subject", alert.Subject),
		zap.String("summary", alert.Summary))
	return alert.MessageID, nil
}
