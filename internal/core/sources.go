package core

import (
	"context"

	"go.uber.org/zap"
)

// SourceConstructor opens the mailbox for one configured account
type SourceConstructor struct {
	Name       string
	UnreadOnly bool
	Open       func(ctx context.Context) (MailboxSource, error)
}

// OpenSources opens every configured account. Accounts that fail are logged
// and skipped; ErrNoSources is returned only when none could be opened.
func OpenSources(ctx context.Context, logger *zap.Logger, ctors []SourceConstructor) ([]Mailbox, error) {
	var mailboxes []Mailbox
	for _, c := range ctors {
		src, err := c.Open(ctx)
		if err != nil {
			logger.Error("Failed to initialize client for account",
				zap.String("account", c.Name),
				zap.Error(err))
			continue
		}
		logger.Info("Initialized mailbox client",
			zap.String("account", c.Name),
			zap.Bool("unread_only", c.UnreadOnly))
		mailboxes = append(mailboxes, Mailbox{Source: src, UnreadOnly: c.UnreadOnly})
	}

	if len(mailboxes) == 0 {
		return nil, ErrNoSources
	}
	if len(mailboxes) < len(ctors) {
		logger.Warn("Some accounts could not be initialized",
			zap.Int("configured", len(ctors)),
			zap.Int("active", len(mailboxes)))
	}
	return mailboxes, nil
}
