// Package gmailsource implements a mailbox source over the Gmail API.
package gmailsource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mikey/mail-sentinel/internal/adapters/mimetext"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/rate"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	labelInbox  = "INBOX"
	labelUnread = "UNREAD"
)

// Options configures a Gmail account
type Options struct {
	Name              string
	CredentialsFile   string
	TokenFile         string
	JunkLabel         string
	RequestsPerSecond float64
}

// Source is a core.MailboxSource for one Gmail account
type Source struct {
	name      string
	junkLabel string
	api       api
	limiter   rate.Limiter
	stop      func()
	logger    *zap.Logger

	mu          sync.Mutex
	junkLabelID string
}

// New builds a source from the OAuth client secret and a stored token
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Source, error) {
	cfg, err := oauthConfig(opts.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(opts.TokenFile)
	if err != nil {
		return nil, err
	}
	ts := &persistingTokenSource{
		base: cfg.TokenSource(context.Background(), tok),
		path: opts.TokenFile,
		last: tok.AccessToken,
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauth2.ReuseTokenSource(tok, ts)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	bucket := rate.NewTokenBucket(rps, int(rps)+1)
	return newSource(opts, &googleAPI{svc: svc}, bucket, bucket.Stop, logger), nil
}

func newSource(opts Options, client api, limiter rate.Limiter, stop func(), logger *zap.Logger) *Source {
	junk := opts.JunkLabel
	if junk == "" {
		junk = "Junk"
	}
	if stop == nil {
		stop = func() {}
	}
	return &Source{
		name:      opts.Name,
		junkLabel: junk,
		api:       client,
		limiter:   limiter,
		stop:      stop,
		logger:    logger.With(zap.String("account", opts.Name)),
	}
}

// Name returns the account name
func (s *Source) Name() string { return s.name }

// Query builds the Gmail search used for a fetch
func Query(after time.Time, unreadOnly bool) string {
	parts := []string{fmt.Sprintf("after:%d", after.Unix())}
	if unreadOnly {
		parts = append(parts, "is:unread")
	}
	parts = append(parts, "in:inbox")
	return strings.Join(parts, " ")
}

// ListAfter returns inbox messages received strictly after the instant.
// Messages that cannot be fetched individually are skipped.
func (s *Source) ListAfter(ctx context.Context, after time.Time, unreadOnly bool) ([]core.Message, error) {
	query := Query(after, unreadOnly)
	s.logger.Debug("Gmail query", zap.String("query", query))

	var ids []string
	pageToken := ""
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, next, err := s.api.List(ctx, query, pageToken)
		if err != nil {
			return nil, fmt.Errorf("listing messages: %w", err)
		}
		ids = append(ids, page...)
		if next == "" {
			break
		}
		pageToken = next
	}

	msgs := make([]core.Message, 0, len(ids))
	for _, id := range ids {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		raw, err := s.api.GetRaw(ctx, id)
		if err != nil {
			s.logger.Error("Failed to get message details, it will not be retried",
				zap.String("account", s.name),
				zap.String("message_id", id),
				zap.Error(err))
			continue
		}
		msg := s.toMessage(raw)
		// after: has second granularity
		if !msg.ReceivedAt.After(after) {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// MarkRead removes the UNREAD label
func (s *Source) MarkRead(ctx context.Context, id string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.api.Modify(ctx, id, nil, []string{labelUnread}); err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// MoveToJunk labels the message as junk and removes it from the inbox. The
// label is created on first use.
func (s *Source) MoveToJunk(ctx context.Context, id string) error {
	labelID, err := s.ensureJunkLabel(ctx)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.api.Modify(ctx, id, []string{labelID}, []string{labelInbox}); err != nil {
		return fmt.Errorf("failed to move email to junk: %w", err)
	}
	s.logger.Info("Moved message to junk label",
		zap.String("message_id", id),
		zap.String("label", s.junkLabel))
	return nil
}

// Close stops the rate limiter
func (s *Source) Close() error {
	s.stop()
	return nil
}

func (s *Source) ensureJunkLabel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.junkLabelID != "" {
		return s.junkLabelID, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err := s.api.EnsureLabel(ctx, s.junkLabel)
	if err != nil {
		return "", fmt.Errorf("failed to create junk label: %w", err)
	}
	s.junkLabelID = id
	return id, nil
}

func (s *Source) toMessage(raw rawMessage) core.Message {
	msg := core.Message{
		ID:         raw.ID,
		Provider:   s.name,
		IsRead:     true,
		ReceivedAt: time.UnixMilli(raw.InternalDate).UTC(),
	}
	for _, l := range raw.LabelIDs {
		if l == labelUnread {
			msg.IsRead = false
		}
	}

	parsed, err := mimetext.Parse(raw.Raw)
	if err != nil {
		s.logger.Warn("Failed to parse message",
			zap.String("message_id", raw.ID),
			zap.Error(err))
		msg.Body = string(raw.Raw)
		return msg
	}
	msg.Subject = parsed.Subject
	msg.Sender = parsed.From
	msg.Recipient = parsed.To
	msg.Body = parsed.Body
	return msg
}
