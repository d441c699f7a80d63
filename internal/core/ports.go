package core

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// ClassifyEmail asks the model for a priority verdict on a message
	ClassifyEmail(ctx context.Context, msg Message) (*ClassificationResult, error)
}

// Classifier assigns a priority to a message. Failures are reported as
// *ClassifyError and a returned result is always valid.
type Classifier interface {
	Classify(ctx context.Context, msg Message) (*ClassificationResult, error)
}

// Notifier delivers an alert for an important message. An empty id with a nil
// error means the alert was not delivered.
type Notifier interface {
	Notify(ctx context.Context, msg Message, result ClassificationResult) (string, error)
}

// MailboxSource abstracts a single configured mail account
type MailboxSource interface {
	// Name returns the account name, used as the ledger provider key
	Name() string

	// ListAfter returns messages received strictly after the given instant
	ListAfter(ctx context.Context, after time.Time, unreadOnly bool) ([]Message, error)

	// MarkRead flags a message as read
	MarkRead(ctx context.Context, id string) error

	// MoveToJunk moves a message to the account's junk location
	MoveToJunk(ctx context.Context, id string) error

	// Close releases the connection to the provider
	Close() error
}

// Ledger durably records processed messages and the monitoring timestamps.
// Every write is committed before the call returns.
type Ledger interface {
	// IsProcessed reports whether a record exists for the key
	IsProcessed(ctx context.Context, provider, id string) (bool, error)

	// MarkProcessed inserts a record; an existing key is left untouched
	MarkProcessed(ctx context.Context, rec ProcessedRecord) error

	// StartTime returns the first-run timestamp, if set
	StartTime(ctx context.Context) (time.Time, bool, error)

	// SetStartTime stores the first-run timestamp
	SetStartTime(ctx context.Context, t time.Time) error

	// LastCheck returns the cursor of the last successful cycle, if any
	LastCheck(ctx context.Context) (time.Time, bool, error)

	// SetLastCheck overwrites the cursor
	SetLastCheck(ctx context.Context, t time.Time) error

	// CountProcessed returns the number of records
	CountProcessed(ctx context.Context) (int64, error)

	// Close releases the underlying store
	Close() error
}

// Mailbox pairs a source with its account-level fetch preference
type Mailbox struct {
	Source     MailboxSource
	UnreadOnly bool
}
