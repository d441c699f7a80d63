package core

import (
	"errors"
	"fmt"
)

// ErrNoSources is returned when none of the configured mailboxes could be opened
var ErrNoSources = errors.New("no mailbox sources could be initialized")

var errEmptyResult = errors.New("empty classification result")

// ConfigError reports missing or invalid configuration detected at startup
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

// FetchError is returned when a source cannot list messages
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ClassifyError is returned when a message cannot be classified
type ClassifyError struct {
	MessageID string
	Err       error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classification of message %s failed: %v", e.MessageID, e.Err)
}

func (e *ClassifyError) Unwrap() error { return e.Err }

// NotifyError is returned when an alert cannot be delivered
type NotifyError struct {
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notification via %s failed: %v", e.Channel, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// ActionError is returned when a mailbox action (mark read, move to junk) fails
type ActionError struct {
	Action    string
	MessageID string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s on message %s failed: %v", e.Action, e.MessageID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// PersistenceError is returned when the ledger cannot be read or written
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is, or wraps, a *PersistenceError
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
