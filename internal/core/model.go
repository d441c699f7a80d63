package core

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the classification bucket assigned to a message
type Priority string

const (
	PriorityImportant Priority = "important"
	PriorityNormal    Priority = "normal"
	PriorityJunk      Priority = "junk"
)

// ParsePriority converts a model-supplied label into a Priority
func ParsePriority(s string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityImportant:
		return PriorityImportant, nil
	case PriorityNormal:
		return PriorityNormal, nil
	case PriorityJunk:
		return PriorityJunk, nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// Message represents an email message fetched from a mailbox source
type Message struct {
	ID         string
	Subject    string
	Sender     string
	Recipient  string
	Body       string
	ReceivedAt time.Time
	IsRead     bool
	// Provider is the name of the account that produced the message. Message IDs
	// are only unique within a provider.
	Provider string
}

// ClassificationResult represents the outcome of classifying a message
type ClassificationResult struct {
	Priority   Priority
	Confidence float64
	Reasoning  string
	Summary    string
	Model      string
}

// Validate checks that the result is well formed
func (r *ClassificationResult) Validate() error {
	if _, err := ParsePriority(string(r.Priority)); err != nil {
		return err
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}

// ProcessedRecord is the ledger entry written once a message has been handled
type ProcessedRecord struct {
	MessageID   string
	Provider    string
	Subject     string
	Sender      string
	ProcessedAt time.Time
}

// CycleReport summarises one polling cycle
type CycleReport struct {
	CycleID      string
	After        time.Time
	Fetched      int
	New          int
	Processed    int
	Failed       int
	SourceErrors int
}
