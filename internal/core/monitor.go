package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle phase of a Monitor
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateSleeping
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MonitorSettings holds the immutable loop configuration
type MonitorSettings struct {
	PollInterval time.Duration
	MaxLookback  time.Duration
	// CallTimeout bounds every call into a source, the classifier, the notifier
	// and the ledger. A timeout is handled exactly like any other error.
	CallTimeout time.Duration
}

// MonitorOption customises a Monitor
type MonitorOption func(*Monitor)

// WithClock replaces the wall clock. The returned times are normalised to UTC.
func WithClock(now func() time.Time) MonitorOption {
	return func(m *Monitor) {
		m.now = func() time.Time { return now().UTC() }
	}
}

// WithCycleIDs replaces the cycle id generator
func WithCycleIDs(next func() string) MonitorOption {
	return func(m *Monitor) {
		m.newID = next
	}
}

// Monitor polls every mailbox, classifies new messages, acts on them and
// records them in the ledger so that each message is handled once.
type Monitor struct {
	mailboxes  []Mailbox
	classifier Classifier
	notifier   Notifier
	ledger     Ledger
	logger     *zap.Logger
	settings   MonitorSettings
	now        func() time.Time
	newID      func() string

	state  atomic.Int32
	cursor time.Time
}

// NewMonitor creates a new monitor
func NewMonitor(
	mailboxes []Mailbox,
	classifier Classifier,
	notifier Notifier,
	ledger Ledger,
	logger *zap.Logger,
	settings MonitorSettings,
	opts ...MonitorOption,
) *Monitor {
	m := &Monitor{
		mailboxes:  mailboxes,
		classifier: classifier,
		notifier:   notifier,
		ledger:     ledger,
		logger:     logger,
		settings:   settings,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.setState(StateInitializing)
	return m
}

// State returns the current lifecycle phase
func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
}

// Cursor returns the lower bound used by the next cycle before the lookback cap
func (m *Monitor) Cursor() time.Time {
	return m.cursor
}

// Init establishes the monitoring start time on first run and loads the cursor
func (m *Monitor) Init(ctx context.Context) error {
	m.setState(StateInitializing)

	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	start, ok, err := m.ledger.StartTime(callCtx)
	if err != nil {
		return persistenceError("read start time", err)
	}
	if !ok {
		start = m.now()
		if err := m.ledger.SetStartTime(callCtx, start); err != nil {
			return persistenceError("write start time", err)
		}
		m.logger.Info("First run detected, setting monitoring start time",
			zap.Time("start_time", start))
		m.logger.Info("Only emails received after the start time will be processed")
	} else {
		m.logger.Info("Resuming monitoring", zap.Time("start_time", start))
	}

	m.cursor = start
	last, ok, err := m.ledger.LastCheck(callCtx)
	if err != nil {
		return persistenceError("read last check", err)
	}
	if ok {
		m.cursor = last
	}
	m.logger.Info("Loaded monitoring cursor", zap.Time("last_check", m.cursor))

	count, err := m.ledger.CountProcessed(callCtx)
	if err != nil {
		m.logger.Warn("Failed to count processed emails", zap.Error(err))
	} else {
		m.logger.Info("Emails processed in previous runs", zap.Int64("count", count))
	}
	return nil
}

// Run initializes the monitor and polls until ctx is cancelled. Cancellation is
// only observed between cycles and while sleeping. All sources and the ledger
// are closed before Run returns.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.shutdown()

	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}

	m.logger.Info("Starting mail monitor",
		zap.Int("mailboxes", len(m.mailboxes)),
		zap.Duration("poll_interval", m.settings.PollInterval),
		zap.Duration("max_lookback", m.settings.MaxLookback))

	for ctx.Err() == nil {
		m.setState(StateRunning)
		if _, err := m.safeCycle(ctx); err != nil {
			m.logger.Error("Unexpected error in monitoring loop", zap.Error(err))
			if ctx.Err() == nil {
				m.logger.Warn("Will retry after poll interval",
					zap.Duration("poll_interval", m.settings.PollInterval))
			}
		}
		if ctx.Err() != nil {
			break
		}
		m.sleep(ctx)
	}

	m.logger.Info("Monitoring loop ended, cleaning up")
	return nil
}

// safeCycle runs one cycle and converts a panic into an error
func (m *Monitor) safeCycle(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in monitoring cycle: %v", r)
		}
	}()
	return m.RunCycle(ctx)
}

// RunCycle performs a single polling pass over every mailbox. Source and
// per-message failures are logged and absorbed; a ledger failure aborts the
// cycle and leaves the cursor where it was.
func (m *Monitor) RunCycle(ctx context.Context) (CycleReport, error) {
	cycleStart := m.now()
	after := m.effectiveAfter(cycleStart)
	report := CycleReport{CycleID: m.newID(), After: after}
	logger := m.logger.With(zap.String("cycle_id", report.CycleID))

	logger.Info("Checking for new emails", zap.Time("after", after))

	for _, mb := range m.mailboxes {
		msgs, err := m.fetch(ctx, logger, mb, after)
		if err != nil {
			report.SourceErrors++
			continue
		}
		report.Fetched += len(msgs)

		fresh, err := m.filterNew(ctx, mb.Source, msgs)
		if err != nil {
			return report, err
		}
		if len(fresh) == 0 {
			continue
		}
		logger.Info("Found new emails",
			zap.String("source", mb.Source.Name()),
			zap.Int("count", len(fresh)))
		report.New += len(fresh)

		for _, msg := range fresh {
			ok, err := m.processMessage(ctx, logger, mb.Source, msg)
			if err != nil {
				return report, err
			}
			if ok {
				report.Processed++
			} else {
				report.Failed++
			}
		}
	}

	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.ledger.SetLastCheck(callCtx, cycleStart); err != nil {
		return report, persistenceError("write last check", err)
	}
	m.cursor = cycleStart

	if report.New == 0 {
		logger.Info("No new emails to process")
	} else {
		logger.Info("Cycle complete",
			zap.Int("processed", report.Processed),
			zap.Int("new", report.New),
			zap.Int("failed", report.Failed))
	}
	logger.Debug("Updated last check time", zap.Time("last_check", cycleStart))
	return report, nil
}

// effectiveAfter clamps the cursor to the lookback window
func (m *Monitor) effectiveAfter(now time.Time) time.Time {
	if m.settings.MaxLookback <= 0 {
		return m.cursor
	}
	floor := now.Add(-m.settings.MaxLookback)
	if m.cursor.Before(floor) {
		m.logger.Debug("Adjusting cursor to max lookback",
			zap.Time("cursor", m.cursor),
			zap.Time("max_lookback", floor))
		return floor
	}
	return m.cursor
}

func (m *Monitor) fetch(ctx context.Context, logger *zap.Logger, mb Mailbox, after time.Time) ([]Message, error) {
	name := mb.Source.Name()
	logger.Debug("Fetching emails",
		zap.String("source", name),
		zap.Time("after", after),
		zap.Bool("unread_only", mb.UnreadOnly))

	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	msgs, err := mb.Source.ListAfter(callCtx, after, mb.UnreadOnly)
	if err != nil {
		ferr := &FetchError{Source: name, Err: err}
		logger.Error("Failed to fetch emails", zap.String("source", name), zap.Error(ferr))
		return nil, ferr
	}

	// Sources may query at coarser granularity than the cursor (IMAP SINCE
	// is day-based), so the window is enforced here as well.
	inWindow := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.ReceivedAt.After(after) {
			continue
		}
		inWindow = append(inWindow, msg)
	}
	logger.Debug("Source returned emails",
		zap.String("source", name),
		zap.Int("returned", len(msgs)),
		zap.Int("in_window", len(inWindow)))
	return inWindow, nil
}

// filterNew drops messages already present in the ledger and duplicates within the batch
func (m *Monitor) filterNew(ctx context.Context, src MailboxSource, msgs []Message) ([]Message, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	seen := make(map[string]struct{}, len(msgs))
	var fresh []Message
	for _, msg := range msgs {
		if _, dup := seen[msg.ID]; dup {
			continue
		}
		seen[msg.ID] = struct{}{}

		done, err := m.ledger.IsProcessed(callCtx, providerOf(src, msg), msg.ID)
		if err != nil {
			return nil, persistenceError("read processed", err)
		}
		if !done {
			fresh = append(fresh, msg)
		}
	}
	return fresh, nil
}

// processMessage classifies and acts on one message, then records it. The
// record is written even when classification failed so that a message that
// always fails is attempted once instead of on every cycle. The bool reports
// whether classification succeeded; the error is non-nil only when the ledger
// write failed.
func (m *Monitor) processMessage(ctx context.Context, logger *zap.Logger, src MailboxSource, msg Message) (bool, error) {
	provider := providerOf(src, msg)
	logger = logger.With(zap.String("provider", provider), zap.String("message_id", msg.ID))
	logger.Info("Processing email",
		zap.String("sender", msg.Sender),
		zap.String("subject", preview(msg.Subject, 50)))

	rec := ProcessedRecord{MessageID: msg.ID, Provider: provider}

	result, err := m.classify(ctx, msg)
	classified := err == nil
	if !classified {
		logger.Error("Failed to classify email", zap.Error(err))
		logger.Warn("Marking email as processed despite error to avoid retry loops")
	} else {
		logger.Info("Classification complete",
			zap.String("priority", string(result.Priority)),
			zap.Float64("confidence", result.Confidence),
			zap.String("summary", preview(result.Summary, 100)))
		m.act(ctx, logger, src, msg, *result)

		if !msg.IsRead {
			callCtx, cancel := m.callContext(ctx)
			if err := src.MarkRead(callCtx, msg.ID); err != nil {
				logger.Warn("Failed to mark email as read",
					zap.Error(&ActionError{Action: "mark read", MessageID: msg.ID, Err: err}))
			} else {
				logger.Debug("Marked email as read")
			}
			cancel()
		}
		rec.Subject = msg.Subject
		rec.Sender = msg.Sender
	}

	rec.ProcessedAt = m.now()
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	if err := m.ledger.MarkProcessed(callCtx, rec); err != nil {
		logger.Error("Failed to mark email as processed", zap.Error(err))
		return false, persistenceError("mark processed", err)
	}
	logger.Info("Email recorded as processed")
	return classified, nil
}

func (m *Monitor) classify(ctx context.Context, msg Message) (*ClassificationResult, error) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	result, err := m.classifier.Classify(callCtx, msg)
	if err != nil {
		var ce *ClassifyError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ClassifyError{MessageID: msg.ID, Err: err}
	}
	if result == nil {
		return nil, &ClassifyError{MessageID: msg.ID, Err: errEmptyResult}
	}
	if err := result.Validate(); err != nil {
		return nil, &ClassifyError{MessageID: msg.ID, Err: err}
	}
	return result, nil
}

// act dispatches the side effect for a classification. Failures are logged only.
func (m *Monitor) act(ctx context.Context, logger *zap.Logger, src MailboxSource, msg Message, result ClassificationResult) {
	callCtx, cancel := m.callContext(ctx)
	defer cancel()

	switch result.Priority {
	case PriorityJunk:
		logger.Info("Email classified as junk, moving to junk folder")
		if err := src.MoveToJunk(callCtx, msg.ID); err != nil {
			logger.Error("Failed to move email to junk",
				zap.Error(&ActionError{Action: "move to junk", MessageID: msg.ID, Err: err}))
			return
		}
		logger.Info("Email moved to junk folder")
	case PriorityImportant:
		logger.Info("Email classified as important, sending notification")
		id, err := m.notifier.Notify(callCtx, msg, result)
		if err != nil {
			var ne *NotifyError
			if !errors.As(err, &ne) {
				err = &NotifyError{Channel: "notifier", Err: err}
			}
			logger.Error("Error sending notification", zap.Error(err))
			return
		}
		if id == "" {
			logger.Warn("Failed to send notification for important email")
			return
		}
		logger.Info("Notification sent", zap.String("delivery_id", id))
	default:
		logger.Info("No action needed", zap.String("priority", string(result.Priority)))
	}
}

func (m *Monitor) sleep(ctx context.Context) {
	m.setState(StateSleeping)
	m.logger.Debug("Sleeping", zap.Duration("poll_interval", m.settings.PollInterval))

	timer := time.NewTimer(m.settings.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (m *Monitor) shutdown() {
	m.setState(StateShuttingDown)
	for _, mb := range m.mailboxes {
		if err := mb.Source.Close(); err != nil {
			m.logger.Warn("Failed to close mailbox", zap.String("source", mb.Source.Name()), zap.Error(err))
		}
	}
	if err := m.ledger.Close(); err != nil {
		m.logger.Error("Failed to close ledger", zap.Error(err))
	}
	m.setState(StateStopped)
	m.logger.Info("Monitor stopped")
}

// callContext derives a context for one external call. It is detached from
// shutdown so that a message is never abandoned halfway through processing.
func (m *Monitor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if m.settings.CallTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, m.settings.CallTimeout)
}

func providerOf(src MailboxSource, msg Message) string {
	if msg.Provider != "" {
		return msg.Provider
	}
	return src.Name()
}

func persistenceError(op string, err error) error {
	if IsPersistence(err) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
