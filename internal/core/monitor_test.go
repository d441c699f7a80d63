package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeSource struct {
	name      string
	msgs      []Message
	listErr   error
	listCalls []time.Time
	unread    []bool
	markRead  []string
	moved     []string
	moveErr   error
	closed    bool
	onList    func()
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListAfter(ctx context.Context, after time.Time, unreadOnly bool) ([]Message, error) {
	_ = ctx
	f.listCalls = append(f.listCalls, after)
	f.unread = append(f.unread, unreadOnly)
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Message(nil), f.msgs...), nil
}

func (f *fakeSource) MarkRead(ctx context.Context, id string) error {
	_ = ctx
	f.markRead = append(f.markRead, id)
	return nil
}

func (f *fakeSource) MoveToJunk(ctx context.Context, id string) error {
	_ = ctx
	f.moved = append(f.moved, id)
	return f.moveErr
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

type fakeClassifier struct {
	results map[string]ClassificationResult
	err     error
	calls   []string
}

func (f *fakeClassifier) Classify(ctx context.Context, msg Message) (*ClassificationResult, error) {
	_ = ctx
	f.calls = append(f.calls, msg.ID)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[msg.ID]; ok {
		return &r, nil
	}
	return &ClassificationResult{Priority: PriorityNormal, Confidence: 0.5}, nil
}

type fakeNotifier struct {
	sent []Message
	id   string
	err  error
}

func (f *fakeNotifier) Notify(ctx context.Context, msg Message, result ClassificationResult) (string, error) {
	_ = ctx
	_ = result
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

type fakeLedger struct {
	records  map[string]ProcessedRecord
	start    *time.Time
	last     *time.Time
	markErr  error
	closed   bool
	setLasts int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]ProcessedRecord)}
}

func (l *fakeLedger) IsProcessed(ctx context.Context, provider, id string) (bool, error) {
	_ = ctx
	_, ok := l.records[provider+"/"+id]
	return ok, nil
}

func (l *fakeLedger) MarkProcessed(ctx context.Context, rec ProcessedRecord) error {
	_ = ctx
	if l.markErr != nil {
		return l.markErr
	}
	key := rec.Provider + "/" + rec.MessageID
	if _, ok := l.records[key]; !ok {
		l.records[key] = rec
	}
	return nil
}

func (l *fakeLedger) StartTime(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	if l.start == nil {
		return time.Time{}, false, nil
	}
	return *l.start, true, nil
}

func (l *fakeLedger) SetStartTime(ctx context.Context, t time.Time) error {
	_ = ctx
	l.start = &t
	return nil
}

func (l *fakeLedger) LastCheck(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	if l.last == nil {
		return time.Time{}, false, nil
	}
	return *l.last, true, nil
}

func (l *fakeLedger) SetLastCheck(ctx context.Context, t time.Time) error {
	_ = ctx
	l.setLasts++
	l.last = &t
	return nil
}

func (l *fakeLedger) CountProcessed(ctx context.Context) (int64, error) {
	_ = ctx
	return int64(len(l.records)), nil
}

func (l *fakeLedger) Close() error {
	l.closed = true
	return nil
}

type harness struct {
	clock      *fakeClock
	classifier *fakeClassifier
	notifier   *fakeNotifier
	ledger     *fakeLedger
}

func newHarness() *harness {
	return &harness{
		clock:      &fakeClock{t: baseTime},
		classifier: &fakeClassifier{results: map[string]ClassificationResult{}},
		notifier:   &fakeNotifier{id: "delivery-1"},
		ledger:     newFakeLedger(),
	}
}

func (h *harness) monitor(t *testing.T, logger *zap.Logger, sources ...*fakeSource) *Monitor {
	t.Helper()
	var mailboxes []Mailbox
	for _, s := range sources {
		mailboxes = append(mailboxes, Mailbox{Source: s, UnreadOnly: true})
	}
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	n := 0
	return NewMonitor(mailboxes, h.classifier, h.notifier, h.ledger, logger,
		MonitorSettings{PollInterval: 10 * time.Millisecond, MaxLookback: 24 * time.Hour, CallTimeout: time.Second},
		WithClock(h.clock.Now),
		WithCycleIDs(func() string { n++; return fmt.Sprintf("cycle-%d", n) }))
}

func TestRunCycleImportantMessage(t *testing.T) {
	h := newHarness()
	src := &fakeSource{name: "x"}
	m := h.monitor(t, nil, src)
	ctx := context.Background()

	if err := m.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)
	src.msgs = []Message{{ID: "42", Provider: "x", Subject: "Invoice", Sender: "boss@example.com", ReceivedAt: h.clock.Now().Add(-time.Second)}}
	h.classifier.results["42"] = ClassificationResult{Priority: PriorityImportant, Confidence: 0.9}

	report, err := m.RunCycle(ctx)
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(h.notifier.sent) != 1 || h.notifier.sent[0].ID != "42" {
		t.Fatalf("expected one notification for 42, got %v", h.notifier.sent)
	}
	if len(src.markRead) != 1 || src.markRead[0] != "42" {
		t.Fatalf("expected mark read on 42, got %v", src.markRead)
	}
	if ok, _ := h.ledger.IsProcessed(ctx, "x", "42"); !ok {
		t.Fatal("expected 42 to be recorded as processed")
	}
	if h.ledger.last == nil || !h.ledger.last.Equal(h.clock.Now()) {
		t.Fatalf("expected last check %v, got %v", h.clock.Now(), h.ledger.last)
	}
	if report.Processed != 1 || report.New != 1 || report.CycleID != "cycle-1" {
		t.Fatalf("unexpected report %+v", report)
	}
	rec := h.ledger.records["x/42"]
	if rec.Subject != "Invoice" || rec.Sender != "boss@example.com" {
		t.Fatalf("expected record metadata, got %+v", rec)
	}
}

func TestInitSetsStartTimeOnce(t *testing.T) {
	h := newHarness()
	m := h.monitor(t, nil)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	first := *h.ledger.start

	h.clock.Advance(time.Hour)
	m2 := h.monitor(t, nil)
	if err := m2.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !h.ledger.start.Equal(first) {
		t.Fatalf("expected start time to stay %v, got %v", first, *h.ledger.start)
	}
	if !m2.Cursor().Equal(first) {
		t.Fatalf("expected cursor to be start time, got %v", m2.Cursor())
	}
}

func TestFirstRunSkipsBacklog(t *testing.T) {
	h := newHarness()
	src := &fakeSource{name: "x"}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	h.clock.Advance(time.Minute)
	src.msgs = []Message{
		{ID: "old", Provider: "x", ReceivedAt: baseTime.Add(-time.Hour)},
		{ID: "edge", Provider: "x", ReceivedAt: baseTime},
		{ID: "new", Provider: "x", ReceivedAt: baseTime.Add(time.Second)},
	}

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(h.classifier.calls) != 1 || h.classifier.calls[0] != "new" {
		t.Fatalf("expected only new message classified, got %v", h.classifier.calls)
	}
	if !src.listCalls[0].Equal(baseTime) {
		t.Fatalf("expected query after start time %v, got %v", baseTime, src.listCalls[0])
	}
}

func TestLookbackCap(t *testing.T) {
	h := newHarness()
	old := baseTime.Add(-72 * time.Hour)
	h.ledger.start = &old
	h.ledger.last = &old
	src := &fakeSource{name: "x"}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	report, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	want := baseTime.Add(-24 * time.Hour)
	if !report.After.Equal(want) || !src.listCalls[0].Equal(want) {
		t.Fatalf("expected boundary %v, got report %v source %v", want, report.After, src.listCalls[0])
	}
}

func TestRestartDoesNotReprocess(t *testing.T) {
	h := newHarness()
	msg := Message{ID: "7", Provider: "x", ReceivedAt: baseTime.Add(time.Second)}
	src := &fakeSource{name: "x", msgs: []Message{msg}}
	h.classifier.results["7"] = ClassificationResult{Priority: PriorityJunk, Confidence: 0.95}

	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)
	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	// restart with the cursor rewound so the message is returned again
	h.ledger.last = nil
	src2 := &fakeSource{name: "x", msgs: []Message{msg}}
	m2 := h.monitor(t, nil, src2)
	if err := m2.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)
	report, err := m2.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}

	if len(h.classifier.calls) != 1 {
		t.Fatalf("expected a single classification across restarts, got %v", h.classifier.calls)
	}
	if len(src.moved) != 1 || len(src2.moved) != 0 {
		t.Fatalf("expected one junk move, got %v and %v", src.moved, src2.moved)
	}
	if report.Fetched != 1 || report.New != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestPartialSourceFailure(t *testing.T) {
	h := newHarness()
	a := &fakeSource{name: "a", listErr: errors.New("connection refused")}
	b := &fakeSource{name: "b", msgs: []Message{{ID: "msg1", Provider: "b", ReceivedAt: baseTime.Add(time.Second)}}}
	core, logs := observer.New(zap.InfoLevel)
	m := h.monitor(t, zap.New(core), a, b)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)

	report, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(h.classifier.calls) != 1 || h.classifier.calls[0] != "msg1" {
		t.Fatalf("expected msg1 to be classified, got %v", h.classifier.calls)
	}
	if h.ledger.last == nil || !h.ledger.last.Equal(h.clock.Now()) {
		t.Fatalf("expected last check to advance, got %v", h.ledger.last)
	}
	if report.SourceErrors != 1 {
		t.Fatalf("expected one source error, got %d", report.SourceErrors)
	}
	entries := logs.FilterMessage("Failed to fetch emails").All()
	if len(entries) != 1 {
		t.Fatalf("expected fetch failure to be logged, got %d entries", len(entries))
	}
	if got := entries[0].ContextMap()["source"]; got != "a" {
		t.Fatalf("expected failure logged for source a, got %v", got)
	}
}

func TestPoisonMessageRecordedOnce(t *testing.T) {
	h := newHarness()
	h.classifier.err = errors.New("model unavailable")
	src := &fakeSource{name: "x", msgs: []Message{{ID: "bad", Provider: "x", Subject: "s", ReceivedAt: baseTime.Add(time.Second)}}}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	h.clock.Advance(time.Minute)
	report, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("expected one failed message, got %+v", report)
	}
	rec, ok := h.ledger.records["x/bad"]
	if !ok {
		t.Fatal("expected poison message to be recorded")
	}
	if rec.Subject != "" || rec.Sender != "" {
		t.Fatalf("expected empty metadata on failure, got %+v", rec)
	}
	if len(src.markRead) != 0 {
		t.Fatalf("expected message to stay unread, got %v", src.markRead)
	}

	// rewind so the source returns it again
	m.cursor = baseTime
	h.clock.Advance(time.Minute)
	report, err = m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(h.classifier.calls) != 1 || report.New != 0 {
		t.Fatalf("expected no second attempt, got calls %v report %+v", h.classifier.calls, report)
	}
}

func TestJunkMessageMovedNotNotified(t *testing.T) {
	h := newHarness()
	src := &fakeSource{name: "x", msgs: []Message{{ID: "spam", Provider: "x", ReceivedAt: baseTime.Add(time.Second)}}}
	h.classifier.results["spam"] = ClassificationResult{Priority: PriorityJunk, Confidence: 0.99}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(src.moved) != 1 || src.moved[0] != "spam" {
		t.Fatalf("expected junk move, got %v", src.moved)
	}
	if len(h.notifier.sent) != 0 {
		t.Fatalf("expected no notification, got %v", h.notifier.sent)
	}
}

func TestActionFailuresDoNotBlockRecording(t *testing.T) {
	h := newHarness()
	h.notifier.err = errors.New("telegram down")
	src := &fakeSource{
		name:    "x",
		moveErr: errors.New("no such folder"),
		msgs: []Message{
			{ID: "a", Provider: "x", ReceivedAt: baseTime.Add(time.Second)},
			{ID: "b", Provider: "x", ReceivedAt: baseTime.Add(2 * time.Second), IsRead: true},
		},
	}
	h.classifier.results["a"] = ClassificationResult{Priority: PriorityImportant, Confidence: 0.9}
	h.classifier.results["b"] = ClassificationResult{Priority: PriorityJunk, Confidence: 0.9}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)

	report, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if report.Processed != 2 || len(h.ledger.records) != 2 {
		t.Fatalf("expected both messages recorded, got %+v", report)
	}
	if len(src.markRead) != 1 || src.markRead[0] != "a" {
		t.Fatalf("expected only unread message marked read, got %v", src.markRead)
	}
}

func TestPersistenceFailureKeepsCursor(t *testing.T) {
	h := newHarness()
	src := &fakeSource{name: "x", msgs: []Message{{ID: "1", Provider: "x", ReceivedAt: baseTime.Add(time.Second)}}}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.ledger.markErr = errors.New("disk full")
	h.clock.Advance(time.Minute)

	_, err := m.RunCycle(context.Background())
	if !IsPersistence(err) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if h.ledger.setLasts != 0 {
		t.Fatalf("expected last check untouched, got %d writes", h.ledger.setLasts)
	}
	if !m.Cursor().Equal(baseTime) {
		t.Fatalf("expected cursor %v, got %v", baseTime, m.Cursor())
	}
}

func TestDuplicateIDsInBatch(t *testing.T) {
	h := newHarness()
	msg := Message{ID: "dup", Provider: "x", ReceivedAt: baseTime.Add(time.Second)}
	src := &fakeSource{name: "x", msgs: []Message{msg, msg}}
	m := h.monitor(t, nil, src)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	h.clock.Advance(time.Minute)

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle failed: %v", err)
	}
	if len(h.classifier.calls) != 1 {
		t.Fatalf("expected one classification, got %v", h.classifier.calls)
	}
}

func TestRunStopsAtCycleBoundary(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{
		name:   "x",
		msgs:   []Message{{ID: "1", Provider: "x", ReceivedAt: baseTime.Add(time.Second)}},
		onList: cancel,
	}
	// the message must be newer than the start time chosen by Init
	h.clock.Advance(-time.Minute)
	m := h.monitor(t, nil, src)

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(h.classifier.calls) != 1 {
		t.Fatalf("expected the in-flight message to finish, got %v", h.classifier.calls)
	}
	if len(src.listCalls) != 1 {
		t.Fatalf("expected a single cycle, got %d", len(src.listCalls))
	}
	if !src.closed || !h.ledger.closed {
		t.Fatal("expected sources and ledger to be closed")
	}
	if m.State() != StateStopped {
		t.Fatalf("expected stopped state, got %s", m.State())
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	src := &fakeSource{name: "x"}
	src.onList = func() {
		calls++
		if calls == 1 {
			panic("boom")
		}
		cancel()
	}
	m := h.monitor(t, nil, src)

	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected loop to continue after panic, got %d cycles", calls)
	}
}

func TestOpenSources(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ok := SourceConstructor{Name: "ok", UnreadOnly: true, Open: func(ctx context.Context) (MailboxSource, error) {
		return &fakeSource{name: "ok"}, nil
	}}
	bad := SourceConstructor{Name: "bad", Open: func(ctx context.Context) (MailboxSource, error) {
		return nil, errors.New("auth failed")
	}}

	mailboxes, err := OpenSources(context.Background(), logger, []SourceConstructor{bad, ok})
	if err != nil {
		t.Fatalf("OpenSources failed: %v", err)
	}
	if len(mailboxes) != 1 || mailboxes[0].Source.Name() != "ok" || !mailboxes[0].UnreadOnly {
		t.Fatalf("unexpected mailboxes %+v", mailboxes)
	}

	if _, err := OpenSources(context.Background(), logger, []SourceConstructor{bad}); !errors.Is(err, ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}
