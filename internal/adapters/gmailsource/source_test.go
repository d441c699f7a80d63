package gmailsource

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }

type modifyCall struct {
	id          string
	add, remove []string
}

type fakeAPI struct {
	pages    [][]string
	queries  []string
	messages map[string]rawMessage
	getErr   map[string]error
	modifies []modifyCall
	labels   map[string]string
	created  int
}

func (f *fakeAPI) List(ctx context.Context, query, pageToken string) ([]string, string, error) {
	f.queries = append(f.queries, query)
	i := 0
	if pageToken != "" {
		i = int(pageToken[0] - '0')
	}
	next := ""
	if i+1 < len(f.pages) {
		next = string(rune('0' + i + 1))
	}
	return f.pages[i], next, nil
}

func (f *fakeAPI) GetRaw(ctx context.Context, id string) (rawMessage, error) {
	if err := f.getErr[id]; err != nil {
		return rawMessage{}, err
	}
	return f.messages[id], nil
}

func (f *fakeAPI) Modify(ctx context.Context, id string, add, remove []string) error {
	f.modifies = append(f.modifies, modifyCall{id: id, add: add, remove: remove})
	return nil
}

func (f *fakeAPI) EnsureLabel(ctx context.Context, name string) (string, error) {
	if id, ok := f.labels[name]; ok {
		return id, nil
	}
	f.created++
	if f.labels == nil {
		f.labels = map[string]string{}
	}
	f.labels[name] = "Label_1"
	return "Label_1", nil
}

func raw(id string, at time.Time, unread bool) rawMessage {
	labels := []string{labelInbox}
	if unread {
		labels = append(labels, labelUnread)
	}
	return rawMessage{
		ID:           id,
		InternalDate: at.UnixMilli(),
		LabelIDs:     labels,
		Raw: []byte("From: Bob <bob@example.com>\r\n" +
			"To: me@example.com\r\n" +
			"Subject: Message " + id + "\r\n" +
			"\r\n" +
			"Hello from " + id + "\r\n"),
	}
}

func TestQuery(t *testing.T) {
	after := time.Unix(1700000000, 0)
	if got := Query(after, true); got != "after:1700000000 is:unread in:inbox" {
		t.Fatalf("unexpected query %q", got)
	}
	if got := Query(after, false); got != "after:1700000000 in:inbox" {
		t.Fatalf("unexpected query %q", got)
	}
}

func TestListAfterPaginatesAndFilters(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 0, 0, 500_000_000, time.UTC)
	api := &fakeAPI{
		pages: [][]string{{"a", "b"}, {"c", "d"}},
		messages: map[string]rawMessage{
			"a": raw("a", after.Add(time.Minute), true),
			"b": raw("b", after.Add(-200*time.Millisecond), true),
			"c": raw("c", after.Add(2*time.Minute), false),
		},
		getErr: map[string]error{"d": errors.New("404")},
	}
	src := newSource(Options{Name: "gmail"}, api, noWait{}, nil, zaptest.NewLogger(t))

	msgs, err := src.ListAfter(context.Background(), after, false)
	if err != nil {
		t.Fatalf("ListAfter failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "a" || msgs[1].ID != "c" {
		t.Fatalf("unexpected ids %s %s", msgs[0].ID, msgs[1].ID)
	}
	if msgs[0].Subject != "Message a" || msgs[0].Sender != "Bob <bob@example.com>" || msgs[0].Provider != "gmail" {
		t.Fatalf("unexpected message %+v", msgs[0])
	}
	if msgs[0].IsRead || !msgs[1].IsRead {
		t.Fatal("expected read state to follow the UNREAD label")
	}
	if len(api.queries) != 2 {
		t.Fatalf("expected 2 list calls, got %d", len(api.queries))
	}
}

func TestMarkRead(t *testing.T) {
	api := &fakeAPI{}
	src := newSource(Options{Name: "gmail"}, api, noWait{}, nil, zaptest.NewLogger(t))

	if err := src.MarkRead(context.Background(), "m1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	got := api.modifies[0]
	if got.id != "m1" || len(got.add) != 0 || got.remove[0] != labelUnread {
		t.Fatalf("unexpected modify %+v", got)
	}
}

func TestMoveToJunkCreatesLabelOnce(t *testing.T) {
	api := &fakeAPI{}
	src := newSource(Options{Name: "gmail", JunkLabel: "Spam-LLM"}, api, noWait{}, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	for _, id := range []string{"m1", "m2"} {
		if err := src.MoveToJunk(ctx, id); err != nil {
			t.Fatalf("MoveToJunk failed: %v", err)
		}
	}
	if api.created != 1 {
		t.Fatalf("expected label to be created once, got %d", api.created)
	}
	got := api.modifies[1]
	if got.id != "m2" || got.add[0] != "Label_1" || got.remove[0] != labelInbox {
		t.Fatalf("unexpected modify %+v", got)
	}
}

func TestListAfterHonoursCancellation(t *testing.T) {
	api := &fakeAPI{pages: [][]string{{"a"}}}
	src := newSource(Options{Name: "gmail"}, api, noWait{}, nil, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.ListAfter(ctx, time.Now(), true); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListAfterReportsUnreadableMessage(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		pages: [][]string{{"a", "b"}},
		messages: map[string]rawMessage{
			"a": raw("a", after.Add(time.Minute), true),
		},
		getErr: map[string]error{"b": errors.New("backend error")},
	}
	obs, logs := observer.New(zap.InfoLevel)
	src := newSource(Options{Name: "gmail"}, api, noWait{}, nil, zap.New(obs))

	msgs, err := src.ListAfter(context.Background(), after, false)
	if err != nil {
		t.Fatalf("ListAfter failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "a" {
		t.Fatalf("expected the readable message only, got %+v", msgs)
	}

	entries := logs.FilterLevelExact(zap.ErrorLevel).All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 error log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["message_id"] != "b" || fields["account"] != "gmail" {
		t.Fatalf("expected account and message id in log, got %v", fields)
	}
}
