package scheduler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tgscan/internal/model"
	"tgscan/internal/source"
	"tgscan/internal/storage"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type mockSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (m *mockSender) SendMessage(chatID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text})
}

func (m *mockSender) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	return cp
}

type mockHTTP struct {
	body string
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Header:     http.Header{},
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../source/testdata/feed.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSchedulerProcessesDueFeedScans(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	xml := loadFixture(t)

	scan := model.Scan{
		ChatID:          100,
		Target:          "https://deals.example.com/rss",
		Title:           "City Deals",
		MessageLimit:    10000,
		IntervalMinutes: 15,
		IsActive:        true,
	}
	if err := store.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}
	if err := store.CreateKeyword(ctx, &model.Keyword{
		ScanID: scan.ID,
		Kind:   model.KeywordInclude,
		Term:   "massage",
	}); err != nil {
		t.Fatalf("create keyword: %v", err)
	}

	sender := &mockSender{}
	f := source.NewFeedFetcher(&mockHTTP{body: xml})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sched := NewWithFetcher(store, f, sender, log)
	sched.checkAll(ctx)

	msgs := sender.getMessages()
	if diff := cmp.Diff(1, len(msgs)); diff != "" {
		t.Fatalf("message count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(100), msgs[0].ChatID); diff != "" {
		t.Errorf("chat id mismatch (-want +got):\n%s", diff)
	}
	for _, want := range []string{"[City Deals]", "@Dana", `"massage"`} {
		if got := msgs[0].Text; !bytes.Contains([]byte(got), []byte(want)) {
			t.Errorf("notification missing %q:\n%s", want, got)
		}
	}

	matches, err := store.ListMatches(ctx, scan.ID)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 stored match, got %d", len(matches))
	}

	got, err := store.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if got.LastRunAt == nil {
		t.Error("last run should be recorded after a check")
	}
}

func TestSchedulerSkipsSeenItems(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	xml := loadFixture(t)

	scan := model.Scan{
		ChatID:          100,
		Target:          "https://deals.example.com/rss",
		Title:           "City Deals",
		MessageLimit:    10000,
		IntervalMinutes: 15,
		IsActive:        true,
	}
	if err := store.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}
	if err := store.CreateKeyword(ctx, &model.Keyword{
		ScanID: scan.ID,
		Kind:   model.KeywordInclude,
		Term:   "massage",
	}); err != nil {
		t.Fatalf("create keyword: %v", err)
	}

	sender := &mockSender{}
	f := source.NewFeedFetcher(&mockHTTP{body: xml})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewWithFetcher(store, f, sender, log)

	// Process directly twice; the second pass must skip every item the
	// first one recorded.
	sched.processScan(ctx, scan)
	reloaded, err := store.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	sched.processScan(ctx, *reloaded)

	msgs := sender.getMessages()
	if diff := cmp.Diff(1, len(msgs)); diff != "" {
		t.Errorf("repeated checks should not renotify (-want +got):\n%s", diff)
	}
}

func TestSchedulerIgnoresGroupScans(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scan := model.Scan{
		ChatID:          100,
		Target:          "@citychat",
		Title:           "City Chat",
		MessageLimit:    10000,
		IntervalMinutes: 15,
		IsActive:        true,
	}
	if err := store.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}

	sender := &mockSender{}
	f := source.NewFeedFetcher(&mockHTTP{body: "should never be fetched"})
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := NewWithFetcher(store, f, sender, log)

	sched.checkAll(ctx)

	if msgs := sender.getMessages(); len(msgs) != 0 {
		t.Errorf("group scans must not be checked by the scheduler, got %d messages", len(msgs))
	}
	got, err := store.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("get scan: %v", err)
	}
	if got.LastRunAt != nil {
		t.Error("group scan should be untouched by the scheduler")
	}
}
