package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"tgscan/internal/model"
)

var ignoreScanTS = cmpopts.IgnoreFields(model.Scan{}, "CreatedAt", "LastRunAt")
var ignoreKeywordTS = cmpopts.IgnoreFields(model.Keyword{}, "CreatedAt")

func newTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestScanCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	tests := []struct {
		name string
		scan model.Scan
	}{
		{
			name: "telegram group scan",
			scan: model.Scan{
				ChatID:          12345,
				Target:          "https://t.me/mygroup",
				Title:           "My Group",
				GroupID:         -1001234567890,
				MessageLimit:    10000,
				AllowDuplicates: true,
				IsActive:        true,
			},
		},
		{
			name: "feed scan with interval and strict matching",
			scan: model.Scan{
				ChatID:          67890,
				Target:          "https://deals.example.com/rss",
				Title:           "City Deals",
				MessageLimit:    500,
				IntervalMinutes: 30,
				CaseSensitive:   true,
				IsActive:        false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := tt.scan
			if err := s.CreateScan(ctx, &scan); err != nil {
				t.Fatalf("create: %v", err)
			}
			if scan.ID == 0 {
				t.Fatal("expected non-zero ID")
			}

			got, err := s.GetScan(ctx, scan.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}

			want := tt.scan
			want.ID = scan.ID
			if diff := cmp.Diff(want, *got, ignoreScanTS); diff != "" {
				t.Errorf("GetScan mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListScans(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	chatID := int64(111)
	scans := []model.Scan{
		{ChatID: chatID, Target: "https://t.me/a", Title: "A", MessageLimit: 100, IsActive: true},
		{ChatID: chatID, Target: "https://t.me/b", Title: "B", MessageLimit: 200, AllowDuplicates: true},
		{ChatID: 999, Target: "https://t.me/c", Title: "Other", MessageLimit: 300, IsActive: true},
	}
	for i := range scans {
		if err := s.CreateScan(ctx, &scans[i]); err != nil {
			t.Fatalf("create scan %d: %v", i, err)
		}
	}

	got, err := s.ListScans(ctx, chatID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(got))
	}

	want := []model.Scan{
		{ID: scans[0].ID, ChatID: chatID, Target: "https://t.me/a", Title: "A", MessageLimit: 100, IsActive: true},
		{ID: scans[1].ID, ChatID: chatID, Target: "https://t.me/b", Title: "B", MessageLimit: 200, AllowDuplicates: true},
	}
	if diff := cmp.Diff(want, got, ignoreScanTS); diff != "" {
		t.Errorf("ListScans mismatch (-want +got):\n%s", diff)
	}
}

func TestListDueScans(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	past := time.Now().UTC().Add(-2 * time.Hour)

	never := model.Scan{ChatID: 1, Target: "https://a.example.com/rss", IntervalMinutes: 30, IsActive: true}
	due := model.Scan{ChatID: 1, Target: "https://b.example.com/rss", IntervalMinutes: 30, IsActive: true}
	fresh := model.Scan{ChatID: 1, Target: "https://c.example.com/rss", IntervalMinutes: 30, IsActive: true}
	paused := model.Scan{ChatID: 1, Target: "https://d.example.com/rss", IntervalMinutes: 30}
	oneShot := model.Scan{ChatID: 1, Target: "https://t.me/group", IsActive: true}

	for _, sc := range []*model.Scan{&never, &due, &fresh, &paused, &oneShot} {
		if err := s.CreateScan(ctx, sc); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	due.LastRunAt = &past
	if err := s.UpdateScan(ctx, &due); err != nil {
		t.Fatalf("update due: %v", err)
	}
	now := time.Now().UTC()
	fresh.LastRunAt = &now
	if err := s.UpdateScan(ctx, &fresh); err != nil {
		t.Fatalf("update fresh: %v", err)
	}

	got, err := s.ListDueScans(ctx)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}

	var gotIDs []int64
	for _, sc := range got {
		gotIDs = append(gotIDs, sc.ID)
	}
	want := []int64{never.ID, due.ID}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("due scans mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateScan(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	scan := model.Scan{ChatID: 1, Target: "https://t.me/old", Title: "Old", MessageLimit: 100, IsActive: true}
	if err := s.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	scan.Title = "New"
	scan.GroupID = -100555
	scan.MessageLimit = 5000
	scan.CaseSensitive = true
	scan.AllowDuplicates = true
	scan.IsActive = false
	scan.LastRunAt = &now

	if err := s.UpdateScan(ctx, &scan); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetScan(ctx, scan.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	want := model.Scan{
		ID: scan.ID, ChatID: 1, Target: "https://t.me/old", Title: "New", GroupID: -100555,
		MessageLimit: 5000, CaseSensitive: true, AllowDuplicates: true,
	}
	if diff := cmp.Diff(want, *got, ignoreScanTS); diff != "" {
		t.Errorf("UpdateScan mismatch (-want +got):\n%s", diff)
	}
	if got.LastRunAt == nil {
		t.Fatal("expected LastRunAt to be set")
	}
}

func TestDeleteScanCascade(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	scan := model.Scan{ChatID: 1, Target: "https://t.me/g", Title: "G", IsActive: true}
	if err := s.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}
	kw := model.Keyword{ScanID: scan.ID, Kind: model.KeywordInclude, Term: "massage"}
	if err := s.CreateKeyword(ctx, &kw); err != nil {
		t.Fatalf("create keyword: %v", err)
	}
	m := model.Match{ScanID: scan.ID, AuthorID: 5, AuthorHandle: "@x", Term: "massage",
		MessageID: 9, Link: "https://t.me/g/9", SentAt: time.Now().UTC(), Preview: "p"}
	if err := s.InsertMatch(ctx, &m); err != nil {
		t.Fatalf("insert match: %v", err)
	}
	if err := s.MarkSeen(ctx, scan.ID, 9); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	if err := s.DeleteScan(ctx, scan.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetScan(ctx, scan.ID); err == nil {
		t.Error("expected scan to be gone")
	}
	kws, err := s.ListKeywords(ctx, scan.ID)
	if err != nil || len(kws) != 0 {
		t.Errorf("expected no keywords, got %d (err %v)", len(kws), err)
	}
	ms, err := s.ListMatches(ctx, scan.ID)
	if err != nil || len(ms) != 0 {
		t.Errorf("expected no matches, got %d (err %v)", len(ms), err)
	}
	seen, err := s.IsSeen(ctx, scan.ID, 9)
	if err != nil || seen {
		t.Errorf("expected seen record to be gone (seen=%v err=%v)", seen, err)
	}
}

func TestKeywordCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	scan := model.Scan{ChatID: 1, Target: "https://t.me/g", IsActive: true}
	if err := s.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}

	terms := []model.Keyword{
		{ScanID: scan.ID, Kind: model.KeywordInclude, Term: "massage"},
		{ScanID: scan.ID, Kind: model.KeywordInclude, Term: "עיסוי"},
		{ScanID: scan.ID, Kind: model.KeywordExclude, Term: "bot"},
	}
	for i := range terms {
		if err := s.CreateKeyword(ctx, &terms[i]); err != nil {
			t.Fatalf("create keyword %d: %v", i, err)
		}
	}

	got, err := s.ListKeywords(ctx, scan.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(terms, got, ignoreKeywordTS); diff != "" {
		t.Errorf("ListKeywords mismatch (-want +got):\n%s", diff)
	}

	one, err := s.GetKeyword(ctx, terms[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if one.Term != "עיסוי" {
		t.Errorf("GetKeyword term = %q", one.Term)
	}

	if err := s.DeleteKeyword(ctx, terms[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = s.ListKeywords(ctx, scan.ID)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 keywords after delete, got %d", len(got))
	}
}

func TestMatches(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	scan := model.Scan{ChatID: 1, Target: "https://t.me/g", IsActive: true}
	if err := s.CreateScan(ctx, &scan); err != nil {
		t.Fatalf("create scan: %v", err)
	}

	sentAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	matches := []model.Match{
		{ScanID: scan.ID, AuthorID: 1, AuthorHandle: "@alice", Term: "massage",
			MessageID: 11, Link: "https://t.me/g/11", SentAt: sentAt, Preview: "first"},
		{ScanID: scan.ID, AuthorID: 2, AuthorHandle: "@ID_2", Term: "spa",
			MessageID: 12, Link: "https://t.me/g/12", SentAt: sentAt.Add(time.Minute), Preview: "second"},
	}
	for i := range matches {
		if err := s.InsertMatch(ctx, &matches[i]); err != nil {
			t.Fatalf("insert match %d: %v", i, err)
		}
	}

	got, err := s.ListMatches(ctx, scan.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if diff := cmp.Diff(matches, got); diff != "" {
		t.Errorf("ListMatches mismatch (-want +got):\n%s", diff)
	}

	if err := s.ClearMatches(ctx, scan.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, err = s.ListMatches(ctx, scan.ID)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches after clear, got %d", len(got))
	}
}

func TestSeenMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestDB(t)

	seen, err := s.IsSeen(ctx, 1, 100)
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if seen {
		t.Error("unmarked message reported as seen")
	}

	if err := s.MarkSeen(ctx, 1, 100); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	// Marking twice must not fail.
	if err := s.MarkSeen(ctx, 1, 100); err != nil {
		t.Fatalf("mark seen again: %v", err)
	}

	seen, err = s.IsSeen(ctx, 1, 100)
	if err != nil {
		t.Fatalf("is seen: %v", err)
	}
	if !seen {
		t.Error("marked message not reported as seen")
	}

	seen, err = s.IsSeen(ctx, 2, 100)
	if err != nil {
		t.Fatalf("is seen other scan: %v", err)
	}
	if seen {
		t.Error("seen state leaked across scans")
	}
}
