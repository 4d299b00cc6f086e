package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"tgscan/internal/match"
	"tgscan/internal/model"
	"tgscan/internal/source"
)

// sliceSource replays a fixed set of messages, optionally failing
// partway through.
type sliceSource struct {
	msgs    []model.Message
	idx     int
	failAt  int
	failErr error
}

func (s *sliceSource) Next(ctx context.Context) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	if s.failErr != nil && s.idx == s.failAt {
		return model.Message{}, s.failErr
	}
	if s.idx >= len(s.msgs) {
		return model.Message{}, source.ErrEndOfStream
	}
	msg := s.msgs[s.idx]
	s.idx++
	return msg, nil
}

func testMessages(n int, matchEvery int) []model.Message {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msgs := make([]model.Message, 0, n)
	for i := 1; i <= n; i++ {
		text := fmt.Sprintf("ordinary message %d", i)
		if matchEvery > 0 && i%matchEvery == 0 {
			text = fmt.Sprintf("massage offer %d", i)
		}
		msgs = append(msgs, model.Message{
			ID:       int64(i),
			AuthorID: int64(i%3 + 1),
			Text:     text,
			SentAt:   base.Add(time.Duration(i) * time.Second),
		})
	}
	return msgs
}

func newEngine(t *testing.T) *match.Engine {
	t.Helper()
	ks, err := match.NewKeywordSet([]string{"massage"}, nil, false)
	if err != nil {
		t.Fatalf("keyword set: %v", err)
	}
	return match.NewEngine(match.Config{
		Keywords:        ks,
		Group:           model.Group{ID: 123, Title: "Group", Link: "https://t.me/group"},
		AllowDuplicates: true,
	})
}

func TestRunConsumesWholeStream(t *testing.T) {
	src := &sliceSource{msgs: testMessages(120, 10)}

	var progress [][2]int
	rep, err := Run(context.Background(), Config{
		Source: src,
		Engine: newEngine(t),
		Progress: func(scanned, matched int) {
			progress = append(progress, [2]int{scanned, matched})
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if rep.Scanned != 120 {
		t.Errorf("scanned = %d, want 120", rep.Scanned)
	}
	if rep.Matched != 12 {
		t.Errorf("matched = %d, want 12", rep.Matched)
	}
	if len(rep.Rows) != 12 {
		t.Errorf("rows = %d, want 12", len(rep.Rows))
	}

	wantProgress := [][2]int{{50, 5}, {100, 10}}
	if diff := cmp.Diff(wantProgress, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHonorsLimit(t *testing.T) {
	src := &sliceSource{msgs: testMessages(200, 10)}

	rep, err := Run(context.Background(), Config{
		Source: src,
		Engine: newEngine(t),
		Limit:  75,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Scanned != 75 {
		t.Errorf("scanned = %d, want 75", rep.Scanned)
	}
	if rep.Matched != 7 {
		t.Errorf("matched = %d, want 7", rep.Matched)
	}
}

func TestRunPartialStreamOnTransportError(t *testing.T) {
	wantErr := &source.FloodWaitError{RetryAfter: 30 * time.Second}
	src := &sliceSource{msgs: testMessages(100, 10), failAt: 42, failErr: wantErr}

	rep, err := Run(context.Background(), Config{
		Source: src,
		Engine: newEngine(t),
	})

	var fw *source.FloodWaitError
	if !errors.As(err, &fw) {
		t.Fatalf("expected FloodWaitError, got %v", err)
	}
	if rep.Scanned != 42 {
		t.Errorf("scanned = %d, want 42", rep.Scanned)
	}
	if rep.Matched != 4 {
		t.Errorf("matched = %d, want 4", rep.Matched)
	}
	if len(rep.Rows) != 4 {
		t.Errorf("rows = %d, want 4 (partial results must survive)", len(rep.Rows))
	}
}

func TestRunEmptyStream(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Source: &sliceSource{},
		Engine: newEngine(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Scanned != 0 || rep.Matched != 0 || len(rep.Rows) != 0 {
		t.Errorf("expected empty report, got %+v", rep)
	}
}

func TestRunCancellationIsNotAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Run(ctx, Config{
		Source: &sliceSource{msgs: testMessages(10, 1)},
		Engine: newEngine(t),
	})
	if err != nil {
		t.Fatalf("cancellation should not be an error, got %v", err)
	}
	if len(rep.Rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rep.Rows))
	}
}

func TestRunSkipAndOnMatch(t *testing.T) {
	src := &sliceSource{msgs: testMessages(20, 2)}

	var matched []int64
	rep, err := Run(context.Background(), Config{
		Source: src,
		Engine: newEngine(t),
		Skip:   func(msg model.Message) bool { return msg.ID <= 10 },
		OnMatch: func(msg model.Message, _ match.Row) {
			matched = append(matched, msg.ID)
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []int64{12, 14, 16, 18, 20}
	if diff := cmp.Diff(want, matched); diff != "" {
		t.Errorf("matched ids mismatch (-want +got):\n%s", diff)
	}
	if rep.Scanned != 20 {
		t.Errorf("scanned = %d, want 20 (skipped messages still count as scanned)", rep.Scanned)
	}
}
