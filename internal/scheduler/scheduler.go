// Package scheduler periodically re-runs feed scans and pushes newly
// found matches to their owners.
package scheduler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tgscan/internal/bot"
	"tgscan/internal/match"
	"tgscan/internal/model"
	"tgscan/internal/scanner"
	"tgscan/internal/source"
	"tgscan/internal/storage"
)

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string)
}

// Scheduler periodically checks due feed scans and sends notifications
// for matches that were not seen before. Live group scans are not
// touched; those only run on demand while the bot listens to the group.
type Scheduler struct {
	store   storage.Storage
	fetcher *source.FeedFetcher
	sender  Sender
	log     *slog.Logger
	tick    time.Duration
}

// New creates a Scheduler with the default HTTP client.
func New(store storage.Storage, sender Sender, log *slog.Logger) *Scheduler {
	return NewWithFetcher(store, source.NewFeedFetcher(http.DefaultClient), sender, log)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(store storage.Storage, f *source.FeedFetcher, sender Sender, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		fetcher: f,
		sender:  sender,
		log:     log,
		tick:    1 * time.Minute,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	scans, err := s.store.ListDueScans(ctx)
	if err != nil {
		s.log.Error("list due scans", "error", err)
		return
	}

	for _, scan := range scans {
		if ctx.Err() != nil {
			return
		}
		if !scan.IsFeedTarget() {
			continue
		}
		s.processScan(ctx, scan)
	}
}

func (s *Scheduler) processScan(ctx context.Context, scan model.Scan) {
	s.log.Debug("checking feed scan", "scan_id", scan.ID, "title", scan.Title)

	keywords, err := s.keywordSet(ctx, &scan)
	if err != nil {
		s.log.Debug("scan has no usable keywords", "scan_id", scan.ID, "error", err)
		s.updateLastRun(ctx, &scan)
		return
	}

	src, err := s.fetcher.Fetch(ctx, scan.Target)
	if err != nil {
		s.log.Error("fetch feed", "scan_id", scan.ID, "target", scan.Target, "error", err)
		s.updateLastRun(ctx, &scan)
		return
	}

	engine := match.NewEngine(match.Config{
		Keywords:        keywords,
		Group:           src.Group(),
		AllowDuplicates: scan.AllowDuplicates,
	})

	sent := 0
	rep, err := scanner.Run(ctx, scanner.Config{
		Source: src,
		Engine: engine,
		Limit:  scan.MessageLimit,
		Skip: func(msg model.Message) bool {
			seen, err := s.store.IsSeen(ctx, scan.ID, msg.ID)
			if err != nil {
				s.log.Error("check seen", "scan_id", scan.ID, "message_id", msg.ID, "error", err)
				return false
			}
			return seen
		},
		OnMatch: func(msg model.Message, row match.Row) {
			if err := s.store.InsertMatch(ctx, &model.Match{
				ScanID:       scan.ID,
				AuthorID:     msg.AuthorID,
				AuthorHandle: row.Handle,
				Term:         row.Term,
				MessageID:    msg.ID,
				Link:         row.Link,
				SentAt:       msg.SentAt,
				Preview:      row.Preview,
			}); err != nil {
				s.log.Error("insert match", "scan_id", scan.ID, "message_id", msg.ID, "error", err)
				return
			}
			if err := s.store.MarkSeen(ctx, scan.ID, msg.ID); err != nil {
				s.log.Error("mark seen", "scan_id", scan.ID, "message_id", msg.ID, "error", err)
			}

			s.sender.SendMessage(scan.ChatID, bot.FormatMatchNotification(&scan, row))
			sent++

			// Rate limit: ~20 messages/sec max for Telegram
			time.Sleep(50 * time.Millisecond)
		},
	})
	if err != nil {
		s.log.Error("feed scan run", "scan_id", scan.ID, "error", err)
	}

	if sent > 0 {
		s.log.Info("sent notifications", "scan_id", scan.ID, "title", scan.Title,
			"count", sent, "scanned", rep.Scanned)
	}

	s.updateLastRun(ctx, &scan)
}

func (s *Scheduler) keywordSet(ctx context.Context, scan *model.Scan) (*match.KeywordSet, error) {
	keywords, err := s.store.ListKeywords(ctx, scan.ID)
	if err != nil {
		return nil, err
	}
	var includes, excludes []string
	for _, k := range keywords {
		switch k.Kind {
		case model.KeywordInclude:
			includes = append(includes, k.Term)
		case model.KeywordExclude:
			excludes = append(excludes, k.Term)
		}
	}
	return match.NewKeywordSet(includes, excludes, scan.CaseSensitive)
}

func (s *Scheduler) updateLastRun(ctx context.Context, scan *model.Scan) {
	now := time.Now().UTC()
	scan.LastRunAt = &now
	if err := s.store.UpdateScan(ctx, scan); err != nil {
		s.log.Error("update last run", "scan_id", scan.ID, "error", err)
	}
}
