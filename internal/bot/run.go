package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tgscan/internal/export"
	"tgscan/internal/match"
	"tgscan/internal/model"
	"tgscan/internal/scanner"
	"tgscan/internal/source"
)

// liveBuffer is the per-session buffer for group messages. Updates
// beyond it are dropped rather than stalling the polling loop.
const liveBuffer = 256

func (b *Bot) handleRun(ctx context.Context, chatID int64, args string) {
	id, seconds, err := ParseRunArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	keywords, err := b.keywordSet(ctx, scan)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Cannot run scan #%d: %v\nAdd keywords with /include %d <word>.", id, err, id))
		return
	}

	if scan.IsFeedTarget() {
		b.runFeedScan(ctx, scan, keywords)
		return
	}

	if seconds <= 0 {
		seconds = b.cfg.MonitorSeconds
	}
	b.runLiveScan(ctx, scan, keywords, seconds)
}

// runFeedScan drains the feed synchronously; feeds are bounded replays
// and finish immediately.
func (b *Bot) runFeedScan(ctx context.Context, scan *model.Scan, keywords *match.KeywordSet) {
	src, err := b.fetcher.Fetch(ctx, scan.Target)
	if err != nil {
		b.reply(scan.ChatID, fmt.Sprintf("Failed to fetch %s: %v", scan.Target, err))
		return
	}

	engine := match.NewEngine(match.Config{
		Keywords:        keywords,
		Group:           src.Group(),
		AllowDuplicates: scan.AllowDuplicates,
	})

	rep, runErr := scanner.Run(ctx, scanner.Config{
		Source:  src,
		Engine:  engine,
		Limit:   scan.MessageLimit,
		Skip:    b.skipSeen(ctx, scan.ID),
		OnMatch: b.recordMatch(ctx, scan.ID),
	})
	b.finishRun(ctx, scan, rep, runErr)
}

// runLiveScan attaches a session to the target group and collects
// messages the bot observes there until the monitor window closes or
// the message limit is reached. The session runs in the background so
// the command loop stays responsive.
func (b *Bot) runLiveScan(ctx context.Context, scan *model.Scan, keywords *match.KeywordSet, seconds int) {
	group, err := source.ResolveGroup(b.api, scan.Target)
	if err != nil {
		b.reply(scan.ChatID, fmt.Sprintf("Failed to resolve group: %v", err))
		return
	}

	if scan.GroupID != group.ID || scan.Title != group.Title {
		scan.GroupID = group.ID
		scan.Title = group.Title
		if err := b.store.UpdateScan(ctx, scan); err != nil {
			b.log.Error("update scan metadata", "scan_id", scan.ID, "error", err)
		}
	}

	src := source.NewChatSource(liveBuffer)
	sess := &liveSession{scanID: scan.ID, src: src}
	b.addSession(group.ID, sess)

	engine := match.NewEngine(match.Config{
		Keywords:        keywords,
		Group:           group,
		AllowDuplicates: scan.AllowDuplicates,
	})

	b.reply(scan.ChatID, fmt.Sprintf("Scan #%d listening to \"%s\" for %d seconds (up to %d messages)...",
		scan.ID, group.Title, seconds, scan.MessageLimit))

	go func() {
		runCtx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()

		rep, runErr := scanner.Run(runCtx, scanner.Config{
			Source:  src,
			Engine:  engine,
			Limit:   scan.MessageLimit,
			Skip:    b.skipSeen(ctx, scan.ID),
			OnMatch: b.recordMatch(ctx, scan.ID),
			Progress: func(scanned, matched int) {
				b.log.Debug("scan progress", "scan_id", scan.ID, "scanned", scanned, "matched", matched)
			},
		})

		b.removeSession(group.ID, sess)
		b.finishRun(ctx, scan, rep, runErr)
	}()
}

func (b *Bot) handleResults(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /results <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	rows, err := b.loadRows(ctx, scan)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, FormatResults(scan, rows))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /export <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	rows, err := b.loadRows(ctx, scan)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if len(rows) == 0 {
		b.reply(chatID, fmt.Sprintf("No matches recorded for scan #%d yet. Run it with /run %d.", id, id))
		return
	}

	data, err := export.CSV(rows, scan.AllowDuplicates)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Export failed: %v", err))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.FileName(scan.Title),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("Scan #%d \"%s\": %d rows", scan.ID, scan.Title, len(rows))
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error("send export", "scan_id", scan.ID, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to upload export: %v", err))
	}
}

// keywordSet builds the matcher input from the scan's stored keywords.
func (b *Bot) keywordSet(ctx context.Context, scan *model.Scan) (*match.KeywordSet, error) {
	keywords, err := b.store.ListKeywords(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
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

// skipSeen filters out messages already processed in earlier runs.
func (b *Bot) skipSeen(ctx context.Context, scanID int64) func(model.Message) bool {
	return func(msg model.Message) bool {
		seen, err := b.store.IsSeen(ctx, scanID, msg.ID)
		if err != nil {
			b.log.Error("check seen", "scan_id", scanID, "message_id", msg.ID, "error", err)
			return false
		}
		return seen
	}
}

// recordMatch persists every matching message as it is observed, so a
// run interrupted mid-stream still leaves its partial results behind.
func (b *Bot) recordMatch(ctx context.Context, scanID int64) func(model.Message, match.Row) {
	return func(msg model.Message, row match.Row) {
		m := &model.Match{
			ScanID:       scanID,
			AuthorID:     msg.AuthorID,
			AuthorHandle: row.Handle,
			Term:         row.Term,
			MessageID:    msg.ID,
			Link:         row.Link,
			SentAt:       msg.SentAt,
			Preview:      row.Preview,
		}
		if err := b.store.InsertMatch(ctx, m); err != nil {
			b.log.Error("insert match", "scan_id", scanID, "message_id", msg.ID, "error", err)
			return
		}
		if err := b.store.MarkSeen(ctx, scanID, msg.ID); err != nil {
			b.log.Error("mark seen", "scan_id", scanID, "message_id", msg.ID, "error", err)
		}
	}
}

func (b *Bot) finishRun(ctx context.Context, scan *model.Scan, rep scanner.Report, runErr error) {
	now := time.Now().UTC()
	scan.LastRunAt = &now
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.log.Error("update last run", "scan_id", scan.ID, "error", err)
	}
	if runErr != nil {
		b.log.Error("scan run", "scan_id", scan.ID, "error", runErr)
	}
	b.SendMessage(scan.ChatID, FormatRunSummary(scan, rep, runErr))
}

// loadRows rebuilds the result table from persisted matches, applying
// the scan's duplicate policy.
func (b *Bot) loadRows(ctx context.Context, scan *model.Scan) ([]match.Row, error) {
	matches, err := b.store.ListMatches(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}

	agg := match.NewAggregator(scan.AllowDuplicates)
	for _, m := range matches {
		agg.Add(m.AuthorID, m.SentAt, match.Row{
			Handle:     m.AuthorHandle,
			Term:       m.Term,
			GroupTitle: scan.Title,
			Link:       m.Link,
			Date:       match.FormatDate(m.SentAt),
			Preview:    m.Preview,
		})
	}
	return agg.Rows(), nil
}
