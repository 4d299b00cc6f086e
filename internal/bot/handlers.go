package bot

import (
	"context"
	"fmt"

	"tgscan/internal/model"
	"tgscan/internal/source"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to Telegram Scan Bot!

Scan group chats and RSS feeds for keywords and collect who said what.

Quick start:
1. /add <group link> — register a scan target
2. /include <id> <word> — add a search keyword
3. /run <id> — start scanning

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Scan management:
/add <group link|feed url> — register a scan target
/list — show all scans
/info <id> — scan details
/remove <id> — delete a scan
/limit <id> <n> — cap scanned messages (1-100000)
/case <id> on|off — case sensitive matching
/dups <id> on|off — keep every match per author
/pause <id> — pause periodic feed checks
/resume <id> — resume periodic feed checks

Keyword management:
/keywords <id> — show keywords for a scan
/include <id> <word or phrase> — add a search keyword
/exclude <id> <word or phrase> — add a veto keyword
/rmkeyword <keyword_id> — remove a keyword

Running:
/run <id> [seconds] — scan now (live groups listen for [seconds])
/results <id> — show collected matches
/export <id> — download matches as CSV
/clear <id> — forget collected matches`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	target, err := ParseAddArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /add <group link|feed url>")
		return
	}

	scan := &model.Scan{
		ChatID:          chatID,
		Target:          target,
		MessageLimit:    b.cfg.MessageLimit,
		IntervalMinutes: 15,
		IsActive:        true,
	}

	if scan.IsFeedTarget() {
		src, err := b.fetcher.Fetch(ctx, target)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v", err))
			return
		}
		scan.Title = src.Group().Title
	} else {
		group, err := source.ResolveGroup(b.api, target)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Failed to resolve group: %v", err))
			return
		}
		scan.GroupID = group.ID
		scan.Title = group.Title
	}
	if scan.Title == "" {
		scan.Title = target
	}

	if err := b.store.CreateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to save scan: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Scan added!\n#%d %s\nTarget: %s\nNo keywords yet. Use /include %d <word> to add some, then /run %d.",
		scan.ID, scan.Title, scan.Target, scan.ID, scan.ID))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	scans, err := b.store.ListScans(ctx, chatID)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	counts := make(map[int64][2]int)
	for _, s := range scans {
		keywords, err := b.store.ListKeywords(ctx, s.ID)
		if err != nil {
			continue
		}
		var inc, exc int
		for _, k := range keywords {
			switch k.Kind {
			case model.KeywordInclude:
				inc++
			case model.KeywordExclude:
				exc++
			}
		}
		counts[s.ID] = [2]int{inc, exc}
	}

	b.reply(chatID, FormatScanList(scans, counts))
}

func (b *Bot) handleInfo(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /info <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	keywords, _ := b.store.ListKeywords(ctx, scan.ID)
	b.replyWithScanActions(chatID, FormatScanInfo(scan, keywords), scan.ID)
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /remove <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.store.DeleteScan(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error deleting scan: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Scan #%d \"%s\" deleted.", id, scan.Title))
}

func (b *Bot) handleAddKeyword(ctx context.Context, chatID int64, args string, kind string) {
	id, term, err := ParseKeywordArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <id> <word or phrase>", kind))
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	k := &model.Keyword{
		ScanID: scan.ID,
		Kind:   model.KeywordKind(kind),
		Term:   term,
	}
	if err := b.store.CreateKeyword(ctx, k); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	b.reply(chatID, fmt.Sprintf("Keyword K%d added to #%d \"%s\": %s %q",
		k.ID, scan.ID, scan.Title, kind, term))
}

func (b *Bot) handleKeywords(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /keywords <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	keywords, _ := b.store.ListKeywords(ctx, scan.ID)
	b.reply(chatID, FormatKeywordList(scan, keywords))
}

func (b *Bot) handleRmKeyword(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /rmkeyword <keyword_id>")
		return
	}

	k, err := b.store.GetKeyword(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Keyword K%d not found.", id))
		return
	}

	scan, err := b.store.GetScan(ctx, k.ScanID)
	if err != nil || scan.ChatID != chatID {
		b.reply(chatID, fmt.Sprintf("Keyword K%d not found.", id))
		return
	}

	if err := b.store.DeleteKeyword(ctx, id); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Keyword K%d removed from #%d \"%s\".", id, scan.ID, scan.Title))
}

func (b *Bot) handleCase(ctx context.Context, chatID int64, args string) {
	id, on, err := ParseToggleArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /case <id> on|off")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	scan.CaseSensitive = on
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Scan #%d case sensitive matching: %s.", id, onOff(on)))
}

func (b *Bot) handleDups(ctx context.Context, chatID int64, args string) {
	id, on, err := ParseToggleArgs(args)
	if err != nil {
		b.reply(chatID, "Usage: /dups <id> on|off")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	scan.AllowDuplicates = on
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	if on {
		b.reply(chatID, fmt.Sprintf("Scan #%d now keeps every matching message per author.", id))
	} else {
		b.reply(chatID, fmt.Sprintf("Scan #%d now keeps only the latest matching message per author.", id))
	}
}

func (b *Bot) handleLimit(ctx context.Context, chatID int64, args string) {
	id, limit, err := ParseLimitArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	scan.MessageLimit = limit
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Scan #%d message limit set to %d.", id, limit))
}

func (b *Bot) handlePause(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /pause <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	scan.IsActive = false
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Scan #%d \"%s\" paused.", id, scan.Title))
}

func (b *Bot) handleResume(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /resume <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	scan.IsActive = true
	if err := b.store.UpdateScan(ctx, scan); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Scan #%d \"%s\" resumed.", id, scan.Title))
}

func (b *Bot) handleClear(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /clear <id>")
		return
	}

	scan, ok := b.scanFor(ctx, chatID, id)
	if !ok {
		return
	}

	if err := b.store.ClearMatches(ctx, scan.ID); err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Stored results for scan #%d \"%s\" cleared.", id, scan.Title))
}

// scanFor loads a scan and enforces that it belongs to the requesting
// chat, replying with a not-found message otherwise.
func (b *Bot) scanFor(ctx context.Context, chatID, id int64) (*model.Scan, bool) {
	scan, err := b.store.GetScan(ctx, id)
	if err != nil || scan.ChatID != chatID {
		b.reply(chatID, fmt.Sprintf("Scan #%d not found.", id))
		return nil, false
	}
	return scan, true
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
