package bot

import (
	"fmt"
	"strings"

	"tgscan/internal/match"
	"tgscan/internal/model"
	"tgscan/internal/scanner"
)

const (
	statusActive = "active"
	statusPaused = "paused"

	// maxResultRows caps how many rows fit in one chat message; the
	// full table is always available through /export.
	maxResultRows = 15
)

// FormatScanList formats a list of scans for display.
func FormatScanList(scans []model.Scan, keywordCounts map[int64][2]int) string {
	if len(scans) == 0 {
		return "You have no scans yet. Use /add <group link|feed url> to add one."
	}
	var b strings.Builder
	b.WriteString("Your scans:\n")
	for _, s := range scans {
		status := statusActive
		if !s.IsActive {
			status = statusPaused
		}
		fmt.Fprintf(&b, "\n#%d %s [%s]\n", s.ID, s.Title, status)
		inc, exc := keywordCounts[s.ID][0], keywordCounts[s.ID][1]
		if inc == 0 && exc == 0 {
			b.WriteString("   no keywords\n")
		} else {
			fmt.Fprintf(&b, "   %d include, %d exclude keywords\n", inc, exc)
		}
	}
	return b.String()
}

// FormatScanInfo formats detailed information about a single scan.
func FormatScanInfo(scan *model.Scan, keywords []model.Keyword) string {
	var b strings.Builder
	status := statusActive
	if !scan.IsActive {
		status = statusPaused
	}
	fmt.Fprintf(&b, "#%d %s [%s]\n", scan.ID, scan.Title, status)
	fmt.Fprintf(&b, "Target: %s\n", scan.Target)
	fmt.Fprintf(&b, "Message limit: %d\n", scan.MessageLimit)
	fmt.Fprintf(&b, "Case sensitive: %s\n", onOff(scan.CaseSensitive))
	fmt.Fprintf(&b, "Keep duplicates: %s\n", onOff(scan.AllowDuplicates))
	if scan.IsFeedTarget() {
		fmt.Fprintf(&b, "Feed check interval: every %d min\n", scan.IntervalMinutes)
	}
	if scan.LastRunAt != nil {
		fmt.Fprintf(&b, "Last run: %s\n", scan.LastRunAt.Format("2006-01-02 15:04 UTC"))
	}
	b.WriteString("\n")
	b.WriteString(FormatKeywordList(scan, keywords))
	return b.String()
}

// FormatKeywordList formats the keywords of a scan grouped by kind.
func FormatKeywordList(scan *model.Scan, keywords []model.Keyword) string {
	if len(keywords) == 0 {
		return fmt.Sprintf("No keywords for #%d \"%s\".\nUse /include and /exclude to add keywords.", scan.ID, scan.Title)
	}

	var includes, excludes []model.Keyword
	for _, k := range keywords {
		if k.Kind == model.KeywordExclude {
			excludes = append(excludes, k)
		} else {
			includes = append(includes, k)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Keywords for #%d \"%s\":\n", scan.ID, scan.Title)
	if len(includes) > 0 {
		b.WriteString("\nSearch:\n")
		for _, k := range includes {
			fmt.Fprintf(&b, "  K%d: %s\n", k.ID, k.Term)
		}
	}
	if len(excludes) > 0 {
		b.WriteString("\nVeto:\n")
		for _, k := range excludes {
			fmt.Fprintf(&b, "  K%d: %s\n", k.ID, k.Term)
		}
	}
	return b.String()
}

// FormatRunSummary formats the closing message of a scan run.
func FormatRunSummary(scan *model.Scan, rep scanner.Report, runErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scan #%d \"%s\" finished.\n", scan.ID, scan.Title)
	fmt.Fprintf(&b, "Scanned: %d messages\n", rep.Scanned)
	if rep.Scanned > 0 {
		fmt.Fprintf(&b, "Matched: %d (%.1f%%)\n", rep.Matched, float64(rep.Matched)*100/float64(rep.Scanned))
	} else {
		fmt.Fprintf(&b, "Matched: %d\n", rep.Matched)
	}
	if runErr != nil {
		fmt.Fprintf(&b, "Stopped early: %v\n", runErr)
	}
	fmt.Fprintf(&b, "Use /results %d to view matches or /export %d for a CSV file.", scan.ID, scan.ID)
	return b.String()
}

// FormatResults formats the collected result table for chat display,
// truncated to maxResultRows rows.
func FormatResults(scan *model.Scan, rows []match.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("No matches recorded for scan #%d \"%s\" yet. Run it with /run %d.", scan.ID, scan.Title, scan.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Results for #%d \"%s\" (%d rows):\n", scan.ID, scan.Title, len(rows))

	shown := rows
	if len(shown) > maxResultRows {
		shown = shown[:maxResultRows]
	}
	for i, r := range shown {
		fmt.Fprintf(&b, "\n%d. %s [%s] x%d\n%s\n%s\n%s\n", i+1, r.Handle, r.Term, r.TotalMatches, r.Date, r.Link, r.Preview)
	}
	if len(rows) > maxResultRows {
		fmt.Fprintf(&b, "\n...and %d more rows. Use /export %d for the full table.", len(rows)-maxResultRows, scan.ID)
	}
	return b.String()
}

// FormatMatchNotification formats a single match found by a periodic
// feed check.
func FormatMatchNotification(scan *model.Scan, row match.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s matched %q\n", scan.Title, row.Handle, row.Term)
	fmt.Fprintf(&b, "%s\n", row.Date)
	if row.Link != "" {
		fmt.Fprintf(&b, "%s\n", row.Link)
	}
	b.WriteString(row.Preview)
	return b.String()
}
