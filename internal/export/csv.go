// Package export renders scan results in the fixed result-table schema.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"tgscan/internal/match"
)

// baseHeader is the fixed column schema. A Total Messages column is
// appended only when the scan keeps one row per author.
var baseHeader = []string{
	"Username",
	"Matched Keyword",
	"Group Name",
	"Message Link",
	"Date",
	"Message Preview",
}

// CSV encodes rows as a CSV document. With allowDuplicates the total
// column is omitted: every matching message is its own row and the
// per-author total is visible from the grouping itself.
func CSV(rows []match.Row, allowDuplicates bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := baseHeader
	if !allowDuplicates {
		header = append(append([]string{}, baseHeader...), "Total Messages")
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for _, r := range rows {
		record := []string{r.Handle, r.Term, r.GroupTitle, r.Link, r.Date, r.Preview}
		if !allowDuplicates {
			record = append(record, strconv.Itoa(r.TotalMatches))
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName builds the export file name from a group title.
func FileName(groupTitle string) string {
	title := strings.ReplaceAll(strings.TrimSpace(groupTitle), " ", "_")
	if title == "" {
		title = "results"
	}
	return fmt.Sprintf("telegram_scan_%s.csv", title)
}
