package match

import "time"

// Row is one output row of the result table.
type Row struct {
	Handle       string
	Term         string
	GroupTitle   string
	Link         string
	Date         string
	Preview      string
	TotalMatches int
}

type authorRow struct {
	row    Row
	sentAt time.Time
}

// Aggregator folds per-message match results into the final output
// table according to the duplicate-handling policy. It is owned by a
// single run and is not safe for concurrent use.
type Aggregator struct {
	allowDuplicates bool
	order           []int64
	counts          map[int64]int
	rows            map[int64][]authorRow
	latest          map[int64]authorRow
}

// NewAggregator creates an empty Aggregator.
// With allowDuplicates, every matching message becomes one output row;
// otherwise only the latest matching message per author survives.
func NewAggregator(allowDuplicates bool) *Aggregator {
	return &Aggregator{
		allowDuplicates: allowDuplicates,
		counts:          make(map[int64]int),
		rows:            make(map[int64][]authorRow),
		latest:          make(map[int64]authorRow),
	}
}

// Add records one matching message for the given author.
func (a *Aggregator) Add(authorID int64, sentAt time.Time, row Row) {
	if _, seen := a.counts[authorID]; !seen {
		a.order = append(a.order, authorID)
	}
	a.counts[authorID]++

	if a.allowDuplicates {
		a.rows[authorID] = append(a.rows[authorID], authorRow{row: row, sentAt: sentAt})
		return
	}

	cur, ok := a.latest[authorID]
	if !ok || !sentAt.Before(cur.sentAt) {
		a.latest[authorID] = authorRow{row: row, sentAt: sentAt}
	}
}

// Total returns the number of matches recorded for an author so far.
func (a *Aggregator) Total(authorID int64) int { return a.counts[authorID] }

// Matched returns the total number of matching messages recorded.
func (a *Aggregator) Matched() int {
	n := 0
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Rows materializes the final output. Authors appear in first-seen
// order; with duplicates allowed, an author's rows keep stream order
// and every row carries the author's final total. An empty aggregate
// yields an empty (nil) result.
func (a *Aggregator) Rows() []Row {
	var out []Row
	for _, authorID := range a.order {
		total := a.counts[authorID]
		if a.allowDuplicates {
			for _, ar := range a.rows[authorID] {
				r := ar.row
				r.TotalMatches = total
				out = append(out, r)
			}
			continue
		}
		r := a.latest[authorID].row
		r.TotalMatches = total
		out = append(out, r)
	}
	return out
}
