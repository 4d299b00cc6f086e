package match

import "tgscan/internal/model"

// Config describes one engine run.
type Config struct {
	Keywords        *KeywordSet
	Group           model.Group
	AllowDuplicates bool
}

// Engine is the keyword matching and aggregation pipeline. It is a
// synchronous step function: the caller feeds it one record at a time
// and finalizes it once the stream ends. Feeding may stop at any point
// (partial stream); the aggregate built so far stays valid.
type Engine struct {
	cfg Config
	agg *Aggregator
}

// NewEngine creates an Engine for one run.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg: cfg,
		agg: NewAggregator(cfg.AllowDuplicates),
	}
}

// Feed processes one message. If the message matches, the constructed
// row is recorded in the aggregate and returned; the row's TotalMatches
// is only provisional until Finalize. Messages without text never match.
func (e *Engine) Feed(msg model.Message) (Row, bool) {
	if msg.Text == "" {
		return Row{}, false
	}

	term, ok := e.cfg.Keywords.Match(Normalize(msg.Text))
	if !ok {
		return Row{}, false
	}

	link := msg.Link
	if link == "" {
		link = BuildLink(e.cfg.Group, msg.ID)
	}

	row := Row{
		Handle:     BuildHandle(msg.AuthorID, msg.AuthorUsername),
		Term:       term,
		GroupTitle: e.cfg.Group.Title,
		Link:       link,
		Date:       FormatDate(msg.SentAt),
		Preview:    BuildPreview(msg.Text),
	}
	e.agg.Add(msg.AuthorID, msg.SentAt, row)
	row.TotalMatches = e.agg.Total(msg.AuthorID)
	return row, true
}

// Matched returns the number of matching messages fed so far.
func (e *Engine) Matched() int { return e.agg.Matched() }

// Finalize materializes the ordered result rows with final per-author
// totals patched in. A run with no matches yields an empty result.
func (e *Engine) Finalize() []Row {
	return e.agg.Rows()
}
