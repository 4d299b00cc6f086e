// Package scanner drives a single scan run: it drains a message source
// into the match engine and reports progress along the way.
package scanner

import (
	"context"
	"errors"

	"tgscan/internal/match"
	"tgscan/internal/model"
	"tgscan/internal/source"
)

// progressEvery is how often the progress callback fires, in messages.
const progressEvery = 50

// Config describes one scan run.
type Config struct {
	Source source.Source
	Engine *match.Engine

	// Limit caps the number of messages consumed; <= 0 means no cap.
	Limit int

	// Progress, if set, is called every 50 scanned messages with the
	// scanned and matched counts so far.
	Progress func(scanned, matched int)

	// OnMatch, if set, is called for every matching message as it is
	// seen, before the stream ends.
	OnMatch func(msg model.Message, row match.Row)

	// Skip, if set, filters out messages (for example ones already
	// processed in a previous run) before they reach the engine.
	Skip func(msg model.Message) bool
}

// Report is the outcome of a scan run. It is valid even when the run
// ended early: a partial stream still yields a correct aggregate over
// the records that were seen.
type Report struct {
	Rows    []match.Row
	Scanned int
	Matched int
}

// Run consumes the source until it ends, the limit is reached, or the
// context is cancelled. A transport error ends the run and is returned
// alongside the partial report; cancellation is not reported as an
// error since stopping early is an ordinary way to finish a scan.
func Run(ctx context.Context, cfg Config) (Report, error) {
	var rep Report
	var runErr error

	for cfg.Limit <= 0 || rep.Scanned < cfg.Limit {
		msg, err := cfg.Source.Next(ctx)
		if err != nil {
			if errors.Is(err, source.ErrEndOfStream) ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) {
				break
			}
			runErr = err
			break
		}

		rep.Scanned++

		if cfg.Skip == nil || !cfg.Skip(msg) {
			if row, ok := cfg.Engine.Feed(msg); ok {
				if cfg.OnMatch != nil {
					cfg.OnMatch(msg, row)
				}
			}
		}

		if cfg.Progress != nil && rep.Scanned%progressEvery == 0 {
			cfg.Progress(rep.Scanned, cfg.Engine.Matched())
		}
	}

	rep.Rows = cfg.Engine.Finalize()
	rep.Matched = cfg.Engine.Matched()
	return rep, runErr
}
