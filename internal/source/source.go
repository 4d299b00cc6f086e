// Package source provides the message sources a scan can consume:
// a live Telegram update feed and an RSS feed. A source delivers a
// finite, non-restartable stream of messages; transport failures such
// as rate limiting surface as distinguishable errors, never swallowed.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tgscan/internal/model"
)

// ErrEndOfStream signals normal termination of a message source.
var ErrEndOfStream = errors.New("end of stream")

// FloodWaitError reports that the transport is rate limited and when
// it may be retried. The scan consuming the source decides whether to
// stop with partial results or wait.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Source is a finite stream of messages. Next blocks until a message
// is available, the stream ends (ErrEndOfStream), the context is
// cancelled, or the transport fails.
type Source interface {
	Next(ctx context.Context) (model.Message, error)
}
