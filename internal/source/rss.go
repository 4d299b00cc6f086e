package source

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"tgscan/internal/model"
)

const maxFeedBody = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FeedSource is the RSS transport strategy: the same engine run can
// consume a feed instead of a live Telegram chat. The feed is fetched
// and parsed up front; Next then replays the items oldest-first as
// message records.
type FeedSource struct {
	group model.Group
	items []model.Message
	idx   int
}

// FeedFetcher downloads and parses RSS feeds with exponential backoff
// on transient failures. Rate-limit responses are retried a bounded
// number of times and then surfaced as a FloodWaitError.
type FeedFetcher struct {
	client  HTTPClient
	timeout time.Duration
	backoff func() retry.Backoff
}

// NewFeedFetcher creates a FeedFetcher with the given HTTP client.
func NewFeedFetcher(client HTTPClient) *FeedFetcher {
	return &FeedFetcher{
		client:  client,
		timeout: 30 * time.Second,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(time.Second))
		},
	}
}

// Fetch retrieves url and builds a FeedSource from its items.
func (f *FeedFetcher) Fetch(ctx context.Context, url string) (*FeedSource, error) {
	var feed *gofeed.Feed

	err := retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		var ferr error
		feed, ferr = f.fetchOnce(ctx, url)
		if ferr != nil && retryable(ferr) {
			return retry.RetryableError(ferr)
		}
		return ferr
	})
	if err != nil {
		return nil, err
	}

	group := model.Group{Title: feed.Title, Link: url}
	if feed.Link != "" {
		group.Link = feed.Link
	}

	src := &FeedSource{group: group}
	// gofeed returns newest-first; replay oldest-first so the stream
	// reads like a chat history.
	for i := len(feed.Items) - 1; i >= 0; i-- {
		item := feed.Items[i]
		src.items = append(src.items, itemMessage(item, int64(len(feed.Items)-i)))
	}
	return src, nil
}

func (f *FeedFetcher) fetchOnce(ctx context.Context, url string) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "TGScanBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := 30 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if d, perr := time.ParseDuration(s + "s"); perr == nil {
				wait = d
			}
		}
		return nil, &FloodWaitError{RetryAfter: wait}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

// Group returns the feed metadata resolved during Fetch.
func (s *FeedSource) Group() model.Group { return s.group }

// Next replays the fetched items; the stream ends once exhausted.
func (s *FeedSource) Next(ctx context.Context) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	if s.idx >= len(s.items) {
		return model.Message{}, ErrEndOfStream
	}
	msg := s.items[s.idx]
	s.idx++
	return msg, nil
}

type httpStatusError struct {
	code int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func retryable(err error) bool {
	var se *httpStatusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	var fw *FloodWaitError
	return errors.As(err, &fw)
}

func itemMessage(item *gofeed.Item, seq int64) model.Message {
	msg := model.Message{ID: itemID(item, seq), Link: item.Link}

	author := ""
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0].Name != "" {
		author = item.Authors[0].Name
	}
	msg.AuthorUsername = author
	msg.AuthorID = authorHash(author)

	msg.Text = item.Title
	if item.Description != "" {
		msg.Text += "\n" + item.Description
	}

	if item.PublishedParsed != nil {
		msg.SentAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		msg.SentAt = *item.UpdatedParsed
	}
	return msg
}

// itemID derives a stable message id for a feed item, so seen-message
// tracking keeps working across fetches even as old items fall off the
// feed. Items with no usable identity fall back to their stream position.
func itemID(item *gofeed.Item, seq int64) int64 {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		return seq
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum32())
}

// authorHash derives a stable numeric author id for feed authors, so
// per-author aggregation works for feeds the same way it does for chats.
func authorHash(author string) int64 {
	if author == "" {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(author))
	return int64(h.Sum32())
}
