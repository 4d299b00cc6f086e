// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// Scan represents a configured keyword scan of one target group or feed.
type Scan struct {
	ID              int64
	ChatID          int64
	Target          string
	Title           string
	GroupID         int64
	MessageLimit    int
	IntervalMinutes int
	CaseSensitive   bool
	AllowDuplicates bool
	IsActive        bool
	LastRunAt       *time.Time
	CreatedAt       time.Time
}

// IsFeedTarget reports whether the scan target is an RSS feed URL
// rather than a Telegram group.
func (s *Scan) IsFeedTarget() bool {
	return strings.HasPrefix(s.Target, "http") && !strings.Contains(s.Target, "t.me/")
}

// KeywordKind defines whether a term whitelists or blacklists a message.
type KeywordKind string

// Supported keyword kinds.
const (
	KeywordInclude KeywordKind = "include"
	KeywordExclude KeywordKind = "exclude"
)

// Keyword represents a single search term attached to a scan.
type Keyword struct {
	ID        int64
	ScanID    int64
	Kind      KeywordKind
	Term      string
	CreatedAt time.Time
}

// Group holds the metadata of a resolved scan target.
type Group struct {
	ID    int64
	Title string
	Link  string
}

// Message is one raw record delivered by a message source. Link is the
// record's canonical URL when the source knows one (feed items); chat
// messages leave it empty and get a link built from the group instead.
type Message struct {
	ID             int64
	GroupID        int64
	AuthorID       int64
	AuthorUsername string
	Text           string
	Link           string
	SentAt         time.Time
}

// Match is a persisted result row for one matching message.
type Match struct {
	ID           int64
	ScanID       int64
	AuthorID     int64
	AuthorHandle string
	Term         string
	MessageID    int64
	Link         string
	SentAt       time.Time
	Preview      string
}
