package match

import (
	"fmt"
	"strings"
	"time"

	"tgscan/internal/model"
)

const (
	previewLimit = 100
	dateLayout   = "2006-01-02 15:04:05"
)

// BuildLink constructs the public link to a message. Supergroups and
// channels carry a -100 prefix on their numeric id; for those the
// t.me/c/ form is used with the prefix stripped. Everything else links
// relative to the group's own link.
func BuildLink(group model.Group, messageID int64) string {
	id := fmt.Sprintf("%d", group.ID)
	if strings.HasPrefix(id, "-100") {
		return fmt.Sprintf("https://t.me/c/%s/%d", id[4:], messageID)
	}
	return fmt.Sprintf("%s/%d", strings.TrimRight(group.Link, "/"), messageID)
}

// BuildHandle returns a stable non-empty handle for an author:
// @username when one exists, a synthetic @ID_<id> otherwise.
func BuildHandle(authorID int64, username string) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("@ID_%d", authorID)
}

// BuildPreview derives a presentation-safe preview from raw message
// text: line breaks become spaces, characters outside the 16-bit
// codepoint range are stripped for export safety, and the result is
// truncated to 100 characters with a trailing ellipsis.
func BuildPreview(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r > 0xFFFF:
			// skip astral-plane runes
		default:
			b.WriteRune(r)
		}
	}
	s := b.String()

	runes := []rune(s)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "..."
	}
	return s
}

// FormatDate renders a timestamp in the fixed result-table layout.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
