package match

import (
	"fmt"
	"strings"
)

// term pairs a user-supplied keyword with its comparable form.
type term struct {
	original   string
	normalized string
}

// KeywordSet holds the include and exclude terms of one engine run,
// pre-normalized for comparison. Term order is the order the user
// supplied and determines matched-term selection.
type KeywordSet struct {
	includes      []term
	excludes      []string
	caseSensitive bool
}

// NewKeywordSet builds a KeywordSet from raw user input. Blank and
// whitespace-only terms are dropped. At least one non-blank include
// term is required; an empty include list is a configuration error
// the engine never sees.
func NewKeywordSet(includes, excludes []string, caseSensitive bool) (*KeywordSet, error) {
	ks := &KeywordSet{caseSensitive: caseSensitive}

	for _, raw := range includes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ks.includes = append(ks.includes, term{
			original:   strings.TrimSpace(raw),
			normalized: ks.comparable(raw),
		})
	}
	if len(ks.includes) == 0 {
		return nil, fmt.Errorf("at least one include keyword is required")
	}

	for _, raw := range excludes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		ks.excludes = append(ks.excludes, ks.comparable(raw))
	}

	return ks, nil
}

// Match reports whether normalized text matches the include/exclude
// policy and returns the original spelling of the matched include term.
// The text must already be normalized via Normalize; folding is applied
// here when the set is case-insensitive.
//
// A text matches iff at least one include term occurs in it and no
// exclude term does. The matched term is the first include term in
// user-declared order found in the text.
func (ks *KeywordSet) Match(normalizedText string) (string, bool) {
	if normalizedText == "" {
		return "", false
	}
	text := normalizedText
	if !ks.caseSensitive {
		text = Fold(text)
	}

	matched := ""
	for _, t := range ks.includes {
		if strings.Contains(text, t.normalized) {
			matched = t.original
			break
		}
	}
	if matched == "" {
		return "", false
	}

	for _, ex := range ks.excludes {
		if strings.Contains(text, ex) {
			return "", false
		}
	}
	return matched, true
}

// CaseSensitive reports whether the set compares terms case-sensitively.
func (ks *KeywordSet) CaseSensitive() bool { return ks.caseSensitive }

// Includes returns the original spellings of the include terms.
func (ks *KeywordSet) Includes() []string {
	out := make([]string, len(ks.includes))
	for i, t := range ks.includes {
		out[i] = t.original
	}
	return out
}

// comparable normalizes a term the same way message text is normalized.
func (ks *KeywordSet) comparable(raw string) string {
	n := Normalize(raw)
	if !ks.caseSensitive {
		n = Fold(n)
	}
	return n
}
