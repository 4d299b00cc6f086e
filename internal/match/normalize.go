// Package match implements the keyword matching and result aggregation engine.
package match

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// bidiControls covers the Unicode bidirectional control characters:
// ALM, LRM/RLM, the embedding/override block, and the isolate block.
var bidiControls = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x061C, Hi: 0x061C, Stride: 1},
		{Lo: 0x200E, Hi: 0x200F, Stride: 1},
		{Lo: 0x202A, Hi: 0x202E, Stride: 1},
		{Lo: 0x2066, Hi: 0x2069, Stride: 1},
	},
}

// chainPool hands out fresh transformer chains; a chain is stateful and
// cannot be shared between concurrent callers.
var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			runes.Remove(runes.In(bidiControls)),
			norm.NFC,
		)
	},
}

// Normalize returns the canonical comparable form of s: bidi control
// characters stripped, canonical decomposition + composition applied,
// whitespace runs collapsed to single spaces, ends trimmed.
// It never fails; empty input yields empty output.
//
// Case folding is not part of normalization; KeywordSet applies it as
// a separate toggle so case sensitivity stays an orthogonal setting.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, err := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)
	if err != nil {
		ns = s
	}

	return collapseSpaces(ns)
}

// Fold lowercases s using Unicode case folding.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// collapseSpaces converts whitespace runs to a single ASCII space and
// trims leading/trailing whitespace.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inWS := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inWS = true
			continue
		}
		if inWS && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inWS = false
		b.WriteRune(r)
	}
	return b.String()
}
