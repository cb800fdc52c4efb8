package hyperlink

import (
	"regexp"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const patternCacheSize = 1024

var patternCache = newPatternCache(patternCacheSize)

func newPatternCache(size int) *lru.Cache[string, *regexp.Regexp] {
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		panic(err)
	}
	return cache
}

// EscapeTerm quotes every pattern metacharacter in term so it matches literally.
func EscapeTerm(term string) string {
	return regexp.QuoteMeta(term)
}

// termPattern matches term followed by a word boundary.
func termPattern(term string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Get(term); ok {
		return re, nil
	}
	re, err := regexp.Compile(EscapeTerm(term) + `\b`)
	if err != nil {
		return nil, err
	}
	patternCache.Add(term, re)
	return re, nil
}

// ReplaceWholeWord replaces every occurrence of term that ends on a word
// boundary with fragment, in one left-to-right pass. Occurrences directly
// after an open anchor tag on the same line, or directly followed by </a>,
// are left alone. The leading edge of the term is not checked.
func ReplaceWholeWord(text, term, fragment string) string {
	if term == "" {
		return text
	}
	re, err := termPattern(term)
	if err != nil {
		return text
	}

	var b strings.Builder
	anchors := anchorTracker{text: text}
	replaced := false
	last, pos := 0, 0
	for pos < len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]

		if anchors.insideOpen(start) || closedByAnchor(text, end) {
			// Retry one rune later; a later start may still match.
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + max(size, 1)
			continue
		}

		b.WriteString(text[last:start])
		b.WriteString(fragment)
		replaced = true
		last, pos = end, end
	}

	if !replaced {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// anchorTracker answers open-anchor queries for increasing positions of one
// text. Each byte is scanned once, however many candidates a line holds.
type anchorTracker struct {
	text    string
	scanned int  // text[:scanned] has been consumed
	open    bool // "<a" seen since the last line terminator
}

// insideOpen reports whether the text before i ends with "<a", any run of
// non-terminator characters, and ">". Calls must not decrease i.
func (t *anchorTracker) insideOpen(i int) bool {
	if i == 0 || t.text[i-1] != '>' {
		return false
	}
	t.advance(i - 1)
	return t.open
}

// advance consumes text up to limit. An "<a" cannot straddle limit because
// text[limit] is always '>'.
func (t *anchorTracker) advance(limit int) {
	for t.scanned < limit {
		rest := t.text[t.scanned:limit]
		switch {
		case rest[0] == '\n' || rest[0] == '\r':
			t.open = false
			t.scanned++
		case strings.HasPrefix(rest, "\u2028") || strings.HasPrefix(rest, "\u2029"):
			t.open = false
			t.scanned += len("\u2028")
		case strings.HasPrefix(rest, "<a"):
			t.open = true
			t.scanned += 2
		default:
			t.scanned++
		}
	}
}

func closedByAnchor(text string, end int) bool {
	return strings.HasPrefix(text[end:], "</a>")
}
