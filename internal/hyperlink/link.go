// Package hyperlink wraps occurrences of terms in text with anchor markup.
//
// Matching is literal and case-sensitive. An occurrence must end on a word
// boundary and must not already sit inside an anchor. Every call is pure: the
// input is never modified and no state survives between calls apart from a
// cache of compiled patterns.
package hyperlink

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Link links every term in text. Terms are applied longest first so that a
// shorter term cannot split a longer one; terms is not reordered.
func Link(text string, terms []string, url string, opts Options) (string, error) {
	for _, term := range terms {
		if err := validateTerm(term); err != nil {
			return "", err
		}
	}

	out := text
	for _, term := range SortLongestFirst(terms) {
		out = substituteTerm(out, term, url, opts)
	}
	return out, nil
}

// LinkTerm links a single term in text.
func LinkTerm(text, term, url string, opts Options) (string, error) {
	if err := validateTerm(term); err != nil {
		return "", err
	}
	return substituteTerm(text, term, url, opts), nil
}

// SortLongestFirst returns a copy of terms ordered by descending rune count.
// Equal-length terms keep their relative order.
func SortLongestFirst(terms []string) []string {
	sorted := slices.Clone(terms)
	slices.SortStableFunc(sorted, func(a, b string) int {
		return utf8.RuneCountInString(b) - utf8.RuneCountInString(a)
	})
	return sorted
}

func validateTerm(term string) error {
	if term == "" {
		return newArgumentError("terms", term, "term must not be empty")
	}
	if !utf8.ValidString(term) {
		return newArgumentError("terms", term, "term %q is not valid UTF-8", term)
	}
	return nil
}

func substituteTerm(text, term, url string, opts Options) string {
	linked := ReplaceWholeWord(text, term, BuildFragment(term, url, opts))
	if !shouldCapitalize(term, opts.Capitalize) {
		return linked
	}

	capitalized := CapitalizeFirst(term)
	return ReplaceWholeWord(linked, capitalized, BuildFragment(capitalized, url, opts))
}

func shouldCapitalize(term string, policy CapitalizePolicy) bool {
	switch policy {
	case CapitalizeLeadingUpper:
		r, _ := utf8.DecodeRuneInString(term)
		return unicode.IsUpper(r)
	case CapitalizeAnyUpper:
		return strings.ContainsFunc(term, func(r rune) bool {
			return r >= 'A' && r <= 'Z'
		})
	default:
		return true
	}
}

// CapitalizeFirst upper-cases the first rune of term and leaves the rest as is.
// Special casings such as "ß" -> "SS" are applied.
func CapitalizeFirst(term string) string {
	r, size := utf8.DecodeRuneInString(term)
	if r == utf8.RuneError && size <= 1 {
		return term
	}
	return cases.Upper(language.Und).String(term[:size]) + term[size:]
}
