package hyperlink

import (
	"slices"
	"strings"
)

// BuildFragment renders the anchor markup for term. href is always first,
// followed by the resolved attributes. Nothing is escaped.
func BuildFragment(term, url string, opts Options) string {
	var b strings.Builder
	b.WriteString(`<a href="`)
	b.WriteString(url)
	b.WriteString(`" `)
	b.WriteString(SerializeAttributes(Resolve(opts)))
	b.WriteString(">")
	b.WriteString(term)
	b.WriteString("</a>")
	return b.String()
}

// SerializeAttributes renders attrs as key="value" pairs separated by spaces.
func SerializeAttributes(attrs []Attribute) string {
	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		parts = append(parts, attr.Name+`="`+attr.Value+`"`)
	}
	return strings.Join(parts, " ")
}

// Fragment pairs a term with the markup emitted for it.
type Fragment struct {
	Term   string `json:"term"`
	Markup string `json:"markup"`
}

// Fragments returns the markup Link can emit for terms: one fragment per term
// and, where opts.Capitalize allows, one per capitalized form.
func Fragments(terms []string, url string, opts Options) []Fragment {
	seen := make(map[string]bool, len(terms))
	ret := make([]Fragment, 0, len(terms))
	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		ret = append(ret, Fragment{Term: term, Markup: BuildFragment(term, url, opts)})
	}
	for _, term := range terms {
		add(term)
		if shouldCapitalize(term, opts.Capitalize) {
			add(CapitalizeFirst(term))
		}
	}
	return ret
}

// Unlink replaces every occurrence of a fragment's markup in text with its
// term. Longer markup wins where two overlap.
func Unlink(text string, fragments []Fragment) string {
	if len(fragments) == 0 {
		return text
	}
	sorted := slices.Clone(fragments)
	slices.SortStableFunc(sorted, func(a, b Fragment) int {
		return len(b.Markup) - len(a.Markup)
	})
	pairs := make([]string, 0, 2*len(sorted))
	for _, f := range sorted {
		if f.Markup != "" {
			pairs = append(pairs, f.Markup, f.Term)
		}
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
