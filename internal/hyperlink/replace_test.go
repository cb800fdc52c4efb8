package hyperlink

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceWholeWord(t *testing.T) {
	const frag = "<L>"

	tests := []struct {
		name string
		text string
		term string
		want string
	}{
		{
			name: "all occurrences",
			text: "go go go",
			term: "go",
			want: "<L> <L> <L>",
		},
		{
			name: "trailing word character rejects",
			text: "gopher go",
			term: "go",
			want: "gopher <L>",
		},
		{
			name: "punctuation is a boundary",
			text: "go, go! (go)",
			term: "go",
			want: "<L>, <L>! (<L>)",
		},
		{
			name: "case sensitive",
			text: "Go go",
			term: "go",
			want: "Go <L>",
		},
		{
			name: "inside existing anchor",
			text: `<a href="/x">go</a> go`,
			term: "go",
			want: `<a href="/x">go</a> <L>`,
		},
		{
			name: "directly before closing anchor",
			text: `see go</a> go`,
			term: "go",
			want: `see go</a> <L>`,
		},
		{
			name: "after open anchor text with space",
			text: `<a href="/x">let go</a> go`,
			term: "go",
			want: `<a href="/x">let go</a> <L>`,
		},
		{
			name: "open anchor on previous line does not exclude",
			text: "<a href=\"/x\">\n>go",
			term: "go",
			want: "<a href=\"/x\">\n><L>",
		},
		{
			name: "any tag starting with <a excludes",
			text: "<abbr>go</abbr>",
			term: "go",
			want: "<abbr>go</abbr>",
		},
		{
			name: "other tag does not exclude",
			text: "<b>go</b>",
			term: "go",
			want: "<b><L></b>",
		},
		{
			name: "term ending in non-word character needs word after",
			text: "C++ C++x",
			term: "C++",
			want: "C++ <L>x",
		},
		{
			name: "unicode text around term",
			text: "café go über go",
			term: "go",
			want: "café <L> über <L>",
		},
		{
			name: "empty text",
			text: "",
			term: "go",
			want: "",
		},
		{
			name: "empty term is a no-op",
			text: "go",
			term: "",
			want: "go",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceWholeWord(tt.text, tt.term, frag))
		})
	}
}

func TestReplaceWholeWord_RetriesAfterRejectedCandidate(t *testing.T) {
	// "aa" at 1 is followed by </a>; scanning resumes one rune later and
	// accepts the "aa" at 7.
	text := ">aa</a>aa"
	assert.Equal(t, ">aa</a><L>", ReplaceWholeWord(text, "aa", "<L>"))

	// The leftmost occurrence that ends on a boundary wins.
	assert.Equal(t, "a<L>", ReplaceWholeWord("aaa", "aa", "<L>"))
}

func TestEscapeTerm(t *testing.T) {
	assert.Equal(t, `a\.b\*c\(d\)`, EscapeTerm("a.b*c(d)"))
	assert.Equal(t, "plain", EscapeTerm("plain"))
}

func insideOpenAnchor(text string, i int) bool {
	tracker := anchorTracker{text: text}
	return tracker.insideOpen(i)
}

func TestInsideOpenAnchor(t *testing.T) {
	assert.False(t, insideOpenAnchor("go", 0))
	assert.False(t, insideOpenAnchor("x go", 2))
	assert.True(t, insideOpenAnchor("<a>go", 3))
	assert.True(t, insideOpenAnchor(`<a href="x" class="y">go`, 22))
	assert.False(t, insideOpenAnchor("<a\n>go", 4))
	assert.False(t, insideOpenAnchor("<a\u2028>go", 6))
	assert.True(t, insideOpenAnchor("<a >go", 4))
	// "<a>" is the shortest open tag; "<>" alone is not one.
	assert.False(t, insideOpenAnchor("<>go", 2))
}

func TestAnchorTracker_IncrementalMatchesFreshScan(t *testing.T) {
	texts := []string{
		`<p>x>y <a href="/x">a>b</a> c>d` + "\n" + `e>f <a>g>h` + "\u2029" + `>i`,
		`>>><a>>>` + "\r" + `>>`,
		`<b>one</b> <abbr>two</abbr>` + "\n" + `<a` + "\u2028" + `>three`,
	}
	for _, text := range texts {
		tracker := anchorTracker{text: text}
		for i := 0; i <= len(text); i++ {
			assert.Equal(t, insideOpenAnchor(text, i), tracker.insideOpen(i), "text %q at %d", text, i)
		}
	}
}

func TestReplaceWholeWord_LongSingleLine(t *testing.T) {
	var in, want strings.Builder
	in.WriteString(`<a href="/x">`)
	want.WriteString(`<a href="/x">`)
	for range 20000 {
		in.WriteString("<b>go</b>")
		want.WriteString("<b>go</b>")
	}
	in.WriteString("</a>\n")
	want.WriteString("</a>\n")
	for range 20000 {
		in.WriteString("<b>go</b>")
		want.WriteString("<b><L></b>")
	}

	assert.Equal(t, want.String(), ReplaceWholeWord(in.String(), "go", "<L>"))
}
