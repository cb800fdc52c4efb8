package hyperlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://example.com"

func anchor(term string) string {
	return `<a href="` + testURL + `" rel="noopener noreferrer">` + term + `</a>`
}

func TestLink_SingleTerm(t *testing.T) {
	got, err := LinkTerm("I love cats", "cats", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, `I love <a href="https://example.com" rel="noopener noreferrer">cats</a>`, got)
}

func TestLink_TermNotPresent(t *testing.T) {
	texts := []string{
		"",
		"nothing to see here",
		"<p>Some <a href=\"/x\">markup</a></p>",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			got, err := LinkTerm(text, "zebra", testURL, Options{})
			require.NoError(t, err)
			assert.Equal(t, text, got)
		})
	}
}

func TestLink_LongestFirst(t *testing.T) {
	got, err := Link("foo foobar", []string{"foo", "foobar"}, testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, anchor("foo")+" "+anchor("foobar"), got)
}

func TestLink_DoesNotReorderCallerTerms(t *testing.T) {
	terms := []string{"a", "abc", "ab"}
	_, err := Link("abc ab a", terms, testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "abc", "ab"}, terms)
}

func TestLink_Capitalization(t *testing.T) {
	got, err := LinkTerm("Cat and cat", "cat", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, anchor("Cat")+" and "+anchor("cat"), got)
}

func TestLink_CapitalizePolicies(t *testing.T) {
	tests := []struct {
		name   string
		term   string
		policy CapitalizePolicy
		text   string
		want   string
	}{
		{
			name:   "always links capitalized lowercase term",
			term:   "cat",
			policy: CapitalizeAlways,
			text:   "Cat cat",
			want:   anchor("Cat") + " " + anchor("cat"),
		},
		{
			name:   "leading upper skips lowercase term",
			term:   "cat",
			policy: CapitalizeLeadingUpper,
			text:   "Cat cat",
			want:   "Cat " + anchor("cat"),
		},
		{
			name:   "leading upper with capitalized term",
			term:   "Rome",
			policy: CapitalizeLeadingUpper,
			text:   "Rome rome",
			want:   anchor("Rome") + " rome",
		},
		{
			name:   "any upper runs for inner uppercase",
			term:   "iPhone",
			policy: CapitalizeAnyUpper,
			text:   "iPhone IPhone",
			want:   anchor("iPhone") + " " + anchor("IPhone"),
		},
		{
			name:   "any upper skips all lowercase",
			term:   "phone",
			policy: CapitalizeAnyUpper,
			text:   "Phone phone",
			want:   "Phone " + anchor("phone"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LinkTerm(tt.text, tt.term, testURL, Options{Capitalize: tt.policy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLink_CapitalizedTermAlreadyLinked(t *testing.T) {
	// The capitalized pass for "Cat" must not re-wrap the anchor it just made.
	got, err := LinkTerm("Cat", "Cat", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, anchor("Cat"), got)
}

func TestLink_ReapplyIsStable(t *testing.T) {
	once, err := LinkTerm("I love cats", "cats", testURL, Options{})
	require.NoError(t, err)

	twice, err := LinkTerm(once, "cats", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestLink_OptionsFiltering(t *testing.T) {
	opts := Options{Attributes: []Attribute{Omit("class"), Attr("target", "_blank")}}

	got, err := LinkTerm("cats", "cats", testURL, opts)
	require.NoError(t, err)
	assert.Equal(t, `<a href="https://example.com" target="_blank" rel="noopener noreferrer">cats</a>`, got)
	assert.NotContains(t, got, "class=")
}

func TestLink_SuffixLooseness(t *testing.T) {
	// Only the trailing edge is checked, so a term ending a longer word matches.
	got, err := LinkTerm("bobcat", "cat", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "bob"+anchor("cat"), got)

	// The trailing boundary still rejects a term followed by a word character.
	got, err = LinkTerm("concatenate", "cat", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "concatenate", got)
}

func TestLink_MetacharactersMatchLiterally(t *testing.T) {
	got, err := LinkTerm("we use a.b and axb", "a.b", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "we use "+anchor("a.b")+" and axb", got)

	got, err = LinkTerm("(beta) release", "(beta", testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, anchor("(beta")+") release", got)
}

func TestLink_EmptyTerm(t *testing.T) {
	_, err := Link("text", []string{"ok", ""}, testURL, Options{})
	require.Error(t, err)
	assert.True(t, IsInvalidArgument(err))

	_, err = LinkTerm("text", "", testURL, Options{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLink_NoTerms(t *testing.T) {
	got, err := Link("unchanged", nil, testURL, Options{})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", got)
}

func TestSortLongestFirst(t *testing.T) {
	terms := []string{"bb", "a", "ccc", "dd", "日本語"}
	sorted := SortLongestFirst(terms)

	assert.Equal(t, []string{"ccc", "日本語", "bb", "dd", "a"}, sorted)
	assert.Equal(t, []string{"bb", "a", "ccc", "dd", "日本語"}, terms)
}

func TestCapitalizeFirst(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"cat", "Cat"},
		{"Cat", "Cat"},
		{"mcDonald", "McDonald"},
		{"élan", "Élan"},
		{"ßig", "SSig"},
		{"1st", "1st"},
		{"x", "X"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CapitalizeFirst(tt.input))
		})
	}
}

func TestParseCapitalizePolicy(t *testing.T) {
	for _, p := range []CapitalizePolicy{CapitalizeAlways, CapitalizeLeadingUpper, CapitalizeAnyUpper} {
		got, err := ParseCapitalizePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	got, err := ParseCapitalizePolicy("")
	require.NoError(t, err)
	assert.Equal(t, CapitalizeAlways, got)

	_, err = ParseCapitalizePolicy("sometimes")
	assert.Error(t, err)
}

func TestLink_CapitalizedPassReachesHref(t *testing.T) {
	const url = "https://example.com/wiki/Gopher"
	plain := `<a href="` + url + `" rel="noopener noreferrer">gopher</a>`

	got, err := LinkTerm("a gopher", "gopher", url, Options{Capitalize: CapitalizeAnyUpper})
	require.NoError(t, err)
	assert.Equal(t, "a "+plain, got)

	// The default policy runs the Gopher pass over the href just emitted.
	got, err = LinkTerm("a gopher", "gopher", url, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, "a "+plain, got)
	assert.Contains(t, got, `wiki/<a href="`+url)
}
