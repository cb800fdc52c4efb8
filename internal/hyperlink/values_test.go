package hyperlink

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkValues_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		text    any
		terms   any
		url     any
		options any
		param   string
	}{
		{name: "text not a string", text: 123, terms: "x", url: "url", param: "text"},
		{name: "url not a string", text: "t", terms: "x", url: 42, param: "url"},
		{name: "options not an object", text: "t", terms: "x", url: "url", options: "rel", param: "options"},
		{name: "terms not a string or list", text: "t", terms: 7, url: "url", param: "terms"},
		{name: "terms list of numbers", text: "t", terms: []any{1, 2}, url: "url", param: "terms"},
		{name: "nested option value", text: "t", terms: "x", url: "url", options: map[string]any{"data": []any{"a"}}, param: "options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LinkValues(tt.text, tt.terms, tt.url, tt.options)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, errors.Is(err, ErrInvalidArgument))

			var argErr *ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.param, argErr.Param)
		})
	}
}

func TestLinkValues_IdentifiesOffendingTerm(t *testing.T) {
	_, err := LinkValues("t", []any{"ok", 1, 2}, "url", nil)
	require.Error(t, err)

	var argErr *ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, 1, argErr.Value)
	assert.Contains(t, err.Error(), `term "1" is expected to be a string`)
}

func TestLinkValues_ValidInputs(t *testing.T) {
	got, err := LinkValues("I love cats", "cats", testURL, nil)
	require.NoError(t, err)
	assert.Equal(t, "I love "+anchor("cats"), got)

	got, err = LinkValues("foo foobar", []any{"foo", "foobar"}, testURL, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, anchor("foo")+" "+anchor("foobar"), got)

	got, err = LinkValues("cats", []string{"cats"}, testURL, map[string]any{"class": nil, "target": "_blank"})
	require.NoError(t, err)
	assert.Equal(t, `<a href="https://example.com" target="_blank" rel="noopener noreferrer">cats</a>`, got)
}

func TestParseOptions_MapOrdering(t *testing.T) {
	opts, err := ParseOptions(map[string]any{
		"data-z": "z",
		"rel":    "nofollow",
		"class":  "term",
		"data-a": true,
	})
	require.NoError(t, err)

	assert.Equal(t, []Attribute{
		Attr("class", "term"),
		Attr("rel", "nofollow"),
		Attr("data-a", "true"),
		Attr("data-z", "z"),
	}, opts.Attributes)
}

func TestParseOptions_Shapes(t *testing.T) {
	base := Options{Attributes: []Attribute{Attr("class", "x")}, Capitalize: CapitalizeAnyUpper}

	got, err := ParseOptions(base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = ParseOptions(&base)
	require.NoError(t, err)
	assert.Equal(t, base, got)

	got, err = ParseOptions([]Attribute{Attr("id", "1")})
	require.NoError(t, err)
	assert.Equal(t, []Attribute{Attr("id", "1")}, got.Attributes)

	got, err = ParseOptions(map[string]string{"target": "_self"})
	require.NoError(t, err)
	assert.Equal(t, []Attribute{Attr("target", "_self")}, got.Attributes)
}

func TestParseTerms(t *testing.T) {
	terms, err := ParseTerms("one")
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, terms)

	src := []string{"a", "b"}
	terms, err = ParseTerms(src)
	require.NoError(t, err)
	terms[0] = "changed"
	assert.Equal(t, "a", src[0])

	_, err = ParseTerms(map[string]any{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestOptions_JSONPreservesOrder(t *testing.T) {
	var opts Options
	require.NoError(t, json.Unmarshal([]byte(`{"target":"_blank","data-id":7,"class":null,"rel":"nofollow"}`), &opts))

	assert.Equal(t, []Attribute{
		Attr("target", "_blank"),
		Attr("data-id", "7"),
		Omit("class"),
		Attr("rel", "nofollow"),
	}, opts.Attributes)

	assert.Equal(t, []Attribute{
		Attr("target", "_blank"),
		Attr("rel", "nofollow"),
		Attr("data-id", "7"),
	}, Resolve(opts))

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"target":"_blank","data-id":"7","class":null,"rel":"nofollow"}`, string(data))
}

func TestOptions_JSONRejectsNonObject(t *testing.T) {
	var opts Options
	err := json.Unmarshal([]byte(`["rel"]`), &opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = json.Unmarshal([]byte(`{"rel":{"nested":true}}`), &opts)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, []Attribute{Attr("rel", DefaultRel)}, Resolve(Options{}))

	opts := Options{}.With(Omit("rel")).With(Attr("class", "glossary"))
	assert.Equal(t, []Attribute{Attr("class", "glossary")}, Resolve(opts))
}

func TestBuildFragment(t *testing.T) {
	assert.Equal(t,
		`<a href="/t" class="k" rel="noopener noreferrer">term</a>`,
		BuildFragment("term", "/t", Options{Attributes: []Attribute{Attr("class", "k")}}))

	// Without attributes the space before ">" is kept.
	assert.Equal(t,
		`<a href="/t" >term</a>`,
		BuildFragment("term", "/t", Options{Attributes: []Attribute{Omit("rel")}}))
}
