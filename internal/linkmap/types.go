package linkmap

import (
	"encoding/json"

	"github.com/MimeLyc/term-linker/internal/hyperlink"
)

// Rule links Terms to URL with the given anchor options.
type Rule struct {
	URL     string            `json:"url"`
	Terms   []string          `json:"terms"`
	Options hyperlink.Options `json:"options"`
}

// RuleSet is applied in order; later rules see the output of earlier ones.
type RuleSet []Rule

// MatchResult holds rules with at least one term present in the input texts.
type MatchResult struct {
	Matched RuleSet
}

// UnmarshalJSON accepts "terms" as a single string or a list of strings and
// reports type errors as hyperlink argument errors.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL     any             `json:"url"`
		Terms   any             `json:"terms"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	url, ok := raw.URL.(string)
	if !ok {
		return &hyperlink.ArgumentError{
			Param:   "url",
			Value:   raw.URL,
			Message: "url is expected to be a string",
		}
	}
	terms, err := hyperlink.ParseTerms(raw.Terms)
	if err != nil {
		return err
	}
	var opts hyperlink.Options
	if len(raw.Options) > 0 {
		if err := json.Unmarshal(raw.Options, &opts); err != nil {
			return err
		}
	}

	*r = Rule{URL: url, Terms: terms, Options: opts}
	return nil
}
