package linkmap

import (
	"fmt"
	"strings"

	"github.com/MimeLyc/term-linker/internal/hyperlink"
)

// Match filters rules to those with a term, or its capitalized form, that
// appears in the given texts. Uses case-sensitive substring matching, so a
// rule that is not matched cannot change any of the texts.
func Match(rules RuleSet, texts []string) MatchResult {
	matched := make(RuleSet, 0)

	for _, rule := range rules {
		if ruleOccurs(rule, texts) {
			matched = append(matched, rule)
		}
	}

	return MatchResult{Matched: matched}
}

func ruleOccurs(rule Rule, texts []string) bool {
	for _, term := range rule.Terms {
		if term == "" {
			continue
		}
		capitalized := hyperlink.CapitalizeFirst(term)
		for _, text := range texts {
			if strings.Contains(text, term) || strings.Contains(text, capitalized) {
				return true
			}
		}
	}
	return false
}

// Apply links text with each rule in order, using policy for every rule.
func Apply(text string, rules RuleSet, policy hyperlink.CapitalizePolicy) (string, error) {
	out := text
	for i, rule := range rules {
		opts := rule.Options
		opts.Capitalize = policy

		linked, err := hyperlink.Link(out, rule.Terms, rule.URL, opts)
		if err != nil {
			return "", fmt.Errorf("rule %d (%s): %w", i, rule.URL, err)
		}
		out = linked
	}
	return out, nil
}

// Fragments returns the markup Apply can emit for rules under policy.
func Fragments(rules RuleSet, policy hyperlink.CapitalizePolicy) []hyperlink.Fragment {
	var ret []hyperlink.Fragment
	for _, rule := range rules {
		opts := rule.Options
		opts.Capitalize = policy
		ret = append(ret, hyperlink.Fragments(rule.Terms, rule.URL, opts)...)
	}
	return ret
}
