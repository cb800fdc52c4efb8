package hyperlink

import (
	"fmt"
	"maps"
	"slices"
)

// LinkValues is Link for loosely typed input such as decoded JSON. Every
// argument is validated before any substitution takes place.
//
// terms may be a string, a []string or a []any holding only strings. options
// may be nil, Options, *Options, []Attribute, map[string]string or
// map[string]any.
func LinkValues(text, terms, url, options any) (string, error) {
	t, ok := text.(string)
	if !ok {
		return "", newArgumentError("text", text, "text is expected to be a string")
	}
	u, ok := url.(string)
	if !ok {
		return "", newArgumentError("url", url, "url is expected to be a string")
	}
	opts, err := ParseOptions(options)
	if err != nil {
		return "", err
	}
	list, err := ParseTerms(terms)
	if err != nil {
		return "", err
	}
	return Link(t, list, u, opts)
}

// ParseTerms accepts a single term or a list of terms.
func ParseTerms(v any) ([]string, error) {
	switch terms := v.(type) {
	case string:
		return []string{terms}, nil
	case []string:
		return slices.Clone(terms), nil
	case []any:
		ret := make([]string, 0, len(terms))
		for _, item := range terms {
			s, ok := item.(string)
			if !ok {
				return nil, newArgumentError("terms", item, "term %q is expected to be a string", fmt.Sprint(item))
			}
			ret = append(ret, s)
		}
		return ret, nil
	default:
		return nil, newArgumentError("terms", v, "terms is expected to be a string or a list of strings")
	}
}

// ParseOptions converts the supported option shapes to Options. Keys of a
// map other than class, target and rel are appended in sorted order, since a
// Go map carries no order of its own.
func ParseOptions(v any) (Options, error) {
	switch opts := v.(type) {
	case nil:
		return Options{}, nil
	case Options:
		return opts, nil
	case *Options:
		if opts == nil {
			return Options{}, nil
		}
		return *opts, nil
	case []Attribute:
		return Options{Attributes: slices.Clone(opts)}, nil
	case map[string]string:
		ret := Options{}
		for _, key := range orderedKeys(opts) {
			ret.Attributes = append(ret.Attributes, Attr(key, opts[key]))
		}
		return ret, nil
	case map[string]any:
		ret := Options{}
		for _, key := range orderedKeys(opts) {
			attr, err := attributeFromValue(key, opts[key])
			if err != nil {
				return Options{}, err
			}
			ret.Attributes = append(ret.Attributes, attr)
		}
		return ret, nil
	default:
		return Options{}, newArgumentError("options", v, "options is expected to be an object")
	}
}

func orderedKeys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for _, attr := range defaultAttributes() {
		if _, ok := m[attr.Name]; ok {
			ret = append(ret, attr.Name)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(ret, key) {
			ret = append(ret, key)
		}
	}
	return ret
}
