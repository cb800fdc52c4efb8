package hyperlink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultRel is the rel attribute emitted unless the caller overrides or unsets it.
const DefaultRel = "noopener noreferrer"

// Attribute is a single anchor attribute. Unset marks a key that is present
// but has no value; unset keys are dropped from the emitted markup.
type Attribute struct {
	Name  string
	Value string
	Unset bool
}

// Attr returns an attribute with a value.
func Attr(name, value string) Attribute {
	return Attribute{Name: name, Value: value}
}

// Omit returns an attribute that removes name from the resolved set.
func Omit(name string) Attribute {
	return Attribute{Name: name, Unset: true}
}

// CapitalizePolicy decides when the capitalized variant of a term is linked
// in addition to the term itself.
type CapitalizePolicy int

const (
	// CapitalizeAlways links the capitalized variant of every term. This is
	// wider than CapitalizeAnyUpper: a lowercase term whose url contains its
	// capitalized form (term "gopher", url ".../wiki/Gopher") gets that part
	// of the href linked by the capitalized pass of the same call.
	CapitalizeAlways CapitalizePolicy = iota
	// CapitalizeLeadingUpper links it only when the term's first rune is an
	// uppercase letter.
	CapitalizeLeadingUpper
	// CapitalizeAnyUpper links it when an ASCII uppercase letter appears
	// anywhere in the term.
	CapitalizeAnyUpper
)

var capitalizeNames = map[CapitalizePolicy]string{
	CapitalizeAlways:       "always",
	CapitalizeLeadingUpper: "leading-upper",
	CapitalizeAnyUpper:     "any-upper",
}

func (p CapitalizePolicy) String() string {
	if name, ok := capitalizeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("CapitalizePolicy(%d)", int(p))
}

// ParseCapitalizePolicy parses the names produced by String. An empty string
// selects CapitalizeAlways.
func ParseCapitalizePolicy(s string) (CapitalizePolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CapitalizeAlways, nil
	}
	for p, name := range capitalizeNames {
		if name == s {
			return p, nil
		}
	}
	return CapitalizeAlways, fmt.Errorf("unknown capitalize policy %q", s)
}

// Options configures the emitted anchor. Attributes are applied in order on
// top of the defaults (class, target, rel).
//
// The zero value uses CapitalizeAlways. Emitted hrefs are not protected
// from later passes: a url that ends in a term linked afterwards, or in the
// capitalized form of the term itself, is rewritten inside the href. Use
// CapitalizeAnyUpper, which skips the capitalized pass for all-lowercase
// terms, when urls end in capitalized terms.
type Options struct {
	Attributes []Attribute
	Capitalize CapitalizePolicy
}

// With returns a copy of o with attr overlaid.
func (o Options) With(attr Attribute) Options {
	o.Attributes = overlay(append([]Attribute(nil), o.Attributes...), attr)
	return o
}

func defaultAttributes() []Attribute {
	return []Attribute{
		Omit("class"),
		Omit("target"),
		Attr("rel", DefaultRel),
	}
}

// Resolve merges the defaults with the caller's attributes and drops every
// unset key. A caller key that already exists keeps its position; new keys are
// appended in caller order.
func Resolve(opts Options) []Attribute {
	merged := defaultAttributes()
	for _, attr := range opts.Attributes {
		merged = overlay(merged, attr)
	}

	ret := make([]Attribute, 0, len(merged))
	for _, attr := range merged {
		if attr.Unset {
			continue
		}
		ret = append(ret, attr)
	}
	return ret
}

func overlay(attrs []Attribute, attr Attribute) []Attribute {
	for i := range attrs {
		if attrs[i].Name == attr.Name {
			attrs[i] = attr
			return attrs
		}
	}
	return append(attrs, attr)
}

// MarshalJSON writes the attributes as an object; unset keys become null.
func (o Options) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range o.Attributes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(attr.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if attr.Unset {
			buf.WriteString("null")
			continue
		}
		value, err := json.Marshal(attr.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an attribute object preserving key order. null values
// unset the key; numbers and booleans are stringified. The capitalize policy
// is not part of the encoding.
func (o *Options) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		o.Attributes = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return newArgumentError("options", tok, "options is expected to be an object")
	}

	var attrs []Attribute
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		attr, err := attributeFromValue(key, raw)
		if err != nil {
			return err
		}
		attrs = overlay(attrs, attr)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	o.Attributes = attrs
	return nil
}

func attributeFromValue(name string, v any) (Attribute, error) {
	switch val := v.(type) {
	case nil:
		return Omit(name), nil
	case string:
		return Attr(name, val), nil
	case bool, json.Number, float64, float32, int, int64, int32, uint, uint64, uint32:
		return Attr(name, fmt.Sprint(val)), nil
	default:
		return Attribute{}, newArgumentError("options", v,
			"option %q is expected to be a scalar value, got %T", name, v)
	}
}
