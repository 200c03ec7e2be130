package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind enumerates the variants a [Value] can hold.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return ""
	}
}

// Value is a typed parameter value recovered from the source's string
// encoding. Exactly one of the payload fields is meaningful, selected by Kind.
type Value struct {
	Kind  Kind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	List  []Value
	Map   map[string]Value
}

func StringValue(s string) Value        { return Value{Kind: KindString, Str: s} }
func IntValue(i int64) Value            { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value        { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value            { return Value{Kind: KindBool, Bool: b} }
func ListValue(vs ...Value) Value       { return Value{Kind: KindList, List: vs} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// ParseValue re-interprets a string-encoded parameter into its native type.
//
// The source store stringifies every parameter; this reverses that for
// numbers, booleans, quoted strings, lists and nested mappings, accepting
// both JSON-style and Python-style literal syntax ("True", single quotes).
// Input that is not a complete literal stays a string, verbatim.
func ParseValue(s string) Value {
	p := &valueParser{s: s}
	v, err := p.parse()
	if err != nil {
		return StringValue(s)
	}
	p.skipSpace()
	if p.i != len(p.s) {
		// Trailing garbage after a valid prefix, e.g. "42nd street".
		return StringValue(s)
	}
	return v
}

// Native converts the value to the corresponding Go type
// (string, int64, float64, bool, []any or map[string]any).
func (v Value) Native() any {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindBool:
		return v.Bool
	case KindList:
		out := make([]any, len(v.List))
		for i, e := range v.List {
			out[i] = e.Native()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Native()
		}
		return out
	default:
		return v.Str
	}
}

// MarshalJSON encodes the value with its native JSON representation.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// Display renders the value for human-readable output. Strings come back
// verbatim; everything else is JSON-encoded.
func (v Value) Display() string {
	if v.Kind == KindString {
		return v.Str
	}
	b, err := json.Marshal(v.Native())
	if err != nil {
		return v.Str
	}
	return string(b)
}

// valueParser is a recursive-descent parser over literal syntax.
type valueParser struct {
	s string
	i int
}

func (p *valueParser) skipSpace() {
	for p.i < len(p.s) {
		switch p.s[p.i] {
		case ' ', '\t', '\n', '\r':
			p.i++
		default:
			return
		}
	}
}

func (p *valueParser) parse() (Value, error) {
	p.skipSpace()
	if p.i >= len(p.s) {
		return Value{}, fmt.Errorf("unexpected end of input")
	}
	switch p.s[p.i] {
	case '[':
		return p.parseList()
	case '{':
		return p.parseMap()
	case '\'', '"':
		s, err := p.parseQuoted()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	default:
		return p.parseScalar()
	}
}

func (p *valueParser) parseList() (Value, error) {
	p.i++ // consume '['
	// A nil slice keeps the empty list identical to ListValue().
	var list []Value
	p.skipSpace()
	if p.i < len(p.s) && p.s[p.i] == ']' {
		p.i++
		return ListValue(list...), nil
	}
	for {
		v, err := p.parse()
		if err != nil {
			return Value{}, err
		}
		list = append(list, v)
		p.skipSpace()
		if p.i >= len(p.s) {
			return Value{}, fmt.Errorf("unterminated list")
		}
		switch p.s[p.i] {
		case ',':
			p.i++
		case ']':
			p.i++
			return ListValue(list...), nil
		default:
			return Value{}, fmt.Errorf("unexpected character %q in list", p.s[p.i])
		}
	}
}

func (p *valueParser) parseMap() (Value, error) {
	p.i++ // consume '{'
	m := map[string]Value{}
	p.skipSpace()
	if p.i < len(p.s) && p.s[p.i] == '}' {
		p.i++
		return MapValue(m), nil
	}
	for {
		key, err := p.parseMapKey()
		if err != nil {
			return Value{}, err
		}
		p.skipSpace()
		if p.i >= len(p.s) || p.s[p.i] != ':' {
			return Value{}, fmt.Errorf("expected ':' after map key %q", key)
		}
		p.i++
		v, err := p.parse()
		if err != nil {
			return Value{}, err
		}
		m[key] = v
		p.skipSpace()
		if p.i >= len(p.s) {
			return Value{}, fmt.Errorf("unterminated map")
		}
		switch p.s[p.i] {
		case ',':
			p.i++
			p.skipSpace()
		case '}':
			p.i++
			return MapValue(m), nil
		default:
			return Value{}, fmt.Errorf("unexpected character %q in map", p.s[p.i])
		}
	}
}

// parseMapKey accepts a quoted string or a bare scalar; non-string scalar
// keys (e.g. integers) are kept as their literal text.
func (p *valueParser) parseMapKey() (string, error) {
	p.skipSpace()
	if p.i >= len(p.s) {
		return "", fmt.Errorf("unexpected end of input in map key")
	}
	if p.s[p.i] == '\'' || p.s[p.i] == '"' {
		return p.parseQuoted()
	}
	v, err := p.parseScalar()
	if err != nil {
		return "", err
	}
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64), nil
	case KindBool:
		return strconv.FormatBool(v.Bool), nil
	default:
		return v.Str, nil
	}
}

func (p *valueParser) parseQuoted() (string, error) {
	quote := p.s[p.i]
	p.i++
	var b strings.Builder
	for p.i < len(p.s) {
		c := p.s[p.i]
		switch c {
		case '\\':
			p.i++
			if p.i >= len(p.s) {
				return "", fmt.Errorf("dangling escape in string")
			}
			switch p.s[p.i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(p.s[p.i])
			}
			p.i++
		case quote:
			p.i++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.i++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

// parseScalar reads a bare token and interprets it as a bool, int or float.
func (p *valueParser) parseScalar() (Value, error) {
	start := p.i
	for p.i < len(p.s) {
		c := p.s[p.i]
		if c == ',' || c == ']' || c == '}' || c == ':' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		p.i++
	}
	token := p.s[start:p.i]
	if token == "" {
		return Value{}, fmt.Errorf("empty token")
	}

	switch token {
	case "true", "True":
		return BoolValue(true), nil
	case "false", "False":
		return BoolValue(false), nil
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return IntValue(i), nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return FloatValue(f), nil
	}
	return Value{}, fmt.Errorf("not a literal: %q", token)
}
