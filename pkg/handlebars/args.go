package handlebars

import (
	"strconv"
	"strings"
	"unicode"
)

// Argument is one whitespace separated element of a helper's raw argument
// string. Name is set for name=value arguments. Value has its quotes removed
// when Quoted is true.
type Argument struct {
	Name   string
	Value  string
	Quoted bool
	Raw    string
}

// ParseArguments splits args on whitespace, keeping quoted strings, [bracket]
// segments and (sub expressions) together.
func ParseArguments(args string) []Argument {
	var out []Argument
	for _, raw := range splitArgs(args) {
		out = append(out, newArgument(raw))
	}
	return out
}

func splitArgs(s string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote byte
		depth int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				cur.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			cur.WriteByte(c)
		case c == '[' || c == '(':
			depth++
			cur.WriteByte(c)
		case c == ']' || c == ')':
			if depth > 0 {
				depth--
			}
			cur.WriteByte(c)
		case depth == 0 && unicode.IsSpace(rune(c)):
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

func newArgument(raw string) Argument {
	a := Argument{Raw: raw, Value: raw}
	if eq := namedSplit(raw); eq > 0 {
		a.Name = raw[:eq]
		a.Value = raw[eq+1:]
	}
	if v, ok := unquote(a.Value); ok {
		a.Value = v
		a.Quoted = true
	}
	return a
}

// namedSplit returns the position of the '=' in name=value, or -1. The name
// must be a plain identifier.
func namedSplit(raw string) int {
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '=' {
			return i
		}
		if !(c == '_' || c == '-' || c == '@' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))) {
			return -1
		}
	}
	return -1
}

func unquote(s string) (string, bool) {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s, false
	}
	q := s[0]
	body := s[1 : len(s)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == q || body[i+1] == '\\') {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String(), true
}

// IsSubExpression reports whether the argument is a parenthesised helper call.
func (a Argument) IsSubExpression() bool {
	return !a.Quoted && len(a.Value) >= 2 && a.Value[0] == '(' && a.Value[len(a.Value)-1] == ')'
}

// Literal converts quoted strings, numbers and the words true, false and null
// to Go values. ok is false for anything that must be looked up in a context.
func (a Argument) Literal() (any, bool) {
	if a.Quoted {
		return a.Value, true
	}
	switch a.Value {
	case "true":
		return true, true
	case "false":
		return false, true
	case "null", "nil", "undefined":
		return nil, true
	}
	if i, err := strconv.Atoi(a.Value); err == nil {
		return i, true
	}
	if f, err := strconv.ParseFloat(a.Value, 64); err == nil && looksNumeric(a.Value) {
		return f, true
	}
	return nil, false
}

func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E') {
			return false
		}
	}
	return true
}

// Resolve returns the literal value of a, or looks it up in ctx.
func (a Argument) Resolve(ctx *Context) any {
	if v, ok := a.Literal(); ok {
		return v
	}
	return ctx.Get(a.Value)
}
