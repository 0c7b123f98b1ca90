package handlebars

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// EscapeFunc escapes interpolated output. args are the engine's configured
// escape arguments.
type EscapeFunc func(s string, args ...any) string

// QuoteMode selects which quote characters HTMLEscape converts.
type QuoteMode int

const (
	// QuotesCompat converts double quotes only.
	QuotesCompat QuoteMode = iota
	// QuotesAll converts double and single quotes.
	QuotesAll
	// QuotesNone leaves both quote characters alone.
	QuotesNone
)

// DefaultEscapeArgs are the arguments passed to HTMLEscape when an engine is
// not configured otherwise.
var DefaultEscapeArgs = []any{QuotesCompat, "UTF-8"}

// HTMLEscape converts &, <, > and quotes to entities. It accepts an optional
// QuoteMode and charset name; with a UTF-8 charset invalid byte sequences are
// replaced by U+FFFD.
func HTMLEscape(s string, args ...any) string {
	mode, charset := QuotesCompat, "UTF-8"
	for _, a := range args {
		switch v := a.(type) {
		case QuoteMode:
			mode = v
		case string:
			charset = v
		}
	}
	if isUTF8(charset) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			if mode == QuotesNone {
				b.WriteByte(c)
			} else {
				b.WriteString("&quot;")
			}
		case '\'':
			if mode == QuotesAll {
				b.WriteString("&#039;")
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isUTF8(charset string) bool {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// SanitizeEscape escapes by running output through a bluemonday policy, so
// markup the policy allows survives while everything else is stripped.
func SanitizeEscape(p *bluemonday.Policy) EscapeFunc {
	if p == nil {
		p = bluemonday.StrictPolicy()
	}
	return func(s string, _ ...any) string {
		return p.Sanitize(s)
	}
}

// NoEscape returns its input unchanged.
func NoEscape(s string, _ ...any) string { return s }
