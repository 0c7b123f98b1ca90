package handlebars

// TokenKind identifies what a scanned token is. The values are the tag sigils
// so that serialized trees stay readable.
type TokenKind string

const (
	KindText         TokenKind = "_t"
	KindSection      TokenKind = "#"
	KindInverted     TokenKind = "^"
	KindEndSection   TokenKind = "/"
	KindComment      TokenKind = "!"
	KindPartial      TokenKind = ">"
	KindPartialAlt   TokenKind = "<"
	KindDelimChange  TokenKind = "="
	KindEscaped      TokenKind = "_v"
	KindUnescaped    TokenKind = "{"
	KindUnescapedAlt TokenKind = "&"
)

// sigils maps the character following an opening delimiter to its kind.
// A tag without one of these is a plain escaped variable.
var sigils = map[byte]TokenKind{
	'#': KindSection,
	'^': KindInverted,
	'/': KindEndSection,
	'!': KindComment,
	'>': KindPartial,
	'<': KindPartialAlt,
	'=': KindDelimChange,
	'{': KindUnescaped,
	'&': KindUnescapedAlt,
}

// Interpolating reports whether tokens of this kind produce output from data.
func (k TokenKind) Interpolating() bool {
	return k == KindEscaped || k == KindUnescaped || k == KindUnescapedAlt
}

// IsPartial reports whether k is either partial sigil.
func (k TokenKind) IsPartial() bool {
	return k == KindPartial || k == KindPartialAlt
}

// opensSection reports whether a token of this kind must be matched by a
// closing tag.
func (k TokenKind) opensSection() bool {
	return k == KindSection || k == KindInverted
}

// takesArgs reports whether the tag body is split into a name and arguments.
func (k TokenKind) takesArgs() bool {
	return k == KindSection || k.IsPartial()
}

// Token is one element produced by Scan. For text tokens Name holds the raw
// text; for tags it holds the trimmed tag body (up to the first whitespace for
// sections and partials, whose remainder goes to Args).
type Token struct {
	Kind   TokenKind `json:"kind"`
	Name   string    `json:"name,omitempty"`
	Args   string    `json:"args,omitempty"`
	Index  int       `json:"index,omitempty"`
	Open   string    `json:"otag,omitempty"`
	Close  string    `json:"ctag,omitempty"`
	Indent string    `json:"indent,omitempty"`
}
