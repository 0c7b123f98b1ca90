package handlebars

import (
	"strings"
	"unicode"
)

// The lexer is a three state machine. In text it buffers bytes until the
// opening delimiter, then classifies the tag sigil, then collects the tag body
// until the closing delimiter. Whitespace around standalone tags is dropped
// one physical line at a time.

const (
	DefaultOpen  = "{{"
	DefaultClose = "}}"
)

type lexState int

const (
	inText lexState = iota
	inTagType
	inTag
)

type lexer struct {
	src string
	i   int
	n   int

	state    lexState
	kind     TokenKind
	buf      []byte
	tokens   []*Token
	tagStart int

	// per physical line
	lineStart int
	lineTags  int

	otag string
	ctag string
}

// Scan tokenizes src using the default delimiters.
func Scan(src string) []Token {
	return ScanDelims(src, DefaultOpen, DefaultClose)
}

// ScanDelims tokenizes src starting with the given delimiters. Scanning never
// fails; a malformed delimiter change tag is a caller error and leaves the
// delimiters untouched.
func ScanDelims(src, open, close string) []Token {
	if open == "" || close == "" {
		open, close = DefaultOpen, DefaultClose
	}
	l := &lexer{src: src, n: len(src), otag: open, ctag: close}
	l.run()

	out := make([]Token, 0, len(l.tokens))
	for _, t := range l.tokens {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

func (l *lexer) match(delim string) bool {
	return strings.HasPrefix(l.src[l.i:], delim)
}

func (l *lexer) run() {
	for l.i = 0; l.i < l.n; l.i++ {
		switch l.state {
		case inText:
			if l.match(l.otag) {
				if l.escapedDelimiter() {
					l.buf = append(l.buf, l.otag...)
					l.i += len(l.otag) - 1
					continue
				}
				l.flush()
				l.tagStart = l.i
				l.state = inTagType
				l.i--
				continue
			}
			if l.src[l.i] == '\n' {
				l.filterLine(false)
			} else {
				l.buf = append(l.buf, l.src[l.i])
			}

		case inTagType:
			l.i += len(l.otag)
			l.lineTags++
			kind, ok := KindEscaped, false
			if l.i < l.n {
				kind, ok = sigils[l.src[l.i]]
				if !ok {
					kind = KindEscaped
				}
			}
			l.kind = kind
			if kind == KindDelimChange {
				l.changeDelimiters()
				l.state = inText
				continue
			}
			if !ok {
				l.i--
			}
			l.state = inTag

		case inTag:
			if l.match(l.ctag) {
				l.emitTag()
				continue
			}
			l.buf = append(l.buf, l.src[l.i])
		}
	}

	if l.state != inText {
		// Unterminated tag: keep what was written as literal text.
		l.buf = append(l.buf[:0], l.src[l.tagStart:]...)
		l.state = inText
		l.lineTags--
	}
	l.filterLine(true)
}

// escapedDelimiter handles backslashes in front of an opening delimiter. One
// backslash is consumed per escape level: an odd run escapes the delimiter,
// an even run leaves a literal backslash before a real tag.
func (l *lexer) escapedDelimiter() bool {
	run := 0
	for j := len(l.buf) - 1; j >= 0 && l.buf[j] == '\\'; j-- {
		run++
	}
	if run == 0 {
		return false
	}
	l.buf = l.buf[:len(l.buf)-1]
	return run%2 == 1
}

func (l *lexer) emitTag() {
	body := strings.TrimSpace(string(l.buf))
	tok := &Token{
		Kind:  l.kind,
		Name:  body,
		Open:  l.otag,
		Close: l.ctag,
		Index: l.i + len(l.ctag),
	}
	if l.kind == KindEndSection {
		tok.Index = l.tagStart
	}
	if l.kind.takesArgs() {
		if at := strings.IndexFunc(body, unicode.IsSpace); at >= 0 {
			tok.Name = body[:at]
			tok.Args = strings.TrimSpace(body[at:])
		}
	}
	l.i += len(l.ctag) - 1
	if l.kind == KindUnescaped {
		// {{{name}}}: the third brace is either right after the close
		// delimiter or, with custom delimiters, inside the body.
		if l.i+1 < l.n && l.src[l.i+1] == '}' {
			l.i++
		} else {
			tok.Name = strings.TrimSpace(strings.TrimSuffix(tok.Name, "}"))
		}
	}
	l.tokens = append(l.tokens, tok)
	l.buf = l.buf[:0]
	l.state = inText
}

// changeDelimiters parses "{{=<% %>=}}" starting at the '=' sigil and moves
// the cursor to the last byte of the tag.
func (l *lexer) changeDelimiters() {
	start := l.i + 1
	end := strings.Index(l.src[start:], "="+l.ctag)
	if end < 0 {
		l.buf = append(l.buf, l.src[l.tagStart:]...)
		l.i = l.n - 1
		return
	}
	fields := strings.Fields(l.src[start : start+end])
	l.i = start + end + len(l.ctag)
	if len(fields) != 2 {
		return
	}
	l.otag, l.ctag = fields[0], fields[1]
}

func (l *lexer) flush() {
	if len(l.buf) == 0 {
		return
	}
	l.tokens = append(l.tokens, &Token{Kind: KindText, Name: string(l.buf)})
	l.buf = l.buf[:0]
}

// standalone reports whether the current line holds exactly one
// non-interpolating tag and nothing else but whitespace.
func (l *lexer) standalone() bool {
	if l.lineTags != 1 {
		return false
	}
	for _, t := range l.tokens[l.lineStart:] {
		if t == nil {
			continue
		}
		if t.Kind.Interpolating() {
			return false
		}
		if t.Kind == KindText && strings.TrimSpace(t.Name) != "" {
			return false
		}
	}
	return true
}

func (l *lexer) filterLine(eof bool) {
	l.flush()
	if l.standalone() {
		for j := l.lineStart; j < len(l.tokens); j++ {
			t := l.tokens[j]
			if t == nil || t.Kind != KindText {
				continue
			}
			if j+1 < len(l.tokens) && l.tokens[j+1] != nil && l.tokens[j+1].Kind.IsPartial() {
				l.tokens[j+1].Indent = t.Name
			}
			l.tokens[j] = nil
		}
	} else if !eof {
		l.tokens = append(l.tokens, &Token{Kind: KindText, Name: "\n"})
	}
	l.lineTags = 0
	l.lineStart = len(l.tokens)
}
