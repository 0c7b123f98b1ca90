package handlebars

import "strings"

// Context is the variable resolution stack of one render. Values are pushed
// by sections and helpers for the duration of a nested render; iteration
// helpers additionally push the current index (sequences) or key (maps).
type Context struct {
	stack []any
	index []int
	keys  []any
	pos   []position
}

// position tracks where an iteration is, for @first and @last.
type position struct {
	n    int
	size int
}

// NewContext starts a stack with data as its only frame. A nil data starts an
// empty stack.
func NewContext(data any) *Context {
	c := &Context{}
	if data != nil {
		c.stack = append(c.stack, data)
	}
	return c
}

func (c *Context) Push(v any) { c.stack = append(c.stack, v) }

// Pop removes and returns the top frame.
func (c *Context) Pop() any {
	if len(c.stack) == 0 {
		return nil
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v
}

// Last returns the top frame.
func (c *Context) Last() any {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// Depth is the number of frames on the stack.
func (c *Context) Depth() int { return len(c.stack) }

func (c *Context) PushIndex(i int) { c.index = append(c.index, i) }

func (c *Context) PopIndex() int {
	if len(c.index) == 0 {
		return 0
	}
	i := c.index[len(c.index)-1]
	c.index = c.index[:len(c.index)-1]
	return i
}

func (c *Context) LastIndex() (int, bool) {
	if len(c.index) == 0 {
		return 0, false
	}
	return c.index[len(c.index)-1], true
}

func (c *Context) PushKey(k any) { c.keys = append(c.keys, k) }

func (c *Context) PopKey() any {
	if len(c.keys) == 0 {
		return nil
	}
	k := c.keys[len(c.keys)-1]
	c.keys = c.keys[:len(c.keys)-1]
	return k
}

func (c *Context) LastKey() (any, bool) {
	if len(c.keys) == 0 {
		return nil, false
	}
	return c.keys[len(c.keys)-1], true
}

// PushPosition records that the current iteration is at element n of size.
func (c *Context) PushPosition(n, size int) {
	c.pos = append(c.pos, position{n: n, size: size})
}

func (c *Context) PopPosition() {
	if len(c.pos) > 0 {
		c.pos = c.pos[:len(c.pos)-1]
	}
}

// With resolves path and pushes the result as a new frame.
func (c *Context) With(path string) any {
	v := c.Get(path)
	c.Push(v)
	return v
}

// Get resolves path, returning the empty string when it cannot be resolved.
func (c *Context) Get(path string) any {
	v, _ := c.get(path, false)
	return v
}

// GetStrict resolves path and returns a *LookupError when any part of it
// cannot be resolved.
func (c *Context) GetStrict(path string) (any, error) {
	return c.get(path, true)
}

func (c *Context) get(path string, strict bool) (any, error) {
	full := path
	miss := func(segment string) (any, error) {
		if strict {
			return nil, &LookupError{Path: full, Segment: segment}
		}
		return "", nil
	}

	path = strings.TrimSpace(path)
	level := 0
	for strings.HasPrefix(path, "../") {
		path = strings.TrimSpace(path[3:])
		level++
	}
	if path == ".." {
		path = "."
		level++
	}
	if path == "@root" || strings.HasPrefix(path, "@root.") {
		path = strings.TrimPrefix(strings.TrimPrefix(path, "@root"), ".")
		if path == "" {
			path = "."
		}
		level = len(c.stack) - 1
	}
	switch path {
	case "@index":
		if i, ok := c.LastIndex(); ok {
			return i, nil
		}
		return miss(path)
	case "@key":
		if k, ok := c.LastKey(); ok {
			return k, nil
		}
		return miss(path)
	case "@first", "@last":
		if len(c.pos) == 0 {
			return miss(path)
		}
		p := c.pos[len(c.pos)-1]
		if path == "@first" {
			return p.n == 0, nil
		}
		return p.n == p.size-1, nil
	}

	if level >= len(c.stack) || level < 0 {
		return miss(path)
	}
	current := c.stack[len(c.stack)-1-level]
	switch path {
	case "":
		return miss(path)
	case ".", "this":
		return current, nil
	}

	if strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	segments, ok := splitPath(path)
	if !ok {
		return miss(path)
	}
	for i, seg := range segments {
		if s, isString := current.(string); isString && s == "" {
			return current, nil
		}
		if !seg.literal && (seg.name == "" || (i == 0 && seg.name == "this")) {
			continue
		}
		v, found := lookupMember(current, seg.name)
		if !found {
			return miss(seg.name)
		}
		current = v
	}
	return current, nil
}

type pathSegment struct {
	name    string
	literal bool
}

// splitPath splits a dotted path. A [bracketed] part is taken verbatim, so
// it may contain dots, spaces or quotes.
func splitPath(path string) ([]pathSegment, bool) {
	var (
		segs []pathSegment
		cur  strings.Builder
		lit  bool
	)
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '[':
			end := strings.IndexByte(path[i+1:], ']')
			if end < 0 {
				return nil, false
			}
			cur.WriteString(path[i+1 : i+1+end])
			lit = true
			i += end + 1
		case '.':
			segs = append(segs, pathSegment{name: cur.String(), literal: lit})
			cur.Reset()
			lit = false
		default:
			cur.WriteByte(c)
		}
	}
	return append(segs, pathSegment{name: cur.String(), literal: lit}), true
}
