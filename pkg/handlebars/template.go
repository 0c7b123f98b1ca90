package handlebars

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// frame is one level of the render walk. A non-empty stop names a plain
// variable tag at which Render and Discard pause.
type frame struct {
	cursor int
	nodes  []*Node
	stop   string
}

// Template renders one parsed tree. Helpers receive the Template and drive
// the walk of their section body through Render, Discard, SetStopToken and
// Rewind. A Template is not safe for concurrent use; Engine hands out a new
// one per load.
type Template struct {
	engine *Engine
	tree   []*Node
	source string
	stack  []*frame
}

func newTemplate(e *Engine, tree []*Node, source string) *Template {
	return &Template{
		engine: e,
		tree:   tree,
		source: source,
		stack:  []*frame{{nodes: tree}},
	}
}

func (t *Template) Tree() []*Node   { return t.tree }
func (t *Template) Source() string  { return t.source }
func (t *Template) Engine() *Engine { return t.engine }

func (t *Template) top() *frame { return t.stack[len(t.stack)-1] }

func (t *Template) push(nodes []*Node) { t.stack = append(t.stack, &frame{nodes: nodes}) }

func (t *Template) pop() {
	if len(t.stack) > 1 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}

// within runs fn with a new frame over nodes on top of the stack.
func (t *Template) within(nodes []*Node, fn func() (any, error)) (any, error) {
	t.push(nodes)
	defer t.pop()
	return fn()
}

// SetStopToken makes the next Render or Discard of the current frame pause
// after the plain variable tag name. An empty name clears it.
func (t *Template) SetStopToken(name string) { t.top().stop = name }

func (t *Template) StopToken() string { return t.top().stop }

// Rewind moves the current frame back to its first node.
func (t *Template) Rewind() { t.top().cursor = 0 }

// ParseArguments splits a helper's raw argument string.
func (t *Template) ParseArguments(args string) []Argument { return ParseArguments(args) }

// Render walks the current frame from its cursor. data may be a *Context or
// plain data for a new one. When a stop token is set the walk ends after the
// matching tag, the cursor is kept there and the stop token is cleared.
func (t *Template) Render(data any) (string, error) {
	ctx, ok := data.(*Context)
	if !ok {
		ctx = NewContext(data)
	}
	f := t.top()
	var b strings.Builder
	i := f.cursor
	for i < len(f.nodes) {
		n := f.nodes[i]
		i++
		if f.stop != "" && n.Kind == KindEscaped && n.Name == f.stop {
			break
		}
		out, err := t.renderNode(ctx, n)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	if f.stop != "" {
		f.cursor = i
		f.stop = ""
	}
	return b.String(), nil
}

// Discard skips nodes the way Render would walk them, producing nothing.
func (t *Template) Discard() string {
	f := t.top()
	i := f.cursor
	for i < len(f.nodes) {
		n := f.nodes[i]
		i++
		if f.stop != "" && n.Kind == KindEscaped && n.Name == f.stop {
			break
		}
	}
	if f.stop != "" {
		f.cursor = i
		f.stop = ""
	}
	return ""
}

func (t *Template) renderNode(ctx *Context, n *Node) (string, error) {
	switch n.Kind {
	case KindSection:
		out, err := t.within(n.Children, func() (any, error) {
			return t.section(ctx, n.Name, n.Args, t.slice(n))
		})
		return Stringify(out), err
	case KindInverted:
		out, err := t.within(n.Children, func() (any, error) {
			return t.inverted(ctx, n)
		})
		return Stringify(out), err
	case KindComment:
		return "", nil
	case KindPartial, KindPartialAlt:
		return t.partial(ctx, n)
	case KindUnescaped, KindUnescapedAlt:
		return t.interpolate(ctx, n.Name, false)
	case KindEscaped:
		return t.interpolate(ctx, n.Name, true)
	case KindText:
		return n.Name, nil
	}
	return "", fmt.Errorf("invalid node kind %q (%s)", n.Kind, n.Name)
}

// slice returns the literal source enclosed by a section node.
func (t *Template) slice(n *Node) string {
	if n.End < n.Index || n.End > len(t.source) {
		return ""
	}
	return t.source[n.Index:n.End]
}

// section dispatches a tag either to a helper or, without arguments, to the
// Mustache rules for lists, objects and truthy values.
func (t *Template) section(ctx *Context, name, args, source string) (any, error) {
	if h, ok := t.engine.helpers.Get(name); ok {
		out, err := h(t, ctx, args, source)
		if err != nil {
			return nil, err
		}
		if ts, ok := out.(TemplateString); ok {
			sub, err := t.engine.LoadString(string(ts))
			if err != nil {
				return nil, err
			}
			s, err := sub.Render(ctx)
			if err != nil {
				return nil, err
			}
			return SafeString(s), nil
		}
		return out, nil
	}
	if strings.TrimSpace(args) != "" {
		return nil, &HelperError{Name: name}
	}

	v, err := t.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if items, list, ok := iterate(v); ok && list {
		var b strings.Builder
		for i, it := range items {
			ctx.PushIndex(i)
			ctx.PushPosition(i, len(items))
			ctx.Push(it.value)
			out, err := t.Render(ctx)
			ctx.Pop()
			ctx.PopPosition()
			ctx.PopIndex()
			if err != nil {
				return nil, err
			}
			b.WriteString(out)
		}
		return b.String(), nil
	}
	if !IsTruthy(v) {
		return "", nil
	}
	if isObject(v) {
		ctx.Push(v)
		defer ctx.Pop()
	}
	return t.Render(ctx)
}

func (t *Template) inverted(ctx *Context, n *Node) (any, error) {
	v, err := t.lookup(ctx, n.Name)
	if err != nil {
		return nil, err
	}
	if IsTruthy(v) {
		return "", nil
	}
	return t.Render(ctx)
}

func (t *Template) partial(ctx *Context, n *Node) (string, error) {
	p, err := t.engine.LoadPartial(n.Name)
	if err != nil {
		return "", err
	}
	if n.Args != "" {
		ctx = NewContext(ctx.Get(n.Args))
	}
	out, err := p.Render(ctx)
	if err != nil {
		return "", fmt.Errorf("partial %s: %w", n.Name, err)
	}
	if n.Indent != "" {
		out = indentLines(out, n.Indent)
	}
	return out, nil
}

// interpolate renders a variable tag. A tag whose first word names a helper
// is called like a section with an empty body.
func (t *Template) interpolate(ctx *Context, body string, escaped bool) (string, error) {
	name, args := splitTag(body)
	if t.engine.helpers.Has(name) {
		out, err := t.within(nil, func() (any, error) {
			return t.section(ctx, name, args, "")
		})
		if err != nil {
			return "", err
		}
		return t.output(out, escaped), nil
	}
	v, err := t.lookup(ctx, body)
	if err != nil {
		return "", err
	}
	return t.output(v, escaped), nil
}

func (t *Template) output(v any, escaped bool) string {
	if s, ok := v.(SafeString); ok {
		return string(s)
	}
	if !escaped {
		return Stringify(v)
	}
	return t.engine.Escape(Stringify(v))
}

func (t *Template) lookup(ctx *Context, path string) (any, error) {
	if t.engine.strict {
		return ctx.GetStrict(path)
	}
	return ctx.Get(path), nil
}

// Evaluate resolves a helper argument expression: a literal, a path, or a
// parenthesised helper call such as (upper name).
func (t *Template) Evaluate(ctx *Context, expr string) (any, error) {
	expr = strings.TrimSpace(expr)
	args := ParseArguments(expr)
	if len(args) != 1 {
		return t.lookup(ctx, expr)
	}
	return t.Resolve(ctx, args[0])
}

// Resolve returns the value of one parsed argument.
func (t *Template) Resolve(ctx *Context, a Argument) (any, error) {
	if a.IsSubExpression() {
		name, args := splitTag(strings.TrimSpace(a.Value[1 : len(a.Value)-1]))
		if !t.engine.helpers.Has(name) {
			return nil, &HelperError{Name: name}
		}
		return t.within(nil, func() (any, error) {
			return t.section(ctx, name, args, "")
		})
	}
	if v, ok := a.Literal(); ok {
		return v, nil
	}
	return t.lookup(ctx, a.Value)
}

func splitTag(body string) (name, args string) {
	body = strings.TrimSpace(body)
	if at := strings.IndexFunc(body, unicode.IsSpace); at >= 0 {
		return body[:at], strings.TrimSpace(body[at:])
	}
	return body, ""
}

// isObject reports whether v is a mapping or host object, which a section
// pushes as a single frame.
func isObject(v any) bool {
	switch v.(type) {
	case *OrderedMap, Accessor:
		return true
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
}

func indentLines(s, indent string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString(l)
	}
	return b.String()
}
