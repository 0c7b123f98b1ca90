package starlark

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"go.starlark.net/starlark"
)

const callKey = "handlebars.call"

// call is the render state a helper invocation exposes to its script.
type call struct {
	t      *handlebars.Template
	ctx    *handlebars.Context
	source string
}

// LoadHelpers executes a helper script and returns one helper per public
// top level function. A tag's positional arguments are passed resolved,
// in order, and name=value arguments as keywords:
//
//	def link(url, text, target="_self"):
//	    return safe('<a href="%s" target="%s">%s</a>' % (escape(url), target, escape(text)))
func (e *Evaluator) LoadHelpers(filename string, src any) (map[string]handlebars.Helper, error) {
	globals, err := e.ExecFile(filename, src)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}
	sort.Strings(names)
	helpers := make(map[string]handlebars.Helper)
	for _, name := range names {
		fn, ok := globals[name].(starlark.Callable)
		if !ok || strings.HasPrefix(name, "_") {
			continue
		}
		helpers[name] = e.helper(name, fn)
		e.logger.Debug("starlark helper loaded", "name", name, "script", filename)
	}
	return helpers, nil
}

// LoadHelpers is a convenience for a single script with default logging.
func LoadHelpers(filename string, src any) (map[string]handlebars.Helper, error) {
	return NewEvaluator(nil).LoadHelpers(filename, src)
}

func (e *Evaluator) helper(name string, fn starlark.Callable) handlebars.Helper {
	return func(t *handlebars.Template, ctx *handlebars.Context, args, source string) (any, error) {
		var (
			positional starlark.Tuple
			keywords   []starlark.Tuple
		)
		for _, a := range t.ParseArguments(args) {
			v, err := t.Resolve(ctx, a)
			if err != nil {
				return nil, err
			}
			if a.Name != "" {
				keywords = append(keywords, starlark.Tuple{starlark.String(a.Name), ToStarlark(v)})
				continue
			}
			positional = append(positional, ToStarlark(v))
		}
		thread := e.newThread(name)
		thread.SetLocal(callKey, &call{t: t, ctx: ctx, source: source})
		out, err := starlark.Call(thread, fn, positional, keywords)
		if err != nil {
			var evalErr *starlark.EvalError
			if errors.As(err, &evalErr) {
				return nil, fmt.Errorf("helper %s: %s", name, evalErr.Backtrace())
			}
			return nil, fmt.Errorf("helper %s: %w", name, err)
		}
		return FromStarlark(out), nil
	}
}

func currentCall(thread *starlark.Thread, fn *starlark.Builtin) (*call, error) {
	c, ok := thread.Local(callKey).(*call)
	if !ok {
		return nil, fmt.Errorf("%s: only available while a helper renders", fn.Name())
	}
	return c, nil
}

// Builtins are predeclared in helper scripts. safe, template and escape
// work anywhere; the rest need a render in progress.
func Builtins() starlark.StringDict {
	return starlark.StringDict{
		"safe": starlark.NewBuiltin("safe", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			return markup{text: s}, nil
		}),

		"template": starlark.NewBuiltin("template", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			return markup{text: s, template: true}, nil
		}),

		"escape": starlark.NewBuiltin("escape", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("escape requires exactly 1 argument")
			}
			text := handlebars.Stringify(FromStarlark(args[0]))
			if m, ok := args[0].(markup); ok && !m.template {
				return m, nil
			}
			if c, err := currentCall(thread, fn); err == nil {
				return starlark.String(c.t.Engine().Escape(text)), nil
			}
			return starlark.String(handlebars.HTMLEscape(text)), nil
		}),

		"lookup": starlark.NewBuiltin("lookup", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var path string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
				return nil, err
			}
			c, err := currentCall(thread, fn)
			if err != nil {
				return nil, err
			}
			v, err := c.t.Evaluate(c.ctx, path)
			if err != nil {
				return nil, err
			}
			return ToStarlark(v), nil
		}),

		"source": starlark.NewBuiltin("source", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			c, err := currentCall(thread, fn)
			if err != nil {
				return nil, err
			}
			return starlark.String(c.source), nil
		}),

		// render([data]) renders the block up to {{else}}, in the scope of
		// data when given. It may be called repeatedly, as in a loop.
		"render": starlark.NewBuiltin("render", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var data starlark.Value
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0, &data); err != nil {
				return nil, err
			}
			c, err := currentCall(thread, fn)
			if err != nil {
				return nil, err
			}
			if data != nil {
				c.ctx.Push(FromStarlark(data))
				defer c.ctx.Pop()
			}
			c.t.Rewind()
			c.t.SetStopToken("else")
			out, err := c.t.Render(c.ctx)
			if err != nil {
				return nil, err
			}
			return starlark.String(out), nil
		}),

		"inverse": starlark.NewBuiltin("inverse", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			c, err := currentCall(thread, fn)
			if err != nil {
				return nil, err
			}
			c.t.Rewind()
			c.t.SetStopToken("else")
			c.t.Discard()
			out, err := c.t.Render(c.ctx)
			if err != nil {
				return nil, err
			}
			return starlark.String(out), nil
		}),
	}
}
