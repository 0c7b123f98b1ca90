// Package starlark lets users write handlebars helpers as Starlark
// functions.
package starlark

import (
	"fmt"
	"log/slog"
	"maps"

	"go.starlark.net/starlark"
)

// Evaluator runs Starlark code with the helper builtins predeclared.
// Threads are not shared, so an Evaluator may serve concurrent renders
// once its scripts have been executed.
type Evaluator struct {
	logger   *slog.Logger
	builtins starlark.StringDict
	globals  starlark.StringDict
}

// NewEvaluator creates an evaluator. A nil logger means slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:   logger,
		builtins: Builtins(),
		globals:  make(starlark.StringDict),
	}
}

// newThread returns a fresh thread whose print() goes to the logger.
func (e *Evaluator) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			e.logger.Info(msg, "thread", thread.Name)
		},
	}
}

func (e *Evaluator) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	maps.Copy(predeclared, e.builtins)
	maps.Copy(predeclared, e.globals)
	return predeclared
}

// SetGlobal makes a Go value visible to scripts executed afterwards.
func (e *Evaluator) SetGlobal(name string, value any) {
	e.globals[name] = ToStarlark(value)
}

// GetGlobal returns a global left behind by an executed script.
func (e *Evaluator) GetGlobal(name string) (any, bool) {
	if val, ok := e.globals[name]; ok {
		return FromStarlark(val), true
	}
	return nil, false
}

// Eval evaluates a single expression.
func (e *Evaluator) Eval(expr string) (any, error) {
	val, err := starlark.Eval(e.newThread("eval"), "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return FromStarlark(val), nil
}

// ExecFile executes a script. src may be nil to read filename, or a
// string, []byte or io.Reader. Its globals are frozen and kept.
func (e *Evaluator) ExecFile(filename string, src any) (starlark.StringDict, error) {
	globals, err := starlark.ExecFile(e.newThread(filename), filename, src, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	globals.Freeze()
	maps.Copy(e.globals, globals)
	return globals, nil
}

func (e *Evaluator) ExecString(script string) (starlark.StringDict, error) {
	return e.ExecFile("<script>", script)
}
