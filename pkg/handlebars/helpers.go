package handlebars

import (
	"sort"
	"sync"
)

// Helper intercepts tag dispatch. args is the raw argument string after the
// tag name and source the literal text between the section's open and close
// tags (empty for inline tags). A TemplateString result is compiled and
// rendered in ctx; a SafeString result is never escaped.
type Helper func(t *Template, ctx *Context, args, source string) (any, error)

// Executor is implemented by helpers that carry their own state.
type Executor interface {
	Execute(t *Template, ctx *Context, args, source string) (any, error)
}

// HelperFunc adapts an Executor to a Helper.
func HelperFunc(e Executor) Helper { return e.Execute }

// Helpers is a name to helper registry, safe for concurrent use. Renders
// only read it.
type Helpers struct {
	mu sync.RWMutex
	m  map[string]Helper
}

// NewHelpers returns a registry holding the built-in helpers plus extra.
func NewHelpers(extra map[string]Helper) (*Helpers, error) {
	h := &Helpers{m: make(map[string]Helper, len(builtins)+len(extra))}
	for name, fn := range builtins {
		h.m[name] = fn
	}
	for name, fn := range extra {
		if err := h.Add(name, fn); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Add registers fn under name, replacing any existing helper.
func (h *Helpers) Add(name string, fn Helper) error {
	if fn == nil {
		return &ConfigError{Option: "helper " + name, Reason: "helper is nil"}
	}
	if name == "" {
		return &ConfigError{Option: "helper", Reason: "empty helper name"}
	}
	h.mu.Lock()
	h.m[name] = fn
	h.mu.Unlock()
	return nil
}

func (h *Helpers) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

func (h *Helpers) Get(name string) (Helper, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.m[name]
	return fn, ok
}

// Remove unregisters name. It is an error to remove an unknown helper.
func (h *Helpers) Remove(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.m[name]; !ok {
		return &HelperError{Name: name}
	}
	delete(h.m, name)
	return nil
}

// Clear removes every helper, built-ins included.
func (h *Helpers) Clear() {
	h.mu.Lock()
	h.m = map[string]Helper{}
	h.mu.Unlock()
}

func (h *Helpers) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.m) == 0
}

// Names returns the registered names in sorted order.
func (h *Helpers) Names() []string {
	h.mu.RLock()
	names := make([]string, 0, len(h.m))
	for name := range h.m {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)
	return names
}
