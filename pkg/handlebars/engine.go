package handlebars

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Version is mixed into every cache key, so trees cached by an older parser
// are never reused.
const Version = "2.0.0"

// Loader maps a template or partial name to its source.
type Loader interface {
	Load(name string) (string, error)
}

// sourceLoader treats the name itself as the template source.
type sourceLoader struct{}

func (sourceLoader) Load(name string) (string, error) { return name, nil }

// Engine loads, compiles and renders templates. It is safe for concurrent
// use: each render gets its own Template and Context, and the helper
// registry and partial aliases are guarded.
type Engine struct {
	loader     Loader
	partials   Loader
	cache      Cache
	helpers    *Helpers
	escape     EscapeFunc
	escapeArgs []any
	logger     *slog.Logger
	open       string
	close      string
	strict     bool

	mu      sync.RWMutex
	aliases map[string]string

	extra map[string]Helper
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLoader sets the loader for template names. By default a name is its
// own source.
func WithLoader(l Loader) Option {
	return func(e *Engine) error {
		if l == nil {
			return &ConfigError{Option: "loader", Reason: "loader is nil"}
		}
		e.loader = l
		return nil
	}
}

// WithPartialsLoader sets the loader used for {{> name}} tags.
func WithPartialsLoader(l Loader) Option {
	return func(e *Engine) error {
		if l == nil {
			return &ConfigError{Option: "partials loader", Reason: "loader is nil"}
		}
		e.partials = l
		return nil
	}
}

func WithCache(c Cache) Option {
	return func(e *Engine) error {
		if c == nil {
			return &ConfigError{Option: "cache", Reason: "cache is nil"}
		}
		e.cache = c
		return nil
	}
}

// WithEscape replaces HTMLEscape for {{name}} output.
func WithEscape(fn EscapeFunc) Option {
	return func(e *Engine) error {
		if fn == nil {
			return &ConfigError{Option: "escape", Reason: "escape function is nil"}
		}
		e.escape = fn
		return nil
	}
}

// WithEscapeArgs sets the extra arguments passed to the escape function
// after the value.
func WithEscapeArgs(args ...any) Option {
	return func(e *Engine) error {
		e.escapeArgs = args
		return nil
	}
}

// WithHelpers registers helpers in addition to the built-ins.
func WithHelpers(helpers map[string]Helper) Option {
	return func(e *Engine) error {
		for name, h := range helpers {
			if e.extra == nil {
				e.extra = map[string]Helper{}
			}
			e.extra[name] = h
		}
		return nil
	}
}

// WithPartialAliases redirects partial names, as RegisterPartial does.
func WithPartialAliases(aliases map[string]string) Option {
	return func(e *Engine) error {
		for k, v := range aliases {
			e.aliases[k] = v
		}
		return nil
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		if l == nil {
			return &ConfigError{Option: "logger", Reason: "logger is nil"}
		}
		e.logger = l
		return nil
	}
}

// WithDelimiters sets the delimiters templates start with.
func WithDelimiters(open, close string) Option {
	return func(e *Engine) error {
		if open == "" || close == "" || strings.ContainsAny(open+close, " \t\r\n=") {
			return &ConfigError{Option: "delimiters", Reason: fmt.Sprintf("unusable delimiters %q %q", open, close)}
		}
		e.open, e.close = open, close
		return nil
	}
}

// WithStrict makes unresolvable variables an error instead of empty output.
func WithStrict(strict bool) Option {
	return func(e *Engine) error {
		e.strict = strict
		return nil
	}
}

// New returns an engine with the built-in helpers, an in-memory tree cache
// and HTML escaping.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		loader:     sourceLoader{},
		partials:   sourceLoader{},
		cache:      NewMemoryCache(),
		escape:     HTMLEscape,
		escapeArgs: DefaultEscapeArgs,
		logger:     slog.Default(),
		open:       DefaultOpen,
		close:      DefaultClose,
		aliases:    map[string]string{},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	helpers, err := NewHelpers(e.extra)
	if err != nil {
		return nil, err
	}
	e.helpers = helpers
	e.extra = nil
	return e, nil
}

// Render loads the template called name and renders it with data.
func (e *Engine) Render(name string, data any) (string, error) {
	t, err := e.LoadTemplate(name)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}

// RenderString compiles source and renders it with data.
func (e *Engine) RenderString(source string, data any) (string, error) {
	t, err := e.LoadString(source)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}

func (e *Engine) LoadTemplate(name string) (*Template, error) {
	src, err := e.loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	e.logger.Debug("template loaded", "name", name, "bytes", len(src))
	return e.LoadString(src)
}

// LoadPartial resolves aliases before asking the partials loader.
func (e *Engine) LoadPartial(name string) (*Template, error) {
	e.mu.RLock()
	target, ok := e.aliases[name]
	e.mu.RUnlock()
	if ok {
		e.logger.Debug("partial alias", "name", name, "target", target)
		name = target
	}
	src, err := e.partials.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load partial: %w", err)
	}
	return e.LoadString(src)
}

func (e *Engine) LoadString(source string) (*Template, error) {
	tree, err := e.Compile(source)
	if err != nil {
		return nil, err
	}
	return newTemplate(e, tree, source), nil
}

// Compile scans and parses source, reusing a cached tree for identical
// source.
func (e *Engine) Compile(source string) ([]*Node, error) {
	key := e.CacheKey(source)
	if tree, ok := e.cache.Get(key); ok {
		e.logger.Debug("tree cache hit", "key", key)
		return tree, nil
	}
	e.logger.Debug("tree cache miss", "key", key)
	tree, err := Parse(ScanDelims(source, e.open, e.close))
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(key, tree); err != nil {
		e.logger.Warn("tree cache write failed", "key", key, "error", err)
	}
	return tree, nil
}

// CacheKey is the key under which the tree for source is cached.
func (e *Engine) CacheKey(source string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("version: %s, delimiters: %s %s, data : %s", Version, e.open, e.close, source)))
	return hex.EncodeToString(sum[:])
}

// RegisterPartial makes {{> alias}} load name (or, with the default partials
// loader, render content) instead.
func (e *Engine) RegisterPartial(alias, content string) {
	e.mu.Lock()
	e.aliases[alias] = content
	e.mu.Unlock()
}

func (e *Engine) UnregisterPartial(alias string) {
	e.mu.Lock()
	delete(e.aliases, alias)
	e.mu.Unlock()
}

func (e *Engine) AddHelper(name string, h Helper) error { return e.helpers.Add(name, h) }
func (e *Engine) RemoveHelper(name string) error { return e.helpers.Remove(name) }
func (e *Engine) HasHelper(name string) bool { return e.helpers.Has(name) }
func (e *Engine) Helper(name string) (Helper, bool) { return e.helpers.Get(name) }
func (e *Engine) Helpers() *Helpers { return e.helpers }

// Escape applies the configured escape function and arguments to s.
func (e *Engine) Escape(s string) string {
	return e.escape(s, e.escapeArgs...)
}

func (e *Engine) Strict() bool { return e.strict }

func (e *Engine) Delimiters() (open, close string) { return e.open, e.close }
