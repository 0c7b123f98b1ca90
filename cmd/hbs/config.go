package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/neurodesk/handlebars/pkg/cache"
	"github.com/neurodesk/handlebars/pkg/handlebars"
	"github.com/neurodesk/handlebars/pkg/loader"
	"github.com/neurodesk/handlebars/pkg/starlark"
	"github.com/neurodesk/handlebars/pkg/validator"
	"gopkg.in/yaml.v3"
)

type hbsConfig struct {
	TemplateDirs   []string          `yaml:"template_dirs"`
	PartialDirs    []string          `yaml:"partial_dirs"`
	TemplateURL    string            `yaml:"template_url,omitempty"`
	Extension      string            `yaml:"extension,omitempty"`
	Prefix         string            `yaml:"prefix,omitempty"`
	CacheDir       string            `yaml:"cache_dir,omitempty"`
	CacheNamespace string            `yaml:"cache_namespace,omitempty"`
	CacheTTL       time.Duration     `yaml:"cache_ttl,omitempty"`
	Escape         string            `yaml:"escape,omitempty"`
	HelperScripts  []string          `yaml:"helper_scripts"`
	Partials       map[string]string `yaml:"partials"`
	Delimiters     []string          `yaml:"delimiters,omitempty"`
	Strict         bool              `yaml:"strict"`
}

var escapeModes = []string{"", "html", "sanitize", "none"}

// loadConfig reads path into c. Relative directories in the file are taken
// relative to the file itself.
func (c *hbsConfig) loadConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config file: %w", err)
	}
	base := filepath.Dir(path)
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range c.TemplateDirs {
		c.TemplateDirs[i] = rel(c.TemplateDirs[i])
	}
	for i := range c.PartialDirs {
		c.PartialDirs[i] = rel(c.PartialDirs[i])
	}
	for i := range c.HelperScripts {
		c.HelperScripts[i] = rel(c.HelperScripts[i])
	}
	c.CacheDir = rel(c.CacheDir)
	return nil
}

func (c *hbsConfig) delimiters() (string, string) {
	if len(c.Delimiters) == 2 {
		return c.Delimiters[0], c.Delimiters[1]
	}
	return "{{", "}}"
}

func (c *hbsConfig) Validate() error {
	open, close := c.delimiters()
	return validator.All(
		validator.Map(c.TemplateDirs, validator.IsDir, "template_dirs"),
		validator.NoDuplicates(c.TemplateDirs, "template_dirs"),
		validator.Map(c.PartialDirs, validator.IsDir, "partial_dirs"),
		validator.NoDuplicates(c.PartialDirs, "partial_dirs"),
		validator.Map(c.HelperScripts, validator.NotEmpty, "helper_scripts"),
		validator.MatchesAllowed(c.Escape, escapeModes, "escape"),
		validator.MapDict(c.Partials, func(name, _ string, desc string) error {
			return validator.All(
				validator.NotEmpty(name, desc),
				validator.HasNoTags(name, open, close, desc),
			)
		}, "partials"),
		validateDelimiters(c.Delimiters),
	)
}

func validateDelimiters(d []string) error {
	switch len(d) {
	case 0:
		return nil
	case 2:
		return validator.All(
			validator.NotEmpty(d[0], "delimiters[0]"),
			validator.NotEmpty(d[1], "delimiters[1]"),
		)
	}
	return fmt.Errorf("delimiters must hold an opening and a closing tag, got %d values", len(d))
}

// readConfig loads the config file named by --config. A missing default
// file means an empty configuration.
func readConfig(path string, explicit bool) (hbsConfig, error) {
	var cfg hbsConfig
	if err := cfg.loadConfig(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// hasTemplateSource reports whether render arguments name templates rather
// than files.
func (c *hbsConfig) hasTemplateSource() bool {
	return len(c.TemplateDirs) > 0 || c.TemplateURL != ""
}

func (c *hbsConfig) fsOptions() []loader.FilesystemOption {
	var opts []loader.FilesystemOption
	if c.Extension != "" {
		opts = append(opts, loader.WithExtension(c.Extension))
	}
	if c.Prefix != "" {
		opts = append(opts, loader.WithPrefix(c.Prefix))
	}
	return opts
}

func (c *hbsConfig) templateLoader(logger *slog.Logger) (handlebars.Loader, error) {
	switch {
	case c.TemplateURL != "":
		dir := c.CacheDir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "hbs")
		}
		l := loader.NewHTTP(c.TemplateURL, filepath.Join(dir, "http"))
		l.Logger = logger
		if c.Extension != "" {
			l.Extension = c.Extension
		}
		return l, nil
	case len(c.TemplateDirs) > 0:
		return loader.NewFilesystem(c.TemplateDirs, c.fsOptions()...)
	}
	return loader.String{}, nil
}

func (c *hbsConfig) partialsLoader(templates handlebars.Loader) (handlebars.Loader, error) {
	if len(c.PartialDirs) > 0 {
		return loader.NewFilesystem(c.PartialDirs, c.fsOptions()...)
	}
	// With no template source configured this is loader.String, so alias
	// targets in the config are inline partial bodies.
	return templates, nil
}

func (c *hbsConfig) treeCache() (handlebars.Cache, error) {
	var store handlebars.Cache
	switch {
	case c.CacheDir != "":
		d, err := cache.NewDisk(filepath.Join(c.CacheDir, "trees"), "", ".json")
		if err != nil {
			return nil, err
		}
		store = d
	case c.CacheTTL > 0:
		store = cache.NewTTL(c.CacheTTL, 512)
	default:
		store = handlebars.NewMemoryCache()
	}
	if c.CacheNamespace != "" {
		store = cache.Prefixed{Prefix: c.CacheNamespace, Next: store}
	}
	return store, nil
}

func (c *hbsConfig) escapeFunc() handlebars.EscapeFunc {
	switch c.Escape {
	case "sanitize":
		return handlebars.SanitizeEscape(bluemonday.UGCPolicy())
	case "none":
		return handlebars.NoEscape
	}
	return handlebars.HTMLEscape
}

func (c *hbsConfig) helpers(logger *slog.Logger) (map[string]handlebars.Helper, error) {
	helpers := map[string]handlebars.Helper{"repeat": handlebars.Repeat}
	ev := starlark.NewEvaluator(logger)
	for _, script := range c.HelperScripts {
		loaded, err := ev.LoadHelpers(script, nil)
		if err != nil {
			return nil, fmt.Errorf("loading helper script %s: %w", script, err)
		}
		maps.Copy(helpers, loaded)
	}
	return helpers, nil
}

// newEngine wires every configured collaborator into an engine.
func (c *hbsConfig) newEngine(logger *slog.Logger) (*handlebars.Engine, error) {
	templates, err := c.templateLoader(logger)
	if err != nil {
		return nil, err
	}
	partials, err := c.partialsLoader(templates)
	if err != nil {
		return nil, err
	}
	store, err := c.treeCache()
	if err != nil {
		return nil, err
	}
	helpers, err := c.helpers(logger)
	if err != nil {
		return nil, err
	}
	open, close := c.delimiters()
	return handlebars.New(
		handlebars.WithLogger(logger),
		handlebars.WithLoader(templates),
		handlebars.WithPartialsLoader(partials),
		handlebars.WithCache(store),
		handlebars.WithEscape(c.escapeFunc()),
		handlebars.WithHelpers(helpers),
		handlebars.WithPartialAliases(c.Partials),
		handlebars.WithDelimiters(open, close),
		handlebars.WithStrict(c.Strict),
	)
}
