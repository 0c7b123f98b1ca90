package handlebars

import (
	"errors"
	"strings"
	"testing"
)

type person struct {
	Name string
	Age  int
}

func (p person) Greeting() string { return "hi " + p.Name }

func mustEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestRender(t *testing.T) {
	ordered := NewOrderedMap().Set("z", 1).Set("a", 2)
	tests := []struct {
		name string
		tpl  string
		data any
		want string
	}{
		{"identity", "no tags here\n  at all", nil, "no tags here\n  at all"},
		{"escaped", "{{x}}", map[string]any{"x": "<b>"}, "&lt;b&gt;"},
		{"triple stache", "{{{x}}}", map[string]any{"x": "<b>"}, "<b>"},
		{"ampersand", "{{& x}}", map[string]any{"x": "<b>"}, "<b>"},
		{"comment", "a{{! hidden }}b", nil, "ab"},
		{"dotted", "{{a.b.c}}", map[string]any{"a": map[string]any{"b": map[string]any{"c": "deep"}}}, "deep"},
		{"bracket segment", "{{[foo bar]}}", map[string]any{"foo bar": "baz"}, "baz"},
		{"struct", "{{Name}} {{age}} {{Greeting}}", person{Name: "Ann", Age: 7}, "Ann 7 hi Ann"},
		{"if true", "{{#if x}}Y{{else}}N{{/if}}", map[string]any{"x": true}, "Y"},
		{"if false", "{{#if x}}Y{{else}}N{{/if}}", map[string]any{"x": false}, "N"},
		{"if no else", "{{#if x}}Y{{/if}}", map[string]any{}, ""},
		{"if numeric literal", "{{#if 0}}a{{else}}b{{/if}}", nil, "b"},
		{"if string literal", `{{#if "yes"}}a{{else}}b{{/if}}`, nil, "a"},
		{"unless", "{{#unless x}}none{{/unless}}", map[string]any{"x": []any{}}, "none"},
		{"unless else", "{{#unless x}}none{{else}}some{{/unless}}", map[string]any{"x": []any{1}}, "some"},
		{"each", "{{#each xs}}{{this}}{{/each}}", map[string]any{"xs": []int{1, 2, 3, 4}}, "1234"},
		{"each index", "{{#each xs}}{{@index}}{{/each}}", map[string]any{"xs": []int{1, 2, 3, 4}}, "0123"},
		{"each ordered keys", "{{#each m}}{{@key}}={{this}};{{/each}}", map[string]any{"m": ordered}, "z=1;a=2;"},
		{"each map keys sorted", "{{#each m}}{{@key}}{{/each}}", map[string]any{"m": map[string]int{"b": 1, "a": 2}}, "ab"},
		{"each else", "{{#each xs}}x{{else}}empty{{/each}}", map[string]any{"xs": []any{}}, "empty"},
		{"each missing else", "{{#each xs}}x{{else}}empty{{/each}}", nil, "empty"},
		{"each else skipped", "{{#each xs}}{{this}}{{else}}empty{{/each}}", map[string]any{"xs": []any{"a", "b"}}, "ab"},
		{"each slice", "{{#each xs[1:3]}}{{this}}{{/each}}", map[string]any{"xs": []int{1, 2, 3, 4}}, "23"},
		{"each negative slice", "{{#each xs[-2:]}}{{this}}{{/each}}", map[string]any{"xs": []int{1, 2, 3, 4}}, "34"},
		{"each first last", "{{#each xs}}{{#if @first}}[{{/if}}{{this}}{{#if @last}}]{{/if}}{{/each}}", map[string]any{"xs": []int{1, 2, 3}}, "[123]"},
		{"each nested if else", "{{#each xs}}{{#if this}}y{{else}}n{{/if}}{{/each}}", map[string]any{"xs": []bool{true, false, true}}, "yny"},
		{"each parent", "{{#each xs}}{{#if this}}{{../title}}{{/if}}{{/each}}", map[string]any{"title": "T", "xs": []int{1, 0, 1}}, "TT"},
		{"with parent", "{{#with y}}{{../x}}{{/with}}", map[string]any{"x": "X", "y": map[string]any{}}, "X"},
		{"with", "{{#with p}}{{Name}}{{/with}}", map[string]any{"p": person{Name: "Bo"}}, "Bo"},
		{"mustache list", "{{#items}}{{name}},{{/items}}", map[string]any{"items": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}}, "a,b,"},
		{"mustache object", "{{#p}}{{Name}}{{/p}}", map[string]any{"p": &person{Name: "Cy"}}, "Cy"},
		{"mustache truthy scalar", "{{#nope}}x{{/nope}}", map[string]any{"nope": true}, "x"},
		{"mustache falsy", "{{#nope}}x{{/nope}}", map[string]any{"nope": 0}, ""},
		{"mustache missing", "{{#nope}}x{{/nope}}", map[string]any{}, ""},
		{"inverted", "{{^xs}}none{{/xs}}", map[string]any{"xs": []any{}}, "none"},
		{"inverted truthy", "{{^xs}}none{{/xs}}", map[string]any{"xs": []any{1}}, ""},
		{"raw", "{{#raw}}{{x}} {{y}}{{/raw}}", map[string]any{"x": 1}, "{{x}} {{y}}"},
		{"bindAttr", `{{bindAttr class="a"}}`, nil, "class=&quot;a&quot;"},
		{"upper", "{{upper name}}", map[string]any{"name": "bob"}, "BOB"},
		{"lower", "{{lower name}}", map[string]any{"name": "BoB"}, "bob"},
		{"capitalize", "{{capitalize name}}", map[string]any{"name": "émile zola"}, "Émile zola"},
		{"capitalize_words", "{{capitalize_words name}}", map[string]any{"name": "hello wide world"}, "Hello Wide World"},
		{"reverse", "{{reverse name}}", map[string]any{"name": "abc"}, "cba"},
		{"helper output escaped", "{{upper name}}", map[string]any{"name": "<i>"}, "&lt;I&gt;"},
		{"default", `{{default title "Untitled"}}`, map[string]any{}, "Untitled"},
		{"default set", `{{default title "Untitled"}}`, map[string]any{"title": "Mine"}, "Mine"},
		{"truncate", `{{truncate s 3 "..."}}`, map[string]any{"s": "abcdef"}, "abc..."},
		{"inflect plural", `{{inflect n "%d item" "%d items"}}`, map[string]any{"n": 2}, "2 items"},
		{"inflect singular", `{{inflect n "%d item" "%d items"}}`, map[string]any{"n": 1}, "1 item"},
		{"inflect float", `{{inflect n "%d item" "%d items"}}`, map[string]any{"n": float64(3)}, "3 items"},
		{"inflect float singular", `{{inflect n "%d item" "%d items"}}`, map[string]any{"n": float64(1)}, "1 item"},
		{"inflect string count", `{{inflect n "%d item" "%d items"}}`, map[string]any{"n": "4"}, "4 items"},
		{"inflect fraction", `{{inflect n "%v item" "%v items"}}`, map[string]any{"n": 2.5}, "2.5 items"},
		{"format_date", `{{format_date d "Y-m-d H:i"}}`, map[string]any{"d": "2024-03-05 10:20:00"}, "2024-03-05 10:20"},
		{"format_date timestamp", `{{format_date d "D, d M Y"}}`, map[string]any{"d": 0}, "Thu, 01 Jan 1970"},
		{"sub expression", "{{#if (lower name)}}{{upper (lower name)}}{{/if}}", map[string]any{"name": "Ab"}, "AB"},
		{"standalone lines", "{{#if x}}\n  yes\n{{/if}}\n", map[string]any{"x": 1}, "  yes\n"},
		{"escaped delimiter", `\{{x}} {{x}}`, map[string]any{"x": 1}, "{{x}} 1"},
		{"delimiter change", "{{=<% %>=}}<% x %>", map[string]any{"x": "y"}, "y"},
	}
	e := mustEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.RenderString(tt.tpl, tt.data)
			if err != nil {
				t.Fatalf("render error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderUnregisteredHelper(t *testing.T) {
	e := mustEngine(t)
	_, err := e.RenderString("{{#nope 1}}x{{/nope}}", map[string]any{})
	if !errors.Is(err, ErrUnknownHelper) {
		t.Fatalf("got %v, want unknown helper error", err)
	}
	if !strings.Contains(err.Error(), "nope is not registered as a helper") {
		t.Fatalf("message got %q", err.Error())
	}
	if _, err := e.RenderString("{{#nope}}x{{/nope}}", map[string]any{"nope": true}); err != nil {
		t.Fatalf("bare block must fall back: %v", err)
	}
}

func TestRenderParseError(t *testing.T) {
	e := mustEngine(t)
	if _, err := e.RenderString("{{#a}}{{#b}}{{/a}}{{/b}}", nil); !errors.Is(err, ErrParse) {
		t.Fatalf("got %v, want parse error", err)
	}
}

func TestRenderStrict(t *testing.T) {
	e := mustEngine(t, WithStrict(true))
	if _, err := e.RenderString("{{missing}}", map[string]any{}); !errors.Is(err, ErrLookup) {
		t.Fatalf("got %v, want lookup error", err)
	}
	if _, err := e.RenderString("{{#missing}}x{{/missing}}", map[string]any{}); !errors.Is(err, ErrLookup) {
		t.Fatalf("section: got %v, want lookup error", err)
	}
	got, err := e.RenderString("{{present}}", map[string]any{"present": "ok"})
	if err != nil || got != "ok" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestPartials(t *testing.T) {
	e := mustEngine(t)
	e.RegisterPartial("greet", "Hi {{name}}!")
	data := map[string]any{"name": "Bob", "other": map[string]any{"name": "Ann"}}

	got, err := e.RenderString("{{> greet}} {{> greet other}}", data)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "Hi Bob! Hi Ann!" {
		t.Fatalf("got %q", got)
	}

	e.RegisterPartial("lines", "a\nb\n")
	got, err = e.RenderString("list:\n  {{> lines}}\ndone", nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != "list:\n  a\n  b\ndone" {
		t.Fatalf("indented partial got %q", got)
	}

	e.UnregisterPartial("greet")
	got, err = e.RenderString("{{> greet}}", data)
	if err != nil || got != "greet" {
		t.Fatalf("unregistered alias got %q, %v", got, err)
	}
}

func TestPartialsLoaderError(t *testing.T) {
	e := mustEngine(t, WithPartialsLoader(mapLoader{}))
	_, err := e.RenderString("{{> missing}}", nil)
	if !errors.Is(err, errNoTemplate) {
		t.Fatalf("got %v", err)
	}
}

var errNoTemplate = errors.New("no such template")

type mapLoader map[string]string

func (m mapLoader) Load(name string) (string, error) {
	if s, ok := m[name]; ok {
		return s, nil
	}
	return "", errNoTemplate
}

func TestRenderNamedTemplate(t *testing.T) {
	e := mustEngine(t, WithLoader(mapLoader{"page": "<h1>{{title}}</h1>"}))
	got, err := e.Render("page", map[string]any{"title": "Home"})
	if err != nil || got != "<h1>Home</h1>" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := e.Render("nope", nil); !errors.Is(err, errNoTemplate) {
		t.Fatalf("missing template got %v", err)
	}
}

func TestCustomHelpers(t *testing.T) {
	e := mustEngine(t, WithHelpers(map[string]Helper{
		"bold": func(t *Template, ctx *Context, args, _ string) (any, error) {
			v, err := t.Evaluate(ctx, args)
			if err != nil {
				return nil, err
			}
			return SafeString("<b>" + HTMLEscape(Stringify(v)) + "</b>"), nil
		},
		"link": func(_ *Template, _ *Context, args, _ string) (any, error) {
			return TemplateString(`<a href="{{url}}">{{` + args + `}}</a>`), nil
		},
	}))
	got, err := e.RenderString("{{bold name}} {{link label}}", map[string]any{"name": "<x>", "url": "/u", "label": "<L>"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if got != `<b>&lt;x&gt;</b> <a href="/u">&lt;L&gt;</a>` {
		t.Fatalf("got %q", got)
	}

	if err := e.AddHelper("repeat", Repeat); err != nil {
		t.Fatalf("add helper: %v", err)
	}
	got, err = e.RenderString("{{#repeat 3}}ab{{/repeat}}", nil)
	if err != nil || got != "ababab" {
		t.Fatalf("repeat got %q, %v", got, err)
	}
	if err := e.RemoveHelper("repeat"); err != nil {
		t.Fatalf("remove helper: %v", err)
	}
	if e.HasHelper("repeat") {
		t.Fatalf("helper still registered")
	}
	if err := e.RemoveHelper("repeat"); !errors.Is(err, ErrUnknownHelper) {
		t.Fatalf("removing twice got %v", err)
	}
}

func TestHelperErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	e := mustEngine(t, WithHelpers(map[string]Helper{
		"fail": func(*Template, *Context, string, string) (any, error) { return nil, boom },
	}))
	if _, err := e.RenderString("{{#each xs}}{{fail}}{{/each}}", map[string]any{"xs": []int{1}}); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestOptions(t *testing.T) {
	if _, err := New(WithEscape(nil)); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil escape got %v", err)
	}
	if _, err := New(WithLoader(nil)); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil loader got %v", err)
	}
	if _, err := New(WithDelimiters("<%", "")); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty delimiter got %v", err)
	}
	if _, err := New(WithHelpers(map[string]Helper{"x": nil})); !errors.Is(err, ErrConfig) {
		t.Fatalf("nil helper got %v", err)
	}

	e := mustEngine(t, WithDelimiters("<%", "%>"), WithEscapeArgs(QuotesAll))
	got, err := e.RenderString("<% q %> {{q}}", map[string]any{"q": "'"})
	if err != nil || got != "&#039; {{q}}" {
		t.Fatalf("got %q, %v", got, err)
	}

	e = mustEngine(t, WithEscape(NoEscape), WithPartialAliases(map[string]string{"p": "<{{v}}>"}))
	got, err = e.RenderString("{{> p}}", map[string]any{"v": "&"})
	if err != nil || got != "<&>" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestCompileCache(t *testing.T) {
	cache := NewMemoryCache()
	e := mustEngine(t, WithCache(cache))
	first, err := e.Compile("{{#a}}x{{/a}}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := e.Compile("{{#a}}x{{/a}}")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("second compile did not reuse the cached tree")
	}
	if cache.Len() != 1 {
		t.Fatalf("cache holds %d trees", cache.Len())
	}
	if e.CacheKey("{{#a}}x{{/a}}") == e.CacheKey("{{#a}}y{{/a}}") {
		t.Fatalf("different source shares a cache key")
	}
	if _, err := e.Compile("{{#a}}y{{/a}}"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("changed source did not miss the cache")
	}

	other := mustEngine(t, WithCache(cache), WithDelimiters("<%", "%>"))
	if other.CacheKey("x") == e.CacheKey("x") {
		t.Fatalf("delimiters not part of the cache key")
	}
}

func TestTemplateStopToken(t *testing.T) {
	e := mustEngine(t)
	tpl, err := e.LoadString("a{{stop}}b{{stop}}c")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tpl.SetStopToken("stop")
	if tpl.StopToken() != "stop" {
		t.Fatalf("stop token not set")
	}
	out, err := tpl.Render(nil)
	if err != nil || out != "a" {
		t.Fatalf("first pass got %q, %v", out, err)
	}
	if tpl.StopToken() != "" {
		t.Fatalf("stop token not cleared after pause")
	}
	tpl.SetStopToken("stop")
	tpl.Discard()
	out, err = tpl.Render(nil)
	if err != nil || out != "c" {
		t.Fatalf("resumed render got %q, %v", out, err)
	}
	tpl.Rewind()
	out, _ = tpl.Render(map[string]any{"stop": "-"})
	if out != "a-b-c" {
		t.Fatalf("rewound render got %q", out)
	}
}
