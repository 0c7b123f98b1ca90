package handlebars

import (
	"errors"
	"fmt"
	"testing"
)

type account struct {
	Owner   string
	Balance int
	tags    []string
}

func (a account) Summary() string { return a.Owner + ":" + Stringify(a.Balance) }

func (a *account) Failing() (string, error) { return "", errors.New("boom") }

func TestContextGet(t *testing.T) {
	data := map[string]any{
		"title": "T",
		"user": map[string]any{
			"name":  "Ann",
			"roles": []any{"admin", "dev"},
		},
		"empty":   "",
		"odd key": "spaced",
		"dotted":  map[string]any{"a.b": "literal"},
		"acct":    account{Owner: "Bo", Balance: 3},
	}
	ctx := NewContext(data)

	tests := []struct {
		path string
		want any
	}{
		{"title", "T"},
		{"user.name", "Ann"},
		{"user.roles.1", "dev"},
		{"this.title", "T"},
		{"./title", "T"},
		{"[odd key]", "spaced"},
		{"dotted.[a.b]", "literal"},
		{"acct.Owner", "Bo"},
		{"acct.owner", "Bo"},
		{"acct.Summary", "Bo:3"},
		{"missing", ""},
		{"user.missing.deeper", ""},
		{"empty.anything", ""},
		{"acct.tags", ""},
	}
	for _, tt := range tests {
		if got := ctx.Get(tt.path); Stringify(got) != Stringify(tt.want) {
			t.Fatalf("Get(%q) got %#v, want %#v", tt.path, got, tt.want)
		}
	}
	if got := ctx.Get("."); got == nil {
		t.Fatalf("Get(.) returned nil")
	}
}

func TestContextParentAndRoot(t *testing.T) {
	ctx := NewContext(map[string]any{"x": "root"})
	ctx.Push(map[string]any{"x": "middle"})
	ctx.Push(map[string]any{"x": "top"})

	for path, want := range map[string]string{
		"x":          "top",
		"../x":       "middle",
		"../../x":    "root",
		"@root.x":    "root",
		"../../../x": "",
	} {
		if got := Stringify(ctx.Get(path)); got != want {
			t.Fatalf("Get(%q) got %q, want %q", path, got, want)
		}
	}
	if _, err := ctx.GetStrict("../../../x"); !errors.Is(err, ErrLookup) {
		t.Fatalf("strict lookup past the root: got %v", err)
	}
	if v := ctx.Pop(); Stringify(ctx.Get("x")) != "middle" || v == nil {
		t.Fatalf("pop did not restore parent frame")
	}
}

func TestContextStrict(t *testing.T) {
	ctx := NewContext(map[string]any{"a": map[string]any{"b": 1}, "empty": ""})
	if v, err := ctx.GetStrict("a.b"); err != nil || v != 1 {
		t.Fatalf("got %v, %v", v, err)
	}
	_, err := ctx.GetStrict("a.c")
	var le *LookupError
	if !errors.As(err, &le) || le.Segment != "c" || le.Path != "a.c" {
		t.Fatalf("got %#v", err)
	}
	if _, err := ctx.GetStrict(""); err == nil {
		t.Fatalf("empty path must fail in strict mode")
	}
	if v, err := ctx.GetStrict("empty.x"); err != nil || v != "" {
		t.Fatalf("empty string must short-circuit: %v, %v", v, err)
	}
}

func TestContextIterationMarkers(t *testing.T) {
	ctx := NewContext(nil)
	if _, ok := ctx.LastIndex(); ok {
		t.Fatalf("fresh context has an index")
	}
	ctx.PushIndex(2)
	ctx.PushKey("k")
	ctx.PushPosition(2, 3)
	if Stringify(ctx.Get("@index")) != "2" || ctx.Get("@key") != "k" {
		t.Fatalf("got @index=%v @key=%v", ctx.Get("@index"), ctx.Get("@key"))
	}
	if ctx.Get("@first") != false || ctx.Get("@last") != true {
		t.Fatalf("got @first=%v @last=%v", ctx.Get("@first"), ctx.Get("@last"))
	}
	ctx.PopPosition()
	ctx.PopKey()
	if i := ctx.PopIndex(); i != 2 {
		t.Fatalf("PopIndex got %d", i)
	}
	if ctx.Get("@index") != "" {
		t.Fatalf("@index outside iteration got %v", ctx.Get("@index"))
	}
}

func TestContextWith(t *testing.T) {
	ctx := NewContext(map[string]any{"a": map[string]any{"b": "c"}})
	ctx.With("a")
	if ctx.Depth() != 2 || ctx.Get("b") != "c" {
		t.Fatalf("With did not push the resolved value")
	}
}

func TestContextAccessor(t *testing.T) {
	ctx := NewContext(accessorFunc(func(name string) (any, bool) {
		if name == "magic" {
			return 42, true
		}
		return nil, false
	}))
	if ctx.Get("magic") != 42 {
		t.Fatalf("accessor not consulted")
	}
	if ctx.Get("other") != "" {
		t.Fatalf("accessor miss got %v", ctx.Get("other"))
	}
}

type accessorFunc func(string) (any, bool)

func (f accessorFunc) Lookup(name string) (any, bool) { return f(name) }

func TestContextFailingMethod(t *testing.T) {
	ctx := NewContext(&account{Owner: "x"})
	if ctx.Get("Failing") != "" {
		t.Fatalf("method error must read as unresolved")
	}
	if ctx.Get("Summary") != "x:0" {
		t.Fatalf("value method through pointer got %v", ctx.Get("Summary"))
	}
}

func TestContextInterfaceKeyedMap(t *testing.T) {
	ctx := NewContext(map[string]any{
		"stringers": map[fmt.Stringer]int{},
		"anys":      map[any]int{"a": 1},
	})
	if got := ctx.Get("stringers.a"); got != "" {
		t.Fatalf("unassignable key got %#v", got)
	}
	if _, err := ctx.GetStrict("stringers.a"); !errors.Is(err, ErrLookup) {
		t.Fatalf("strict lookup got %v", err)
	}
	if got := ctx.Get("anys.a"); got != 1 {
		t.Fatalf("map[any] lookup got %#v", got)
	}
}
