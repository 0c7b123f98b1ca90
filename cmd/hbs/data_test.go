package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neurodesk/handlebars/pkg/handlebars"
)

func TestDecodeDataKeepsOrder(t *testing.T) {
	v, err := decodeData([]byte(`{"b": 1, "a": [true, null, "x"], "c": {"z": 1.5}}`))
	if err != nil {
		t.Fatal(err)
	}
	m := v.(*handlebars.OrderedMap)
	if diff := cmp.Diff([]string{"b", "a", "c"}, m.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}
	a, _ := m.Get("a")
	if diff := cmp.Diff([]any{true, nil, "x"}, a); diff != "" {
		t.Fatalf("list (-want +got):\n%s", diff)
	}
}

func TestDecodeDataMerge(t *testing.T) {
	v, err := decodeData([]byte("base: &b\n  x: 1\n  y: 2\nitem:\n  <<: *b\n  y: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	item, _ := v.(*handlebars.OrderedMap).Get("item")
	m := item.(*handlebars.OrderedMap)
	x, _ := m.Get("x")
	y, _ := m.Get("y")
	if x != 1 || y != 3 {
		t.Fatalf("got x=%v y=%v", x, y)
	}
}

func TestApplySets(t *testing.T) {
	v, err := applySets(nil, []string{"a.b=2", "a.c=hi", "d=[1, 2]"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := handlebars.New()
	if err != nil {
		t.Fatal(err)
	}
	got, err := out.RenderString("{{a.b}} {{a.c}} {{#d}}{{.}}{{/d}}", v)
	if err != nil || got != "2 hi 12" {
		t.Fatalf("got %q, %v", got, err)
	}
	if _, err := applySets(nil, []string{"novalue"}); err == nil {
		t.Fatalf("missing = accepted")
	}
	if _, err := applySets([]any{1}, []string{"a=1"}); err == nil {
		t.Fatalf("non-mapping data accepted")
	}
}
