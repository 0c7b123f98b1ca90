package handlebars

import "testing"

func TestParseArguments(t *testing.T) {
	args := ParseArguments(`name "two words" n=3 'it\'s' [a b] (upper x)`)
	want := []Argument{
		{Value: "name", Raw: "name"},
		{Value: "two words", Quoted: true, Raw: `"two words"`},
		{Name: "n", Value: "3", Raw: "n=3"},
		{Value: "it's", Quoted: true, Raw: `'it\'s'`},
		{Value: "[a b]", Raw: "[a b]"},
		{Value: "(upper x)", Raw: "(upper x)"},
	}
	if len(args) != len(want) {
		t.Fatalf("got %d arguments: %#v", len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: got %#v, want %#v", i, args[i], want[i])
		}
	}
	if !args[5].IsSubExpression() || args[1].IsSubExpression() {
		t.Fatalf("sub expression detection is wrong")
	}
}

func TestArgumentLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		want any
		ok   bool
	}{
		{"12", 12, true},
		{"-1.5", -1.5, true},
		{`"12"`, "12", true},
		{"true", true, true},
		{"null", nil, true},
		{"title", nil, false},
		{"e", nil, false},
	}
	for _, tt := range tests {
		got, ok := newArgument(tt.raw).Literal()
		if ok != tt.ok || got != tt.want {
			t.Fatalf("%s: got %#v, %v; want %#v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestArgumentResolve(t *testing.T) {
	ctx := NewContext(map[string]any{"title": "T"})
	if got := newArgument("title").Resolve(ctx); got != "T" {
		t.Fatalf("path argument got %v", got)
	}
	if got := newArgument(`'title'`).Resolve(ctx); got != "title" {
		t.Fatalf("quoted argument got %v", got)
	}
}
