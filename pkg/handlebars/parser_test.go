package handlebars

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseNestsSections(t *testing.T) {
	src := "{{#a}}x{{#b}}y{{/b}}{{/a}}z"
	tree, err := Parse(Scan(src))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	want := []*Node{
		{
			Token: Token{Kind: KindSection, Name: "a", Index: 6, Open: "{{", Close: "}}"},
			Children: []*Node{
				{Token: Token{Kind: KindText, Name: "x"}},
				{
					Token:    Token{Kind: KindSection, Name: "b", Index: 13, Open: "{{", Close: "}}"},
					Children: []*Node{{Token: Token{Kind: KindText, Name: "y"}}},
					End:      14,
				},
			},
			End: 20,
		},
		{Token: Token{Kind: KindText, Name: "z"}},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	if got := src[tree[0].Index:tree[0].End]; got != "x{{#b}}y{{/b}}" {
		t.Fatalf("section source got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tag  string
	}{
		{"mismatched", "{{#a}}{{#b}}{{/a}}{{/b}}", "a"},
		{"unexpected close", "x{{/a}}", "a"},
		{"unclosed", "{{#a}}x", "a"},
		{"unclosed inverted", "{{^a}}x", "a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Parse(Scan(tt.src))
			if err == nil {
				t.Fatalf("expected error, got tree %#v", tree)
			}
			if tree != nil {
				t.Fatalf("tree returned with error")
			}
			if !errors.Is(err, ErrParse) {
				t.Fatalf("error %v is not ErrParse", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Name != tt.tag {
				t.Fatalf("got %#v, want tag %q", err, tt.tag)
			}
		})
	}
}

func TestParseEmptySection(t *testing.T) {
	tree, err := Parse(Scan("{{#a}}{{/a}}"))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(tree) != 1 || !tree[0].IsSection() || len(tree[0].Children) != 0 {
		t.Fatalf("got %#v", tree)
	}
	if tree[0].End != tree[0].Index {
		t.Fatalf("empty section spans %d..%d", tree[0].Index, tree[0].End)
	}
}
