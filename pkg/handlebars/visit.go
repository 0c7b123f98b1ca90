package handlebars

import (
	"bytes"
	"fmt"
)

type Visitor interface {
	Visit(n *Node, depth int) error
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(n *Node, depth int) error

func (f VisitorFunc) Visit(n *Node, depth int) error { return f(n, depth) }

// Walk visits every node of tree depth first, parents before children.
func Walk(v Visitor, tree []*Node) error {
	return walk(v, tree, 0)
}

func walk(v Visitor, nodes []*Node, depth int) error {
	for _, n := range nodes {
		if err := v.Visit(n, depth); err != nil {
			return err
		}
		if err := walk(v, n.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// Pretty returns a line-oriented string representation of the tree.
func Pretty(tree []*Node) string {
	var buf bytes.Buffer
	_ = Walk(VisitorFunc(func(n *Node, depth int) error {
		for i := 0; i < depth*2; i++ {
			buf.WriteByte(' ')
		}
		ppNode(&buf, n)
		return nil
	}), tree)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, n *Node) {
	switch n.Kind {
	case KindText:
		fmt.Fprintf(buf, "Text(%q)\n", n.Name)
	case KindSection:
		fmt.Fprintf(buf, "Section(%s %q)\n", n.Name, n.Args)
	case KindInverted:
		fmt.Fprintf(buf, "Inverted(%s)\n", n.Name)
	case KindComment:
		fmt.Fprintf(buf, "Comment(%q)\n", n.Name)
	case KindPartial, KindPartialAlt:
		fmt.Fprintf(buf, "Partial(%s %q indent=%q)\n", n.Name, n.Args, n.Indent)
	case KindEscaped:
		fmt.Fprintf(buf, "Var(%s)\n", n.Name)
	case KindUnescaped, KindUnescapedAlt:
		fmt.Fprintf(buf, "Raw(%s)\n", n.Name)
	default:
		fmt.Fprintf(buf, "%s(%s)\n", n.Kind, n.Name)
	}
}
