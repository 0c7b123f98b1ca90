package handlebars

// Node is a Token placed in the parse tree. Section and inverted section nodes
// carry their children and the offset at which their closing tag starts, so
// that Source()[Index:End] is exactly the literal text they enclose.
type Node struct {
	Token
	Children []*Node `json:"nodes,omitempty"`
	End      int     `json:"end,omitempty"`
}

// IsSection reports whether n opens a block that was matched by a close tag.
func (n *Node) IsSection() bool {
	return n.Kind.opensSection()
}

// Parse builds a tree from the flat token stream in a single pass. Every
// section in the returned tree has been closed by a tag of the same name;
// otherwise a *ParseError is returned and no tree.
func Parse(tokens []Token) ([]*Node, error) {
	type entry struct {
		node   *Node
		closed bool
	}
	stack := make([]entry, 0, len(tokens))

	for i := range tokens {
		tok := tokens[i]
		if tok.Kind != KindEndSection {
			stack = append(stack, entry{
				node:   &Node{Token: tok},
				closed: !tok.Kind.opensSection(),
			})
			continue
		}

		var popped []*Node
		for {
			if len(stack) == 0 {
				return nil, &ParseError{Name: tok.Name, Index: tok.Index, Reason: "unexpected closing tag /" + tok.Name}
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.closed {
				popped = append(popped, top.node)
				continue
			}
			if top.node.Name != tok.Name {
				return nil, &ParseError{
					Name:   tok.Name,
					Index:  tok.Index,
					Reason: "closing tag /" + tok.Name + " does not match open section " + top.node.Name,
				}
			}
			children := make([]*Node, len(popped))
			for j, n := range popped {
				children[len(popped)-1-j] = n
			}
			top.node.Children = children
			top.node.End = tok.Index
			stack = append(stack, entry{node: top.node, closed: true})
			break
		}
	}

	tree := make([]*Node, 0, len(stack))
	for _, e := range stack {
		if !e.closed {
			return nil, &ParseError{Name: e.node.Name, Index: e.node.Index, Reason: "unclosed section " + e.node.Name}
		}
		tree = append(tree, e.node)
	}
	return tree, nil
}
