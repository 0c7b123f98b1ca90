package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"gopkg.in/yaml.v3"
)

// readInput returns the contents of path, or stdin for "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeData parses YAML or JSON render data. Mappings keep their key
// order so that {{#each}} over an object follows the document.
func decodeData(b []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	return nodeValue(&doc)
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		m := handlebars.NewOrderedMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Tag == "!!merge" {
				if err := mergeInto(m, v); err != nil {
					return nil, err
				}
				continue
			}
			val, err := nodeValue(v)
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, val)
		}
		return m, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", n.Line)
}

// mergeInto applies a "<<" merge key without overriding keys already set.
func mergeInto(m *handlebars.OrderedMap, n *yaml.Node) error {
	v, err := nodeValue(n)
	if err != nil {
		return err
	}
	sources := []any{v}
	if list, ok := v.([]any); ok {
		sources = list
	}
	for _, src := range sources {
		om, ok := src.(*handlebars.OrderedMap)
		if !ok {
			return errors.New("merge key must reference a mapping")
		}
		for _, k := range om.Keys() {
			if _, exists := m.Get(k); !exists {
				val, _ := om.Get(k)
				m.Set(k, val)
			}
		}
	}
	return nil
}

// applySets overlays --set key.path=value pairs onto data, creating
// intermediate objects as needed. Values are parsed as YAML scalars.
func applySets(data any, sets []string) (any, error) {
	if len(sets) == 0 {
		return data, nil
	}
	root, ok := data.(*handlebars.OrderedMap)
	if data == nil {
		root, ok = handlebars.NewOrderedMap(), true
	}
	if !ok {
		return nil, errors.New("--set needs the data document to be a mapping")
	}
	for _, kv := range sets {
		key, raw, found := strings.Cut(kv, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want KEY=VALUE)", kv)
		}
		val, err := decodeData([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
		parts := strings.Split(key, ".")
		m := root
		for _, p := range parts[:len(parts)-1] {
			next, ok := m.Get(p)
			child, isMap := next.(*handlebars.OrderedMap)
			if !ok || !isMap {
				child = handlebars.NewOrderedMap()
				m.Set(p, child)
			}
			m = child
		}
		m.Set(parts[len(parts)-1], val)
	}
	return root, nil
}
