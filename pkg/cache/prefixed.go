package cache

import "github.com/neurodesk/handlebars/pkg/handlebars"

// Prefixed namespaces keys of a store shared between applications, so
// several engines can use one backing cache without collisions.
type Prefixed struct {
	Prefix string
	Next   handlebars.Cache
}

var _ handlebars.Cache = Prefixed{}

func (p Prefixed) key(k string) string { return p.Prefix + ":" + k }

func (p Prefixed) Get(key string) ([]*handlebars.Node, bool) { return p.Next.Get(p.key(key)) }

func (p Prefixed) Set(key string, tree []*handlebars.Node) error {
	return p.Next.Set(p.key(key), tree)
}

func (p Prefixed) Remove(key string) error { return p.Next.Remove(p.key(key)) }
