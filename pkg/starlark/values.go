package starlark

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/neurodesk/handlebars/pkg/handlebars"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// markup is a string a script has flagged for the renderer: either safe
// HTML or template source to be rendered in place.
type markup struct {
	text     string
	template bool
}

var _ starlark.Value = markup{}

func (m markup) String() string { return m.text }

func (m markup) Type() string {
	if m.template {
		return "template"
	}
	return "safe"
}

func (m markup) Freeze()              {}
func (m markup) Truth() starlark.Bool { return m.text != "" }

func (m markup) Hash() (uint32, error) { return starlark.String(m.text).Hash() }

// ToStarlark converts render data to a Starlark value. Structs become
// read-only structs of their exported fields; anything without a Starlark
// counterpart is passed as its rendered string.
func ToStarlark(v any) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case starlark.Value:
		return x
	case handlebars.SafeString:
		return markup{text: string(x)}
	case handlebars.TemplateString:
		return markup{text: string(x), template: true}
	case string:
		return starlark.String(x)
	case bool:
		return starlark.Bool(x)
	case *handlebars.OrderedMap:
		if x == nil {
			return starlark.None
		}
		d := starlark.NewDict(x.Len())
		for _, k := range x.Keys() {
			val, _ := x.Get(k)
			_ = d.SetKey(starlark.String(k), ToStarlark(val))
		}
		return d
	case fmt.Stringer:
		return starlark.String(x.String())
	}

	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return starlark.None
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return starlark.MakeUint64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return starlark.Float(rv.Float())
	case reflect.String:
		return starlark.String(rv.String())
	case reflect.Bool:
		return starlark.Bool(rv.Bool())
	case reflect.Slice, reflect.Array:
		items := make([]starlark.Value, rv.Len())
		for i := range items {
			items[i] = ToStarlark(rv.Index(i).Interface())
		}
		return starlark.NewList(items)
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return handlebars.Stringify(keys[i].Interface()) < handlebars.Stringify(keys[j].Interface())
		})
		d := starlark.NewDict(len(keys))
		for _, k := range keys {
			_ = d.SetKey(ToStarlark(k.Interface()), ToStarlark(rv.MapIndex(k).Interface()))
		}
		return d
	case reflect.Struct:
		fields := starlark.StringDict{}
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			if f := rt.Field(i); f.IsExported() {
				fields[f.Name] = ToStarlark(rv.Field(i).Interface())
			}
		}
		return starlarkstruct.FromStringDict(starlarkstruct.Default, fields)
	}
	return starlark.String(handlebars.Stringify(v))
}

// indirect follows pointers and interfaces down to a concrete value.
func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

// FromStarlark converts a script value back to render data. Dicts keep
// their insertion order as *handlebars.OrderedMap.
func FromStarlark(v starlark.Value) any {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case markup:
		if x.template {
			return handlebars.TemplateString(x.text)
		}
		return handlebars.SafeString(x.text)
	case starlark.String:
		return string(x)
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.String()
	case starlark.Float:
		return float64(x)
	case *starlark.List:
		out := make([]any, x.Len())
		for i := range out {
			out[i] = FromStarlark(x.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = FromStarlark(item)
		}
		return out
	case *starlark.Dict:
		m := handlebars.NewOrderedMap()
		for _, item := range x.Items() {
			m.Set(keyString(item[0]), FromStarlark(item[1]))
		}
		return m
	case *starlarkstruct.Struct:
		m := handlebars.NewOrderedMap()
		for _, name := range x.AttrNames() {
			attr, err := x.Attr(name)
			if err == nil {
				m.Set(name, FromStarlark(attr))
			}
		}
		return m
	}
	return v.String()
}

func keyString(k starlark.Value) string {
	if s, ok := k.(starlark.String); ok {
		return string(s)
	}
	return k.String()
}
