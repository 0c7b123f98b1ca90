package handlebars

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Context values are plain Go data: scalars, maps, slices, *OrderedMap, and
// host objects. Host objects resolve path segments through Accessor when they
// implement it, otherwise through exported fields and zero-argument methods.

// Accessor lets a host object resolve path segments itself.
type Accessor interface {
	Lookup(name string) (any, bool)
}

// Truther overrides the default truthiness of a host value.
type Truther interface {
	Truth() bool
}

// SafeString is output that must not be escaped.
type SafeString string

func (s SafeString) String() string { return string(s) }

// TemplateString is helper output that is compiled and rendered in the
// calling scope before it is written.
type TemplateString string

func (s TemplateString) String() string { return string(s) }

// OrderedMap is a string-keyed map that iterates in insertion order.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Set stores v under k, keeping the position of an existing key.
func (m *OrderedMap) Set(k string, v any) *OrderedMap {
	if _, ok := m.values[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.values[k] = v
	return m
}

func (m *OrderedMap) Get(k string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[k]
	return v, ok
}

func (m *OrderedMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

func (m *OrderedMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// entry is one element of an iterable value.
type entry struct {
	key   any
	value any
}

// iterate expands v into its elements. list is true for sequences, whose keys
// are positions. ok is false when v is not iterable.
func iterate(v any) (items []entry, list bool, ok bool) {
	switch t := v.(type) {
	case nil, string, []byte, SafeString, TemplateString:
		return nil, false, false
	case *OrderedMap:
		for _, k := range t.keys {
			items = append(items, entry{key: k, value: t.values[k]})
		}
		return items, false, true
	case []any:
		for i, it := range t {
			items = append(items, entry{key: i, value: it})
		}
		return items, true, true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			items = append(items, entry{key: i, value: rv.Index(i).Interface()})
		}
		return items, true, true
	case reflect.Map:
		keys := rv.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			items = append(items, entry{key: k.Interface(), value: rv.MapIndex(k).Interface()})
		}
		return items, false, true
	}
	return nil, false, false
}

// IsTruthy reports whether v counts as true for sections and conditionals:
// nil, false, zero numbers, empty strings and empty collections are false.
func IsTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case Truther:
		return t.Truth()
	case bool:
		return t
	case string:
		return t != ""
	case SafeString:
		return t != ""
	case TemplateString:
		return t != ""
	case *OrderedMap:
		return t.Len() > 0
	case time.Time:
		return !t.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return IsTruthy(rv.Elem().Interface())
	case reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

// Stringify renders v the way it appears in template output.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case SafeString:
		return string(t)
	case TemplateString:
		return string(t)
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	case *OrderedMap:
		return "[object]"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map, reflect.Struct:
		return "[object]"
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return ""
		}
		return Stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// ToFloat converts numbers and numeric strings; ok is false otherwise.
func ToFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// lookupMember resolves one path segment against v.
func lookupMember(v any, name string) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case Accessor:
		return t.Lookup(name)
	case *OrderedMap:
		return t.Get(name)
	case map[string]any:
		val, ok := t[name]
		return val, ok
	}

	orig := reflect.ValueOf(v)
	rv := orig
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		key, ok := mapKey(rv.Type().Key(), name)
		if !ok {
			return nil, false
		}
		mv := rv.MapIndex(key)
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(name)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Struct:
		if f := rv.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), true
		}
		f := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
		if f.IsValid() && f.CanInterface() {
			return f.Interface(), true
		}
	}
	if m, ok := callMethod(orig, name); ok {
		return m, true
	}
	return nil, false
}

func mapKey(t reflect.Type, name string) (reflect.Value, bool) {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(name).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(t), true
	case reflect.Interface:
		k := reflect.ValueOf(name)
		if !k.Type().AssignableTo(t) {
			return reflect.Value{}, false
		}
		return k, true
	}
	return reflect.Value{}, false
}

// callMethod calls a zero-argument method matching name. Methods returning
// (value, error) report a failed call as unresolved.
func callMethod(rv reflect.Value, name string) (any, bool) {
	if !rv.IsValid() {
		return nil, false
	}
	m := rv.MethodByName(name)
	if !m.IsValid() {
		typ := rv.Type()
		for i := 0; i < typ.NumMethod(); i++ {
			if strings.EqualFold(typ.Method(i).Name, name) {
				m = rv.Method(i)
				break
			}
		}
	}
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return nil, false
	}
	switch m.Type().NumOut() {
	case 1:
		return m.Call(nil)[0].Interface(), true
	case 2:
		out := m.Call(nil)
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, false
		}
		return out[0].Interface(), true
	}
	return nil, false
}
