package model

import "sort"

// Reserved configuration keys and markers.
const (
	TypeKey      = "TYPE"
	ListMarker   = "LIST"
	RemoveMarker = "REMOVE"
)

// ClassRef is a configuration value that denotes a class object rather than an
// instance, written in YAML as !!python/name:pkg.mod.Class.
type ClassRef struct {
	Name string
}

func (c ClassRef) String() string { return "<class '" + c.Name + "'>" }

// IsObject reports whether v is an object-construction node.
func IsObject(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	t, ok := m[TypeKey].(string)
	return ok && t != ListMarker
}

// TargetOf returns the TYPE of an object-construction node.
func TargetOf(v any) string {
	m, _ := v.(map[string]any)
	t, _ := m[TypeKey].(string)
	return t
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone deep-copies maps and slices of a configuration value.
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = Clone(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	}
	return v
}
