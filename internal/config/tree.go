package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/synconf/internal/model"
)

// PathError reports a dotted path that cannot be followed or written.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("config path %q: %s", e.Path, e.Reason)
}

// SplitPath splits a dotted path into segments. Bracketed list indices are
// accepted as segments, so "a[0].b" and "a.0.b" are the same path.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	path = strings.NewReplacer("[", ".", "]", "").Replace(path)
	return strings.Split(path, ".")
}

// GetPath returns the value at path. The empty path denotes tree itself.
func GetPath(tree any, path string) (any, bool) {
	cur := tree
	for _, seg := range SplitPath(path) {
		next, ok := child(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// HasPath reports whether path exists in tree.
func HasPath(tree any, path string) bool {
	_, ok := GetPath(tree, path)
	return ok
}

// SetPath writes value at path, creating intermediate mappings as needed.
// List elements can be replaced but lists are never extended.
func SetPath(tree map[string]any, path string, value any) error {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return &PathError{Path: path, Reason: "empty path"}
	}
	var cur any = tree
	for i, seg := range segs[:len(segs)-1] {
		next, ok := child(cur, seg)
		if !ok || !isContainer(next) {
			m, isMap := cur.(map[string]any)
			if !isMap {
				return &PathError{Path: path, Reason: fmt.Sprintf("%q is not a mapping", strings.Join(segs[:i], "."))}
			}
			next = map[string]any{}
			m[seg] = next
		}
		cur = next
	}

	last := segs[len(segs)-1]
	switch c := cur.(type) {
	case map[string]any:
		c[last] = value
		return nil
	case []any:
		idx, err := strconv.Atoi(last)
		if err != nil || idx < 0 || idx >= len(c) {
			return &PathError{Path: path, Reason: "list index out of range"}
		}
		c[idx] = value
		return nil
	}
	return &PathError{Path: path, Reason: "parent is not a container"}
}

// DeletePath removes the mapping key at path and reports whether it existed.
func DeletePath(tree any, path string) bool {
	_, ok := PopPath(tree, path)
	return ok
}

// PopPath removes the mapping key at path and returns its value.
func PopPath(tree any, path string) (any, bool) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, false
	}
	parent, ok := GetPath(tree, strings.Join(segs[:len(segs)-1], "."))
	if !ok {
		return nil, false
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return nil, false
	}
	last := segs[len(segs)-1]
	v, ok := m[last]
	if ok {
		delete(m, last)
	}
	return v, ok
}

func child(v any, seg string) (any, bool) {
	switch c := v.(type) {
	case map[string]any:
		next, ok := c[seg]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(c) {
			return nil, false
		}
		return c[idx], true
	}
	return nil, false
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// DeepMerge merges src into dst and returns dst. Nested mappings merge
// recursively; any other src value replaces the dst value. An object node in
// src whose TYPE differs from the dst node's replaces it wholesale, since the
// old node's parameters belong to another target.
func DeepMerge(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		sm, srcMap := sv.(map[string]any)
		dm, dstMap := dst[k].(map[string]any)
		if srcMap && dstMap && !retargeted(dm, sm) {
			DeepMerge(dm, sm)
			continue
		}
		dst[k] = model.Clone(sv)
	}
	return dst
}

func retargeted(dst, src map[string]any) bool {
	t, ok := src[model.TypeKey]
	return ok && t != dst[model.TypeKey]
}

// RemoveMarked deletes every mapping key whose value is the REMOVE marker.
func RemoveMarked(v any) {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			if s, ok := item.(string); ok && s == model.RemoveMarker {
				delete(x, k)
				continue
			}
			RemoveMarked(item)
		}
	case []any:
		for _, item := range x {
			RemoveMarked(item)
		}
	}
}

// ProcessLists replaces every mapping with TYPE: LIST by the list of its other
// values, ordered by key. Numeric keys sort numerically.
func ProcessLists(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = ProcessLists(item)
		}
		if t, ok := x[model.TypeKey].(string); !ok || t != model.ListMarker {
			return x
		}
		keys := listKeys(x)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = x[k]
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = ProcessLists(item)
		}
	}
	return v
}

func listKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != model.TypeKey {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		if aErr == nil && bErr == nil {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Kwargs returns the keyword arguments of an object node: every key except
// TYPE.
func Kwargs(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		if k != model.TypeKey {
			out[k] = v
		}
	}
	return out
}

// Flatten maps the dotted path of every leaf to its value. Empty mappings and
// lists are leaves.
func Flatten(tree any) map[string]any {
	out := make(map[string]any)
	flatten(tree, "", out)
	return out
}

func flatten(v any, prefix string, out map[string]any) {
	switch x := v.(type) {
	case map[string]any:
		if len(x) > 0 {
			for k, item := range x {
				flatten(item, join(prefix, k), out)
			}
			return
		}
	case []any:
		if len(x) > 0 {
			for i, item := range x {
				flatten(item, join(prefix, strconv.Itoa(i)), out)
			}
			return
		}
	}
	if prefix != "" {
		out[prefix] = v
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
