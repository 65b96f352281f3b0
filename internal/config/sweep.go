package config

import (
	"fmt"
	"strings"
)

// Override sets one dotted path, written on the command line as key=value.
type Override struct {
	Path  string
	Value any
}

// IsOverride reports whether a build argument is a key=value override rather
// than a file path.
func IsOverride(arg string) bool {
	key, _, ok := strings.Cut(arg, "=")
	return ok && key != "" && !strings.ContainsAny(key, `/\`)
}

// ParseOverride parses key=value. The value is typed like YAML.
func ParseOverride(arg string) (Override, error) {
	key, value, ok := strings.Cut(arg, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Override{}, fmt.Errorf("override %q: expected key=value", arg)
	}
	return Override{Path: key, Value: ParseValue(value)}, nil
}

// Apply writes every override into tree in order.
func Apply(tree map[string]any, overrides ...Override) error {
	for _, o := range overrides {
		if err := SetPath(tree, o.Path, o.Value); err != nil {
			return err
		}
	}
	return nil
}

// ExpandSweep turns sweep arguments of the form key=[v1, v2] into the
// cartesian product of their values. The last argument varies fastest. With
// no arguments a single empty combination is returned.
func ExpandSweep(args []string) ([][]Override, error) {
	combos := [][]Override{nil}
	for _, arg := range args {
		o, err := ParseOverride(arg)
		if err != nil {
			return nil, err
		}
		values, ok := o.Value.([]any)
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("sweep %q: value must be a non-empty list", arg)
		}
		next := make([][]Override, 0, len(combos)*len(values))
		for _, prefix := range combos {
			for _, v := range values {
				combo := make([]Override, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, Override{Path: o.Path, Value: v}))
			}
		}
		combos = next
	}
	return combos, nil
}
