// Package interp resolves the (( ... )) markers embedded in configuration
// string values. A marker names a dotted configuration path, an upper-case
// environment variable, or an expression whose `backticked` segments are such
// references.
package interp

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty/function"

	"github.com/phobologic/synconf/internal/config"
	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLookupEnv replaces os.LookupEnv for environment references.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(e *Engine) { e.lookupEnv = fn }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine resolves markers. It holds no per-tree state and may be reused.
type Engine struct {
	lookupEnv func(string) (string, bool)
	functions map[string]function.Function
	logger    *slog.Logger
}

// New creates an engine reading the process environment.
func New(opts ...Option) *Engine {
	e := &Engine{
		lookupEnv: os.LookupEnv,
		functions: functions(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveAll replaces every marker in tree, in place, and returns tree.
// Mappings are visited in key order.
func (e *Engine) ResolveAll(tree map[string]any) (map[string]any, error) {
	r := e.newResolution(tree)
	if err := r.walk(tree, ""); err != nil {
		return nil, err
	}
	return tree, nil
}

// ResolveValue resolves one raw string found at path in tree. A string that
// is exactly one marker yields the referenced value with its own type; markers
// embedded in other text are replaced by their string form. A string without
// markers is returned unchanged.
func (e *Engine) ResolveValue(tree map[string]any, raw, path string) (any, error) {
	return e.newResolution(tree).value(raw, path)
}

// resolution is the state of one top-level call: the tree being resolved and
// the paths currently being resolved, in visitation order.
type resolution struct {
	*Engine
	tree   map[string]any
	stack  []string
	active map[string]struct{}
}

func (e *Engine) newResolution(tree map[string]any) *resolution {
	return &resolution{Engine: e, tree: tree, active: make(map[string]struct{})}
}

func (r *resolution) walk(v any, path string) error {
	switch x := v.(type) {
	case map[string]any:
		for _, k := range model.SortedKeys(x) {
			if err := r.resolveIn(x, k, join(path, k)); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range x {
			p := join(path, strconv.Itoa(i))
			if s, ok := item.(string); ok {
				resolved, err := r.value(s, p)
				if err != nil {
					return err
				}
				x[i] = resolved
				continue
			}
			if err := r.walk(item, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolution) resolveIn(m map[string]any, key, path string) error {
	s, ok := m[key].(string)
	if !ok {
		return r.walk(m[key], path)
	}
	resolved, err := r.value(s, path)
	if err != nil {
		return err
	}
	m[key] = resolved
	return nil
}

func (r *resolution) value(raw, path string) (any, error) {
	markers := scanMarkers(raw)
	if len(markers) == 0 {
		return raw, nil
	}

	if _, ok := r.active[path]; ok {
		return nil, &CircularInterpolationError{Cycle: r.cycle(path)}
	}
	r.active[path] = struct{}{}
	r.stack = append(r.stack, path)
	defer func() {
		delete(r.active, path)
		r.stack = r.stack[:len(r.stack)-1]
	}()

	if m := markers[0]; len(markers) == 1 && m.start == 0 && m.end == len(raw) {
		v, err := r.marker(m, path)
		if err != nil {
			return nil, err
		}
		if s, ok := v.(string); ok {
			return config.ParseValue(s), nil
		}
		return v, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range markers {
		v, err := r.marker(m, path)
		if err != nil {
			return nil, err
		}
		b.WriteString(raw[last:m.start])
		b.WriteString(model.PyStr(v))
		last = m.end
	}
	b.WriteString(raw[last:])
	return b.String(), nil
}

func (r *resolution) cycle(path string) []string {
	for i, p := range r.stack {
		if p == path {
			out := make([]string, 0, len(r.stack)-i+1)
			out = append(out, r.stack[i:]...)
			return append(out, path)
		}
	}
	return []string{path, path}
}

func (r *resolution) marker(m marker, path string) (any, error) {
	if strings.Contains(m.content, exprQuote) {
		return r.expression(m.content, path)
	}
	return r.lookup(m.content, path)
}

// lookup resolves a reference: an environment variable when the name is upper
// case, otherwise a configuration path whose value is resolved first.
func (r *resolution) lookup(ref, from string) (any, error) {
	ref = strings.TrimSpace(ref)
	if isEnvName(ref) {
		v, ok := r.lookupEnv(ref)
		if !ok {
			return nil, &UndefinedVariableError{Name: ref, Path: from}
		}
		r.logger.Debug("resolved environment reference", "path", from, "variable", ref)
		return v, nil
	}

	target := strings.Join(config.SplitPath(ref), ".")
	v, ok := config.GetPath(r.tree, target)
	if !ok || target == "" {
		return nil, &ReferenceNotFoundError{Reference: ref, Path: from}
	}
	r.logger.Debug("resolved config reference", "path", from, "reference", target)

	switch x := v.(type) {
	case string:
		resolved, err := r.value(x, target)
		if err != nil {
			return nil, err
		}
		if err := config.SetPath(r.tree, target, resolved); err != nil {
			return nil, err
		}
		return resolved, nil
	case map[string]any, []any:
		if err := r.walk(x, target); err != nil {
			return nil, err
		}
		return model.Clone(x), nil
	}
	return v, nil
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
