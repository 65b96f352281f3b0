package builder

import (
	"fmt"
	"strconv"

	"github.com/phobologic/synconf/internal/interp"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/tracer"
)

// CompleteDefaults fills every object node in tree with the defaults of its
// target's parameter chain. Keys already present are kept. A default that is
// the name of a class becomes a class reference; other non-literal defaults
// are left for the callable to apply.
func (b *Builder) CompleteDefaults(tree any) error {
	return b.complete(tree, "")
}

func (b *Builder) complete(v any, path string) error {
	switch x := v.(type) {
	case map[string]any:
		if model.IsObject(x) {
			if err := b.fill(x, path); err != nil {
				return err
			}
		}
		for _, k := range model.SortedKeys(x) {
			if k == model.TypeKey {
				continue
			}
			if err := b.complete(x[k], join(path, k)); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range x {
			if err := b.complete(item, join(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) fill(node map[string]any, path string) error {
	target := model.TargetOf(node)
	if interp.HasMarkers(target) {
		b.logger.Debug("skipping defaults", "path", path, "reason", "target is interpolated")
		return nil
	}
	chain, err := b.resolver.ResolveName(target)
	if err != nil {
		return fmt.Errorf("%s: %w", displayPath(path), err)
	}

	defaults, skipped := tracer.Defaults(chain)
	for name, v := range defaults {
		if _, ok := node[name]; !ok {
			node[name] = v
		}
	}
	if len(skipped) == 0 {
		return nil
	}

	params := make(map[string]model.Param)
	for _, p := range chain.Parameters() {
		params[p.Name] = p
	}
	for _, name := range skipped {
		if _, ok := node[name]; ok {
			continue
		}
		if ref, ok := b.classDefault(params[name]); ok {
			node[name] = ref
			continue
		}
		b.logger.Debug("skipping default", "parameter", join(path, name), "reason", "default is not a literal")
	}
	return nil
}

// classDefault resolves a non-literal default naming a parsed class, as in
// `cls: Type[Base] = Impl`.
func (b *Builder) classDefault(p model.Param) (model.ClassRef, bool) {
	u, ok := p.Default.(model.Unevaluated)
	if !ok || p.Scope == "" {
		return model.ClassRef{}, false
	}
	mod, err := b.table.Module(p.Scope)
	if err != nil {
		return model.ClassRef{}, false
	}
	sym, ok := b.table.ResolveIn(mod, u.Source)
	if !ok || sym.Class == nil || sym.Class.External || sym.Func != nil {
		return model.ClassRef{}, false
	}
	return model.ClassRef{Name: sym.Class.QualName()}, true
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func displayPath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}
