// Package tracer resolves the delegation chain of a callable: the sequence of
// callables reached by following where it forwards its **kwargs collector.
package tracer

import (
	"fmt"
	"log/slog"

	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/symtab"
)

// Resolver builds parameter chains.
type Resolver struct {
	table   *symtab.Table
	targets *TargetResolver
	logger  *slog.Logger
}

// NewResolver creates a chain resolver over table.
func NewResolver(table *symtab.Table, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{
		table:   table,
		targets: NewTargetResolver(table, logger),
		logger:  logger,
	}
}

// Lookup resolves a dotted name to a callable.
func (r *Resolver) Lookup(name string) (model.Callable, error) {
	sym, ok := r.table.Lookup(name)
	if !ok {
		return model.Callable{}, &CallableNotFoundError{Name: name}
	}
	c, ok := r.table.Callable(sym)
	if !ok {
		return model.Callable{}, &CallableNotFoundError{Name: name}
	}
	return c, nil
}

// ResolveName looks up a dotted name and resolves its chain.
func (r *Resolver) ResolveName(name string) (model.Chain, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return r.Resolve(c)
}

// Resolve returns the delegation chain starting at entry. Cycles, multiple
// forwarding targets and broken super() references abort resolution.
func (r *Resolver) Resolve(entry model.Callable) (model.Chain, error) {
	var chain model.Chain
	if err := r.trace(entry, &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// edge is a forwarding target found in one body with the keyword names the
// call sites fixed alongside the splat.
type edge struct {
	callable  model.Callable
	hardcoded []string
}

func (r *Resolver) trace(entry model.Callable, chain *model.Chain) error {
	id := entry.Identity()
	if idx := chain.Index(id); idx >= 0 {
		cycle := append(chain.Identities()[idx:], id)
		return &CircularDelegationError{Cycle: cycle}
	}

	sig, err := r.table.Signature(entry)
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", id, err)
	}
	collector, open := sig.OpenKeyword()
	if !open {
		*chain = append(*chain, model.ChainEntry{Identity: id, Signature: sig, Callable: entry})
		return nil
	}

	edges, err := r.forwards(entry, collector.Name, *chain)
	if err != nil {
		return err
	}
	switch len(edges) {
	case 0:
		*chain = append(*chain, model.ChainEntry{Identity: id, Signature: sig, Callable: entry})
		return nil
	case 1:
	default:
		targets := make([]model.Identity, len(edges))
		for i, e := range edges {
			targets[i] = e.callable.Identity()
		}
		return &MultiTargetDelegationError{Callable: id, Collector: collector.Name, Targets: targets}
	}

	*chain = append(*chain, model.ChainEntry{Identity: id, Signature: sig.Without(collector.Name), Callable: entry})
	next := len(*chain)
	if err := r.trace(edges[0].callable, chain); err != nil {
		return err
	}
	target := &(*chain)[next]
	target.Signature = target.Signature.Without(edges[0].hardcoded...)
	return nil
}

// forwards scans the body of entry for call sites that splat collector and
// groups them by target identity in first-seen order.
func (r *Resolver) forwards(entry model.Callable, collector string, chain model.Chain) ([]edge, error) {
	fn := entry.Func
	if fn == nil {
		return nil, nil
	}
	ctx := r.context(entry, fn, chain)

	var edges []edge
	index := make(map[model.Identity]int)
	for _, ev := range fn.Body {
		if ev.Assign != nil {
			ctx.Locals[ev.Assign.Var] = ev.Assign.Callee
			continue
		}
		site := ev.Call
		if site == nil || !site.Forwards(collector) {
			continue
		}
		t, err := r.targets.Resolve(ctx, site)
		if err != nil {
			return nil, err
		}
		switch t := t.(type) {
		case Unresolved:
			r.logger.Debug("unresolved call target",
				"callable", ctx.Callable, "line", site.Line, "call", site.Text, "reason", t.Reason)
		case Resolved:
			tid := t.Callable.Identity()
			r.logger.Debug("delegation edge",
				"from", ctx.Callable, "to", tid, "rule", t.Rule.String(), "hardcoded", site.Hardcoded)
			if i, ok := index[tid]; ok {
				edges[i].hardcoded = append(edges[i].hardcoded, site.Hardcoded...)
				continue
			}
			index[tid] = len(edges)
			edges = append(edges, edge{callable: t.Callable, hardcoded: append([]string(nil), site.Hardcoded...)})
		}
	}
	return edges, nil
}

func (r *Resolver) context(entry model.Callable, fn *model.Function, chain model.Chain) *ResolutionContext {
	ctx := &ResolutionContext{
		Callable: entry.Identity(),
		Locals:   make(map[string]string),
	}
	if mod, err := r.table.Module(fn.Module); err == nil {
		ctx.Module = mod
		if fn.Class != "" {
			ctx.Class = mod.Classes[fn.Class]
		}
	} else {
		r.logger.Debug("defining module unavailable", "callable", ctx.Callable, "error", err)
	}

	seen := map[string]struct{}{fn.Module: {}}
	if entry.Class != nil && entry.Class.Module != fn.Module {
		seen[entry.Class.Module] = struct{}{}
		if mod, err := r.table.Module(entry.Class.Module); err == nil {
			ctx.Prior = append(ctx.Prior, mod)
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		name := definingModule(chain[i].Callable)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if mod, err := r.table.Module(name); err == nil {
			ctx.Prior = append(ctx.Prior, mod)
		}
	}
	return ctx
}

// definingModule is the module a chain entry was declared in. A class entry
// counts as declared where the class is, even when __init__ is inherited.
func definingModule(c model.Callable) string {
	switch {
	case c.Class != nil:
		return c.Class.Module
	case c.Func != nil:
		return c.Func.Module
	}
	return ""
}
