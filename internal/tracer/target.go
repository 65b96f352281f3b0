package tracer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/symtab"
)

// Rule identifies which resolution rule produced a target.
type Rule int

const (
	RuleGlobal Rule = iota + 1
	RuleModuleName
	RuleSelf
	RuleSuper
	RuleLocalInstance
	RuleClassAttr
)

func (r Rule) String() string {
	switch r {
	case RuleGlobal:
		return "global"
	case RuleModuleName:
		return "module-name"
	case RuleSelf:
		return "self"
	case RuleSuper:
		return "super"
	case RuleLocalInstance:
		return "local-instance"
	case RuleClassAttr:
		return "class-attribute"
	}
	return "unknown"
}

// Target is the outcome of resolving one call site: Resolved or Unresolved.
type Target interface {
	target()
}

// Resolved is a call site bound to a concrete callable.
type Resolved struct {
	Callable model.Callable
	Rule     Rule
}

// Unresolved is a call site outside the recognized shapes, or one whose name
// could not be found. It contributes no delegation edge.
type Unresolved struct {
	Reason string
}

func (Resolved) target()   {}
func (Unresolved) target() {}

// ResolutionContext is the per-callable state the target rules consult.
type ResolutionContext struct {
	Callable model.Identity
	// Module is the defining module of the callable being analyzed.
	Module *model.Module
	// Class is the lexically declaring class, nil for plain functions.
	Class *model.Class
	// Locals maps local variables to the class name they were constructed from.
	Locals map[string]string
	// Prior holds defining modules of earlier chain entries, most recent first.
	Prior []*model.Module
}

// TargetResolver applies the call-target rules against a symbol table.
type TargetResolver struct {
	table  *symtab.Table
	logger *slog.Logger
}

// NewTargetResolver creates a resolver over table.
func NewTargetResolver(table *symtab.Table, logger *slog.Logger) *TargetResolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &TargetResolver{table: table, logger: logger}
}

// Resolve binds a call site to a target. Errors are returned only for
// structural failures of super() resolution.
func (r *TargetResolver) Resolve(ctx *ResolutionContext, site *model.CallSite) (Target, error) {
	switch site.Shape {
	case model.ShapeDotted:
		return r.dotted(ctx, site), nil
	case model.ShapeName:
		return r.bareName(ctx, site.Path[0]), nil
	case model.ShapeAttr:
		return r.attribute(ctx, site.Path[0], site.Path[1]), nil
	case model.ShapeSuper:
		return r.super(ctx, site)
	}
	return Unresolved{Reason: "unrecognized call shape: " + site.Text}, nil
}

// dotted resolves pkg.mod.func(...), expanding an imported head first.
func (r *TargetResolver) dotted(ctx *ResolutionContext, site *model.CallSite) Target {
	dotted := strings.Join(site.Path, ".")
	if site.Path[0] == "self" || site.Path[0] == "cls" {
		return Unresolved{Reason: "nested attribute call: " + dotted}
	}
	var sym symtab.Symbol
	var ok bool
	if ctx.Module != nil {
		sym, ok = r.table.ResolveIn(ctx.Module, dotted)
	} else {
		sym, ok = r.table.Lookup(dotted)
	}
	if !ok {
		return Unresolved{Reason: "cannot import " + dotted}
	}
	return r.resolved(sym, RuleGlobal, dotted)
}

// bareName searches the current module, then the modules of earlier chain
// entries, most recent first.
func (r *TargetResolver) bareName(ctx *ResolutionContext, name string) Target {
	modules := make([]*model.Module, 0, len(ctx.Prior)+1)
	if ctx.Module != nil {
		modules = append(modules, ctx.Module)
	}
	modules = append(modules, ctx.Prior...)
	for _, mod := range modules {
		if sym, ok := r.table.Member(mod, name); ok {
			return r.resolved(sym, RuleModuleName, name)
		}
	}
	return Unresolved{Reason: fmt.Sprintf("name %q not found in defining modules", name)}
}

func (r *TargetResolver) attribute(ctx *ResolutionContext, receiver, method string) Target {
	if receiver == "self" || receiver == "cls" {
		if ctx.Class == nil {
			return Unresolved{Reason: receiver + "." + method + " outside a class"}
		}
		fn, _, ok := r.table.FindMethod(ctx.Class, method)
		if !ok {
			return Unresolved{Reason: fmt.Sprintf("%s has no attribute %q", ctx.Class.QualName(), method)}
		}
		return Resolved{Callable: model.Callable{Func: fn}, Rule: RuleSelf}
	}

	if className, ok := ctx.Locals[receiver]; ok && ctx.Module != nil {
		if sym, ok := r.table.Member(ctx.Module, className); ok && sym.Class != nil {
			if fn, _, ok := r.table.FindMethod(sym.Class, method); ok {
				return Resolved{Callable: model.Callable{Func: fn}, Rule: RuleLocalInstance}
			}
		}
	}

	if ctx.Module == nil {
		return Unresolved{Reason: "no defining module for " + receiver + "." + method}
	}
	sym, ok := r.table.Member(ctx.Module, receiver)
	if !ok {
		return Unresolved{Reason: fmt.Sprintf("receiver %q not found in %s", receiver, ctx.Module.Name)}
	}
	switch {
	case sym.Class != nil:
		if fn, _, ok := r.table.FindMethod(sym.Class, method); ok {
			return Resolved{Callable: model.Callable{Func: fn}, Rule: RuleClassAttr}
		}
	case sym.Module != nil:
		if member, ok := r.table.Member(sym.Module, method); ok {
			return r.resolved(member, RuleClassAttr, receiver+"."+method)
		}
	}
	return Unresolved{Reason: fmt.Sprintf("%s has no attribute %q", receiver, method)}
}

// super resolves super().m and super(Cls, self).m along the MRO of the
// declaring class, starting after the named (or declaring) class.
func (r *TargetResolver) super(ctx *ResolutionContext, site *model.CallSite) (Target, error) {
	method := site.Path[0]
	if site.SuperArgs != 0 && (site.SuperArgs != 2 || site.SuperClass == "") {
		return nil, &UnsupportedSuperCallError{Callable: ctx.Callable, Text: site.Text, Line: site.Line}
	}
	if ctx.Class == nil {
		return nil, &ClassNotFoundError{Class: site.SuperClass}
	}
	mro, err := r.table.MRO(ctx.Class)
	if err != nil {
		return nil, err
	}

	start := 0
	if site.SuperClass != "" {
		_, short := model.SplitQualified(site.SuperClass)
		start = -1
		for i, c := range mro {
			if c.Name == short || c.QualName() == site.SuperClass {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, &ClassNotFoundError{Class: site.SuperClass, Within: ctx.Class.QualName()}
		}
	}
	fn, _, ok := symtab.FindIn(mro[start+1:], method)
	if !ok {
		return nil, &MethodNotFoundError{Method: method, Class: mro[start].QualName()}
	}
	return Resolved{Callable: model.Callable{Func: fn}, Rule: RuleSuper}, nil
}

func (r *TargetResolver) resolved(sym symtab.Symbol, rule Rule, name string) Target {
	c, ok := r.table.Callable(sym)
	if !ok {
		return Unresolved{Reason: name + " is a module, not a callable"}
	}
	return Resolved{Callable: c, Rule: rule}
}
