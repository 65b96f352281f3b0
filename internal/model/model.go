// Package model defines the static descriptors synconf builds from Python
// sources: modules, classes, functions, parameters and delegation chains.
package model

import "strings"

// ParamKind indicates how a parameter binds call arguments.
type ParamKind string

const (
	Ordinary            ParamKind = "ordinary"
	PositionalCollector ParamKind = "var_positional"
	OpenKeyword         ParamKind = "var_keyword"
)

// Unevaluated is the default of a parameter whose default expression is not a
// literal. The source text is kept for display.
type Unevaluated struct {
	Source string
}

// Param is a single declared parameter.
type Param struct {
	Name       string
	Kind       ParamKind
	Type       *TypeExpr // nil when unannotated
	HasDefault bool
	Default    any
	// Scope is the dotted module the parameter was declared in. Annotation
	// names are resolved relative to it.
	Scope string
}

// Required reports whether a configuration must supply the parameter.
func (p Param) Required() bool {
	return p.Kind == Ordinary && !p.HasDefault
}

// Signature is an ordered, immutable parameter list.
type Signature struct {
	params []Param
}

// NewSignature copies params into a Signature.
func NewSignature(params []Param) Signature {
	cp := make([]Param, len(params))
	copy(cp, params)
	return Signature{params: cp}
}

// Params returns a copy of the parameters in declaration order.
func (s Signature) Params() []Param {
	cp := make([]Param, len(s.params))
	copy(cp, s.params)
	return cp
}

// Len returns the number of parameters.
func (s Signature) Len() int { return len(s.params) }

// Lookup returns the named parameter.
func (s Signature) Lookup(name string) (Param, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// OpenKeyword returns the open keyword collector (**kwargs), if any.
func (s Signature) OpenKeyword() (Param, bool) {
	for _, p := range s.params {
		if p.Kind == OpenKeyword {
			return p, true
		}
	}
	return Param{}, false
}

// Names returns parameter names in declaration order.
func (s Signature) Names() []string {
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Without returns a signature with the named parameters removed.
func (s Signature) Without(names ...string) Signature {
	if len(names) == 0 {
		return s
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := make([]Param, 0, len(s.params))
	for _, p := range s.params {
		if _, ok := drop[p.Name]; ok {
			continue
		}
		kept = append(kept, p)
	}
	return Signature{params: kept}
}

// Identity is the globally unique, stable name of a callable,
// e.g. "pkg.models.Child" or "pkg.models.AClass.create".
type Identity string

func (id Identity) String() string { return string(id) }

// ChainEntry is one step of a delegation chain.
type ChainEntry struct {
	Identity  Identity
	Signature Signature
	Callable  Callable
}

// Chain is an ordered delegation chain: entry point first, most-forwarded-to last.
type Chain []ChainEntry

// Identities returns the chain identities in order.
func (c Chain) Identities() []Identity {
	ids := make([]Identity, len(c))
	for i, e := range c {
		ids[i] = e.Identity
	}
	return ids
}

// Index returns the position of id in the chain, or -1.
func (c Chain) Index(id Identity) int {
	for i, e := range c {
		if e.Identity == id {
			return i
		}
	}
	return -1
}

// Parameters returns the union of all parameters across the chain. When two
// entries expose the same name the one nearest the entry point wins.
func (c Chain) Parameters() []Param {
	seen := make(map[string]struct{})
	var out []Param
	for _, e := range c {
		for _, p := range e.Signature.params {
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// OpenEnded reports whether any entry still exposes an open keyword collector.
func (c Chain) OpenEnded() bool {
	for _, e := range c {
		if _, ok := e.Signature.OpenKeyword(); ok {
			return true
		}
	}
	return false
}

// FunctionKind distinguishes how a function binds its first argument.
type FunctionKind string

const (
	PlainFunction  FunctionKind = "function"
	InstanceMethod FunctionKind = "method"
	ClassMethod    FunctionKind = "classmethod"
	StaticMethod   FunctionKind = "staticmethod"
)

// Function is a parsed def statement.
type Function struct {
	Module string
	Class  string // enclosing class name, "" for module-level functions
	Name   string
	Kind   FunctionKind
	Params []Param // as declared, including self/cls
	Return *TypeExpr
	Body   []Event
	Docs   map[string]string // parameter descriptions from the docstring
	File   string
	Line   int
}

// QualName returns module[.Class].name.
func (f *Function) QualName() string {
	if f.Class != "" {
		return f.Module + "." + f.Class + "." + f.Name
	}
	return f.Module + "." + f.Name
}

// Class is a parsed class statement.
type Class struct {
	Module  string
	Name    string
	Bases   []string // dotted base expressions as written
	Methods map[string]*Function
	File    string
	Line    int
	// External marks a placeholder for a base class whose source is not
	// available. Its only method is an opaque __init__ accepting anything.
	External bool
}

// QualName returns module.Name.
func (c *Class) QualName() string {
	if c.Module == "" {
		return c.Name
	}
	return c.Module + "." + c.Name
}

// Module is a parsed Python source file.
type Module struct {
	Name      string
	Path      string
	Classes   map[string]*Class
	Functions map[string]*Function
	// Imports maps a local binding to the dotted name it refers to:
	// "import numpy as np" => np: numpy, "from a.b import c" => c: a.b.c.
	Imports map[string]string
}

// NewModule returns an empty module.
func NewModule(name, path string) *Module {
	return &Module{
		Name:      name,
		Path:      path,
		Classes:   make(map[string]*Class),
		Functions: make(map[string]*Function),
		Imports:   make(map[string]string),
	}
}

// Callable is either a class (constructed through its __init__) or a function.
// Exactly one of Class and Func is the entry; for classes Func holds the
// resolved __init__ (possibly inherited) and may be nil.
type Callable struct {
	Class *Class
	Func  *Function
}

// IsClass reports whether the callable constructs a class.
func (c Callable) IsClass() bool { return c.Class != nil }

// Identity returns the stable identity of the callable. An __init__ method is
// named by its class.
func (c Callable) Identity() Identity {
	if c.Class != nil {
		return Identity(c.Class.QualName())
	}
	if c.Func == nil {
		return ""
	}
	if c.Func.Name == "__init__" && c.Func.Class != "" {
		return Identity((&Class{Module: c.Func.Module, Name: c.Func.Class}).QualName())
	}
	return Identity(c.Func.QualName())
}

// SplitQualified splits "a.b.c" into ("a.b", "c").
func SplitQualified(name string) (string, string) {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}
