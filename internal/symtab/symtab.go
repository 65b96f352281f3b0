// Package symtab resolves dotted Python names to parsed descriptors. Modules are
// parsed on first use and kept in a bounded cache.
package symtab

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/synconf/internal/discover"
	"github.com/phobologic/synconf/internal/lang"
	"github.com/phobologic/synconf/internal/logging"
	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/parse"
)

// DefaultCacheSize bounds the number of parsed modules kept in memory.
const DefaultCacheSize = 512

// maxImportDepth bounds how many import re-exports a lookup follows.
const maxImportDepth = 32

// BuiltinsModule is the name of the synthetic module holding object.
const BuiltinsModule = "builtins"

// Symbol is what a dotted name resolves to. Exactly one field is set.
type Symbol struct {
	Module *model.Module
	Class  *model.Class
	Func   *model.Function
}

// Table answers name lookups against the discovered module index.
type Table struct {
	index  map[string]discover.FileEntry
	cache  *lru.Cache[string, *model.Module]
	logger *slog.Logger

	parseMu sync.Mutex
	parser  *sitter.Parser

	mroMu sync.Mutex
	mros  map[string][]*model.Class

	builtins *model.Module
}

// New creates a table over the given module index. A cacheSize <= 0 uses
// DefaultCacheSize.
func New(index map[string]discover.FileEntry, cacheSize int, logger *slog.Logger) (*Table, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *model.Module](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating module cache: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Table{
		index:    index,
		cache:    cache,
		logger:   logger,
		parser:   lang.Python().NewParser(),
		mros:     make(map[string][]*model.Class),
		builtins: builtinsModule(),
	}, nil
}

// Load discovers every module under roots and returns a table over them.
func Load(roots []string, cacheSize int, logger *slog.Logger) (*Table, error) {
	index, err := discover.Index(roots)
	if err != nil {
		return nil, err
	}
	return New(index, cacheSize, logger)
}

// Object returns the synthetic root class builtins.object.
func (t *Table) Object() *model.Class {
	return t.builtins.Classes["object"]
}

func builtinsModule() *model.Module {
	mod := model.NewModule(BuiltinsModule, "")
	object := &model.Class{
		Module:  BuiltinsModule,
		Name:    "object",
		Methods: make(map[string]*model.Function),
	}
	object.Methods["__init__"] = &model.Function{
		Module: BuiltinsModule,
		Class:  "object",
		Name:   "__init__",
		Kind:   model.InstanceMethod,
		Params: []model.Param{
			{Name: "self", Kind: model.Ordinary, Scope: BuiltinsModule},
		},
	}
	mod.Classes["object"] = object
	return mod
}

// HasModule reports whether name is a known module.
func (t *Table) HasModule(name string) bool {
	if name == BuiltinsModule {
		return true
	}
	_, ok := t.index[name]
	return ok
}

// Module returns the parsed module, parsing it on first use.
func (t *Table) Module(name string) (*model.Module, error) {
	if name == BuiltinsModule {
		return t.builtins, nil
	}
	if mod, ok := t.cache.Get(name); ok {
		return mod, nil
	}
	entry, ok := t.index[name]
	if !ok {
		return nil, &ModuleNotFoundError{Module: name}
	}
	source, err := os.ReadFile(entry.Abs())
	if err != nil {
		return nil, fmt.Errorf("reading module %s: %w", name, err)
	}

	t.parseMu.Lock()
	mod, err := parse.ExtractModule(t.parser, source, entry.Abs(), name)
	t.parseMu.Unlock()
	if err != nil {
		return nil, err
	}
	t.logger.Debug("parsed module", "module", name, "path", entry.Abs(),
		"classes", len(mod.Classes), "functions", len(mod.Functions))
	t.cache.Add(name, mod)
	return mod, nil
}

// module is Module for callers that treat a failure as "not found".
func (t *Table) module(name string) (*model.Module, bool) {
	mod, err := t.Module(name)
	if err != nil {
		if !IsNotFound(err) {
			t.logger.Warn("skipping module", "module", name, "error", err)
		}
		return nil, false
	}
	return mod, true
}

// Lookup resolves a fully qualified dotted name the way an import would: the
// longest prefix naming a module, then attributes of that module.
func (t *Table) Lookup(dotted string) (Symbol, bool) {
	return t.lookup(dotted, 0)
}

func (t *Table) lookup(dotted string, depth int) (Symbol, bool) {
	if dotted == "" || depth > maxImportDepth {
		return Symbol{}, false
	}
	parts := strings.Split(dotted, ".")
	for i := len(parts); i > 0; i-- {
		prefix := strings.Join(parts[:i], ".")
		if !t.HasModule(prefix) {
			continue
		}
		mod, ok := t.module(prefix)
		if !ok {
			return Symbol{}, false
		}
		return t.attributes(Symbol{Module: mod}, parts[i:], depth)
	}
	return Symbol{}, false
}

// ResolveIn resolves a dotted name as written inside module: the head is a
// module member or import binding, the rest are attributes. Names not bound
// in the module fall back to a global lookup.
func (t *Table) ResolveIn(mod *model.Module, dotted string) (Symbol, bool) {
	if mod == nil || dotted == "" {
		return Symbol{}, false
	}
	parts := strings.Split(dotted, ".")
	if head, ok := t.member(mod, parts[0], 0); ok {
		if sym, ok := t.attributes(head, parts[1:], 0); ok {
			return sym, true
		}
	}
	if parts[0] == "object" && len(parts) == 1 {
		return Symbol{Class: t.Object()}, true
	}
	return t.Lookup(dotted)
}

// Member returns a top-level name of mod, following import bindings and
// submodules.
func (t *Table) Member(mod *model.Module, name string) (Symbol, bool) {
	return t.member(mod, name, 0)
}

func (t *Table) member(mod *model.Module, name string, depth int) (Symbol, bool) {
	if cls, ok := mod.Classes[name]; ok {
		return Symbol{Class: cls}, true
	}
	if fn, ok := mod.Functions[name]; ok {
		return Symbol{Func: fn}, true
	}
	if target, ok := mod.Imports[name]; ok {
		if sym, ok := t.lookup(target, depth+1); ok {
			return sym, true
		}
	}
	sub := mod.Name + "." + name
	if t.HasModule(sub) {
		if m, ok := t.module(sub); ok {
			return Symbol{Module: m}, true
		}
	}
	return Symbol{}, false
}

func (t *Table) attributes(sym Symbol, rest []string, depth int) (Symbol, bool) {
	for _, name := range rest {
		switch {
		case sym.Module != nil:
			next, ok := t.member(sym.Module, name, depth)
			if !ok {
				return Symbol{}, false
			}
			sym = next
		case sym.Class != nil:
			fn, _, ok := t.FindMethod(sym.Class, name)
			if !ok {
				return Symbol{}, false
			}
			sym = Symbol{Func: fn}
		default:
			return Symbol{}, false
		}
	}
	return sym, true
}

// Callable converts a class or function symbol to a callable. Modules are not
// callable.
func (t *Table) Callable(sym Symbol) (model.Callable, bool) {
	switch {
	case sym.Class != nil:
		init, _, _ := t.FindMethod(sym.Class, "__init__")
		return model.Callable{Class: sym.Class, Func: init}, true
	case sym.Func != nil:
		return model.Callable{Func: sym.Func}, true
	}
	return model.Callable{}, false
}

// Signature returns the parameters a caller supplies to c: the function's
// parameters, or the class's (possibly inherited) __init__, with the bound
// self/cls argument removed.
func (t *Table) Signature(c model.Callable) (model.Signature, error) {
	fn := c.Func
	if c.Class != nil && fn == nil {
		var ok bool
		fn, _, ok = t.FindMethod(c.Class, "__init__")
		if !ok {
			return model.Signature{}, &MissingInitError{Class: c.Class.QualName()}
		}
	}
	if fn == nil {
		return model.Signature{}, fmt.Errorf("empty callable")
	}
	params := fn.Params
	if (fn.Kind == model.InstanceMethod || fn.Kind == model.ClassMethod) &&
		len(params) > 0 && params[0].Kind == model.Ordinary {
		params = params[1:]
	}
	return model.NewSignature(params), nil
}
