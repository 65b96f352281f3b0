// Package parse extracts static descriptors from Python source files using
// tree-sitter: classes, functions, parameters, imports and the call sites that
// forward keyword collectors.
package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/synconf/internal/lang"
	"github.com/phobologic/synconf/internal/model"
)

// ExtractModule parses a Python source file into a module descriptor.
// The parser must be created for Python. filePath is used for diagnostics
// and to decide whether the module is a package (__init__.py).
func ExtractModule(parser *sitter.Parser, source []byte, filePath, module string) (*model.Module, error) {
	mod := model.NewModule(module, filePath)
	if len(source) == 0 {
		return mod, nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	defer tree.Close()

	x := &extractor{
		source:    source,
		mod:       mod,
		isPackage: filepath.Base(filePath) == "__init__.py",
	}
	for _, node := range lang.NamedChildren(tree.RootNode()) {
		x.topLevel(node)
	}
	return mod, nil
}

type extractor struct {
	source    []byte
	mod       *model.Module
	isPackage bool
}

func (x *extractor) text(node *sitter.Node) string {
	return lang.NodeText(node, x.source)
}

func (x *extractor) topLevel(node *sitter.Node) {
	switch node.Type() {
	case "import_statement":
		x.importStatement(node)
	case "import_from_statement":
		x.importFrom(node)
	case "class_definition":
		x.class(node, nil)
	case "function_definition":
		fn := x.function(node, "", nil)
		x.mod.Functions[fn.Name] = fn
	case "decorated_definition":
		decorators, def := x.unwrapDecorated(node)
		if def == nil {
			return
		}
		switch def.Type() {
		case "class_definition":
			x.class(def, decorators)
		case "function_definition":
			fn := x.function(def, "", decorators)
			x.mod.Functions[fn.Name] = fn
		}
	}
}

func (x *extractor) unwrapDecorated(node *sitter.Node) ([]string, *sitter.Node) {
	var decorators []string
	for _, child := range lang.NamedChildren(node) {
		if child.Type() == "decorator" {
			d := strings.TrimSpace(strings.TrimPrefix(x.text(child), "@"))
			if i := strings.Index(d, "("); i >= 0 {
				d = d[:i]
			}
			decorators = append(decorators, d)
		}
	}
	return decorators, node.ChildByFieldName("definition")
}

// importStatement handles "import a.b" (binds a) and "import a.b as c".
func (x *extractor) importStatement(node *sitter.Node) {
	for _, child := range lang.NamedChildren(node) {
		switch child.Type() {
		case "dotted_name":
			name := x.text(child)
			head := strings.SplitN(name, ".", 2)[0]
			x.mod.Imports[head] = head
		case "aliased_import":
			target, _ := lang.DottedName(child.ChildByFieldName("name"), x.source)
			if alias := child.ChildByFieldName("alias"); alias != nil && target != "" {
				x.mod.Imports[x.text(alias)] = target
			}
		}
	}
}

// importFrom handles "from a.b import c, d as e" and relative forms.
func (x *extractor) importFrom(node *sitter.Node) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	from := x.resolveRelative(x.text(moduleNode))
	if from == "" {
		return
	}
	for _, child := range lang.NamedChildren(node) {
		if child.StartByte() == moduleNode.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := x.text(child)
			x.mod.Imports[name] = from + "." + name
		case "aliased_import":
			name, _ := lang.DottedName(child.ChildByFieldName("name"), x.source)
			if alias := child.ChildByFieldName("alias"); alias != nil && name != "" {
				x.mod.Imports[x.text(alias)] = from + "." + name
			}
		}
	}
}

// resolveRelative turns ".sub" or "..pkg" into an absolute dotted module.
func (x *extractor) resolveRelative(name string) string {
	if !strings.HasPrefix(name, ".") {
		return name
	}
	dots := len(name) - len(strings.TrimLeft(name, "."))
	rest := name[dots:]

	parts := strings.Split(x.mod.Name, ".")
	if !x.isPackage {
		parts = parts[:len(parts)-1]
	}
	up := dots - 1
	if up > len(parts) {
		return ""
	}
	parts = parts[:len(parts)-up]
	if rest != "" {
		parts = append(parts, rest)
	}
	return strings.Join(parts, ".")
}

func (x *extractor) class(node *sitter.Node, _ []string) {
	cls := &model.Class{
		Module:  x.mod.Name,
		Name:    lang.DefName(node, x.source),
		Methods: make(map[string]*model.Function),
		File:    x.mod.Path,
		Line:    lang.Line(node),
	}
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		for _, arg := range lang.NamedChildren(supers) {
			// keyword arguments such as metaclass= are not bases
			if name, ok := lang.DottedName(arg, x.source); ok {
				cls.Bases = append(cls.Bases, name)
			}
		}
	}
	body := node.ChildByFieldName("body")
	for _, stmt := range lang.NamedChildren(body) {
		switch stmt.Type() {
		case "function_definition":
			fn := x.function(stmt, cls.Name, nil)
			cls.Methods[fn.Name] = fn
		case "decorated_definition":
			decorators, def := x.unwrapDecorated(stmt)
			if def != nil && def.Type() == "function_definition" {
				fn := x.function(def, cls.Name, decorators)
				cls.Methods[fn.Name] = fn
			}
		}
	}
	x.mod.Classes[cls.Name] = cls
}

func (x *extractor) function(node *sitter.Node, class string, decorators []string) *model.Function {
	fn := &model.Function{
		Module: x.mod.Name,
		Class:  class,
		Name:   lang.DefName(node, x.source),
		Kind:   functionKind(class, decorators),
		File:   x.mod.Path,
		Line:   lang.Line(node),
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Params = x.parameters(params)
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		fn.Return = x.annotation(ret)
	}
	if body := node.ChildByFieldName("body"); body != nil {
		if doc, ok := x.docstring(body); ok {
			fn.Docs = ParseArgsSection(doc)
		}
		fn.Body = x.events(body)
	}
	return fn
}

func functionKind(class string, decorators []string) model.FunctionKind {
	if class == "" {
		return model.PlainFunction
	}
	for _, d := range decorators {
		switch d {
		case "classmethod":
			return model.ClassMethod
		case "staticmethod":
			return model.StaticMethod
		}
	}
	return model.InstanceMethod
}

func (x *extractor) docstring(body *sitter.Node) (string, bool) {
	stmts := lang.NamedChildren(body)
	if len(stmts) == 0 || stmts[0].Type() != "expression_statement" {
		return "", false
	}
	inner := lang.NamedChildren(stmts[0])
	if len(inner) != 1 {
		return "", false
	}
	return lang.StringValue(inner[0], x.source)
}

func (x *extractor) parameters(node *sitter.Node) []model.Param {
	var params []model.Param
	for _, child := range lang.NamedChildren(node) {
		p, ok := x.parameter(child)
		if !ok {
			continue
		}
		p.Scope = x.mod.Name
		params = append(params, p)
	}
	return params
}

func (x *extractor) parameter(node *sitter.Node) (model.Param, bool) {
	switch node.Type() {
	case "identifier":
		return model.Param{Name: x.text(node), Kind: model.Ordinary}, true
	case "list_splat_pattern", "dictionary_splat_pattern":
		return x.splatParameter(node)
	case "typed_parameter":
		var p model.Param
		for _, child := range lang.NamedChildren(node) {
			if child.Type() == "type" {
				continue
			}
			inner, ok := x.parameter(child)
			if !ok {
				return model.Param{}, false
			}
			p = inner
			break
		}
		if p.Name == "" {
			return model.Param{}, false
		}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Type = x.annotation(t)
		}
		return p, true
	case "default_parameter", "typed_default_parameter":
		name := node.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			return model.Param{}, false
		}
		p := model.Param{Name: x.text(name), Kind: model.Ordinary, HasDefault: true}
		if t := node.ChildByFieldName("type"); t != nil {
			p.Type = x.annotation(t)
		}
		if v := node.ChildByFieldName("value"); v != nil {
			p.Default = x.defaultValue(v)
		}
		return p, true
	}
	// keyword_separator, positional_separator, tuple_pattern
	return model.Param{}, false
}

func (x *extractor) splatParameter(node *sitter.Node) (model.Param, bool) {
	kind := model.PositionalCollector
	if node.Type() == "dictionary_splat_pattern" {
		kind = model.OpenKeyword
	}
	for _, child := range lang.NamedChildren(node) {
		if child.Type() == "identifier" {
			return model.Param{Name: x.text(child), Kind: kind}, true
		}
	}
	return model.Param{}, false
}

func (x *extractor) defaultValue(node *sitter.Node) any {
	if v, ok := x.literal(node); ok {
		return v
	}
	return model.Unevaluated{Source: lang.CollapseWhitespace(x.text(node))}
}
