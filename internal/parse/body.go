package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/synconf/internal/lang"
	"github.com/phobologic/synconf/internal/model"
)

// events walks a function body in source order and records local constructor
// assignments and calls that splat a bare name. Nested definitions have their
// own scope and are skipped.
func (x *extractor) events(body *sitter.Node) []model.Event {
	var out []model.Event
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		switch node.Type() {
		case "function_definition", "class_definition", "decorated_definition", "lambda":
			return
		case "assignment":
			if a := x.assignment(node); a != nil {
				out = append(out, model.Event{Assign: a})
			}
		case "call":
			if c := x.callSite(node); c != nil {
				out = append(out, model.Event{Call: c})
			}
		}
		for _, child := range lang.NamedChildren(node) {
			walk(child)
		}
	}
	for _, stmt := range lang.NamedChildren(body) {
		walk(stmt)
	}
	return out
}

// assignment matches "name = Callee(...)".
func (x *extractor) assignment(node *sitter.Node) *model.Assign {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "call" {
		return nil
	}
	fn := right.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return nil
	}
	return &model.Assign{Var: x.text(left), Callee: x.text(fn), Line: lang.Line(node)}
}

func (x *extractor) callSite(node *sitter.Node) *model.CallSite {
	args := node.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return nil
	}

	site := &model.CallSite{Text: lang.CollapseWhitespace(x.text(node)), Line: lang.Line(node)}
	for _, arg := range lang.NamedChildren(args) {
		switch arg.Type() {
		case "dictionary_splat":
			inner := lang.NamedChildren(arg)
			if len(inner) == 1 && inner[0].Type() == "identifier" {
				site.Splats = append(site.Splats, x.text(inner[0]))
			}
		case "keyword_argument":
			if name := arg.ChildByFieldName("name"); name != nil {
				site.Hardcoded = append(site.Hardcoded, x.text(name))
			}
		}
	}
	if len(site.Splats) == 0 {
		return nil
	}

	fn := node.ChildByFieldName("function")
	x.classifyCallee(site, fn)
	return site
}

func (x *extractor) classifyCallee(site *model.CallSite, fn *sitter.Node) {
	site.Shape = model.ShapeOther
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		site.Shape = model.ShapeName
		site.Path = []string{x.text(fn)}
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return
		}
		method := x.text(attr)
		if obj.Type() == "call" {
			callee := obj.ChildByFieldName("function")
			if callee != nil && callee.Type() == "identifier" && x.text(callee) == "super" {
				site.Shape = model.ShapeSuper
				site.Path = []string{method}
				superArgs := lang.NamedChildren(obj.ChildByFieldName("arguments"))
				site.SuperArgs = len(superArgs)
				if len(superArgs) == 2 {
					if name, ok := lang.DottedName(superArgs[0], x.source); ok {
						site.SuperClass = name
					}
				}
			}
			return
		}
		if obj.Type() == "identifier" {
			site.Shape = model.ShapeAttr
			site.Path = []string{x.text(obj), method}
			return
		}
		if dotted, ok := lang.DottedName(fn, x.source); ok {
			site.Shape = model.ShapeDotted
			site.Path = strings.Split(dotted, ".")
		}
	}
}
