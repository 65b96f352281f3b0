package parse

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/synconf/internal/lang"
	"github.com/phobologic/synconf/internal/model"
)

// annotation converts a type node (or any expression used as one) to a TypeExpr.
func (x *extractor) annotation(node *sitter.Node) *model.TypeExpr {
	switch node.Type() {
	case "type":
		inner := lang.NamedChildren(node)
		if len(inner) == 1 {
			return x.annotation(inner[0])
		}
	case "none":
		return model.NoneType()
	case "identifier", "attribute", "member_type":
		if name, ok := lang.DottedName(node, x.source); ok {
			if name == "None" {
				return model.NoneType()
			}
			return model.NamedType(name)
		}
		return model.NamedType(lang.CollapseWhitespace(x.text(node)))
	case "string", "concatenated_string":
		if s, ok := lang.StringValue(node, x.source); ok {
			return model.ForwardType(s)
		}
	case "binary_operator", "union_type":
		operands := lang.NamedChildren(node)
		if len(operands) == 2 && (node.Type() == "union_type" || x.operator(node) == "|") {
			return model.UnionType(true, x.annotation(operands[0]), x.annotation(operands[1]))
		}
	case "parenthesized_expression":
		inner := lang.NamedChildren(node)
		if len(inner) == 1 {
			return x.annotation(inner[0])
		}
	case "subscript":
		children := lang.NamedChildren(node)
		if len(children) >= 2 {
			name, ok := lang.DottedName(children[0], x.source)
			if ok {
				return x.generic(name, children[1:])
			}
		}
	case "generic_type":
		children := lang.NamedChildren(node)
		if len(children) == 2 && children[1].Type() == "type_parameter" {
			name, _ := lang.DottedName(children[0], x.source)
			return x.generic(name, lang.NamedChildren(children[1]))
		}
	}
	return model.NamedType(lang.CollapseWhitespace(x.text(node)))
}

func (x *extractor) operator(node *sitter.Node) string {
	if op := node.ChildByFieldName("operator"); op != nil {
		return x.text(op)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if !child.IsNamed() {
			return x.text(child)
		}
	}
	return ""
}

func (x *extractor) generic(name string, argNodes []*sitter.Node) *model.TypeExpr {
	// Literal["a", "b"] arrives as one tuple argument in some grammar versions.
	if len(argNodes) == 1 && argNodes[0].Type() == "tuple" {
		argNodes = lang.NamedChildren(argNodes[0])
	}
	base := strings.TrimPrefix(strings.TrimPrefix(name, "typing_extensions."), "typing.")
	if base == "Literal" {
		var members []*model.TypeExpr
		for _, a := range argNodes {
			if a.Type() == "type" {
				if inner := lang.NamedChildren(a); len(inner) == 1 {
					a = inner[0]
				}
			}
			v, ok := x.literal(a)
			if !ok {
				v = x.text(a)
			}
			members = append(members, model.ConstType(v))
		}
		return model.SubscriptType(name, members...)
	}

	args := make([]*model.TypeExpr, 0, len(argNodes))
	for _, a := range argNodes {
		args = append(args, x.annotation(a))
	}
	switch base {
	case "Optional":
		if len(args) == 1 {
			return model.UnionType(false, args[0], model.NoneType())
		}
	case "Union":
		return model.UnionType(false, args...)
	}
	return model.SubscriptType(name, args...)
}

// literal evaluates a literal expression: numbers, strings, booleans, None and
// lists, tuples or dicts built from them.
func (x *extractor) literal(node *sitter.Node) (any, bool) {
	if node == nil {
		return nil, false
	}
	switch node.Type() {
	case "integer":
		text := strings.ReplaceAll(x.text(node), "_", "")
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return nil, false
		}
		return int(n), true
	case "float":
		text := strings.ReplaceAll(x.text(node), "_", "")
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case "string", "concatenated_string":
		return lang.StringValue(node, x.source)
	case "true":
		return true, true
	case "false":
		return false, true
	case "none":
		return nil, true
	case "unary_operator":
		arg := node.ChildByFieldName("argument")
		if arg == nil {
			return nil, false
		}
		v, ok := x.literal(arg)
		if !ok {
			return nil, false
		}
		neg := strings.HasPrefix(strings.TrimSpace(x.text(node)), "-")
		switch n := v.(type) {
		case int:
			if neg {
				return -n, true
			}
			return n, true
		case float64:
			if neg {
				return -n, true
			}
			return n, true
		}
		return nil, false
	case "parenthesized_expression":
		inner := lang.NamedChildren(node)
		if len(inner) == 1 {
			return x.literal(inner[0])
		}
	case "list", "tuple", "set":
		items := make([]any, 0, node.NamedChildCount())
		for _, child := range lang.NamedChildren(node) {
			v, ok := x.literal(child)
			if !ok {
				return nil, false
			}
			items = append(items, v)
		}
		return items, true
	case "dictionary":
		out := make(map[string]any)
		for _, pair := range lang.NamedChildren(node) {
			if pair.Type() != "pair" {
				return nil, false
			}
			k, ok := x.literal(pair.ChildByFieldName("key"))
			if !ok {
				return nil, false
			}
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			v, ok := x.literal(pair.ChildByFieldName("value"))
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	}
	return nil, false
}
