package model

import (
	"fmt"
	"strconv"
	"strings"
)

// TypeForm is the syntactic form of a type annotation.
type TypeForm string

const (
	FormName      TypeForm = "name"      // int, pkg.Toy
	FormSubscript TypeForm = "subscript" // list[float], Type[Toy], Literal['a']
	FormUnion     TypeForm = "union"     // Union[a, b], Optional[a], a | b
	FormConst     TypeForm = "const"     // a member of Literal[...]
	FormNone      TypeForm = "none"      // None
	FormForward   TypeForm = "forward"   // "Toy" (string annotation)
)

// TypeExpr is a parsed type annotation.
type TypeExpr struct {
	Form  TypeForm
	Name  string
	Args  []*TypeExpr
	Value any
	// Pipe records that a union was written with the | operator.
	Pipe bool
}

// NamedType returns a plain name annotation.
func NamedType(name string) *TypeExpr { return &TypeExpr{Form: FormName, Name: name} }

// SubscriptType returns name[args...].
func SubscriptType(name string, args ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Form: FormSubscript, Name: name, Args: args}
}

// ConstType returns a literal member.
func ConstType(v any) *TypeExpr { return &TypeExpr{Form: FormConst, Value: v} }

// NoneType returns the None annotation.
func NoneType() *TypeExpr { return &TypeExpr{Form: FormNone, Name: "None"} }

// ForwardType returns a string (forward reference) annotation.
func ForwardType(text string) *TypeExpr { return &TypeExpr{Form: FormForward, Name: text} }

// UnionType returns a union of members. Nested unions are flattened.
func UnionType(pipe bool, members ...*TypeExpr) *TypeExpr {
	u := &TypeExpr{Form: FormUnion, Pipe: pipe}
	for _, m := range members {
		if m != nil && m.Form == FormUnion && m.Pipe == pipe {
			u.Args = append(u.Args, m.Args...)
			continue
		}
		u.Args = append(u.Args, m)
	}
	return u
}

// BaseName returns the annotation name without a typing module prefix.
func (t *TypeExpr) BaseName() string {
	for _, prefix := range []string{"typing.", "typing_extensions.", "collections.abc."} {
		if strings.HasPrefix(t.Name, prefix) {
			return strings.TrimPrefix(t.Name, prefix)
		}
	}
	return t.Name
}

// IsLiteral reports whether the annotation is Literal[...].
func (t *TypeExpr) IsLiteral() bool {
	return t.Form == FormSubscript && t.BaseName() == "Literal"
}

// IsClassOf reports whether the annotation is Type[X] or type[X].
func (t *TypeExpr) IsClassOf() bool {
	if t.Form != FormSubscript {
		return false
	}
	n := t.BaseName()
	return n == "Type" || n == "type"
}

// optionalInner returns X for a two-member union of X and None.
func (t *TypeExpr) optionalInner() (*TypeExpr, bool) {
	if t.Form != FormUnion || len(t.Args) != 2 {
		return nil, false
	}
	switch {
	case t.Args[1].Form == FormNone:
		return t.Args[0], true
	case t.Args[0].Form == FormNone:
		return t.Args[1], true
	}
	return nil, false
}

// String renders the annotation the way Python's typing module prints it.
func (t *TypeExpr) String() string {
	if t == nil {
		return "Any"
	}
	switch t.Form {
	case FormName, FormForward:
		return t.BaseName()
	case FormNone:
		return "None"
	case FormConst:
		return PyRepr(t.Value)
	case FormSubscript:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		return t.BaseName() + "[" + strings.Join(args, ", ") + "]"
	case FormUnion:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = a.String()
		}
		if t.Pipe {
			return strings.Join(parts, " | ")
		}
		if inner, ok := t.optionalInner(); ok {
			return "Optional[" + inner.String() + "]"
		}
		return "Union[" + strings.Join(parts, ", ") + "]"
	}
	return t.Name
}

// PyRepr renders a configuration value like Python's repr().
func PyRepr(v any) string {
	if s, ok := v.(string); ok {
		return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
	}
	return PyStr(v)
}

// PyStr renders a configuration value like Python's str().
func PyStr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return formatFloat(x)
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = PyRepr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := SortedKeys(x)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = PyRepr(k) + ": " + PyRepr(x[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Unevaluated:
		return x.Source
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	abs := f
	if abs < 0 {
		abs = -abs
	}
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}
