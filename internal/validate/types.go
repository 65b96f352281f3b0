package validate

import (
	"strings"

	"github.com/phobologic/synconf/internal/model"
	"github.com/phobologic/synconf/internal/symtab"
)

// actualType is the statically known type of a configuration value.
type actualType struct {
	builtin string       // Python builtin type name
	class   *model.Class // parsed class, for object nodes
	name    string       // rendering for messages
	unknown bool         // cannot be determined; skip the check
}

// builtinAliases maps typing names to the builtin they check against.
var builtinAliases = map[string]string{
	"List": "list", "Dict": "dict", "Tuple": "tuple", "Set": "set",
	"FrozenSet": "frozenset", "Type": "type", "Text": "str", "NoneType": "NoneType",
}

// abstractKinds lists the builtins accepted by each abstract collection name.
var abstractKinds = map[string][]string{
	"Sequence":        {"list", "tuple", "str"},
	"MutableSequence": {"list"},
	"Mapping":         {"dict"},
	"MutableMapping":  {"dict"},
	"Iterable":        {"list", "tuple", "dict", "set", "str"},
	"Collection":      {"list", "tuple", "dict", "set", "str"},
	"Container":       {"list", "tuple", "dict", "set", "str"},
	"Sized":           {"list", "tuple", "dict", "set", "str"},
	"Hashable":        {"int", "float", "str", "bool", "NoneType", "tuple", "type"},
}

var builtinTypes = map[string]struct{}{
	"int": {}, "float": {}, "str": {}, "bool": {}, "list": {}, "dict": {}, "tuple": {},
	"set": {}, "frozenset": {}, "bytes": {}, "complex": {}, "type": {}, "NoneType": {},
	"object": {},
}

// normalizeBuiltin returns the builtin type name for a typing name, or "".
func normalizeBuiltin(name string) string {
	if alias, ok := builtinAliases[name]; ok {
		return alias
	}
	name = strings.TrimPrefix(name, "builtins.")
	if _, ok := builtinTypes[name]; ok {
		return name
	}
	return ""
}

// builtinSubtype reports issubclass(actual, expected) for builtin types.
// bool derives from int; int does not derive from float.
func builtinSubtype(actual, expected string) bool {
	switch {
	case expected == "object", actual == expected:
		return true
	case actual == "bool" && expected == "int":
		return true
	}
	return false
}

func valueType(v any) actualType {
	switch v.(type) {
	case nil:
		return actualType{builtin: "NoneType", name: "NoneType"}
	case bool:
		return actualType{builtin: "bool", name: "bool"}
	case int, int64, uint64:
		return actualType{builtin: "int", name: "int"}
	case float64:
		return actualType{builtin: "float", name: "float"}
	case string:
		return actualType{builtin: "str", name: "str"}
	case []any:
		return actualType{builtin: "list", name: "list"}
	case map[string]any:
		return actualType{builtin: "dict", name: "dict"}
	case model.ClassRef:
		return actualType{builtin: "type", name: "type"}
	}
	return actualType{unknown: true}
}

// actualOf determines the type a value will have once built: object nodes
// yield their class, or the return annotation of a function target.
func (v *Validator) actualOf(value any) actualType {
	if !model.IsObject(value) {
		return valueType(value)
	}
	target := model.TargetOf(value)
	sym, ok := v.table.Lookup(target)
	if !ok {
		return actualType{unknown: true}
	}
	switch {
	case sym.Class != nil:
		return actualType{class: sym.Class, name: sym.Class.QualName()}
	case sym.Func != nil:
		if sym.Func.Return == nil {
			return actualType{unknown: true}
		}
		return v.annotationType(sym.Func.Return, sym.Func.Module)
	}
	return actualType{unknown: true}
}

// annotationType converts a return annotation into the type it promises.
func (v *Validator) annotationType(t *model.TypeExpr, scope string) actualType {
	switch t.Form {
	case model.FormNone:
		return actualType{builtin: "NoneType", name: "NoneType"}
	case model.FormName, model.FormForward, model.FormSubscript:
		name := t.BaseName()
		if b := normalizeBuiltin(name); b != "" {
			return actualType{builtin: b, name: b}
		}
		if cls, ok := v.resolveClass(t.Name, scope); ok {
			return actualType{class: cls, name: cls.QualName()}
		}
	}
	return actualType{unknown: true}
}

// resolveClass resolves an annotation name as written in scope.
func (v *Validator) resolveClass(name, scope string) (*model.Class, bool) {
	var sym symtab.Symbol
	var ok bool
	if scope != "" {
		if mod, err := v.table.Module(scope); err == nil {
			sym, ok = v.table.ResolveIn(mod, name)
		}
	}
	if !ok {
		sym, ok = v.table.Lookup(name)
	}
	if !ok || sym.Class == nil || sym.Class.External {
		return nil, false
	}
	return sym.Class, true
}

// checkValue compares one configured value with its parameter annotation.
func (v *Validator) checkValue(value any, p model.Param, path string) (Issue, bool) {
	actual := v.actualOf(value)
	if actual.unknown {
		v.logger.Debug("skipping type check", "parameter", path, "reason", "type of value cannot be determined")
		return Issue{}, false
	}

	expected := p.Type
	ok := false
	if expected.Form == model.FormUnion {
		for _, member := range expected.Args {
			if v.matches(value, actual, member, p.Scope) {
				ok = true
				break
			}
		}
	} else {
		ok = v.matches(value, actual, expected, p.Scope)
	}
	if ok {
		return Issue{}, false
	}
	return Issue{
		Kind:       TypeMismatch,
		Parameter:  path,
		Expected:   v.describe(expected, p.Scope),
		Actual:     renderValue(value),
		ActualType: actual.name,
	}, true
}

func (v *Validator) matches(value any, actual actualType, expected *model.TypeExpr, scope string) bool {
	switch expected.Form {
	case model.FormForward:
		return true
	case model.FormNone:
		return actual.builtin == "NoneType"
	case model.FormUnion:
		for _, member := range expected.Args {
			if v.matches(value, actual, member, scope) {
				return true
			}
		}
		return false
	case model.FormConst:
		return literalEqual(value, expected.Value)
	}

	if expected.IsLiteral() {
		for _, member := range expected.Args {
			if literalEqual(value, member.Value) {
				return true
			}
		}
		return false
	}
	if expected.IsClassOf() {
		return v.matchesClassOf(value, expected, scope)
	}
	if expected.Form == model.FormSubscript && expected.BaseName() == "Annotated" && len(expected.Args) > 0 {
		return v.matches(value, actual, expected.Args[0], scope)
	}
	// Containers are checked by their outer kind only.
	return v.matchesName(actual, expected.BaseName(), expected.Name, scope)
}

// matchesName checks an actual type against a plain type name.
func (v *Validator) matchesName(actual actualType, base, written, scope string) bool {
	if base == "Any" {
		return true
	}
	if kinds, ok := abstractKinds[base]; ok {
		for _, k := range kinds {
			if actual.builtin != "" && builtinSubtype(actual.builtin, k) {
				return true
			}
		}
		return actual.class != nil && v.derivesFromBuiltin(actual.class, kinds...)
	}
	if b := normalizeBuiltin(base); b != "" {
		if actual.builtin != "" {
			return builtinSubtype(actual.builtin, b)
		}
		return b == "object" || v.derivesFromBuiltin(actual.class, b)
	}

	cls, ok := v.resolveClass(written, scope)
	if !ok {
		v.logger.Debug("skipping type check", "type", written, "reason", "class not found in source roots")
		return true
	}
	if actual.class == nil {
		return false
	}
	return v.table.IsSubclass(actual.class, cls)
}

// derivesFromBuiltin reports whether a parsed class subclasses a builtin,
// seen as an external base in its MRO.
func (v *Validator) derivesFromBuiltin(cls *model.Class, names ...string) bool {
	if cls == nil {
		return false
	}
	mro, err := v.table.MRO(cls)
	if err != nil {
		return false
	}
	for _, c := range mro {
		if !c.External {
			continue
		}
		for _, n := range names {
			if normalizeBuiltin(c.Name) == n {
				return true
			}
		}
	}
	return false
}

// matchesClassOf checks Type[X]: the value must denote a class deriving from X.
func (v *Validator) matchesClassOf(value any, expected *model.TypeExpr, scope string) bool {
	ref, ok := value.(model.ClassRef)
	if !ok {
		return false
	}
	if len(expected.Args) == 0 {
		return true
	}
	want := expected.Args[0]
	if want.Form == model.FormForward {
		return true
	}
	wantBase := want.BaseName()
	if wantBase == "Any" {
		return true
	}

	if b := normalizeBuiltin(wantBase); b != "" {
		if got := normalizeBuiltin(strings.TrimPrefix(ref.Name, "builtins.")); got != "" && strings.HasPrefix(ref.Name, "builtins.") {
			return builtinSubtype(got, b)
		}
		sym, ok := v.table.Lookup(ref.Name)
		if !ok || sym.Class == nil {
			return true
		}
		return b == "object" || v.derivesFromBuiltin(sym.Class, b)
	}

	wantClass, ok := v.resolveClass(want.Name, scope)
	if !ok {
		return true
	}
	sym, ok := v.table.Lookup(ref.Name)
	if !ok || sym.Class == nil {
		v.logger.Debug("skipping type check", "class", ref.Name, "reason", "class not found in source roots")
		return true
	}
	return v.table.IsSubclass(sym.Class, wantClass)
}

// literalEqual compares a configured value with a Literal member the way
// Python's == does for the scalar types YAML produces.
func literalEqual(value, member any) bool {
	if vf, ok := number(value); ok {
		if mf, ok := number(member); ok {
			return vf == mf
		}
		return false
	}
	return value == member
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// describe renders an annotation for messages with class names qualified by
// their defining module.
func (v *Validator) describe(t *model.TypeExpr, scope string) string {
	switch t.Form {
	case model.FormName:
		base := t.BaseName()
		if base == "None" || normalizeBuiltin(base) != "" || base == "Any" {
			return base
		}
		if cls, ok := v.resolveClass(t.Name, scope); ok {
			return cls.QualName()
		}
		return base
	case model.FormSubscript:
		if t.IsLiteral() {
			return t.String()
		}
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = v.describe(a, scope)
		}
		return t.BaseName() + "[" + strings.Join(args, ", ") + "]"
	case model.FormUnion:
		parts := make([]string, len(t.Args))
		var inner *model.TypeExpr
		for i, a := range t.Args {
			parts[i] = v.describe(a, scope)
			if a.Form != model.FormNone {
				inner = a
			}
		}
		if t.Pipe {
			return strings.Join(parts, " | ")
		}
		if len(t.Args) == 2 && (t.Args[0].Form == model.FormNone || t.Args[1].Form == model.FormNone) {
			return "Optional[" + v.describe(inner, scope) + "]"
		}
		return "Union[" + strings.Join(parts, ", ") + "]"
	}
	return t.String()
}

// renderValue renders an actual value for messages. Object nodes are elided.
func renderValue(value any) string {
	if model.IsObject(value) {
		return "..."
	}
	return model.PyRepr(value)
}
