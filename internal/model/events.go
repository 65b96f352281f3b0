package model

// CallShape is the syntactic shape of a call expression. The set is closed;
// anything the resolver does not recognize is ShapeOther.
type CallShape string

const (
	// ShapeName is a call to a bare name: func(**kw).
	ShapeName CallShape = "name"
	// ShapeAttr is a call on a bare receiver name: self.m(**kw), b.m(**kw), AClass.create(**kw).
	ShapeAttr CallShape = "attr"
	// ShapeDotted is a call through a longer attribute chain: pkg.mod.func(**kw).
	ShapeDotted CallShape = "dotted"
	// ShapeSuper is super().m(**kw) or super(Cls, self).m(**kw).
	ShapeSuper CallShape = "super"
	// ShapeOther is any other callee expression.
	ShapeOther CallShape = "other"
)

// CallSite is a call that splats at least one bare name with **.
type CallSite struct {
	Shape CallShape
	// Path holds the callee name parts: [name] for ShapeName,
	// [receiver, method] for ShapeAttr, every segment for ShapeDotted and
	// [method] for ShapeSuper.
	Path []string
	// SuperClass is the explicit class of super(Cls, self); "" for super().
	SuperClass string
	// SuperArgs is the number of arguments passed to super(...).
	SuperArgs int
	// Splats lists the variable names passed as **name.
	Splats []string
	// Hardcoded lists the keyword argument names passed alongside the splat.
	Hardcoded []string
	Text      string
	Line      int
}

// Assign records "name = Callee(...)" in a function body.
type Assign struct {
	Var    string
	Callee string
	Line   int
}

// Event is one entry of a function body in source order. Exactly one field is set.
type Event struct {
	Assign *Assign
	Call   *CallSite
}

// Forwards reports whether the call splats the named variable.
func (c *CallSite) Forwards(name string) bool {
	for _, s := range c.Splats {
		if s == name {
			return true
		}
	}
	return false
}
