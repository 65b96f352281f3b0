package symtab

import (
	"strings"

	"github.com/phobologic/synconf/internal/model"
)

// MRO returns the C3 linearization of cls. Bases that cannot be resolved to a
// parsed class become external placeholders; every order ends at
// builtins.object.
func (t *Table) MRO(cls *model.Class) ([]*model.Class, error) {
	return t.mro(cls, make(map[string]struct{}))
}

func (t *Table) mro(cls *model.Class, visiting map[string]struct{}) ([]*model.Class, error) {
	key := cls.QualName()
	t.mroMu.Lock()
	cached, ok := t.mros[key]
	t.mroMu.Unlock()
	if ok {
		return cached, nil
	}
	object := t.Object()
	if cls == object {
		return []*model.Class{object}, nil
	}
	if _, ok := visiting[key]; ok {
		return nil, &InconsistentMROError{Class: key, Reason: "class inherits from itself"}
	}
	visiting[key] = struct{}{}
	defer delete(visiting, key)

	bases := t.bases(cls)
	seqs := make([][]*model.Class, 0, len(bases)+1)
	for _, b := range bases {
		bm, err := t.mro(b, visiting)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, append([]*model.Class(nil), bm...))
	}
	seqs = append(seqs, append([]*model.Class(nil), bases...))

	merged, ok := merge(seqs)
	if !ok {
		return nil, &InconsistentMROError{Class: key, Reason: "no consistent method resolution order"}
	}
	out := append([]*model.Class{cls}, merged...)
	t.mroMu.Lock()
	t.mros[key] = out
	t.mroMu.Unlock()
	return out, nil
}

// bases resolves the declared bases of cls. A class without bases derives
// from object.
func (t *Table) bases(cls *model.Class) []*model.Class {
	object := t.Object()
	if cls.External || len(cls.Bases) == 0 {
		return []*model.Class{object}
	}
	mod, _ := t.module(cls.Module)
	out := make([]*model.Class, 0, len(cls.Bases))
	for _, name := range cls.Bases {
		var sym Symbol
		var ok bool
		if mod != nil {
			sym, ok = t.ResolveIn(mod, name)
		} else {
			sym, ok = t.Lookup(name)
		}
		if ok && sym.Class != nil {
			out = append(out, sym.Class)
			continue
		}
		qualified := name
		if mod != nil {
			qualified = qualify(mod, name)
		}
		t.logger.Debug("external base class", "class", cls.QualName(), "base", qualified)
		out = append(out, externalClass(qualified))
	}
	return out
}

// externalClass is a placeholder for a base whose source is unavailable. Its
// constructor accepts anything and forwards nothing.
func externalClass(qualified string) *model.Class {
	module, name := model.SplitQualified(qualified)
	cls := &model.Class{Module: module, Name: name, External: true, Methods: map[string]*model.Function{}}
	cls.Methods["__init__"] = &model.Function{
		Module: module,
		Class:  name,
		Name:   "__init__",
		Kind:   model.InstanceMethod,
		Params: []model.Param{
			{Name: "self", Kind: model.Ordinary, Scope: module},
			{Name: "args", Kind: model.PositionalCollector, Scope: module},
			{Name: "kwargs", Kind: model.OpenKeyword, Scope: module},
		},
	}
	return cls
}

// qualify expands the head of a dotted name through the module's imports.
func qualify(mod *model.Module, name string) string {
	head, rest, _ := strings.Cut(name, ".")
	target, ok := mod.Imports[head]
	if !ok {
		return name
	}
	if rest == "" {
		return target
	}
	return target + "." + rest
}

// merge is the C3 merge step.
func merge(seqs [][]*model.Class) ([]*model.Class, bool) {
	var out []*model.Class
	for {
		nonEmpty := seqs[:0]
		for _, s := range seqs {
			if len(s) > 0 {
				nonEmpty = append(nonEmpty, s)
			}
		}
		seqs = nonEmpty
		if len(seqs) == 0 {
			return out, true
		}

		var head *model.Class
		for _, s := range seqs {
			candidate := s[0]
			if !inTail(candidate, seqs) {
				head = candidate
				break
			}
		}
		if head == nil {
			return nil, false
		}
		out = append(out, head)
		for i, s := range seqs {
			if s[0].QualName() == head.QualName() {
				seqs[i] = s[1:]
			}
		}
	}
}

func inTail(c *model.Class, seqs [][]*model.Class) bool {
	for _, s := range seqs {
		for _, other := range s[1:] {
			if other.QualName() == c.QualName() {
				return true
			}
		}
	}
	return false
}

// FindMethod returns the first definition of name along the MRO of cls and
// the class that defines it.
func (t *Table) FindMethod(cls *model.Class, name string) (*model.Function, *model.Class, bool) {
	mro, err := t.MRO(cls)
	if err != nil {
		t.logger.Debug("method lookup without MRO", "class", cls.QualName(), "error", err)
		mro = []*model.Class{cls}
	}
	return FindIn(mro, name)
}

// FindIn returns the first definition of name in an explicit class sequence.
func FindIn(classes []*model.Class, name string) (*model.Function, *model.Class, bool) {
	for _, c := range classes {
		if fn, ok := c.Methods[name]; ok {
			return fn, c, true
		}
	}
	return nil, nil, false
}

// IsSubclass reports whether sub has base in its MRO.
func (t *Table) IsSubclass(sub, base *model.Class) bool {
	if sub.QualName() == base.QualName() {
		return true
	}
	mro, err := t.MRO(sub)
	if err != nil {
		return false
	}
	for _, c := range mro {
		if c.QualName() == base.QualName() {
			return true
		}
	}
	return false
}
