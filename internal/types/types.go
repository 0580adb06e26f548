// Package types implements nominal types for named definitions, structural
// types for inline captures, and the inference pass that derives them from
// query shape.
package types

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/resolve"
)

// Kind discriminates the four forms a Type can take.
type Kind int

const (
	KindPrimitive Kind = iota
	KindStruct
	KindUnion
	KindNominal
)

// Primitive names, the only two built in: string (node text) and Node (an
// opaque handle). A pinned annotation (@x :: T) that names anything else is
// still tracked as a primitive-shaped leaf so that unification can compare
// it by name.
const (
	PrimString = "string"
	PrimNode   = "Node"
)

// TypeID indexes into a Table once inference is complete.
type TypeID int

// Type is one node in the type graph: primitive, struct, union, or a
// nominal reference to a named definition's own (possibly still-being-
// computed) type.
type Type struct {
	Kind Kind

	Primitive string // valid when Kind == KindPrimitive

	Members []Member // valid when Kind == KindStruct, in declaration order

	Variants []Variant // valid when Kind == KindUnion, in declaration order

	NominalName string // valid when Kind == KindNominal
	NominalID   resolve.DefID
}

// Member is one field of a Struct type.
type Member struct {
	Name  string
	Shape Shape
	Type  *Type
}

// Variant is one arm of a Union (tagged alternation) type.
type Variant struct {
	Name    string
	Payload *Type // always a Struct
}

func newStruct() *Type  { return &Type{Kind: KindStruct} }
func newUnion() *Type   { return &Type{Kind: KindUnion} }
func node() *Type       { return &Type{Kind: KindPrimitive, Primitive: PrimNode} }
func primitive(n string) *Type { return &Type{Kind: KindPrimitive, Primitive: n} }

// Table maps every definition to its inferred TypeID-addressable Type.
type Table struct {
	ByDef  []*Type // index = resolve.DefID
	Resolve *resolve.Table
}

// TypeOf returns the inferred type of definition id.
func (t *Table) TypeOf(id resolve.DefID) *Type { return t.ByDef[int(id)] }

// EntryType returns the module's result type: the entry point's type.
func (t *Table) EntryType() *Type { return t.ByDef[int(t.Resolve.EntryID)] }

// Infer runs type inference over every definition in rt, in declaration
// order. A reference to another def becomes a KindNominal type naming it
// and does not infer the target on the spot, so forward and recursive
// references need no particular visiting order. Each def's Type is a
// placeholder allocated when inference begins on it and patched in place.
func Infer(rt *resolve.Table, bag *diag.Bag) *Table {
	t := &Table{ByDef: make([]*Type, len(rt.Defs)), Resolve: rt}
	state := make([]int, len(rt.Defs)) // 0=unvisited 1=in-progress 2=done
	inf := &inferer{rt: rt, t: t, state: state, bag: bag}
	for i := range rt.Defs {
		inf.defType(resolve.DefID(i))
	}
	return t
}

type inferer struct {
	rt    *resolve.Table
	t     *Table
	state []int
	bag   *diag.Bag
}

func (inf *inferer) defType(id resolve.DefID) *Type {
	if inf.state[id] == 2 {
		return inf.t.ByDef[id]
	}
	if inf.state[id] == 1 {
		// Already in progress: return the shared placeholder pointer so the
		// caller's recursive reference observes the patched-in-place result.
		return inf.t.ByDef[id]
	}
	placeholder := &Type{}
	inf.t.ByDef[id] = placeholder
	inf.state[id] = 1

	body := inf.rt.Defs[id].Body()
	computed := inf.value(body)
	*placeholder = *computed
	inf.state[id] = 2
	return placeholder
}

// value computes the structural type an expr contributes when it is itself
// the captured/top-level value (as opposed to populate, which flattens an
// expr's own captures into an ambient enclosing scope).
func (inf *inferer) value(e ast.Expr) *Type {
	switch v := e.(type) {
	case ast.Ref:
		if v.Node().ResolvedDef == cst.NoDef {
			return node()
		}
		target := resolve.DefID(v.Node().ResolvedDef)
		return &Type{Kind: KindNominal, NominalName: inf.rt.Name(target), NominalID: target}
	case ast.Tree:
		s := newStruct()
		for _, c := range v.Children() {
			inf.populate(c, s)
		}
		return finalizeStruct(s)
	case ast.Supertype:
		return node()
	case ast.Seq:
		s := newStruct()
		for _, c := range v.Children() {
			inf.populate(c, s)
		}
		return finalizeStruct(s)
	case ast.Alt:
		if v.Tagged() {
			u := newUnion()
			for _, b := range v.Branches() {
				p := newStruct()
				inf.populate(b.Expr(), p)
				u.Variants = append(u.Variants, Variant{Name: b.Tag(), Payload: finalizeStruct(p)})
			}
			return u
		}
		s := newStruct()
		for _, b := range v.Branches() {
			inf.populate(b.Expr(), s)
		}
		return finalizeStruct(s)
	case ast.Quantifier:
		return inf.value(v.Inner())
	case ast.Capture:
		// A capture in value position (e.g. a def's whole body) contributes
		// its member to a scope of its own, like any other capture.
		s := newStruct()
		inf.populate(v, s)
		return finalizeStruct(s)
	case ast.Anchor:
		return inf.value(v.Inner())
	case ast.Field:
		return inf.value(v.Value())
	default: // Wildcard, Lit, NegatedField
		return node()
	}
}

// finalizeStruct collapses a struct with no members down to a bare Node
// handle: a compound form with nothing named inside it still matched a
// node, it just didn't capture any structure from it.
func finalizeStruct(s *Type) *Type {
	if len(s.Members) == 0 {
		return node()
	}
	return s
}

// populate walks expr, adding a Member to scope for every real (non-
// suppressed) capture reachable without crossing into a nested scope, and
// unifying members that share a name across sibling alternation branches.
func (inf *inferer) populate(e ast.Expr, scope *Type) {
	switch v := e.(type) {
	case ast.Capture:
		if v.Suppressed() {
			return // no type contribution at all
		}
		shape := ShapeOf(v.Inner())
		core := Unwrap(v.Inner())

		var payload *Type
		if typeName, ok := v.TypeAnnotation(); ok {
			payload = pinnedType(typeName)
		} else {
			payload = inf.value(core)
		}
		inf.addMember(scope, Member{Name: v.Name(), Shape: shape, Type: payload})

	case ast.Tree:
		for _, c := range v.Children() {
			inf.populate(c, scope)
		}
	case ast.Seq:
		for _, c := range v.Children() {
			inf.populate(c, scope)
		}
	case ast.Alt:
		if v.Tagged() {
			// A tagged alt always forms its own nested union value; if it
			// isn't itself wrapped in a capture here, it contributes
			// nothing nameable to the ambient scope.
			return
		}
		for _, b := range v.Branches() {
			inf.populate(b.Expr(), scope)
		}
	case ast.Quantifier:
		inf.populate(v.Inner(), scope)
	case ast.Anchor:
		inf.populate(v.Inner(), scope)
	case ast.Field:
		inf.populate(v.Value(), scope)
	default: // Wildcard, Lit, NegatedField, Ref, Supertype
	}
}

func pinnedType(name string) *Type {
	if name == PrimString || name == PrimNode {
		return primitive(name)
	}
	return primitive(name)
}

func (inf *inferer) addMember(scope *Type, m Member) {
	for i, existing := range scope.Members {
		if existing.Name == m.Name {
			scope.Members[i].Shape = Join(existing.Shape, m.Shape)
			if !sameType(existing.Type, m.Type) {
				inf.bag.Addf(diag.StageType, diag.SeverityError, diag.Span{},
					"capture %q unifies to conflicting types across alternation branches", m.Name)
			}
			return
		}
	}
	scope.Members = append(scope.Members, m)
}

func sameType(a, b *Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindPrimitive:
		return a.Primitive == b.Primitive
	case KindNominal:
		return a.NominalID == b.NominalID
	default:
		// Struct/Union structural equality is intentionally coarse here:
		// exact member-by-member comparison is left to a future consumer
		// that needs it; for unification diagnostics kind+shape agreement
		// is the signal that matters.
		return true
	}
}
