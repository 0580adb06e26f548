package grammar

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/resolve"
)

// Links records every Tree/Supertype/Field/NegatedField node's resolved
// grammar ids, keyed by the underlying CST node pointer rather than baked
// into cst.Node itself — linking is optional and per-target-grammar, so
// the CST stays grammar-agnostic.
type Links struct {
	Kinds  map[*cst.Node][]KindID
	Fields map[*cst.Node]FieldID
}

// KindsOf returns the resolved kind ids for a Tree or Supertype node.
func (l *Links) KindsOf(n *cst.Node) []KindID { return l.Kinds[n] }

// FieldOf returns the resolved field id for a Field or NegatedField node.
func (l *Links) FieldOf(n *cst.Node) (FieldID, bool) {
	id, ok := l.Fields[n]
	return id, ok
}

// Link resolves every Tree/Supertype kind reference and every Field/
// NegatedField field reference in rt's definitions against g. Unknown
// kinds or fields are reported as Link-stage diagnostics but never stop
// the walk — later defs, and type inference over this same table, still
// run on a best-effort basis.
func Link(rt *resolve.Table, g *Table, bag *diag.Bag) *Links {
	l := &Links{Kinds: map[*cst.Node][]KindID{}, Fields: map[*cst.Node]FieldID{}}
	for _, d := range rt.Defs {
		linkExpr(d.Body(), g, l, bag)
	}
	return l
}

func linkExpr(e ast.Expr, g *Table, l *Links, bag *diag.Bag) {
	switch v := e.(type) {
	case ast.Tree:
		if id, ok := g.KindByName(v.Kind()); ok {
			l.Kinds[v.Node()] = []KindID{id}
		} else {
			bag.Addf(diag.StageLink, diag.SeverityError, v.Span(), "unknown grammar kind %q", v.Kind())
		}
		for _, c := range v.Children() {
			linkExpr(c, g, l, bag)
		}
	case ast.Supertype:
		var ids []KindID
		for _, name := range v.Kinds() {
			if id, ok := g.KindByName(name); ok {
				ids = append(ids, id)
			} else {
				bag.Addf(diag.StageLink, diag.SeverityError, v.Span(), "unknown grammar kind %q", name)
			}
		}
		l.Kinds[v.Node()] = ids
	case ast.Alt:
		for _, b := range v.Branches() {
			linkExpr(b.Expr(), g, l, bag)
		}
	case ast.Seq:
		for _, c := range v.Children() {
			linkExpr(c, g, l, bag)
		}
	case ast.Quantifier:
		linkExpr(v.Inner(), g, l, bag)
	case ast.Capture:
		linkExpr(v.Inner(), g, l, bag)
	case ast.Anchor:
		linkExpr(v.Inner(), g, l, bag)
	case ast.Field:
		if id, ok := g.FieldByName(v.Name()); ok {
			l.Fields[v.Node()] = id
		} else {
			bag.Addf(diag.StageLink, diag.SeverityError, v.Span(), "unknown grammar field %q", v.Name())
		}
		linkExpr(v.Value(), g, l, bag)
	case ast.NegatedField:
		if id, ok := g.FieldByName(v.Name()); ok {
			l.Fields[v.Node()] = id
		} else {
			bag.Addf(diag.StageLink, diag.SeverityError, v.Span(), "unknown grammar field %q", v.Name())
		}
	default:
		// Wildcard, Ref, Lit carry no kind/field reference of their own.
	}
}
