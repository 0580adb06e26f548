// Package resolve builds a two-pass symbol table: collect every
// declaration first, then resolve references, so forward
// references and recursion are permitted. Unresolved references become
// diagnostics; they never stop later stages from running.
package resolve

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
)

// DefID identifies a Def by position in the symbol table's Defs slice.
type DefID int

// Table is the resolved symbol table for one query.
type Table struct {
	Defs    []ast.Def
	byName  map[string]DefID
	EntryID DefID
}

// Lookup returns the DefID for a definition name, if declared.
func (t *Table) Lookup(name string) (DefID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Name returns the declared name of id ("" for the unnamed entry point).
func (t *Table) Name(id DefID) string { return t.Defs[int(id)].Name() }

// Resolve builds the symbol table over q and annotates every ast.Ref node's
// underlying cst.Node.ResolvedDef in place.
func Resolve(q ast.Query, bag *diag.Bag) *Table {
	t := &Table{Defs: q.Defs, byName: map[string]DefID{}}

	// Pass 1: collect declarations.
	for i, d := range q.Defs {
		name := d.Name()
		if name == "" {
			continue // the unnamed entry point is not referenceable
		}
		if _, dup := t.byName[name]; dup {
			bag.Addf(diag.StageResolve, diag.SeverityError, d.Span(), "duplicate definition %q", name)
			continue
		}
		t.byName[name] = DefID(i)
	}

	if len(q.Defs) == 0 {
		bag.Addf(diag.StageResolve, diag.SeverityError, diag.Span{}, "missing entry point")
		return t
	}
	t.EntryID = DefID(len(q.Defs) - 1)

	// Pass 2: resolve references, permitting forward references and
	// recursion since the full def map is already built.
	for _, d := range q.Defs {
		resolveExpr(d.Body(), t, bag)
	}
	return t
}

func resolveExpr(e ast.Expr, t *Table, bag *diag.Bag) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case ast.Ref:
		n := v.Node()
		if id, ok := t.Lookup(v.Name()); ok {
			n.ResolvedDef = int(id)
		} else {
			n.ResolvedDef = cst.NoDef
			bag.Addf(diag.StageResolve, diag.SeverityError, v.Span(), "unresolved reference %q", v.Name())
		}
	case ast.Tree:
		for _, c := range v.Children() {
			resolveExpr(c, t, bag)
		}
	case ast.Alt:
		for _, b := range v.Branches() {
			resolveExpr(b.Expr(), t, bag)
		}
	case ast.Seq:
		for _, c := range v.Children() {
			resolveExpr(c, t, bag)
		}
	case ast.Quantifier:
		resolveExpr(v.Inner(), t, bag)
	case ast.Capture:
		resolveExpr(v.Inner(), t, bag)
	case ast.Anchor:
		resolveExpr(v.Inner(), t, bag)
	case ast.Field:
		resolveExpr(v.Value(), t, bag)
	default:
		// Wildcard, Lit, NegatedField, Supertype carry no sub-expressions.
	}
}
