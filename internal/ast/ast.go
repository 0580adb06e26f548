// Package ast is a typed projection over the CST: every view wraps a
// *cst.Node pointer directly (no copying, no owned text) and exposes the
// expression form's fields through a narrow, form-specific accessor.
package ast

import (
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
)

// Query is the typed view of a parsed source: an ordered list of Defs, the
// last of which is the entry point.
type Query struct {
	Defs []Def
}

// Def is a named (or, for the final entry point, possibly unnamed) query
// definition.
type Def struct {
	node *cst.Node
}

func (d Def) Name() string    { return d.node.Text }
func (d Def) Span() diag.Span { return d.node.Span }
func (d Def) Body() Expr      { return wrap(d.node.Children[0]) }
func (d Def) Node() *cst.Node { return d.node }

// New builds a Query view over a parsed cst.Node root.
func New(root *cst.Node) Query {
	q := Query{}
	for _, c := range root.Children {
		if c.Kind == cst.KDef {
			q.Defs = append(q.Defs, Def{node: c})
		}
	}
	return q
}

// Entry returns the entry-point definition: the last Def in source order.
func (q Query) Entry() (Def, bool) {
	if len(q.Defs) == 0 {
		return Def{}, false
	}
	return q.Defs[len(q.Defs)-1], true
}

// Expr is any expression-position form in the AST. Concrete forms below
// implement it as a marker; callers type-switch on the concrete type.
type Expr interface {
	Node() *cst.Node
	Span() diag.Span
}

type base struct{ n *cst.Node }

func (b base) Node() *cst.Node { return b.n }
func (b base) Span() diag.Span { return b.n.Span }

// Tree is "(kind child…)" — match a node of the given kind.
type Tree struct {
	base
}

func (t Tree) Kind() string     { return t.n.KindNames[0] }
func (t Tree) Children() []Expr { return wrapAll(t.n.Children) }

// Supertype is "(a/b)" — match any of the listed grammar kinds, no children.
type Supertype struct {
	base
}

func (s Supertype) Kinds() []string { return s.n.KindNames }

// Alt is "[a b c]" (untagged) or "[Tag: a …]" (tagged discriminated union).
type Alt struct {
	base
}

func (a Alt) Tagged() bool     { return a.n.Tagged }
func (a Alt) Branches() []Branch {
	out := make([]Branch, len(a.n.Children))
	for i, c := range a.n.Children {
		out[i] = Branch{base{c}}
	}
	return out
}

// Branch is one arm of an Alt; Tag() is "" for untagged branches.
type Branch struct{ base }

func (b Branch) Tag() string { return b.n.Text }
func (b Branch) Expr() Expr  { return wrap(b.n.Children[0]) }

// Seq is "{a b c}" — an ordered group forming a scope.
type Seq struct{ base }

func (s Seq) Children() []Expr { return wrapAll(s.n.Children) }

// Quantifier is "e?", "e*", or "e+".
type Quantifier struct{ base }

func (q Quantifier) Op() byte   { return q.n.QuantOp }
func (q Quantifier) Inner() Expr { return wrap(q.n.Children[0]) }

// Capture is "@name", "@name :: Type", "@_", or "@_name".
type Capture struct{ base }

func (c Capture) Name() string       { return c.n.Text }
func (c Capture) Suppressed() bool   { return c.n.Suppressed }
func (c Capture) Inner() Expr        { return wrap(c.n.Children[0]) }
func (c Capture) TypeAnnotation() (string, bool) {
	if len(c.n.Children) > 1 {
		return c.n.Children[1].Text, true
	}
	return "", false
}

// Wildcard is "_" — any node.
type Wildcard struct{ base }

// Anchor is "." — strict positional adjacency for the wrapped expr.
type Anchor struct{ base }

func (a Anchor) Inner() Expr { return wrap(a.n.Children[0]) }

// Field is "f: expr" — child must occupy field f.
type Field struct{ base }

func (f Field) Name() string { return f.n.Text }
func (f Field) Value() Expr  { return wrap(f.n.Children[0]) }

// NegatedField is "!f" — parent must not have a child in field f.
type NegatedField struct{ base }

func (n NegatedField) Name() string { return n.n.Text }

// Ref is a reference to a Def by name, in expression position.
type Ref struct{ base }

func (r Ref) Name() string { return r.n.Text }

// Lit is an anonymous token match, "tok" or 'tok'.
type Lit struct{ base }

func (l Lit) Text() string { return l.n.Text }

// wrap builds the concrete Expr view for one cst.Node, zero-copy.
func wrap(n *cst.Node) Expr {
	switch n.Kind {
	case cst.KTree:
		if len(n.KindNames) > 1 {
			return Supertype{base{n}}
		}
		return Tree{base{n}}
	case cst.KAlt:
		return Alt{base{n}}
	case cst.KSeq:
		return Seq{base{n}}
	case cst.KQuantifier:
		return Quantifier{base{n}}
	case cst.KCapture:
		return Capture{base{n}}
	case cst.KWildcard:
		return Wildcard{base{n}}
	case cst.KAnchor:
		return Anchor{base{n}}
	case cst.KField:
		return Field{base{n}}
	case cst.KNegatedField:
		return NegatedField{base{n}}
	case cst.KRef:
		return Ref{base{n}}
	case cst.KLit:
		return Lit{base{n}}
	default:
		return base{n}
	}
}

func wrapAll(nodes []*cst.Node) []Expr {
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		out[i] = wrap(n)
	}
	return out
}
