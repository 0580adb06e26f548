package cst

import "github.com/termfx/plotnik/internal/diag"

// Node is one syntax node in the concrete tree. Leaves carry their text
// directly (names, literal bodies, field names); interior nodes carry
// Children in source order. Error is a first-class Kind: its Span still
// covers the offending input and DiagKind names the recovery reason, so the
// tree stays fully navigable even where parsing failed locally.
type Node struct {
	Kind     Kind
	Span     diag.Span
	Children []*Node

	// Text holds the node's name/payload where applicable:
	//   KDef, KRef          -> definition/reference name
	//   KCapture            -> capture name ("" for anonymous @_ form)
	//   KField, KNegatedField -> field name
	//   KLit                -> literal body with quotes stripped
	//   KType               -> annotated type name
	Text string

	// KindNames holds one or more grammar node-kind names for a KTree node.
	// Length 1 is a plain Tree match; length > 1 is a supertype form (a/b).
	KindNames []string

	// QuantOp is '?', '*', or '+' for a KQuantifier node.
	QuantOp byte

	// Tagged marks a KAlt node whose branches are all "Tag: expr" form.
	Tagged bool

	// Suppressed marks a KCapture produced by the @_ / @_name token.
	Suppressed bool

	// DiagKind names the recovery reason for a KError node (e.g.
	// "UnexpectedToken", "UnterminatedLiteral", "UnknownSigil").
	DiagKind string

	// ResolvedDef is set by internal/resolve on a KRef node once its target
	// definition is found; -1 means unresolved (reported as a diagnostic,
	// not a hard failure — later stages still run on a best-effort basis).
	ResolvedDef int
}

// NoDef is the KRef.ResolvedDef value of an unresolved reference; the
// parser sets it explicitly on every KRef it builds.
const NoDef = -1

// IsError reports whether the tree rooted at n contains any Error node.
// Query::is_valid() in the original spec is exactly !IsError(root).
func (n *Node) IsError() bool {
	if n == nil {
		return false
	}
	if n.Kind == KError {
		return true
	}
	for _, c := range n.Children {
		if c.IsError() {
			return true
		}
	}
	return false
}

// Walk visits n and every descendant in preorder.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}
