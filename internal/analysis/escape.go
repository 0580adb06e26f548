// Package analysis implements the recursion/escape and shape-soundness
// checks that run after name resolution: Tarjan SCC over the def-reference
// graph, escape verification for every non-trivial component, and the
// alternation/field shape diagnostics.
package analysis

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/resolve"
)

// graph builds the def-reference adjacency list: D -> every def directly
// referenced anywhere in D's body (regardless of quantifier/branch
// conditionality — Tarjan just needs the raw edges to find cycles).
func graph(t *resolve.Table) [][]int {
	adj := make([][]int, len(t.Defs))
	for i, d := range t.Defs {
		var refs []int
		d.Node().Walk(func(n *cst.Node) {
			if n.Kind == cst.KRef && n.ResolvedDef != cst.NoDef {
				refs = append(refs, n.ResolvedDef)
			}
		})
		adj[i] = refs
	}
	return adj
}

// tarjan computes strongly connected components in Tarjan's standard
// index/lowlink/stack formulation, returning components in the order they
// are closed (reverse topological order of the condensation).
func tarjan(adj [][]int) [][]int {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	visited := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var comps [][]int
	counter := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		visited[v] = true
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if !visited[w] {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			comps = append(comps, comp)
		}
	}

	for v := 0; v < n; v++ {
		if !visited[v] {
			strongconnect(v)
		}
	}
	return comps
}

// CheckRecursion runs Tarjan SCC over t's def-reference graph and adds an
// Escape-stage "unconditional recursion" diagnostic to bag for every def of
// a non-trivial component (a cycle, or a self-loop) that has no def with an
// acyclic escape path.
func CheckRecursion(t *resolve.Table, bag *diag.Bag) {
	adj := graph(t)
	comps := tarjan(adj)

	for _, comp := range comps {
		cyclic := len(comp) > 1
		if !cyclic && len(comp) == 1 {
			v := comp[0]
			for _, w := range adj[v] {
				if w == v {
					cyclic = true
				}
			}
		}
		if !cyclic {
			continue
		}

		set := make(map[int]bool, len(comp))
		for _, v := range comp {
			set[v] = true
		}

		escapesAny := false
		for _, v := range comp {
			if escapes(t.Defs[v].Body(), set) {
				escapesAny = true
				break
			}
		}
		if !escapesAny {
			for _, v := range comp {
				d := t.Defs[v]
				name := d.Name()
				if name == "" {
					name = "<entry>"
				}
				bag.Addf(diag.StageEscape, diag.SeverityError, d.Span(),
					"unconditional recursion: %q has no acyclic path out of its recursive cycle", name)
			}
		}
	}
}

// escapes reports whether expr has at least one path that matches without
// necessarily recursing back into set — the "base case" test for a cycle
// being legal recursion rather than unconditional infinite regress.
func escapes(e ast.Expr, set map[int]bool) bool {
	switch v := e.(type) {
	case ast.Ref:
		return !set[v.Node().ResolvedDef]
	case ast.Quantifier:
		switch v.Op() {
		case '?', '*':
			return true // can always be skipped entirely
		default: // '+'
			return escapes(v.Inner(), set)
		}
	case ast.Alt:
		for _, b := range v.Branches() {
			if !containsRef(b.Expr(), set) || escapes(b.Expr(), set) {
				return true
			}
		}
		return false
	case ast.Seq:
		for _, c := range v.Children() {
			if containsRef(c, set) && !escapes(c, set) {
				return false
			}
		}
		return true
	case ast.Tree:
		for _, c := range v.Children() {
			if containsRef(c, set) && !escapes(c, set) {
				return false
			}
		}
		return true
	case ast.Capture:
		if v.Suppressed() {
			return true
		}
		return escapes(v.Inner(), set)
	case ast.Anchor:
		return escapes(v.Inner(), set)
	case ast.Field:
		return escapes(v.Value(), set)
	default: // Wildcard, Lit, NegatedField, Supertype
		return true
	}
}

// containsRef reports whether e reaches any def in set, anywhere in its
// subtree, regardless of conditionality.
func containsRef(e ast.Expr, set map[int]bool) bool {
	found := false
	e.Node().Walk(func(n *cst.Node) {
		if n.Kind == cst.KRef && set[n.ResolvedDef] {
			found = true
		}
	})
	return found
}
