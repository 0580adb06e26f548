package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/analysis"
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/parse"
	"github.com/termfx/plotnik/internal/resolve"
)

func compile(t *testing.T, src string) (*resolve.Table, *diag.Bag) {
	t.Helper()
	r := parse.Parse([]byte(src))
	require.True(t, r.IsValid(), "parse diags: %+v", r.Diags.All())
	q := ast.New(r.Root)
	bag := &diag.Bag{}
	rt := resolve.Resolve(q, bag)
	return rt, bag
}

func TestUnconditionalRecursionRejected(t *testing.T) {
	// S4 — "A = (x (A) @a)" has no base case.
	rt, bag := compile(t, `A = (x (A) @a)`)
	analysis.CheckRecursion(rt, bag)
	require.True(t, bag.HasErrors())
	var found bool
	for _, d := range bag.InStage(diag.StageEscape) {
		found = true
		require.Contains(t, d.Message, "unconditional recursion")
	}
	require.True(t, found)
}

func TestConditionalRecursionAccepted(t *testing.T) {
	rt, bag := compile(t, `A = [Base: (x) @b Rec: (y (A) @a)]`)
	analysis.CheckRecursion(rt, bag)
	require.Empty(t, bag.InStage(diag.StageEscape))
}

func TestQuantifierEscapesRecursion(t *testing.T) {
	rt, bag := compile(t, `A = (x (A)? @a)`)
	analysis.CheckRecursion(rt, bag)
	require.Empty(t, bag.InStage(diag.StageEscape))
}

func TestMixedAlternationRejected(t *testing.T) {
	rt, bag := compile(t, `[A: (x) @v (y)]`)
	analysis.CheckShapes(rt, bag)
	require.True(t, bag.HasErrors())
}

func TestFieldSequenceRejected(t *testing.T) {
	rt, bag := compile(t, `(kind f: { (a) (b) })`)
	analysis.CheckShapes(rt, bag)
	require.True(t, bag.HasErrors())
}
