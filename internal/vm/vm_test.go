package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/vm"
)

// fakeNode is a hand-built tree node for driving the VM without linking
// tree-sitter — the same role _examples/termfx-morfx gives small in-memory
// fixtures in its matcher tests.
type fakeNode struct {
	kind     int
	field    int // 0 = no field
	start    int
	end      int
	children []*fakeNode
	parent   *fakeNode
}

// fakeCursor implements sourcetext.Cursor over a fakeNode tree.
type fakeCursor struct {
	root *fakeNode
	node *fakeNode
}

func newFakeCursor(root *fakeNode) *fakeCursor { return &fakeCursor{root: root, node: root} }

func (c *fakeCursor) GotoFirstChild() bool {
	if len(c.node.children) == 0 {
		return false
	}
	c.node = c.node.children[0]
	return true
}

func (c *fakeCursor) GotoNextSibling() bool {
	p := c.node.parent
	if p == nil {
		return false
	}
	for i, ch := range p.children {
		if ch == c.node {
			if i+1 < len(p.children) {
				c.node = p.children[i+1]
				return true
			}
			return false
		}
	}
	return false
}

func (c *fakeCursor) GotoParent() bool {
	if c.node.parent == nil {
		return false
	}
	c.node = c.node.parent
	return true
}

func (c *fakeCursor) preorder() []*fakeNode {
	var out []*fakeNode
	var walk func(n *fakeNode)
	walk = func(n *fakeNode) {
		out = append(out, n)
		for _, ch := range n.children {
			walk(ch)
		}
	}
	walk(c.root)
	return out
}

func (c *fakeCursor) DescendantIndex() int {
	for i, n := range c.preorder() {
		if n == c.node {
			return i
		}
	}
	return -1
}

func (c *fakeCursor) GotoDescendant(idx int) {
	nodes := c.preorder()
	if idx >= 0 && idx < len(nodes) {
		c.node = nodes[idx]
	}
}

func (c *fakeCursor) CurrentKindID() int  { return c.node.kind }
func (c *fakeCursor) CurrentFieldID() int { return c.node.field }
func (c *fakeCursor) StartByte() int      { return c.node.start }
func (c *fakeCursor) EndByte() int        { return c.node.end }

func link(parent *fakeNode, children ...*fakeNode) *fakeNode {
	parent.children = children
	for _, c := range children {
		c.parent = parent
	}
	return parent
}

const (
	kindRoot = 1
	kindA    = 2
	kindB    = 3
	kindC    = 4
	kindTriv = 5
)

func testGrammar() *grammar.Table {
	g := grammar.New()
	g.AddKind("root", true)
	g.AddKind("a", true)
	g.AddKind("b", true)
	g.AddKind("c", true)
	g.AddKind("trivia", false)
	g.MarkTrivia(5)
	return g
}

func linkedModule(steps []bytecode.Step, entryStep int) *bytecode.Module {
	return &bytecode.Module{
		Version: 1,
		Linked:  true,
		Strings: []string{""},
		Types:   []bytecode.TypeEntry{{Kind: bytecode.TypePrimitive, Primitive: "node"}},
		Steps:   steps,
		Entrypoints: []bytecode.Entrypoint{
			{Name: "Q", Step: entryStep, Type: 0},
		},
		KindSymbols:  []int{0, 0, 0, 0, 0, 0},
		FieldSymbols: []int{0},
	}
}

func TestRunMatchesFirstMatchingChild(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	a := &fakeNode{kind: kindA, start: 0, end: 1}
	b := &fakeNode{kind: kindB, start: 1, end: 2}
	link(root, a, b)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindB,
			Post: []bytecode.Effect{{Op: bytecode.EffNode}}, Successors: []int{1}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	log, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, kindB, log[0].Kind)
	require.Equal(t, 1, log[0].Start)
}

func TestRunSkipNavStopsAtNonTrivia(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	wrong := &fakeNode{kind: kindA} // not trivia, not the wanted kind
	want := &fakeNode{kind: kindC}
	link(root, wrong, want)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDownSkip, Kind: kindC, Successors: []int{1}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.ErrorIs(t, err, diag.ErrNoMatch)
}

func TestRunSkipNavSkipsTrivia(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	triv := &fakeNode{kind: kindTriv}
	want := &fakeNode{kind: kindC}
	link(root, triv, want)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDownSkip, Kind: kindC, Successors: []int{1}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.NoError(t, err)
}

func TestRunNegatedFieldRejectsMatch(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	inner := &fakeNode{kind: kindB, field: 7}
	block := &fakeNode{kind: kindA}
	link(block, inner)
	link(root, block)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindA, NegatedFields: []int{7}, Successors: []int{1}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.ErrorIs(t, err, diag.ErrNoMatch)
}

// TestRunBacktracksNavSearchLoop builds two same-kind siblings where only
// the second has the field a later step requires. The first step's
// continuation checkpoint must let the second step's failure resume the
// search at the second sibling instead of giving up.
func TestRunBacktracksNavSearchLoop(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	first := &fakeNode{kind: kindB, start: 0, end: 1}
	second := &fakeNode{kind: kindB, field: 9, start: 1, end: 2}
	link(root, first, second)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindB,
			Post: []bytecode.Effect{{Op: bytecode.EffNode}}, Successors: []int{1}},
		{Op: bytecode.OpMatch, Nav: bytecode.NavStay, Field: 9, Successors: []int{2}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	log, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.NoError(t, err)
	require.Len(t, log, 1, "the first sibling's Node effect must be truncated away on backtrack")
	require.Equal(t, 1, log[0].Start, "only the second sibling's effect should survive")
}

func TestRunAltPicksFirstSuccessfulBranch(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	only := &fakeNode{kind: kindC, start: 5, end: 6}
	link(root, only)

	steps := []bytecode.Step{
		{Nav: bytecode.NavStay, Successors: []int{1, 3}}, // branch dispatch
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindB, Successors: []int{2}},
		{Op: bytecode.OpReturn, RefID: 0},
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindC,
			Post: []bytecode.Effect{{Op: bytecode.EffNode}}, Successors: []int{2}},
	}
	m := linkedModule(steps, 0)

	log, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.NoError(t, err)
	require.Len(t, log, 1)
	require.Equal(t, kindC, log[0].Kind)
}

func TestRunSuppressedEffectsNeverReachLog(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	a := &fakeNode{kind: kindA}
	link(root, a)

	steps := []bytecode.Step{
		{Op: bytecode.OpMatch, Nav: bytecode.NavDown, Kind: kindA,
			Pre:  []bytecode.Effect{{Op: bytecode.EffSuppressBegin}},
			Post: []bytecode.Effect{{Op: bytecode.EffNode}, {Op: bytecode.EffSuppressEnd}},
			Successors: []int{1}},
		{Op: bytecode.OpReturn, RefID: 0},
	}
	m := linkedModule(steps, 0)

	log, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.NoError(t, err)
	require.Empty(t, log)
}

func TestRunFuelExhaustion(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	steps := []bytecode.Step{
		{Nav: bytecode.NavStay, Successors: []int{0}}, // spins forever
	}
	m := linkedModule(steps, 0)

	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{ExecFuel: 10})
	require.ErrorIs(t, err, diag.ErrFuelExhausted)
}

func TestRunRecursionExhaustion(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	steps := []bytecode.Step{
		{Op: bytecode.OpCall, RefID: 0, Target: 0, ReturnTo: 0}, // calls itself forever
	}
	m := linkedModule(steps, 0)

	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{RecursionFuel: 3})
	require.ErrorIs(t, err, diag.ErrRecursionExhausted)
}

func TestRunUnlinkedModuleRejected(t *testing.T) {
	root := &fakeNode{kind: kindRoot}
	m := &bytecode.Module{Version: 1, Linked: false, Strings: []string{""}}
	_, err := vm.Run(m, "Q", newFakeCursor(root), testGrammar(), vm.Options{})
	require.ErrorIs(t, err, diag.ErrUnlinkedBytecode)
}
