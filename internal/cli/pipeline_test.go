package cli_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/cli"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/materialize"
	"github.com/termfx/plotnik/internal/vm"
)

// fakeNode/fakeCursor drive the VM without linking tree-sitter, the same
// role the vm package's own fixtures play — a hand-built tree the CLI's
// pipeline functions can run an end-to-end compile+execute+materialize
// pass against.
type fakeNode struct {
	kind     int
	field    int // field id under which the parent refers to this node, 0 if none
	start    int
	end      int
	children []*fakeNode
	parent   *fakeNode
}

type fakeCursor struct {
	root *fakeNode
	node *fakeNode
}

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
		if ch == c.node && i+1 < len(p.children) {
			c.node = p.children[i+1]
			return true
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

func (c *fakeCursor) DescendantIndex() int {
	idx := -1
	var walk func(n *fakeNode) bool
	walk = func(n *fakeNode) bool {
		idx++
		if n == c.node {
			return true
		}
		for _, ch := range n.children {
			if walk(ch) {
				return true
			}
		}
		return false
	}
	walk(c.root)
	return idx
}

func (c *fakeCursor) GotoDescendant(idx int) {
	counter := -1
	var walk func(n *fakeNode) *fakeNode
	walk = func(n *fakeNode) *fakeNode {
		counter++
		if counter == idx {
			return n
		}
		for _, ch := range n.children {
			if found := walk(ch); found != nil {
				return found
			}
		}
		return nil
	}
	if found := walk(c.root); found != nil {
		c.node = found
	}
}

func (c *fakeCursor) CurrentKindID() int  { return c.node.kind }
func (c *fakeCursor) CurrentFieldID() int { return c.node.field }
func (c *fakeCursor) StartByte() int      { return c.node.start }
func (c *fakeCursor) EndByte() int        { return c.node.end }

type fakeSource struct{ buf []byte }

func (s fakeSource) Bytes() []byte { return s.buf }

// node builds a fakeNode and wires children's parent pointers, so callers
// can write a tree as one nested expression instead of assembling parent
// links by hand.
func node(kind, field, start, end int, children ...*fakeNode) *fakeNode {
	n := &fakeNode{kind: kind, field: field, start: start, end: end, children: children}
	for _, c := range children {
		c.parent = n
	}
	return n
}

func TestCompileQueryProducesExecutableModuleAgainstFakeGrammar(t *testing.T) {
	g := grammar.New()
	idKind := g.AddKind("identifier", true)

	_, bag := cli.CompileQuery([]byte("(identifier) @name"), g)
	require.False(t, bag.HasErrors(), "%+v", bag.All())

	m, bag2 := cli.CompileQuery([]byte("(identifier) @name"), g)
	require.False(t, bag2.HasErrors())

	root := &fakeNode{kind: int(idKind), start: 0, end: 3}
	cur := &fakeCursor{root: root, node: root}
	src := fakeSource{buf: []byte("abc")}

	ep, ok := m.Entrypoint("")
	require.True(t, ok)

	log, err := vm.Run(m, "", cur, g, vm.Options{})
	require.NoError(t, err)

	val, err := materialize.Materialize(log, m, ep.Type, src)
	require.NoError(t, err)
	obj, ok := val.(map[string]any)
	require.True(t, ok, "%#v", val)
	node, ok := obj["name"].(materialize.Node)
	require.True(t, ok)
	require.Equal(t, "abc", node.Text)
}

func TestCompileQueryReportsUnknownKindAsDiagnostic(t *testing.T) {
	g := grammar.New()
	_, bag := cli.CompileQuery([]byte("(nonexistent_kind) @x"), g)
	require.True(t, bag.HasErrors())
}
