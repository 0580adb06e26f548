// Package sitter adapts github.com/smacker/go-tree-sitter to the
// sourcetext.Cursor/Source contract, and builds a grammar.Table from a
// tree-sitter Language's own symbol/field tables so linked kind/field ids
// agree with the ones the parsed tree actually reports.
package sitter

import (
	"context"

	ts "github.com/smacker/go-tree-sitter"

	"github.com/termfx/plotnik/internal/grammar"
)

// Source wraps the raw bytes a tree was parsed from.
type Source struct{ buf []byte }

func NewSource(buf []byte) *Source { return &Source{buf: buf} }
func (s *Source) Bytes() []byte    { return s.buf }

// Cursor walks a *ts.Tree, translating grammar.KindID/FieldID against a
// grammar.Table built from the same ts.Language via BuildGrammar.
type Cursor struct {
	g    *grammar.Table
	root *ts.Node
	node *ts.Node
}

// Parse runs a tree-sitter parse and returns a ready Cursor positioned at
// the root node, plus the Source it was parsed from.
func Parse(ctx context.Context, lang *ts.Language, g *grammar.Table, src []byte) (*Cursor, *Source, error) {
	p := ts.NewParser()
	p.SetLanguage(lang)
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, err
	}
	root := tree.RootNode()
	return &Cursor{g: g, root: root, node: root}, NewSource(src), nil
}

func (c *Cursor) GotoFirstChild() bool {
	if c.node.ChildCount() == 0 {
		return false
	}
	c.node = c.node.Child(0)
	return true
}

func (c *Cursor) GotoNextSibling() bool {
	n := c.node.NextSibling()
	if n == nil {
		return false
	}
	c.node = n
	return true
}

func (c *Cursor) GotoParent() bool {
	p := c.node.Parent()
	if p == nil {
		return false
	}
	c.node = p
	return true
}

// DescendantIndex returns the current node's preorder position counted
// from the tree root (root itself is index 0).
func (c *Cursor) DescendantIndex() int {
	idx := -1
	found := false
	var walk func(n *ts.Node) bool
	walk = func(n *ts.Node) bool {
		idx++
		if n == c.node {
			found = true
			return true
		}
		cnt := int(n.ChildCount())
		for i := 0; i < cnt; i++ {
			if walk(n.Child(i)) {
				return true
			}
		}
		return false
	}
	walk(c.root)
	if !found {
		return -1
	}
	return idx
}

// GotoDescendant repositions the cursor at the node whose preorder index
// is idx, found by a depth-first count from the tree root. This adapter
// favors simplicity over the stack-based O(depth) restoration a native
// tree-sitter cursor binding would give; the VM's own checkpoint protocol
// does not depend on which one backs it.
func (c *Cursor) GotoDescendant(idx int) {
	counter := -1
	var walk func(n *ts.Node) *ts.Node
	walk = func(n *ts.Node) *ts.Node {
		counter++
		if counter == idx {
			return n
		}
		cnt := int(n.ChildCount())
		for i := 0; i < cnt; i++ {
			if found := walk(n.Child(i)); found != nil {
				return found
			}
		}
		return nil
	}
	if found := walk(c.root); found != nil {
		c.node = found
	}
}

func (c *Cursor) CurrentKindID() int {
	id, _ := c.g.KindByName(c.node.Type())
	return int(id)
}

func (c *Cursor) CurrentFieldID() int {
	p := c.node.Parent()
	if p == nil {
		return 0
	}
	cnt := int(p.ChildCount())
	for i := 0; i < cnt; i++ {
		if p.Child(i) == c.node {
			name := p.FieldNameForChild(i)
			if name == "" {
				return 0
			}
			id, _ := c.g.FieldByName(name)
			return int(id)
		}
	}
	return 0
}

func (c *Cursor) StartByte() int { return int(c.node.StartByte()) }
func (c *Cursor) EndByte() int   { return int(c.node.EndByte()) }

// BuildGrammar derives a grammar.Table from a tree-sitter Language's own
// symbol and field tables, so kind/field ids agree with the ones a Cursor
// walking a tree parsed by the same Language will report.
func BuildGrammar(lang *ts.Language) *grammar.Table {
	g := grammar.New()
	symCount := int(lang.SymbolCount())
	for i := 0; i < symCount; i++ {
		sym := ts.Symbol(i)
		name := lang.SymbolName(sym)
		named := lang.SymbolType(sym) == ts.SymbolTypeRegular
		g.AddKind(name, named)
	}
	fieldCount := int(lang.FieldCount())
	for i := 1; i <= fieldCount; i++ {
		g.AddField(lang.FieldName(i))
	}
	return g
}
