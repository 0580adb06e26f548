// Package sourcetext defines the upstream contract the virtual machine
// drives: a single-owner cursor over a parsed tree, plus the source bytes
// it was parsed from. internal/sourcetext/sitter implements it against a
// real tree-sitter parse; tests may implement it directly over a hand-
// built tree without linking tree-sitter at all.
package sourcetext

// Cursor walks a parsed tree one step at a time. Implementations own their
// position; the VM never holds more than one Cursor per execution and
// never clones it — backtracking always restores position via
// GotoDescendant, matching the descendant-index checkpoint scheme the
// virtual machine relies on.
type Cursor interface {
	GotoFirstChild() bool
	GotoNextSibling() bool
	GotoParent() bool

	// GotoDescendant repositions the cursor directly at the node whose
	// preorder descendant index is idx, without walking intermediate
	// nodes one at a time.
	GotoDescendant(idx int)
	// DescendantIndex returns the current node's preorder index, the
	// value a checkpoint records and GotoDescendant later restores.
	DescendantIndex() int

	CurrentKindID() int
	CurrentFieldID() int // 0 when the current node occupies no named field

	StartByte() int
	EndByte() int
}

// Source is the byte buffer a Cursor's spans index into.
type Source interface {
	Bytes() []byte
}

// Text returns the substring of src spanned by [start, end).
func Text(src Source, start, end int) string {
	b := src.Bytes()
	if start < 0 || end > len(b) || start > end {
		return ""
	}
	return string(b[start:end])
}
