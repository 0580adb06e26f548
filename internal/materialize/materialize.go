// Package materialize replays a virtual machine effect log into a typed
// Go value, using a bytecode.Module's type table to recover the field and
// variant names the log's numeric Set/Enum indices refer to.
//
// The log is not self-describing for every Obj/Arr/Enum: most carry no
// type operand of their own (Enum's Arg is only a variant index, relative
// to whatever union type the enclosing position already resolved to). The
// replay instead predicts the type of whatever production is about to
// start from the frame currently open — a struct frame's next unset
// member, an array frame's element type, or a union frame's chosen
// variant payload — which is sound whenever a scope's members are always
// filled in the same left-to-right order, as they are for an ordinary
// Tree/Seq struct. That assumption breaks for an untagged Alt sharing one
// struct across branches, where the branch actually taken may Set members
// out of declaration order (or skip some entirely); the compiler emits an
// explicit Hint effect immediately before such a position's own value,
// naming its type directly, and the replay prefers that over the guess
// whenever one is pending.
package materialize

import (
	"sort"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/sourcetext"
	"github.com/termfx/plotnik/internal/types"
	"github.com/termfx/plotnik/internal/vm"
)

// Point is a zero-based row/column position, derived from a byte offset by
// scanning source text for line breaks — sourcetext.Cursor exposes only
// byte offsets, never points, so this conversion happens once here rather
// than at every site that needs a human-facing position.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Node is a captured tree-sitter node, materialized eagerly with its own
// text rather than left as a lazy handle: the result schema always wants
// {kind,text,start,end} together, and the source bytes are already in
// hand during replay.
type Node struct {
	Kind  string `json:"kind"`
	Text  string `json:"text"`
	Start Point  `json:"start"`
	End   Point  `json:"end"`
}

// Tagged is a materialized tagged-union value, serializing as
// {"$tag": name, "$data": payload} per the result value schema: Tag names
// the matched variant, Value holds its payload struct (a map[string]any).
type Tagged struct {
	Tag   string `json:"$tag"`
	Value any    `json:"$data"`
}

// Materialize replays log into a value of the type named by typeID (an
// Entrypoint.Type or a captured member's Type), against m's type table and
// src's bytes for text extraction.
func Materialize(log []vm.LogEntry, m *bytecode.Module, typeID int, src sourcetext.Source) (any, error) {
	mz := &materializer{m: m, src: src, topType: typeID, lineStarts: newLineStarts(src), pendingHint: -1}
	for _, e := range log {
		if err := mz.step(e); err != nil {
			return nil, err
		}
	}
	if len(mz.stack) != 0 {
		return nil, diag.ErrMalformedLog
	}
	return mz.last, nil
}

type frameKind int

const (
	frameObj frameKind = iota
	frameArr
	frameEnum
)

type frame struct {
	kind frameKind

	// frameObj
	ty     *bytecode.TypeEntry
	values map[string]any
	set    []bool
	next   int

	// frameArr
	elemType int
	items    []any

	// frameEnum
	tag     string
	payload int
}

type materializer struct {
	m          *bytecode.Module
	src        sourcetext.Source
	lineStarts []int

	topType int // predicted type for the very first Obj/Arr/Enum, stack empty
	stack   []frame
	last    any

	// pendingHint is the type-table index named by the most recently seen
	// Hint effect, consumed by the very next Obj/Arr/Enum and cleared by
	// any other effect in between; -1 means no hint is pending.
	pendingHint int
}

func (mz *materializer) step(e vm.LogEntry) error {
	hint := mz.pendingHint
	mz.pendingHint = -1
	if e.Op == bytecode.EffHint {
		mz.pendingHint = e.Arg
		return nil
	}
	switch e.Op {
	case bytecode.EffNode:
		mz.last = Node{
			Kind:  mz.kindName(e.Kind),
			Text:  sourcetext.Text(mz.src, e.Start, e.End),
			Start: mz.point(e.Start),
			End:   mz.point(e.End),
		}
	case bytecode.EffText:
		mz.last = sourcetext.Text(mz.src, e.Start, e.End)
	case bytecode.EffNull, bytecode.EffClear:
		mz.last = nil

	case bytecode.EffObj:
		ty, err := mz.resolveType(mz.predictedType(hint))
		if err != nil {
			return err
		}
		if ty.Kind != bytecode.TypeStruct {
			return diag.ErrMalformedLog
		}
		mz.push(frame{kind: frameObj, ty: ty, values: make(map[string]any, len(ty.Members)), set: make([]bool, len(ty.Members))})

	case bytecode.EffEndObj:
		f, err := mz.pop(frameObj)
		if err != nil {
			return err
		}
		for i, mm := range f.ty.Members {
			if f.set[i] {
				continue
			}
			f.values[mm.Name] = defaultValue(types.Shape(mm.Shape))
		}
		mz.last = f.values

	case bytecode.EffSet:
		top, err := mz.top(frameObj)
		if err != nil {
			return err
		}
		if e.Arg < 0 || e.Arg >= len(top.ty.Members) {
			return diag.ErrMalformedLog
		}
		top.values[top.ty.Members[e.Arg].Name] = mz.last
		top.set[e.Arg] = true
		top.next = e.Arg + 1
		mz.last = nil

	case bytecode.EffArr:
		mz.push(frame{kind: frameArr, elemType: mz.predictedType(hint), items: []any{}})

	case bytecode.EffPush:
		top, err := mz.top(frameArr)
		if err != nil {
			return err
		}
		top.items = append(top.items, mz.last)
		mz.last = nil

	case bytecode.EffEndArr:
		f, err := mz.pop(frameArr)
		if err != nil {
			return err
		}
		mz.last = f.items

	case bytecode.EffEnum:
		ty, err := mz.resolveType(mz.predictedType(hint))
		if err != nil {
			return err
		}
		if ty.Kind != bytecode.TypeUnion || e.Arg < 0 || e.Arg >= len(ty.Variants) {
			return diag.ErrMalformedLog
		}
		variant := ty.Variants[e.Arg]
		mz.push(frame{kind: frameEnum, tag: variant.Name, payload: variant.Payload})

	case bytecode.EffEndEnum:
		f, err := mz.pop(frameEnum)
		if err != nil {
			return err
		}
		mz.last = Tagged{Tag: f.tag, Value: mz.last}
	}
	return nil
}

// predictedType returns hint if the compiler supplied one for this exact
// position, falling back to the structural guess otherwise.
func (mz *materializer) predictedType(hint int) int {
	if hint >= 0 {
		return hint
	}
	return mz.expectedType()
}

// expectedType predicts the type index the next Obj/Arr/Enum open is for,
// from whatever frame is currently on top (or topType, before anything has
// been opened).
func (mz *materializer) expectedType() int {
	if len(mz.stack) == 0 {
		return mz.topType
	}
	top := &mz.stack[len(mz.stack)-1]
	switch top.kind {
	case frameObj:
		if top.next < 0 || top.next >= len(top.ty.Members) {
			return -1
		}
		return top.ty.Members[top.next].Type
	case frameArr:
		return top.elemType
	case frameEnum:
		return top.payload
	default:
		return -1
	}
}

func (mz *materializer) push(f frame) {
	mz.stack = append(mz.stack, f)
}

// pop removes and returns the top frame, failing if the stack is empty or
// the top frame isn't of the expected kind — either means the log and the
// type table have gone out of sync.
func (mz *materializer) pop(want frameKind) (*frame, error) {
	if len(mz.stack) == 0 || mz.stack[len(mz.stack)-1].kind != want {
		return nil, diag.ErrMalformedLog
	}
	f := mz.stack[len(mz.stack)-1]
	mz.stack = mz.stack[:len(mz.stack)-1]
	return &f, nil
}

func (mz *materializer) top(want frameKind) (*frame, error) {
	if len(mz.stack) == 0 || mz.stack[len(mz.stack)-1].kind != want {
		return nil, diag.ErrMalformedLog
	}
	return &mz.stack[len(mz.stack)-1], nil
}

// resolveType follows TypeNominal indirection to the struct/union/
// primitive entry it names. Bounded by the table's own length so a
// corrupt or cyclic nominal chain fails instead of looping forever.
func (mz *materializer) resolveType(id int) (*bytecode.TypeEntry, error) {
	for i := 0; i <= len(mz.m.Types); i++ {
		if id < 0 || id >= len(mz.m.Types) {
			return nil, diag.ErrMalformedLog
		}
		ty := &mz.m.Types[id]
		if ty.Kind != bytecode.TypeNominal {
			return ty, nil
		}
		id = ty.NominalID
	}
	return nil, diag.ErrMalformedLog
}

func (mz *materializer) kindName(kindID int) string {
	if kindID < 0 || kindID >= len(mz.m.KindSymbols) {
		return ""
	}
	return mz.m.String(mz.m.KindSymbols[kindID])
}

// defaultValue fills a member index the run never Set: null for a shape
// that can be absent, an empty slice for one that's always a list.
func defaultValue(s types.Shape) any {
	switch s {
	case types.Many, types.Many1:
		return []any{}
	default:
		return nil
	}
}

func newLineStarts(src sourcetext.Source) []int {
	b := src.Bytes()
	starts := []int{0}
	for i, c := range b {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// point converts a byte offset into a row/col pair by locating the last
// line start at or before it.
func (mz *materializer) point(offset int) Point {
	i := sort.Search(len(mz.lineStarts), func(i int) bool { return mz.lineStarts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return Point{Row: i, Col: offset - mz.lineStarts[i]}
}
