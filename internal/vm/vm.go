// Package vm implements the backtracking virtual machine that drives an
// external tree cursor against a linked bytecode.Module, producing an
// effect log for internal/materialize to replay into typed values.
//
// State lives entirely in one machine value per execution: a single
// sourcetext.Cursor (never cloned — backtracking restores position via
// Cursor.GotoDescendant), an instruction pointer, a cactus frame arena, an
// effect log, a suppress-depth counter, and the fuel/recursion counters
// bounding runaway queries.
package vm

import (
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/sourcetext"
)

// Default fuel bounds, overridable per Options and, at the config layer,
// by PLOTNIK_EXEC_FUEL / PLOTNIK_RECURSION_FUEL.
const (
	DefaultExecFuel      = 1_000_000
	DefaultRecursionFuel = 1_024
)

// haltIP marks the synthetic return address of the outermost call frame:
// when Return pops a frame whose ReturnTo is haltIP, execution is done.
const haltIP = -1

// LogEntry is one recorded effect. Start/End/Kind carry the matched node's
// span and grammar kind id for Node/Text effects; Arg carries a member or
// variant index for Set/Enum. Every other field is zero for effects that
// don't need it.
type LogEntry struct {
	Op    bytecode.EffectOp
	Arg   int
	Start int
	End   int
	Kind  int
}

// Options configures one Run. A zero value uses the spec's default fuel
// limits and no cancellation hook.
type Options struct {
	ExecFuel      int
	RecursionFuel int

	// Cancel, if set, is polled once per fetch-execute cycle; returning
	// true aborts the run with diag.ErrCancelled, discarding the partial
	// log, the same way fuel exhaustion does.
	Cancel func() bool
}

func (o Options) execFuel() int {
	if o.ExecFuel > 0 {
		return o.ExecFuel
	}
	return DefaultExecFuel
}

func (o Options) recursionFuel() int {
	if o.RecursionFuel > 0 {
		return o.RecursionFuel
	}
	return DefaultRecursionFuel
}

type frame struct {
	refID    int
	returnTo int
	parent   int // index into machine.frames, -1 for none
}

// checkpoint is a restorable backtrack point. continuation is true for a
// checkpoint pushed mid navigation-search-loop (resume by trying the next
// sibling of resumeIP's own step); false for a checkpoint pushed at a
// multi-successor decision point (resume resumeIP fresh).
type checkpoint struct {
	cursorIdx      int
	logLen         int
	frameIdx       int
	recursionDepth int
	suppressDepth  int
	resumeIP       int
	continuation   bool
}

type machine struct {
	m   *bytecode.Module
	g   *grammar.Table
	cur sourcetext.Cursor
	opts Options

	ip           int
	resumingStep bool // true if ip was reached via a continuation checkpoint

	frames   []frame
	frameCur int

	checkpoints []checkpoint
	maxStack    []int // running high-water mark of active checkpoints' frameIdx

	log []LogEntry

	recursionDepth int
	suppressDepth  int

	execFuel int
}

// Run executes the entry point named entry in m against cur, driven by g
// for trivia classification. On acceptance it returns the effect log for
// internal/materialize; on a recoverable runtime condition it returns a nil
// log and one of diag.ErrNoMatch, diag.ErrFuelExhausted,
// diag.ErrRecursionExhausted or diag.ErrCancelled; diag.ErrUnlinkedBytecode
// and diag.ErrFrameMismatch are returned for a malformed invocation.
func Run(m *bytecode.Module, entry string, cur sourcetext.Cursor, g *grammar.Table, opts Options) ([]LogEntry, error) {
	if !m.Linked {
		return nil, diag.ErrUnlinkedBytecode
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	ep, ok := m.Entrypoint(entry)
	if !ok {
		return nil, diag.ErrNoEntryPoint
	}

	mc := &machine{
		m:        m,
		g:        g,
		cur:      cur,
		opts:     opts,
		ip:       ep.Step,
		frames:   []frame{{refID: -1, returnTo: haltIP, parent: -1}},
		frameCur: 0,
		execFuel: opts.execFuel(),
	}

	return mc.run()
}

func (mc *machine) run() ([]LogEntry, error) {
	for {
		if mc.opts.Cancel != nil && mc.opts.Cancel() {
			return nil, diag.ErrCancelled
		}
		if mc.execFuel <= 0 {
			return nil, diag.ErrFuelExhausted
		}
		mc.execFuel--

		st := mc.m.Steps[mc.ip]
		switch st.Op {
		case bytecode.OpMatch:
			if !mc.execMatch(st) {
				if !mc.backtrack() {
					return nil, diag.ErrNoMatch
				}
				continue
			}
			if len(st.Successors) == 0 {
				return mc.log, nil
			}
		case bytecode.OpCall:
			if mc.recursionDepth+1 > mc.opts.recursionFuel() {
				return nil, diag.ErrRecursionExhausted
			}
			mc.recursionDepth++
			mc.frames = append(mc.frames, frame{refID: st.RefID, returnTo: st.ReturnTo, parent: mc.frameCur})
			mc.frameCur = len(mc.frames) - 1
			mc.ip = st.Target
		case bytecode.OpReturn:
			f := mc.frames[mc.frameCur]
			if f.returnTo != haltIP && f.refID != st.RefID {
				return nil, diag.ErrFrameMismatch
			}
			mc.recursionDepth--
			mc.frameCur = f.parent
			mc.pruneFrames()
			if f.returnTo == haltIP {
				return mc.log, nil
			}
			mc.ip = f.returnTo
		}
	}
}

// pruneFrames truncates the cactus arena to the largest frame index still
// reachable — the current frame, or the highest frame index any active
// checkpoint might later restore to, whichever is greater.
func (mc *machine) pruneFrames() {
	keep := mc.frameCur
	if hw := mc.highWaterMark(); hw > keep {
		keep = hw
	}
	mc.frames = mc.frames[:keep+1]
}

func (mc *machine) highWaterMark() int {
	if len(mc.maxStack) == 0 {
		return -1
	}
	return mc.maxStack[len(mc.maxStack)-1]
}

func (mc *machine) pushCheckpoint(cp checkpoint) {
	mc.checkpoints = append(mc.checkpoints, cp)
	mark := cp.frameIdx
	if hw := mc.highWaterMark(); hw > mark {
		mark = hw
	}
	mc.maxStack = append(mc.maxStack, mark)
}

// backtrack pops the most recent checkpoint and restores machine state to
// it, repositioning the cursor with a single GotoDescendant call rather
// than a cloned cursor.
func (mc *machine) backtrack() bool {
	if len(mc.checkpoints) == 0 {
		return false
	}
	cp := mc.checkpoints[len(mc.checkpoints)-1]
	mc.checkpoints = mc.checkpoints[:len(mc.checkpoints)-1]
	mc.maxStack = mc.maxStack[:len(mc.maxStack)-1]

	mc.cur.GotoDescendant(cp.cursorIdx)
	mc.log = mc.log[:cp.logLen]
	mc.frameCur = cp.frameIdx
	mc.recursionDepth = cp.recursionDepth
	mc.suppressDepth = cp.suppressDepth

	mc.ip = cp.resumeIP
	mc.resumingStep = cp.continuation
	return true
}

// appendEffect records e unless it is currently suppressed. SuppressBegin/
// SuppressEnd themselves are never logged — they only adjust the depth
// counter the way every effect between them is filtered by.
func (mc *machine) appendEffect(e bytecode.Effect) {
	switch e.Op {
	case bytecode.EffSuppressBegin:
		mc.suppressDepth++
		return
	case bytecode.EffSuppressEnd:
		mc.suppressDepth--
		return
	}
	if mc.suppressDepth > 0 {
		return
	}
	entry := LogEntry{Op: e.Op, Arg: e.Arg}
	if e.Op == bytecode.EffNode || e.Op == bytecode.EffText {
		entry.Start = mc.cur.StartByte()
		entry.End = mc.cur.EndByte()
		entry.Kind = mc.cur.CurrentKindID()
	}
	mc.log = append(mc.log, entry)
}

func (mc *machine) appendEffects(es []bytecode.Effect) {
	for _, e := range es {
		mc.appendEffect(e)
	}
}
