package vm

import (
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/grammar"
)

func isDownFamily(n bytecode.Nav) bool {
	switch n {
	case bytecode.NavDown, bytecode.NavDownSkip, bytecode.NavDownExact:
		return true
	default:
		return false
	}
}

func isSkipFamily(n bytecode.Nav) bool {
	return n == bytecode.NavNextSkip || n == bytecode.NavDownSkip
}

func isExactFamily(n bytecode.Nav) bool {
	return n == bytecode.NavNextExact || n == bytecode.NavDownExact
}

func isUpFamily(n bytecode.Nav) bool {
	switch n {
	case bytecode.NavUp, bytecode.NavUpSkipTrivia, bytecode.NavUpExact:
		return true
	default:
		return false
	}
}

// moveOnce performs nav's single positioning move (first child for a Down
// family, next sibling for a Next family). Reports whether the move
// succeeded.
func (mc *machine) moveOnce(nav bytecode.Nav) bool {
	if isDownFamily(nav) {
		return mc.cur.GotoFirstChild()
	}
	return mc.cur.GotoNextSibling()
}

// testNode reports whether the cursor's current node satisfies st's
// kind/field constraints and carries none of its negated fields. Kind/Field
// 0 means unconstrained.
func (mc *machine) testNode(st bytecode.Step) bool {
	if st.Kind != 0 && mc.cur.CurrentKindID() != st.Kind {
		return false
	}
	if st.Field != 0 && mc.cur.CurrentFieldID() != st.Field {
		return false
	}
	return !mc.hasNegatedField(st)
}

// hasNegatedField reports whether the current node has a child occupying
// one of st's NegatedFields. It descends to the first child, scans
// siblings, then returns to the parent with a single GotoParent call —
// every child shares the same parent, so the temporary descent is always
// undone in one step regardless of how many siblings were visited.
func (mc *machine) hasNegatedField(st bytecode.Step) bool {
	if len(st.NegatedFields) == 0 {
		return false
	}
	if !mc.cur.GotoFirstChild() {
		return false
	}
	found := false
	for {
		if containsInt(st.NegatedFields, mc.cur.CurrentFieldID()) {
			found = true
		}
		if !mc.cur.GotoNextSibling() {
			break
		}
	}
	mc.cur.GotoParent()
	return found
}

func containsInt(ids []int, v int) bool {
	for _, id := range ids {
		if id == v {
			return true
		}
	}
	return false
}

// execMatch runs one Match step to completion: pre-effects, nav, test (with
// the navigation-search-loop retry rule for non-Exact, non-Stay, non-Up
// nav), negated-field check, post-effects, and successor dispatch. It
// returns false when the step could not find a satisfying node at all —
// the caller backtracks in that case.
func (mc *machine) execMatch(st bytecode.Step) bool {
	resuming := mc.resumingStep
	mc.resumingStep = false

	if !resuming {
		mc.appendEffects(st.Pre)
	}

	switch {
	case st.Nav == bytecode.NavStay:
		if !mc.testNode(st) {
			return false
		}
		mc.appendEffects(st.Post)
		mc.dispatchSuccessors(st)
		return true

	case isUpFamily(st.Nav):
		for i := 0; i < st.UpCount; i++ {
			if !mc.cur.GotoParent() {
				return false
			}
		}
		if !mc.testNode(st) {
			return false
		}
		mc.appendEffects(st.Post)
		mc.dispatchSuccessors(st)
		return true

	case isExactFamily(st.Nav):
		if !mc.moveOnce(st.Nav) {
			return false
		}
		if !mc.testNode(st) {
			return false
		}
		mc.appendEffects(st.Post)
		mc.dispatchSuccessors(st)
		return true

	default: // Next, Down, NextSkip, DownSkip: resumable search loop
		if !resuming {
			if !mc.moveOnce(st.Nav) {
				return false
			}
		} else if !mc.cur.GotoNextSibling() {
			return false
		}
		for !mc.testNode(st) {
			if isSkipFamily(st.Nav) && !mc.g.IsTrivia(grammar.KindID(mc.cur.CurrentKindID())) {
				return false
			}
			if !mc.cur.GotoNextSibling() {
				return false
			}
		}
		// A matching candidate was found. Push a continuation checkpoint
		// before logging this candidate's own post-effects, so a later
		// failure downstream can resume the search at the next sibling
		// instead of giving up on this step entirely.
		mc.pushCheckpoint(checkpoint{
			cursorIdx:      mc.cur.DescendantIndex(),
			logLen:         len(mc.log),
			frameIdx:       mc.frameCur,
			recursionDepth: mc.recursionDepth,
			suppressDepth:  mc.suppressDepth,
			resumeIP:       mc.ip,
			continuation:   true,
		})
		mc.appendEffects(st.Post)
		mc.dispatchSuccessors(st)
		return true
	}
}

// dispatchSuccessors advances ip per the step's successor count: 0 leaves
// ip untouched and run accepts with the log as it stands (the surrounding
// Return step is what actually ends a def, so this is never reached for
// compiler-generated bytecode); 1 jumps unconditionally; 2+ pushes a plain
// checkpoint per alternative beyond the first, tried in order on backtrack.
func (mc *machine) dispatchSuccessors(st bytecode.Step) {
	switch len(st.Successors) {
	case 0:
		return
	case 1:
		mc.ip = st.Successors[0]
	default:
		cursorIdx := mc.cur.DescendantIndex()
		logLen := len(mc.log)
		for i := len(st.Successors) - 1; i >= 1; i-- {
			mc.pushCheckpoint(checkpoint{
				cursorIdx:      cursorIdx,
				logLen:         logLen,
				frameIdx:       mc.frameCur,
				recursionDepth: mc.recursionDepth,
				suppressDepth:  mc.suppressDepth,
				resumeIP:       st.Successors[i],
				continuation:   false,
			})
		}
		mc.ip = st.Successors[0]
	}
}
