package compiler

import (
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/resolve"
	"github.com/termfx/plotnik/internal/types"
)

// discardType stands in for the type of a suppressed capture's inner
// expression: the value it would produce is never installed anywhere, so
// its exact shape does not matter, only that compileAsValue has something
// to pass down to a nested Capture, if any.
var discardType = &types.Type{Kind: types.KindPrimitive, Primitive: "node"}

// nextFamily converts a first-visit nav into the one a repeat visit to the
// same sibling run must use: after any node has been reached, every later
// one is found by advancing from the current position, never by
// redescending from the parent.
func nextFamily(n bytecode.Nav) bytecode.Nav {
	switch n {
	case bytecode.NavDown:
		return bytecode.NavNext
	case bytecode.NavDownSkip:
		return bytecode.NavNextSkip
	case bytecode.NavDownExact:
		return bytecode.NavNextExact
	default:
		return n
	}
}

// exactNav converts a nav into its anchored form, for a child immediately
// preceded by `.`.
func exactNav(n bytecode.Nav) bytecode.Nav {
	switch n {
	case bytecode.NavDown, bytecode.NavDownSkip:
		return bytecode.NavDownExact
	case bytecode.NavNext, bytecode.NavNextSkip:
		return bytecode.NavNextExact
	default:
		return n
	}
}

// leafEffect picks the production effect for a leaf/self-test match: Text
// when the position's inferred type is the string primitive (the matched
// node's source text), Node otherwise (an opaque handle).
func leafEffect(want *types.Type) bytecode.Effect {
	if want != nil && want.Kind == types.KindPrimitive && want.Primitive == types.PrimString {
		return bytecode.Effect{Op: bytecode.EffText}
	}
	return bytecode.Effect{Op: bytecode.EffNode}
}

// findMember locates name in scope's member list, returning its index (the
// operand compileCapture's Set effect needs) and its Member. scope is
// expected to always contain the name a resolved Capture carries; a miss
// only happens if a stage upstream failed to keep the two in lockstep, in
// which case the capture's inner is compiled in flatten mode with no Set
// rather than panicking.
func findMember(scope *types.Type, name string) (int, types.Member, bool) {
	if scope == nil {
		return 0, types.Member{}, false
	}
	for i, mm := range scope.Members {
		if mm.Name == name {
			return i, mm, true
		}
	}
	return 0, types.Member{}, false
}

// compileAsValue compiles e as the thing occupying its own Obj/Union scope:
// the top of every def's body, and the inner of every Capture. want is the
// type already inferred for this position; nav is how the caller reaches
// e's node (Stay if already positioned, e.g. a def's own entry or a
// Capture's immediate inner).
func (c *compiler) compileAsValue(e ast.Expr, want *types.Type, nav bytecode.Nav, field int, cont int) int {
	switch v := e.(type) {
	case ast.Tree:
		return c.compileTreeValue(v, want, nav, field, cont)
	case ast.Seq:
		return c.compileSeqValue(v, want, nav, field, cont)
	case ast.Alt:
		return c.compileAltValue(v, want, nav, field, cont)
	case ast.Supertype:
		return c.compileSupertype(v, nav, field, []bytecode.Effect{leafEffect(want)}, cont)
	case ast.Quantifier:
		onPass := func(nv bytecode.Nav, ct int) int { return c.compileAsValue(v.Inner(), want, nv, field, ct) }
		return c.compileQuantifierLoop(v.Op(), onPass, nav, cont)
	case ast.Capture:
		if want.Kind == types.KindStruct {
			// want is the capture's own one-member scope; open it here.
			endObj := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndObj}}, cont)
			body := c.compileCapture(v, want, nav, field, endObj)
			return c.epsilon([]bytecode.Effect{{Op: bytecode.EffObj}}, nil, body)
		}
		return c.compileCapture(v, want, nav, field, cont)
	case ast.Anchor:
		return c.compileAsValue(v.Inner(), want, exactNav(nav), field, cont)
	case ast.Field:
		fid := c.fieldOperand(v.Node(), v.Name())
		return c.compileAsValue(v.Value(), want, nav, fid, cont)
	case ast.Ref:
		return c.compileRefAt(v, nav, field, cont)
	default:
		return c.compileLeaf(e, nav, field, []bytecode.Effect{leafEffect(want)}, cont)
	}
}

// compileFlatten compiles e into an ambient scope already opened by an
// enclosing value-mode construct, without opening a scope of its own: real
// navigation and kind/field testing still happen, but nothing is produced
// unless a nested Capture is reached.
func (c *compiler) compileFlatten(e ast.Expr, scope *types.Type, nav bytecode.Nav, field int, cont int) int {
	switch v := e.(type) {
	case ast.Tree:
		return c.compileTree(v, nav, field, nil, nil, scope, cont)
	case ast.Seq:
		return c.compileChildList(v.Children(), scope, nav, cont)
	case ast.Alt:
		return c.compileAltBranches(v.Branches(), nav, field, func(b ast.Branch, nv bytecode.Nav, fd int, ct int) int {
			return c.compileFlatten(b.Expr(), scope, nv, fd, ct)
		}, cont)
	case ast.Supertype:
		return c.compileSupertype(v, nav, field, nil, cont)
	case ast.Quantifier:
		onPass := func(nv bytecode.Nav, ct int) int { return c.compileFlatten(v.Inner(), scope, nv, field, ct) }
		return c.compileQuantifierLoop(v.Op(), onPass, nav, cont)
	case ast.Capture:
		return c.compileCapture(v, scope, nav, field, cont)
	case ast.Anchor:
		return c.compileFlatten(v.Inner(), scope, exactNav(nav), field, cont)
	case ast.Field:
		fid := c.fieldOperand(v.Node(), v.Name())
		return c.compileFlatten(v.Value(), scope, nav, fid, cont)
	case ast.Ref:
		return c.compileRefAt(v, nav, field, cont)
	case ast.NegatedField:
		return cont
	default:
		return c.compileLeaf(e, nav, field, nil, cont)
	}
}

// compileCapture handles both value-mode and flatten-mode Captures: scope
// is the enclosing struct/union whose member this capture sets. Suppressed
// captures contribute no type and are handled separately.
//
// The compiled body is preceded by a Hint effect naming member.Type's own
// type-table index directly: an untagged Alt that shares one struct across
// branches only Sets the members the branch actually taken happened to
// reach, so the materializer's usual "next unset member" guess can land on
// the wrong member's type the moment a struct/array/union payload opens
// for a member that isn't first in declaration order. Hint sidesteps the
// guess entirely for the position that matters, letting the guess remain a
// guess everywhere else (top-level entries, array elements, and ordinary
// Tree/Seq structs, where it was always correct anyway).
func (c *compiler) compileCapture(v ast.Capture, scope *types.Type, nav bytecode.Nav, field int, cont int) int {
	if v.Suppressed() {
		return c.compileSuppressed(v.Inner(), nav, field, cont)
	}
	idx, member, ok := findMember(scope, v.Name())
	if !ok {
		return c.compileFlatten(v.Inner(), scope, nav, field, cont)
	}
	var body int
	if q, isQuant := v.Inner().(ast.Quantifier); isQuant {
		core := types.Unwrap(q)
		body = c.compileQuantifiedCapture(q, core, idx, member, nav, field, cont)
	} else {
		setStep := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffSet, Arg: idx}}, cont)
		body = c.compileAsValue(v.Inner(), member.Type, nav, field, setStep)
	}
	return c.epsilon([]bytecode.Effect{{Op: bytecode.EffHint, Arg: c.typeID(member.Type)}}, nil, body)
}

// compileSuppressed wraps inner's compilation with SuppressBegin/End, which
// the virtual machine uses to drop every effect inner produces, including
// any Node/Set coming from a capture nested further inside it.
func (c *compiler) compileSuppressed(inner ast.Expr, nav bytecode.Nav, field int, cont int) int {
	end := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffSuppressEnd}}, cont)
	body := c.compileAsValue(inner, discardType, nav, field, end)
	return c.epsilon([]bytecode.Effect{{Op: bytecode.EffSuppressBegin}}, nil, body)
}

// compileQuantifiedCapture lowers a quantified capture (`@x?`, `@xs*`,
// `@xs+`) into Arr/Push/EndArr or a two-way Null/Set, per branch. The
// repeat pass of `*`/`+` is compiled as a second copy of core, navigated
// with nextFamily(nav): once the loop's first iteration has landed on a
// sibling, every later one searches forward from there, never back from
// the parent.
func (c *compiler) compileQuantifiedCapture(q ast.Quantifier, core ast.Expr, idx int, member types.Member, nav bytecode.Nav, field int, cont int) int {
	switch q.Op() {
	case '?':
		setStep := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffSet, Arg: idx}}, cont)
		skipStep := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffNull}, {Op: bytecode.EffSet, Arg: idx}}, cont)
		tryEntry := c.compileAsValue(core, member.Type, nav, field, setStep)
		d := c.reserve()
		c.fill(d, bytecode.Step{Nav: bytecode.NavStay, Successors: []int{tryEntry, skipStep}})
		return d
	default: // '*', '+'
		endArr := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndArr}, {Op: bytecode.EffSet, Arg: idx}}, cont)

		d := c.reserve()
		pushRepeat := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffPush}}, d)
		repeatEntry := c.compileAsValue(core, member.Type, nextFamily(nav), field, pushRepeat)
		c.fill(d, bytecode.Step{Nav: bytecode.NavStay, Successors: []int{repeatEntry, endArr}})

		pushFirst := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffPush}}, d)
		firstEntry := c.compileAsValue(core, member.Type, nav, field, pushFirst)

		var body int
		if q.Op() == '*' {
			body = c.emit(bytecode.Step{Nav: bytecode.NavStay, Successors: []int{firstEntry, endArr}})
		} else {
			body = firstEntry
		}
		return c.epsilon([]bytecode.Effect{{Op: bytecode.EffArr}}, nil, body)
	}
}

// compileQuantifierLoop builds the try/loop control flow for a bare
// (uncaptured) quantifier, given onPass to compile one match attempt ending
// at the continuation it is handed.
func (c *compiler) compileQuantifierLoop(op byte, onPass func(nav bytecode.Nav, cont int) int, nav bytecode.Nav, cont int) int {
	switch op {
	case '?':
		tryEntry := onPass(nav, cont)
		d := c.reserve()
		c.fill(d, bytecode.Step{Nav: bytecode.NavStay, Successors: []int{tryEntry, cont}})
		return d
	default: // '*', '+'
		d := c.reserve()
		repeatEntry := onPass(nextFamily(nav), d)
		c.fill(d, bytecode.Step{Nav: bytecode.NavStay, Successors: []int{repeatEntry, cont}})

		firstEntry := onPass(nav, d)
		if op == '*' {
			return c.emit(bytecode.Step{Nav: bytecode.NavStay, Successors: []int{firstEntry, cont}})
		}
		return firstEntry
	}
}

// compileTreeValue lowers a Tree occupying its own Obj scope (want.Kind ==
// KindStruct) or collapsing to a bare node() (no captures anywhere
// inside).
func (c *compiler) compileTreeValue(v ast.Tree, want *types.Type, nav bytecode.Nav, field int, cont int) int {
	if want.Kind == types.KindStruct {
		endObj := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndObj}}, cont)
		return c.compileTree(v, nav, field, []bytecode.Effect{{Op: bytecode.EffObj}}, nil, want, endObj)
	}
	return c.compileTree(v, nav, field, nil, []bytecode.Effect{leafEffect(want)}, nil, cont)
}

// compileTree emits the Tree's own kind-testing Match step plus its
// children, shared by value mode (pre/post carry Obj/Node effects, scope is
// the struct being populated) and flatten mode (pre/post nil, scope is the
// enclosing one).
func (c *compiler) compileTree(v ast.Tree, nav bytecode.Nav, field int, pre, post []bytecode.Effect, scope *types.Type, cont int) int {
	kindOperand := c.kindOperandForTree(v)
	var neg []int
	for _, ch := range v.Children() {
		if nf, ok := ch.(ast.NegatedField); ok {
			neg = append(neg, c.fieldOperand(nf.Node(), nf.Name()))
		}
	}

	next := cont
	if len(v.Children()) > 0 {
		up := c.upStep(cont)
		next = c.compileChildList(v.Children(), scope, bytecode.NavDown, up)
	}

	return c.emit(bytecode.Step{
		Op: bytecode.OpMatch, Nav: nav, Kind: kindOperand, Field: field,
		NegatedFields: neg, Pre: pre, Post: post, Successors: []int{next},
	})
}

// upStep returns to the parent after a Tree's children have all matched.
func (c *compiler) upStep(next int) int {
	return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: bytecode.NavUp, UpCount: 1, Successors: []int{next}})
}

// compileChildList compiles a Tree's (or a Seq's) children left to right,
// threading nav so the first real child in source order gets startNav's
// Down/DownExact family and every later one (including every repetition of
// a quantified child) gets its Next/NextExact family. A nested Seq is
// transparent: its own first child continues the same nav sequence, and
// whatever nav would come after it is handed back out to the list that
// contains it. NegatedField entries consume no slot; they are collected by
// the caller, not compiled here.
func (c *compiler) compileChildList(children []ast.Expr, scope *types.Type, startNav bytecode.Nav, cont int) int {
	navs := make([]bytecode.Nav, len(children))
	cur := startNav
	for i, ch := range children {
		navs[i] = cur
		if _, isNeg := ch.(ast.NegatedField); !isNeg {
			cur = nextFamily(cur)
		}
	}

	next := cont
	for i := len(children) - 1; i >= 0; i-- {
		if _, isNeg := children[i].(ast.NegatedField); isNeg {
			continue
		}
		next = c.compileFlatten(children[i], scope, navs[i], 0, next)
	}
	return next
}

// compileSeqValue lowers a bare Seq occupying its own Obj scope, or
// collapsing (no Obj wrapper) when nothing inside it names a member — the
// common case being a single suppressed child, e.g. `{ (Expr) @_ } @expr`.
// A Seq with exactly one child still stands at one real tree position even
// though it groups no members, so that single-child case reports the
// position itself as the collapsed value (leafEffect on a nav step taken
// before the child's own — possibly suppressed — effects are produced);
// a Seq of several uncaptured children has no single position to report
// and just flattens, as before.
func (c *compiler) compileSeqValue(v ast.Seq, want *types.Type, nav bytecode.Nav, field int, cont int) int {
	if want.Kind == types.KindStruct {
		endObj := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndObj}}, cont)
		children := c.compileChildList(v.Children(), want, nav, endObj)
		return c.epsilon([]bytecode.Effect{{Op: bytecode.EffObj}}, nil, children)
	}
	if len(v.Children()) == 1 {
		rest := c.compileFlatten(v.Children()[0], nil, bytecode.NavStay, 0, cont)
		return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Field: field, Post: []bytecode.Effect{leafEffect(want)}, Successors: []int{rest}})
	}
	return c.compileChildList(v.Children(), nil, nav, cont)
}

// compileAltBranches builds the OR dispatch shared by Alt, tagged or not:
// an epsilon whose successors are each branch's own compilation, every one
// reached via the same nav (checkpoints restore the pre-branch cursor
// position between attempts, so repeating nav per branch is correct, not
// redundant).
func (c *compiler) compileAltBranches(branches []ast.Branch, nav bytecode.Nav, field int, compileBranch func(b ast.Branch, nav bytecode.Nav, field int, cont int) int, cont int) int {
	if len(branches) == 1 {
		return compileBranch(branches[0], nav, field, cont)
	}
	succ := make([]int, len(branches))
	for i, b := range branches {
		succ[i] = compileBranch(b, nav, field, cont)
	}
	return c.emit(bytecode.Step{Nav: bytecode.NavStay, Successors: succ})
}

// compileAltValue lowers a value-position Alt: tagged alternation produces
// a union (one Enum/EndEnum-wrapped branch per variant); untagged
// alternation produces a single struct shared by every branch (each one
// flattens into the same scope), or collapses if no branch captures
// anything.
func (c *compiler) compileAltValue(v ast.Alt, want *types.Type, nav bytecode.Nav, field int, cont int) int {
	if v.Tagged() && want.Kind == types.KindUnion {
		return c.compileTaggedAltValue(v, want, nav, field, cont)
	}
	if want.Kind == types.KindStruct {
		endObj := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndObj}}, cont)
		branches := c.compileAltBranches(v.Branches(), nav, field, func(b ast.Branch, nv bytecode.Nav, fd int, ct int) int {
			return c.compileFlatten(b.Expr(), want, nv, fd, ct)
		}, endObj)
		return c.epsilon([]bytecode.Effect{{Op: bytecode.EffObj}}, nil, branches)
	}
	return c.compileAltBranches(v.Branches(), nav, field, func(b ast.Branch, nv bytecode.Nav, fd int, ct int) int {
		return c.compileAsValue(b.Expr(), want, nv, fd, ct)
	}, cont)
}

// compileTaggedAltValue wraps each branch's compiled body with
// Enum(variant_idx)/EndEnum; variant order matches types.Infer's branch
// walk, so index i in v.Branches() always names the same variant as index
// i in want.Variants.
func (c *compiler) compileTaggedAltValue(v ast.Alt, want *types.Type, nav bytecode.Nav, field int, cont int) int {
	branches := v.Branches()
	succ := make([]int, len(branches))
	for i, b := range branches {
		variant := want.Variants[i]
		exit := c.epsilon(nil, []bytecode.Effect{{Op: bytecode.EffEndEnum}}, cont)
		body := c.compileAsValue(b.Expr(), variant.Payload, nav, field, exit)
		succ[i] = c.epsilon([]bytecode.Effect{{Op: bytecode.EffEnum, Arg: i}}, nil, body)
	}
	if len(succ) == 1 {
		return succ[0]
	}
	return c.emit(bytecode.Step{Nav: bytecode.NavStay, Successors: succ})
}

// compileSupertype lowers an a/b/c grammar supertype reference as an OR
// over its resolved member kinds, all sharing one nav (and one post-effect
// list, in value mode) since they are alternatives for the same position.
func (c *compiler) compileSupertype(v ast.Supertype, nav bytecode.Nav, field int, post []bytecode.Effect, cont int) int {
	ids := c.kindOperandsForSupertype(v)
	if len(ids) == 0 {
		return cont
	}
	if len(ids) == 1 {
		return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Kind: ids[0], Field: field, Post: post, Successors: []int{cont}})
	}
	succ := make([]int, len(ids))
	for i, id := range ids {
		succ[i] = c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Kind: id, Field: field, Post: post, Successors: []int{cont}})
	}
	return c.emit(bytecode.Step{Nav: bytecode.NavStay, Successors: succ})
}

// compileLeaf lowers a Wildcard or Lit match. Any other expr form reaching
// here (an Error node, or a NegatedField in value position) consumes no
// step and no slot.
func (c *compiler) compileLeaf(e ast.Expr, nav bytecode.Nav, field int, post []bytecode.Effect, cont int) int {
	switch v := e.(type) {
	case ast.Wildcard:
		return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Field: field, Post: post, Successors: []int{cont}})
	case ast.Lit:
		return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Kind: c.kindOperandForLit(v), Field: field, Post: post, Successors: []int{cont}})
	default:
		return cont
	}
}

// compileRefAt lowers a Ref occupying a child slot: a nav-only Match step
// (unconstrained, so it always succeeds on the first candidate it reaches)
// positions the cursor, then a Call transfers control into the callee.
// When nav is Stay (the callee is reached without needing to move, e.g. a
// def aliasing another def outright) the nav step is skipped entirely.
func (c *compiler) compileRefAt(v ast.Ref, nav bytecode.Nav, field int, cont int) int {
	n := v.Node()
	if n.ResolvedDef == cst.NoDef {
		return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: bytecode.NavStay, Kind: -1})
	}
	target := resolve.DefID(n.ResolvedDef)
	c.compileDef(target)
	call := c.emit(bytecode.Step{Op: bytecode.OpCall, RefID: int(target), Target: c.defEntry[target], ReturnTo: cont})
	if nav == bytecode.NavStay {
		return call
	}
	return c.emit(bytecode.Step{Op: bytecode.OpMatch, Nav: nav, Field: field, Successors: []int{call}})
}

// kindOperandForTree resolves a Tree's own kind to an operand: a grammar
// id in linked mode (looked up via the grammar.Links the linker recorded
// for this exact node), a string-table id otherwise.
func (c *compiler) kindOperandForTree(v ast.Tree) int {
	if c.links != nil {
		if ids := c.links.KindsOf(v.Node()); len(ids) > 0 {
			return int(ids[0])
		}
		return -1
	}
	return c.stringID(v.Kind())
}

func (c *compiler) kindOperandsForSupertype(v ast.Supertype) []int {
	if c.links != nil {
		ids := c.links.KindsOf(v.Node())
		out := make([]int, len(ids))
		for i, id := range ids {
			out[i] = int(id)
		}
		return out
	}
	out := make([]int, len(v.Kinds()))
	for i, name := range v.Kinds() {
		out[i] = c.stringID(name)
	}
	return out
}

func (c *compiler) kindOperandForLit(v ast.Lit) int {
	if c.links != nil {
		if id, ok := c.g.KindByName(v.Text()); ok {
			return int(id)
		}
		return -1
	}
	return c.stringID(v.Text())
}

// fieldOperand resolves a Field/NegatedField's name to an operand, keyed
// by the AST node the linker recorded it against.
func (c *compiler) fieldOperand(n *cst.Node, name string) int {
	if c.links != nil {
		if id, ok := c.links.FieldOf(n); ok {
			return int(id)
		}
		return -1
	}
	return c.stringID(name)
}
