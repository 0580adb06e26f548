// Package compiler lowers a resolved, typed query to a linear bytecode.Module:
// a step array with labeled successors and a per-step effect list, plus the
// type and entrypoint tables a materializer needs. Compilation can target
// either an unlinked module (kind/field operands are string-table ids,
// grammar g is nil) or a linked one (operands are grammar.KindID/FieldID, g
// and links are both supplied).
package compiler

import (
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/resolve"
	"github.com/termfx/plotnik/internal/types"
)

// compiler holds the shared state one Compile call threads through every
// def: the step array under construction, the type table being built in
// lockstep with types.Table, and a string table used only in unlinked mode.
type compiler struct {
	bag   *diag.Bag
	rt    *resolve.Table
	tt    *types.Table
	g     *grammar.Table // nil in unlinked mode
	links *grammar.Links // nil in unlinked mode

	m *bytecode.Module

	strIDs  map[string]int
	typeIDs map[*types.Type]int

	defEntry []int // DefID -> entry step id, -1 until compiled
	defRet   []int // DefID -> this def's own Return step id
}

// Compile lowers every definition in rt to bytecode, using tt for member and
// variant indices. Pass g == nil for an unlinked module (kind/field operands
// are string ids); pass a non-nil g along with the grammar.Links produced by
// grammar.Link(rt, g, bag) for a linked, directly executable module.
func Compile(rt *resolve.Table, tt *types.Table, g *grammar.Table, links *grammar.Links, bag *diag.Bag) *bytecode.Module {
	c := &compiler{
		bag:      bag,
		rt:       rt,
		tt:       tt,
		g:        g,
		links:    links,
		m:        &bytecode.Module{Version: 1, Linked: g != nil, Strings: []string{""}},
		strIDs:   map[string]int{},
		typeIDs:  map[*types.Type]int{},
		defEntry: make([]int, len(rt.Defs)),
		defRet:   make([]int, len(rt.Defs)),
	}
	for i := range c.defEntry {
		c.defEntry[i] = -1
	}

	for id := range rt.Defs {
		c.registerType(resolve.DefID(id))
	}
	for id := range rt.Defs {
		c.compileDef(resolve.DefID(id))
	}
	if g != nil {
		c.buildSymbolTables()
	}

	for id, d := range rt.Defs {
		c.m.Entrypoints = append(c.m.Entrypoints, bytecode.Entrypoint{
			Name: d.Name(),
			Step: c.defEntry[id],
			Type: c.typeID(tt.TypeOf(resolve.DefID(id))),
		})
	}

	return c.m
}

// registerType walks a def's inferred type into the module's flat type
// table ahead of compiling its body, so every Member/Variant a step refers
// to already has a stable index.
func (c *compiler) registerType(id resolve.DefID) {
	c.typeID(c.tt.TypeOf(id))
}

// typeID returns t's index in the module's type table, registering it (and
// anything it structurally references) on first sight. The placeholder
// entry is recorded before recursing so a cycle through a nominal reference
// sees its own in-progress id rather than looping forever — the same
// pattern types.Infer uses for recursive defs.
func (c *compiler) typeID(t *types.Type) int {
	if id, ok := c.typeIDs[t]; ok {
		return id
	}
	id := len(c.m.Types)
	c.typeIDs[t] = id
	c.m.Types = append(c.m.Types, bytecode.TypeEntry{})

	entry := bytecode.TypeEntry{Kind: bytecode.TypeKind(t.Kind)}
	switch t.Kind {
	case types.KindPrimitive:
		entry.Primitive = t.Primitive
	case types.KindStruct:
		for _, mm := range t.Members {
			entry.Members = append(entry.Members, bytecode.Member{
				Name:  mm.Name,
				Shape: int(mm.Shape),
				Type:  c.typeID(mm.Type),
			})
		}
	case types.KindUnion:
		for _, v := range t.Variants {
			entry.Variants = append(entry.Variants, bytecode.Variant{
				Name:    v.Name,
				Payload: c.typeID(v.Payload),
			})
		}
	case types.KindNominal:
		entry.NominalName = t.NominalName
		entry.NominalID = c.typeID(c.tt.TypeOf(t.NominalID))
	}
	c.m.Types[id] = entry
	return id
}

// compileDef lowers one def's body. Every def ends in an explicit Return
// step, including the entry point: the VM's outermost invocation is treated
// as a call with a sentinel return address, so Return's behavior never
// needs a special case for "top of the program".
//
// The def's entry step id is reserved up front, before its body is
// compiled, so a recursive Ref reached while compiling that same body (a
// Call back into this def) already has a stable Target to jump to; the
// placeholder is patched into a forwarding epsilon once the real entry is
// known.
func (c *compiler) compileDef(id resolve.DefID) {
	if c.defEntry[id] != -1 {
		return
	}
	retStep := c.emit(bytecode.Step{Op: bytecode.OpReturn, RefID: int(id)})
	c.defRet[id] = retStep

	placeholder := c.reserve()
	c.defEntry[id] = placeholder

	body := c.rt.Defs[id].Body()
	entry := c.compileAsValue(body, c.tt.TypeOf(id), bytecode.NavStay, 0, retStep)
	c.fill(placeholder, bytecode.Step{Nav: bytecode.NavStay, Successors: []int{entry}})
}

// emit appends a step and returns its id.
func (c *compiler) emit(s bytecode.Step) int {
	c.m.Steps = append(c.m.Steps, s)
	return len(c.m.Steps) - 1
}

// reserve allocates a step slot to be filled in later, for constructs (loop
// decision points) that must reference their own step id.
func (c *compiler) reserve() int { return c.emit(bytecode.Step{}) }

func (c *compiler) fill(id int, s bytecode.Step) { c.m.Steps[id] = s }

// epsilon emits a Stay/unconstrained control-flow step: it always succeeds,
// runs pre then post effects, and falls through to next.
func (c *compiler) epsilon(pre, post []bytecode.Effect, next int) int {
	return c.emit(bytecode.Step{Nav: bytecode.NavStay, Pre: pre, Post: post, Successors: []int{next}})
}

func (c *compiler) stringID(s string) int {
	if id, ok := c.strIDs[s]; ok {
		return id
	}
	id := len(c.m.Strings)
	c.m.Strings = append(c.m.Strings, s)
	c.strIDs[s] = id
	return id
}

// buildSymbolTables derives the linked module's kind/field integrity tables
// directly from g, so KindSymbols[i]/FieldSymbols[i] name the grammar id i
// regardless of whether any step happens to reference it.
func (c *compiler) buildSymbolTables() {
	c.m.KindSymbols = make([]int, c.g.KindCount())
	for i := range c.m.KindSymbols {
		c.m.KindSymbols[i] = c.stringID(c.g.KindName(grammar.KindID(i)))
	}
	c.m.FieldSymbols = make([]int, c.g.FieldCount())
	for i := range c.m.FieldSymbols {
		c.m.FieldSymbols[i] = c.stringID(c.g.FieldName(grammar.FieldID(i)))
	}
}
