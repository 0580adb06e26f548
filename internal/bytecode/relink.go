package bytecode

import (
	"sort"

	"github.com/termfx/plotnik/internal/grammar"
)

// Relink converts an unlinked module's string-table Kind/Field operands to
// ids from g, producing a linked module a vm.Run can execute directly. An
// already-linked module is returned unchanged. Names g has no kind or
// field for come back in unresolved — the caller decides whether an
// unresolved name is fatal (a "link against this grammar for real" call)
// or tolerable (a "check compatibility" call that just reports them).
func Relink(m *Module, g *grammar.Table) (out *Module, unresolved []string) {
	if m.Linked {
		return m, nil
	}

	linked := *m
	linked.Linked = true
	linked.Steps = make([]Step, len(m.Steps))
	copy(linked.Steps, m.Steps)

	kindSyms := map[int]bool{}
	fieldSyms := map[int]bool{}

	resolveKind := func(id int) int {
		if id == 0 {
			return 0
		}
		name := m.String(id)
		kid, ok := g.KindByName(name)
		if !ok {
			unresolved = append(unresolved, name)
			return 0
		}
		kindSyms[int(kid)] = true
		return int(kid)
	}
	resolveField := func(id int) int {
		if id == 0 {
			return 0
		}
		name := m.String(id)
		fid, ok := g.FieldByName(name)
		if !ok {
			unresolved = append(unresolved, name)
			return 0
		}
		fieldSyms[int(fid)] = true
		return int(fid)
	}

	for i, st := range linked.Steps {
		if st.Op != OpMatch {
			continue
		}
		st.Kind = resolveKind(st.Kind)
		st.Field = resolveField(st.Field)
		if len(st.NegatedFields) > 0 {
			neg := make([]int, len(st.NegatedFields))
			for j, f := range st.NegatedFields {
				neg[j] = resolveField(f)
			}
			st.NegatedFields = neg
		}
		linked.Steps[i] = st
	}

	linked.KindSymbols = sortedKeys(kindSyms)
	linked.FieldSymbols = sortedKeys(fieldSyms)
	return &linked, unresolved
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
