// Package grammar holds the per-language tables a query is linked against:
// node-kind names, field names, the supertype relation, and the trivia
// set. The table shape mirrors the upstream contract every incremental
// parser binding (tree-sitter or otherwise) is expected to supply: a
// kind-name → id map with an is-named flag, a field-name → id map, and a
// kind → subkind relation for supertype matches.
package grammar

// KindID indexes a node-kind in a Table. Zero is never assigned to a real
// kind; it is reserved the same way the bytecode string table reserves
// entry 0, so an unresolved operand is distinguishable from kind 0.
type KindID int

// FieldID indexes a field name in a Table, with the same zero-reserved
// convention as KindID.
type FieldID int

// Table is one target grammar's linking surface.
type Table struct {
	kindNames  []string // index 0 unused
	kindNamed  []bool
	kindByName map[string]KindID

	fieldNames  []string // index 0 unused
	fieldByName map[string]FieldID

	supertypes map[KindID][]KindID
	trivia     map[KindID]bool
}

// New returns an empty table with both id spaces reserving index 0.
func New() *Table {
	return &Table{
		kindNames:   []string{""},
		kindNamed:   []bool{false},
		kindByName:  map[string]KindID{},
		fieldNames:  []string{""},
		fieldByName: map[string]FieldID{},
		supertypes:  map[KindID][]KindID{},
		trivia:      map[KindID]bool{},
	}
}

// AddKind registers a node kind, returning its existing id if already
// present.
func (t *Table) AddKind(name string, named bool) KindID {
	if id, ok := t.kindByName[name]; ok {
		return id
	}
	id := KindID(len(t.kindNames))
	t.kindNames = append(t.kindNames, name)
	t.kindNamed = append(t.kindNamed, named)
	t.kindByName[name] = id
	return id
}

// AddField registers a field name, returning its existing id if already
// present.
func (t *Table) AddField(name string) FieldID {
	if id, ok := t.fieldByName[name]; ok {
		return id
	}
	id := FieldID(len(t.fieldNames))
	t.fieldNames = append(t.fieldNames, name)
	t.fieldByName[name] = id
	return id
}

// MarkTrivia records id as a trivia kind (whitespace, comments — skipped
// under the Skip navigation directives).
func (t *Table) MarkTrivia(id KindID) { t.trivia[id] = true }

// AddSupertype records that sub is a concrete variant reachable through the
// supertype kind super, as in a grammar's "(a/b)" node-kind relation.
func (t *Table) AddSupertype(super, sub KindID) {
	t.supertypes[super] = append(t.supertypes[super], sub)
}

// KindByName looks up a kind id by its grammar name.
func (t *Table) KindByName(name string) (KindID, bool) {
	id, ok := t.kindByName[name]
	return id, ok
}

// FieldByName looks up a field id by its grammar name.
func (t *Table) FieldByName(name string) (FieldID, bool) {
	id, ok := t.fieldByName[name]
	return id, ok
}

// KindName returns the grammar name for a kind id ("" if out of range).
func (t *Table) KindName(id KindID) string {
	if int(id) < 0 || int(id) >= len(t.kindNames) {
		return ""
	}
	return t.kindNames[id]
}

// FieldName returns the grammar name for a field id ("" if out of range).
func (t *Table) FieldName(id FieldID) string {
	if int(id) < 0 || int(id) >= len(t.fieldNames) {
		return ""
	}
	return t.fieldNames[id]
}

// IsNamed reports whether a kind id denotes a named (as opposed to
// anonymous/punctuation) node.
func (t *Table) IsNamed(id KindID) bool {
	if int(id) < 0 || int(id) >= len(t.kindNamed) {
		return false
	}
	return t.kindNamed[id]
}

// IsTrivia reports whether a kind id is a trivia kind under this grammar.
func (t *Table) IsTrivia(id KindID) bool { return t.trivia[id] }

// Subtypes returns the concrete kinds reachable through a supertype kind,
// or nil if id is not a supertype.
func (t *Table) Subtypes(id KindID) []KindID { return t.supertypes[id] }

// KindCount returns the number of registered kinds, including the
// reserved zero entry.
func (t *Table) KindCount() int { return len(t.kindNames) }

// FieldCount returns the number of registered fields, including the
// reserved zero entry.
func (t *Table) FieldCount() int { return len(t.fieldNames) }
