package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/materialize"
	"github.com/termfx/plotnik/internal/types"
	"github.com/termfx/plotnik/internal/vm"
)

type byteSource []byte

func (b byteSource) Bytes() []byte { return b }

const kindA = 11

func TestMaterializeStructWithScalarAndArrayMembers(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types: []bytecode.TypeEntry{
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{
				{Name: "name", Shape: int(types.One), Type: 1},
				{Name: "count", Shape: int(types.Many), Type: 2},
			}},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
			{Kind: bytecode.TypePrimitive, Primitive: "node"},
		},
		KindSymbols: []int{0, 0},
	}
	log := []vm.LogEntry{
		{Op: bytecode.EffObj},
		{Op: bytecode.EffText, Start: 0, End: 3},
		{Op: bytecode.EffSet, Arg: 0},
		{Op: bytecode.EffArr},
		{Op: bytecode.EffNode, Kind: kindA, Start: 5, End: 6},
		{Op: bytecode.EffPush},
		{Op: bytecode.EffNode, Kind: kindA, Start: 7, End: 8},
		{Op: bytecode.EffPush},
		{Op: bytecode.EffEndArr},
		{Op: bytecode.EffSet, Arg: 1},
		{Op: bytecode.EffEndObj},
	}

	got, err := materialize.Materialize(log, m, 0, byteSource("abcdefghij"))
	require.NoError(t, err)
	obj, ok := got.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "abc", obj["name"])
	items, ok := obj["count"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	require.Equal(t, "f", items[0].(materialize.Node).Text)
	require.Equal(t, "h", items[1].(materialize.Node).Text)
}

func TestMaterializeDefaultsUnsetMembers(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types: []bytecode.TypeEntry{
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{
				{Name: "maybe", Shape: int(types.Optional), Type: 1},
				{Name: "many", Shape: int(types.Many1), Type: 1},
			}},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
		},
	}
	log := []vm.LogEntry{{Op: bytecode.EffObj}, {Op: bytecode.EffEndObj}}

	got, err := materialize.Materialize(log, m, 0, byteSource(""))
	require.NoError(t, err)
	obj := got.(map[string]any)
	require.Nil(t, obj["maybe"])
	require.Equal(t, []any{}, obj["many"])
}

func TestMaterializeDereferencesNominalMember(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types: []bytecode.TypeEntry{
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{{Name: "inner", Shape: int(types.One), Type: 1}}},
			{Kind: bytecode.TypeNominal, NominalName: "B", NominalID: 2},
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{{Name: "x", Shape: int(types.One), Type: 3}}},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
		},
	}
	log := []vm.LogEntry{
		{Op: bytecode.EffObj},
		{Op: bytecode.EffObj},
		{Op: bytecode.EffText, Start: 0, End: 1},
		{Op: bytecode.EffSet, Arg: 0},
		{Op: bytecode.EffEndObj},
		{Op: bytecode.EffSet, Arg: 0},
		{Op: bytecode.EffEndObj},
	}

	got, err := materialize.Materialize(log, m, 0, byteSource("z"))
	require.NoError(t, err)
	outer := got.(map[string]any)
	inner := outer["inner"].(map[string]any)
	require.Equal(t, "z", inner["x"])
}

func TestMaterializeTaggedUnionPicksVariant(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types: []bytecode.TypeEntry{
			{Kind: bytecode.TypeUnion, Variants: []bytecode.Variant{
				{Name: "Foo", Payload: 1},
				{Name: "Bar", Payload: 2},
			}},
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{{Name: "a", Shape: int(types.One), Type: 3}}},
			{Kind: bytecode.TypeStruct},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
		},
	}
	log := []vm.LogEntry{
		{Op: bytecode.EffEnum, Arg: 1},
		{Op: bytecode.EffObj},
		{Op: bytecode.EffEndObj},
		{Op: bytecode.EffEndEnum},
	}

	got, err := materialize.Materialize(log, m, 0, byteSource(""))
	require.NoError(t, err)
	tagged := got.(materialize.Tagged)
	require.Equal(t, "Bar", tagged.Tag)
	require.Equal(t, map[string]any{}, tagged.Value)
}

func TestMaterializePointConversionAcrossLines(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types:   []bytecode.TypeEntry{{Kind: bytecode.TypePrimitive, Primitive: "node"}},
	}
	src := byteSource("line1\nline2\nline3")
	// "line3" starts at offset 12; offset 13 is its second character.
	log := []vm.LogEntry{{Op: bytecode.EffNode, Kind: kindA, Start: 13, End: 14}}

	got, err := materialize.Materialize(log, m, 0, src)
	require.NoError(t, err)
	n := got.(materialize.Node)
	require.Equal(t, materialize.Point{Row: 2, Col: 1}, n.Start)
}

func TestMaterializeRejectsUnbalancedLog(t *testing.T) {
	m := &bytecode.Module{Strings: []string{""}, Types: []bytecode.TypeEntry{{Kind: bytecode.TypeStruct}}}
	log := []vm.LogEntry{{Op: bytecode.EffEndObj}}

	_, err := materialize.Materialize(log, m, 0, byteSource(""))
	require.ErrorIs(t, err, diag.ErrMalformedLog)
}

// An untagged Alt with distinctly-named branches ("first" :: string,
// "second" :: struct{nested}) shares one struct across both branches. When
// the branch taken at runtime is the one that fills "second" rather than
// "first", a struct-shaped value opens for a member that isn't first in
// declaration order; without the compiler's Hint effect naming its type
// directly, expectedType's "next unset member" guess would still be
// pointing at "first"'s string type and EffObj would reject it.
func TestMaterializeUntaggedAltNonFirstBranchStructCapture(t *testing.T) {
	m := &bytecode.Module{
		Strings: []string{""},
		Types: []bytecode.TypeEntry{
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{
				{Name: "first", Shape: int(types.One), Type: 1},
				{Name: "second", Shape: int(types.One), Type: 2},
			}},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
			{Kind: bytecode.TypeStruct, Members: []bytecode.Member{
				{Name: "nested", Shape: int(types.One), Type: 3},
			}},
			{Kind: bytecode.TypePrimitive, Primitive: "string"},
		},
	}
	log := []vm.LogEntry{
		{Op: bytecode.EffObj},
		{Op: bytecode.EffHint, Arg: 2},
		{Op: bytecode.EffObj},
		{Op: bytecode.EffText, Start: 0, End: 1},
		{Op: bytecode.EffSet, Arg: 0},
		{Op: bytecode.EffEndObj},
		{Op: bytecode.EffSet, Arg: 1},
		{Op: bytecode.EffEndObj},
	}

	got, err := materialize.Materialize(log, m, 0, byteSource("z"))
	require.NoError(t, err)
	outer := got.(map[string]any)
	require.Nil(t, outer["first"])
	second := outer["second"].(map[string]any)
	require.Equal(t, "z", second["nested"])
}
