package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/parse"
	"github.com/termfx/plotnik/internal/resolve"
	"github.com/termfx/plotnik/internal/types"
)

func infer(t *testing.T, src string) (*types.Table, *diag.Bag) {
	t.Helper()
	r := parse.Parse([]byte(src))
	require.True(t, r.IsValid(), "parse diags: %+v", r.Diags.All())
	q := ast.New(r.Root)
	bag := &diag.Bag{}
	rt := resolve.Resolve(q, bag)
	return types.Infer(rt, bag), bag
}

func TestFunctionSignatureType(t *testing.T) {
	src := `Func = (function_item name: (identifier) @name :: string parameters: (parameters (parameter pattern: (identifier) @param :: string)* @params)) Funcs = (source_file (Func)* @funcs)`
	tbl, bag := infer(t, src)
	require.Empty(t, bag.All())

	funcsID, _ := tbl.Resolve.Lookup("Funcs")
	top := tbl.TypeOf(funcsID)
	require.Equal(t, types.KindStruct, top.Kind)
	require.Len(t, top.Members, 1)
	funcs := top.Members[0]
	require.Equal(t, "funcs", funcs.Name)
	require.Equal(t, types.Many, funcs.Shape)
	require.Equal(t, types.KindStruct, funcs.Type.Kind)

	require.Len(t, funcs.Type.Members, 2)
	name := funcs.Type.Members[0]
	require.Equal(t, "name", name.Name)
	require.Equal(t, types.One, name.Shape)
	require.Equal(t, types.PrimString, name.Type.Primitive)

	params := funcs.Type.Members[1]
	require.Equal(t, "params", params.Name)
	require.Equal(t, types.Many, params.Shape)
	require.Len(t, params.Type.Members, 1)
	require.Equal(t, "param", params.Type.Members[0].Name)
}

func TestRecursiveUnionType(t *testing.T) {
	src := `Type = [Simple: [(type_identifier) (primitive_type)] @name :: string Generic: (generic_type type: (type_identifier) @name :: string type_arguments: (type_arguments (Type)* @args))]`
	tbl, bag := infer(t, src)
	require.Empty(t, bag.All())

	id, _ := tbl.Resolve.Lookup("Type")
	top := tbl.TypeOf(id)
	require.Equal(t, types.KindUnion, top.Kind)
	require.Len(t, top.Variants, 2)
	require.Equal(t, "Simple", top.Variants[0].Name)
	require.Equal(t, "Generic", top.Variants[1].Name)

	generic := top.Variants[1].Payload
	require.Len(t, generic.Members, 2)
	args := generic.Members[1]
	require.Equal(t, "args", args.Name)
	require.Equal(t, types.Many, args.Shape)
	require.Equal(t, types.KindNominal, args.Type.Kind)
	require.Equal(t, id, args.Type.NominalID)
}

func TestAlternationUnificationConflict(t *testing.T) {
	// S5 — "@v" pinned to int in one untagged branch, string in another;
	// both branches share one scope, so the two types must unify.
	_, bag := infer(t, `[(x) @v :: int (y) @v :: string]`)
	require.True(t, bag.HasErrors())
}

func TestSuppressiveCaptureHasNoContribution(t *testing.T) {
	// S6 — the suppressed inner capture never reaches the type.
	src := `Expr = (binary_expression left: (_) @left right: (_) @right) Q = (statement { (Expr) @_ } @expr)`
	tbl, bag := infer(t, src)
	require.Empty(t, bag.All())

	qID, _ := tbl.Resolve.Lookup("Q")
	top := tbl.TypeOf(qID)
	require.Len(t, top.Members, 1)
	require.Equal(t, "expr", top.Members[0].Name)
	require.Equal(t, types.KindPrimitive, top.Members[0].Type.Kind)
	require.Equal(t, types.PrimNode, top.Members[0].Type.Primitive)
}
