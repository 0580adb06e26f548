package cli_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/cli"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/materialize"
	"github.com/termfx/plotnik/internal/vm"
)

// runScenario drives a query source through the full compile pipeline
// against g, runs it against root via a fake cursor, and materializes the
// result. t.Fatal on any compile diagnostic or run error, since every
// scenario here is expected to succeed outright.
func runScenario(t *testing.T, querySrc string, g *grammar.Table, entry string, root *fakeNode, src []byte) any {
	t.Helper()
	m, bag := cli.CompileQuery([]byte(querySrc), g)
	require.False(t, bag.HasErrors(), "%+v", bag.All())

	ep, ok := m.Entrypoint(entry)
	require.True(t, ok, "no entrypoint named %q", entry)

	cur := &fakeCursor{root: root, node: root}
	log, err := vm.Run(m, entry, cur, g, vm.Options{})
	require.NoError(t, err)

	val, err := materialize.Materialize(log, m, ep.Type, fakeSource{buf: src})
	require.NoError(t, err)
	return val
}

// TestScenarioFunctionSignature is S1: a named def nested inside a
// repeated entry point, mixing a plain string capture with a repeated
// struct-shaped one.
func TestScenarioFunctionSignature(t *testing.T) {
	g := grammar.New()
	kSourceFile := int(g.AddKind("source_file", true))
	kFunctionItem := int(g.AddKind("function_item", true))
	kIdentifier := int(g.AddKind("identifier", true))
	kParameters := int(g.AddKind("parameters", true))
	kParameter := int(g.AddKind("parameter", true))
	fName := int(g.AddField("name"))
	fParameters := int(g.AddField("parameters"))
	fPattern := int(g.AddField("pattern"))

	src := []byte("fn set(key: String, val: i32) {}")
	// fn set(key: String, val: i32) {}
	// 0123456789...
	// "set" = [3,6); "key" = [7,10); "val" = [20,23)
	root := node(kSourceFile, 0, 0, len(src),
		node(kFunctionItem, 0, 0, len(src),
			node(kIdentifier, fName, 3, 6),
			node(kParameters, fParameters, 6, 29,
				node(kParameter, 0, 7, 17,
					node(kIdentifier, fPattern, 7, 10),
				),
				node(kParameter, 0, 20, 28,
					node(kIdentifier, fPattern, 20, 23),
				),
			),
		),
	)

	query := `Func = (function_item name: (identifier) @name :: string parameters: (parameters (parameter pattern: (identifier) @param :: string)* @params)) ` +
		`Funcs = (source_file (Func)* @funcs)`

	val := runScenario(t, query, g, "Funcs", root, src)

	funcs, ok := val.(map[string]any)
	require.True(t, ok, "%#v", val)
	items, ok := funcs["funcs"].([]any)
	require.True(t, ok, "%#v", funcs)
	require.Len(t, items, 1)

	fn, ok := items[0].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "set", fn["name"])

	params, ok := fn["params"].([]any)
	require.True(t, ok)
	require.Len(t, params, 2)
	p0, _ := params[0].(map[string]any)
	p1, _ := params[1].(map[string]any)
	require.Equal(t, "key", p0["param"])
	require.Equal(t, "val", p1["param"])
}

// TestScenarioRecursiveGenericType is S2: a self-referential tagged union
// nested three levels deep through a real Call/Return cycle.
func TestScenarioRecursiveGenericType(t *testing.T) {
	g := grammar.New()
	kTypeIdentifier := int(g.AddKind("type_identifier", true))
	g.AddKind("primitive_type", true) // registered so the Simple variant's alternative kind resolves during linking
	kGenericType := int(g.AddKind("generic_type", true))
	kTypeArguments := int(g.AddKind("type_arguments", true))
	fType := int(g.AddField("type"))
	fTypeArguments := int(g.AddField("type_arguments"))

	src := []byte("Option<Vec<String>>")
	// O p t i o n < V  e  c  <  S  t  r  i  n  g  >  >
	// 0 1 2 3 4 5 6 7  8  9  10 11 ...
	// "Option" = [0,6); "Vec" = [7,10); "String" = [11,17)
	stringID := node(kTypeIdentifier, 0, 11, 17)
	vecTypeArgs := node(kTypeArguments, fTypeArguments, 10, 18, stringID)
	vecGeneric := node(kGenericType, 0, 7, 18,
		node(kTypeIdentifier, fType, 7, 10),
		vecTypeArgs,
	)
	optionTypeArgs := node(kTypeArguments, fTypeArguments, 6, 20, vecGeneric)
	root := node(kGenericType, 0, 0, 20,
		node(kTypeIdentifier, fType, 0, 6),
		optionTypeArgs,
	)

	query := `Type = [Simple: [(type_identifier) (primitive_type)] @name :: string ` +
		`Generic: (generic_type type: (type_identifier) @name :: string type_arguments: (type_arguments (Type)* @args))]`

	val := runScenario(t, query, g, "Type", root, src)

	outer, ok := val.(materialize.Tagged)
	require.True(t, ok, "%#v", val)
	require.Equal(t, "Generic", outer.Tag)

	outerVal, ok := outer.Value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Option", outerVal["name"])

	outerArgs, ok := outerVal["args"].([]any)
	require.True(t, ok)
	require.Len(t, outerArgs, 1)

	mid, ok := outerArgs[0].(materialize.Tagged)
	require.True(t, ok)
	require.Equal(t, "Generic", mid.Tag)
	midVal, ok := mid.Value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Vec", midVal["name"])

	midArgs, ok := midVal["args"].([]any)
	require.True(t, ok)
	require.Len(t, midArgs, 1)

	inner, ok := midArgs[0].(materialize.Tagged)
	require.True(t, ok)
	require.Equal(t, "Simple", inner.Tag)
	innerVal, ok := inner.Value.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "String", innerVal["name"])
}

// TestScenarioSuppressiveCapture is S6: a suppressed nested capture
// contributes no members, but the outer capture around it still reports
// the matched position as a bare Node.
func TestScenarioSuppressiveCapture(t *testing.T) {
	g := grammar.New()
	kStatement := int(g.AddKind("statement", true))
	kBinaryExpression := int(g.AddKind("binary_expression", true))
	kIdentifier := int(g.AddKind("identifier", true))
	fLeft := int(g.AddField("left"))
	fRight := int(g.AddField("right"))

	src := []byte("a + b;")
	root := node(kStatement, 0, 0, len(src),
		node(kBinaryExpression, 0, 0, 5,
			node(kIdentifier, fLeft, 0, 1),
			node(kIdentifier, fRight, 4, 5),
		),
	)

	query := `Expr = (binary_expression left: (_) @left right: (_) @right) ` +
		`Q = (statement { (Expr) @_ } @expr)`

	val := runScenario(t, query, g, "Q", root, src)

	top, ok := val.(map[string]any)
	require.True(t, ok, "%#v", val)

	expr, ok := top["expr"].(materialize.Node)
	require.True(t, ok, "%#v", top["expr"])
	require.Equal(t, "binary_expression", expr.Kind)
	require.NotContains(t, top, "left")
	require.NotContains(t, top, "right")
}
