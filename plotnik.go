// Package plotnik is the small embedder-facing surface over the compiler
// pipeline and VM housed under internal/: a Module type, diagnostics, and
// the handful of functions an external caller needs to compile and run a
// query without reaching into internal/ packages directly.
package plotnik

import (
	"context"

	ts "github.com/smacker/go-tree-sitter"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/cli"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/vm"
)

// Module is a compiled, linked query, ready to Run against source parsed
// with the same grammar it was linked against.
type Module = bytecode.Module

// Diagnostic and Bag are the uniform diagnostic payload every pipeline
// stage reports into.
type Diagnostic = diag.Diagnostic
type Bag = diag.Bag

// Options bounds one Run's fuel and cancellation.
type Options = vm.Options

// Grammar is a linked target grammar's kind/field/supertype table, plus
// the tree-sitter Language it was derived from.
type Grammar struct {
	Lang  *ts.Language
	Table *grammar.Table
}

// LoadGrammar resolves a grammar by name: "go", "python", "typescript", or
// "php".
func LoadGrammar(name string) (Grammar, error) {
	lang, g, err := cli.LoadGrammar(name)
	if err != nil {
		return Grammar{}, err
	}
	return Grammar{Lang: lang, Table: g}, nil
}

// Compile parses, resolves, analyzes, links, and lowers a query to a
// linked Module. Diagnostics accumulate in the returned Bag regardless of
// whether compilation succeeded; check Bag.HasErrors() before Running.
func Compile(querySrc []byte, g Grammar) (*Module, *Bag) {
	return cli.CompileQuery(querySrc, g.Table)
}

// Run executes m's named entrypoint ("" for the query's own entry point)
// against targetSrc, parsed with g, and materializes the resulting effect
// log into a typed value.
func Run(ctx context.Context, m *Module, entrypoint string, g Grammar, targetSrc []byte, opts Options) (any, error) {
	return cli.ExecuteAgainstSource(ctx, m, entrypoint, g.Lang, g.Table, targetSrc, opts)
}
