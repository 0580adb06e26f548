package cli

import (
	"context"
	"fmt"

	ts "github.com/smacker/go-tree-sitter"

	"github.com/termfx/plotnik/internal/analysis"
	"github.com/termfx/plotnik/internal/ast"
	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/compiler"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/materialize"
	"github.com/termfx/plotnik/internal/modcache"
	"github.com/termfx/plotnik/internal/parse"
	"github.com/termfx/plotnik/internal/resolve"
	"github.com/termfx/plotnik/internal/sourcetext/sitter"
	"github.com/termfx/plotnik/internal/types"
	"github.com/termfx/plotnik/internal/vm"
)

// CompileQuery runs every pipeline stage from query source text through
// linked bytecode: parse, resolve, recursion/shape analysis, grammar
// linking, type inference, and lowering. Every stage pushes into the same
// diagnostics bag rather than aborting, so one call always returns
// whatever diagnostics it found; the caller checks bag.HasErrors() before
// deciding the result is safe to execute.
func CompileQuery(querySrc []byte, g *grammar.Table) (*bytecode.Module, *diag.Bag) {
	res := parse.Parse(querySrc)
	q := ast.New(res.Root)
	rt := resolve.Resolve(q, res.Diags)
	analysis.CheckRecursion(rt, res.Diags)
	analysis.CheckShapes(rt, res.Diags)
	links := grammar.Link(rt, g, res.Diags)
	tt := types.Infer(rt, res.Diags)
	m := compiler.Compile(rt, tt, g, links, res.Diags)
	return m, res.Diags
}

// CompileCached behaves like CompileQuery but consults cache first, keyed
// by grammarName and the exact query text. A hit skips every stage above
// and returns an empty diagnostics bag, since a cached module was
// error-free when it was stored.
func CompileCached(cache *modcache.Cache, grammarName string, querySrc []byte, g *grammar.Table) (*bytecode.Module, *diag.Bag, error) {
	if cache == nil {
		m, bag := CompileQuery(querySrc, g)
		return m, bag, nil
	}

	key := modcache.Key(grammarName, string(querySrc))
	if m, ok, err := cache.Lookup(key); err != nil {
		return nil, nil, err
	} else if ok {
		return m, &diag.Bag{}, nil
	}

	m, bag := CompileQuery(querySrc, g)
	if !bag.HasErrors() {
		if err := cache.Store(key, grammarName, string(querySrc), m); err != nil {
			return m, bag, err
		}
	}
	return m, bag, nil
}

// ExecuteAgainstSource parses targetSrc with lang, runs m's entry against
// it, and materializes the resulting effect log into a typed value.
func ExecuteAgainstSource(ctx context.Context, m *bytecode.Module, entry string, lang *ts.Language, g *grammar.Table, targetSrc []byte, opts vm.Options) (any, error) {
	cur, src, err := sitter.Parse(ctx, lang, g, targetSrc)
	if err != nil {
		return nil, fmt.Errorf("parsing target source: %w", err)
	}
	ep, ok := m.Entrypoint(entry)
	if !ok {
		return nil, fmt.Errorf("no entrypoint named %q", entry)
	}
	log, err := vm.Run(m, entry, cur, g, opts)
	if err != nil {
		return nil, err
	}
	return materialize.Materialize(log, m, ep.Type, src)
}
