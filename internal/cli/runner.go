// Package cli is the thin driver SPEC_FULL names: read a query, a target
// grammar, and source files, run the full pipeline, and print diagnostics
// or a typed result, the way the teacher's internal/cli drives
// model.Config through its manipulator/writer stages.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/termfx/plotnik/internal/bytecode"
	"github.com/termfx/plotnik/internal/config"
	"github.com/termfx/plotnik/internal/modcache"
	"github.com/termfx/plotnik/internal/vm"
)

// Runner drives one plotnik invocation end to end against a resolved
// Config, the way the teacher's Runner drives one invocation against a
// model.Config.
type Runner struct {
	Cfg *config.Config
}

func (r *Runner) queryBytes() ([]byte, error) {
	if r.Cfg.QueryFile != "" {
		return os.ReadFile(r.Cfg.QueryFile)
	}
	return []byte(r.Cfg.Query), nil
}

func (r *Runner) openCache() (*modcache.Cache, error) {
	if r.Cfg.CachePath == "" {
		return nil, nil
	}
	return modcache.Open(r.Cfg.CachePath)
}

// Check runs the pipeline through type inference and grammar linking and
// prints diagnostics only: "does this query parse, resolve, and
// type-check against this grammar."
func (r *Runner) Check() int {
	if err := r.Cfg.RequireQuery(); err != nil {
		PrintFatal(err)
		return 1
	}
	q, err := r.queryBytes()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	_, g, err := LoadGrammar(r.Cfg.Grammar)
	if err != nil {
		PrintFatal(err)
		return 1
	}

	_, bag := CompileQuery(q, g)
	PrintDiagnostics(bag, r.Cfg.JSON)
	if bag.HasErrors() {
		return 1
	}
	return 0
}

// Compile runs the full pipeline and writes the resulting bytecode
// module's encoded form to stdout.
func (r *Runner) Compile() int {
	if err := r.Cfg.RequireQuery(); err != nil {
		PrintFatal(err)
		return 1
	}
	q, err := r.queryBytes()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	_, g, err := LoadGrammar(r.Cfg.Grammar)
	if err != nil {
		PrintFatal(err)
		return 1
	}

	m, bag := CompileQuery(q, g)
	PrintDiagnostics(bag, r.Cfg.JSON)
	if bag.HasErrors() {
		return 1
	}

	enc, err := m.Encode()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	os.Stdout.Write(enc)
	return 0
}

// Link reads an unlinked bytecode module from path and relinks it against
// Cfg.Grammar, writing the re-encoded linked module to stdout.
func (r *Runner) Link(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		PrintFatal(err)
		return 1
	}
	m, err := bytecode.Decode(data)
	if err != nil {
		PrintFatal(err)
		return 1
	}

	_, g, err := LoadGrammar(r.Cfg.Grammar)
	if err != nil {
		PrintFatal(err)
		return 1
	}

	linked, unresolved := bytecode.Relink(m, g)
	if len(unresolved) > 0 {
		PrintFatal(fmt.Errorf("unresolved against grammar %q: %v", r.Cfg.Grammar, unresolved))
		return 1
	}

	enc, err := linked.Encode()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	os.Stdout.Write(enc)
	return 0
}

// Run compiles (consulting the module cache, if configured) and executes
// the query against Cfg.SourceFile, or every file Cfg.Batch expands to,
// printing each materialized result in turn.
func (r *Runner) Run() int {
	if err := r.Cfg.RequireQuery(); err != nil {
		PrintFatal(err)
		return 1
	}
	if err := r.Cfg.RequireSource(); err != nil {
		PrintFatal(err)
		return 1
	}
	q, err := r.queryBytes()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	lang, g, err := LoadGrammar(r.Cfg.Grammar)
	if err != nil {
		PrintFatal(err)
		return 1
	}

	cache, err := r.openCache()
	if err != nil {
		PrintFatal(err)
		return 1
	}
	if cache != nil {
		defer cache.Close()
	}

	m, bag, err := CompileCached(cache, r.Cfg.Grammar, q, g)
	if err != nil {
		PrintFatal(err)
		return 1
	}
	PrintDiagnostics(bag, r.Cfg.JSON)
	if bag.HasErrors() {
		return 1
	}

	targets := []string{r.Cfg.SourceFile}
	if r.Cfg.Batch != "" {
		targets, err = ExpandBatch(r.Cfg.Batch)
		if err != nil {
			PrintFatal(err)
			return 1
		}
	}

	opts := vm.Options{ExecFuel: r.Cfg.ExecFuel, RecursionFuel: r.Cfg.RecursionFuel}

	exit := 0
	for _, path := range targets {
		src, err := os.ReadFile(path)
		if err != nil {
			PrintFatal(fmt.Errorf("%s: %w", path, err))
			exit = 1
			continue
		}
		val, err := ExecuteAgainstSource(context.Background(), m, r.Cfg.Entrypoint, lang, g, src, opts)
		if err != nil {
			PrintFatal(fmt.Errorf("%s: %w", path, err))
			exit = 1
			continue
		}
		if err := r.printResultOrDiff(path, val); err != nil {
			PrintFatal(err)
			exit = 1
		}
	}
	return exit
}

func (r *Runner) printResultOrDiff(path string, val any) error {
	if r.Cfg.DiffWith == "" {
		return PrintResult(val, r.Cfg.JSON)
	}

	prev, err := os.ReadFile(r.Cfg.DiffWith)
	if err != nil {
		return err
	}
	cur, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return err
	}
	diff, err := RenderDiff(string(prev), string(cur), path)
	if err != nil {
		return err
	}
	fmt.Print(diff)
	return nil
}
