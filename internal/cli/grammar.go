package cli

import (
	"fmt"

	ts "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/termfx/plotnik/internal/grammar"
	"github.com/termfx/plotnik/internal/sourcetext/sitter"
)

// languages is the fixed set of grammars plotnik links against, replacing
// the teacher's plugin/registry-based per-language provider lookup with a
// direct map to the same smacker/go-tree-sitter bindings its providers
// wrapped: Plotnik links against any grammar table, not a fixed set of
// hand-written per-language providers, so there is no registry to plug
// into — just the handful of bundled languages this binary ships with.
var languages = map[string]func() *ts.Language{
	"go":         golang.GetLanguage,
	"python":     python.GetLanguage,
	"typescript": typescript.GetLanguage,
	"php":        php.GetLanguage,
}

// LoadGrammar resolves name to a tree-sitter Language and the grammar.Table
// BuildGrammar derives from it.
func LoadGrammar(name string) (*ts.Language, *grammar.Table, error) {
	fn, ok := languages[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown grammar %q (known: go, python, typescript, php)", name)
	}
	lang := fn()
	return lang, sitter.BuildGrammar(lang), nil
}
