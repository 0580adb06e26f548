package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/lexer"
)

func TestLosslessSpans(t *testing.T) {
	src := []byte(`Func = (function_item name: (identifier) @name :: string) ; trailing comment`)
	bag := &diag.Bag{}
	toks := lexer.All(src, bag)
	require.NotEmpty(t, toks)

	for i := 1; i < len(toks); i++ {
		require.Equal(t, toks[i-1].Span.End, toks[i].Span.Start, "token %d does not abut token %d", i-1, i)
	}
	require.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
	require.Equal(t, len(src), toks[len(toks)-1].Span.Start)
}

func TestSuppressiveCaptureToken(t *testing.T) {
	bag := &diag.Bag{}
	toks := lexer.All([]byte(`@_ @_inner @name`), bag)

	var kinds []lexer.Kind
	for _, tk := range toks {
		if tk.Kind == lexer.Whitespace {
			continue
		}
		kinds = append(kinds, tk.Kind)
	}
	require.Equal(t, []lexer.Kind{lexer.Suppress, lexer.Suppress, lexer.At, lexer.Ident, lexer.EOF}, kinds)
}

func TestUnknownByteNeverAborts(t *testing.T) {
	bag := &diag.Bag{}
	toks := lexer.All([]byte("(a \x01 b)"), bag)
	require.NotEmpty(t, bag.All())
	require.Equal(t, lexer.EOF, toks[len(toks)-1].Kind)
}

func TestUnterminatedStringRecovers(t *testing.T) {
	bag := &diag.Bag{}
	toks := lexer.All([]byte(`"unterminated`), bag)
	require.Equal(t, lexer.ErrorToken, toks[0].Kind)
	require.Equal(t, lexer.EOF, toks[1].Kind)
	require.True(t, bag.HasErrors())
}

func TestWildcardUnderscore(t *testing.T) {
	bag := &diag.Bag{}
	toks := lexer.All([]byte(`_ _name`), bag)
	require.Equal(t, lexer.Underscore, toks[0].Kind)
	require.Equal(t, lexer.Ident, toks[2].Kind) // index 1 is whitespace
}
