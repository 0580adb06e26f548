package lexer

import "github.com/termfx/plotnik/internal/diag"

// Kind identifies a token's lexical category. The set is closed: every byte
// of input produces exactly one token, including trivia and unknown bytes.
type Kind int

const (
	EOF Kind = iota
	Ident
	String
	At           // @
	DoubleColon  // ::
	Colon        // :
	Dot          // .
	Slash        // /
	Bang         // !
	LParen       // (
	RParen       // )
	LBracket     // [
	RBracket     // ]
	LBrace       // {
	RBrace       // }
	Question     // ?
	Star         // *
	Plus         // +
	Equals       // =
	Underscore   // _
	Suppress     // @_ or @_name, the distinguished suppressive-capture token
	Whitespace   // trivia
	Comment      // trivia
	ErrorToken   // unrecognized byte(s)
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case Ident:
		return "Ident"
	case String:
		return "String"
	case At:
		return "@"
	case DoubleColon:
		return "::"
	case Colon:
		return ":"
	case Dot:
		return "."
	case Slash:
		return "/"
	case Bang:
		return "!"
	case LParen:
		return "("
	case RParen:
		return ")"
	case LBracket:
		return "["
	case RBracket:
		return "]"
	case LBrace:
		return "{"
	case RBrace:
		return "}"
	case Question:
		return "?"
	case Star:
		return "*"
	case Plus:
		return "+"
	case Equals:
		return "="
	case Underscore:
		return "_"
	case Suppress:
		return "@_"
	case Whitespace:
		return "Whitespace"
	case Comment:
		return "Comment"
	case ErrorToken:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsTrivia reports whether a token kind is whitespace or comment trivia.
func (k Kind) IsTrivia() bool { return k == Whitespace || k == Comment }

// Token carries only a span into the source; text is recovered on demand
// by slicing the source bytes with that span rather than owned by the token.
type Token struct {
	Kind Kind
	Span diag.Span
}
