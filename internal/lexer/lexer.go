// Package lexer turns a byte buffer into a token stream for Plotnik query
// source. It never aborts: unrecognized bytes become Error tokens with a
// span, and every byte of input is accounted for by exactly one token,
// keeping the downstream CST lossless (concatenating all token spans,
// trivia and errors included, reproduces the input range exactly).
package lexer

import (
	"unicode/utf8"

	"github.com/termfx/plotnik/internal/diag"
)

// Lexer scans a byte buffer into tokens on demand.
type Lexer struct {
	src  []byte
	pos  int
	diag *diag.Bag
}

// New creates a Lexer over src. Diagnostics for unterminated literals or
// unrecognized bytes are recorded into bag.
func New(src []byte, bag *diag.Bag) *Lexer {
	return &Lexer{src: src, diag: bag}
}

// Len returns the length of the scanned source, for span-total checks.
func (l *Lexer) Len() int { return len(l.src) }

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

// Next scans and returns the next token. At end of input it returns an EOF
// token whose span is empty at len(src). Next never returns an error value;
// lexical problems are recorded as Error-kind tokens plus a diag.Diagnostic.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.src) {
		return Token{Kind: EOF, Span: diag.Span{Start: l.pos, End: l.pos}}
	}

	start := l.pos
	b := l.src[l.pos]

	switch {
	case b == ' ' || b == '\t' || b == '\r' || b == '\n':
		l.scanWhile(func(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' })
		return Token{Kind: Whitespace, Span: diag.Span{Start: start, End: l.pos}}

	case b == ';' || b == '#':
		// Line comment, kept as trivia rather than discarded.
		l.scanWhile(func(c byte) bool { return c != '\n' })
		return Token{Kind: Comment, Span: diag.Span{Start: start, End: l.pos}}

	case b == '"' || b == '\'':
		return l.scanString(b)

	case b == '@':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '_' {
			l.pos++
			l.scanWhile(isIdentCont)
			return Token{Kind: Suppress, Span: diag.Span{Start: start, End: l.pos}}
		}
		return Token{Kind: At, Span: diag.Span{Start: start, End: l.pos}}

	case b == ':':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == ':' {
			l.pos++
			return Token{Kind: DoubleColon, Span: diag.Span{Start: start, End: l.pos}}
		}
		return Token{Kind: Colon, Span: diag.Span{Start: start, End: l.pos}}

	case b == '.':
		l.pos++
		return Token{Kind: Dot, Span: diag.Span{Start: start, End: l.pos}}
	case b == '/':
		l.pos++
		return Token{Kind: Slash, Span: diag.Span{Start: start, End: l.pos}}
	case b == '!':
		l.pos++
		return Token{Kind: Bang, Span: diag.Span{Start: start, End: l.pos}}
	case b == '(':
		l.pos++
		return Token{Kind: LParen, Span: diag.Span{Start: start, End: l.pos}}
	case b == ')':
		l.pos++
		return Token{Kind: RParen, Span: diag.Span{Start: start, End: l.pos}}
	case b == '[':
		l.pos++
		return Token{Kind: LBracket, Span: diag.Span{Start: start, End: l.pos}}
	case b == ']':
		l.pos++
		return Token{Kind: RBracket, Span: diag.Span{Start: start, End: l.pos}}
	case b == '{':
		l.pos++
		return Token{Kind: LBrace, Span: diag.Span{Start: start, End: l.pos}}
	case b == '}':
		l.pos++
		return Token{Kind: RBrace, Span: diag.Span{Start: start, End: l.pos}}
	case b == '?':
		l.pos++
		return Token{Kind: Question, Span: diag.Span{Start: start, End: l.pos}}
	case b == '*':
		l.pos++
		return Token{Kind: Star, Span: diag.Span{Start: start, End: l.pos}}
	case b == '+':
		l.pos++
		return Token{Kind: Plus, Span: diag.Span{Start: start, End: l.pos}}
	case b == '=':
		l.pos++
		return Token{Kind: Equals, Span: diag.Span{Start: start, End: l.pos}}

	case isIdentStart(b):
		l.scanWhile(isIdentCont)
		text := l.src[start:l.pos]
		if len(text) == 1 && text[0] == '_' {
			return Token{Kind: Underscore, Span: diag.Span{Start: start, End: l.pos}}
		}
		return Token{Kind: Ident, Span: diag.Span{Start: start, End: l.pos}}

	default:
		_, size := utf8.DecodeRune(l.src[l.pos:])
		if size == 0 {
			size = 1
		}
		l.pos += size
		span := diag.Span{Start: start, End: l.pos}
		if l.diag != nil {
			l.diag.Addf(diag.StageParse, diag.SeverityError, span, "unrecognized byte %q", l.src[start:l.pos])
		}
		return Token{Kind: ErrorToken, Span: span}
	}
}

func (l *Lexer) scanWhile(pred func(byte) bool) {
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) scanString(quote byte) Token {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' && l.pos+1 < len(l.src) {
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return Token{Kind: String, Span: diag.Span{Start: start, End: l.pos}}
		}
		l.pos++
	}
	span := diag.Span{Start: start, End: l.pos}
	if l.diag != nil {
		l.diag.Addf(diag.StageParse, diag.SeverityError, span, "unterminated string literal")
	}
	return Token{Kind: ErrorToken, Span: span}
}

// All scans the entire buffer into a slice, including a trailing EOF token.
// Useful for tests asserting the lossless-CST property directly on tokens.
func All(src []byte, bag *diag.Bag) []Token {
	l := New(src, bag)
	var out []Token
	for {
		t := l.Next()
		out = append(out, t)
		if t.Kind == EOF {
			return out
		}
	}
}
