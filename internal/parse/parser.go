// Package parse implements Plotnik's recursive-descent CST builder. It
// never fails: at every decision point it may
// commit an Error node and resume from a well-known sync set (a closing
// bracket, or a top-level "Name =" definition header), so a single call to
// Parse always returns a navigable root plus a (possibly empty) diagnostic
// list.
package parse

import (
	"github.com/termfx/plotnik/internal/cst"
	"github.com/termfx/plotnik/internal/diag"
	"github.com/termfx/plotnik/internal/lexer"
)

// Result is the outcome of parsing one query source buffer.
type Result struct {
	Root   *cst.Node
	Tokens []lexer.Token // full stream, trivia included, for lossless checks
	Diags  *diag.Bag
}

// Parse builds a CST from src. It always returns a non-nil Root.
func Parse(src []byte) Result {
	bag := &diag.Bag{}
	toks := lexer.All(src, bag)
	p := &parser{src: src, toks: toks, bag: bag}
	root := p.parseQuery()
	return Result{Root: root, Tokens: toks, Diags: bag}
}

// IsValid reports whether r's tree contains no Error node, i.e.
// Query::is_valid() from the spec.
func (r Result) IsValid() bool { return !r.Root.IsError() }

type parser struct {
	src  []byte
	toks []lexer.Token // includes trivia and a trailing EOF
	pos  int           // index into toks
	bag  *diag.Bag
}

// checkpoint is a token-stream position, cheap to save/restore.
type checkpoint int

func (p *parser) save() checkpoint { return checkpoint(p.pos) }
func (p *parser) restore(c checkpoint) { p.pos = int(c) }

// skipTrivia advances pos past any Whitespace/Comment tokens.
func (p *parser) skipTrivia() {
	for p.pos < len(p.toks) && p.toks[p.pos].Kind.IsTrivia() {
		p.pos++
	}
}

// peek returns the next significant token without consuming it.
func (p *parser) peek() lexer.Token {
	save := p.pos
	p.skipTrivia()
	t := p.toks[p.pos]
	p.pos = save
	return t
}

// peek2 returns the significant token after peek(), without consuming.
func (p *parser) peek2() lexer.Token {
	save := p.pos
	p.skipTrivia()
	p.pos++
	p.skipTrivia()
	t := p.toks[p.pos]
	p.pos = save
	return t
}

// advance consumes and returns the next significant token.
func (p *parser) advance() lexer.Token {
	p.skipTrivia()
	t := p.toks[p.pos]
	if t.Kind != lexer.EOF {
		p.pos++
	}
	return t
}

func (p *parser) text(span diag.Span) string { return string(p.src[span.Start:span.End]) }

func isUpper(s string) bool { return s != "" && s[0] >= 'A' && s[0] <= 'Z' }

// parseQuery parses the whole source: zero or more named defs followed by
// at most one unnamed entry-point expression. A query with neither is
// reported as empty.
func (p *parser) parseQuery() *cst.Node {
	root := &cst.Node{Kind: cst.KRoot}
	start := p.peek().Span.Start

	for p.atDefStart() {
		root.Children = append(root.Children, p.parseDef())
	}

	if p.peek().Kind != lexer.EOF {
		entrySpanStart := p.peek().Span.Start
		expr := p.parseExpr()
		def := &cst.Node{
			Kind:     cst.KDef,
			Text:     "",
			Children: []*cst.Node{expr},
			Span:     diag.Span{Start: entrySpanStart, End: expr.Span.End},
		}
		root.Children = append(root.Children, def)
	} else if len(root.Children) == 0 {
		p.bag.Addf(diag.StageParse, diag.SeverityError, diag.Span{Start: start, End: start}, "empty query: no entry point")
	}

	// Anything left over is unexpected trailing input; recover.
	for p.peek().Kind != lexer.EOF {
		root.Children = append(root.Children, p.errorRecover("unexpected trailing input"))
	}

	end := p.toks[len(p.toks)-1].Span.End
	root.Span = diag.Span{Start: start, End: end}
	return root
}

// atDefStart reports whether the upcoming tokens form "UpperIdent =".
func (p *parser) atDefStart() bool {
	t := p.peek()
	if t.Kind != lexer.Ident || !isUpper(p.text(t.Span)) {
		return false
	}
	return p.peek2().Kind == lexer.Equals
}

func (p *parser) parseDef() *cst.Node {
	nameTok := p.advance() // Ident
	name := p.text(nameTok.Span)
	p.expect(lexer.Equals, "expected '=' after definition name")
	expr := p.parseExpr()
	return &cst.Node{
		Kind:     cst.KDef,
		Text:     name,
		Children: []*cst.Node{expr},
		Span:     diag.Span{Start: nameTok.Span.Start, End: expr.Span.End},
	}
}

// expect consumes tok if it matches kind; otherwise records a diagnostic and
// leaves the stream positioned for the caller's recovery to take over.
func (p *parser) expect(k lexer.Kind, msg string) (lexer.Token, bool) {
	t := p.peek()
	if t.Kind == k {
		return p.advance(), true
	}
	p.bag.Addf(diag.StageParse, diag.SeverityError, t.Span, "%s (found %s)", msg, t.Kind)
	return t, false
}

// parseExpr parses one primary plus any trailing postfix quantifiers and
// captures, which may chain (e.g. "(x)* @xs" or "(x) @x :: string").
func (p *parser) parseExpr() *cst.Node {
	expr := p.parsePrimary()
	for {
		t := p.peek()
		switch t.Kind {
		case lexer.Question, lexer.Star, lexer.Plus:
			p.advance()
			op := byte(p.text(t.Span)[0])
			expr = &cst.Node{
				Kind:     cst.KQuantifier,
				QuantOp:  op,
				Children: []*cst.Node{expr},
				Span:     diag.Span{Start: expr.Span.Start, End: t.Span.End},
			}
		case lexer.At:
			p.advance()
			nameTok, ok := p.expect(lexer.Ident, "expected capture name after '@'")
			name := ""
			end := t.Span.End
			if ok {
				name = p.text(nameTok.Span)
				end = nameTok.Span.End
			}
			cap := &cst.Node{Kind: cst.KCapture, Text: name, Children: []*cst.Node{expr}}
			if p.peek().Kind == lexer.DoubleColon {
				p.advance()
				typeTok, tok := p.expect(lexer.Ident, "expected type name after '::'")
				if tok {
					end = typeTok.Span.End
					cap.Children = append(cap.Children, &cst.Node{Kind: cst.KType, Text: p.text(typeTok.Span), Span: typeTok.Span})
				}
			}
			cap.Span = diag.Span{Start: expr.Span.Start, End: end}
			expr = cap
		case lexer.Suppress:
			p.advance()
			raw := p.text(t.Span) // "@_" or "@_name"
			name := ""
			if len(raw) > 2 {
				name = raw[2:]
			}
			expr = &cst.Node{
				Kind:       cst.KCapture,
				Text:       name,
				Suppressed: true,
				Children:   []*cst.Node{expr},
				Span:       diag.Span{Start: expr.Span.Start, End: t.Span.End},
			}
		default:
			return expr
		}
	}
}

func (p *parser) parsePrimary() *cst.Node {
	t := p.peek()
	switch t.Kind {
	case lexer.Underscore:
		p.advance()
		return &cst.Node{Kind: cst.KWildcard, Span: t.Span}

	case lexer.String:
		p.advance()
		raw := p.text(t.Span)
		body := raw
		if len(raw) >= 2 {
			body = raw[1 : len(raw)-1]
		}
		return &cst.Node{Kind: cst.KLit, Text: body, Span: t.Span}

	case lexer.Dot:
		p.advance()
		inner := p.parsePrimary()
		return &cst.Node{Kind: cst.KAnchor, Children: []*cst.Node{inner}, Span: diag.Span{Start: t.Span.Start, End: inner.Span.End}}

	case lexer.Bang:
		p.advance()
		nameTok, ok := p.expect(lexer.Ident, "expected field name after '!'")
		end := t.Span.End
		name := ""
		if ok {
			name = p.text(nameTok.Span)
			end = nameTok.Span.End
		}
		return &cst.Node{Kind: cst.KNegatedField, Text: name, Span: diag.Span{Start: t.Span.Start, End: end}}

	case lexer.LParen:
		return p.parseTreeOrSupertype()

	case lexer.LBracket:
		return p.parseAlt()

	case lexer.LBrace:
		return p.parseSeq()

	case lexer.Ident:
		name := p.text(t.Span)
		if p.peek2().Kind == lexer.Colon && !isUpper(name) {
			p.advance() // ident
			p.advance() // colon
			child := p.parseExpr()
			return &cst.Node{Kind: cst.KField, Text: name, Children: []*cst.Node{child}, Span: diag.Span{Start: t.Span.Start, End: child.Span.End}}
		}
		if isUpper(name) {
			p.advance()
			return &cst.Node{Kind: cst.KRef, Text: name, Span: t.Span, ResolvedDef: cst.NoDef}
		}
		return p.errorRecover("unexpected bare identifier %q in expression position", name)

	default:
		return p.errorRecover("unexpected token %s", t.Kind)
	}
}

// parseTreeOrSupertype parses "(kind child…)", the supertype form "(a/b)",
// which never has children, or "(_)", which is a Wildcard.
func (p *parser) parseTreeOrSupertype() *cst.Node {
	open := p.advance() // '('
	if p.peek().Kind == lexer.Underscore && p.peek2().Kind == lexer.RParen {
		p.advance() // '_'
		closeTok := p.advance()
		return &cst.Node{Kind: cst.KWildcard, Span: diag.Span{Start: open.Span.Start, End: closeTok.Span.End}}
	}
	var kinds []string
	kindTok, ok := p.expect(lexer.Ident, "expected node kind name")
	if ok {
		kinds = append(kinds, p.text(kindTok.Span))
	}
	for p.peek().Kind == lexer.Slash {
		p.advance()
		kt, ok := p.expect(lexer.Ident, "expected node kind name after '/'")
		if ok {
			kinds = append(kinds, p.text(kt.Span))
		}
	}

	if len(kinds) == 1 && isUpper(kinds[0]) && p.peek().Kind == lexer.RParen {
		// "(Name)" groups a bare Ref for quantifier/capture attachment; an
		// upper-case identifier inside parens is never a grammar kind
		// (invariant 4: upper-case denotes a user def).
		closeTok := p.advance()
		return &cst.Node{Kind: cst.KRef, Text: kinds[0], ResolvedDef: cst.NoDef, Span: diag.Span{Start: open.Span.Start, End: closeTok.Span.End}}
	}

	node := &cst.Node{Kind: cst.KTree, KindNames: kinds}

	if len(kinds) > 1 {
		// Supertype form: no children permitted.
		closeTok, _ := p.expect(lexer.RParen, "expected ')' closing supertype group")
		node.Span = diag.Span{Start: open.Span.Start, End: closeTok.Span.End}
		return node
	}

	for p.peek().Kind != lexer.RParen && p.peek().Kind != lexer.EOF {
		node.Children = append(node.Children, p.parseExpr())
	}
	closeTok, ok := p.expect(lexer.RParen, "expected ')' closing tree pattern")
	end := closeTok.Span.End
	if !ok {
		end = p.recoverTo(lexer.RParen)
	}
	node.Span = diag.Span{Start: open.Span.Start, End: end}
	return node
}

// parseAlt parses "[a b c]" (untagged) or "[A: a B: b]" (tagged). Mixed
// tagging is parsed permissively here; internal/analysis rejects it, since
// mixed-mode detection is an analysis-stage concern, not a grammar-level
// one (both forms are syntactically valid branches).
func (p *parser) parseAlt() *cst.Node {
	open := p.advance() // '['
	alt := &cst.Node{Kind: cst.KAlt}
	first := true
	for p.peek().Kind != lexer.RBracket && p.peek().Kind != lexer.EOF {
		branch := p.parseAltBranch()
		if first {
			alt.Tagged = branch.Text != ""
			first = false
		}
		alt.Children = append(alt.Children, branch)
	}
	closeTok, ok := p.expect(lexer.RBracket, "expected ']' closing alternation")
	end := closeTok.Span.End
	if !ok {
		end = p.recoverTo(lexer.RBracket)
	}
	alt.Span = diag.Span{Start: open.Span.Start, End: end}
	return alt
}

func (p *parser) parseAltBranch() *cst.Node {
	t := p.peek()
	if t.Kind == lexer.Ident && isUpper(p.text(t.Span)) && p.peek2().Kind == lexer.Colon {
		p.advance() // tag
		p.advance() // colon
		expr := p.parseExpr()
		return &cst.Node{Kind: cst.KBranch, Text: p.text(t.Span), Children: []*cst.Node{expr}, Span: diag.Span{Start: t.Span.Start, End: expr.Span.End}}
	}
	expr := p.parseExpr()
	return &cst.Node{Kind: cst.KBranch, Children: []*cst.Node{expr}, Span: expr.Span}
}

func (p *parser) parseSeq() *cst.Node {
	open := p.advance() // '{'
	seq := &cst.Node{Kind: cst.KSeq}
	for p.peek().Kind != lexer.RBrace && p.peek().Kind != lexer.EOF {
		seq.Children = append(seq.Children, p.parseExpr())
	}
	closeTok, ok := p.expect(lexer.RBrace, "expected '}' closing sequence")
	end := closeTok.Span.End
	if !ok {
		end = p.recoverTo(lexer.RBrace)
	}
	seq.Span = diag.Span{Start: open.Span.Start, End: end}
	return seq
}

// errorRecover commits an Error node spanning from the current position to
// the next sync point, and advances the stream past the offending tokens.
func (p *parser) errorRecover(format string, args ...any) *cst.Node {
	t := p.peek()
	start := t.Span.Start
	if t.Kind != lexer.EOF {
		p.advance()
	}
	end := p.recoverTo(lexer.EOF)
	span := diag.Span{Start: start, End: end}
	if end <= start {
		span.End = t.Span.End
	}
	p.bag.Addf(diag.StageParse, diag.SeverityError, span, format, args...)
	return &cst.Node{Kind: cst.KError, Span: span, DiagKind: "UnexpectedToken"}
}

// recoverTo advances the stream until it reaches (without consuming) a
// token of kind until, a closing bracket, the start of a top-level
// definition, or EOF, and returns the byte offset reached.
func (p *parser) recoverTo(until lexer.Kind) int {
	for {
		t := p.peek()
		if t.Kind == lexer.EOF {
			return t.Span.Start
		}
		if t.Kind == until {
			return t.Span.Start
		}
		switch t.Kind {
		case lexer.RParen, lexer.RBracket, lexer.RBrace:
			return t.Span.Start
		}
		if p.atDefStart() {
			return t.Span.Start
		}
		p.advance()
	}
}
