// Package parser implements Typst's hand-written recursive-descent parser
// (spec §4.B). It produces a lossless cst.Node tree: every byte of source
// is accounted for in some leaf, invalid fragments become cst.Leaf error
// nodes carrying a message rather than aborting the parse, and the parser
// resynchronises at the next statement or paragraph boundary after an
// error. Parsing cannot fail.
//
// The overall shape — a Parser struct wrapping one scanner.Scanner,
// building nodes bottom-up and calling reg.Assign for every node's span —
// is adapted from cuelang.org/go/cue/parser.Parser, generalized from
// CUE's single code-only grammar to Typst's three interleaved grammar
// modes (markup/code/math).
package parser

import (
	"fmt"

	"github.com/typst-lang/typst-core/syntax/cst"
	"github.com/typst-lang/typst-core/syntax/scanner"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
)

// Parse fully parses src into a CST rooted at token.SourceFile, assigning
// span IDs depth-first in source order (spec §4.A "On a full parse").
func Parse(file *span.File) *cst.Inner {
	p := &Parser{
		sc:  scanner.New(file.Text()),
		reg: file.Registry(),
		src: file.Text(),
	}
	return p.parseSourceFile()
}

// Parser holds transient recursive-descent state. It is not reentrant and
// not safe for concurrent use; a fresh Parser is created per full or
// incremental parse.
type Parser struct {
	sc  *scanner.Scanner
	reg *span.Registry
	src []byte

	// depth guards against runaway recursion on pathological or malicious
	// nesting; it is a parser-robustness bound, distinct from the
	// evaluator's call-depth budget (spec §4.F).
	depth int

	hasPeek bool
	peeked  scanner.Token

	hasCodePeek bool
	codePeeked  scanner.Token
}

const maxParseDepth = 500

func (p *Parser) enter() bool {
	p.depth++
	return p.depth <= maxParseDepth
}

func (p *Parser) leave() { p.depth-- }

func (p *Parser) assign(r span.Range) span.ID {
	return p.reg.Assign(r)
}

func (p *Parser) errorNode(start, end int, format string, args ...interface{}) *cst.Leaf {
	id := p.assign(span.Range{Start: start, End: end})
	text := ""
	if end >= start && end <= len(p.src) {
		text = string(p.src[start:end])
	}
	return cst.NewErrorLeaf(id, text, fmt.Sprintf(format, args...))
}

func (p *Parser) leaf(kind token.Kind, t scanner.Token) *cst.Leaf {
	id := p.assign(span.Range{Start: t.Start, End: t.End})
	return cst.NewLeaf(kind, id, t.Text)
}

func (p *Parser) inner(kind token.Kind, children []cst.Node) *cst.Inner {
	start, end := p.childRange(children)
	id := p.assign(span.Range{Start: start, End: end})
	return cst.NewInner(kind, id, children)
}

// childRange computes an inner node's range as the union of its children's
// already-assigned ranges, looked up from the registry (spans were
// assigned depth-first, so every child's range is already registered by
// the time its parent is built).
func (p *Parser) childRange(children []cst.Node) (start, end int) {
	first := true
	for _, c := range children {
		r, ok := p.reg.Range(c.Span())
		if !ok {
			continue
		}
		if first {
			start, end = r.Start, r.End
			first = false
			continue
		}
		if r.Start < start {
			start = r.Start
		}
		if r.End > end {
			end = r.End
		}
	}
	return start, end
}

// ---------------------------------------------------------------------
// Source file / markup
// ---------------------------------------------------------------------

func (p *Parser) parseSourceFile() *cst.Inner {
	var kids []cst.Node
	startOff := p.sc.Offset()
	kids = p.parseMarkupSeq(token.EOF)
	endOff := p.sc.Offset()
	id := p.assign(span.Range{Start: startOff, End: endOff})
	return cst.NewInner(token.SourceFile, id, kids)
}

// parseMarkupSeq parses markup content until it sees stop (typically
// token.EOF or token.RightBracket for a nested content block) and returns
// the flat list of markup-level children (text runs, emphasis, headings,
// list items, nested code/math/content, labels).
func (p *Parser) parseMarkupSeq(stop token.Kind) []cst.Node {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	var out []cst.Node
	atLineStart := true
	for {
		save := p.sc.Offset()
		t := p.peekMarkup(atLineStart)
		if t.Kind == token.EOF || t.Kind == stop {
			break
		}
		switch t.Kind {
		case token.HashMarker:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseHashExpr(t))
		case token.Dollar:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseMathBlock(t))
		case token.LeftBracket:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseContentBlock(t))
		case token.HeadingMarker:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseHeading(t, stop))
		case token.ListMarker:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseListItem(t, stop))
		case token.EnumMarker:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseEnumItem(t, stop))
		case token.TermMarker:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseTermItem(t, stop))
		case token.Label:
			p.consumeMarkup(atLineStart)
			out = append(out, p.leaf(token.Label, t))
		case token.Strong, token.Emph:
			p.consumeMarkup(atLineStart)
			out = append(out, p.parseEmphasis(t))
		case token.Parbreak, token.Space, token.Text:
			p.consumeMarkup(atLineStart)
			out = append(out, p.leaf(t.Kind, t))
		case token.RightBracket:
			// Unmatched ']': treat as an error leaf and keep going so the
			// surrounding content is not discarded (spec §4.B "Opening
			// markers must find closers; unclosed producers become
			// errors but children are kept" applies symmetrically to
			// stray closers).
			p.consumeMarkup(atLineStart)
			out = append(out, p.errorNode(t.Start, t.End, "unexpected closing bracket"))
		default:
			p.consumeMarkup(atLineStart)
			out = append(out, p.errorNode(t.Start, t.End, "unexpected token %s", t.Kind))
		}
		atLineStart = t.Kind == token.Space || t.Kind == token.Parbreak
		if p.sc.Offset() == save {
			// Safety valve: never spin without consuming input.
			break
		}
	}
	return out
}

// peekMarkup and consumeMarkup wrap the scanner's stateless ScanMarkupAtom
// with one token of lookahead, since the parser must decide how to handle
// a token before consuming it.
func (p *Parser) peekMarkup(atLineStart bool) scanner.Token {
	if !p.hasPeek {
		p.peeked = p.sc.ScanMarkupAtom(atLineStart)
		p.hasPeek = true
	}
	return p.peeked
}

func (p *Parser) consumeMarkup(atLineStart bool) scanner.Token {
	t := p.peekMarkup(atLineStart)
	p.hasPeek = false
	return t
}

func (p *Parser) parseHeading(marker scanner.Token, stop token.Kind) cst.Node {
	kids := []cst.Node{p.leaf(token.HeadingMarker, marker)}
	body := p.parseLineSeq(stop)
	kids = append(kids, body...)
	return p.inner(token.Heading, kids)
}

func (p *Parser) parseListItem(marker scanner.Token, stop token.Kind) cst.Node {
	kids := []cst.Node{p.leaf(token.ListMarker, marker)}
	body := p.parseLineSeq(stop)
	kids = append(kids, body...)
	return p.inner(token.ListItem, kids)
}

func (p *Parser) parseEnumItem(marker scanner.Token, stop token.Kind) cst.Node {
	kids := []cst.Node{p.leaf(token.EnumMarker, marker)}
	body := p.parseLineSeq(stop)
	kids = append(kids, body...)
	return p.inner(token.EnumItem, kids)
}

func (p *Parser) parseTermItem(marker scanner.Token, stop token.Kind) cst.Node {
	kids := []cst.Node{p.leaf(token.TermMarker, marker)}
	body := p.parseLineSeq(stop)
	kids = append(kids, body...)
	return p.inner(token.TermItem, kids)
}

// parseLineSeq parses markup atoms up to (not including) the next Space,
// Parbreak, stop, or EOF. Headings and list/enum/term items run to the
// end of their source line rather than to the end of the document or
// enclosing content block, unlike a bare parseMarkupSeq(stop) call.
func (p *Parser) parseLineSeq(stop token.Kind) []cst.Node {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	var out []cst.Node
	for {
		save := p.sc.Offset()
		t := p.peekMarkup(false)
		if t.Kind == token.EOF || t.Kind == stop || t.Kind == token.Space || t.Kind == token.Parbreak {
			break
		}
		switch t.Kind {
		case token.HashMarker:
			p.consumeMarkup(false)
			out = append(out, p.parseHashExpr(t))
		case token.Dollar:
			p.consumeMarkup(false)
			out = append(out, p.parseMathBlock(t))
		case token.LeftBracket:
			p.consumeMarkup(false)
			out = append(out, p.parseContentBlock(t))
		case token.Label:
			p.consumeMarkup(false)
			out = append(out, p.leaf(token.Label, t))
		case token.Strong, token.Emph:
			p.consumeMarkup(false)
			out = append(out, p.parseEmphasis(t))
		case token.RightBracket:
			p.consumeMarkup(false)
			out = append(out, p.errorNode(t.Start, t.End, "unexpected closing bracket"))
		default:
			p.consumeMarkup(false)
			out = append(out, p.leaf(t.Kind, t))
		}
		if p.sc.Offset() == save {
			break
		}
	}
	return out
}

// parseEmphasis parses a Strong/Emph span: the opening marker, body atoms
// up to a matching closing marker of the same kind (or a paragraph break,
// which always ends an unterminated span), and the closing marker if one
// was found. Reusing the marker's own token.Kind as the resulting Inner
// node's Kind is safe: cst.Node.Kind() is a plain tag with no structural
// coupling to Leaf vs Inner.
func (p *Parser) parseEmphasis(open scanner.Token) cst.Node {
	kids := []cst.Node{p.leaf(open.Kind, open)}
	var body []cst.Node
	atLineStart := false
	closed := false
	for {
		save := p.sc.Offset()
		t := p.peekMarkup(atLineStart)
		if t.Kind == token.EOF || t.Kind == token.Parbreak {
			break
		}
		if t.Kind == open.Kind {
			p.consumeMarkup(atLineStart)
			kids = append(kids, body...)
			kids = append(kids, p.leaf(open.Kind, t))
			closed = true
			break
		}
		switch t.Kind {
		case token.HashMarker:
			p.consumeMarkup(atLineStart)
			body = append(body, p.parseHashExpr(t))
		case token.Dollar:
			p.consumeMarkup(atLineStart)
			body = append(body, p.parseMathBlock(t))
		case token.LeftBracket:
			p.consumeMarkup(atLineStart)
			body = append(body, p.parseContentBlock(t))
		case token.Label:
			p.consumeMarkup(atLineStart)
			body = append(body, p.leaf(token.Label, t))
		case token.Strong, token.Emph:
			p.consumeMarkup(atLineStart)
			body = append(body, p.parseEmphasis(t))
		case token.RightBracket:
			p.consumeMarkup(atLineStart)
			body = append(body, p.errorNode(t.Start, t.End, "unexpected closing bracket"))
		default:
			p.consumeMarkup(atLineStart)
			body = append(body, p.leaf(t.Kind, t))
		}
		atLineStart = t.Kind == token.Space || t.Kind == token.Parbreak
		if p.sc.Offset() == save {
			break
		}
	}
	if !closed {
		kids = append(kids, body...)
	}
	return p.inner(open.Kind, kids)
}

func (p *Parser) parseContentBlock(open scanner.Token) cst.Node {
	kids := []cst.Node{p.leaf(token.LeftBracket, open)}
	body := p.parseMarkupSeq(token.RightBracket)
	kids = append(kids, body...)
	closeTok := p.peekMarkup(false)
	if closeTok.Kind == token.RightBracket {
		p.consumeMarkup(false)
		kids = append(kids, p.leaf(token.RightBracket, closeTok))
	} else {
		kids = append(kids, p.errorNode(closeTok.Start, closeTok.Start, "expected closing bracket"))
	}
	return p.inner(token.ContentBlock, kids)
}

// ---------------------------------------------------------------------
// Code mode
// ---------------------------------------------------------------------

// codeLookahead lets code-mode parsing share the same one-token-lookahead
// discipline as markup mode, but scanning with ScanCode instead.
func (p *Parser) peekCode() scanner.Token {
	if !p.hasCodePeek {
		p.codePeeked = p.skipTrivia(p.sc.ScanCode)
		p.hasCodePeek = true
	}
	return p.codePeeked
}

func (p *Parser) consumeCode() scanner.Token {
	t := p.peekCode()
	p.hasCodePeek = false
	return t
}

func (p *Parser) skipTrivia(scan func() scanner.Token) scanner.Token {
	for {
		t := scan()
		if t.Kind == token.Whitespace || t.Kind == token.LineComment || t.Kind == token.BlockComment {
			continue
		}
		return t
	}
}

// parseHashExpr parses whatever follows a '#' marker in markup: a keyword
// construct (let/set/show/if/for/while/import/context/return/break/
// continue) or a bare expression (typically a call or identifier).
func (p *Parser) parseHashExpr(hash scanner.Token) cst.Node {
	hashLeaf := p.leaf(token.HashMarker, hash)
	p.hasCodePeek = false // force a fresh code-mode scan right after '#'
	t := p.peekCode()
	var body cst.Node
	switch t.Kind {
	case token.KwLet:
		body = p.parseLet()
	case token.KwSet:
		body = p.parseSet()
	case token.KwShow:
		body = p.parseShow()
	case token.KwIf:
		body = p.parseIf()
	case token.KwFor:
		body = p.parseFor()
	case token.KwWhile:
		body = p.parseWhile()
	case token.KwImport, token.KwInclude:
		body = p.parseImport()
	case token.KwContext:
		body = p.parseContext()
	case token.KwReturn:
		p.consumeCode()
		if p.canStartExpr(p.peekCode()) {
			val := p.parseExpr(0)
			body = p.inner(token.ReturnStmt, []cst.Node{val})
		} else {
			body = p.inner(token.ReturnStmt, nil)
		}
	case token.KwBreak:
		p.consumeCode()
		body = p.inner(token.BreakStmt, nil)
	case token.KwContinue:
		p.consumeCode()
		body = p.inner(token.ContinueStmt, nil)
	case token.LeftBrace:
		body = p.parseCodeBlock()
	default:
		body = p.parseExpr(0)
	}
	return p.inner(token.CodeBlock, []cst.Node{hashLeaf, body})
}

func (p *Parser) canStartExpr(t scanner.Token) bool {
	switch t.Kind {
	case token.Ident, token.Int, token.Float, token.Numeric, token.Str,
		token.LeftParen, token.LeftBracket, token.LeftBrace, token.Minus,
		token.KwNot, token.KwNone, token.KwAuto, token.KwTrue, token.KwFalse,
		token.Dollar, token.KwContext, token.Label:
		return true
	default:
		return false
	}
}

func (p *Parser) parseCodeBlock() cst.Node {
	open := p.consumeCode() // '{'
	kids := []cst.Node{p.leaf(token.LeftBrace, open)}
	for {
		t := p.peekCode()
		if t.Kind == token.RightBrace || t.Kind == token.EOF {
			break
		}
		if t.Kind == token.Semi {
			p.consumeCode()
			continue
		}
		kids = append(kids, p.parseStatement())
	}
	closeTok := p.peekCode()
	if closeTok.Kind == token.RightBrace {
		p.consumeCode()
		kids = append(kids, p.leaf(token.RightBrace, closeTok))
	} else {
		kids = append(kids, p.errorNode(closeTok.Start, closeTok.Start, "expected closing brace"))
	}
	return p.inner(token.CodeBlock, kids)
}

func (p *Parser) parseStatement() cst.Node {
	t := p.peekCode()
	switch t.Kind {
	case token.KwLet:
		return p.parseLet()
	case token.KwSet:
		return p.parseSet()
	case token.KwShow:
		return p.parseShow()
	case token.KwIf:
		return p.parseIf()
	case token.KwFor:
		return p.parseFor()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwImport, token.KwInclude:
		return p.parseImport()
	case token.KwContext:
		return p.parseContext()
	case token.KwReturn:
		p.consumeCode()
		if p.canStartExpr(p.peekCode()) {
			val := p.parseExpr(0)
			return p.inner(token.ReturnStmt, []cst.Node{val})
		}
		return p.inner(token.ReturnStmt, nil)
	case token.KwBreak:
		p.consumeCode()
		return p.inner(token.BreakStmt, nil)
	case token.KwContinue:
		p.consumeCode()
		return p.inner(token.ContinueStmt, nil)
	default:
		if !p.canStartExpr(t) {
			p.consumeCode()
			return p.errorNode(t.Start, t.End, "expected semicolon or line break")
		}
		return p.parseExpr(0)
	}
}

func (p *Parser) parseLet() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwLet, kw)}
	pat := p.parsePatternOrIdent()
	kids = append(kids, pat)
	if t := p.peekCode(); t.Kind == token.LeftParen {
		// function-shorthand: let f(x) = ...
		kids = append(kids, p.parseParamList())
	}
	if t := p.peekCode(); t.Kind == token.Eq {
		p.consumeCode()
		kids = append(kids, p.parseExpr(0))
	}
	return p.inner(token.LetBinding, kids)
}

func (p *Parser) parseSet() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwSet, kw)}
	kids = append(kids, p.parseExpr(token.Ident.Precedence()+1)) // element reference
	return p.inner(token.SetRule, kids)
}

func (p *Parser) parseShow() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwShow, kw)}
	if t := p.peekCode(); t.Kind != token.Colon {
		kids = append(kids, p.parseExpr(0)) // selector
	}
	if t := p.peekCode(); t.Kind == token.Colon {
		p.consumeCode()
		kids = append(kids, p.parseExpr(0)) // transform
	}
	return p.inner(token.ShowRule, kids)
}

func (p *Parser) parseIf() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwIf, kw)}
	kids = append(kids, p.parseExpr(0))
	kids = append(kids, p.parseBranchBody())
	if t := p.peekCode(); t.Kind == token.KwElse {
		p.consumeCode()
		if p.peekCode().Kind == token.KwIf {
			kids = append(kids, p.parseIf())
		} else {
			kids = append(kids, p.parseBranchBody())
		}
	}
	return p.inner(token.IfExpr, kids)
}

// parseBranchBody parses the body of if/for/while: either a content block
// (markup mode) or a code block.
func (p *Parser) parseBranchBody() cst.Node {
	t := p.peekCode()
	switch t.Kind {
	case token.LeftBracket:
		p.consumeCode()
		p.hasPeek = false
		body := p.parseMarkupSeq(token.RightBracket)
		kids := append([]cst.Node{p.leaf(token.LeftBracket, t)}, body...)
		closeTok := p.peekMarkup(false)
		if closeTok.Kind == token.RightBracket {
			p.consumeMarkup(false)
			kids = append(kids, p.leaf(token.RightBracket, closeTok))
		}
		p.hasCodePeek = false
		return p.inner(token.ContentBlock, kids)
	case token.LeftBrace:
		return p.parseCodeBlock()
	default:
		return p.parseExpr(0)
	}
}

func (p *Parser) parseFor() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwFor, kw)}
	pat := p.parsePatternOrIdent()
	kids = append(kids, pat)
	if t := p.peekCode(); t.Kind == token.KwIn {
		p.consumeCode()
	} else {
		kids = append(kids, p.errorNode(t.Start, t.End, "expected keyword 'in'"))
	}
	kids = append(kids, p.parseExpr(0))
	kids = append(kids, p.parseBranchBody())
	return p.inner(token.ForLoop, kids)
}

func (p *Parser) parseWhile() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwWhile, kw)}
	kids = append(kids, p.parseExpr(0))
	kids = append(kids, p.parseBranchBody())
	return p.inner(token.WhileLoop, kids)
}

func (p *Parser) parseContext() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(token.KwContext, kw)}
	kids = append(kids, p.parseExpr(0))
	return p.inner(token.ContextExpr, kids)
}

func (p *Parser) parseImport() cst.Node {
	kw := p.consumeCode()
	kids := []cst.Node{p.leaf(kw.Kind, kw)}
	kids = append(kids, p.parseExpr(token.Ident.Precedence()+1)) // path/module expr
	if t := p.peekCode(); t.Kind == token.Colon {
		p.consumeCode()
		for {
			item := p.parseImportItem()
			kids = append(kids, item)
			if p.peekCode().Kind == token.Comma {
				p.consumeCode()
				continue
			}
			break
		}
	} else if t.Kind == token.KwAs {
		p.consumeCode()
		name := p.peekCode()
		if name.Kind == token.Ident {
			p.consumeCode()
			kids = append(kids, p.leaf(token.Ident, name))
		}
	}
	return p.inner(token.ImportDecl, kids)
}

func (p *Parser) parseImportItem() cst.Node {
	t := p.peekCode()
	if t.Kind != token.Ident && t.Kind != token.Star {
		p.consumeCode()
		return p.errorNode(t.Start, t.End, "expected identifier")
	}
	p.consumeCode()
	kids := []cst.Node{p.leaf(t.Kind, t)}
	if p.peekCode().Kind == token.KwAs {
		p.consumeCode()
		name := p.peekCode()
		if name.Kind == token.Ident {
			p.consumeCode()
			kids = append(kids, p.leaf(token.Ident, name))
		}
	}
	return p.inner(token.ImportItem, kids)
}

// ---------------------------------------------------------------------
// Expressions — precedence climbing (spec §4.B precedence table)
// ---------------------------------------------------------------------

func (p *Parser) parseExpr(minPrec int) cst.Node {
	if !p.enter() {
		t := p.peekCode()
		return p.errorNode(t.Start, t.End, "expression nested too deeply")
	}
	defer p.leave()

	left := p.parseUnary()
	for {
		t := p.peekCode()
		prec := t.Kind.Precedence()
		if prec == 0 || prec < minPrec {
			// "not in" composes KwNot + KwIn at the comparison tier; a bare
			// KwNot here instead enters the dedicated "not" layer.
			if t.Kind == token.KwNot && p.peekSecond().Kind == token.KwIn {
				prec = token.KwIn.Precedence()
				if prec < minPrec {
					break
				}
			} else {
				break
			}
		}
		op := p.consumeCode()
		nextMin := prec + 1
		if op.Kind.IsRightAssociative() {
			nextMin = prec
		}
		right := p.parseExpr(nextMin)
		left = p.inner(token.BinaryExpr, []cst.Node{left, p.leaf(op.Kind, op), right})
	}
	return left
}

// peekSecond provides the second token of lookahead needed to recognise
// "not in" as a single comparison operator. It scans the second token
// from a saved copy of the scanner state and restores that state
// afterwards, so the second token is scanned again when consumed.
func (p *Parser) peekSecond() scanner.Token {
	t1 := p.peekCode()
	saved := *p.sc
	p.hasCodePeek = false
	t2 := p.peekCode()
	*p.sc = saved
	p.codePeeked, p.hasCodePeek = t1, true
	return t2
}

func (p *Parser) parseUnary() cst.Node {
	t := p.peekCode()
	switch t.Kind {
	case token.Minus, token.Plus:
		p.consumeCode()
		operand := p.parseUnaryPrec()
		return p.inner(token.UnaryExpr, []cst.Node{p.leaf(t.Kind, t), operand})
	case token.KwNot:
		p.consumeCode()
		operand := p.parseExpr(token.KwNot.Precedence())
		return p.inner(token.UnaryExpr, []cst.Node{p.leaf(t.Kind, t), operand})
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

func (p *Parser) parseUnaryPrec() cst.Node {
	return p.parsePostfix(p.parsePrimary())
}

func (p *Parser) parsePostfix(expr cst.Node) cst.Node {
	for {
		t := p.peekCode()
		switch t.Kind {
		case token.Dot:
			p.consumeCode()
			name := p.peekCode()
			if name.Kind != token.Ident {
				expr = p.inner(token.FieldAccess, []cst.Node{expr, p.errorNode(name.Start, name.End, "expected identifier after '.'")})
				continue
			}
			p.consumeCode()
			expr = p.inner(token.FieldAccess, []cst.Node{expr, p.leaf(token.Ident, name)})
		case token.LeftParen:
			args := p.parseArgs()
			for p.peekCode().Kind == token.LeftBracket {
				args = p.appendTrailingContentArg(args)
			}
			expr = p.inner(token.FuncCall, []cst.Node{expr, args})
		default:
			return expr
		}
	}
}

// appendTrailingContentArg extends a just-parsed Args node with a
// trailing content-block argument, the call sugar `f(..)[content]` that
// lets markup nest directly as a call's last positional argument.
func (p *Parser) appendTrailingContentArg(args cst.Node) cst.Node {
	inner, ok := args.(*cst.Inner)
	if !ok {
		return args
	}
	block := p.parseContentBlockInCode(p.peekCode())
	kids := append(append([]cst.Node{}, inner.Children()...), block)
	return p.inner(token.Args, kids)
}

func (p *Parser) parseArgs() cst.Node {
	open := p.consumeCode() // '('
	kids := []cst.Node{p.leaf(token.LeftParen, open)}
	for {
		t := p.peekCode()
		if t.Kind == token.RightParen || t.Kind == token.EOF {
			break
		}
		if t.Kind == token.DotDot {
			p.consumeCode()
			val := p.parseExpr(0)
			kids = append(kids, p.inner(token.SpreadArg, []cst.Node{val}))
		} else if t.Kind == token.Ident && p.peekSecond().Kind == token.Colon {
			p.consumeCode()
			nameLeaf := p.leaf(token.Ident, t)
			p.consumeCode() // ':'
			val := p.parseExpr(0)
			kids = append(kids, p.inner(token.NamedArg, []cst.Node{nameLeaf, val}))
		} else {
			kids = append(kids, p.parseExpr(0))
		}
		if p.peekCode().Kind == token.Comma {
			p.consumeCode()
			continue
		}
		break
	}
	closeTok := p.peekCode()
	if closeTok.Kind == token.RightParen {
		p.consumeCode()
		kids = append(kids, p.leaf(token.RightParen, closeTok))
	} else {
		kids = append(kids, p.errorNode(closeTok.Start, closeTok.Start, "expected closing parenthesis"))
	}
	return p.inner(token.Args, kids)
}

func (p *Parser) parsePrimary() cst.Node {
	t := p.peekCode()
	switch t.Kind {
	case token.Ident:
		p.consumeCode()
		if p.peekCode().Kind == token.Arrow {
			return p.parseClosureFromIdent(t)
		}
		return p.leaf(token.Ident, t)
	case token.Int:
		p.consumeCode()
		return p.leaf(token.Int, t)
	case token.Float:
		p.consumeCode()
		return p.leaf(token.Float, t)
	case token.Numeric:
		p.consumeCode()
		return p.leaf(token.Numeric, t)
	case token.Str:
		p.consumeCode()
		return p.leaf(token.Str, t)
	case token.KwNone:
		p.consumeCode()
		return p.leaf(token.KwNone, t)
	case token.KwAuto:
		p.consumeCode()
		return p.leaf(token.KwAuto, t)
	case token.KwTrue:
		p.consumeCode()
		return p.leaf(token.KwTrue, t)
	case token.KwFalse:
		p.consumeCode()
		return p.leaf(token.KwFalse, t)
	case token.Label:
		p.consumeCode()
		return p.leaf(token.Label, t)
	case token.LeftParen:
		return p.parseParenOrClosureOrArray(t)
	case token.LeftBracket:
		return p.parseContentBlockInCode(t)
	case token.LeftBrace:
		return p.parseDictOrCodeBlock()
	case token.Dollar:
		return p.parseMathBlock(t)
	case token.KwContext:
		return p.parseContext()
	default:
		p.consumeCode()
		return p.errorNode(t.Start, t.End, "expected expression, found %s", t.Kind)
	}
}

func (p *Parser) parseContentBlockInCode(open scanner.Token) cst.Node {
	p.consumeCode()
	p.hasPeek = false
	body := p.parseMarkupSeq(token.RightBracket)
	kids := append([]cst.Node{p.leaf(token.LeftBracket, open)}, body...)
	closeTok := p.peekMarkup(false)
	if closeTok.Kind == token.RightBracket {
		p.consumeMarkup(false)
		kids = append(kids, p.leaf(token.RightBracket, closeTok))
	}
	p.hasCodePeek = false
	return p.inner(token.ContentBlock, kids)
}

func (p *Parser) parseDictOrCodeBlock() cst.Node {
	// A leading "{" in expression position is a code block that evaluates
	// to its last value, or, if it only contains `key: value, ...` pairs,
	// a dictionary constructor. We parse optimistically as a code block
	// and let the evaluator (component F) distinguish the dict-literal
	// shape the way Typst's own grammar does: a dict needs at least one
	// ':' or stands empty as (:).
	return p.parseCodeBlock()
}

func (p *Parser) parseClosureFromIdent(name scanner.Token) cst.Node {
	param := p.inner(token.Params, []cst.Node{p.inner(token.Param, []cst.Node{p.leaf(token.Ident, name)})})
	arrow := p.consumeCode()
	body := p.parseExpr(0)
	return p.inner(token.Closure, []cst.Node{param, p.leaf(token.Arrow, arrow), body})
}

func (p *Parser) parseParenOrClosureOrArray(open scanner.Token) cst.Node {
	// Look ahead far enough to disambiguate (params) => body from a
	// parenthesized expression or array/dict literal. We parse the
	// contents generically as a comma list and let the caller (arrow
	// check) decide the final shape, matching how the teacher's own
	// parser defers some ambiguity to a post-hoc reinterpretation
	// (cue/parser resolves operand ambiguity similarly via resolve.go).
	p.consumeCode()
	kids := []cst.Node{p.leaf(token.LeftParen, open)}
	for {
		t := p.peekCode()
		if t.Kind == token.RightParen || t.Kind == token.EOF {
			break
		}
		if t.Kind == token.DotDot {
			p.consumeCode()
			val := p.parseExpr(0)
			kids = append(kids, p.inner(token.SpreadArg, []cst.Node{val}))
		} else {
			kids = append(kids, p.parseExpr(0))
		}
		if p.peekCode().Kind == token.Comma {
			p.consumeCode()
			continue
		}
		break
	}
	closeTok := p.peekCode()
	if closeTok.Kind == token.RightParen {
		p.consumeCode()
		kids = append(kids, p.leaf(token.RightParen, closeTok))
	} else {
		kids = append(kids, p.errorNode(closeTok.Start, closeTok.Start, "expected closing parenthesis"))
	}
	paren := p.inner(token.Paren, kids)
	if p.peekCode().Kind == token.Arrow {
		arrow := p.consumeCode()
		params := p.inner(token.Params, kids[1:len(kids)-1])
		body := p.parseExpr(0)
		return p.inner(token.Closure, []cst.Node{params, p.leaf(token.Arrow, arrow), body})
	}
	return paren
}

func (p *Parser) parseParamList() cst.Node {
	open := p.consumeCode()
	kids := []cst.Node{p.leaf(token.LeftParen, open)}
	for {
		t := p.peekCode()
		if t.Kind == token.RightParen || t.Kind == token.EOF {
			break
		}
		kids = append(kids, p.parseOneParam())
		if p.peekCode().Kind == token.Comma {
			p.consumeCode()
			continue
		}
		break
	}
	closeTok := p.peekCode()
	if closeTok.Kind == token.RightParen {
		p.consumeCode()
		kids = append(kids, p.leaf(token.RightParen, closeTok))
	}
	return p.inner(token.Params, kids)
}

func (p *Parser) parseOneParam() cst.Node {
	if p.peekCode().Kind == token.DotDot {
		p.consumeCode()
		name := p.peekCode()
		p.consumeCode()
		return p.inner(token.SinkParam, []cst.Node{p.leaf(token.Ident, name)})
	}
	name := p.peekCode()
	p.consumeCode()
	kids := []cst.Node{p.leaf(token.Ident, name)}
	if p.peekCode().Kind == token.Colon {
		p.consumeCode()
		kids = append(kids, p.parseExpr(0))
	}
	return p.inner(token.Param, kids)
}

// parsePatternOrIdent parses a destructuring pattern or bare identifier
// for `let`/`for` bindings (spec §4.B "Destructuring patterns mirror
// constructor syntax").
func (p *Parser) parsePatternOrIdent() cst.Node {
	t := p.peekCode()
	switch t.Kind {
	case token.Ident:
		p.consumeCode()
		return p.leaf(token.Ident, t)
	case token.Underscore:
		p.consumeCode()
		return p.leaf(token.Underscore, t)
	case token.LeftParen:
		return p.parseDestructurePattern()
	default:
		p.consumeCode()
		return p.errorNode(t.Start, t.End, "expected identifier or pattern")
	}
}

func (p *Parser) parseDestructurePattern() cst.Node {
	open := p.consumeCode()
	kids := []cst.Node{p.leaf(token.LeftParen, open)}
	sinkSeen := false
	for {
		t := p.peekCode()
		if t.Kind == token.RightParen || t.Kind == token.EOF {
			break
		}
		if t.Kind == token.DotDot {
			p.consumeCode()
			if sinkSeen {
				kids = append(kids, p.errorNode(t.Start, t.End, "a pattern may contain at most one sink"))
			}
			sinkSeen = true
			var name cst.Node
			if p.peekCode().Kind == token.Ident {
				nt := p.consumeCode()
				name = p.leaf(token.Ident, nt)
			}
			item := []cst.Node{}
			if name != nil {
				item = append(item, name)
			}
			kids = append(kids, p.inner(token.DestructureItem, item))
		} else {
			kids = append(kids, p.parsePatternOrIdent())
		}
		if p.peekCode().Kind == token.Comma {
			p.consumeCode()
			continue
		}
		break
	}
	closeTok := p.peekCode()
	if closeTok.Kind == token.RightParen {
		p.consumeCode()
		kids = append(kids, p.leaf(token.RightParen, closeTok))
	}
	return p.inner(token.DestructurePattern, kids)
}

// ---------------------------------------------------------------------
// Math mode
// ---------------------------------------------------------------------

func (p *Parser) parseMathBlock(open scanner.Token) cst.Node {
	// open was already consumed by the caller's lookahead in most paths;
	// for parsePrimary's Dollar case it has not, so normalize here.
	if p.hasCodePeek && p.codePeeked.Kind == token.Dollar {
		p.consumeCode()
	} else if p.hasPeek && p.peeked.Kind == token.Dollar {
		p.consumeMarkup(false)
	}
	kids := []cst.Node{p.leaf(token.Dollar, open)}
	for {
		t := p.sc.ScanMath()
		if t.Kind == token.Dollar || t.Kind == token.EOF {
			if t.Kind == token.Dollar {
				kids = append(kids, p.leaf(token.Dollar, t))
			} else {
				kids = append(kids, p.errorNode(t.Start, t.Start, "expected closing '$'"))
			}
			break
		}
		switch t.Kind {
		case token.HashMarker:
			p.hasCodePeek = false
			kids = append(kids, p.parseHashExprMath(t))
		case token.Space:
			// skip insignificant math whitespace
		default:
			kids = append(kids, p.leaf(t.Kind, t))
		}
	}
	p.hasCodePeek = false
	p.hasPeek = false
	return p.inner(token.MathBlock, kids)
}

func (p *Parser) parseHashExprMath(hash scanner.Token) cst.Node {
	hashLeaf := p.leaf(token.HashMarker, hash)
	expr := p.parseExpr(0)
	return p.inner(token.CodeBlock, []cst.Node{hashLeaf, expr})
}
