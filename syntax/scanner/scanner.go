// Package scanner tokenizes Typst source text. Unlike a conventional
// single-mode lexer, Scanner exposes one Scan method per grammar mode
// (ScanMarkupAtom, ScanCode, ScanMath) because the mode to use next is a
// parser decision, not a lexical one (spec §4.B: "#" enters code,
// "$...$" enters math, "[...]" re-enters markup). The low-level rune
// reader (next/peek) is adapted directly from cuelang.org/go's
// cue/scanner.Scanner.next, which only ever needs one mode.
package scanner

import (
	"unicode"
	"unicode/utf8"

	"github.com/typst-lang/typst-core/syntax/token"
)

// Token is one lexical unit: a kind, the exact source text it spans
// (so that re-concatenating every token's text reconstructs the source,
// per the lossless-parse invariant), and its byte range.
type Token struct {
	Kind       token.Kind
	Text       string
	Start, End int
}

// Scanner holds the low-level reading state over a single source buffer.
// It does not track parser mode; callers pick the Scan method that
// matches the mode they are currently in.
type Scanner struct {
	src []byte

	ch       rune
	offset   int
	rdOffset int
}

func New(src []byte) *Scanner {
	s := &Scanner{src: src}
	s.next()
	return s
}

const eof = -1

func (s *Scanner) next() {
	if s.rdOffset < len(s.src) {
		s.offset = s.rdOffset
		r, w := rune(s.src[s.rdOffset]), 1
		if r >= utf8.RuneSelf {
			r, w = utf8.DecodeRune(s.src[s.rdOffset:])
		}
		s.rdOffset += w
		s.ch = r
	} else {
		s.offset = len(s.src)
		s.ch = eof
	}
}

func (s *Scanner) peek() rune {
	if s.rdOffset < len(s.src) {
		r, _ := utf8.DecodeRune(s.src[s.rdOffset:])
		return r
	}
	return eof
}

func (s *Scanner) peekAt(n int) rune {
	off := s.rdOffset
	var r rune
	for i := 0; i <= n; i++ {
		if off >= len(s.src) {
			return eof
		}
		var w int
		r, w = utf8.DecodeRune(s.src[off:])
		off += w
	}
	return r
}

// Offset reports the scanner's current byte offset.
func (s *Scanner) Offset() int { return s.offset }

// AtEOF reports whether the scanner has consumed all input.
func (s *Scanner) AtEOF() bool { return s.ch == eof }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentCont(r rune) bool {
	return r == '_' || r == '-' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// ScanCode scans one token in code-expression mode.
func (s *Scanner) ScanCode() Token {
	start := s.offset
	switch ch := s.ch; {
	case ch == eof:
		return s.tok(token.EOF, start)
	case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
		for s.ch == ' ' || s.ch == '\t' || s.ch == '\n' || s.ch == '\r' {
			s.next()
		}
		return s.tok(token.Whitespace, start)
	case ch == '/' && s.peek() == '/':
		for s.ch != '\n' && s.ch != eof {
			s.next()
		}
		return s.tok(token.LineComment, start)
	case ch == '/' && s.peek() == '*':
		s.next()
		s.next()
		for !(s.ch == '*' && s.peek() == '/') && s.ch != eof {
			s.next()
		}
		if s.ch != eof {
			s.next()
			s.next()
		}
		return s.tok(token.BlockComment, start)
	case isIdentStart(ch):
		return s.scanIdentOrKeyword(start)
	case isDigit(ch):
		return s.scanNumber(start)
	case ch == '"':
		return s.scanString(start)
	case ch == '[':
		s.next()
		return s.tok(token.LeftBracket, start)
	case ch == ']':
		s.next()
		return s.tok(token.RightBracket, start)
	case ch == '{':
		s.next()
		return s.tok(token.LeftBrace, start)
	case ch == '}':
		s.next()
		return s.tok(token.RightBrace, start)
	case ch == '(':
		s.next()
		return s.tok(token.LeftParen, start)
	case ch == ')':
		s.next()
		return s.tok(token.RightParen, start)
	case ch == '$':
		s.next()
		return s.tok(token.Dollar, start)
	case ch == '.':
		s.next()
		if s.ch == '.' {
			s.next()
			return s.tok(token.DotDot, start)
		}
		return s.tok(token.Dot, start)
	case ch == ',':
		s.next()
		return s.tok(token.Comma, start)
	case ch == ':':
		s.next()
		return s.tok(token.Colon, start)
	case ch == ';':
		s.next()
		return s.tok(token.Semi, start)
	case ch == '?':
		s.next()
		return s.tok(token.Question, start)
	case ch == '+':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.PlusEq, start)
		}
		return s.tok(token.Plus, start)
	case ch == '-':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.MinusEq, start)
		}
		return s.tok(token.Minus, start)
	case ch == '*':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.StarEq, start)
		}
		return s.tok(token.Star, start)
	case ch == '/':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.SlashEq, start)
		}
		return s.tok(token.Slash, start)
	case ch == '=':
		s.next()
		switch s.ch {
		case '=':
			s.next()
			return s.tok(token.EqEq, start)
		case '>':
			s.next()
			return s.tok(token.Arrow, start)
		}
		return s.tok(token.Eq, start)
	case ch == '!':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.NotEq, start)
		}
		return s.tok(token.Error, start)
	case ch == '<':
		if t, ok := s.scanLabel(start); ok {
			return t
		}
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.LtEq, start)
		}
		return s.tok(token.Lt, start)
	case ch == '>':
		s.next()
		if s.ch == '=' {
			s.next()
			return s.tok(token.GtEq, start)
		}
		return s.tok(token.Gt, start)
	default:
		s.next()
		return s.tok(token.Error, start)
	}
}

func (s *Scanner) scanIdentOrKeyword(start int) Token {
	for isIdentCont(s.ch) {
		s.next()
	}
	text := string(s.src[start:s.offset])
	if kw, ok := token.Lookup(text); ok {
		return Token{Kind: kw, Text: text, Start: start, End: s.offset}
	}
	return Token{Kind: token.Ident, Text: text, Start: start, End: s.offset}
}

// scanNumber scans an int, float, or numeric-with-unit literal. Any run
// of letters or a '%' directly after the digits is taken as the unit
// suffix (pt, mm, cm, in, em, fr, deg, rad, % in Typst's
// length/angle/ratio/fraction grammar, spec §3 value kinds); the scanner
// does not check the suffix against that list.
func (s *Scanner) scanNumber(start int) Token {
	isFloat := false
	for isDigit(s.ch) {
		s.next()
	}
	if s.ch == '.' && isDigit(s.peek()) {
		isFloat = true
		s.next()
		for isDigit(s.ch) {
			s.next()
		}
	}
	if s.ch == 'e' || s.ch == 'E' {
		if d := s.peek(); isDigit(d) || ((d == '+' || d == '-') && isDigit(s.peekAt(1))) {
			isFloat = true
			s.next()
			if s.ch == '+' || s.ch == '-' {
				s.next()
			}
			for isDigit(s.ch) {
				s.next()
			}
		}
	}
	unitStart := s.offset
	if s.ch == '%' {
		s.next()
	} else {
		for unicode.IsLetter(s.ch) {
			s.next()
		}
	}
	text := string(s.src[start:s.offset])
	if s.offset > unitStart {
		return Token{Kind: token.Numeric, Text: text, Start: start, End: s.offset}
	}
	if isFloat {
		return Token{Kind: token.Float, Text: text, Start: start, End: s.offset}
	}
	return Token{Kind: token.Int, Text: text, Start: start, End: s.offset}
}

func (s *Scanner) scanString(start int) Token {
	s.next() // opening quote
	for s.ch != '"' && s.ch != eof {
		if s.ch == '\\' && s.peek() != eof {
			s.next()
		}
		s.next()
	}
	kind := token.Str
	if s.ch != '"' {
		kind = token.Error
	} else {
		s.next()
	}
	return Token{Kind: kind, Text: string(s.src[start:s.offset]), Start: start, End: s.offset}
}

func (s *Scanner) tok(k token.Kind, start int) Token {
	return Token{Kind: k, Text: string(s.src[start:s.offset]), Start: start, End: s.offset}
}

// ScanMath scans one token in math mode: mostly identifiers/numbers
// joined as atoms, shorthands, alignment points, and the closing '$'.
func (s *Scanner) ScanMath() Token {
	start := s.offset
	switch ch := s.ch; {
	case ch == eof:
		return s.tok(token.EOF, start)
	case ch == '$':
		s.next()
		return s.tok(token.Dollar, start)
	case ch == '&':
		s.next()
		return s.tok(token.MathAlignPoint, start)
	case ch == ' ' || ch == '\t' || ch == '\n':
		for s.ch == ' ' || s.ch == '\t' || s.ch == '\n' {
			s.next()
		}
		return s.tok(token.Space, start)
	case isIdentStart(ch):
		for isIdentCont(s.ch) {
			s.next()
		}
		return s.tok(token.MathIdent, start)
	case isDigit(ch):
		return s.scanNumber(start)
	case ch == '#':
		s.next()
		return s.tok(token.HashMarker, start)
	default:
		s.next()
		return s.tok(token.MathShorthand, start)
	}
}

// ScanMarkupAtom scans one token of markup. A run of plain text is
// returned as a single Text token, stopping before the next character
// that starts another markup token ('#', '$', '[', ']', '*', '_', '<',
// '\\', a newline, and the like) or at end of input.
func (s *Scanner) ScanMarkupAtom(atLineStart bool) Token {
	start := s.offset
	switch ch := s.ch; {
	case ch == eof:
		return s.tok(token.EOF, start)
	case ch == '#':
		s.next()
		return s.tok(token.HashMarker, start)
	case ch == '$':
		s.next()
		return s.tok(token.Dollar, start)
	case ch == '[':
		s.next()
		return s.tok(token.LeftBracket, start)
	case ch == ']':
		s.next()
		return s.tok(token.RightBracket, start)
	case ch == '\n' && s.peek() == '\n':
		for s.ch == '\n' {
			s.next()
		}
		return s.tok(token.Parbreak, start)
	case ch == '\n':
		s.next()
		return s.tok(token.Space, start)
	case ch == '*':
		s.next()
		return s.tok(token.Strong, start)
	case ch == '_':
		s.next()
		return s.tok(token.Emph, start)
	case ch == '=' && atLineStart:
		n := 0
		for s.ch == '=' {
			n++
			s.next()
		}
		return s.tok(token.HeadingMarker, start)
	case ch == '-' && atLineStart && (s.peek() == ' ' || s.peek() == '\t'):
		s.next()
		return s.tok(token.ListMarker, start)
	case ch == '+' && atLineStart && (s.peek() == ' ' || s.peek() == '\t'):
		s.next()
		return s.tok(token.EnumMarker, start)
	case ch == '/' && atLineStart && (s.peek() == ' ' || s.peek() == '\t'):
		s.next()
		return s.tok(token.TermMarker, start)
	case ch == '\\' && (s.peek() == '\n' || s.peek() == eof):
		s.next()
		return s.tok(token.Linebreak, start)
	case ch == '<':
		if t, ok := s.scanLabel(start); ok {
			return t
		}
		fallthrough
	default:
		// Plain text run: consume until the next special rune.
		for {
			switch s.ch {
			case eof, '#', '$', '[', ']', '*', '_', '<', '\\':
				return s.tok(token.Text, start)
			case '\n':
				return s.tok(token.Text, start)
			}
			s.next()
		}
	}
}

// scanLabel attempts to scan a "<name>" label starting at the current
// '<'. On failure it restores the scanner to its pre-call position so
// the caller can reinterpret '<' in its own mode (a comparison operator
// in code mode, plain text in markup mode).
func (s *Scanner) scanLabel(start int) (Token, bool) {
	save, saveCh, saveRd := s.offset, s.ch, s.rdOffset
	s.next() // consume '<'
	labelStart := s.offset
	for isIdentCont(s.ch) || s.ch == ':' {
		s.next()
	}
	if s.ch == '>' && s.offset > labelStart {
		s.next()
		return s.tok(token.Label, start), true
	}
	s.offset, s.ch, s.rdOffset = save, saveCh, saveRd
	return Token{}, false
}
