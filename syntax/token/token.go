// Package token defines the closed enumeration of syntax-node kinds shared
// by the lexer, parser, and AST view (spec §3 "Syntax node (CST)", §4.B).
//
// The three-mode structure (Markup, Code, Math) mirrors how
// cuelang.org/go/cue/token enumerates a single flat token set for CUE, but
// Typst's CST additionally distinguishes an Inner/Leaf shape and an error
// kind that must itself be representable, so Kind carries a Class used by
// the cst package to decide how to print and walk a node.
package token

import "fmt"

// Class partitions Kind values by the grammar mode that produces them,
// plus the two structural classes (Inner composite nodes, and Error nodes
// that still participate in the tree per spec §3).
type Class uint8

const (
	ClassMarkup Class = iota
	ClassCode
	ClassMath
	ClassStructural // Inner composite node kinds shared across modes
	ClassError
)

// Kind is a syntax-node kind. Leaf kinds carry raw source text; Inner kinds
// group children. The set is closed: the parser never invents kinds at
// runtime, so kinds are a safe dimension to switch over exhaustively.
type Kind uint16

const (
	// Structural
	Error Kind = iota // carries a diagnostic message; still has a span and participates in highlighting
	EOF
	Whitespace
	LineComment
	BlockComment

	// Markup leaves
	Text
	Space
	Parbreak
	Linebreak
	SmartQuote
	Strong
	Emph
	HeadingMarker
	ListMarker
	EnumMarker
	TermMarker
	RefMarker
	Label
	HashMarker // '#' entering code mode

	// Math leaves
	MathIdent
	MathShorthand
	MathAlignPoint

	// Shared punctuation / delimiters
	LeftBrace
	RightBrace
	LeftBracket
	RightBracket
	LeftParen
	RightParen
	Dollar

	// Code leaves
	Ident
	Underscore
	Int
	Float
	Numeric // number with a unit suffix, e.g. 1.2em, 3pt, 4deg, 50%, 2fr
	Str
	RawDelim

	// Code keywords
	KwLet
	KwSet
	KwShow
	KwIf
	KwElse
	KwFor
	KwIn
	KwWhile
	KwBreak
	KwContinue
	KwReturn
	KwImport
	KwInclude
	KwAs
	KwContext
	KwNone
	KwAuto
	KwTrue
	KwFalse
	KwNot
	KwAnd
	KwOr
	KwFunc // "=>" closures use Arrow instead; this is for named fn literals if ever surfaced

	// Operators
	Plus
	Minus
	Star
	Slash
	Eq
	EqEq
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	PlusEq
	MinusEq
	StarEq
	SlashEq
	Arrow // "=>"
	Dot
	DotDot // spread ".."
	Comma
	Colon
	Semi
	Question

	// Composite / structural node kinds (Inner)
	SourceFile
	MarkupBlock
	CodeBlock
	ContentBlock
	MathBlock
	Heading
	ListItem
	EnumItem
	TermItem
	RefExpr
	LabelExpr
	Strophe // paragraph grouping

	Paren
	Array
	Dict
	FuncCall
	Args
	NamedArg
	SpreadArg
	UnaryExpr
	BinaryExpr
	FieldAccess
	IndexExpr
	Closure
	Params
	Param
	SinkParam
	LetBinding
	SetRule
	ShowRule
	IfExpr
	ForLoop
	WhileLoop
	ImportDecl
	ImportItem
	ContextExpr
	DestructurePattern
	DestructureItem
	ReturnStmt
	BreakStmt
	ContinueStmt
	WithExpr

	kindCount
)

var kindNames = [kindCount]string{
	Error:         "error",
	EOF:           "eof",
	Whitespace:    "whitespace",
	LineComment:   "line-comment",
	BlockComment:  "block-comment",
	Text:          "text",
	Space:         "space",
	Parbreak:      "parbreak",
	Linebreak:     "linebreak",
	SmartQuote:    "smart-quote",
	Strong:        "strong",
	Emph:          "emph",
	HeadingMarker: "heading-marker",
	ListMarker:    "list-marker",
	EnumMarker:    "enum-marker",
	TermMarker:    "term-marker",
	RefMarker:     "ref-marker",
	Label:         "label",
	HashMarker:    "hash",

	MathIdent:      "math-ident",
	MathShorthand:  "math-shorthand",
	MathAlignPoint: "math-align-point",

	LeftBrace:    "{",
	RightBrace:   "}",
	LeftBracket:  "[",
	RightBracket: "]",
	LeftParen:    "(",
	RightParen:   ")",
	Dollar:       "$",

	Ident:      "ident",
	Underscore: "_",
	Int:        "int",
	Float:      "float",
	Numeric:    "numeric",
	Str:        "string",
	RawDelim:   "raw",

	KwLet: "let", KwSet: "set", KwShow: "show", KwIf: "if", KwElse: "else",
	KwFor: "for", KwIn: "in", KwWhile: "while", KwBreak: "break",
	KwContinue: "continue", KwReturn: "return", KwImport: "import",
	KwInclude: "include", KwAs: "as", KwContext: "context", KwNone: "none",
	KwAuto: "auto", KwTrue: "true", KwFalse: "false", KwNot: "not",
	KwAnd: "and", KwOr: "or", KwFunc: "func",

	Plus: "+", Minus: "-", Star: "*", Slash: "/", Eq: "=", EqEq: "==",
	NotEq: "!=", Lt: "<", LtEq: "<=", Gt: ">", GtEq: ">=",
	PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=",
	Arrow: "=>", Dot: ".", DotDot: "..", Comma: ",", Colon: ":",
	Semi: ";", Question: "?",

	SourceFile: "source-file", MarkupBlock: "markup-block", CodeBlock: "code-block",
	ContentBlock: "content-block", MathBlock: "math-block", Heading: "heading",
	ListItem: "list-item", EnumItem: "enum-item", TermItem: "term-item",
	RefExpr: "ref", LabelExpr: "label-expr", Strophe: "paragraph",

	Paren: "paren", Array: "array", Dict: "dict", FuncCall: "func-call",
	Args: "args", NamedArg: "named-arg", SpreadArg: "spread-arg",
	UnaryExpr: "unary-expr", BinaryExpr: "binary-expr", FieldAccess: "field-access",
	IndexExpr: "index-expr", Closure: "closure", Params: "params", Param: "param",
	SinkParam: "sink-param", LetBinding: "let", SetRule: "set-rule",
	ShowRule: "show-rule", IfExpr: "if", ForLoop: "for", WhileLoop: "while",
	ImportDecl: "import", ImportItem: "import-item", ContextExpr: "context",
	DestructurePattern: "pattern", DestructureItem: "pattern-item",
	ReturnStmt: "return", BreakStmt: "break", ContinueStmt: "continue",
	WithExpr: "with",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Class reports which grammar mode or structural class produces k.
func (k Kind) Class() Class {
	switch {
	case k == Error:
		return ClassError
	case k <= HashMarker:
		return ClassMarkup
	case k <= MathAlignPoint:
		return ClassMath
	case k >= Ident && k <= Question:
		return ClassCode
	default:
		return ClassStructural
	}
}

// keywords maps identifier text to the keyword Kind it denotes in code
// mode. Only code mode looks words up here; markup text never becomes a
// keyword.
var keywords = map[string]Kind{
	"let": KwLet, "set": KwSet, "show": KwShow, "if": KwIf, "else": KwElse,
	"for": KwFor, "in": KwIn, "while": KwWhile, "break": KwBreak,
	"continue": KwContinue, "return": KwReturn, "import": KwImport,
	"include": KwInclude, "as": KwAs, "context": KwContext, "none": KwNone,
	"auto": KwAuto, "true": KwTrue, "false": KwFalse, "not": KwNot,
	"and": KwAnd, "or": KwOr,
}

// Lookup returns the keyword Kind for ident, or (Ident, false) if ident is
// not a reserved word.
func Lookup(ident string) (Kind, bool) {
	if k, ok := keywords[ident]; ok {
		return k, true
	}
	return Ident, false
}

// Precedence levels for binary operators:
// unary > * / > + - > comparison > not > and > or > assignment.
// `in` and `not in` bind at the comparison tier (KwIn maps to
// precCompare), not below `or`.
const (
	precLowest = iota
	precAssign
	precOr
	precAnd
	precNot
	precCompare
	precAdd
	precMul
	precUnary
)

// Precedence returns the binding power of k as an infix operator, or 0 if
// k is not an infix operator.
func (k Kind) Precedence() int {
	switch k {
	case Eq, PlusEq, MinusEq, StarEq, SlashEq:
		return precAssign
	case KwOr:
		return precOr
	case KwAnd:
		return precAnd
	case EqEq, NotEq, Lt, LtEq, Gt, GtEq, KwIn:
		return precCompare
	case Plus, Minus:
		return precAdd
	case Star, Slash:
		return precMul
	default:
		return precLowest
	}
}

// IsRightAssociative reports whether k associates right-to-left, which is
// true only of assignment per spec §4.B.
func (k Kind) IsRightAssociative() bool {
	switch k {
	case Eq, PlusEq, MinusEq, StarEq, SlashEq:
		return true
	default:
		return false
	}
}
