// Package ast is a read-only façade over package cst giving the evaluator
// typed accessors — "function call" -> callee/args, "if" -> cond/then/else
// — without copying the underlying tree (spec §4.C). Where CUE bakes this
// distinction into dozens of dedicated Go struct types
// (cuelang.org/go/cue/ast.CallExpr, cuelang.org/go/cue/ast.BinaryExpr,
// ...), Typst's single generic cst.Node shape means the façade here is a
// thin set of typed wrapper values plus accessor methods that index into
// a node's children by position, returning a zero View ("none") for
// absent optional children rather than panicking.
package ast

import (
	"strings"

	"github.com/typst-lang/typst-core/syntax/cst"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
)

// View wraps a cst.Node with typed accessors. The zero View (Node == nil)
// represents an absent optional child.
type View struct {
	Node cst.Node
}

func Of(n cst.Node) View { return View{Node: n} }

func (v View) IsZero() bool { return v.Node == nil }

func (v View) Kind() token.Kind {
	if v.IsZero() {
		return token.Error
	}
	return v.Node.Kind()
}

func (v View) Span() span.ID {
	if v.IsZero() {
		return span.NoID
	}
	return v.Node.Span()
}

func (v View) Text() string {
	if v.IsZero() {
		return ""
	}
	return v.Node.Text()
}

func (v View) children() []cst.Node {
	if in, ok := v.Node.(*cst.Inner); ok {
		return in.Children()
	}
	return nil
}

// child returns the i-th child as a View, or the zero View if v is a leaf
// or i is out of range.
func (v View) child(i int) View {
	c := v.children()
	if i < 0 || i >= len(c) {
		return View{}
	}
	return View{Node: c[i]}
}

// nonTrivialChildren filters out whitespace/comment leaves so positional
// accessors (Cond, Then, Else, ...) can index by semantic position rather
// than raw source position.
func (v View) nonTrivialChildren() []cst.Node {
	var out []cst.Node
	for _, c := range v.children() {
		switch c.Kind() {
		case token.Whitespace, token.LineComment, token.BlockComment,
			token.LeftBrace, token.RightBrace, token.LeftBracket, token.RightBracket,
			token.LeftParen, token.RightParen, token.Dollar, token.Comma, token.Colon,
			token.KwLet, token.KwSet, token.KwShow, token.KwIf, token.KwElse,
			token.KwFor, token.KwIn, token.KwWhile, token.KwImport, token.KwInclude,
			token.KwAs, token.KwContext, token.Eq, token.Arrow:
			continue
		}
		out = append(out, c)
	}
	return out
}

func (v View) nthSemantic(i int) View {
	c := v.nonTrivialChildren()
	if i < 0 || i >= len(c) {
		return View{}
	}
	return View{Node: c[i]}
}

// --- CodeBlock / hash-expr accessor ---

// Inner returns the wrapped expression/statement of a "# expr" code block
// (the node after the HashMarker leaf).
func (v View) Inner() View {
	for _, c := range v.children() {
		if c.Kind() != token.HashMarker {
			return View{Node: c}
		}
	}
	return View{}
}

// --- BinaryExpr ---

func (v View) Left() View  { return v.child(0) }
func (v View) Op() token.Kind {
	c := v.children()
	if len(c) >= 2 {
		return c[1].Kind()
	}
	return token.Error
}
func (v View) Right() View {
	c := v.children()
	if len(c) >= 3 {
		return View{Node: c[2]}
	}
	return View{}
}

// --- UnaryExpr ---

func (v View) UnaryOp() token.Kind { return v.child(0).Kind() }
func (v View) Operand() View       { return v.child(1) }

// --- FieldAccess ---

func (v View) Base() View      { return v.child(0) }
func (v View) FieldName() View { return v.child(1) }

// --- FuncCall ---

func (v View) Callee() View { return v.child(0) }
func (v View) Args() View   { return v.child(1) }

// ArgList returns the positional+named argument nodes of an Args node,
// skipping the parens.
func (v View) ArgList() []View {
	var out []View
	for _, c := range v.children() {
		switch c.Kind() {
		case token.LeftParen, token.RightParen, token.Comma:
			continue
		}
		out = append(out, View{Node: c})
	}
	return out
}

// --- If ---

func (v View) Cond() View { return v.nthSemantic(0) }
func (v View) Then() View { return v.nthSemantic(1) }
func (v View) Else() View { return v.nthSemantic(2) }

// --- For ---

func (v View) Pattern() View  { return v.nthSemantic(0) }
func (v View) Iterable() View { return v.nthSemantic(1) }
func (v View) Body() View     { return v.nthSemantic(2) }

// --- Closure ---

func (v View) Params() View { return v.child(0) }
func (v View) ClosureBody() View {
	c := v.children()
	if len(c) >= 3 {
		return View{Node: c[2]}
	}
	return View{}
}

// ParamList returns the Param/SinkParam nodes of a Params node.
func (v View) ParamList() []View {
	var out []View
	for _, c := range v.children() {
		switch c.Kind() {
		case token.Param, token.SinkParam:
			out = append(out, View{Node: c})
		}
	}
	return out
}

// --- LetBinding ---

func (v View) LetPattern() View { return v.nthSemantic(0) }
func (v View) LetValue() View {
	c := v.nonTrivialChildren()
	if len(c) == 0 {
		return View{}
	}
	last := View{Node: c[len(c)-1]}
	if last.Node == c[0] {
		return View{} // no initializer
	}
	return last
}

// --- Sequence helper shared by markup/code blocks ---

// Statements returns the semantic (non-delimiter) children of a
// CodeBlock/ContentBlock/SourceFile node in order.
func (v View) Statements() []View {
	var out []View
	for _, c := range v.nonTrivialChildren() {
		out = append(out, View{Node: c})
	}
	return out
}

// IsIdent reports whether v is a bare identifier leaf, returning its name.
func (v View) IsIdent() (name string, ok bool) {
	if v.IsZero() || v.Kind() != token.Ident {
		return "", false
	}
	return v.Text(), true
}

// --- Heading / ListItem / EnumItem / TermItem ---

// Level reports a heading's nesting depth: the number of '=' characters
// in its marker leaf.
func (v View) Level() int {
	n := 0
	for _, r := range v.child(0).Text() {
		if r == '=' {
			n++
		}
	}
	return n
}

// MarkupChildren returns a Heading/ListItem/EnumItem/TermItem's body
// children, i.e. every child after the leading marker leaf.
func (v View) MarkupChildren() []View {
	c := v.children()
	if len(c) <= 1 {
		return nil
	}
	out := make([]View, 0, len(c)-1)
	for _, ch := range c[1:] {
		out = append(out, View{Node: ch})
	}
	return out
}

// TrailingLabel reports whether v's last markup child is a label leaf
// (a heading or list item followed directly by "<name>" attaches that
// label to the element), returning the label's bare name with the
// angle brackets stripped.
func (v View) TrailingLabel() (name string, ok bool) {
	kids := v.MarkupChildren()
	if len(kids) == 0 {
		return "", false
	}
	last := kids[len(kids)-1]
	if last.Kind() != token.Label {
		return "", false
	}
	return trimAngle(last.Text()), true
}

func trimAngle(s string) string {
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	return s
}

// --- Strong / Emph ---

// EmphasisBody returns a Strong/Emph node's body children: every child
// between the opening marker and a matching closing marker, if one was
// found (an unterminated span has no closing marker to exclude).
func (v View) EmphasisBody() []View {
	c := v.children()
	if len(c) == 0 {
		return nil
	}
	body := c[1:]
	if n := len(body); n > 0 {
		if _, isLeaf := body[n-1].(*cst.Leaf); isLeaf && body[n-1].Kind() == v.Kind() {
			body = body[:n-1]
		}
	}
	out := make([]View, 0, len(body))
	for _, ch := range body {
		out = append(out, View{Node: ch})
	}
	return out
}

// --- Label / RefExpr ---

// LabelName returns a bare Label leaf's name with angle brackets
// stripped.
func (v View) LabelName() string {
	return trimAngle(v.Text())
}

// RefTarget returns a RefExpr node's label operand.
func (v View) RefTarget() View { return v.child(0) }
