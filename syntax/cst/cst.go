// Package cst implements the lossless concrete syntax tree described in
// spec §3: immutable Leaf and Inner nodes, every one carrying a stable
// span.ID. Error nodes participate in the tree like any other node so that
// highlighting and downstream analyses stay total even over invalid input
// (spec §4.B: "Parsing cannot fail").
//
// The Leaf/Inner split mirrors the two node shapes cuelang.org/go's
// cue/ast package implicitly assumes (leaves are *ast.Ident/*ast.BasicLit
// style terminals, inner nodes are the composite *ast.StructLit/*ast.
// BinaryExpr style productions) but CUE bakes that split into dozens of Go
// struct types. Typst's CST instead keeps one generic Node shape tagged by
// token.Kind, because the incremental reparser (package incr) and the span
// registry need to walk an untyped tree uniformly; cue/ast's typed
// accessor layer reappears here as the separate ast package (component C)
// that wraps Node rather than replacing it.
package cst

import (
	"strings"

	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
)

// Node is either a *Leaf or an *Inner. Both are immutable once built;
// "editing" a tree means building new Nodes that share unchanged
// subtrees, never mutating in place.
type Node interface {
	Kind() token.Kind
	Span() span.ID
	// Text returns the concatenation of all leaf text under this node,
	// which by the lossless-parse invariant (spec §8) reconstructs the
	// exact source slice the node was parsed from.
	Text() string
	isNode()
}

// Leaf is a terminal node: it owns a slice of source text and nothing
// else. Whitespace and comments are preserved as leaves so that printing
// a tree losslessly reconstructs its source (spec §3, §8).
type Leaf struct {
	kind token.Kind
	span span.ID
	text string

	// Message is set only when kind == token.Error; it documents the
	// problem without preventing the node from being a normal participant
	// in the tree.
	Message string
}

func NewLeaf(kind token.Kind, id span.ID, text string) *Leaf {
	return &Leaf{kind: kind, span: id, text: text}
}

func NewErrorLeaf(id span.ID, text, message string) *Leaf {
	return &Leaf{kind: token.Error, span: id, text: text, Message: message}
}

func (l *Leaf) Kind() token.Kind { return l.kind }
func (l *Leaf) Span() span.ID    { return l.span }
func (l *Leaf) Text() string     { return l.text }
func (*Leaf) isNode()            {}

// Inner is a composite node: an ordered list of children plus its own
// span, which by construction covers the union of its children's ranges.
type Inner struct {
	kind     token.Kind
	span     span.ID
	children []Node
}

func NewInner(kind token.Kind, id span.ID, children []Node) *Inner {
	return &Inner{kind: kind, span: id, children: children}
}

func (n *Inner) Kind() token.Kind { return n.kind }
func (n *Inner) Span() span.ID    { return n.span }
func (n *Inner) Children() []Node { return n.children }
func (*Inner) isNode()            {}

func (n *Inner) Text() string {
	var b strings.Builder
	writeText(&b, n)
	return b.String()
}

func writeText(b *strings.Builder, n Node) {
	switch n := n.(type) {
	case *Leaf:
		b.WriteString(n.text)
	case *Inner:
		for _, c := range n.children {
			writeText(b, c)
		}
	}
}

// IsError reports whether n is, or directly contains as an immediate
// child, an error node. It does not recurse, matching how the parser
// surfaces local parse failures without poisoning ancestors.
func IsError(n Node) bool {
	if l, ok := n.(*Leaf); ok {
		return l.kind == token.Error
	}
	if in, ok := n.(*Inner); ok {
		for _, c := range in.children {
			if l, ok := c.(*Leaf); ok && l.kind == token.Error {
				return true
			}
		}
	}
	return false
}

// Walk calls visit for n and, if visit returns true, for every descendant
// in document order. Traversal is iterative (an explicit stack) rather
// than recursive so that deeply nested user markup cannot blow the Go
// call stack (spec §4.C: "AST traversal is iterative where depth could be
// user-controlled").
func Walk(n Node, visit func(Node) bool) {
	type frame struct {
		node     Node
		children []Node
		i        int
	}
	stack := []frame{{node: n}}
	if !visit(n) {
		return
	}
	if in, ok := n.(*Inner); ok {
		stack[0].children = in.children
	}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.i >= len(top.children) {
			stack = stack[:len(stack)-1]
			continue
		}
		child := top.children[top.i]
		top.i++
		if !visit(child) {
			continue
		}
		if in, ok := child.(*Inner); ok {
			stack = append(stack, frame{node: child, children: in.children})
		}
	}
}

// FindEnclosing returns the smallest node in n's subtree whose span
// range (per reg) contains offset. It requires offset falls within the
// range of n itself.
func FindEnclosing(n Node, reg *span.Registry, offset int) Node {
	best := n
	Walk(n, func(c Node) bool {
		r, ok := reg.Range(c.Span())
		if !ok || !(r.Start <= offset && offset <= r.End) {
			return false
		}
		if br, ok := reg.Range(best.Span()); !ok || r.Len() <= br.Len() {
			best = c
		}
		return true
	})
	return best
}
