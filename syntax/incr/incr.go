// Package incr drives incremental reparsing atop span.Registry.Splice
// (spec §3 "Span ID" contract (b): "during incremental reparse of a
// changed region, IDs outside the touched range are preserved").
//
// The strategy — find the smallest node enclosing the edit, reparse
// just that subtree, and widen to the parent and retry if the result
// still looks wrong — has no direct analog in cuelang.org/go (CUE's
// cue/parser always reparses a whole file; CUE has no incremental-edit
// story), so this package is grounded instead on the general shape
// described in spec §4.B/§8 and on syntax/span.Registry's own Splice
// contract, which this package is the first real caller of.
package incr

import (
	"github.com/typst-lang/typst-core/syntax/cst"
	"github.com/typst-lang/typst-core/syntax/parser"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
)

// safeBoundaryKinds are node kinds whose own text, reparsed in isolation
// starting in markup mode (parser.Parse's only entry point), reproduces
// exactly the subtree a full reparse would have produced for that byte
// range. ContentBlock text is "[...]", which parseMarkupSeq recognizes
// directly at top level via its leading '['; SourceFile is the whole
// file. CodeBlock is deliberately excluded: its text is "{...}" with no
// leading sigil, which only parses as code inside a code-mode context
// parser.Parse cannot enter on its own — an edit inside a CodeBlock
// widens one more level, to its enclosing ContentBlock or SourceFile.
var safeBoundaryKinds = map[token.Kind]bool{
	token.ContentBlock: true,
	token.SourceFile:   true,
}

// Edit describes a single text replacement: bytes in [Start,End) of the
// old text are replaced by NewText.
type Edit struct {
	Start, End int
	NewText    string
}

// Ancestor is one step of the path from the tree root down to the node
// being replaced, recorded so ReplaceSubtree can rebuild every Inner
// node on that path (cst.Node has no parent pointers by design — nodes
// are immutable and shared across edits — so the caller must supply the
// path it already walked to find the target).
type Ancestor struct {
	Node     *cst.Inner
	ChildIdx int
}

// FindReparseScope walks up from the smallest node enclosing edit until
// it reaches a safeBoundaryKinds node (or the root), returning that
// node's byte range, the node itself, and the ancestor path from root to
// it. The caller reparses exactly scopeRange of text and, if the result
// does not look structurally sound (e.g. the replacement is a single
// all-consuming error node while the original request had a narrower
// edit), it should call FindReparseScope again starting one level
// higher — the "widen to parent and retry" fallback.
func FindReparseScope(root *cst.Inner, reg *span.Registry, edit Edit) (scopeRange span.Range, node cst.Node, path []Ancestor) {
	enclosing := cst.FindEnclosing(root, reg, edit.Start)

	path = buildPath(root, enclosing)
	for i := len(path) - 1; i >= 0; i-- {
		n := path[i].Node
		if safeBoundaryKinds[n.Kind()] {
			r, _ := reg.Range(n.Span())
			return r, n, path[:i]
		}
	}
	r, _ := reg.Range(root.Span())
	return r, root, nil
}

// buildPath walks root's subtree to find the ancestor chain leading to
// target, inclusive of target itself as the final element.
func buildPath(root *cst.Inner, target cst.Node) []Ancestor {
	var path []Ancestor
	var walk func(n *cst.Inner) bool
	walk = func(n *cst.Inner) bool {
		for i, c := range n.Children() {
			if c == cst.Node(target) {
				path = append(path, Ancestor{Node: n, ChildIdx: i})
				return true
			}
			if in, ok := c.(*cst.Inner); ok {
				path = append(path, Ancestor{Node: n, ChildIdx: i})
				if walk(in) {
					return true
				}
				path = path[:len(path)-1]
			}
		}
		return false
	}
	if cst.Node(target) == cst.Node(root) {
		return nil
	}
	walk(root)
	return path
}

// Reparsed is the result of reparsing one scope's substring.
type Reparsed struct {
	Tree    *cst.Inner
	Mapping map[span.ID]span.ID
}

// ReparseScope reparses newText (the old scope text with edit already
// applied) as a standalone file, then splices its freshly assigned span
// IDs into reg at the byte offset the scope started at (spec §3 "IDs
// outside the touched range are preserved"). When the reparse yields a
// single content block, Tree is that ContentBlock node (the shape
// ReplaceSubtree expects in the scope's slot); otherwise Tree is the
// whole SourceFile root.
//
// This uses span.NewFile rather than span.NewScratch: the parser needs a
// real *span.File (with its Registry wired back via File.Registry), and
// NewFile already builds exactly that, so there is no need for a second,
// more limited constructor here.
func ReparseScope(reg *span.Registry, scopeStart int, oldScopeRange span.Range, newText string) Reparsed {
	file := span.NewFile("<scope>", span.PackageCoord{}, []byte(newText))
	tree := parser.Parse(file)
	if kids := tree.Children(); len(kids) == 1 {
		if in, ok := kids[0].(*cst.Inner); ok && in.Kind() == token.ContentBlock {
			tree = in
		}
	}

	mapping := reg.Splice(oldScopeRange, scopeStart, file.Registry())
	return Reparsed{Tree: tree, Mapping: mapping}
}

// ReplaceSubtree rebuilds every Inner node along path with its child at
// the recorded index swapped for replacement, returning the new root.
// Because cst nodes are immutable, this allocates a new Inner for each
// ancestor rather than mutating in place — "editing yields new roots
// sharing unchanged subtrees" (spec §3).
func ReplaceSubtree(path []Ancestor, replacement cst.Node) cst.Node {
	current := replacement
	for i := len(path) - 1; i >= 0; i-- {
		anc := path[i]
		oldChildren := anc.Node.Children()
		newChildren := make([]cst.Node, len(oldChildren))
		copy(newChildren, oldChildren)
		newChildren[anc.ChildIdx] = current
		current = cst.NewInner(anc.Node.Kind(), anc.Node.Span(), newChildren)
	}
	return current
}
