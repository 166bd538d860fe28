package incr

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/syntax/cst"
	"github.com/typst-lang/typst-core/syntax/parser"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
)

func parseFile(text string) (*cst.Inner, *span.Registry) {
	file := span.NewFile("<test>", span.PackageCoord{}, []byte(text))
	return parser.Parse(file), file.Registry()
}

func TestFindReparseScopeWidensToEnclosingContentBlock(t *testing.T) {
	text := "before [hello *world*] after"
	root, reg := parseFile(text)

	// offset inside "world", well within the content block.
	editOffset := 16
	scopeRange, node, _ := FindReparseScope(root, reg, Edit{Start: editOffset, End: editOffset})

	qt.Assert(t, qt.Equals(node.Kind(), token.ContentBlock))
	qt.Assert(t, qt.Equals(text[scopeRange.Start:scopeRange.End], "[hello *world*]"))
}

func TestFindReparseScopeWidensToRootWhenNoContentBlockEncloses(t *testing.T) {
	text := "just plain text"
	root, reg := parseFile(text)

	scopeRange, node, path := FindReparseScope(root, reg, Edit{Start: 5, End: 5})

	qt.Assert(t, qt.Equals(node.Kind(), token.SourceFile))
	qt.Assert(t, qt.Equals(scopeRange.Start, 0))
	qt.Assert(t, qt.Equals(scopeRange.End, len(text)))
	qt.Assert(t, qt.Equals(len(path), 0))
}

func TestReparseScopeSplicesFreshSpansAndPreservesOldOnes(t *testing.T) {
	text := "before [hello world] after"
	root, reg := parseFile(text)

	scopeRange, node, path := FindReparseScope(root, reg, Edit{Start: 10, End: 10})
	qt.Assert(t, qt.Equals(node.Kind(), token.ContentBlock))

	// An old span entirely outside the dirty range must survive Splice
	// untouched (spec §3's "IDs outside the touched range are preserved").
	outsideID, ok := reg.Enclosing(1) // inside "before"
	qt.Assert(t, qt.IsTrue(ok))
	outsideRangeBefore, _ := reg.Range(outsideID)

	newContentText := "[hello, dear reader]"
	result := ReparseScope(reg, scopeRange.Start, scopeRange, newContentText)
	qt.Assert(t, qt.Equals(result.Tree.Kind(), token.ContentBlock))
	qt.Assert(t, qt.IsTrue(len(result.Mapping) > 0))

	outsideRangeAfter, ok := reg.Range(outsideID)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.DeepEquals(outsideRangeBefore, outsideRangeAfter))

	newRoot := ReplaceSubtree(path, result.Tree)
	qt.Assert(t, qt.Equals(newRoot.Kind(), token.SourceFile))
}

func TestReplaceSubtreeRebuildsOnlyTheAncestorPath(t *testing.T) {
	text := "before [hello world] after"
	root, reg := parseFile(text)
	originalChildren := root.Children()

	_, node, path := FindReparseScope(root, reg, Edit{Start: 10, End: 10})
	replacement := cst.NewErrorLeaf(reg.Assign(span.Range{Start: 7, End: 21}), "[hello world]", "replaced")

	newRoot := ReplaceSubtree(path, replacement)
	newInner, ok := newRoot.(*cst.Inner)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(len(newInner.Children()), len(originalChildren)))

	replacedIdx := -1
	for i, c := range originalChildren {
		if c == node {
			replacedIdx = i
		}
	}
	qt.Assert(t, qt.IsTrue(replacedIdx >= 0))
	for i := range originalChildren {
		if i == replacedIdx {
			qt.Assert(t, qt.Equals(newInner.Children()[i], cst.Node(replacement)))
		} else {
			qt.Assert(t, qt.Equals(newInner.Children()[i], originalChildren[i]))
		}
	}
}
