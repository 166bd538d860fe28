package realize

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/diag"
	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/style"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

func newEngine() *Engine {
	mod := value.NewModule("main.typ")
	w := world.NewStaticWorld("/proj", world.SourceID{Path: "main.typ"})
	vm := eval.NewVm(mod, w, diag.NewBag())
	return New(vm)
}

func elemContent(kind string) value.Content {
	return value.ElementContent(&value.Element{ElemKind: kind, Fields: value.NewDict()})
}

func TestRealizeAssignsLocations(t *testing.T) {
	e := newEngine()
	c := value.SequenceContent(elemContent("text"), elemContent("text"))

	out, err := e.Realize(c, style.Empty)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out.Kind, value.ContentSequence))
	for _, ch := range out.Children {
		qt.Assert(t, qt.IsNotNil(ch.Elem.Location))
	}
	qt.Assert(t, qt.IsTrue(out.Children[0].Elem.Location.Unique != out.Children[1].Elem.Location.Unique))
}

func TestRealizeAppliesShowRuleOnce(t *testing.T) {
	e := newEngine()
	calls := 0
	transform := &value.NativeFunc{
		Name: "emph-to-strong",
		Call: func(ctx interface{}, args *value.Arguments) (value.Value, error) {
			calls++
			return elemContent("strong"), nil
		},
	}
	sel := value.Selector{Op: value.SelKind, ElemKind: "emph"}
	chain := style.Empty.Push(style.NewShowEntry(sel, transform))

	out, err := e.Realize(elemContent("emph"), chain)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out.Elem.ElemKind, "strong"))
	qt.Assert(t, qt.Equals(calls, 1))
}

func TestRealizeDetectsDuplicateLabels(t *testing.T) {
	e := newEngine()
	el1 := &value.Element{ElemKind: "heading", Fields: value.NewDict(), HasLabel: true, Label: "intro"}
	el2 := &value.Element{ElemKind: "heading", Fields: value.NewDict(), HasLabel: true, Label: "intro"}
	c := value.SequenceContent(value.ElementContent(el1), value.ElementContent(el2))

	_, err := e.Realize(c, style.Empty)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(len(e.Bag.Messages), 1))
}

func TestQueryFindsMatchingElements(t *testing.T) {
	c := value.SequenceContent(elemContent("heading"), elemContent("text"), elemContent("heading"))
	matches := Query(c, value.Selector{Op: value.SelKind, ElemKind: "heading"})
	qt.Assert(t, qt.Equals(len(matches), 2))
}
