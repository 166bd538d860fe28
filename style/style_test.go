package style

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/value"
)

func alwaysMatch(*value.Selector, *value.Element) bool { return true }

func TestFoldScalarPicksNearestEntry(t *testing.T) {
	c := Empty.Push(NewSetEntry("text", "size", value.Length{Abs: 10}, nil))
	c = c.Push(NewSetEntry("text", "size", value.Length{Abs: 14}, nil))

	got, ok := c.Fold("text", "size", FoldScalar, nil, alwaysMatch)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(got.(value.Length).Abs, float64(14)))
}

func TestFoldScalarElementKindScoping(t *testing.T) {
	c := Empty.Push(NewSetEntry("heading", "size", value.Length{Abs: 20}, nil))

	_, ok := c.Fold("text", "size", FoldScalar, nil, alwaysMatch)
	qt.Assert(t, qt.IsFalse(ok))
}

func TestFoldStrokeSidesMergesAcrossEntries(t *testing.T) {
	top := value.NewDict()
	top.Set("top", value.Color{R: 1})
	c := Empty.Push(NewSetEntry("rect", "stroke", top, nil))
	left := value.NewDict()
	left.Set("left", value.Color{B: 1})
	c = c.Push(NewSetEntry("rect", "stroke", left, nil))

	got, ok := c.Fold("rect", "stroke", FoldStrokeSides, nil, alwaysMatch)
	qt.Assert(t, qt.IsTrue(ok))
	d := got.(*value.Dict)
	topV, _ := d.Get("top")
	leftV, _ := d.Get("left")
	qt.Assert(t, qt.Equals(topV.(value.Color).R, float64(1)))
	qt.Assert(t, qt.Equals(leftV.(value.Color).B, float64(1)))
}

func TestFoldTagMapMostRecentWinsPerTag(t *testing.T) {
	older := value.NewDict()
	older.Set("liga", value.Bool(false))
	c := Empty.Push(NewSetEntry("text", "features", older, nil))
	newer := value.NewDict()
	newer.Set("liga", value.Bool(true))
	newer.Set("smcp", value.Bool(true))
	c = c.Push(NewSetEntry("text", "features", newer, nil))

	got, ok := c.Fold("text", "features", FoldTagMap, nil, alwaysMatch)
	qt.Assert(t, qt.IsTrue(ok))
	d := got.(*value.Dict)
	liga, _ := d.Get("liga")
	qt.Assert(t, qt.Equals(bool(liga.(value.Bool)), true))
}

func TestShowRulesReturnsHeadFirst(t *testing.T) {
	sel1 := value.Selector{Op: value.SelKind, ElemKind: "heading"}
	sel2 := value.Selector{Op: value.SelKind, ElemKind: "text"}
	c := Empty.Push(NewShowEntry(sel1, &value.NativeFunc{Name: "f1"}))
	c = c.Push(NewShowEntry(sel2, &value.NativeFunc{Name: "f2"}))

	rules := c.ShowRules()
	qt.Assert(t, qt.Equals(len(rules), 2))
	qt.Assert(t, qt.Equals(rules[0].Transform.CallableName(), "f2"))
}
