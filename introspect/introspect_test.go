package introspect

import (
	"fmt"
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/value"
)

func elem(kind string) value.Content {
	return value.ElementContent(&value.Element{ElemKind: kind, Fields: value.NewDict()})
}

func TestRunStabilizesImmediatelyWhenPassIsConstant(t *testing.T) {
	pass := func(value.Content) (value.Content, error) { return elem("page"), nil }
	res, err := Run(pass)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(res.Stabilized))
	qt.Assert(t, qt.Equals(res.Iterations, 2))
}

func TestRunStopsAtCapWhenNeverStable(t *testing.T) {
	counter := 0
	pass := func(value.Content) (value.Content, error) {
		counter++
		return elem(fmt.Sprintf("page-%d", counter)), nil
	}
	res, err := Run(pass)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsFalse(res.Stabilized))
	qt.Assert(t, qt.Equals(res.Iterations, 5))
}

func TestRunPropagatesPassError(t *testing.T) {
	pass := func(value.Content) (value.Content, error) {
		return value.Content{}, fmt.Errorf("boom")
	}
	_, err := Run(pass)
	qt.Assert(t, qt.IsNotNil(err))
}
