package memo

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/world"
)

func testWorld() *world.StaticWorld {
	w := world.NewStaticWorld("/proj", world.SourceID{Path: "main.typ"})
	w.AddSource(world.SourceID{Path: "main.typ"}, "#let x = 1", nil)
	return w
}

func TestComputeCachesAcrossIdenticalWorld(t *testing.T) {
	c, err := NewCache(8)
	qt.Assert(t, qt.IsNil(err))
	w := testWorld()

	calls := 0
	run := func(tw *world.Tracking) (interface{}, error) {
		calls++
		_, _, err := tw.Source(world.SourceID{Path: "main.typ"})
		return "result", err
	}

	key := Key{Operation: "eval", Inputs: DigestInputs("main.typ")}
	v1, err := c.Compute(key, w, run)
	qt.Assert(t, qt.IsNil(err))
	v2, err := c.Compute(key, w, run)
	qt.Assert(t, qt.IsNil(err))

	qt.Assert(t, qt.Equals(v1.(string), "result"))
	qt.Assert(t, qt.Equals(v2.(string), "result"))
	qt.Assert(t, qt.Equals(calls, 1))
}

func TestComputeRecomputesWhenWorldChanges(t *testing.T) {
	c, err := NewCache(8)
	qt.Assert(t, qt.IsNil(err))
	w1 := testWorld()

	calls := 0
	run := func(tw *world.Tracking) (interface{}, error) {
		calls++
		_, _, err := tw.Source(world.SourceID{Path: "main.typ"})
		return "result", err
	}
	key := Key{Operation: "eval", Inputs: DigestInputs("main.typ")}

	_, err = c.Compute(key, w1, run)
	qt.Assert(t, qt.IsNil(err))

	w2 := world.NewStaticWorld("/proj", world.SourceID{Path: "main.typ"})
	w2.AddSource(world.SourceID{Path: "main.typ"}, "#let x = 2", nil)
	_, err = c.Compute(key, w2, run)
	qt.Assert(t, qt.IsNil(err))

	qt.Assert(t, qt.Equals(calls, 2))
}

func TestInvalidateForcesRecompute(t *testing.T) {
	c, err := NewCache(8)
	qt.Assert(t, qt.IsNil(err))
	w := testWorld()

	calls := 0
	run := func(tw *world.Tracking) (interface{}, error) {
		calls++
		return calls, nil
	}
	key := Key{Operation: "eval", Inputs: "k"}

	_, err = c.Compute(key, w, run)
	qt.Assert(t, qt.IsNil(err))
	c.Invalidate(key)
	v, err := c.Compute(key, w, run)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v.(int), 2))
}
