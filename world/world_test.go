package world

import (
	"testing"

	qt "github.com/go-quicktest/qt"
)

func testWorld(t *testing.T) *StaticWorld {
	t.Helper()
	w := NewStaticWorld("/proj", SourceID{Path: "main.typ"})
	w.AddSource(SourceID{Path: "main.typ"}, "#import \"lib.typ\"", nil)
	w.AddSource(SourceID{Path: "lib.typ"}, "#let x = 1", nil)
	w.Fonts = []FontMetadata{{Family: "Libertinus Serif", Index: 0}}
	return w
}

func TestResolveStaysInRoot(t *testing.T) {
	w := testWorld(t)
	id, err := w.Resolve(SourceID{Path: "main.typ"}, "lib.typ")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(id.Path, "lib.typ"))
}

func TestResolveRejectsEscape(t *testing.T) {
	w := testWorld(t)
	_, err := w.Resolve(SourceID{Path: "sub/main.typ"}, "../../../etc/passwd")
	qt.Assert(t, qt.IsNotNil(err))
}

func TestResolveJoinsRelativeDirs(t *testing.T) {
	w := testWorld(t)
	w.AddSource(SourceID{Path: "sub/helper.typ"}, "#let y = 2", nil)
	id, err := w.Resolve(SourceID{Path: "sub/main.typ"}, "helper.typ")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(id.Path, "sub/helper.typ"))
}

func TestTrackingReplayMatchesOnUnchangedWorld(t *testing.T) {
	w := testWorld(t)
	tr := NewTracking(w)

	_, _, err := tr.Source(SourceID{Path: "main.typ"})
	qt.Assert(t, qt.IsNil(err))
	_, err = tr.Resolve(SourceID{Path: "main.typ"}, "lib.typ")
	qt.Assert(t, qt.IsNil(err))
	tr.FontIndex()
	tr.Today()

	qt.Assert(t, qt.IsTrue(Replay(w, tr.Log())))
}

func TestTrackingReplayDetectsSourceChange(t *testing.T) {
	w := testWorld(t)
	tr := NewTracking(w)
	_, _, err := tr.Source(SourceID{Path: "main.typ"})
	qt.Assert(t, qt.IsNil(err))

	w2 := testWorld(t)
	w2.AddSource(SourceID{Path: "main.typ"}, "#import \"other.typ\"", nil)

	qt.Assert(t, qt.IsFalse(Replay(w2, tr.Log())))
}

func TestStaticWorldMissingSourceErrors(t *testing.T) {
	w := testWorld(t)
	_, _, err := w.Source(SourceID{Path: "missing.typ"})
	qt.Assert(t, qt.IsNotNil(err))
}
