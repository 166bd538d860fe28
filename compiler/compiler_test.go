package compiler

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

// dictByRepr compares *value.Dict by its Repr() string rather than its
// unexported storage, the way cuelang.org/go's own golden-file diffs
// compare adt.Vertex values by rendered form instead of internal layout.
var dictByRepr = cmp.Comparer(func(a, b *value.Dict) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Repr() == b.Repr()
})

func staticWorld(src string) *world.StaticWorld {
	main := world.SourceID{Path: "main.typ"}
	w := world.NewStaticWorld("/proj", main)
	w.AddSource(main, src, span.NewScratch([]byte(src)))
	return w
}

// TestCompileEmptySourceHasNoDiagnostics exercises the full pipeline
// end to end on the simplest possible input.
func TestCompileEmptySourceHasNoDiagnostics(t *testing.T) {
	res, err := Compile(staticWorld(""))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(len(res.Diagnostics.Errors()), 0))
}

// TestCompileIsDeterministic exercises spec §8 "Evaluation determinism":
// compiling the same world twice must produce byte-identical content.
func TestCompileIsDeterministic(t *testing.T) {
	src := "hello"
	r1, err := Compile(staticWorld(src))
	qt.Assert(t, qt.IsNil(err))
	r2, err := Compile(staticWorld(src))
	qt.Assert(t, qt.IsNil(err))

	if diff := cmp.Diff(r1.Content, r2.Content, dictByRepr); diff != "" {
		t.Fatalf("compile is not deterministic (-first +second):\n%s", diff)
	}
}
