// Package introspect implements the introspection loop driver (spec
// §4.K): re-running realization (and, conceptually, external layout)
// until the document stabilizes, bounded by a small iteration cap. This
// is the outermost control loop of the core; it plays the role
// cuelang.org/go's cue/load resolution loop plays for import cycles —
// drive a fixed point over a side-effect-free re-evaluation, give up
// with a clear diagnostic rather than spin — but the fixed point here is
// over content equality (spec §8 "Idempotence of realization") rather
// than CUE's dependency-closure convergence.
package introspect

import (
	"fmt"

	"github.com/typst-lang/typst-core/value"
)

// maxIterations bounds the loop (spec §4.K "Iterates realization+layout
// until a document stabilises"; the spec leaves the exact cap
// unspecified beyond calling it small — 5 matches the realization
// engine's much larger maxShowRuleDepth being reserved for per-element
// rewrites, not whole-document passes).
const maxIterations = 5

// Pass is one realization(+layout) iteration: given the previous
// iteration's realized content (the zero Content on the first call), produce the
// next realized content. The caller supplies this as a closure so
// package introspect does not itself depend on package realize or on
// any layout engine (spec §1 places layout out of scope).
type Pass func(previous value.Content) (value.Content, error)

// Result reports how the loop ended.
type Result struct {
	Content    value.Content
	Iterations int
	Stabilized bool
}

// Run drives pass to a fixed point: it stops as soon as two consecutive
// iterations produce structurally equal content (spec §8 "Module
// purity" / "Idempotence of realization"), or after maxIterations
// passes, whichever comes first. A loop that does not stabilize is not
// an error — spec §4.K only caps the number of passes attempted,
// leaving the caller to decide whether to surface a diagnostic for an
// unstabilized document.
func Run(pass Pass) (Result, error) {
	var prev value.Content
	for i := 0; i < maxIterations; i++ {
		next, err := pass(prev)
		if err != nil {
			return Result{}, fmt.Errorf("introspection pass %d failed: %w", i+1, err)
		}
		if i > 0 && prev.Equal(next) {
			return Result{Content: next, Iterations: i + 1, Stabilized: true}, nil
		}
		prev = next
	}
	return Result{Content: prev, Iterations: maxIterations, Stabilized: false}, nil
}
