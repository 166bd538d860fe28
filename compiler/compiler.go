// Package compiler wires together the parser, evaluator, and
// realization engine into the single "source text in, realized content
// and diagnostics out" pipeline the core exposes to collaborators (spec
// §6): exporters, IDE analyses, and the delegated CLI (cmd/typst) all
// sit downstream of Compile. This is the core's counterpart to
// cuelang.org/go/cue.Context.BuildInstance + Value.Validate, which
// similarly composes load -> compile -> finalize into one entry point
// library callers and cmd/cue both use.
package compiler

import (
	"fmt"

	"github.com/typst-lang/typst-core/diag"
	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/introspect"
	"github.com/typst-lang/typst-core/realize"
	"github.com/typst-lang/typst-core/stdlib"
	"github.com/typst-lang/typst-core/style"
	"github.com/typst-lang/typst-core/syntax/ast"
	"github.com/typst-lang/typst-core/syntax/parser"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

// Result is the outcome of compiling one source: realized content (if
// compilation reached realization) plus every diagnostic collected
// along the way.
type Result struct {
	Content     value.Content
	Diagnostics *diag.Bag
	Registry    *span.Registry
}

// Compile runs the full pipeline (spec §2's control-flow: parse, evaluate,
// realize, looping introspection to a fixpoint) against w's main source.
func Compile(w world.World) (Result, error) {
	text, _, err := w.Source(w.MainID())
	if err != nil {
		return Result{}, fmt.Errorf("loading main source: %w", err)
	}

	file := span.NewFile(w.MainID().Path, w.MainID().Package, []byte(text))
	root := parser.Parse(file)

	bag := diag.NewBag()
	mod := value.NewModule(w.MainID().Path)
	vm := eval.NewVm(mod, w, bag)
	stdlib.Install(vm)

	v, err := vm.Eval(ast.Of(root))
	if err != nil {
		bag.Errorf(span.ID(0), "%s", err.Error())
	}
	content, ok := v.(value.Content)
	if !ok {
		content = value.SequenceContent()
	}

	engine := realize.New(vm)
	result, err := introspect.Run(func(previous value.Content) (value.Content, error) {
		return engine.Realize(content, style.Empty)
	})
	if err != nil {
		bag.Errorf(span.ID(0), "%s", err.Error())
	}
	for _, msg := range engine.Bag.Messages {
		bag.Warnf(span.ID(0), "%s", msg)
	}

	return Result{Content: result.Content, Diagnostics: bag, Registry: file.Registry()}, nil
}
