package eval

import (
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/diag"
	"github.com/typst-lang/typst-core/syntax/ast"
	"github.com/typst-lang/typst-core/syntax/cst"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

// builder assigns scratch spans so hand-built trees don't need a real
// parser run, matching how the scanner/parser's own unit tests seed
// small fixtures directly (per cuelang.org/go's scanner_test.go style of
// constructing tokens without a full file).
type builder struct{ reg *span.Registry }

func newBuilder() *builder { return &builder{reg: span.NewScratch([]byte(""))} }

func (b *builder) sp() span.ID { return b.reg.Assign(span.Range{}) }

func (b *builder) leaf(kind token.Kind, text string) cst.Node {
	return cst.NewLeaf(kind, b.sp(), text)
}

func (b *builder) inner(kind token.Kind, children ...cst.Node) cst.Node {
	return cst.NewInner(kind, b.sp(), children)
}

func newVM() (*Vm, *builder) {
	b := newBuilder()
	mod := value.NewModule("main.typ")
	w := world.NewStaticWorld("/proj", world.SourceID{Path: "main.typ"})
	return NewVm(mod, w, diag.NewBag()), b
}

func TestEvalIntLiteral(t *testing.T) {
	vm, b := newVM()
	v, err := vm.Eval(ast.Of(b.leaf(token.Int, "42")))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v.(value.Int), value.Int(42)))
}

func TestEvalBinaryAddition(t *testing.T) {
	vm, b := newVM()
	expr := b.inner(token.BinaryExpr,
		b.leaf(token.Int, "2"),
		b.leaf(token.Plus, "+"),
		b.leaf(token.Int, "3"),
	)
	v, err := vm.Eval(ast.Of(expr))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v.(value.Int), value.Int(5)))
}

func TestEvalLetThenIdentLookup(t *testing.T) {
	vm, b := newVM()
	letStmt := b.inner(token.LetBinding,
		b.leaf(token.KwLet, "let"),
		b.leaf(token.Ident, "x"),
		b.leaf(token.Eq, "="),
		b.leaf(token.Int, "7"),
	)
	ident := b.leaf(token.Ident, "x")
	block := b.inner(token.CodeBlock, letStmt, ident)

	v, err := vm.Eval(ast.Of(block))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v.(value.Int), value.Int(7)))
}

func TestEvalIfElse(t *testing.T) {
	vm, b := newVM()
	ifExpr := b.inner(token.IfExpr,
		b.leaf(token.KwIf, "if"),
		b.leaf(token.KwFalse, "false"),
		b.leaf(token.Int, "1"),
		b.leaf(token.KwElse, "else"),
		b.leaf(token.Int, "2"),
	)
	v, err := vm.Eval(ast.Of(ifExpr))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v.(value.Int), value.Int(2)))
}

func TestEvalForOverArrayDoesNotError(t *testing.T) {
	vm, b := newVM()
	arr := b.inner(token.Array,
		b.leaf(token.LeftParen, "("),
		b.leaf(token.Int, "1"),
		b.leaf(token.Comma, ","),
		b.leaf(token.Int, "2"),
		b.leaf(token.Comma, ","),
		b.leaf(token.Int, "3"),
		b.leaf(token.RightParen, ")"),
	)
	forLoop := b.inner(token.ForLoop,
		b.leaf(token.KwFor, "for"),
		b.leaf(token.Ident, "x"),
		b.leaf(token.KwIn, "in"),
		arr,
		b.leaf(token.Ident, "x"),
	)
	v, err := vm.Eval(ast.Of(forLoop))
	qt.Assert(t, qt.IsNil(err))
	// three non-content ints produce an empty joined sequence; the loop
	// itself must not error and must visit every element without panicking.
	_ = v
}

func TestEvalUnknownVariableErrors(t *testing.T) {
	vm, b := newVM()
	_, err := vm.Eval(ast.Of(b.leaf(token.Ident, "nope")))
	qt.Assert(t, qt.IsNotNil(err))
}

func TestEvalCallsClosure(t *testing.T) {
	vm, b := newVM()
	paramN := b.inner(token.Param, b.leaf(token.Ident, "n"))
	params := b.inner(token.Params, b.leaf(token.LeftParen, "("), paramN, b.leaf(token.RightParen, ")"))
	// closure `(n) => n`
	body := b.leaf(token.Ident, "n")
	closureNode := b.inner(token.Closure, params, b.leaf(token.Arrow, "=>"), body)

	closureVal, err := vm.Eval(ast.Of(closureNode))
	qt.Assert(t, qt.IsNil(err))

	args := value.NewArguments()
	args.Positional = append(args.Positional, value.Int(9))
	result, err := vm.Invoke(closureVal, args)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(result.(value.Int), value.Int(9)))
}
