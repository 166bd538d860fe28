// Package eval is the tree-walking evaluator (spec §4.F): it walks
// syntax/ast Views, maintains a scope stack and flow state machine, and
// produces value.Value / value.Content results plus diagnostics.
//
// The control-flow shape — an explicit Flow enum threaded through every
// recursive Eval call rather than Go panics/recover for break/continue/
// return — mirrors how cuelang.org/go's own evaluator
// (internal/core/adt) threads an explicit OpContext through every
// unify/evaluate call instead of relying on goroutine-local state; here
// it is simplified to a single mutable field on *Vm since Typst has no
// analogous need for disjunction backtracking.
package eval

import (
	"fmt"

	"github.com/typst-lang/typst-core/diag"
	"github.com/typst-lang/typst-core/syntax/ast"
	"github.com/typst-lang/typst-core/syntax/span"
	"github.com/typst-lang/typst-core/syntax/token"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

// Flow distinguishes normal execution from the three structured
// non-local exits (spec §4.F "a reference to the current flow (running
// | returning-with-value | breaking | continuing)").
type Flow int

const (
	FlowRunning Flow = iota
	FlowReturning
	FlowBreaking
	FlowContinuing
)

// defaultIterationBudget and defaultCallDepth are the caps spec §4.F
// names ("~10 million AST evaluation steps", "default ~64 for user
// closures").
const (
	defaultIterationBudget = 10_000_000
	defaultCallDepth       = 64
	whileProbeWindow       = 1000
)

// Frame is one entry of the scope stack: a single lexical scope's
// bindings, plus whether it is function-call boundary (captures from
// outside a Frame marked IsCallBoundary are read-only to nested
// closures' own mutation attempts, per spec §7 "Mutation": "variables
// from outside the function are read-only").
type Frame struct {
	Bindings      map[string]*value.Binding
	IsCallBoundary bool
}

func newFrame(boundary bool) *Frame {
	return &Frame{Bindings: map[string]*value.Binding{}, IsCallBoundary: boundary}
}

// Vm is the evaluator state threaded through one module evaluation or
// closure call (spec §4.F).
type Vm struct {
	Module *value.Module
	World  world.World
	Bag    *diag.Bag

	frames []*Frame
	flow   Flow
	flowValue value.Value

	steps     int64
	callDepth int

	// Chain is an opaque slot for a style chain; eval never reads it, and
	// nothing in this repository sets it.
	Chain interface{}
}

func NewVm(mod *value.Module, w world.World, bag *diag.Bag) *Vm {
	vm := &Vm{Module: mod, World: w, Bag: bag}
	vm.frames = []*Frame{newFrame(true)}
	return vm
}

func (vm *Vm) pushScope() { vm.frames = append(vm.frames, newFrame(false)) }
func (vm *Vm) popScope()  { vm.frames = vm.frames[:len(vm.frames)-1] }

func (vm *Vm) currentFrame() *Frame { return vm.frames[len(vm.frames)-1] }

// Define introduces name in the innermost scope, shadowing any outer
// binding of the same name (spec §4.F "let binds; rebinding in the same
// scope shadows previous").
func (vm *Vm) Define(name string, v value.Value, mutable bool, sp span.ID) {
	vm.currentFrame().Bindings[name] = &value.Binding{Value: v, Mutable: mutable, SpanID: sp}
}

// Lookup resolves name against the scope stack innermost-first, then
// the module scope, reporting whether a binding was found.
func (vm *Vm) Lookup(name string) (*value.Binding, bool) {
	for i := len(vm.frames) - 1; i >= 0; i-- {
		if b, ok := vm.frames[i].Bindings[name]; ok {
			return b, true
		}
	}
	if b, ok := vm.Module.Scope[name]; ok {
		return b, true
	}
	return nil, false
}

// step consumes one unit of the iteration budget, returning an error
// once exhausted (spec §7 "Complexity: maximum call depth, loop seems to
// be infinite").
func (vm *Vm) step(sp span.ID) error {
	vm.steps++
	if vm.steps > defaultIterationBudget {
		return fmt.Errorf("evaluation exceeded its step budget")
	}
	return nil
}

// Eval evaluates v and returns its value, or an error if evaluation
// aborts this branch (spec §7 "Propagation": errors bubble up the
// evaluation stack).
func (vm *Vm) Eval(v ast.View) (value.Value, error) {
	if v.IsZero() {
		return value.None{}, nil
	}
	if err := vm.step(v.Span()); err != nil {
		return nil, err
	}

	switch v.Kind() {
	case token.Int:
		return parseIntLiteral(v.Text())
	case token.Float:
		return parseFloatLiteral(v.Text())
	case token.Str:
		return value.String(unquote(v.Text())), nil
	case token.KwNone:
		return value.None{}, nil
	case token.KwAuto:
		return value.Auto{}, nil
	case token.KwTrue:
		return value.Bool(true), nil
	case token.KwFalse:
		return value.Bool(false), nil
	case token.Ident:
		return vm.evalIdent(v)
	case token.UnaryExpr:
		return vm.evalUnary(v)
	case token.BinaryExpr:
		return vm.evalBinary(v)
	case token.Paren:
		return vm.Eval(v.Inner())
	case token.Array:
		return vm.evalArray(v)
	case token.Dict:
		return vm.evalDict(v)
	case token.FuncCall:
		return vm.evalCall(v)
	case token.FieldAccess:
		return vm.evalFieldAccess(v)
	case token.IndexExpr:
		return vm.evalIndex(v)
	case token.LetBinding:
		return vm.evalLet(v)
	case token.IfExpr:
		return vm.evalIf(v)
	case token.ForLoop:
		return vm.evalFor(v)
	case token.WhileLoop:
		return vm.evalWhile(v)
	case token.Closure:
		return vm.evalClosure(v)
	case token.ReturnStmt:
		return vm.evalReturn(v)
	case token.BreakStmt:
		vm.flow = FlowBreaking
		return value.None{}, nil
	case token.ContinueStmt:
		vm.flow = FlowContinuing
		return value.None{}, nil
	case token.ContextExpr:
		return vm.evalContext(v)
	case token.CodeBlock, token.MarkupBlock, token.ContentBlock, token.SourceFile:
		return vm.evalBlock(v)
	case token.HashMarker:
		return vm.Eval(v.Inner())
	case token.Text:
		return textContent(v.Text()), nil
	case token.Space:
		return textContent(" "), nil
	case token.Parbreak:
		return value.ElementContent(&value.Element{ElemKind: "parbreak", Fields: value.NewDict()}), nil
	case token.Linebreak:
		return value.ElementContent(&value.Element{ElemKind: "linebreak", Fields: value.NewDict()}), nil
	case token.Label, token.LabelExpr:
		return evalLabelLeaf(v)
	case token.Strong:
		return vm.evalEmphasis(v, "strong")
	case token.Emph:
		return vm.evalEmphasis(v, "emph")
	case token.Heading:
		return vm.evalHeading(v)
	case token.ListItem:
		return vm.evalMarkupItem(v, "list-item")
	case token.EnumItem:
		return vm.evalMarkupItem(v, "enum-item")
	case token.TermItem:
		return vm.evalMarkupItem(v, "term-item")
	case token.RefExpr:
		return vm.evalRef(v)
	default:
		return value.None{}, nil
	}
}

// textContent wraps a plain text run as a "text" element, the atomic
// unit markup's join rule concatenates (spec §4.F "Markup joins
// fragments with the type-specific join rules").
func textContent(s string) value.Content {
	f := value.NewDict()
	f.Set("text", value.String(s))
	return value.ElementContent(&value.Element{ElemKind: "text", Fields: f})
}

func evalLabelLeaf(v ast.View) (value.Value, error) {
	return value.Label(v.LabelName()), nil
}

// evalMarkupBody evaluates a Heading/ListItem/EnumItem/TermItem's body
// children into a single joined Content, peeling off a trailing label
// (spec §3 "Label": a heading or list item directly followed by
// "<name>" attaches that label to the element rather than contributing
// visible content).
func (vm *Vm) evalMarkupBody(v ast.View) (value.Content, string, bool, error) {
	kids := v.MarkupChildren()
	label, hasLabel := v.TrailingLabel()
	if hasLabel {
		kids = kids[:len(kids)-1]
	}
	var results []value.Content
	for _, k := range kids {
		val, err := vm.Eval(k)
		if err != nil {
			return value.Content{}, "", false, err
		}
		switch cv := val.(type) {
		case value.Content:
			results = append(results, cv)
		case value.Label, value.None:
			// no content contribution
		default:
			results = append(results, textContent(cv.Repr()))
		}
	}
	return value.SequenceContent(results...), label, hasLabel, nil
}

func (vm *Vm) evalHeading(v ast.View) (value.Value, error) {
	body, label, hasLabel, err := vm.evalMarkupBody(v)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("level", value.Int(v.Level()))
	f.Set("body", body)
	return value.ElementContent(&value.Element{
		ElemKind: "heading",
		Fields:   f,
		Label:    value.Label(label),
		HasLabel: hasLabel,
	}), nil
}

func (vm *Vm) evalMarkupItem(v ast.View, elemKind string) (value.Value, error) {
	body, label, hasLabel, err := vm.evalMarkupBody(v)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("body", body)
	return value.ElementContent(&value.Element{
		ElemKind: elemKind,
		Fields:   f,
		Label:    value.Label(label),
		HasLabel: hasLabel,
	}), nil
}

// evalEmphasis evaluates a Strong/Emph span's body into a "strong"/"emph"
// element, the same shape the stdlib's strong()/emph() constructors
// produce so show rules match either origin identically.
func (vm *Vm) evalEmphasis(v ast.View, elemKind string) (value.Value, error) {
	var results []value.Content
	for _, k := range v.EmphasisBody() {
		val, err := vm.Eval(k)
		if err != nil {
			return nil, err
		}
		switch cv := val.(type) {
		case value.Content:
			results = append(results, cv)
		case value.None:
		default:
			results = append(results, textContent(cv.Repr()))
		}
	}
	f := value.NewDict()
	f.Set("body", value.SequenceContent(results...))
	return value.ElementContent(&value.Element{ElemKind: elemKind, Fields: f}), nil
}

// evalRef evaluates a reference expression's label operand into a "ref"
// element (spec §8 scenario 3: "#ref(<intro>)"). RefExpr itself is not
// currently produced by the parser (references are parsed as ordinary
// calls to the `ref` stdlib function), but token.Kind is a closed,
// exhaustively-switched enumeration, so it is handled here rather than
// left to the catch-all default.
func (vm *Vm) evalRef(v ast.View) (value.Value, error) {
	target, err := vm.Eval(v.RefTarget())
	if err != nil {
		return nil, err
	}
	lbl, ok := target.(value.Label)
	if !ok {
		return nil, fmt.Errorf("expected label, found %s", target.Kind())
	}
	f := value.NewDict()
	f.Set("target", lbl)
	return value.ElementContent(&value.Element{ElemKind: "ref", Fields: f}), nil
}

func (vm *Vm) evalIdent(v ast.View) (value.Value, error) {
	name := v.Text()
	b, ok := vm.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown variable: %s", name)
	}
	return b.Value, nil
}

func (vm *Vm) evalUnary(v ast.View) (value.Value, error) {
	operand, err := vm.Eval(v.Operand())
	if err != nil {
		return nil, err
	}
	switch v.UnaryOp() {
	case token.Minus:
		return value.Neg(operand)
	case token.Plus:
		if !isNumericKind(operand) {
			return nil, fmt.Errorf("cannot apply unary + to %s", operand.Kind())
		}
		return operand, nil
	case token.KwNot:
		b, ok := operand.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, found %s", operand.Kind())
		}
		return !b, nil
	}
	return nil, fmt.Errorf("unsupported unary operator")
}

func isNumericKind(v value.Value) bool {
	switch v.Kind() {
	case value.KindInt, value.KindFloat, value.KindDecimal, value.KindLength,
		value.KindAngle, value.KindRatio, value.KindRelative, value.KindFraction:
		return true
	}
	return false
}

func (vm *Vm) evalBinary(v ast.View) (value.Value, error) {
	op := v.Op()
	// short-circuit operators evaluate the right side conditionally
	if op == token.KwAnd || op == token.KwOr {
		left, err := vm.Eval(v.Left())
		if err != nil {
			return nil, err
		}
		lb, ok := left.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, found %s", left.Kind())
		}
		if op == token.KwAnd && !bool(lb) {
			return value.Bool(false), nil
		}
		if op == token.KwOr && bool(lb) {
			return value.Bool(true), nil
		}
		right, err := vm.Eval(v.Right())
		if err != nil {
			return nil, err
		}
		rb, ok := right.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, found %s", right.Kind())
		}
		return rb, nil
	}

	left, err := vm.Eval(v.Left())
	if err != nil {
		return nil, err
	}
	right, err := vm.Eval(v.Right())
	if err != nil {
		return nil, err
	}
	switch op {
	case token.Plus:
		return joinOrAdd(left, right)
	case token.Minus:
		return value.Sub(left, right)
	case token.Star:
		return value.Mul(left, right)
	case token.Slash:
		return value.Div(left, right)
	case token.EqEq:
		return value.Bool(value.DeepEqual(left, right)), nil
	case token.NotEq:
		return value.Bool(!value.DeepEqual(left, right)), nil
	case token.Lt, token.LtEq, token.Gt, token.GtEq:
		cmp, err := value.Compare(left, right)
		if err != nil {
			return nil, err
		}
		switch op {
		case token.Lt:
			return value.Bool(cmp < 0), nil
		case token.LtEq:
			return value.Bool(cmp <= 0), nil
		case token.Gt:
			return value.Bool(cmp > 0), nil
		case token.GtEq:
			return value.Bool(cmp >= 0), nil
		}
	case token.KwIn:
		return vm.evalIn(left, right)
	}
	return nil, fmt.Errorf("unsupported binary operator")
}

// joinOrAdd implements markup's join rule when either operand is
// Content, and numeric/string/array/dict addition otherwise (spec
// §4.F "Markup joins fragments with the type-specific join rules:
// contents concatenate; strings concatenate with strings; numbers
// attempt addition; mixing content and integer is an error").
func joinOrAdd(left, right value.Value) (value.Value, error) {
	_, lc := left.(value.Content)
	_, rc := right.(value.Content)
	if lc || rc {
		if !lc || !rc {
			if _, lNone := left.(value.None); lNone {
				return right, nil
			}
			if _, rNone := right.(value.None); rNone {
				return left, nil
			}
			return nil, fmt.Errorf("cannot join content with %s", pickNonContentKind(left, right))
		}
	}
	return value.Add(left, right)
}

func pickNonContentKind(left, right value.Value) value.Kind {
	if _, ok := left.(value.Content); ok {
		return right.Kind()
	}
	return left.Kind()
}

func (vm *Vm) evalIn(left, right value.Value) (value.Value, error) {
	if arr, ok := right.(value.Array); ok {
		for _, e := range arr.Elems {
			if value.DeepEqual(left, e) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	}
	if d, ok := right.(*value.Dict); ok {
		s, ok := left.(value.String)
		if !ok {
			return nil, fmt.Errorf("expected string key, found %s", left.Kind())
		}
		_, exists := d.Get(string(s))
		return value.Bool(exists), nil
	}
	if s, ok := right.(value.String); ok {
		sub, ok := left.(value.String)
		if !ok {
			return nil, fmt.Errorf("expected string, found %s", left.Kind())
		}
		return value.Bool(containsStr(string(s), string(sub))), nil
	}
	return nil, fmt.Errorf("cannot check membership in %s", right.Kind())
}

func containsStr(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func (vm *Vm) evalArray(v ast.View) (value.Value, error) {
	var elems []value.Value
	for _, item := range v.ArgList() {
		if item.Kind() == token.SpreadArg {
			spread, err := vm.Eval(item.Inner())
			if err != nil {
				return nil, err
			}
			if err := value.Spread(value.SpreadIntoArray, spread,
				func(e value.Value) { elems = append(elems, e) }, nil, nil); err != nil {
				return nil, err
			}
			continue
		}
		val, err := vm.Eval(item)
		if err != nil {
			return nil, err
		}
		elems = append(elems, val)
	}
	return value.Array{Elems: elems}, nil
}

func (vm *Vm) evalDict(v ast.View) (value.Value, error) {
	d := value.NewDict()
	for _, item := range v.ArgList() {
		if item.Kind() == token.SpreadArg {
			spread, err := vm.Eval(item.Inner())
			if err != nil {
				return nil, err
			}
			if err := value.Spread(value.SpreadIntoDict, spread, nil,
				func(k string, val value.Value) { d.Set(k, val) }, nil); err != nil {
				return nil, err
			}
			continue
		}
		if item.Kind() == token.NamedArg {
			name, _ := item.Left().IsIdent()
			val, err := vm.Eval(item.Right())
			if err != nil {
				return nil, err
			}
			d.Set(name, val)
		}
	}
	return d, nil
}

func (vm *Vm) evalCall(v ast.View) (value.Value, error) {
	calleeExpr := v.Callee()
	var recv value.Value
	var method Method
	var haveMethod bool
	if calleeExpr.Kind() == token.FieldAccess {
		base, err := vm.Eval(calleeExpr.Base())
		if err != nil {
			return nil, err
		}
		name, _ := calleeExpr.FieldName().IsIdent()
		if fn, ok := lookupMethod(base.Kind(), name); ok {
			recv, method, haveMethod = base, fn, true
		}
	}

	var callee value.Value
	if !haveMethod {
		var err error
		callee, err = vm.Eval(calleeExpr)
		if err != nil {
			return nil, err
		}
	}
	args := value.NewArguments()
	for _, a := range v.Args().ArgList() {
		switch a.Kind() {
		case token.SpreadArg:
			spread, err := vm.Eval(a.Inner())
			if err != nil {
				return nil, err
			}
			if err := value.Spread(value.SpreadIntoArgs, spread,
				nil,
				func(k string, val value.Value) { args.SetNamed(k, val) },
				func(val value.Value) { args.Positional = append(args.Positional, val) }); err != nil {
				return nil, err
			}
		case token.NamedArg:
			name, _ := a.Left().IsIdent()
			val, err := vm.Eval(a.Right())
			if err != nil {
				return nil, err
			}
			args.SetNamed(name, val)
		default:
			val, err := vm.Eval(a)
			if err != nil {
				return nil, err
			}
			args.Positional = append(args.Positional, val)
		}
	}
	if haveMethod {
		return method(vm, recv, args)
	}
	return vm.Invoke(callee, args)
}

// Invoke calls any value.Callable, pushing a fresh call-boundary frame
// for closures (spec §4.F "Closures: push frame with captures and bound
// parameters; evaluate body; pop").
func (vm *Vm) Invoke(callee value.Value, args *value.Arguments) (value.Value, error) {
	switch fn := callee.(type) {
	case *value.NativeFunc:
		return fn.Call(vm, args)
	case *value.WithApplied:
		merged := value.NewArguments()
		merged.Positional = append(append([]value.Value{}, fn.Partial.Positional...), args.Positional...)
		for _, k := range fn.Partial.NamedOrder {
			merged.SetNamed(k, fn.Partial.Named[k])
		}
		for _, k := range args.NamedOrder {
			merged.SetNamed(k, args.Named[k])
		}
		return vm.Invoke(fn.Base, merged)
	case *value.Closure:
		return vm.invokeClosure(fn, args)
	default:
		return nil, fmt.Errorf("cannot call a value of type %s", callee.Kind())
	}
}

func (vm *Vm) invokeClosure(fn *value.Closure, args *value.Arguments) (value.Value, error) {
	if vm.callDepth >= defaultCallDepth {
		return nil, fmt.Errorf("maximum call depth exceeded")
	}
	vm.callDepth++
	defer func() { vm.callDepth-- }()

	vm.frames = append(vm.frames, newFrame(true))
	frame := vm.currentFrame()
	for k, v := range fn.Captures {
		frame.Bindings[k] = &value.Binding{Value: v}
	}

	positional := append([]value.Value{}, args.Positional...)
	namedUsed := map[string]bool{}
	pi := 0
	for _, p := range fn.Params {
		if p.IsSink {
			sink := value.NewArguments()
			for ; pi < len(positional); pi++ {
				sink.Positional = append(sink.Positional, positional[pi])
			}
			for _, k := range args.NamedOrder {
				if !namedUsed[k] {
					sink.SetNamed(k, args.Named[k])
					namedUsed[k] = true
				}
			}
			frame.Bindings[p.Name] = &value.Binding{Value: sink}
			continue
		}
		if v, ok := args.Named[p.Name]; ok {
			frame.Bindings[p.Name] = &value.Binding{Value: v}
			namedUsed[p.Name] = true
			continue
		}
		if pi < len(positional) {
			frame.Bindings[p.Name] = &value.Binding{Value: positional[pi]}
			pi++
			continue
		}
		if !p.HasDflt {
			vm.frames = vm.frames[:len(vm.frames)-1]
			return nil, fmt.Errorf("missing argument for parameter %q", p.Name)
		}
		if dv, ok := p.DefaultThunk.(ast.View); ok && !dv.IsZero() {
			dflt, err := vm.Eval(dv)
			if err != nil {
				vm.frames = vm.frames[:len(vm.frames)-1]
				return nil, err
			}
			frame.Bindings[p.Name] = &value.Binding{Value: dflt}
		}
	}

	bodyView, _ := fn.Body.(ast.View)
	result, err := vm.Eval(bodyView)
	vm.frames = vm.frames[:len(vm.frames)-1]
	if err != nil {
		return nil, err
	}
	if vm.flow == FlowReturning {
		result = vm.flowValue
		vm.flow = FlowRunning
		vm.flowValue = nil
	}
	return result, nil
}

func (vm *Vm) evalFieldAccess(v ast.View) (value.Value, error) {
	base, err := vm.Eval(v.Base())
	if err != nil {
		return nil, err
	}
	field, _ := v.FieldName().IsIdent()
	switch b := base.(type) {
	case *value.Module:
		binding, ok := b.Scope[field]
		if !ok {
			return nil, fmt.Errorf("module %q has no member %q", b.Path, field)
		}
		return binding.Value, nil
	case *value.Dict:
		val, ok := b.Get(field)
		if !ok {
			return nil, fmt.Errorf("dictionary does not contain key %q", field)
		}
		return val, nil
	case *value.Plugin:
		call, ok := b.Funcs[field]
		if !ok {
			return nil, fmt.Errorf("plugin %q has no function %q", b.Path, field)
		}
		return &value.NativeFunc{Name: b.Path + "." + field, Call: pluginCallAdapter(call)}, nil
	case *value.NativeFunc:
		if v, ok := b.Fields[field]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("function %q has no member %q", b.Name, field)
	case Type:
		return nil, fmt.Errorf("cannot access fields on type %s", b.Repr())
	default:
		return nil, fmt.Errorf("cannot access fields on %s", base.Kind())
	}
}

type Type = value.Type

// pluginCallAdapter wraps a raw plugin function (spec §6 "Plugin
// interface": each function takes length-prefixed byte-slice arguments
// and returns success bytes or an error message) as a value.NativeFunc's
// Call signature, decoding positional arguments into byte slices and
// translating a guest error return into a Go error carrying the UTF-8
// message the guest sent.
func pluginCallAdapter(call func(args [][]byte) ([]byte, bool, error)) func(interface{}, *value.Arguments) (value.Value, error) {
	return func(_ interface{}, args *value.Arguments) (value.Value, error) {
		raw := make([][]byte, len(args.Positional))
		for i, a := range args.Positional {
			switch v := a.(type) {
			case value.Bytes:
				raw[i] = v.Data
			case value.String:
				raw[i] = []byte(v)
			default:
				return nil, fmt.Errorf("plugin argument %d: expected bytes or string, found %s", i, a.Kind())
			}
		}
		result, isErr, err := call(raw)
		if err != nil {
			return nil, err
		}
		if isErr {
			return nil, fmt.Errorf("%s", string(result))
		}
		return value.Bytes{Data: result}, nil
	}
}

func (vm *Vm) evalIndex(v ast.View) (value.Value, error) {
	base, err := vm.Eval(v.Left())
	if err != nil {
		return nil, err
	}
	idx, err := vm.Eval(v.Right())
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case value.Array:
		i, ok := idx.(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer index, found %s", idx.Kind())
		}
		n := int64(len(b.Elems))
		ii := int64(i)
		if ii < 0 {
			ii += n
		}
		if ii < 0 || ii >= n {
			return nil, fmt.Errorf("array index out of bounds (index: %d, len: %d)", i, n)
		}
		return b.Elems[ii], nil
	case *value.Dict:
		s, ok := idx.(value.String)
		if !ok {
			return nil, fmt.Errorf("expected string key, found %s", idx.Kind())
		}
		val, ok := b.Get(string(s))
		if !ok {
			return nil, fmt.Errorf("dictionary does not contain key %q", string(s))
		}
		return val, nil
	}
	return nil, fmt.Errorf("cannot index into %s", base.Kind())
}

func (vm *Vm) evalLet(v ast.View) (value.Value, error) {
	pattern := v.LetPattern()
	val := value.Value(value.None{})
	if init := v.LetValue(); !init.IsZero() {
		var err error
		val, err = vm.Eval(init)
		if err != nil {
			return nil, err
		}
	}
	if err := vm.bindPattern(pattern, val); err != nil {
		return nil, err
	}
	return value.None{}, nil
}

// bindPattern destructures val against pattern (spec §4.F "Destructuring
// patterns must match exactly: wrong length -> 'too many/not enough
// elements to destructure'").
func (vm *Vm) bindPattern(pattern ast.View, val value.Value) error {
	if name, ok := pattern.IsIdent(); ok {
		vm.Define(name, val, true, pattern.Span())
		return nil
	}
	if pattern.Kind() != token.DestructurePattern {
		return fmt.Errorf("unsupported binding pattern")
	}
	items := pattern.Statements()
	arr, isArr := val.(value.Array)
	if isArr {
		if len(items) != len(arr.Elems) {
			if len(arr.Elems) > len(items) {
				return fmt.Errorf("too many elements to destructure (expected %d, found %d)", len(items), len(arr.Elems))
			}
			return fmt.Errorf("not enough elements to destructure (expected %d, found %d)", len(items), len(arr.Elems))
		}
		for i, it := range items {
			if err := vm.bindPattern(it, arr.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	}
	d, isDict := val.(*value.Dict)
	if isDict {
		for _, it := range items {
			name, ok := it.IsIdent()
			if !ok {
				return fmt.Errorf("unsupported destructure item")
			}
			fv, ok := d.Get(name)
			if !ok {
				return fmt.Errorf("dictionary does not contain key %q to destructure", name)
			}
			vm.Define(name, fv, true, it.Span())
		}
		return nil
	}
	return fmt.Errorf("cannot destructure a value of type %s", val.Kind())
}

func (vm *Vm) evalIf(v ast.View) (value.Value, error) {
	cond, err := vm.Eval(v.Cond())
	if err != nil {
		return nil, err
	}
	b, ok := cond.(value.Bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, found %s", cond.Kind())
	}
	if bool(b) {
		return vm.Eval(v.Then())
	}
	if els := v.Else(); !els.IsZero() {
		return vm.Eval(els)
	}
	return value.None{}, nil
}

func (vm *Vm) evalFor(v ast.View) (value.Value, error) {
	iterVal, err := vm.Eval(v.Iterable())
	if err != nil {
		return nil, err
	}
	pattern := v.Pattern()
	var results []value.Content
	iterate := func(bind func() error, body ast.View) (bool, error) {
		vm.pushScope()
		if err := bind(); err != nil {
			vm.popScope()
			return false, err
		}
		res, err := vm.Eval(body)
		vm.popScope()
		if err != nil {
			return false, err
		}
		if c, ok := res.(value.Content); ok {
			results = append(results, c)
		}
		switch vm.flow {
		case FlowBreaking:
			vm.flow = FlowRunning
			return true, nil
		case FlowContinuing:
			vm.flow = FlowRunning
		case FlowReturning:
			return true, nil
		}
		return false, nil
	}

	switch it := iterVal.(type) {
	case value.Array:
		for _, e := range it.Elems {
			stop, err := iterate(func() error { return vm.bindPattern(pattern, e) }, v.Body())
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
	case *value.Dict:
		stopAll := false
		var iterErr error
		it.Each(func(k string, val value.Value) {
			if stopAll {
				return
			}
			pair := value.Array{Elems: []value.Value{value.String(k), val}}
			stop, err := iterate(func() error { return vm.bindPattern(pattern, pair) }, v.Body())
			if err != nil {
				iterErr = err
				stopAll = true
				return
			}
			if stop {
				stopAll = true
			}
		})
		if iterErr != nil {
			return nil, iterErr
		}
	case value.String:
		for _, g := range value.GraphemeClusters(string(it)) {
			stop, err := iterate(func() error { return vm.bindPattern(pattern, g) }, v.Body())
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
	case value.Bytes:
		for _, bbyte := range it.Data {
			stop, err := iterate(func() error { return vm.bindPattern(pattern, value.Int(bbyte)) }, v.Body())
			if err != nil {
				return nil, err
			}
			if stop {
				break
			}
		}
	default:
		return nil, fmt.Errorf("cannot iterate over %s", iterVal.Kind())
	}
	if vm.flow == FlowReturning {
		return value.None{}, nil
	}
	return value.SequenceContent(results...), nil
}

// evalWhile implements the loop with infinite-loop detection: if
// whileProbeWindow iterations pass with no change to the bindings of the
// loop body's own scope, evaluation errors rather than hanging. Only that
// innermost scope is fingerprinted; changes to variables of enclosing
// scopes are not seen by the probe (spec §4.F "detects infinite loops by tracking whether any
// observable side effect or change occurred over ~1000 iterations").
func (vm *Vm) evalWhile(v ast.View) (value.Value, error) {
	var results []value.Content
	probeStart := 0
	var lastSnapshot string
	for {
		cond, err := vm.Eval(v.Cond())
		if err != nil {
			return nil, err
		}
		b, ok := cond.(value.Bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, found %s", cond.Kind())
		}
		if !bool(b) {
			break
		}
		vm.pushScope()
		res, err := vm.Eval(v.Body())
		snap := vm.scopeSnapshot()
		vm.popScope()
		if err != nil {
			return nil, err
		}
		if c, ok := res.(value.Content); ok {
			results = append(results, c)
		}
		switch vm.flow {
		case FlowBreaking:
			vm.flow = FlowRunning
			return value.SequenceContent(results...), nil
		case FlowContinuing:
			vm.flow = FlowRunning
		case FlowReturning:
			return value.None{}, nil
		}

		probeStart++
		if probeStart == 1 {
			lastSnapshot = snap
		} else if probeStart%whileProbeWindow == 0 {
			if snap == lastSnapshot {
				return nil, fmt.Errorf("loop seems to be infinite")
			}
			lastSnapshot = snap
		}
		if err := vm.step(v.Span()); err != nil {
			return nil, err
		}
	}
	return value.SequenceContent(results...), nil
}

// scopeSnapshot is a cheap fingerprint of the innermost frame's bindings,
// used only as a change detector for evalWhile's infinite-loop probe —
// not a correctness-critical digest.
func (vm *Vm) scopeSnapshot() string {
	f := vm.currentFrame()
	s := ""
	for k, b := range f.Bindings {
		s += k + "=" + b.Value.Repr() + ";"
	}
	return s
}

func (vm *Vm) evalClosure(v ast.View) (value.Value, error) {
	var params []value.Param
	for _, p := range v.ParamList() {
		switch p.Kind() {
		case token.SinkParam:
			name, _ := p.Inner().IsIdent()
			params = append(params, value.Param{Name: name, IsSink: true})
		case token.Param:
			if name, ok := p.IsIdent(); ok {
				params = append(params, value.Param{Name: name})
				continue
			}
			name, _ := p.Left().IsIdent()
			if items := p.Statements(); len(items) >= 2 {
				params = append(params, value.Param{Name: name, HasDflt: true, DefaultThunk: items[1]})
				continue
			}
			params = append(params, value.Param{Name: name})
		}
	}
	captures := map[string]value.Value{}
	for i := len(vm.frames) - 1; i >= 0; i-- {
		for name, b := range vm.frames[i].Bindings {
			if _, exists := captures[name]; !exists {
				captures[name] = b.Value
			}
		}
	}
	for name, b := range vm.Module.Scope {
		if _, exists := captures[name]; !exists {
			captures[name] = b.Value
		}
	}
	return value.NewClosure("", params, v.ClosureBody(), captures, 0, int64(v.ClosureBody().Span())), nil
}

func (vm *Vm) evalReturn(v ast.View) (value.Value, error) {
	inner := v.Inner()
	val := value.Value(value.None{})
	if !inner.IsZero() {
		var err error
		val, err = vm.Eval(inner)
		if err != nil {
			return nil, err
		}
	}
	vm.flow = FlowReturning
	vm.flowValue = val
	return val, nil
}

// evalContext captures the ambient style chain and defers evaluation of
// the body until realization (spec §4.F "the body is evaluated lazily
// during realization"); the language core represents that deferral as a
// Closure with zero parameters over the current captures. Package
// realize does not invoke such closures; they stay unevaluated values.
func (vm *Vm) evalContext(v ast.View) (value.Value, error) {
	return vm.evalClosure(v)
}

func (vm *Vm) evalBlock(v ast.View) (value.Value, error) {
	vm.pushScope()
	defer vm.popScope()
	var results []value.Content
	var last value.Value = value.None{}
	for _, stmt := range v.Statements() {
		res, err := vm.Eval(stmt)
		if err != nil {
			return nil, err
		}
		if vm.flow == FlowReturning && len(results) > 0 && vm.Bag != nil {
			if _, isNone := vm.flowValue.(value.None); !isNone {
				vm.Bag.Warnf(stmt.Span(), "returning a value from inside content discards the content produced so far")
			}
		}
		last = res
		if c, ok := res.(value.Content); ok {
			results = append(results, c)
		}
		if vm.flow != FlowRunning {
			break
		}
	}
	if len(results) > 0 {
		return value.SequenceContent(results...), nil
	}
	return last, nil
}
