package value

import "fmt"

// Location is assigned once, during realization, to each locatable content
// instance (spec §3 "Lifecycles").
type Location struct {
	// Unique is a monotone identifier, counted per realize.Engine; downstream layout maps
	// it to a page/position, which this core does not compute.
	Unique uint64
}

// Element is one node of a persistent content tree (spec §3 "Content").
// ElemKind is a string (rather than a closed Go enum) because the
// standard library surface (component L) defines new element kinds as
// ordinary library data, not as compiler-known cases — matching how
// cuelang.org/go keeps builtin names in a runtime-populated table
// (internal/core/runtime's builtinPaths) rather than a switch statement.
type Element struct {
	ElemKind string
	Fields   *Dict // sparse: constructor-set and later materialized fields
	Label    Label
	HasLabel bool
	Location *Location // nil until realization assigns one
	Override *Styles    // per-instance style overrides, if any
}

// Content is a persistent tree of elements. The zero Content is the empty
// sequence.
type Content struct {
	// Kind distinguishes a single Element, a Sequence grouping children in
	// document order, and a Styled node attaching a style-chain fragment
	// to a subtree (spec §3).
	Kind     ContentKind
	Elem     *Element
	Children []Content  // for Sequence
	Style    *StyleEntry // for Styled
	Child    *Content    // for Styled
}

type ContentKind uint8

const (
	ContentEmpty ContentKind = iota
	ContentElement
	ContentSequence
	ContentStyled
)

func (Content) Kind() Kind { return KindContent }

func (c Content) Repr() string {
	switch c.Kind {
	case ContentEmpty:
		return "[]"
	case ContentElement:
		return fmt.Sprintf("[%s]", c.Elem.ElemKind)
	case ContentSequence:
		s := "["
		for i, ch := range c.Children {
			if i > 0 {
				s += " "
			}
			s += ch.Repr()
		}
		return s + "]"
	case ContentStyled:
		return fmt.Sprintf("styled(%s)", c.Child.Repr())
	}
	return "[]"
}
func (Content) isValue() {}

func ElementContent(e *Element) Content {
	return Content{Kind: ContentElement, Elem: e}
}

func SequenceContent(items ...Content) Content {
	var flat []Content
	for _, it := range items {
		switch it.Kind {
		case ContentEmpty:
			continue
		case ContentSequence:
			flat = append(flat, it.Children...)
		default:
			flat = append(flat, it)
		}
	}
	if len(flat) == 0 {
		return Content{Kind: ContentEmpty}
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return Content{Kind: ContentSequence, Children: flat}
}

func StyledContent(style *StyleEntry, child Content) Content {
	return Content{Kind: ContentStyled, Style: style, Child: &child}
}

// Equal implements structural content equality (spec §4.D: "Content
// equality compares element kind, field map, children, and label — not
// location or applied styles").
func (c Content) Equal(o Content) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case ContentEmpty:
		return true
	case ContentElement:
		return elementsEqual(c.Elem, o.Elem)
	case ContentSequence:
		if len(c.Children) != len(o.Children) {
			return false
		}
		for i := range c.Children {
			if !c.Children[i].Equal(o.Children[i]) {
				return false
			}
		}
		return true
	case ContentStyled:
		return c.Child.Equal(*o.Child)
	}
	return false
}

func elementsEqual(a, b *Element) bool {
	if a.ElemKind != b.ElemKind {
		return false
	}
	if a.HasLabel != b.HasLabel || (a.HasLabel && a.Label != b.Label) {
		return false
	}
	if a.Fields.Len() != b.Fields.Len() {
		return false
	}
	eq := true
	a.Fields.Each(func(k string, v Value) {
		if !eq {
			return
		}
		bv, ok := b.Fields.Get(k)
		if !ok || !DeepEqual(v, bv) {
			eq = false
		}
	})
	return eq
}

// --- Arguments ---

// Arguments is itself a Value so closures can spread it (spec §3).
type Arguments struct {
	Positional []Value
	Named      map[string]Value
	// NamedOrder records the names in Named in the order they were first
	// set (see SetNamed); Arguments keeps no per-argument spans.
	NamedOrder []string
}

func (*Arguments) Kind() Kind     { return KindArguments }
func (*Arguments) Repr() string   { return "arguments(..)" }
func (*Arguments) isValue()       {}

func NewArguments() *Arguments {
	return &Arguments{Named: map[string]Value{}}
}

func (a *Arguments) SetNamed(name string, v Value) {
	if _, ok := a.Named[name]; !ok {
		a.NamedOrder = append(a.NamedOrder, name)
	}
	a.Named[name] = v
}

// --- Closure / Function / Module / Type / Selector / Styles ---

// Param describes one closure parameter: name, whether it has a default
// (and the default AST/value), and whether it is the pattern's sink.
type Param struct {
	Name    string
	HasDflt bool
	// Default is resolved lazily by the evaluator against the closure's
	// captured scope; stored here as an opaque thunk identity (an AST
	// node reference), not evaluated at capture time.
	DefaultThunk interface{}
	IsSink       bool
}

// Closure captures its lexical environment by value (spec §3 "Closure",
// Design Note "Captured closures over immutable scopes"): captures are a
// name->value snapshot taken at construction, not a live pointer to the
// defining scope, so closures are hashable by structure and cannot
// observe later mutation of the scope they closed over.
type Closure struct {
	Name       string // empty for anonymous closures
	Params     []Param
	Body       interface{} // *ast view / cst node identity of the closure body
	Captures   map[string]Value
	ModuleID   uintptr // identity of the defining module, for memo keys (spec §4.G)
	BodySpanID int64   // the closure body's span, for memo keys
	id         *closureIdentity
}

type closureIdentity struct{}

func NewClosure(name string, params []Param, body interface{}, captures map[string]Value, moduleID uintptr, bodySpan int64) *Closure {
	return &Closure{Name: name, Params: params, Body: body, Captures: captures, ModuleID: moduleID, BodySpanID: bodySpan, id: &closureIdentity{}}
}

func (*Closure) Kind() Kind   { return KindFunction }
func (c *Closure) Repr() string {
	if c.Name != "" {
		return fmt.Sprintf("<function %s>", c.Name)
	}
	return "<anonymous function>"
}
func (*Closure) isValue() {}

// NativeFunc is a function implemented in Go (standard library surface,
// component L). It receives already-typed Arguments and a caller-supplied
// context value (typically *eval.Vm, imported as interface{} to avoid a
// dependency cycle between value and eval).
type NativeFunc struct {
	Name string
	Call func(ctx interface{}, args *Arguments) (Value, error)

	// Fields holds namespaced sub-callables reachable via field access on
	// the function value itself, e.g. `table.cell` reached as a field on
	// the `table` constructor (spec §3 "Functions as data").
	Fields map[string]Value
}

func (*NativeFunc) Kind() Kind     { return KindFunction }
func (n *NativeFunc) Repr() string { return fmt.Sprintf("<function %s>", n.Name) }
func (*NativeFunc) isValue()       {}

// Callable is implemented by every value that can appear as a call
// callee: Closure, NativeFunc, and With-partial-applications.
type Callable interface {
	Value
	CallableName() string
}

func (c *Closure) CallableName() string     { return c.Name }
func (n *NativeFunc) CallableName() string  { return n.Name }

// WithApplied partially applies a Callable (spec §4.F "with").
type WithApplied struct {
	Base    Callable
	Partial *Arguments
}

func (*WithApplied) Kind() Kind    { return KindFunction }
func (w *WithApplied) Repr() string { return fmt.Sprintf("<function %s.with(..)>", w.Base.CallableName()) }
func (*WithApplied) isValue()      {}
func (w *WithApplied) CallableName() string { return w.Base.CallableName() }

// Binding is a scope entry: a value plus mutability flag and originating
// span, per spec §3 "Module".
type Binding struct {
	Value     Value
	Mutable   bool
	SpanID    int64
}

// Module pairs evaluated top-level content with its exported scope (spec
// §3 "Module"). Modules are hashable by identity: two Module values are
// the "same" module only if they are the same *Module.
type Module struct {
	Path    string
	Content Content
	Scope   map[string]*Binding
	Order   []string // export order, for wildcard imports (spec §4.F)
}

func NewModule(path string) *Module {
	return &Module{Path: path, Scope: map[string]*Binding{}}
}

func (*Module) Kind() Kind     { return KindModule }
func (m *Module) Repr() string { return fmt.Sprintf("<module %q>", m.Path) }
func (*Module) isValue()       {}

func (m *Module) Define(name string, v Value, mutable bool, spanID int64) {
	if _, exists := m.Scope[name]; !exists {
		m.Order = append(m.Order, name)
	}
	m.Scope[name] = &Binding{Value: v, Mutable: mutable, SpanID: spanID}
}

// Type names a value kind as a first-class value, e.g. for `int` used in
// type checks or shown in diagnostics.
type Type struct{ Named Kind }

func (Type) Kind() Kind     { return KindType }
func (t Type) Repr() string { return t.Named.String() }
func (Type) isValue()       {}

// Plugin is a loaded WebAssembly module (spec §6 "Plugin interface");
// the actual instantiation lives in package plugin/wasm, which returns a
// *Plugin wrapping an opaque host handle so that package value does not
// depend on wazero.
type Plugin struct {
	Path  string
	Funcs map[string]func(args [][]byte) ([]byte, bool, error)
}

func (*Plugin) Kind() Kind     { return KindPlugin }
func (p *Plugin) Repr() string { return fmt.Sprintf("<plugin %q>", p.Path) }
func (*Plugin) isValue()       {}

// Styles wraps a style-chain fragment as a first-class value (e.g. the
// result of evaluating a `set` rule before it is joined into the ambient
// chain). The concrete chain type lives in package style to avoid a
// dependency cycle; Styles here is a thin opaque carrier.
type Styles struct{ Chain interface{} }

func (Styles) Kind() Kind   { return KindStyles }
func (Styles) Repr() string { return "<styles>" }
func (Styles) isValue()     {}

// StyleEntry is the payload a Content.Styled node carries; defined here
// (rather than imported from package style) purely to avoid value<->style
// import cycles, since both need to refer to the other's types. It is
// filled by package style, which stores its *style.Entry in Opaque.
type StyleEntry struct {
	Opaque interface{}
}

// Selector describes which elements a show rule or style property
// applies to (spec §3 "Selector"). Composite selectors (And/Or/Before/
// After/Xor) wrap child selectors.
type Selector struct {
	Op       SelectorOp
	ElemKind string          // for OpKind / OpKindPredicate
	Predicate func(*Element) bool // for OpKindPredicate; nil otherwise
	Label    Label           // for OpLabel
	Location *Location       // for OpLocation
	Pattern  string          // for OpRegex
	Children []Selector      // for composite ops
}

type SelectorOp uint8

const (
	SelKind SelectorOp = iota
	SelKindPredicate
	SelLabel
	SelLocation
	SelRegex
	SelAnd
	SelOr
	SelBefore
	SelAfter
	SelXor
)

func (Selector) Kind() Kind   { return KindSelector }
func (Selector) Repr() string { return "<selector>" }
func (Selector) isValue()     {}

// Matches reports whether sel selects e, used by the realization engine
// (component I) and by show-rule application.
func (sel Selector) Matches(e *Element) bool {
	switch sel.Op {
	case SelKind:
		return e.ElemKind == sel.ElemKind
	case SelKindPredicate:
		return e.ElemKind == sel.ElemKind && (sel.Predicate == nil || sel.Predicate(e))
	case SelLabel:
		return e.HasLabel && e.Label == sel.Label
	case SelLocation:
		return e.Location != nil && sel.Location != nil && e.Location.Unique == sel.Location.Unique
	case SelAnd:
		for _, c := range sel.Children {
			if !c.Matches(e) {
				return false
			}
		}
		return true
	case SelOr:
		for _, c := range sel.Children {
			if c.Matches(e) {
				return true
			}
		}
		return false
	case SelXor:
		count := 0
		for _, c := range sel.Children {
			if c.Matches(e) {
				count++
			}
		}
		return count == 1
	default:
		return false
	}
}
