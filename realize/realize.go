// Package realize implements the realization engine (spec §4.I):
// applying style/show rules to a content tree, assigning locations, and
// enforcing label uniqueness. Where package eval walks the AST once per
// call, realize walks an already-evaluated value.Content tree
// repeatedly — each pass may rewrite elements via show rules, so a
// bounded fixed point (spec: "max 64 rewrites per element") replaces
// eval's single linear pass.
//
// The grouping/materialization split mirrors how cuelang.org/go's own
// adt.Vertex finalization (internal/core/adt) walks a value tree
// applying closed-ness and default rules to a fixed point before the
// caller can read fields off it; here the "fields" being finalized are
// style-materialized element fields and the "rules" are show-rule
// transforms instead of CUE's unification defaults.
package realize

import (
	"fmt"

	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/style"
	"github.com/typst-lang/typst-core/value"
)

// maxShowRuleDepth bounds the show-rule fixed point per element (spec
// §4.I, §7 "Complexity: maximum show rule depth").
const maxShowRuleDepth = 64

// locationCounter hands out monotone Location.Unique values; each Engine
// built by realize.New owns its own counter starting from zero, so
// repeated compiles of the same source are deterministic (spec §8
// "Evaluation determinism").
type locationCounter struct{ next uint64 }

func (lc *locationCounter) assign() *value.Location {
	lc.next++
	return &value.Location{Unique: lc.next}
}

// Engine realizes a content tree against a style chain, invoking the
// evaluator to run show-rule transforms. It does not evaluate the
// closures that `context` expressions produce.
type Engine struct {
	Vm  *eval.Vm
	loc locationCounter

	// fired counts show-rule applications by (chain-derived element
	// identity); kept as a pointer-keyed map on *value.Element since
	// Content is copied by value but its Element pointers are stable
	// across a realization pass.
	fired map[*value.Element]int

	seenLabels map[value.Label]bool
	Bag        *fakeBag
}

// fakeBag is a minimal duplicate-label diagnostic sink; package diag's
// real Bag is used by the caller for everything else, but realize keeps
// its own small slice here to avoid importing diag just for one
// message shape used nowhere else.
type fakeBag struct{ Messages []string }

func (b *fakeBag) Warnf(format string, args ...interface{}) {
	b.Messages = append(b.Messages, fmt.Sprintf(format, args...))
}

func New(vm *eval.Vm) *Engine {
	return &Engine{
		Vm:         vm,
		fired:      map[*value.Element]int{},
		seenLabels: map[value.Label]bool{},
		Bag:        &fakeBag{},
	}
}

// Realize runs show rules to a fixed point over c under chain, groups
// contiguous like-typed children into their structural parents, bakes
// applicable style properties into each element's field map, then
// assigns locations and checks label uniqueness (spec §4.I). It
// satisfies the idempotence invariant (spec §8): calling Realize again
// on output that needed no further rewrites is the identity — grouping
// and materialization are themselves idempotent since a regrouped
// parent's item kind ("list", not "list-item") no longer matches
// groupableKind, and re-folding an already-materialized field from the
// same chain yields the same value.
func (e *Engine) Realize(c value.Content, chain *style.Chain) (value.Content, error) {
	e.seenLabels = map[value.Label]bool{}
	out, err := e.applyShowRules(c, chain, 0)
	if err != nil {
		return value.Content{}, err
	}
	out = e.group(out)
	out = e.materialize(out, chain)
	out = e.assignLocations(out)
	e.checkLabels(out)
	return out, nil
}

// group collects contiguous runs of like-typed children into a single
// structural parent element (spec §4.I step 1: "list items into a
// list, table cells into a table, etc."). Table/grid cells are grouped
// directly by their stdlib constructor (component L) since they have
// no bare markup form; here group handles the markup-level item kinds
// that do.
func (e *Engine) group(c value.Content) value.Content {
	switch c.Kind {
	case value.ContentSequence:
		var out []value.Content
		i := 0
		for i < len(c.Children) {
			itemKind, parentKind, ok := groupableKind(c.Children[i])
			if !ok {
				out = append(out, e.group(c.Children[i]))
				i++
				continue
			}
			var items []value.Content
			for i < len(c.Children) {
				k, _, ok2 := groupableKind(c.Children[i])
				if !ok2 || k != itemKind {
					break
				}
				items = append(items, e.group(c.Children[i]))
				i++
			}
			out = append(out, wrapGroup(parentKind, items))
		}
		return value.SequenceContent(out...)
	case value.ContentStyled:
		return value.StyledContent(c.Style, e.group(*c.Child))
	default:
		return c
	}
}

// groupableKind reports the structural parent an element kind groups
// under, if any.
func groupableKind(c value.Content) (itemKind, parentKind string, ok bool) {
	if c.Kind != value.ContentElement {
		return "", "", false
	}
	switch c.Elem.ElemKind {
	case "list-item":
		return "list-item", "list", true
	case "enum-item":
		return "enum-item", "enum", true
	case "term-item":
		return "term-item", "terms", true
	}
	return "", "", false
}

func wrapGroup(parentKind string, items []value.Content) value.Content {
	vs := make([]value.Value, len(items))
	for i, it := range items {
		vs[i] = it
	}
	f := value.NewDict()
	f.Set("items", value.Array{Elems: vs})
	return value.ElementContent(&value.Element{ElemKind: parentKind, Fields: f})
}

// materializableFields names, per element kind, the style fields that
// get baked into the field map at realization time (spec §4.I step 4),
// grounded on the same field/kind pairings style/style_test.go
// exercises against Chain.Fold directly.
var materializableFields = map[string][]struct {
	field string
	kind  style.FoldKind
}{
	"text": {
		{"size", style.FoldScalar},
		{"fill", style.FoldScalar},
		{"features", style.FoldTagMap},
	},
	"heading": {
		{"size", style.FoldScalar},
		{"fill", style.FoldScalar},
	},
	"strong": {{"fill", style.FoldScalar}},
	"emph":   {{"fill", style.FoldScalar}},
	"rect":   {{"fill", style.FoldScalar}, {"stroke", style.FoldStrokeSides}},
}

// nestedContentFields/nestedContentArrayFields name the field keys
// under which an element's Fields dict carries further Content that
// also needs grouping/materialization — a heading's/list-item's body,
// a figure's caption, a list's/table's items.
var nestedContentFields = []string{"body", "caption"}
var nestedContentArrayFields = []string{"items", "cells"}

func matchSelector(sel *value.Selector, e *value.Element) bool { return sel.Matches(e) }

// materialize bakes the effective value of every applicable style
// field into each element's field map, folding the ambient chain the
// way the realization engine's show-rule pass already threads it
// through Styled nodes.
func (e *Engine) materialize(c value.Content, chain *style.Chain) value.Content {
	switch c.Kind {
	case value.ContentSequence:
		children := make([]value.Content, len(c.Children))
		for i, ch := range c.Children {
			children[i] = e.materialize(ch, chain)
		}
		return value.SequenceContent(children...)
	case value.ContentStyled:
		childChain := style.FromStyleEntry(chain, c.Style)
		return value.StyledContent(c.Style, e.materialize(*c.Child, childChain))
	case value.ContentElement:
		return e.materializeElement(c, chain)
	}
	return c
}

func (e *Engine) materializeElement(c value.Content, chain *style.Chain) value.Content {
	elem := c.Elem
	fields := elem.Fields
	cloned := false
	ensure := func() {
		if !cloned {
			fields = elem.Fields.Clone()
			cloned = true
		}
	}

	for _, spec := range materializableFields[elem.ElemKind] {
		v, ok := chain.Fold(elem.ElemKind, spec.field, spec.kind, elem, matchSelector)
		if !ok {
			continue
		}
		ensure()
		fields.Set(spec.field, v)
	}

	for _, key := range nestedContentFields {
		v, ok := fields.Get(key)
		if !ok {
			continue
		}
		body, ok := v.(value.Content)
		if !ok {
			continue
		}
		rc := e.materialize(e.group(body), chain)
		if !rc.Equal(body) {
			ensure()
			fields.Set(key, rc)
		}
	}
	for _, key := range nestedContentArrayFields {
		v, ok := fields.Get(key)
		if !ok {
			continue
		}
		arr, ok := v.(value.Array)
		if !ok {
			continue
		}
		newElems := make([]value.Value, len(arr.Elems))
		changed := false
		for i, it := range arr.Elems {
			ic, ok := it.(value.Content)
			if !ok {
				newElems[i] = it
				continue
			}
			rc := e.materialize(e.group(ic), chain)
			newElems[i] = rc
			if !rc.Equal(ic) {
				changed = true
			}
		}
		if changed {
			ensure()
			fields.Set(key, value.Array{Elems: newElems})
		}
	}

	if !cloned {
		return c
	}
	ne := *elem
	ne.Fields = fields
	return value.ElementContent(&ne)
}

func (e *Engine) applyShowRules(c value.Content, chain *style.Chain, depth int) (value.Content, error) {
	switch c.Kind {
	case value.ContentEmpty:
		return c, nil
	case value.ContentSequence:
		children := make([]value.Content, len(c.Children))
		for i, ch := range c.Children {
			rc, err := e.applyShowRules(ch, chain, depth)
			if err != nil {
				return value.Content{}, err
			}
			children[i] = rc
		}
		return value.SequenceContent(children...), nil
	case value.ContentStyled:
		childChain := style.FromStyleEntry(chain, c.Style)
		rc, err := e.applyShowRules(*c.Child, childChain, depth)
		if err != nil {
			return value.Content{}, err
		}
		return value.StyledContent(c.Style, rc), nil
	case value.ContentElement:
		return e.applyShowRulesToElement(c, chain, depth)
	}
	return c, nil
}

func (e *Engine) applyShowRulesToElement(c value.Content, chain *style.Chain, depth int) (value.Content, error) {
	if depth >= maxShowRuleDepth {
		return value.Content{}, fmt.Errorf("maximum show rule depth exceeded for element %q", c.Elem.ElemKind)
	}
	if e.fired[c.Elem] >= maxShowRuleDepth {
		return c, nil
	}
	for _, rule := range chain.ShowRules() {
		if !rule.Selector.Matches(c.Elem) {
			continue
		}
		e.fired[c.Elem]++
		args := value.NewArguments()
		args.Positional = append(args.Positional, c)
		result, err := e.Vm.Invoke(rule.Transform, args)
		if err != nil {
			return value.Content{}, err
		}
		rc, ok := result.(value.Content)
		if !ok {
			return value.Content{}, fmt.Errorf("show rule must produce content, found %s", result.Kind())
		}
		return e.applyShowRules(rc, chain, depth+1)
	}
	return c, nil
}

// assignLocations walks the fully-realized tree depth-first, giving
// every element a Location in document order (spec §3 "an optional
// location assigned during realization").
func (e *Engine) assignLocations(c value.Content) value.Content {
	switch c.Kind {
	case value.ContentElement:
		if c.Elem.Location == nil {
			c.Elem.Location = e.loc.assign()
		}
		return c
	case value.ContentSequence:
		children := make([]value.Content, len(c.Children))
		for i, ch := range c.Children {
			children[i] = e.assignLocations(ch)
		}
		return value.Content{Kind: value.ContentSequence, Children: children}
	case value.ContentStyled:
		child := e.assignLocations(*c.Child)
		return value.StyledContent(c.Style, child)
	}
	return c
}

// checkLabels walks the tree recording a diagnostic for every label seen
// more than once on a locatable element (spec §8 "Label uniqueness":
// after realization, the set of labels on locatable elements has no
// duplicates without an accompanying diagnostic).
func (e *Engine) checkLabels(c value.Content) {
	switch c.Kind {
	case value.ContentElement:
		if c.Elem.HasLabel {
			if e.seenLabels[c.Elem.Label] {
				e.Bag.Warnf("duplicate label %s", c.Elem.Label.Repr())
			}
			e.seenLabels[c.Elem.Label] = true
		}
	case value.ContentSequence:
		for _, ch := range c.Children {
			e.checkLabels(ch)
		}
	case value.ContentStyled:
		e.checkLabels(*c.Child)
	}
}

// Query runs sel against a fully realized tree, returning every matching
// element in document order; this backs the standard library's
// `query`/`selector.match` surface (component L).
func Query(c value.Content, sel value.Selector) []*value.Element {
	var out []*value.Element
	var walk func(value.Content)
	walk = func(c value.Content) {
		switch c.Kind {
		case value.ContentElement:
			if sel.Matches(c.Elem) {
				out = append(out, c.Elem)
			}
		case value.ContentSequence:
			for _, ch := range c.Children {
				walk(ch)
			}
		case value.ContentStyled:
			walk(*c.Child)
		}
	}
	walk(c)
	return out
}
