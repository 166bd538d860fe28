// Package style implements the style chain (spec §4.H): a persistent,
// append-only linked list of property and show-rule entries, folded
// per-field on lookup. The chain is a cons-list exactly like
// cuelang.org/go/internal/core/adt's CloseInfo/environment chains are
// built — new scopes prepend a node and share the old tail — rather than
// a mutable stack, so a Chain value can be captured by a `context`
// expression or stashed in a Styled content node without copying.
package style

import "github.com/typst-lang/typst-core/value"

// Priority orders entries when more than one matches the same field
// (spec §4.H "Priority order: per-instance override > show-rule
// introduced > nearest ancestor set > element default"). Higher wins.
type Priority int

const (
	PriorityElementDefault Priority = iota
	PriorityAncestorSet
	PriorityShowIntroduced
	PriorityInstanceOverride
)

// FoldKind distinguishes a scalar field (highest priority wins, nearest
// first among equals) from an
// accumulator field that merges across every matching entry as the
// chain is walked (spec §4.H: "stroke" merges per side; text features
// accumulate most-recent-wins per tag).
type FoldKind int

const (
	FoldScalar FoldKind = iota
	FoldStrokeSides
	FoldTagMap
)

// Entry is one link of the chain: either a property assignment or a
// show rule (spec §3 "Style chain").
type Entry struct {
	// ElemKind restricts a property entry to one element kind; empty
	// means it applies to every element that has the named field.
	ElemKind string
	Field    string
	Value    value.Value
	Priority Priority

	// Scope optionally restricts the entry to elements matching a
	// selector (spec §3: "optional label/function selector scope").
	Scope *value.Selector

	// IsShowRule marks this entry as a transformer rather than a plain
	// property; Selector and Transform are then populated instead of
	// Field/Value.
	IsShowRule bool
	Selector   value.Selector
	Transform  value.Callable
}

// value.StyleEntry is the opaque carrier Content.Styled nodes hold;
// wrapped here so content need not import package style (avoiding the
// cycle), while Chain.Head below recovers the concrete *Entry for
// folding.
func wrap(e *Entry) *value.StyleEntry { return &value.StyleEntry{Opaque: e} }

func unwrap(se *value.StyleEntry) *Entry {
	if se == nil {
		return nil
	}
	e, _ := se.Opaque.(*Entry)
	return e
}

// Chain is a persistent singly linked list of entries, head-first (most
// recently pushed entry visited first during folding, per spec §4.H
// "visit entries head-first").
type Chain struct {
	head *Entry
	tail *Chain
}

// Empty is the chain with no entries.
var Empty = &Chain{}

// Push returns a new chain with e prepended; the receiver is unchanged,
// matching the value package's "clone on write" value semantics extended
// to this reference type via persistence instead of copying.
func (c *Chain) Push(e Entry) *Chain {
	return &Chain{head: &e, tail: c}
}

// AsStyleEntry adapts the head of c into the opaque carrier
// Content.Styled nodes expect.
func (c *Chain) AsStyleEntry() *value.StyleEntry {
	if c == nil || c.head == nil {
		return nil
	}
	return wrap(c.head)
}

// FromStyleEntry reconstructs a one-entry Chain fragment from a
// Content.Styled node's opaque carrier, then joins it onto base. Used by
// the realization engine (component I) when walking into a Styled
// subtree.
func FromStyleEntry(base *Chain, se *value.StyleEntry) *Chain {
	e := unwrap(se)
	if e == nil {
		return base
	}
	return base.Push(*e)
}

// each walks c head-first invoking f on every entry until f returns
// false.
func (c *Chain) each(f func(*Entry) bool) {
	for n := c; n != nil && n.head != nil; n = n.tail {
		if !f(n.head) {
			return
		}
	}
}

// Fold computes the effective value of field on an element of the given
// kind, according to kind's folding discipline (spec §4.H). matches
// reports whether a candidate entry's optional Scope accepts elem;
// passing nil always matches.
func (c *Chain) Fold(elemKind, field string, kind FoldKind, elem *value.Element, matches func(*value.Selector, *value.Element) bool) (value.Value, bool) {
	switch kind {
	case FoldScalar:
		var found value.Value
		var best Priority
		ok := false
		c.each(func(e *Entry) bool {
			if e.IsShowRule || e.Field != field {
				return true
			}
			if e.ElemKind != "" && e.ElemKind != elemKind {
				return true
			}
			if e.Scope != nil && !matches(e.Scope, elem) {
				return true
			}
			if !ok || e.Priority > best {
				found, ok, best = e.Value, true, e.Priority
			}
			return true
		})
		return found, ok
	case FoldStrokeSides:
		return c.foldStrokeSides(elemKind, field, elem, matches)
	case FoldTagMap:
		return c.foldTagMap(elemKind, field, elem, matches)
	}
	return nil, false
}

// foldStrokeSides merges per-side stroke fields, most specific side
// winning, falling back across the chain only for sides not yet set
// (spec §4.H "strokes merge sides").
func (c *Chain) foldStrokeSides(elemKind, field string, elem *value.Element, matches func(*value.Selector, *value.Element) bool) (value.Value, bool) {
	sides := map[string]value.Value{}
	order := []string{"top", "right", "bottom", "left"}
	c.each(func(e *Entry) bool {
		if e.IsShowRule || e.Field != field {
			return true
		}
		if e.ElemKind != "" && e.ElemKind != elemKind {
			return true
		}
		if e.Scope != nil && !matches(e.Scope, elem) {
			return true
		}
		if d, ok := e.Value.(*value.Dict); ok {
			for _, side := range order {
				if _, already := sides[side]; already {
					continue
				}
				if v, ok := d.Get(side); ok {
					sides[side] = v
				}
			}
		} else if _, already := sides["*"]; !already {
			sides["*"] = e.Value
		}
		return true
	})
	if len(sides) == 0 {
		return nil, false
	}
	out := value.NewDict()
	if v, ok := sides["*"]; ok {
		for _, side := range order {
			out.Set(side, v)
		}
	}
	for _, side := range order {
		if v, ok := sides[side]; ok {
			out.Set(side, v)
		}
	}
	return out, true
}

// foldTagMap accumulates a tag->value map across the whole chain,
// most-recently-pushed tag winning on conflict (spec §4.H "text features
// accumulate most-recent-wins per tag").
func (c *Chain) foldTagMap(elemKind, field string, elem *value.Element, matches func(*value.Selector, *value.Element) bool) (value.Value, bool) {
	out := value.NewDict()
	seen := map[string]bool{}
	any := false
	c.each(func(e *Entry) bool {
		if e.IsShowRule || e.Field != field {
			return true
		}
		if e.ElemKind != "" && e.ElemKind != elemKind {
			return true
		}
		if e.Scope != nil && !matches(e.Scope, elem) {
			return true
		}
		if d, ok := e.Value.(*value.Dict); ok {
			d.Each(func(k string, v value.Value) {
				if !seen[k] {
					seen[k] = true
					out.Set(k, v)
					any = true
				}
			})
		}
		return true
	})
	if !any {
		return nil, false
	}
	return out, true
}

// ShowRules returns every show-rule entry in head-first order, used by
// the realization engine's bounded fixed point (component I).
func (c *Chain) ShowRules() []*Entry {
	var rules []*Entry
	c.each(func(e *Entry) bool {
		if e.IsShowRule {
			rules = append(rules, e)
		}
		return true
	})
	return rules
}

// NewSetEntry builds a `set` rule entry (spec §3 "property") with
// priority PriorityAncestorSet; callers wanting another priority set the
// Priority field on the returned Entry.
func NewSetEntry(elemKind, field string, v value.Value, scope *value.Selector) Entry {
	return Entry{ElemKind: elemKind, Field: field, Value: v, Priority: PriorityAncestorSet, Scope: scope}
}

// NewShowEntry builds a `show` rule entry.
func NewShowEntry(sel value.Selector, transform value.Callable) Entry {
	return Entry{IsShowRule: true, Selector: sel, Transform: transform, Priority: PriorityShowIntroduced}
}
