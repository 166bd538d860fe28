// Package diag implements the diagnostic engine (spec §4.J): a sink
// collecting typed {severity, span, message, hints[]} records,
// deduplicated by (span, message), with errors and warnings kept
// separate (warnings never stop evaluation).
//
// This is adapted directly from cuelang.org/go/cue/errors: the deferred
// Message (format + args, so a diagnostic can be rendered, localized, or
// compared without eagerly formatting it) mirrors that package's shape.
// Hints are a flat Hints slice added with WithHint and pinned to the same
// span as their parent (spec §7); deduplication happens in Bag.Add and
// ordering in Bag.Sort.
// The main departure is Severity: CUE's errors are uniformly errors (its
// own warnings are a caller-level concept), whereas spec §4.J requires the
// engine itself to distinguish Error from Warning and to never let a
// Warning aborts evaluation.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/typst-lang/typst-core/syntax/span"
)

// Severity distinguishes errors (which abort the current evaluation
// branch) from warnings (which never do).
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Message is a deferred, printf-style diagnostic message, kept unformatted
// so it can be rendered later, localized, or compared structurally.
type Message struct {
	format string
	args   []interface{}
}

func Msgf(format string, args ...interface{}) Message {
	return Message{format: format, args: args}
}

func (m Message) String() string { return fmt.Sprintf(m.format, m.args...) }
func (m Message) Msg() (string, []interface{}) { return m.format, m.args }

// Diagnostic is a single diagnostic record.
type Diagnostic struct {
	Severity Severity
	Span     span.ID
	Message  Message
	Hints    []Message

	// Path is the content/value path the diagnostic occurred at, if any
	// (spec §4.J mirrors cue/errors.Error.Path).
	Path []string
}

func (d *Diagnostic) Error() string { return d.Message.String() }

// WithHint returns a copy of d with an additional hint appended. Hints are
// pinned to the same span as their parent (spec §7).
func (d *Diagnostic) WithHint(format string, args ...interface{}) *Diagnostic {
	nd := *d
	nd.Hints = append(append([]Message{}, d.Hints...), Msgf(format, args...))
	return &nd
}

func Newf(sev Severity, sp span.ID, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Severity: sev, Span: sp, Message: Msgf(format, args...)}
}

func Errorf(sp span.ID, format string, args ...interface{}) *Diagnostic {
	return Newf(Error, sp, format, args...)
}

func Warnf(sp span.ID, format string, args ...interface{}) *Diagnostic {
	return Newf(Warning, sp, format, args...)
}

// Bag accumulates diagnostics for one compilation. It deduplicates by
// (span, message) as required by spec §4.J.
type Bag struct {
	items []*Diagnostic
	seen  map[string]bool
}

func NewBag() *Bag { return &Bag{seen: map[string]bool{}} }

func (b *Bag) key(d *Diagnostic) string {
	return fmt.Sprintf("%d|%s", d.Span, d.Message.String())
}

// Add appends d unless an equal (span, message) diagnostic was already
// recorded.
func (b *Bag) Add(d *Diagnostic) {
	if d == nil {
		return
	}
	k := b.key(d)
	if b.seen[k] {
		return
	}
	b.seen[k] = true
	b.items = append(b.items, d)
}

func (b *Bag) Errorf(sp span.ID, format string, args ...interface{}) *Diagnostic {
	d := Errorf(sp, format, args...)
	b.Add(d)
	return d
}

func (b *Bag) Warnf(sp span.ID, format string, args ...interface{}) *Diagnostic {
	d := Warnf(sp, format, args...)
	b.Add(d)
	return d
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every diagnostic recorded so far, in insertion order.
func (b *Bag) All() []*Diagnostic {
	out := make([]*Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Errors returns only Error-severity diagnostics.
func (b *Bag) Errors() []*Diagnostic { return b.filter(Error) }

// Warnings returns only Warning-severity diagnostics.
func (b *Bag) Warnings() []*Diagnostic { return b.filter(Warning) }

func (b *Bag) filter(sev Severity) []*Diagnostic {
	var out []*Diagnostic
	for _, d := range b.items {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// Sort orders diagnostics by span, matching cue/errors.List.Sort's
// position-then-message tiebreak.
func (b *Bag) Sort() {
	sort.SliceStable(b.items, func(i, j int) bool {
		a, c := b.items[i], b.items[j]
		if a.Span != c.Span {
			return a.Span < c.Span
		}
		return a.Message.String() < c.Message.String()
	})
}

// Format renders diagnostics one per line, resolving spans to
// file:line:column via reg. This mirrors cue/errors.Print's shape without
// its Config/Cwd relative-path machinery, which has no analog without a
// CLI (spec §6 "The core does not own the CLI").
func (b *Bag) Format(reg *span.Registry) string {
	var sb strings.Builder
	for _, d := range b.items {
		pos := reg.Position(d.Span)
		fmt.Fprintf(&sb, "%s: %s", d.Severity, d.Message.String())
		if pos.IsValid() {
			fmt.Fprintf(&sb, "\n    %s", pos)
		}
		for _, h := range d.Hints {
			fmt.Fprintf(&sb, "\n    hint: %s", h.String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
