// Package world implements the abstract resource provider the core
// consumes for files, packages, fonts, and time (spec §4.E). This plays
// the role cuelang.org/go/internal/core/runtime.Runtime plays for CUE —
// a handle threaded through evaluation that owns indices and caches —
// but where Runtime indexes *loaded build.Instance values for CUE's
// module system, World indexes raw source bytes, font metadata, and a
// frozen clock, and every access is logged so package memo can validate
// a cache entry by replay instead of by dependency graph.
package world

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/typst-lang/typst-core/syntax/span"
)

// SourceID names a loaded source file, distinct from span.PackageCoord
// because a World may serve many files from the same package (spec §3
// "Source file").
type SourceID struct {
	Path    string
	Package span.PackageCoord
}

func (id SourceID) String() string {
	if id.Package.IsZero() {
		return id.Path
	}
	return fmt.Sprintf("@%s/%s:%s%s", id.Package.Namespace, id.Package.Name, id.Package.Version, id.Path)
}

// FontMetadata is a minimal font-index record; actual glyph outlines and
// shaping live in the downstream layout engine (spec §1 "Out of scope:
// font loading/shaping"), so the core only needs enough to resolve a
// family name to an index for style fields to carry around.
type FontMetadata struct {
	Family string
	Index  int
	Bold   bool
	Italic bool
}

// World is the interface the evaluator, memoization layer, and
// standard library all consume for anything that crosses the sandbox
// boundary (spec §4.E). Every method must be pure given the same
// receiver state: same inputs, same outputs, for the memo layer's
// replay-validation to be sound.
type World interface {
	// Source returns a previously registered source's text and span
	// registry, or an error if id is unknown.
	Source(id SourceID) (text string, reg *span.Registry, err error)
	// File reads a non-source resource (an image, a data file) as raw
	// bytes, relative to the sandbox root.
	File(id SourceID) ([]byte, error)
	// FontIndex returns the fonts available to layout, in a stable
	// order so repeated calls are byte-identical.
	FontIndex() []FontMetadata
	// Today returns the compile-time date, or false if the world was
	// constructed without one (e.g. for deterministic test fixtures
	// that must not depend on wall-clock date).
	Today() (Date, bool)
	// MainID names the entry-point source.
	MainID() SourceID
	// NowMonotonic returns an opaque, strictly-increasing instant used
	// only to order events, never to recover wall-clock time.
	NowMonotonic() int64
	// Resolve joins a relative import/include path against base,
	// rejecting paths that would escape the sandbox root.
	Resolve(base SourceID, relativePath string) (SourceID, error)
}

// Date is a calendar date without a time-of-day component, returned by
// World.Today.
type Date struct {
	Year, Month, Day int
}

// accessKind distinguishes which World method produced an AccessRecord,
// used by package memo's replay validator (spec §4.G) to know which
// method to re-invoke.
type accessKind int

const (
	accessSource accessKind = iota
	accessFile
	accessFontIndex
	accessToday
	accessResolve
)

// AccessRecord is one observed World query, captured by Tracking so a
// memo entry can later replay it and compare results (spec §4.E "the
// world itself is tracked so the memoization layer can validate
// reuse", spec §4.G "a snapshot of accessed world state").
type AccessRecord struct {
	Kind      accessKind
	Key       string // SourceID.String(), or base+"\x00"+relativePath for Resolve
	ResultSum string // a content digest of the observed result, for replay comparison
}

// Tracking wraps a World and records every access, matching the pattern
// cuelang.org/go/internal/core/runtime.Runtime uses to hold extra
// bookkeeping (its `loaded` map of *build.Instance -> data) alongside
// the index it wraps, generalized here to log reads instead of caching
// writes.
type Tracking struct {
	inner World
	mu    sync.Mutex
	log   []AccessRecord
}

func NewTracking(inner World) *Tracking {
	return &Tracking{inner: inner}
}

func (t *Tracking) record(r AccessRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = append(t.log, r)
}

// Log returns a snapshot of every access recorded so far, in order. The
// memo layer stores this alongside a cache entry's output.
func (t *Tracking) Log() []AccessRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]AccessRecord, len(t.log))
	copy(out, t.log)
	return out
}

func (t *Tracking) Source(id SourceID) (string, *span.Registry, error) {
	text, reg, err := t.inner.Source(id)
	sum := digestString(text)
	if err != nil {
		sum = "error:" + err.Error()
	}
	t.record(AccessRecord{Kind: accessSource, Key: id.String(), ResultSum: sum})
	return text, reg, err
}

func (t *Tracking) File(id SourceID) ([]byte, error) {
	data, err := t.inner.File(id)
	sum := digestBytes(data)
	if err != nil {
		sum = "error:" + err.Error()
	}
	t.record(AccessRecord{Kind: accessFile, Key: id.String(), ResultSum: sum})
	return data, err
}

func (t *Tracking) FontIndex() []FontMetadata {
	fonts := t.inner.FontIndex()
	var sb strings.Builder
	for _, f := range fonts {
		fmt.Fprintf(&sb, "%s|%d|%v|%v;", f.Family, f.Index, f.Bold, f.Italic)
	}
	t.record(AccessRecord{Kind: accessFontIndex, Key: "", ResultSum: digestString(sb.String())})
	return fonts
}

func (t *Tracking) Today() (Date, bool) {
	d, ok := t.inner.Today()
	t.record(AccessRecord{Kind: accessToday, Key: "", ResultSum: fmt.Sprintf("%v|%+v", ok, d)})
	return d, ok
}

func (t *Tracking) MainID() SourceID { return t.inner.MainID() }

func (t *Tracking) NowMonotonic() int64 { return t.inner.NowMonotonic() }

func (t *Tracking) Resolve(base SourceID, relativePath string) (SourceID, error) {
	id, err := t.inner.Resolve(base, relativePath)
	sum := id.String()
	if err != nil {
		sum = "error:" + err.Error()
	}
	t.record(AccessRecord{Kind: accessResolve, Key: base.String() + "\x00" + relativePath, ResultSum: sum})
	return id, err
}

// Replay re-runs every recorded access against a (possibly different)
// World and reports whether every result matches, i.e. whether a cache
// entry built while log was recorded is still valid (spec §4.G "On
// replay, the recorded accessors are re-queried; if all yield
// byte-equal results the cached output is valid").
func Replay(w World, log []AccessRecord) bool {
	for _, r := range log {
		var got string
		switch r.Kind {
		case accessSource:
			id := parseSourceKey(r.Key)
			text, _, err := w.Source(id)
			got = digestString(text)
			if err != nil {
				got = "error:" + err.Error()
			}
		case accessFile:
			id := parseSourceKey(r.Key)
			data, err := w.File(id)
			got = digestBytes(data)
			if err != nil {
				got = "error:" + err.Error()
			}
		case accessFontIndex:
			fonts := w.FontIndex()
			var sb strings.Builder
			for _, f := range fonts {
				fmt.Fprintf(&sb, "%s|%d|%v|%v;", f.Family, f.Index, f.Bold, f.Italic)
			}
			got = digestString(sb.String())
		case accessToday:
			d, ok := w.Today()
			got = fmt.Sprintf("%v|%+v", ok, d)
		case accessResolve:
			parts := strings.SplitN(r.Key, "\x00", 2)
			base := parseSourceKey(parts[0])
			var rel string
			if len(parts) > 1 {
				rel = parts[1]
			}
			id, err := w.Resolve(base, rel)
			got = id.String()
			if err != nil {
				got = "error:" + err.Error()
			}
		}
		if got != r.ResultSum {
			return false
		}
	}
	return true
}

func parseSourceKey(s string) SourceID { return SourceID{Path: s} }

// StaticWorld.NowMonotonic returns a per-world counter incremented on
// each call rather than wall-clock time, keeping the whole type
// deterministic (spec §8 "Evaluation determinism").

// StaticWorld is an in-memory World fixture: every source/file is
// preloaded, the clock is frozen at construction, and resolution is a
// pure path join against a fixed root. It is the World used by tests
// and by short-lived CLI invocations that load a whole project tree
// upfront (spec §6 "it accepts a World instance initialised with the
// appropriate files, root path, and options").
type StaticWorld struct {
	Root    string
	Sources map[string]sourceEntry
	Files   map[string][]byte
	Fonts   []FontMetadata
	Date    Date
	HasDate bool
	Main    SourceID

	mu      sync.Mutex
	counter int64
}

type sourceEntry struct {
	text string
	reg  *span.Registry
}

func NewStaticWorld(root string, main SourceID) *StaticWorld {
	return &StaticWorld{
		Root:    root,
		Sources: map[string]sourceEntry{},
		Files:   map[string][]byte{},
		Main:    main,
	}
}

// AddSource registers source text under id together with the span
// registry reg (the caller parses separately; StaticWorld only stores text
// plus whatever registry the caller already built for it).
func (w *StaticWorld) AddSource(id SourceID, text string, reg *span.Registry) {
	w.Sources[id.String()] = sourceEntry{text: text, reg: reg}
}

func (w *StaticWorld) AddFile(id SourceID, data []byte) {
	w.Files[id.String()] = data
}

func (w *StaticWorld) Source(id SourceID) (string, *span.Registry, error) {
	e, ok := w.Sources[id.String()]
	if !ok {
		return "", nil, fmt.Errorf("source not found: %s", id)
	}
	return e.text, e.reg, nil
}

func (w *StaticWorld) File(id SourceID) ([]byte, error) {
	data, ok := w.Files[id.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	return data, nil
}

func (w *StaticWorld) FontIndex() []FontMetadata { return w.Fonts }

func (w *StaticWorld) Today() (Date, bool) { return w.Date, w.HasDate }

func (w *StaticWorld) MainID() SourceID { return w.Main }

func (w *StaticWorld) NowMonotonic() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counter++
	return w.counter
}

// Resolve joins relativePath onto base's directory, rejecting any
// result that climbs above Root (spec §4.E: "paths escaping the root
// are an error with a hint").
func (w *StaticWorld) Resolve(base SourceID, relativePath string) (SourceID, error) {
	if strings.HasPrefix(relativePath, "/") {
		return SourceID{}, fmt.Errorf("absolute import path %q is not allowed", relativePath)
	}
	dir := base.Path
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		dir = dir[:i]
	} else {
		dir = ""
	}
	joined := joinPath(dir, relativePath)
	if escapesRoot(joined) {
		return SourceID{}, fmt.Errorf("path %q escapes the project root (hint: remove leading \"../\" segments)", relativePath)
	}
	return SourceID{Path: joined, Package: base.Package}, nil
}

func joinPath(dir, rel string) string {
	parts := append(strings.Split(dir, "/"), strings.Split(rel, "/")...)
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 && stack[len(stack)-1] != ".." {
				stack = stack[:len(stack)-1]
			} else {
				stack = append(stack, "..")
			}
		default:
			stack = append(stack, p)
		}
	}
	return strings.Join(stack, "/")
}

func escapesRoot(joined string) bool {
	return strings.HasPrefix(joined, "../") || joined == ".."
}

// wallClockDate is provided for production Worlds that do want a real
// calendar date; kept separate from StaticWorld (which must stay
// deterministic) so tests never accidentally depend on it.
func wallClockDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// WallClockToday is a convenience Today() implementation for a
// production World wrapping StaticWorld-like storage with a live clock.
func WallClockToday() (Date, bool) { return wallClockDate(time.Now()), true }
