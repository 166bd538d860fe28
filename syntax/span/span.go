// Package span assigns and tracks the stable numeric identifiers ("span
// IDs") that every syntax node carries, and maps them back to byte ranges
// within a source file.
//
// The line/offset bookkeeping here is adapted from cuelang.org/go's
// cue/token.File, but the identity model is different: CUE packs a file
// pointer and relative-position bits into token.Pos, while spans here are
// plain monotone integers handed out by a per-file Registry so that they
// survive being passed through memo keys, diagnostics, and incremental
// reparse without carrying a back-pointer to the file that minted them.
package span

import (
	"fmt"
	"sort"
	"sync"
)

// ID is a stable identifier for a syntax node. The zero value, NoID, never
// denotes a live node.
type ID int64

// NoID is the identifier used when no span information is available.
const NoID ID = 0

// Range is a half-open byte range [Start, End) within a source file's text.
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int { return r.End - r.Start }

// Contains reports whether r fully contains other.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// Overlaps reports whether r and other share any byte.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// PackageCoord identifies the package, if any, that a source file belongs
// to: @namespace/name:version. Namespace "test" is reserved for fixtures
// per spec §6.
type PackageCoord struct {
	Namespace string
	Name      string
	Version   string
}

func (c PackageCoord) IsZero() bool {
	return c.Namespace == "" && c.Name == "" && c.Version == ""
}

func (c PackageCoord) String() string {
	if c.IsZero() {
		return ""
	}
	return fmt.Sprintf("@%s/%s:%s", c.Namespace, c.Name, c.Version)
}

// File is a single logical source file: a path, optional package
// coordinate, normalized UTF-8 text, and the line-offset table used to
// turn byte offsets into line/column pairs.
type File struct {
	mu sync.RWMutex

	path    string
	pkg     PackageCoord
	text    []byte // normalized to '\n' line endings, BOM stripped
	hadBOM  bool
	origEOL []byte // the line terminator bytes seen in the original source, for roundtrip printing

	lineOffsets []int // byte offset of the first character of each line; lineOffsets[0] == 0

	reg *Registry
}

// NewFile normalizes src (stripping a leading BOM and normalizing \r\n and
// \r line endings to \n, per spec §6) and returns a File plus its Registry.
func NewFile(path string, pkg PackageCoord, src []byte) *File {
	text, hadBOM, eol := normalizeSource(src)
	f := &File{
		path:    path,
		pkg:     pkg,
		text:    text,
		hadBOM:  hadBOM,
		origEOL: eol,
	}
	f.computeLineOffsets()
	f.reg = newRegistry(f)
	return f
}

func normalizeSource(src []byte) (text []byte, hadBOM bool, eol []byte) {
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		src = src[3:]
		hadBOM = true
	}
	out := make([]byte, 0, len(src))
	eol = []byte("\n")
	sawCRLF, sawCR := false, false
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '\r':
			if i+1 < len(src) && src[i+1] == '\n' {
				sawCRLF = true
				i++
			} else {
				sawCR = true
			}
			out = append(out, '\n')
		default:
			out = append(out, src[i])
		}
	}
	switch {
	case sawCRLF:
		eol = []byte("\r\n")
	case sawCR:
		eol = []byte("\r")
	}
	return out, hadBOM, eol
}

func (f *File) computeLineOffsets() {
	offsets := []int{0}
	for i, b := range f.text {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	f.lineOffsets = offsets
}

func (f *File) Path() string         { return f.path }
func (f *File) Package() PackageCoord { return f.pkg }
func (f *File) Text() []byte         { return f.text }
func (f *File) HadBOM() bool         { return f.hadBOM }
func (f *File) OriginalEOL() []byte  { return f.origEOL }
func (f *File) Registry() *Registry  { return f.reg }
func (f *File) Size() int            { return len(f.text) }

// LineCol converts a byte offset into a 1-based line and 1-based byte
// column within that line.
func (f *File) LineCol(offset int) (line, col int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.text) {
		offset = len(f.text)
	}
	i := sort.Search(len(f.lineOffsets), func(i int) bool { return f.lineOffsets[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - f.lineOffsets[i] + 1
}

// Position is the printable form of a span.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

func (p Position) IsValid() bool { return p.Line > 0 }

func (p Position) String() string {
	if !p.IsValid() {
		if p.Filename == "" {
			return "-"
		}
		return p.Filename
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Registry assigns and resolves span IDs for the nodes of a single File.
//
// Contract (spec §3, §4.A):
//   - each ID maps to at most one live node at a time;
//   - during incremental reparse of a changed region, IDs outside the
//     touched range are preserved;
//   - IDs embed source-file identity only indirectly (through the File
//     each Registry belongs to), so a diagnostic can always resolve a span
//     back to a byte range as long as it is paired with the File it came
//     from.
type Registry struct {
	mu     sync.Mutex
	file   *File
	nextID int64
	ranges map[ID]Range
	order  []ID // sorted by Range.Start, for range queries
}

func newRegistry(f *File) *Registry {
	return &Registry{
		file:   f,
		nextID: 1,
		ranges: make(map[ID]Range),
	}
}

// Assign allocates a fresh span ID for r. Used during a full, from-scratch
// parse where IDs are handed out depth-first in source order (spec §4.A).
func (reg *Registry) Assign(r Range) ID {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	id := ID(reg.nextID)
	reg.nextID++
	reg.ranges[id] = r
	reg.order = append(reg.order, id)
	return id
}

// Retire marks id as no longer denoting a live node. Later Range calls for id
// report "unknown span" (ok == false); diagnostics should fall back to a
// synthetic global span (spec §4.A).
func (reg *Registry) Retire(id ID) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.ranges, id)
}

// Range looks up the byte range for a span ID.
func (reg *Registry) Range(id ID) (r Range, ok bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok = reg.ranges[id]
	return r, ok
}

// Position converts a span ID directly to a printable Position, using the
// start of its range.
func (reg *Registry) Position(id ID) Position {
	r, ok := reg.Range(id)
	if !ok {
		return Position{}
	}
	line, col := reg.file.LineCol(r.Start)
	return Position{Filename: reg.file.path, Offset: r.Start, Line: line, Column: col}
}

// Enclosing returns the smallest span whose range contains offset, or
// (NoID, false) if no registered span covers it. Spans are assumed to
// nest (a property the parser maintains): ties are broken by picking the
// lowest ID, which is the innermost span since the parser assigns a
// child's ID before its parent's.
func (reg *Registry) Enclosing(offset int) (ID, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	best := NoID
	bestLen := -1
	for id, r := range reg.ranges {
		if r.Start <= offset && offset <= r.End {
			if bestLen == -1 || r.Len() < bestLen || (r.Len() == bestLen && id < best) {
				best, bestLen = id, r.Len()
			}
		}
	}
	if best == NoID {
		return NoID, false
	}
	return best, true
}

// InRange iterates, in source order, every span whose range overlaps r.
func (reg *Registry) InRange(r Range, f func(id ID, rng Range)) {
	reg.mu.Lock()
	ids := make([]ID, len(reg.order))
	copy(ids, reg.order)
	snapshot := make(map[ID]Range, len(reg.ranges))
	for k, v := range reg.ranges {
		snapshot[k] = v
	}
	reg.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool {
		ri, oki := snapshot[ids[i]]
		rj, okj := snapshot[ids[j]]
		if !oki || !okj {
			return oki
		}
		return ri.Start < rj.Start
	})
	for _, id := range ids {
		rng, ok := snapshot[id]
		if !ok {
			continue
		}
		if rng.Overlaps(r) {
			f(id, rng)
		}
	}
}

// Splice implements the preserving half of incremental reparse (spec
// §4.B): ids introduced by building the replacement subtree for dirty are
// renumbered relative to the old tree's span ids outside dirty, which are
// kept verbatim. The caller supplies the set of spans that existed before
// the edit (old) and the freshly assigned spans of the replacement subtree
// (fresh, relative to a throwaway registry starting at 1); Splice returns a
// mapping from fresh IDs to the IDs that should be used in the spliced
// tree, retiring whichever old IDs fell inside dirty.
func (reg *Registry) Splice(dirty Range, shift int, fresh *Registry) map[ID]ID {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	// Retire every old span fully inside the dirty range; they no longer
	// denote live nodes.
	for id, r := range reg.ranges {
		if dirty.Contains(r) {
			delete(reg.ranges, id)
		}
	}

	mapping := make(map[ID]ID, len(fresh.ranges))
	fresh.mu.Lock()
	freshIDs := make([]ID, 0, len(fresh.ranges))
	for id := range fresh.ranges {
		freshIDs = append(freshIDs, id)
	}
	sort.Slice(freshIDs, func(i, j int) bool { return freshIDs[i] < freshIDs[j] })
	for _, fid := range freshIDs {
		r := fresh.ranges[fid]
		r.Start += shift
		r.End += shift
		newID := ID(reg.nextID)
		reg.nextID++
		reg.ranges[newID] = r
		mapping[fid] = newID
	}
	fresh.mu.Unlock()

	reg.order = reg.order[:0]
	for id := range reg.ranges {
		reg.order = append(reg.order, id)
	}
	sort.Slice(reg.order, func(i, j int) bool { return reg.ranges[reg.order[i]].Start < reg.ranges[reg.order[j]].Start })
	return mapping
}

// NewScratch returns a fresh Registry over a throwaway file, for numbering
// hand-built trees in tests; the incremental reparse path uses NewFile
// instead.
func NewScratch(text []byte) *Registry {
	f := &File{path: "<scratch>", text: text}
	f.computeLineOffsets()
	return newRegistry(f)
}
