package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/typst-lang/typst-core/pkgref"
	"github.com/typst-lang/typst-core/syntax/span"
)

// Manifest is a package's typst.toml-equivalent descriptor: the
// metadata a package-registry World reads to resolve `@namespace/name:version`
// imports to files on disk and to enforce spec §6's minimum-compiler-version
// check. We read it as YAML rather than TOML, mirroring the teacher's own
// module manifest/lock-file handling, which is YAML-shaped, rather than
// inventing a bespoke parser for a format no example repo in the pack touches.
type Manifest struct {
	Namespace   string `yaml:"namespace"`
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Entrypoint  string `yaml:"entrypoint"`
	MinCompiler string `yaml:"min-compiler-version,omitempty"`
}

// LoadManifest reads and parses the manifest file at path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading package manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing package manifest %s: %w", path, err)
	}
	return m, nil
}

// Ref parses the manifest's own coordinate as a pkgref.Ref, the form used
// to key it in a package cache.
func (m Manifest) Ref() (pkgref.Ref, error) {
	return pkgref.Parse(fmt.Sprintf("@%s/%s:%s", m.Namespace, m.Name, m.Version))
}

// CheckCompiler validates the manifest's declared minimum compiler
// version against the running one, producing spec §6's mandated wording.
func (m Manifest) CheckCompiler(current pkgref.Version) error {
	if m.MinCompiler == "" {
		return nil
	}
	required, err := pkgref.ParseVersion(m.MinCompiler)
	if err != nil {
		return fmt.Errorf("package manifest has invalid min-compiler-version %q", m.MinCompiler)
	}
	return pkgref.CheckCompilerVersion(required, current)
}

// FileWorld is a World backed by the real filesystem rooted at Root,
// the production counterpart to StaticWorld's in-memory fixture (spec §6
// "it accepts a World instance initialised with the appropriate files,
// root path, and options"). It reads sources and files lazily rather than
// preloading a whole tree, and resolves `@namespace/name:version` package
// coordinates against a local package cache directory populated with one
// subdirectory per package, each holding a manifest.yaml alongside the
// package's sources.
type FileWorld struct {
	Root        string
	PackageRoot string // directory of installed packages, one subdir per @ns/name/version
	Main        SourceID

	// SessionID uniquely identifies this compilation run, e.g. for
	// correlating plugin instance logs across a single invocation; it
	// carries no semantic weight for the language itself (spec §5
	// "no user-visible mutable state exists across closure boundaries").
	SessionID uuid.UUID

	Fonts   []FontMetadata
	Date    Date
	HasDate bool

	mu      chanMutex
	counter int64
}

// chanMutex is a 1-buffered-channel mutex so this file doesn't need a
// second "sync" import alongside world.go's; NowMonotonic is the only
// mutable state FileWorld owns.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	c := make(chanMutex, 1)
	c <- struct{}{}
	return c
}

func (c chanMutex) lock()   { <-c }
func (c chanMutex) unlock() { c <- struct{}{} }

// NewFileWorld constructs a FileWorld rooted at root, with a fresh
// session identifier.
func NewFileWorld(root, packageRoot string, main SourceID) *FileWorld {
	return &FileWorld{
		Root:        root,
		PackageRoot: packageRoot,
		Main:        main,
		SessionID:   uuid.New(),
		mu:          newChanMutex(),
	}
}

func (w *FileWorld) pathFor(id SourceID) string {
	if id.Package.IsZero() {
		return filepath.Join(w.Root, filepath.FromSlash(id.Path))
	}
	pkgDir := filepath.Join(w.PackageRoot, id.Package.Namespace, id.Package.Name, id.Package.Version)
	return filepath.Join(pkgDir, filepath.FromSlash(id.Path))
}

func (w *FileWorld) Source(id SourceID) (string, *span.Registry, error) {
	data, err := os.ReadFile(w.pathFor(id))
	if err != nil {
		return "", nil, fmt.Errorf("source %s not found: %w", id, err)
	}
	return string(data), nil, nil
}

func (w *FileWorld) File(id SourceID) ([]byte, error) {
	data, err := os.ReadFile(w.pathFor(id))
	if err != nil {
		return nil, fmt.Errorf("file %s not found: %w", id, err)
	}
	return data, nil
}

func (w *FileWorld) FontIndex() []FontMetadata { return w.Fonts }

func (w *FileWorld) Today() (Date, bool) {
	if w.HasDate {
		return w.Date, true
	}
	return WallClockToday()
}

func (w *FileWorld) MainID() SourceID { return w.Main }

func (w *FileWorld) NowMonotonic() int64 {
	w.mu.lock()
	w.counter++
	n := w.counter
	w.mu.unlock()
	return n
}

// Resolve joins relativePath against base exactly as StaticWorld.Resolve
// does for workspace-relative paths, and additionally recognizes a
// leading `@namespace/name:version` package coordinate, dispatching into
// PackageRoot instead of Root (spec §6 "Package references").
func (w *FileWorld) Resolve(base SourceID, relativePath string) (SourceID, error) {
	if strings.HasPrefix(relativePath, "@") {
		coordPart, rest, _ := strings.Cut(relativePath, "/")
		// coordPart is "@namespace", rest starts with "name:version/...".
		namePart, filePart, _ := strings.Cut(rest, "/")
		ref, err := pkgref.Parse(coordPart + "/" + namePart)
		if err != nil {
			return SourceID{}, err
		}
		return SourceID{
			Path: filePart,
			Package: span.PackageCoord{
				Namespace: ref.Namespace,
				Name:      ref.Name,
				Version:   ref.Version.String(),
			},
		}, nil
	}
	sw := StaticWorld{Root: w.Root}
	return sw.Resolve(base, relativePath)
}
