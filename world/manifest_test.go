package world

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/go-quicktest/qt"

	"github.com/typst-lang/typst-core/pkgref"
)

func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.yaml")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte(contents), 0o644)))
	return path
}

func TestLoadManifestParsesRefAndVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "namespace: preview\nname: adder\nversion: 0.1.0\nentrypoint: lib.typ\n")

	m, err := LoadManifest(path)
	qt.Assert(t, qt.IsNil(err))

	ref, err := m.Ref()
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(ref.String(), "@preview/adder:0.1.0"))
}

func TestManifestCheckCompilerRejectsNewerRequirement(t *testing.T) {
	m := Manifest{MinCompiler: "9.9.9"}
	err := m.CheckCompiler(pkgref.Version{Major: 1, Minor: 0, Patch: 0})
	qt.Assert(t, qt.IsNotNil(err))
}

func TestManifestCheckCompilerAcceptsOlderRequirement(t *testing.T) {
	m := Manifest{MinCompiler: "0.1.0"}
	err := m.CheckCompiler(pkgref.Version{Major: 1, Minor: 0, Patch: 0})
	qt.Assert(t, qt.IsNil(err))
}

func TestFileWorldReadsSourcesAndFiles(t *testing.T) {
	root := t.TempDir()
	qt.Assert(t, qt.IsNil(os.WriteFile(filepath.Join(root, "main.typ"), []byte("hello"), 0o644)))

	w := NewFileWorld(root, filepath.Join(root, "packages"), SourceID{Path: "main.typ"})
	text, _, err := w.Source(SourceID{Path: "main.typ"})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(text, "hello"))
}

func TestFileWorldResolvesPackageCoordinate(t *testing.T) {
	root := t.TempDir()
	pkgRoot := t.TempDir()
	w := NewFileWorld(root, pkgRoot, SourceID{Path: "main.typ"})

	id, err := w.Resolve(SourceID{Path: "main.typ"}, "@preview/adder:0.1.0/lib.typ")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(id.Path, "lib.typ"))
	qt.Assert(t, qt.Equals(id.Package.Namespace, "preview"))
	qt.Assert(t, qt.Equals(id.Package.Name, "adder"))
	qt.Assert(t, qt.Equals(id.Package.Version, "0.1.0"))
}

func TestFileWorldSessionIDsAreDistinct(t *testing.T) {
	root := t.TempDir()
	w1 := NewFileWorld(root, root, SourceID{Path: "main.typ"})
	w2 := NewFileWorld(root, root, SourceID{Path: "main.typ"})
	qt.Assert(t, qt.IsTrue(w1.SessionID != w2.SessionID))
}
