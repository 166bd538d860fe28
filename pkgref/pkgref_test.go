package pkgref

import (
	"testing"

	qt "github.com/go-quicktest/qt"
)

func TestParseValidReference(t *testing.T) {
	r, err := Parse("@preview/example:1.2.3")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(r.Namespace, "preview"))
	qt.Assert(t, qt.Equals(r.Name, "example"))
	qt.Assert(t, qt.Equals(r.Version.String(), "1.2.3"))
}

func TestParseMissingVersion(t *testing.T) {
	_, err := Parse("@preview/example")
	qt.Assert(t, qt.ErrorMatches(err, "package specification is missing version"))
}

func TestParseInvalidName(t *testing.T) {
	_, err := Parse("@preview/$$$:1.0.0")
	qt.Assert(t, qt.ErrorMatches(err, `"\$\$\$" is not a valid package name`))
}

func TestParseReservedTestNamespace(t *testing.T) {
	r, err := Parse("@test/fixture:0.1.0")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(r.IsTestFixture()))
}

func TestCheckCompilerVersionErrorsWhenTooOld(t *testing.T) {
	err := CheckCompilerVersion(Version{1, 2, 0}, Version{1, 1, 0})
	qt.Assert(t, qt.ErrorMatches(err, "package requires Typst 1.2.0 or newer \\(current version is 1.1.0\\)"))
}

func TestCheckCompilerVersionOKWhenNewEnough(t *testing.T) {
	err := CheckCompilerVersion(Version{1, 0, 0}, Version{1, 2, 0})
	qt.Assert(t, qt.IsNil(err))
}
