// Package pkgref parses Typst package references, written
// `@namespace/name:major.minor.patch` (spec §6 "Package references").
//
// Version comparison is delegated to golang.org/x/mod/semver, the same
// module cuelang.org/go/internal/mod/module uses to validate and
// compare Go-style module versions; Typst package versions are plain
// `major.minor.patch` triples rather than Go's `vX.Y.Z` strings, so
// parsing here normalizes to the `v`-prefixed form semver.IsValid
// expects before delegating.
package pkgref

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// reservedTestNamespace is the namespace spec §6 reserves for test
// fixtures ("Namespace `test` is reserved for test fixtures").
const reservedTestNamespace = "test"

// Version is a parsed major.minor.patch triple.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch) }

// semverString renders v in the v-prefixed form golang.org/x/mod/semver
// expects.
func (v Version) semverString() string { return "v" + v.String() }

// Compare orders two versions using golang.org/x/mod/semver.Compare.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.semverString(), o.semverString())
}

// Ref is a fully parsed package reference.
type Ref struct {
	Namespace string
	Name      string
	Version   Version
}

func (r Ref) String() string {
	return fmt.Sprintf("@%s/%s:%s", r.Namespace, r.Name, r.Version)
}

// IsTestFixture reports whether r uses the reserved test namespace.
func (r Ref) IsTestFixture() bool { return r.Namespace == reservedTestNamespace }

// Parse parses a package reference of the form
// `@namespace/name:major.minor.patch`, producing a diagnostic for each
// malformed component ("package specification is missing version",
// `"$$$" is not a valid package name`, ...); offending names are quoted
// with Go's %q.
func Parse(s string) (Ref, error) {
	if !strings.HasPrefix(s, "@") {
		return Ref{}, fmt.Errorf("package specification must start with \"@\"")
	}
	body := s[1:]

	namePart, versionPart, hasVersion := strings.Cut(body, ":")
	if !hasVersion {
		return Ref{}, fmt.Errorf("package specification is missing version")
	}
	if versionPart == "" {
		return Ref{}, fmt.Errorf("package specification is missing version")
	}

	namespace, name, hasSlash := strings.Cut(namePart, "/")
	if !hasSlash || namespace == "" {
		return Ref{}, fmt.Errorf("package specification is missing namespace")
	}
	if name == "" {
		return Ref{}, fmt.Errorf("package specification is missing name")
	}
	if !validPackageComponent(namespace) {
		return Ref{}, fmt.Errorf("%q is not a valid package namespace", namespace)
	}
	if !validPackageComponent(name) {
		return Ref{}, fmt.Errorf("%q is not a valid package name", name)
	}

	version, err := parseVersion(versionPart)
	if err != nil {
		return Ref{}, err
	}

	return Ref{Namespace: namespace, Name: name, Version: version}, nil
}

// validPackageComponent allows lowercase ASCII letters, digits, and
// hyphens — the same restrained charset golang.org/x/mod/module uses
// for the first path element of a module path (no Unicode, no
// underscores, to avoid case- and encoding-ambiguous package names).
func validPackageComponent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-'
		if !ok {
			return false
		}
	}
	return true
}

// ParseVersion parses a bare major.minor.patch triple, for contexts
// (like a package manifest's minimum-compiler-version field) that carry
// a version without a surrounding `@namespace/name:` coordinate.
func ParseVersion(s string) (Version, error) { return parseVersion(s) }

func parseVersion(s string) (Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%q is not a valid version (expected major.minor.patch)", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("%q is not a valid version (expected major.minor.patch)", s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// CheckCompilerVersion reports an error with the wording spec §6
// mandates ("package requires Typst X.Y.Z or newer (current version is
// …)") if required is newer than current.
func CheckCompilerVersion(required, current Version) error {
	if required.Compare(current) > 0 {
		return fmt.Errorf("package requires Typst %s or newer (current version is %s)", required, current)
	}
	return nil
}
