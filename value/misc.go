package value

import "fmt"

// Datetime, Duration, Version, and Regex are minimal carriers: the
// standard library surface (component L) constructs and formats them,
// but the language core only needs them to exist as distinct,
// comparable Value kinds (spec §3).

type Datetime struct {
	// Year/Month/Day/Hour/Minute/Second are each -1 when absent, since a
	// Datetime may carry only a date, only a time, or both (spec §3
	// "Datetime").
	Year, Month, Day       int
	Hour, Minute, Second   int
}

func (Datetime) Kind() Kind { return KindDatetime }
func (d Datetime) Repr() string {
	switch {
	case d.Hour < 0:
		return fmt.Sprintf("datetime(year: %d, month: %d, day: %d)", d.Year, d.Month, d.Day)
	case d.Year < 0:
		return fmt.Sprintf("datetime(hour: %d, minute: %d, second: %d)", d.Hour, d.Minute, d.Second)
	default:
		return fmt.Sprintf("datetime(year: %d, month: %d, day: %d, hour: %d, minute: %d, second: %d)",
			d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
	}
}
func (Datetime) isValue() {}

// Duration is a signed span of time, stored as whole seconds (spec §3
// "Duration"); sub-second precision is out of scope per spec §1.
type Duration struct{ Seconds int64 }

func (Duration) Kind() Kind     { return KindDuration }
func (d Duration) Repr() string { return fmt.Sprintf("duration(seconds: %d)", d.Seconds) }
func (Duration) isValue()       {}

// Version is a dotted numeric version, e.g. package version constraints
// (spec §3 "Version"); unrelated to the semver used for package
// references (pkgref uses golang.org/x/mod/semver directly).
type Version struct{ Components []int }

func (Version) Kind() Kind { return KindVersion }
func (v Version) Repr() string {
	s := "version("
	for i, c := range v.Components {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d", c)
	}
	return s + ")"
}
func (Version) isValue() {}

func (v Version) Compare(o Version) int {
	for i := 0; i < len(v.Components) || i < len(o.Components); i++ {
		a, b := 0, 0
		if i < len(v.Components) {
			a = v.Components[i]
		}
		if i < len(o.Components) {
			b = o.Components[i]
		}
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Regex wraps a pattern string; the standard library surface compiles it
// (regexp.Regexp is not itself comparable the way spec §4.D equality
// needs, so the source pattern is what equality and Repr use).
type Regex struct{ Pattern string }

func (Regex) Kind() Kind     { return KindRegex }
func (r Regex) Repr() string { return fmt.Sprintf("regex(%q)", r.Pattern) }
func (Regex) isValue()       {}
