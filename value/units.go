package value

import "fmt"

// Length is an absolute (points) plus em-relative component (spec §3/§4.D).
// The two fold under addition but cannot be compared unless both
// components agree, per §4.D: "they fold but cannot be compared if both
// components differ".
type Length struct {
	Abs float64 // points
	Em  float64 // multiple of the current font size
}

func (Length) Kind() Kind { return KindLength }
func (l Length) Repr() string {
	switch {
	case l.Abs != 0 && l.Em != 0:
		return fmt.Sprintf("%gpt + %gem", l.Abs, l.Em)
	case l.Em != 0:
		return fmt.Sprintf("%gem", l.Em)
	default:
		return fmt.Sprintf("%gpt", l.Abs)
	}
}
func (Length) isValue() {}

func (l Length) Add(o Length) Length {
	return Length{Abs: l.Abs + o.Abs, Em: l.Em + o.Em}
}

// Compare reports (cmp, ok): ok is false whenever both the Abs and the Em
// components differ, since the two lengths are then order-incomparable
// without knowing the font size (§4.D).
func (l Length) Compare(o Length) (cmp int, ok bool) {
	if l.Em == o.Em {
		return compareFloat(l.Abs, o.Abs), true
	}
	if l.Abs == o.Abs {
		return compareFloat(l.Em, o.Em), true
	}
	return 0, false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Angle is stored in radians internally; degrees are a presentation unit.
type Angle struct{ Radians float64 }

func (Angle) Kind() Kind     { return KindAngle }
func (a Angle) Repr() string { return fmt.Sprintf("%gdeg", a.Radians*180/3.141592653589793) }
func (Angle) isValue()       {}

// Ratio is a fraction of 1 (e.g. 50% == Ratio{0.5}).
type Ratio struct{ Frac float64 }

func (Ratio) Kind() Kind     { return KindRatio }
func (r Ratio) Repr() string { return fmt.Sprintf("%g%%", r.Frac*100) }
func (Ratio) isValue()       {}

// Relative combines a Ratio and a Length, e.g. "50% + 1em".
type Relative struct {
	Ratio  Ratio
	Length Length
}

func (Relative) Kind() Kind { return KindRelative }
func (r Relative) Repr() string {
	return fmt.Sprintf("%s + %s", r.Ratio.Repr(), r.Length.Repr())
}
func (Relative) isValue() {}

// Fraction is the "fr" unit used to distribute leftover space.
type Fraction struct{ Share float64 }

func (Fraction) Kind() Kind     { return KindFraction }
func (f Fraction) Repr() string { return fmt.Sprintf("%gfr", f.Share) }
func (Fraction) isValue()       {}

// Color is stored as straight-alpha RGBA in [0,1]; Gradient/Tiling paint
// servers wrap a Color stop list but are represented minimally here since
// spec §1 places page-level painting/layout out of scope.
type Color struct{ R, G, B, A float64 }

func (Color) Kind() Kind { return KindColor }
func (c Color) Repr() string {
	return fmt.Sprintf("rgb(%g%%, %g%%, %g%%, %g%%)", c.R*100, c.G*100, c.B*100, c.A*100)
}
func (Color) isValue() {}

// Symbol is a named Unicode codepoint/variant set (e.g. math symbols).
type Symbol struct {
	Name     string
	Variants map[string]rune
}

func (Symbol) Kind() Kind     { return KindSymbol }
func (s Symbol) Repr() string { return fmt.Sprintf("symbol(%q)", s.Name) }
func (Symbol) isValue()       {}

// Gradient and Tiling are minimal carriers: spec §1 places rasterization
// and paint-server sampling in the out-of-scope layout/export components,
// so the language core only needs these to exist as distinct Value kinds
// that round-trip through style/content fields untouched.
type Gradient struct{ Stops []Color }

func (Gradient) Kind() Kind     { return KindGradient }
func (Gradient) Repr() string   { return "gradient(..)" }
func (Gradient) isValue()       {}

type Tiling struct{ Body Value }

func (Tiling) Kind() Kind   { return KindTiling }
func (Tiling) Repr() string { return "tiling(..)" }
func (Tiling) isValue()     {}

// Stroke describes a paint + thickness + line cap/join/dash, with fields
// that merge per-side under style folding (spec §4.H "strokes merge
// sides").
type Stroke struct {
	Paint     Value
	Thickness Length
	Dash      []Length
}

func (Stroke) Kind() Kind   { return KindStroke }
func (Stroke) Repr() string { return "stroke(..)" }
func (Stroke) isValue()     {}

type Alignment struct{ Horizontal, Vertical string }

func (Alignment) Kind() Kind     { return KindAlignment }
func (a Alignment) Repr() string { return fmt.Sprintf("%s + %s", a.Horizontal, a.Vertical) }
func (Alignment) isValue()       {}

type Direction string

func (Direction) Kind() Kind     { return KindDirection }
func (d Direction) Repr() string { return string(d) }
func (Direction) isValue()       {}

// TargetPlate names the downstream exporter target (pdf/svg/html/raster)
// so show rules can branch on it, without the core depending on any
// exporter (spec §1 "Out of scope: exporters").
type TargetPlate string

func (TargetPlate) Kind() Kind     { return KindTargetPlate }
func (t TargetPlate) Repr() string { return string(t) }
func (TargetPlate) isValue()       {}
