package value

import (
	"fmt"
	"math"
)

// Add implements spec §4.D's addition table. Addition is the one
// operator with cross-category behavior (string/array/dict concatenation
// and union, content sequencing, none absorption); Sub/Mul/Div are purely
// numeric and handled by arithOp below.
func Add(a, b Value) (Value, error) {
	if _, ok := a.(None); ok {
		return b, nil
	}
	if _, ok := b.(None); ok {
		return a, nil
	}
	switch av := a.(type) {
	case String:
		if bv, ok := b.(String); ok {
			return av + bv, nil
		}
	case Bytes:
		if bv, ok := b.(Bytes); ok {
			out := make([]byte, 0, len(av.Data)+len(bv.Data))
			out = append(out, av.Data...)
			out = append(out, bv.Data...)
			return Bytes{Data: out}, nil
		}
	case Array:
		if bv, ok := b.(Array); ok {
			out := make([]Value, 0, len(av.Elems)+len(bv.Elems))
			out = append(out, av.Elems...)
			out = append(out, bv.Elems...)
			return Array{Elems: out}, nil
		}
	case *Dict:
		if bv, ok := b.(*Dict); ok {
			out := av.Clone()
			bv.Each(func(k string, v Value) { out.Set(k, v) })
			return out, nil
		}
	case Content:
		if bv, ok := b.(Content); ok {
			return SequenceContent(av, bv), nil
		}
	}
	if isNumeric(a) && isNumeric(b) {
		return arithOp("+", a, b)
	}
	return nil, fmt.Errorf("cannot add %s and %s", a.Kind(), b.Kind())
}

func Sub(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return nil, fmt.Errorf("cannot subtract %s and %s", a.Kind(), b.Kind())
	}
	return arithOp("-", a, b)
}

func Mul(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return nil, fmt.Errorf("cannot multiply %s and %s", a.Kind(), b.Kind())
	}
	return arithOp("*", a, b)
}

func Div(a, b Value) (Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return nil, fmt.Errorf("cannot divide %s and %s", a.Kind(), b.Kind())
	}
	return arithOp("/", a, b)
}

func Neg(a Value) (Value, error) {
	switch v := a.(type) {
	case Int:
		if v == math.MinInt64 {
			return nil, fmt.Errorf("value is too large")
		}
		return -v, nil
	case Float:
		return -v, nil
	case Decimal:
		zero := NewDecimalFromInt(0)
		return DecimalSub(zero, v)
	case Length:
		return Length{Abs: -v.Abs, Em: -v.Em}, nil
	case Angle:
		return Angle{Radians: -v.Radians}, nil
	case Ratio:
		return Ratio{Frac: -v.Frac}, nil
	case Fraction:
		return Fraction{Share: -v.Share}, nil
	}
	return nil, fmt.Errorf("cannot negate %s", a.Kind())
}

func isNumeric(v Value) bool {
	switch v.Kind() {
	case KindInt, KindFloat, KindDecimal, KindLength, KindAngle, KindRatio, KindRelative, KindFraction:
		return true
	}
	return false
}

// arithOp dispatches a binary numeric operator across same-category
// operands, promoting Int to Float when mixed with one, and rejecting
// Decimal mixed with Float outright (spec §4.D: "mixing decimal and
// float is an error; convert explicitly").
func arithOp(op string, a, b Value) (Value, error) {
	// same-kind fast paths
	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			return intOp(op, ai, bi)
		}
	}
	if _, ok := a.(Decimal); ok {
		if _, isFloat := b.(Float); isFloat {
			return nil, fmt.Errorf("cannot %s a decimal and a float; convert one explicitly", opName(op))
		}
	}
	if _, ok := b.(Decimal); ok {
		if _, isFloat := a.(Float); isFloat {
			return nil, fmt.Errorf("cannot %s a decimal and a float; convert one explicitly", opName(op))
		}
	}
	if ad, ok := a.(Decimal); ok {
		if bd, ok := b.(Decimal); ok {
			return decimalArithOp(op, ad, bd)
		}
		if bi, ok := b.(Int); ok {
			return decimalArithOp(op, ad, NewDecimalFromInt(int64(bi)))
		}
	}
	if bd, ok := b.(Decimal); ok {
		if ai, ok := a.(Int); ok {
			return decimalArithOp(op, NewDecimalFromInt(int64(ai)), bd)
		}
	}
	if al, ok := a.(Length); ok {
		if bl, ok := b.(Length); ok {
			return lengthOp(op, al, bl)
		}
	}
	if aa, ok := a.(Angle); ok {
		if ba, ok := b.(Angle); ok {
			return angleOp(op, aa, ba)
		}
	}
	if ar, ok := a.(Ratio); ok {
		if br, ok := b.(Ratio); ok {
			return ratioOp(op, ar, br)
		}
	}
	if af, ok := a.(Fraction); ok {
		if bf, ok := b.(Fraction); ok {
			return fractionOp(op, af, bf)
		}
	}
	// fall back to float promotion
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		r, err := floatOp(op, af, bf)
		if err != nil {
			return nil, err
		}
		return Float(r), nil
	}
	return nil, fmt.Errorf("cannot %s %s and %s", opName(op), a.Kind(), b.Kind())
}

func opName(op string) string {
	switch op {
	case "+":
		return "add"
	case "-":
		return "subtract"
	case "*":
		return "multiply"
	case "/":
		return "divide"
	}
	return op
}

func toFloat(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	}
	return 0, false
}

func intOp(op string, a, b Int) (Value, error) {
	switch op {
	case "+":
		r := a + b
		if (b > 0 && r < a) || (b < 0 && r > a) {
			return nil, fmt.Errorf("value is too large")
		}
		return r, nil
	case "-":
		r := a - b
		if (b < 0 && r < a) || (b > 0 && r > a) {
			return nil, fmt.Errorf("value is too large")
		}
		return r, nil
	case "*":
		if a == 0 || b == 0 {
			return Int(0), nil
		}
		r := a * b
		if r/b != a {
			return nil, fmt.Errorf("value is too large")
		}
		return r, nil
	case "/":
		if b == 0 {
			return nil, fmt.Errorf("divided by zero")
		}
		if a%b == 0 {
			return a / b, nil
		}
		return Float(float64(a) / float64(b)), nil
	}
	return nil, fmt.Errorf("unsupported integer operator %q", op)
}

func floatOp(op string, a, b float64) (float64, error) {
	var r float64
	switch op {
	case "+":
		r = a + b
	case "-":
		r = a - b
	case "*":
		r = a * b
	case "/":
		if b == 0 {
			return 0, fmt.Errorf("divided by zero")
		}
		r = a / b
	}
	if math.IsNaN(r) {
		return 0, fmt.Errorf("float operation produced NaN")
	}
	return r, nil
}

func decimalArithOp(op string, a, b Decimal) (Value, error) {
	switch op {
	case "+":
		return DecimalAdd(a, b)
	case "-":
		return DecimalSub(a, b)
	case "*":
		return DecimalMul(a, b)
	case "/":
		return DecimalQuo(a, b)
	}
	return nil, fmt.Errorf("unsupported decimal operator %q", op)
}

func lengthOp(op string, a, b Length) (Value, error) {
	switch op {
	case "+":
		return a.Add(b), nil
	case "-":
		return Length{Abs: a.Abs - b.Abs, Em: a.Em - b.Em}, nil
	}
	return nil, fmt.Errorf("cannot %s two lengths", opName(op))
}

func angleOp(op string, a, b Angle) (Value, error) {
	switch op {
	case "+":
		return Angle{Radians: a.Radians + b.Radians}, nil
	case "-":
		return Angle{Radians: a.Radians - b.Radians}, nil
	}
	return nil, fmt.Errorf("cannot %s two angles", opName(op))
}

func ratioOp(op string, a, b Ratio) (Value, error) {
	switch op {
	case "+":
		return Ratio{Frac: a.Frac + b.Frac}, nil
	case "-":
		return Ratio{Frac: a.Frac - b.Frac}, nil
	}
	return nil, fmt.Errorf("cannot %s two ratios", opName(op))
}

func fractionOp(op string, a, b Fraction) (Value, error) {
	switch op {
	case "+":
		return Fraction{Share: a.Share + b.Share}, nil
	case "-":
		return Fraction{Share: a.Share - b.Share}, nil
	}
	return nil, fmt.Errorf("cannot %s two fractions", opName(op))
}

// Compare orders two values for the relational operators (spec §4.D:
// "comparison is defined within a category; cross-category comparison is
// an error"). It returns an error naming both kinds, matching the
// diagnostic text the evaluator surfaces verbatim.
func Compare(a, b Value) (int, error) {
	switch av := a.(type) {
	case Int:
		if bv, ok := b.(Int); ok {
			return compareInt(int64(av), int64(bv)), nil
		}
		if bf, ok := toFloat(b); ok {
			return compareFloat(float64(av), bf), nil
		}
	case Float:
		if bf, ok := toFloat(b); ok {
			return compareFloat(float64(av), bf), nil
		}
	case Decimal:
		if bv, ok := b.(Decimal); ok {
			return DecimalCompare(av, bv), nil
		}
	case String:
		if bv, ok := b.(String); ok {
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			default:
				return 0, nil
			}
		}
	case Length:
		if bv, ok := b.(Length); ok {
			cmp, ok := av.Compare(bv)
			if !ok {
				return 0, fmt.Errorf("cannot compare these two lengths")
			}
			return cmp, nil
		}
	case Angle:
		if bv, ok := b.(Angle); ok {
			return compareFloat(av.Radians, bv.Radians), nil
		}
	case Ratio:
		if bv, ok := b.(Ratio); ok {
			return compareFloat(av.Frac, bv.Frac), nil
		}
	case Duration:
		if bv, ok := b.(Duration); ok {
			return compareInt(av.Seconds, bv.Seconds), nil
		}
	case Version:
		if bv, ok := b.(Version); ok {
			return av.Compare(bv), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s with %s", a.Kind(), b.Kind())
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
