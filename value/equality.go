package value

// DeepEqual implements spec §4.D structural equality: same kind, same
// data, recursively for arrays/dicts/content; functions and plugins
// compare by identity rather than structure (a closure is never equal to
// a textually identical one defined elsewhere).
func DeepEqual(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		// none and auto are distinct kinds and distinct values; no
		// cross-kind numeric coercion happens in equality (spec §4.D:
		// "1 == 1.0 is true" is the one exception, handled below).
		return numericEqualCrossKind(a, b)
	}
	switch av := a.(type) {
	case None, Auto:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Float:
		return av == b.(Float)
	case Decimal:
		return DecimalEqual(av, b.(Decimal))
	case String:
		return av == b.(String)
	case Bytes:
		bv := b.(Bytes)
		if len(av.Data) != len(bv.Data) {
			return false
		}
		for i := range av.Data {
			if av.Data[i] != bv.Data[i] {
				return false
			}
		}
		return true
	case Label:
		return av == b.(Label)
	case Length:
		bv := b.(Length)
		return av.Abs == bv.Abs && av.Em == bv.Em
	case Angle:
		return av.Radians == b.(Angle).Radians
	case Ratio:
		return av.Frac == b.(Ratio).Frac
	case Relative:
		bv := b.(Relative)
		return DeepEqual(av.Ratio, bv.Ratio) && DeepEqual(av.Length, bv.Length)
	case Fraction:
		return av.Share == b.(Fraction).Share
	case Color:
		bv := b.(Color)
		return av.R == bv.R && av.G == bv.G && av.B == bv.B && av.A == bv.A
	case Symbol:
		return av.Name == b.(Symbol).Name
	case Datetime:
		return av == b.(Datetime)
	case Duration:
		return av == b.(Duration)
	case Version:
		return av.Compare(b.(Version)) == 0
	case Regex:
		return av.Pattern == b.(Regex).Pattern
	case Array:
		bv := b.(Array)
		if len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !DeepEqual(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *Dict:
		bv := b.(*Dict)
		if av.Len() != bv.Len() {
			return false
		}
		eq := true
		av.Each(func(k string, v Value) {
			if !eq {
				return
			}
			bvv, ok := bv.Get(k)
			if !ok || !DeepEqual(v, bvv) {
				eq = false
			}
		})
		return eq
	case Content:
		return av.Equal(b.(Content))
	case *Closure:
		return av == b.(*Closure)
	case *NativeFunc:
		return av == b.(*NativeFunc)
	case *WithApplied:
		return av == b.(*WithApplied)
	case *Plugin:
		return av == b.(*Plugin)
	case *Module:
		return av == b.(*Module)
	case Type:
		return av.Named == b.(Type).Named
	case Stroke:
		bv := b.(Stroke)
		return DeepEqual(av.Paint, bv.Paint) && DeepEqual(av.Thickness, bv.Thickness)
	case Alignment:
		return av == b.(Alignment)
	case Direction:
		return av == b.(Direction)
	case TargetPlate:
		return av == b.(TargetPlate)
	}
	return false
}

// numericEqualCrossKind implements the one cross-kind equality the spec
// allows: an Int and a Float with the same mathematical value compare
// equal (e.g. `1 == 1.0`). Every other cross-kind pair is unequal.
func numericEqualCrossKind(a, b Value) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}
