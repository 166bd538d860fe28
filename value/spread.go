package value

import "fmt"

// SpreadTarget is where a `..expr` spread element lands: an array
// literal, a dict literal, or a call's argument list (spec §4.F
// "Spreading").
type SpreadTarget int

const (
	SpreadIntoArray SpreadTarget = iota
	SpreadIntoDict
	SpreadIntoArgs
)

// Spread expands v into an array/dict literal or call argument list
// under construction. `..none` and `..()` and `..(:)` are no-ops (spec
// §4.F edge cases); spreading a string is always an error, since Typst
// strings iterate as grapheme clusters elsewhere but do not spread
// positionally (spec §4.F "Spreading": "strings never spread").
func Spread(target SpreadTarget, v Value, into func(Value), intoNamed func(key string, v Value), intoPositional func(v Value)) error {
	if _, ok := v.(None); ok {
		return nil
	}
	if s, ok := v.(String); ok {
		_ = s
		return fmt.Errorf("cannot spread a string")
	}
	switch target {
	case SpreadIntoArray:
		arr, ok := v.(Array)
		if !ok {
			return fmt.Errorf("cannot spread %s into an array", v.Kind())
		}
		for _, e := range arr.Elems {
			into(e)
		}
		return nil
	case SpreadIntoDict:
		d, ok := v.(*Dict)
		if !ok {
			return fmt.Errorf("cannot spread %s into a dictionary", v.Kind())
		}
		d.Each(func(k string, val Value) { intoNamed(k, val) })
		return nil
	case SpreadIntoArgs:
		switch sv := v.(type) {
		case *Arguments:
			for _, p := range sv.Positional {
				intoPositional(p)
			}
			for _, k := range sv.NamedOrder {
				intoNamed(k, sv.Named[k])
			}
			return nil
		case Array:
			for _, e := range sv.Elems {
				intoPositional(e)
			}
			return nil
		case *Dict:
			sv.Each(func(k string, val Value) { intoNamed(k, val) })
			return nil
		default:
			return fmt.Errorf("cannot spread %s into arguments", v.Kind())
		}
	}
	return fmt.Errorf("unknown spread target")
}
