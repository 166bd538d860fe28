package stdlib

import (
	"fmt"
	"math"

	"github.com/typst-lang/typst-core/value"
)

// calcMembers returns the `calc.*` namespace's members, installed as a
// value.Module so `calc.abs(x)` resolves through the evaluator's ordinary
// module field-access path rather than a flattened name.
func calcMembers() map[string]func(ctx interface{}, args *value.Arguments) (value.Value, error) {
	return map[string]func(ctx interface{}, args *value.Arguments) (value.Value, error){
		"abs":   calcAbs,
		"min":   calcMin,
		"max":   calcMax,
		"round": calcRound,
		"sqrt":  calcSqrt,
		"pow":   calcPow,
		"even":  calcEven,
		"odd":   calcOdd,
	}
}

func asFloat(v value.Value) (float64, bool) {
	switch x := v.(type) {
	case value.Int:
		return float64(x), true
	case value.Float:
		return float64(x), true
	default:
		return 0, false
	}
}

func calcAbs(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.abs: expected 1 positional argument, found 0")
	}
	switch x := v.(type) {
	case value.Int:
		if x < 0 {
			return -x, nil
		}
		return x, nil
	case value.Float:
		return value.Float(math.Abs(float64(x))), nil
	default:
		return nil, fmt.Errorf("expected integer or float, found %s", v.Kind())
	}
}

func calcMin(_ interface{}, args *value.Arguments) (value.Value, error) {
	return calcExtreme(args, func(cmp int) bool { return cmp < 0 })
}

func calcMax(_ interface{}, args *value.Arguments) (value.Value, error) {
	return calcExtreme(args, func(cmp int) bool { return cmp > 0 })
}

func calcExtreme(args *value.Arguments, better func(cmp int) bool) (value.Value, error) {
	if len(args.Positional) == 0 {
		return nil, fmt.Errorf("expected at least one value")
	}
	best := args.Positional[0]
	for _, v := range args.Positional[1:] {
		cmp, err := value.Compare(v, best)
		if err != nil {
			return nil, err
		}
		if better(cmp) {
			best = v
		}
	}
	return best, nil
}

func calcRound(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.round: expected 1 positional argument, found 0")
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("expected integer or float, found %s", v.Kind())
	}
	digits := 0
	if d, ok := args.Named["digits"]; ok {
		di, ok := d.(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", d.Kind())
		}
		digits = int(di)
	}
	scale := math.Pow(10, float64(digits))
	rounded := math.Round(f*scale) / scale
	if _, isInt := v.(value.Int); isInt && digits == 0 {
		return value.Int(int64(rounded)), nil
	}
	return value.Float(rounded), nil
}

func calcSqrt(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.sqrt: expected 1 positional argument, found 0")
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("expected integer or float, found %s", v.Kind())
	}
	if f < 0 {
		return nil, fmt.Errorf("cannot take square root of negative number")
	}
	return value.Float(math.Sqrt(f)), nil
}

func calcPow(_ interface{}, args *value.Arguments) (value.Value, error) {
	base, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.pow: expected 2 positional arguments, found 0")
	}
	exp, ok := arg(args, 1)
	if !ok {
		return nil, fmt.Errorf("calc.pow: expected 2 positional arguments, found 1")
	}
	bf, ok1 := asFloat(base)
	ef, ok2 := asFloat(exp)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("expected integer or float operands")
	}
	result := math.Pow(bf, ef)
	if bi, ok := base.(value.Int); ok {
		if ei, ok := exp.(value.Int); ok && ei >= 0 {
			return value.Int(int64(math.Pow(float64(bi), float64(ei)))), nil
		}
	}
	return value.Float(result), nil
}

func calcEven(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.even: expected 1 positional argument, found 0")
	}
	i, ok := v.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, found %s", v.Kind())
	}
	return value.Bool(i%2 == 0), nil
}

func calcOdd(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("calc.odd: expected 1 positional argument, found 0")
	}
	i, ok := v.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, found %s", v.Kind())
	}
	return value.Bool(i%2 != 0), nil
}
