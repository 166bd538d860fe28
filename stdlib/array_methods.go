package stdlib

import (
	"fmt"

	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/value"
)

// registerArrayMethods wires `array`'s fixed method table (spec §3
// "Functions as data"), including `.at`, whose out-of-bounds wording spec
// §8 scenario 2 mandates verbatim: "no default value was specified and
// array index out of bounds (index: N, len: N)".
func registerArrayMethods() {
	eval.RegisterMethod(value.KindArray, "at", arrayAt)
	eval.RegisterMethod(value.KindArray, "len", arrayLen)
	eval.RegisterMethod(value.KindArray, "first", arrayFirst)
	eval.RegisterMethod(value.KindArray, "last", arrayLast)
	eval.RegisterMethod(value.KindArray, "push", arrayPush)
	eval.RegisterMethod(value.KindArray, "contains", arrayContains)
	eval.RegisterMethod(value.KindArray, "slice", arraySlice)
}

func arrayAt(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	idx, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("at: expected 1 positional argument, found 0")
	}
	i, ok := idx.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, found %s", idx.Kind())
	}
	n := int64(len(a.Elems))
	ii := int64(i)
	if ii < 0 {
		ii += n
	}
	if ii < 0 || ii >= n {
		if dflt, ok := args.Named["default"]; ok {
			return dflt, nil
		}
		return nil, fmt.Errorf("no default value was specified and array index out of bounds (index: %d, len: %d)", i, n)
	}
	return a.Elems[ii], nil
}

func arrayLen(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.Int(len(recv.(value.Array).Elems)), nil
}

func arrayFirst(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	if len(a.Elems) == 0 {
		return nil, fmt.Errorf("array is empty")
	}
	return a.Elems[0], nil
}

func arrayLast(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	if len(a.Elems) == 0 {
		return nil, fmt.Errorf("array is empty")
	}
	return a.Elems[len(a.Elems)-1], nil
}

// arrayPush returns a new array with v appended: arrays are value-typed
// (clone on write, spec §3 "Lifecycles"), so `.push` cannot mutate recv
// in place and instead yields the extended array as its result.
func arrayPush(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("push: expected 1 positional argument, found 0")
	}
	out := make([]value.Value, len(a.Elems)+1)
	copy(out, a.Elems)
	out[len(a.Elems)] = v
	return value.Array{Elems: out}, nil
}

func arrayContains(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("contains: expected 1 positional argument, found 0")
	}
	for _, e := range a.Elems {
		if value.DeepEqual(e, v) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func arraySlice(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	a := recv.(value.Array)
	n := int64(len(a.Elems))
	start, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("slice: expected at least 1 positional argument, found 0")
	}
	si, ok := start.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, found %s", start.Kind())
	}
	end := n
	if e, ok := arg(args, 1); ok {
		ei, ok := e.(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", e.Kind())
		}
		end = int64(ei)
	}
	s, e := int64(si), end
	if s < 0 {
		s += n
	}
	if e < 0 {
		e += n
	}
	if s < 0 || e > n || s > e {
		return nil, fmt.Errorf("array slice index out of bounds (start: %d, end: %d, len: %d)", s, e, n)
	}
	out := make([]value.Value, e-s)
	copy(out, a.Elems[s:e])
	return value.Array{Elems: out}, nil
}
