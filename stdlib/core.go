package stdlib

import (
	"context"
	"fmt"

	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/plugin/wasm"
	"github.com/typst-lang/typst-core/value"
	"github.com/typst-lang/typst-core/world"
)

func arg(args *value.Arguments, i int) (value.Value, bool) {
	if i < 0 || i >= len(args.Positional) {
		return nil, false
	}
	return args.Positional[i], true
}

// builtinInt converts a bool, float, decimal, or string to an integer,
// mirroring Typst's `int(value)` conversion builtin.
func builtinInt(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("int: expected 1 positional argument, found 0")
	}
	switch x := v.(type) {
	case value.Int:
		return x, nil
	case value.Float:
		return value.Int(int64(x)), nil
	case value.Bool:
		if x {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	case value.String:
		n, ok := parseIntPrefix(string(x))
		if !ok {
			return nil, fmt.Errorf("cannot convert string to integer")
		}
		return value.Int(n), nil
	case value.Decimal:
		s := x.Repr()
		for i := 0; i < len(s); i++ {
			if s[i] == '.' {
				s = s[:i]
				break
			}
		}
		n, ok := parseIntPrefix(s)
		if !ok {
			return nil, fmt.Errorf("cannot convert decimal to integer")
		}
		return value.Int(n), nil
	default:
		return nil, fmt.Errorf("expected bool, integer, float, decimal, or string, found %s", v.Kind())
	}
}

func parseIntPrefix(s string) (int64, bool) {
	var n int64
	neg := false
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	if i == len(s) {
		return 0, false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int64(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

func builtinFloat(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("float: expected 1 positional argument, found 0")
	}
	switch x := v.(type) {
	case value.Float:
		return x, nil
	case value.Int:
		return value.Float(float64(x)), nil
	case value.Ratio:
		return value.Float(x.Frac), nil
	default:
		return nil, fmt.Errorf("expected integer, float, or ratio, found %s", v.Kind())
	}
}

// builtinStr renders a value as a string, using Repr for all but string
// values themselves (which pass through unchanged rather than being
// re-quoted).
func builtinStr(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("str: expected 1 positional argument, found 0")
	}
	if s, ok := v.(value.String); ok {
		return s, nil
	}
	return value.String(v.Repr()), nil
}

func builtinRepr(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("repr: expected 1 positional argument, found 0")
	}
	return value.String(v.Repr()), nil
}

func builtinType(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("type: expected 1 positional argument, found 0")
	}
	return value.Type{Named: v.Kind()}, nil
}

// builtinAssert implements Typst's `assert(condition, message: ..)`.
func builtinAssert(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("assert: expected 1 positional argument, found 0")
	}
	b, ok := v.(value.Bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, found %s", v.Kind())
	}
	if !bool(b) {
		if msg, ok := args.Named["message"]; ok {
			return nil, fmt.Errorf("assertion failed: %s", msg.Repr())
		}
		return nil, fmt.Errorf("assertion failed")
	}
	return value.None{}, nil
}

// builtinTest implements the `test(value, expected)` fixture helper used
// by spec §8 scenario 1 ("#let x = 1 + 2\n#test(x, 3)"). Equality is the
// same value.DeepEqual the evaluator's `==` operator uses.
func builtinTest(_ interface{}, args *value.Arguments) (value.Value, error) {
	got, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("test: expected 2 positional arguments, found 0")
	}
	want, ok := arg(args, 1)
	if !ok {
		return nil, fmt.Errorf("test: expected 2 positional arguments, found 1")
	}
	if !value.DeepEqual(got, want) {
		return nil, fmt.Errorf("test failed: %s != %s", got.Repr(), want.Repr())
	}
	return value.None{}, nil
}

// builtinRange implements `range(end)` / `range(start, end)`, producing
// an array the way Typst's range builtin does.
func builtinRange(_ interface{}, args *value.Arguments) (value.Value, error) {
	var start, end int64
	switch len(args.Positional) {
	case 1:
		e, ok := args.Positional[0].(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", args.Positional[0].Kind())
		}
		end = int64(e)
	case 2:
		s, ok := args.Positional[0].(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", args.Positional[0].Kind())
		}
		e, ok := args.Positional[1].(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", args.Positional[1].Kind())
		}
		start, end = int64(s), int64(e)
	default:
		return nil, fmt.Errorf("range: expected 1 or 2 positional arguments, found %d", len(args.Positional))
	}
	var elems []value.Value
	for i := start; i < end; i++ {
		elems = append(elems, value.Int(i))
	}
	return value.Array{Elems: elems}, nil
}

// builtinPlugin implements `plugin(path)` (spec §6 "Plugin interface"):
// it reads the WebAssembly bytes through the current World (so plugin
// loading obeys the same sandbox as any other file access) and hands
// them to package plugin/wasm for instantiation, returning a
// value.Plugin that call expressions (`myplugin.compute(...)`) dispatch
// through like any other value.Callable-bearing field.
func builtinPlugin(ctx interface{}, args *value.Arguments) (value.Value, error) {
	vm, ok := ctx.(*eval.Vm)
	if !ok {
		return nil, fmt.Errorf("plugin: no evaluator context available")
	}
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("plugin: expected 1 positional argument, found 0")
	}
	path, ok := v.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", v.Kind())
	}
	data, err := vm.World.File(world.SourceID{Path: string(path)})
	if err != nil {
		return nil, fmt.Errorf("plugin %q: %w", string(path), err)
	}
	inst, err := wasm.Load(context.Background(), string(path), data)
	if err != nil {
		return nil, err
	}
	return inst.AsValue(string(path)), nil
}

func builtinPanic(_ interface{}, args *value.Arguments) (value.Value, error) {
	if v, ok := arg(args, 0); ok {
		return nil, fmt.Errorf("panicked with: %s", v.Repr())
	}
	return nil, fmt.Errorf("panicked")
}
