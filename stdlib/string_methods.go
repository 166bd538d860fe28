package stdlib

import (
	"fmt"
	"strings"

	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/value"
)

func registerStringMethods() {
	eval.RegisterMethod(value.KindString, "len", stringLen)
	eval.RegisterMethod(value.KindString, "at", stringAt)
	eval.RegisterMethod(value.KindString, "contains", stringContains)
	eval.RegisterMethod(value.KindString, "starts-with", stringStartsWith)
	eval.RegisterMethod(value.KindString, "ends-with", stringEndsWith)
	eval.RegisterMethod(value.KindString, "trim", stringTrim)
	eval.RegisterMethod(value.KindString, "split", stringSplit)
	eval.RegisterMethod(value.KindString, "upper", stringUpper)
	eval.RegisterMethod(value.KindString, "lower", stringLower)
}

// stringLen counts grapheme clusters, not bytes or runes, matching the
// `for ch in someString` iteration unit spec §4.F names.
func stringLen(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.Int(value.GraphemeLen(string(recv.(value.String)))), nil
}

func stringAt(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	clusters := value.GraphemeClusters(string(recv.(value.String)))
	idx, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("at: expected 1 positional argument, found 0")
	}
	i, ok := idx.(value.Int)
	if !ok {
		return nil, fmt.Errorf("expected integer, found %s", idx.Kind())
	}
	n := int64(len(clusters))
	ii := int64(i)
	if ii < 0 {
		ii += n
	}
	if ii < 0 || ii >= n {
		if dflt, ok := args.Named["default"]; ok {
			return dflt, nil
		}
		return nil, fmt.Errorf("no default value was specified and string index out of bounds (index: %d, len: %d)", i, n)
	}
	return clusters[ii], nil
}

func stringContains(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	s := string(recv.(value.String))
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("contains: expected 1 positional argument, found 0")
	}
	needle, ok := v.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", v.Kind())
	}
	return value.Bool(strings.Contains(s, string(needle))), nil
}

func stringStartsWith(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	s := string(recv.(value.String))
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("starts-with: expected 1 positional argument, found 0")
	}
	prefix, ok := v.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", v.Kind())
	}
	return value.Bool(strings.HasPrefix(s, string(prefix))), nil
}

func stringEndsWith(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	s := string(recv.(value.String))
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("ends-with: expected 1 positional argument, found 0")
	}
	suffix, ok := v.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", v.Kind())
	}
	return value.Bool(strings.HasSuffix(s, string(suffix))), nil
}

func stringTrim(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.String(strings.TrimSpace(string(recv.(value.String)))), nil
}

func stringSplit(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	s := string(recv.(value.String))
	sep := " "
	if v, ok := arg(args, 0); ok {
		sv, ok := v.(value.String)
		if !ok {
			return nil, fmt.Errorf("expected string, found %s", v.Kind())
		}
		sep = string(sv)
	}
	parts := strings.Split(s, sep)
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.String(p)
	}
	return value.Array{Elems: elems}, nil
}

func stringUpper(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.String(strings.ToUpper(string(recv.(value.String)))), nil
}

func stringLower(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.String(strings.ToLower(string(recv.(value.String)))), nil
}
