package stdlib

import (
	"fmt"

	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/value"
)

func registerDictMethods() {
	eval.RegisterMethod(value.KindDict, "len", dictLen)
	eval.RegisterMethod(value.KindDict, "at", dictAt)
	eval.RegisterMethod(value.KindDict, "keys", dictKeys)
	eval.RegisterMethod(value.KindDict, "values", dictValues)
	eval.RegisterMethod(value.KindDict, "insert", dictInsert)
	eval.RegisterMethod(value.KindDict, "remove", dictRemove)
}

func dictLen(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	return value.Int(recv.(*value.Dict).Len()), nil
}

func dictAt(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	d := recv.(*value.Dict)
	k, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("at: expected 1 positional argument, found 0")
	}
	key, ok := k.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", k.Kind())
	}
	if v, ok := d.Get(string(key)); ok {
		return v, nil
	}
	if dflt, ok := args.Named["default"]; ok {
		return dflt, nil
	}
	return nil, fmt.Errorf("no default value was specified and dictionary does not contain key %q", key)
}

func dictKeys(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	d := recv.(*value.Dict)
	keys := d.Keys()
	elems := make([]value.Value, len(keys))
	for i, k := range keys {
		elems[i] = value.String(k)
	}
	return value.Array{Elems: elems}, nil
}

func dictValues(_ *eval.Vm, recv value.Value, _ *value.Arguments) (value.Value, error) {
	d := recv.(*value.Dict)
	var elems []value.Value
	d.Each(func(_ string, v value.Value) { elems = append(elems, v) })
	return value.Array{Elems: elems}, nil
}

// dictInsert returns a new dictionary with key set to v; dictionaries
// are value-typed (spec §3 "Lifecycles": "clone on write"), so this
// clones rather than mutating recv.
func dictInsert(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	d := recv.(*value.Dict).Clone()
	k, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("insert: expected 2 positional arguments, found 0")
	}
	key, ok := k.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", k.Kind())
	}
	v, ok := arg(args, 1)
	if !ok {
		return nil, fmt.Errorf("insert: expected 2 positional arguments, found 1")
	}
	d.Set(string(key), v)
	return d, nil
}

func dictRemove(_ *eval.Vm, recv value.Value, args *value.Arguments) (value.Value, error) {
	d := recv.(*value.Dict).Clone()
	k, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("remove: expected 1 positional argument, found 0")
	}
	key, ok := k.(value.String)
	if !ok {
		return nil, fmt.Errorf("expected string, found %s", k.Kind())
	}
	if _, ok := d.Get(string(key)); !ok {
		return nil, fmt.Errorf("dictionary does not contain key %q", key)
	}
	d.Delete(string(key))
	return d, nil
}
