package eval

import "github.com/typst-lang/typst-core/value"

// Method is one entry of a built-in type's fixed method table (spec §3
// "Functions as data": "Methods on built-in types dispatch via a fixed
// name table per type"). The stdlib package populates methodTable via
// RegisterMethod from its init(), the same side-effect-registration
// idiom database/sql drivers use, so eval never imports stdlib (stdlib
// already imports eval for *Vm and value.Arguments).
type Method func(vm *Vm, recv value.Value, args *value.Arguments) (value.Value, error)

var methodTable = map[value.Kind]map[string]Method{}

// RegisterMethod adds fn as the implementation of recv.(kind).name(...).
func RegisterMethod(kind value.Kind, name string, fn Method) {
	table, ok := methodTable[kind]
	if !ok {
		table = map[string]Method{}
		methodTable[kind] = table
	}
	table[name] = fn
}

func lookupMethod(kind value.Kind, name string) (Method, bool) {
	table, ok := methodTable[kind]
	if !ok {
		return nil, false
	}
	fn, ok := table[name]
	return fn, ok
}
