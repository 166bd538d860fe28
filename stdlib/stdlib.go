// Package stdlib is the standard library surface (spec §2 component L):
// built-in functions, element constructors, and the fixed per-type method
// tables spec §3 "Functions as data" names ("Methods on built-in types
// dispatch via a fixed name table per type").
//
// It is grounded on cuelang.org/go's own builtin registration pattern
// (cue/builtin.go's `builtin` struct — Name/Params/Func, installed into a
// struct literal scope at package-compile time) adapted from CUE's single
// flat `builtin` table to two registries: value.NativeFunc entries
// installed into a module's top-level scope (Install), and per-Kind
// method tables installed into the evaluator (eval.RegisterMethod), since
// Typst distinguishes free functions (`int(x)`) from receiver methods
// (`a.at(5)`) where CUE's builtins are all free functions.
package stdlib

import (
	"github.com/typst-lang/typst-core/eval"
	"github.com/typst-lang/typst-core/value"
)

func init() {
	registerArrayMethods()
	registerStringMethods()
	registerDictMethods()
}

// Install defines every top-level built-in function and constant into
// vm's current (innermost) scope via vm.Define, the way mustCompileBuiltins installs the teacher's
// native builtins into the root CUE instance's struct literal.
func Install(vm *eval.Vm) {
	for name, fn := range freeFunctions() {
		vm.Define(name, &value.NativeFunc{Name: name, Call: fn}, false, 0)
	}
	for name, nf := range elementFunctions() {
		vm.Define(name, nf, false, 0)
	}
	for name, v := range constants() {
		vm.Define(name, v, false, 0)
	}
}

func freeFunctions() map[string]func(ctx interface{}, args *value.Arguments) (value.Value, error) {
	return map[string]func(ctx interface{}, args *value.Arguments) (value.Value, error){
		"int":    builtinInt,
		"float":  builtinFloat,
		"str":    builtinStr,
		"repr":   builtinRepr,
		"type":   builtinType,
		"assert": builtinAssert,
		"test":   builtinTest,
		"range":  builtinRange,
		"panic":  builtinPanic,
		"plugin": builtinPlugin,
	}
}

func constants() map[string]value.Value {
	calc := value.NewModule("calc")
	for name, fn := range calcMembers() {
		calc.Define(name, &value.NativeFunc{Name: "calc." + name, Call: fn}, false, 0)
	}
	return map[string]value.Value{
		"none": value.None{},
		"auto": value.Auto{},
		"calc": calc,
	}
}
