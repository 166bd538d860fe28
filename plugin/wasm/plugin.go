// Package wasm loads and calls Typst plugins: WebAssembly modules
// exposing typed callable functions over a length-prefixed byte-buffer
// ABI (spec §6 "Plugin interface").
//
// The host is github.com/tetratelabs/wazero, the same engine
// cuelang.org/go/internal/interpreter/wasm uses; this package adapts
// that file's instantiation/memory-allocation shape (an *instance
// wrapping api.Module, with Alloc/Free helpers around a guest-exported
// allocator) to Typst's own ABI, which exchanges opaque byte slices
// through two host-provided functions instead of CUE's struct-layout
// marshaling (cABIFunc/structLayout in that package have no Typst
// equivalent: Typst plugin calls never cross a typed-struct boundary,
// only byte buffers the guest decodes itself).
package wasm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/typst-lang/typst-core/value"
)

// pendingCall holds the arguments of an in-flight call so the
// write_args_to_buffer host import can hand them to the guest without a
// parameter of its own (the guest only supplies a destination pointer,
// per spec §6).
type pendingCall struct {
	concatenatedArgs []byte
	result           []byte
	isError          bool
	gotResult        bool
}

// Instance is a loaded plugin module (one per `plugin(path)` call site).
// ID is a fresh random identifier assigned by Load, distinguishing
// otherwise-identical instances (e.g. the same .wasm loaded twice for
// independent documents); nothing in this package reads it.
type Instance struct {
	ID       uuid.UUID
	runtime  wazero.Runtime
	module   api.Module
	memory   api.Memory
	pending  *pendingCall
	funcs    map[string]api.Function
}

// Load instantiates the WebAssembly module wasmBytes, wiring the two host
// imports spec §6 mandates: write_args_to_buffer(ptr) and
// send_result_to_host(ptr,len).
func Load(ctx context.Context, name string, wasmBytes []byte) (*Instance, error) {
	rt := wazero.NewRuntime(ctx)
	inst := &Instance{ID: uuid.New(), runtime: rt, pending: &pendingCall{}}

	hostModule := rt.NewHostModuleBuilder("typst_env")
	hostModule.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr uint32) {
			if !m.Memory().Write(ptr, inst.pending.concatenatedArgs) {
				panic("plugin tried to read/write out of bounds")
			}
		}).
		Export("write_args_to_buffer")
	hostModule.NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			data, ok := m.Memory().Read(ptr, length)
			if !ok {
				panic("plugin tried to read/write out of bounds")
			}
			out := make([]byte, len(data))
			copy(out, data)
			inst.pending.result = out
			inst.pending.gotResult = true
		}).
		Export("send_result_to_host")
	if _, err := hostModule.Instantiate(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("plugin %q: failed to wire host imports: %w", name, err)
	}

	mod, err := rt.Instantiate(ctx, wasmBytes)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("plugin %q: failed to instantiate: %w", name, err)
	}
	if mod.Memory() == nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("plugin %q: module exports no memory", name)
	}

	inst.module = mod
	inst.memory = mod.Memory()
	inst.funcs = exportedCallables(mod)
	return inst, nil
}

func exportedCallables(mod api.Module) map[string]api.Function {
	out := map[string]api.Function{}
	for name := range mod.ExportedFunctionDefinitions() {
		if fn := mod.ExportedFunction(name); fn != nil {
			out[name] = fn
		}
	}
	return out
}

// Call invokes the named guest function with args, following the guest
// calling convention from spec §6: the guest allocates a buffer sized to
// the total argument length, calls write_args_to_buffer to receive the
// concatenation, decodes per declared argument lengths, computes, and
// calls send_result_to_host before returning 0 (success) or 1 (error;
// the sent bytes are a UTF-8 message).
func (in *Instance) Call(ctx context.Context, funcName string, args [][]byte) ([]byte, bool, error) {
	fn, ok := in.funcs[funcName]
	if !ok {
		return nil, false, fmt.Errorf("plugin has no function %q", funcName)
	}

	var concatenated []byte
	lengths := make([]uint64, len(args))
	for i, a := range args {
		lengths[i] = uint64(len(a))
		concatenated = append(concatenated, a...)
	}
	in.pending.concatenatedArgs = concatenated
	in.pending.result = nil
	in.pending.gotResult = false

	results, err := fn.Call(ctx, lengths...)
	if err != nil {
		return nil, false, fmt.Errorf("plugin guest panic calling %q: %w", funcName, err)
	}
	if !in.pending.gotResult {
		return nil, false, fmt.Errorf("plugin function %q returned without calling send_result_to_host", funcName)
	}
	if len(results) == 0 {
		return nil, false, fmt.Errorf("plugin function %q returned no status code", funcName)
	}
	status := results[0]
	switch status {
	case 0:
		return in.pending.result, false, nil
	case 1:
		return nil, true, fmt.Errorf("%s", string(in.pending.result))
	default:
		return nil, false, fmt.Errorf("plugin function %q returned unexpected status %d", funcName, status)
	}
}

// Close releases the underlying wazero runtime.
func (in *Instance) Close(ctx context.Context) error {
	return in.runtime.Close(ctx)
}

// AsValue wraps in into a value.Plugin exposing each callable as a
// host-handle function, for the evaluator to invoke like any other
// value.Callable (spec §3 "plugin").
func (in *Instance) AsValue(path string) *value.Plugin {
	p := &value.Plugin{Path: path, Funcs: map[string]func(args [][]byte) ([]byte, bool, error){}}
	for name := range in.funcs {
		fname := name
		p.Funcs[fname] = func(args [][]byte) ([]byte, bool, error) {
			return in.Call(context.Background(), fname, args)
		}
	}
	return p
}
