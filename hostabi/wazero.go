package hostabi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Signature is the exact wasm type of one host function.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

var Signatures = map[string]Signature{
	FuncInputSize: {Results: []api.ValueType{api.ValueTypeI32}},
	FuncRead:      {Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}},
	FuncWrite:     {Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}},
	FuncExit:      {Params: []api.ValueType{api.ValueTypeI32}},
}

func (sig Signature) matches(params, results []api.ValueType) bool {
	return equalTypes(sig.Params, params) && equalTypes(sig.Results, results)
}

func equalTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CheckImports rejects modules importing anything the host does not provide.
func CheckImports(compiled wazero.CompiledModule) error {
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if module != ModuleName {
			return NewFaultf(MissingImport, "%s.%s: unknown module", module, name)
		}
		sig, ok := Signatures[name]
		if !ok {
			return NewFaultf(MissingImport, "%s.%s: unknown function", module, name)
		}
		if !sig.matches(def.ParamTypes(), def.ResultTypes()) {
			return NewFaultf(MissingImport, "%s.%s: signature mismatch", module, name)
		}
	}
	for _, def := range compiled.ImportedMemories() {
		module, name, _ := def.Import()
		return NewFaultf(MissingImport, "%s.%s: memory imports are not provided", module, name)
	}
	return nil
}

// Instantiate registers the host functions bound to state. Faults abort the
// call by panicking; wazero recovers them and returns them wrapped from Call.
func Instantiate(ctx context.Context, r wazero.Runtime, state *HostState) (api.Module, error) {
	mod, err := r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			return state.InputSize()
		}).
		Export(FuncInputSize).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, target, offset, length uint32) {
			if err := state.Read(exportedMemory(m), target, offset, length); err != nil {
				panic(err)
			}
		}).
		Export(FuncRead).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, offset, length uint32) {
			if err := state.Write(exportedMemory(m), offset, length); err != nil {
				panic(err)
			}
		}).
		Export(FuncWrite).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, code int32) {
			panic(state.Exit(code))
		}).
		Export(FuncExit).
		Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", ModuleName, err)
	}
	return mod, nil
}

func exportedMemory(m api.Module) api.Memory {
	mem := m.ExportedMemory(MemoryExport)
	if mem == nil {
		panic(NewFaultf(MissingMemoryExport, "module %q exports no %q", m.Name(), MemoryExport))
	}
	return mem
}
