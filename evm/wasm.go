package evm

import (
	"bytes"
	"errors"
	"fmt"

	"wasm-zkvm-bench/hostabi"

	"github.com/bytecodealliance/wasmtime-go/v14"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

const moduleCacheSize = 64

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// IsWasm reports whether code is a WebAssembly binary rather than EVM bytecode.
func IsWasm(code []byte) bool {
	return bytes.HasPrefix(code, wasmMagic)
}

// WasmInterpreter runs WASM contracts on wasmtime with fuel metering standing
// in for gas. Compiled modules are cached by code hash.
type WasmInterpreter struct {
	engine *wasmtime.Engine
	cache  *lru.Cache[common.Hash, *wasmtime.Module]
	logger log.Logger
}

func NewWasmInterpreter(logger log.Logger) *WasmInterpreter {
	config := wasmtime.NewConfig()
	config.SetConsumeFuel(true)

	return &WasmInterpreter{
		engine: wasmtime.NewEngineWithConfig(config),
		cache:  lru.NewCache[common.Hash, *wasmtime.Module](moduleCacheSize),
		logger: logger,
	}
}

func (w *WasmInterpreter) Compile(code []byte) (*wasmtime.Module, error) {
	hash := crypto.Keccak256Hash(code)
	if module, ok := w.cache.Get(hash); ok {
		return module, nil
	}
	module, err := wasmtime.NewModule(w.engine, code)
	if err != nil {
		return nil, err
	}
	w.cache.Add(hash, module)
	return module, nil
}

// WasmOutcome is the raw result of one contract invocation. Err is nil when
// main returned or the contract called _exit; a hosted exit sets Exited.
type WasmOutcome struct {
	Output   []byte
	Exited   bool
	ExitCode int32
	GasUsed  uint64
	Err      error
}

var ErrOutOfFuel = errors.New("out of gas")

// Run invokes main with input as the host input buffer and at most gas fuel.
func (w *WasmInterpreter) Run(code, input []byte, gas uint64) *WasmOutcome {
	outcome := &WasmOutcome{}

	module, err := w.Compile(code)
	if err != nil {
		outcome.Err = hostabi.NewFault(hostabi.MalformedModule, err)
		return outcome
	}

	store := wasmtime.NewStore(w.engine)
	if err := store.AddFuel(gas); err != nil {
		outcome.Err = err
		return outcome
	}

	state := hostabi.NewHostState(input, w.logger)
	var fault *hostabi.Fault
	linker, err := w.link(state, &fault)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	err = w.invoke(store, linker, module)
	outcome.Output = state.Output()
	if consumed, ok := store.FuelConsumed(); ok {
		outcome.GasUsed = min(consumed, gas)
		if err != nil && fault == nil && outcome.GasUsed == gas {
			err = ErrOutOfFuel
		}
	}

	switch {
	case fault != nil && fault.Kind == hostabi.HostedExit:
		outcome.Exited = true
		outcome.ExitCode = fault.Code
	case fault != nil:
		outcome.Err = fault
	case err != nil:
		outcome.Err = err
	}
	return outcome
}

func (w *WasmInterpreter) invoke(store *wasmtime.Store, linker *wasmtime.Linker, module *wasmtime.Module) error {
	instance, err := linker.Instantiate(store, module)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	main := instance.GetFunc(store, hostabi.MainExport)
	if main == nil {
		return hostabi.NewFaultf(hostabi.MainMissingOrWrongSignature, "no exported function %q", hostabi.MainExport)
	}
	ty := main.Type(store)
	if len(ty.Params()) != 0 || len(ty.Results()) != 0 {
		return hostabi.NewFaultf(hostabi.MainMissingOrWrongSignature, "%q must take and return nothing", hostabi.MainExport)
	}

	_, err = main.Call(store)
	return err
}

// link binds the host functions to state. A failing host call records its
// fault and unwinds the instance with a trap.
func (w *WasmInterpreter) link(state *hostabi.HostState, fault **hostabi.Fault) (*wasmtime.Linker, error) {
	trap := func(err error) *wasmtime.Trap {
		if err == nil {
			return nil
		}
		if f, ok := hostabi.AsFault(err); ok {
			*fault = f
		}
		return wasmtime.NewTrap(err.Error())
	}

	linker := wasmtime.NewLinker(w.engine)
	err := linker.FuncWrap(hostabi.ModuleName, hostabi.FuncInputSize, func() int32 {
		return int32(state.InputSize())
	})
	if err != nil {
		return nil, err
	}
	err = linker.FuncWrap(hostabi.ModuleName, hostabi.FuncRead, func(caller *wasmtime.Caller, target, offset, length int32) *wasmtime.Trap {
		mem, err := exportedMemory(caller)
		if err != nil {
			return trap(err)
		}
		return trap(state.Read(mem, uint32(target), uint32(offset), uint32(length)))
	})
	if err != nil {
		return nil, err
	}
	err = linker.FuncWrap(hostabi.ModuleName, hostabi.FuncWrite, func(caller *wasmtime.Caller, offset, length int32) *wasmtime.Trap {
		mem, err := exportedMemory(caller)
		if err != nil {
			return trap(err)
		}
		return trap(state.Write(mem, uint32(offset), uint32(length)))
	})
	if err != nil {
		return nil, err
	}
	err = linker.FuncWrap(hostabi.ModuleName, hostabi.FuncExit, func(code int32) *wasmtime.Trap {
		return trap(state.Exit(code))
	})
	if err != nil {
		return nil, err
	}
	return linker, nil
}

type callerMemory struct {
	caller *wasmtime.Caller
	memory *wasmtime.Memory
}

func exportedMemory(caller *wasmtime.Caller) (hostabi.Memory, error) {
	export := caller.GetExport(hostabi.MemoryExport)
	if export == nil || export.Memory() == nil {
		return nil, hostabi.NewFaultf(hostabi.MissingMemoryExport, "contract exports no %q", hostabi.MemoryExport)
	}
	return &callerMemory{caller: caller, memory: export.Memory()}, nil
}

func (m *callerMemory) Size() uint32 {
	return uint32(m.memory.DataSize(m.caller))
}

func (m *callerMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	data := m.memory.UnsafeData(m.caller)
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(data)) {
		return nil, false
	}
	return data[offset:end], true
}

func (m *callerMemory) Write(offset uint32, v []byte) bool {
	data := m.memory.UnsafeData(m.caller)
	if uint64(offset)+uint64(len(v)) > uint64(len(data)) {
		return false
	}
	copy(data[offset:], v)
	return true
}
