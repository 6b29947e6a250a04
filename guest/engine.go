package guest

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/tracer"

	"github.com/ethereum/go-ethereum/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
)

type Config struct {
	// Compiler selects wazero's compiler backend instead of the interpreter.
	Compiler bool
	Logger   log.Logger
	Tracer   *tracer.CallTracer
}

func (c Config) logger() log.Logger {
	if c.Logger == nil {
		return log.Root()
	}
	return c.Logger
}

type Result struct {
	Output []byte
	Stage  hostabi.Stage
}

// Execute runs the module's main against input and returns everything the
// module wrote. Any failure is a *hostabi.Fault and no output is returned.
func Execute(ctx context.Context, cfg Config, wasm, input []byte) (*Result, error) {
	logger := cfg.logger()
	if cfg.Tracer != nil {
		ctx = cfg.Tracer.WithContext(ctx)
	}

	runtimeConfig := wazero.NewRuntimeConfigInterpreter()
	if cfg.Compiler {
		runtimeConfig = wazero.NewRuntimeConfigCompiler()
	}
	r := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, wasm)
	if err != nil {
		return nil, hostabi.NewFault(hostabi.MalformedModule, err).WithStage(hostabi.StageLoaded)
	}
	if err := hostabi.CheckImports(compiled); err != nil {
		return nil, faultAt(err, hostabi.StageLoaded)
	}
	logger.Debug("Module loaded", "size", len(wasm), "imports", len(compiled.ImportedFunctions()))

	state := hostabi.NewHostState(input, logger)
	if _, err := hostabi.Instantiate(ctx, r, state); err != nil {
		return nil, hostabi.NewFault(hostabi.InterpreterTrap, err).WithStage(hostabi.StageLoaded)
	}

	// no _start convention: only the module's own start section runs
	moduleConfig := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := r.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		if fault, ok := hostabi.AsFault(err); ok {
			return nil, fault.WithStage(hostabi.StageLoaded)
		}
		return nil, hostabi.NewFault(hostabi.StartTrap, err).WithStage(hostabi.StageLoaded)
	}
	logger.Debug("Module instantiated", "input", len(input))

	main, err := resolveMain(mod)
	if err != nil {
		return nil, faultAt(err, hostabi.StageInstantiated)
	}

	if _, err := main.Call(ctx); err != nil {
		return nil, classifyMainError(ctx, err).WithStage(hostabi.StageRunningMain)
	}

	logger.Debug("Main completed", "output", len(state.Output()))
	return &Result{
		Output: state.Output(),
		Stage:  hostabi.StageCompleted,
	}, nil
}

func resolveMain(mod api.Module) (api.Function, error) {
	main := mod.ExportedFunction(hostabi.MainExport)
	if main == nil {
		return nil, hostabi.NewFaultf(hostabi.MainMissingOrWrongSignature, "no exported function %q", hostabi.MainExport)
	}
	def := main.Definition()
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
		return nil, hostabi.NewFaultf(hostabi.MainMissingOrWrongSignature,
			"%q has %d params and %d results, want none", hostabi.MainExport, len(def.ParamTypes()), len(def.ResultTypes()))
	}
	return main, nil
}

func classifyMainError(ctx context.Context, err error) *hostabi.Fault {
	if fault, ok := hostabi.AsFault(err); ok {
		return fault
	}
	var exitErr *sys.ExitError
	var runtimeErr runtime.Error
	switch {
	case ctx.Err() != nil, errors.As(err, &exitErr), errors.As(err, &runtimeErr):
		return hostabi.NewFault(hostabi.InterpreterTrap, err)
	default:
		return hostabi.NewFault(hostabi.MainTrap, err)
	}
}

func faultAt(err error, stage hostabi.Stage) error {
	if fault, ok := hostabi.AsFault(err); ok {
		return fault.WithStage(stage)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
