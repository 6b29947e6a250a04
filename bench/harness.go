package bench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"wasm-zkvm-bench/evm"
	"wasm-zkvm-bench/prover"
	"wasm-zkvm-bench/zkio"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrEvmExecutionFailed = errors.New("bench: evm execution failed")
	ErrOutputMismatch     = errors.New("bench: evm and guest outputs differ")
	ErrUnexpectedOutput   = errors.New("bench: output differs from expectation")
)

// Harness runs one payload on both substrates and cross-checks the output.
type Harness struct {
	// Pad is the number of zero bytes placed in front of the guest input,
	// standing in for the contract's shared context header.
	Pad      int
	Deployer common.Address
	Genesis  *core.Genesis // nil selects evm.DefaultGenesis
	Client   *prover.Client
	Logger   log.Logger
	Metrics  *Metrics
}

func NewHarness(client *prover.Client, logger log.Logger) *Harness {
	if logger == nil {
		logger = log.Root()
	}
	return &Harness{
		Pad:    evm.SharedContextSize,
		Client: client,
		Logger: logger,
	}
}

type Outcome struct {
	Output      []byte
	EvmGasUsed  uint64
	EvmDuration time.Duration
	Report      *prover.ExecutionReport
}

func (h *Harness) Execute(ctx context.Context, wasm, input []byte) (*Outcome, error) {
	stdin, err := h.Stdin(wasm, input)
	if err != nil {
		return nil, err
	}

	evmStart := time.Now()
	result, err := h.executeEvm(wasm, input)
	if err != nil {
		return nil, err
	}
	evmDuration := time.Since(evmStart)
	h.Metrics.observeDuration(substrateEvm, evmDuration)

	values, report, err := h.Client.Execute(ctx, stdin)
	if err != nil {
		return nil, err
	}
	h.Metrics.observeDuration(substrateGuest, report.Duration)
	h.Logger.Info("Guest call counts", "total", report.TotalCalls(), "host", report.Calls.HostCalls)

	if !bytes.Equal(values.Bytes(), result.Output) {
		return nil, fmt.Errorf("%w: evm 0x%x, guest 0x%x", ErrOutputMismatch, result.Output, values.Bytes())
	}

	return &Outcome{
		Output:      result.Output,
		EvmGasUsed:  result.GasUsed,
		EvmDuration: evmDuration,
		Report:      report,
	}, nil
}

// Stdin lays out the guest input tape: the module, then the padded input.
func (h *Harness) Stdin(wasm, input []byte) (*zkio.Stdin, error) {
	if h.Pad < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativePad, h.Pad)
	}
	padded := make([]byte, h.Pad, h.Pad+len(input))
	padded = append(padded, input...)

	stdin := zkio.NewStdin()
	stdin.WriteVec(wasm)
	stdin.WriteVec(padded)
	return stdin, nil
}

func (h *Harness) executeEvm(wasm, input []byte) (*evm.ExecutionResult, error) {
	genesis := h.Genesis
	if genesis == nil {
		genesis = evm.DefaultGenesis()
	}
	evmCtx, err := evm.LoadFromGenesis(genesis, h.Logger)
	if err != nil {
		return nil, err
	}
	address, err := evmCtx.DeployEvmTx(h.Deployer, wasm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvmExecutionFailed, err)
	}
	result, err := evmCtx.CallEvmTx(h.Deployer, address, input, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvmExecutionFailed, err)
	}
	h.Logger.Info("EVM result", "result", result)
	if !result.IsSuccess() {
		h.Logger.Error("EVM execution failed", "output", evm.FormatRevertOutput(result.Output))
		return nil, fmt.Errorf("%w: %s", ErrEvmExecutionFailed, result)
	}
	return result, nil
}

// =============================================================================
// SUITE
// =============================================================================

type ScenarioResult struct {
	Name    string
	Outcome *Outcome
	Err     error
}

func (h *Harness) RunScenario(ctx context.Context, scenario Scenario) ScenarioResult {
	h.Logger.Info("Running scenario", "name", scenario.Name, "wasm", len(scenario.Wasm), "input", len(scenario.Input))
	outcome, err := h.Execute(ctx, scenario.Wasm, scenario.Input)
	if err == nil && scenario.Expect != nil && !bytes.Equal(outcome.Output, scenario.Expect) {
		err = fmt.Errorf("%w: got 0x%x, want 0x%x", ErrUnexpectedOutput, outcome.Output, scenario.Expect)
	}

	if err != nil {
		h.Logger.Error("Scenario failed", "name", scenario.Name, "err", err)
	} else {
		h.Logger.Info("Scenario passed", "name", scenario.Name, "gasUsed", outcome.EvmGasUsed, "calls", outcome.Report.TotalCalls())
	}
	h.Metrics.observeScenario(scenario.Name, outcome, err)
	return ScenarioResult{Name: scenario.Name, Outcome: outcome, Err: err}
}

// RunSuite runs scenarios in order; a failing scenario does not stop the rest.
func (h *Harness) RunSuite(ctx context.Context, scenarios []Scenario) []ScenarioResult {
	results := make([]ScenarioResult, 0, len(scenarios))
	for _, scenario := range scenarios {
		if ctx.Err() != nil {
			results = append(results, ScenarioResult{Name: scenario.Name, Err: ctx.Err()})
			continue
		}
		results = append(results, h.RunScenario(ctx, scenario))
	}
	return results
}
