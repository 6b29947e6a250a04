package evm

import (
	"errors"
	"fmt"
	"math/big"

	"wasm-zkvm-bench/hostabi"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

const (
	DefaultCreateGasLimit = 30_000_000
	DefaultCallGasLimit   = 3_000_000
)

type Status int

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusHalt
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusRevert:
		return "Revert"
	default:
		return "Halt"
	}
}

// ExecutionResult is the outcome of one committed transaction. ExitCode is
// only meaningful for WASM contracts that called _exit.
type ExecutionResult struct {
	Status          Status
	Output          []byte
	GasUsed         uint64
	ExitCode        int32
	Reason          string
	ContractAddress common.Address
}

func (r *ExecutionResult) IsSuccess() bool {
	return r.Status == StatusSuccess
}

func (r *ExecutionResult) String() string {
	s := fmt.Sprintf("%s{gas_used: %d, output: 0x%x", r.Status, r.GasUsed, r.Output)
	if r.ExitCode != 0 {
		s += fmt.Sprintf(", exit_code: %d", r.ExitCode)
	}
	if r.Reason != "" {
		s += fmt.Sprintf(", reason: %s", r.Reason)
	}
	return s + "}"
}

// =============================================================================
// TX BUILDER
// =============================================================================

type TxBuilder struct {
	ctx       *TestingContext
	caller    common.Address
	callee    *common.Address
	input     []byte
	value     *uint256.Int
	gasLimit  uint64
	gasPrice  *uint256.Int
	timestamp uint64
}

// CreateTx deploys initCode from deployer. WASM binaries are stored as code
// as-is; anything else runs as EVM init code.
func CreateTx(ctx *TestingContext, deployer common.Address, initCode []byte) *TxBuilder {
	return &TxBuilder{
		ctx:       ctx,
		caller:    deployer,
		input:     initCode,
		value:     new(uint256.Int),
		gasLimit:  DefaultCreateGasLimit,
		gasPrice:  new(uint256.Int),
		timestamp: ctx.Timestamp,
	}
}

func CallTx(ctx *TestingContext, caller, callee common.Address, value *uint256.Int) *TxBuilder {
	if value == nil {
		value = new(uint256.Int)
	}
	return &TxBuilder{
		ctx:       ctx,
		caller:    caller,
		callee:    &callee,
		value:     value,
		gasLimit:  DefaultCallGasLimit,
		gasPrice:  uint256.NewInt(1),
		timestamp: ctx.Timestamp,
	}
}

func (b *TxBuilder) Input(input []byte) *TxBuilder {
	b.input = input
	return b
}

func (b *TxBuilder) Value(value *uint256.Int) *TxBuilder {
	b.value = value
	return b
}

func (b *TxBuilder) GasLimit(gasLimit uint64) *TxBuilder {
	b.gasLimit = gasLimit
	return b
}

func (b *TxBuilder) GasPrice(gasPrice *uint256.Int) *TxBuilder {
	b.gasPrice = gasPrice
	return b
}

func (b *TxBuilder) Timestamp(timestamp uint64) *TxBuilder {
	b.timestamp = timestamp
	return b
}

// Exec validates, executes and commits the transaction. An error means the
// transaction was invalid and left the state untouched.
func (b *TxBuilder) Exec() (*ExecutionResult, error) {
	st := b.ctx.State
	create := b.callee == nil

	intrinsic := intrinsicGas(b.input, create)
	if intrinsic > b.gasLimit {
		return nil, fmt.Errorf("%w: have %d, want %d", core.ErrIntrinsicGas, b.gasLimit, intrinsic)
	}

	gasCost := new(uint256.Int).Mul(uint256.NewInt(b.gasLimit), b.gasPrice)
	cost := new(uint256.Int).Add(gasCost, b.value)
	if balance := st.GetBalance(b.caller); balance.Cmp(cost) < 0 {
		return nil, fmt.Errorf("%w: address %v have %v want %v", core.ErrInsufficientFunds, b.caller, balance, cost)
	}
	st.SubBalance(b.caller, gasCost, tracing.BalanceDecreaseGasBuy)

	gas := b.gasLimit - intrinsic
	var result *ExecutionResult
	switch {
	case create && IsWasm(b.input):
		result = b.createWasm(gas)
	case create:
		result = b.createEvm(gas)
	default:
		st.SetNonce(b.caller, st.GetNonce(b.caller)+1, tracing.NonceChangeEoACall)
		if IsWasm(st.GetCode(*b.callee)) {
			result = b.callWasm(gas)
		} else {
			result = b.callEvm(gas)
		}
	}
	result.GasUsed += intrinsic

	if result.IsSuccess() {
		refund := min(st.GetRefund(), result.GasUsed/params.RefundQuotientEIP3529)
		result.GasUsed -= refund
	}
	leftover := new(uint256.Int).Mul(uint256.NewInt(b.gasLimit-result.GasUsed), b.gasPrice)
	st.AddBalance(b.caller, leftover, tracing.BalanceIncreaseGasReturn)
	fee := new(uint256.Int).Mul(uint256.NewInt(result.GasUsed), b.gasPrice)
	st.AddBalance(b.ctx.Coinbase, fee, tracing.BalanceIncreaseRewardTransactionFee)

	st.Finalise(true)
	return result, nil
}

func (b *TxBuilder) runtimeConfig(gas uint64) *runtime.Config {
	random := common.Hash{}
	return &runtime.Config{
		ChainConfig: b.ctx.ChainConfig,
		Origin:      b.caller,
		Coinbase:    b.ctx.Coinbase,
		BlockNumber: b.ctx.blockNumber(),
		Time:        b.timestamp,
		GasLimit:    gas,
		GasPrice:    b.gasPrice.ToBig(),
		Value:       b.value.ToBig(),
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		Random:      &random,
		State:       b.ctx.State,
	}
}

func (b *TxBuilder) createEvm(gas uint64) *ExecutionResult {
	ret, address, leftover, err := runtime.Create(b.input, b.runtimeConfig(gas))
	result := evmResult(ret, gas-leftover, err)
	if result.IsSuccess() {
		result.ContractAddress = address
	}
	return result
}

func (b *TxBuilder) callEvm(gas uint64) *ExecutionResult {
	ret, leftover, err := runtime.Call(*b.callee, b.input, b.runtimeConfig(gas))
	return evmResult(ret, gas-leftover, err)
}

func evmResult(ret []byte, gasUsed uint64, err error) *ExecutionResult {
	switch {
	case err == nil:
		return &ExecutionResult{Status: StatusSuccess, Output: ret, GasUsed: gasUsed}
	case errors.Is(err, vm.ErrExecutionReverted):
		return &ExecutionResult{Status: StatusRevert, Output: ret, GasUsed: gasUsed, Reason: err.Error()}
	default:
		return &ExecutionResult{Status: StatusHalt, Output: ret, GasUsed: gasUsed, Reason: err.Error()}
	}
}

func (b *TxBuilder) createWasm(gas uint64) *ExecutionResult {
	st := b.ctx.State
	nonce := st.GetNonce(b.caller)
	st.SetNonce(b.caller, nonce+1, tracing.NonceChangeContractCreator)
	address := crypto.CreateAddress(b.caller, nonce)

	if st.GetNonce(address) != 0 || len(st.GetCode(address)) != 0 {
		return &ExecutionResult{Status: StatusHalt, GasUsed: gas, Reason: vm.ErrContractAddressCollision.Error()}
	}
	if _, err := b.ctx.wasm.Compile(b.input); err != nil {
		return &ExecutionResult{Status: StatusHalt, GasUsed: gas, Reason: fmt.Sprintf("invalid wasm module: %v", err)}
	}
	depositGas := uint64(len(b.input)) * params.CreateDataGas
	if depositGas > gas {
		return &ExecutionResult{Status: StatusHalt, GasUsed: gas, Reason: vm.ErrCodeStoreOutOfGas.Error()}
	}

	st.CreateAccount(address)
	st.SetNonce(address, 1, tracing.NonceChangeNewContract)
	st.SetCode(address, b.input)
	st.SubBalance(b.caller, b.value, tracing.BalanceChangeTransfer)
	st.AddBalance(address, b.value, tracing.BalanceChangeTransfer)

	return &ExecutionResult{Status: StatusSuccess, GasUsed: depositGas, ContractAddress: address}
}

func (b *TxBuilder) callWasm(gas uint64) *ExecutionResult {
	st := b.ctx.State
	callee := *b.callee

	snapshot := st.Snapshot()
	st.SubBalance(b.caller, b.value, tracing.BalanceChangeTransfer)
	st.AddBalance(callee, b.value, tracing.BalanceChangeTransfer)

	shared := b.sharedContext(gas)
	outcome := b.ctx.wasm.Run(st.GetCode(callee), shared.Input(b.input), gas)

	result := &ExecutionResult{
		Output:   outcome.Output,
		GasUsed:  outcome.GasUsed,
		ExitCode: outcome.ExitCode,
	}
	switch {
	case outcome.Err != nil:
		result.Status = StatusHalt
		result.GasUsed = gas
		result.Reason = outcome.Err.Error()
	case outcome.Exited && outcome.ExitCode != 0:
		result.Status = StatusRevert
		result.Reason = fmt.Sprintf("exit code: %d", outcome.ExitCode)
		if outcome.ExitCode == hostabi.ExitCodePanic {
			CatchPanic(b.ctx.logger, result)
		}
	default:
		result.Status = StatusSuccess
	}
	if !result.IsSuccess() {
		st.RevertToSnapshot(snapshot)
	}
	return result
}

func (b *TxBuilder) sharedContext(gas uint64) *SharedContext {
	st := b.ctx.State
	return &SharedContext{
		Block: BlockContext{
			ChainID:    b.ctx.ChainConfig.ChainID.Uint64(),
			Coinbase:   b.ctx.Coinbase,
			Timestamp:  b.timestamp,
			Number:     b.ctx.BlockNumber,
			Difficulty: new(uint256.Int),
			GasLimit:   b.ctx.Genesis.GasLimit,
			BaseFee:    new(uint256.Int),
		},
		Tx: TxContext{
			GasLimit:       b.gasLimit,
			Nonce:          st.GetNonce(b.caller) - 1,
			GasPrice:       b.gasPrice,
			GasPriorityFee: new(uint256.Int),
			Origin:         b.caller,
			Value:          b.value,
		},
		Contract: ContractContext{
			Address:         *b.callee,
			BytecodeAddress: *b.callee,
			Caller:          b.caller,
			Value:           b.value,
			GasLimit:        gas,
		},
	}
}

func intrinsicGas(data []byte, create bool) uint64 {
	gas := params.TxGas
	if create {
		gas = params.TxGasContractCreation
	}
	var nonZero uint64
	for _, b := range data {
		if b != 0 {
			nonZero++
		}
	}
	zero := uint64(len(data)) - nonZero
	gas += nonZero*params.TxDataNonZeroGasEIP2028 + zero*params.TxDataZeroGas
	if create {
		gas += (uint64(len(data)) + 31) / 32 * params.InitCodeWordGas
	}
	return gas
}
