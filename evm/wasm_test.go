package evm

import (
	"encoding/binary"
	"testing"

	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/internal/wasmtest"

	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployWasmContract(t *testing.T) {
	ctx := NewTestingContext()
	wasm := wasmtest.Compile(t, wasmtest.Greeting)

	address := deploy(t, ctx, wasm)
	assert.Equal(t, crypto.CreateAddress(deployer, 0), address)
	assert.Equal(t, wasm, ctx.State.GetCode(address))
	assert.Equal(t, uint64(1), ctx.GetNonce(deployer))
	assert.Equal(t, uint64(1), ctx.GetNonce(address))
}

func TestDeployInvalidWasm(t *testing.T) {
	ctx, logs := newLoggedContext(t)

	_, err := ctx.DeployEvmTx(deployer, []byte("\x00asm\x01\x00\x00\x00garbage"))
	assert.ErrorIs(t, err, ErrDeploymentFailed)
	assert.Contains(t, logs.String(), "Deployment failed")
}

func TestCallWasmContract(t *testing.T) {
	tests := []struct {
		name     string
		wat      string
		input    []byte
		status   Status
		exitCode int32
		output   string
	}{
		{name: "greeting", wat: wasmtest.Greeting, status: StatusSuccess, output: "Hello, World"},
		{name: "echo calldata", wat: wasmtest.Echo(SharedContextSize), input: []byte("calldata"), status: StatusSuccess, output: "calldata"},
		{name: "exit zero", wat: wasmtest.Exit(0), status: StatusSuccess, output: "partial"},
		{name: "exit nonzero", wat: wasmtest.Exit(3), status: StatusRevert, exitCode: 3, output: "partial"},
		{name: "trap", wat: wasmtest.MainTrap, status: StatusHalt, output: "before"},
		{name: "read past input", wat: wasmtest.Read(0, 1000, 8), status: StatusHalt},
		{name: "missing main", wat: wasmtest.MissingMain, status: StatusHalt},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := NewTestingContext()
			address := deploy(t, ctx, wasmtest.Compile(t, tc.wat))

			result, err := ctx.CallEvmTx(caller, address, tc.input, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.status, result.Status, result.String())
			assert.Equal(t, tc.exitCode, result.ExitCode)
			assert.Equal(t, tc.output, string(result.Output))
			assert.Greater(t, result.GasUsed, params.TxGas)
		})
	}
}

func TestCallWasmPanic(t *testing.T) {
	ctx, logs := newLoggedContext(t)
	address := deploy(t, ctx, wasmtest.Compile(t, wasmtest.Panic))

	result, err := ctx.CallEvmTx(caller, address, nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRevert, result.Status)
	assert.Equal(t, hostabi.ExitCodePanic, result.ExitCode)
	assert.Contains(t, logs.String(), "panic with err: it is not ok")
}

func TestCallWasmOutOfGas(t *testing.T) {
	ctx := NewTestingContext()
	address := deploy(t, ctx, wasmtest.Compile(t, wasmtest.Spin))

	result, err := ctx.CallEvmTx(caller, address, nil, 50_000, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusHalt, result.Status)
	assert.Equal(t, ErrOutOfFuel.Error(), result.Reason)
	assert.Equal(t, uint64(50_000), result.GasUsed)
}

func TestCallWasmSharedContext(t *testing.T) {
	ctx := NewTestingContext()
	address := deploy(t, ctx, wasmtest.Compile(t, wasmtest.Echo(0)))

	value := uint256.NewInt(9)
	result, err := ctx.CallEvmTx(caller, address, []byte("xyz"), 0, value)
	require.NoError(t, err)
	require.True(t, result.IsSuccess(), result.String())
	require.Len(t, result.Output, SharedContextSize+3)

	header := result.Output[:SharedContextSize]
	assert.Equal(t, ctx.ChainConfig.ChainID.Uint64(), binary.BigEndian.Uint64(header[0:8]))
	assert.Equal(t, ctx.Coinbase.Bytes(), header[8:28])
	assert.Equal(t, caller.Bytes(), header[228:248])
	assert.Equal(t, address.Bytes(), header[280:300])
	assert.Equal(t, caller.Bytes(), header[320:340])
	assert.Equal(t, "xyz", string(result.Output[SharedContextSize:]))

	assert.Equal(t, value, ctx.GetBalance(address))
}

func TestCallWasmRevertRestoresValue(t *testing.T) {
	ctx := NewTestingContext()
	address := deploy(t, ctx, wasmtest.Compile(t, wasmtest.Exit(1)))

	result, err := ctx.CallEvmTx(caller, address, nil, 0, uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, StatusRevert, result.Status)
	assert.True(t, ctx.GetBalance(address).IsZero())
}

func TestCallRejectsInvalidTx(t *testing.T) {
	ctx := NewTestingContext()
	address := deploy(t, ctx, wasmtest.Compile(t, wasmtest.Greeting))

	_, err := ctx.CallEvmTxSimple(caller, address, nil, 0, nil)
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = ctx.CallEvmTx(caller, address, nil, 1000, nil)
	assert.ErrorIs(t, err, core.ErrIntrinsicGas)
}

func TestWasmInterpreterCompileCache(t *testing.T) {
	interpreter := NewWasmInterpreter(nil)
	wasm := wasmtest.Compile(t, wasmtest.Greeting)

	first, err := interpreter.Compile(wasm)
	require.NoError(t, err)
	second, err := interpreter.Compile(wasm)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestIsWasm(t *testing.T) {
	assert.True(t, IsWasm([]byte("\x00asm\x01\x00\x00\x00")))
	assert.False(t, IsWasm(answerInitCode))
	assert.False(t, IsWasm(nil))
}

func TestWasmInterpreterFuelAccounting(t *testing.T) {
	interpreter := NewWasmInterpreter(nil)

	outcome := interpreter.Run(wasmtest.Compile(t, wasmtest.Greeting), nil, 1_000_000)
	require.NoError(t, outcome.Err)
	assert.Equal(t, "Hello, World", string(outcome.Output))
	assert.Greater(t, outcome.GasUsed, uint64(0))
	assert.Less(t, outcome.GasUsed, uint64(1_000_000))

	outcome = interpreter.Run(wasmtest.Compile(t, wasmtest.Spin), nil, 10_000)
	assert.ErrorIs(t, outcome.Err, ErrOutOfFuel)
	assert.Equal(t, uint64(10_000), outcome.GasUsed)
}
