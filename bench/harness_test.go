package bench

import (
	"context"
	"testing"

	"wasm-zkvm-bench/evm"
	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/internal/wasmtest"
	"wasm-zkvm-bench/prover"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHarness() *Harness {
	h := NewHarness(prover.NewClient(), nil)
	h.Metrics = NewMetrics()
	return h
}

func TestHarnessGreeting(t *testing.T) {
	h := newHarness()

	outcome, err := h.Execute(context.Background(), wasmtest.Compile(t, wasmtest.Greeting), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", string(outcome.Output))
	assert.Greater(t, outcome.EvmGasUsed, uint64(21000))
	assert.Equal(t, uint64(1), outcome.Report.Calls.HostCalls[hostabi.FuncWrite])
}

func TestHarnessPaddedInput(t *testing.T) {
	h := newHarness()
	wasm := wasmtest.Compile(t, wasmtest.Echo(evm.SharedContextSize))

	outcome, err := h.Execute(context.Background(), wasm, []byte("Hello, World"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", string(outcome.Output))
}

func TestHarnessStdinLayout(t *testing.T) {
	tests := []struct {
		name string
		pad  int
		err  error
	}{
		{name: "shared context pad", pad: evm.SharedContextSize},
		{name: "no pad", pad: 0},
		{name: "negative pad", pad: -1, err: ErrNegativePad},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			h.Pad = tc.pad

			stdin, err := h.Stdin([]byte("module"), []byte("in"))
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)

			vecs := stdin.Vecs()
			require.Len(t, vecs, 2)
			assert.Equal(t, []byte("module"), vecs[0])
			assert.Len(t, vecs[1], tc.pad+2)
			assert.Equal(t, make([]byte, tc.pad), vecs[1][:tc.pad])
			assert.Equal(t, []byte("in"), vecs[1][tc.pad:])
		})
	}
}

func TestHarnessRejectsNegativePad(t *testing.T) {
	h := newHarness()
	h.Pad = -380

	_, err := h.Execute(context.Background(), wasmtest.Compile(t, wasmtest.Greeting), nil)
	assert.ErrorIs(t, err, ErrNegativePad)
}

func TestHarnessOutputMismatch(t *testing.T) {
	h := newHarness()
	h.Pad = 10

	// the contract sees a 380 byte header, the guest only 10 bytes of pad
	_, err := h.Execute(context.Background(), wasmtest.Compile(t, wasmtest.InputSize), []byte("abc"))
	assert.ErrorIs(t, err, ErrOutputMismatch)
}

func TestHarnessEvmFailure(t *testing.T) {
	h := newHarness()

	_, err := h.Execute(context.Background(), wasmtest.Compile(t, wasmtest.Panic), nil)
	assert.ErrorIs(t, err, ErrEvmExecutionFailed)

	_, err = h.Execute(context.Background(), []byte("\x00asm\x01\x00\x00\x00junk"), nil)
	assert.ErrorIs(t, err, ErrEvmExecutionFailed)
}

func TestHarnessRunSuite(t *testing.T) {
	h := newHarness()
	greeting := wasmtest.Compile(t, wasmtest.Greeting)

	results := h.RunSuite(context.Background(), []Scenario{
		{Name: "greeting", Wasm: greeting, Expect: []byte("Hello, World")},
		{Name: "wrong expectation", Wasm: greeting, Expect: []byte("Goodbye")},
		{Name: "exit", Wasm: wasmtest.Compile(t, wasmtest.Exit(2))},
		{Name: "echo", Wasm: wasmtest.Compile(t, wasmtest.Echo(evm.SharedContextSize)), Input: []byte("x")},
	})

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrUnexpectedOutput)
	assert.ErrorIs(t, results[2].Err, ErrEvmExecutionFailed)
	assert.NoError(t, results[3].Err)

	assert.Equal(t, float64(2), testutil.ToFloat64(h.Metrics.scenarioTotal.WithLabelValues("passed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.Metrics.scenarioTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(h.Metrics.guestCalls.WithLabelValues("greeting")))
}

func TestHarnessRunSuiteCancelled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := h.RunSuite(ctx, []Scenario{{Name: "greeting", Wasm: wasmtest.Compile(t, wasmtest.Greeting)}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}
