package prover

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/internal/wasmtest"
	"wasm-zkvm-bench/zkio"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func greetingStdin(t *testing.T) *zkio.Stdin {
	stdin := zkio.NewStdin()
	stdin.WriteVec(wasmtest.Compile(t, wasmtest.Greeting))
	stdin.WriteVec(make([]byte, 380))
	return stdin
}

func TestClientExecuteInProcess(t *testing.T) {
	client := NewClient()
	values, report, err := client.Execute(context.Background(), greetingStdin(t))
	require.NoError(t, err)

	assert.Equal(t, "Hello, World", string(values.Bytes()))
	assert.Equal(t, crypto.Keccak256Hash([]byte("Hello, World")), values.Hash())
	assert.Equal(t, "in-process", report.Mode)
	assert.Equal(t, uint64(1), report.Calls.HostCalls[hostabi.FuncWrite])
	assert.Equal(t, uint64(2), report.TotalCalls())
}

func TestClientExecuteFault(t *testing.T) {
	stdin := zkio.NewStdin()
	stdin.WriteVec(wasmtest.Compile(t, wasmtest.Exit(7)))
	stdin.WriteVec(nil)

	values, report, err := NewClient().Execute(context.Background(), stdin)
	assert.Nil(t, values)
	assert.Nil(t, report)

	var executorErr *ExecutorError
	require.ErrorAs(t, err, &executorErr)
	assert.Equal(t, "guest execution failed", executorErr.Message)

	fault, ok := hostabi.AsFault(err)
	require.True(t, ok)
	assert.Equal(t, int32(7), fault.Code)
}

func TestClientExecuteBinary(t *testing.T) {
	binary := os.Getenv("WASM_GUEST_BIN")
	if binary == "" {
		t.Skip("WASM_GUEST_BIN not set")
	}

	client := NewClient(WithGuestBinary(binary))
	values, report, err := client.Execute(context.Background(), greetingStdin(t))
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", string(values.Bytes()))
	assert.Equal(t, "subprocess", report.Mode)
	assert.Equal(t, uint64(1), report.Calls.HostCalls[hostabi.FuncWrite])

	stdin := zkio.NewStdin()
	stdin.WriteVec(wasmtest.Compile(t, wasmtest.Panic))
	stdin.WriteVec(nil)
	_, _, err = client.Execute(context.Background(), stdin)
	assert.ErrorIs(t, err, hostabi.ErrHostedExit)
}

func TestCliExecute(t *testing.T) {
	workSpace := t.TempDir()
	cli := NewCli(workSpace)

	require.NoError(t, cli.writeFile("message.txt", []byte("hello")))
	output, err := cli.Execute(context.Background(), "cat", "message.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", output)

	content, err := cli.readFile("message.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), content)

	_, err = os.Stat(filepath.Join(workSpace, "message.txt"))
	assert.NoError(t, err)
}

func TestCliExecuteFailure(t *testing.T) {
	cli := NewCli(t.TempDir())

	_, err := cli.Execute(context.Background())
	assert.EqualError(t, err, "no command provided")

	output, err := cli.Execute(context.Background(), "sh", "-c", "echo broken; exit 20")
	require.Error(t, err)
	assert.Equal(t, "broken\n", output)

	failure := guestFailure(err, output)
	assert.ErrorIs(t, failure, hostabi.ErrHostedExit)
}
