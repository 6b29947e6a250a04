package evm

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
)

func TestFormatRevertOutput(t *testing.T) {
	tests := []struct {
		name     string
		output   []byte
		expected string
	}{
		{
			name: "error string",
			output: common.FromHex("08c379a0" +
				"0000000000000000000000000000000000000000000000000000000000000020" +
				"0000000000000000000000000000000000000000000000000000000000000004" +
				"6e6f706500000000000000000000000000000000000000000000000000000000"),
			expected: "0x6e6f706500000000000000000000000000000000000000000000000000000000 (nope)",
		},
		{
			name:     "plain text",
			output:   []byte("oops"),
			expected: "0x6f6f7073 (oops)",
		},
		{
			name:     "binary",
			output:   []byte{0xff, 0xfe},
			expected: "0xfffe (can't decode utf-8)",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatRevertOutput(tc.output))
		})
	}
}

func TestCatchPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewLogger(log.NewTerminalHandler(&buf, false))

	CatchPanic(logger, &ExecutionResult{ExitCode: 1, Output: []byte("ignored")})
	assert.Empty(t, buf.String())

	CatchPanic(logger, &ExecutionResult{ExitCode: -71, Output: []byte("index out of bounds")})
	assert.Contains(t, buf.String(), "panic with err: index out of bounds")
}
