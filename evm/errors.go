package evm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"wasm-zkvm-bench/hostabi"

	"github.com/ethereum/go-ethereum/log"
)

// errorSelector is the 4-byte selector of Error(string).
var errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

// FormatRevertOutput renders revert data as hex plus its UTF-8 reading,
// skipping the Error(string) selector and ABI head when present.
func FormatRevertOutput(output []byte) string {
	if bytes.HasPrefix(output, errorSelector) && len(output) >= 68 {
		output = output[68:]
	}
	text := "can't decode utf-8"
	if utf8.Valid(output) {
		text = strings.TrimRight(string(output), "\x00")
	}
	return fmt.Sprintf("0x%s (%s)", hex.EncodeToString(output), text)
}

// CatchPanic logs the panic message of a contract that exited with the panic
// code. Other results are ignored.
func CatchPanic(logger log.Logger, result *ExecutionResult) {
	if result.ExitCode != hostabi.ExitCodePanic {
		return
	}
	msg := "can't decode utf-8"
	if utf8.Valid(result.Output) {
		msg = string(result.Output)
	}
	logger.Warn("panic with err: " + msg)
}
