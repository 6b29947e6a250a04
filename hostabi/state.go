package hostabi

import (
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"
)

const (
	ModuleName = "fluentbase_v1preview"

	FuncInputSize = "_input_size"
	FuncRead      = "_read"
	FuncWrite     = "_write"
	FuncExit      = "_exit"

	MemoryExport = "memory"
	MainExport   = "main"

	// ExitCodePanic marks an _exit whose output buffer holds a panic message.
	ExitCodePanic int32 = -71
)

// Memory is the hosted module's linear memory. wazero's api.Memory satisfies
// it directly.
type Memory interface {
	Size() uint32
	Read(offset, byteCount uint32) ([]byte, bool)
	Write(offset uint32, v []byte) bool
}

// HostState is the per-run payload behind the four host functions. The input
// is fixed at construction, the output only grows.
type HostState struct {
	input  []byte
	output []byte
	logger log.Logger
}

func NewHostState(input []byte, logger log.Logger) *HostState {
	if logger == nil {
		logger = log.Root()
	}
	return &HostState{
		input:  input,
		logger: logger,
	}
}

func (s *HostState) Input() []byte {
	return s.input
}

func (s *HostState) Output() []byte {
	return s.output
}

func (s *HostState) InputSize() uint32 {
	return uint32(len(s.input))
}

// Read copies input[offset:offset+length] into memory at target.
func (s *HostState) Read(mem Memory, target, offset, length uint32) error {
	if length == 0 {
		return nil
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(len(s.input)) {
		return NewFaultf(OutOfBoundsRead, "input range [%d, %d) exceeds input size %d", offset, end, len(s.input))
	}
	if uint64(target)+uint64(length) > uint64(mem.Size()) {
		return NewFaultf(OutOfBoundsRead, "memory range [%d, %d) exceeds memory size %d", target, uint64(target)+uint64(length), mem.Size())
	}
	if !mem.Write(target, s.input[offset:end]) {
		return NewFaultf(OutOfBoundsRead, "Memory.Write(%d, %d) out of range", target, length)
	}
	return nil
}

// Write appends memory[offset:offset+length] to the output buffer.
func (s *HostState) Write(mem Memory, offset, length uint32) error {
	if length == 0 {
		return nil
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(mem.Size()) {
		return NewFaultf(OutOfBoundsWrite, "memory range [%d, %d) exceeds memory size %d", offset, end, mem.Size())
	}
	data, ok := mem.Read(offset, length)
	if !ok {
		return NewFaultf(OutOfBoundsWrite, "Memory.Read(%d, %d) out of range", offset, length)
	}
	s.output = append(s.output, data...)
	s.logger.Debug("output", "data", printable(data))
	return nil
}

// Exit always ends the run. A panic exit reports the output buffer first.
func (s *HostState) Exit(code int32) error {
	if code == ExitCodePanic {
		s.logger.Warn("panic message: " + printable(s.output))
	}
	s.logger.Debug("exit", "code", code)
	return NewExitFault(code)
}

func printable(data []byte) string {
	if !utf8.Valid(data) {
		return ""
	}
	return string(data)
}
