package zkio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single vector on the input tape.
const MaxFrameSize = 1 << 30

const frameHeaderSize = 8

var (
	ErrTapeExhausted    = errors.New("zkio: input tape exhausted")
	ErrShortFrame       = errors.New("zkio: short frame")
	ErrFrameTooLarge    = errors.New("zkio: frame exceeds maximum size")
	ErrAlreadyCommitted = errors.New("zkio: output already committed")
)

// Tape is the guest's view of the zkVM I/O channel: length-prefixed vectors
// in, a single committed byte slice out.
type Tape interface {
	ReadVec() ([]byte, error)
	CommitSlice(data []byte) error
}

// StreamTape reads frames (u64 little-endian length, then payload) from an
// io.Reader and commits raw bytes to an io.Writer.
type StreamTape struct {
	in        io.Reader
	out       io.Writer
	committed bool
}

func NewStreamTape(in io.Reader, out io.Writer) *StreamTape {
	return &StreamTape{
		in:  in,
		out: out,
	}
}

func (t *StreamTape) ReadVec() ([]byte, error) {
	return readFrame(t.in)
}

func (t *StreamTape) CommitSlice(data []byte) error {
	if t.committed {
		return ErrAlreadyCommitted
	}
	t.committed = true
	if _, err := t.out.Write(data); err != nil {
		return fmt.Errorf("zkio: commit %d bytes: %w", len(data), err)
	}
	return nil
}

func (t *StreamTape) Committed() bool {
	return t.committed
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	n, err := io.ReadFull(r, header[:])
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return nil, ErrTapeExhausted
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: header has %d of %d bytes", ErrShortFrame, n, frameHeaderSize)
	case err != nil:
		return nil, err
	}

	length := binary.LittleEndian.Uint64(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	// grow with the bytes actually present, not the declared length
	data, err := io.ReadAll(io.LimitReader(r, int64(length)))
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < length {
		return nil, fmt.Errorf("%w: payload has %d of %d bytes", ErrShortFrame, len(data), length)
	}
	return data, nil
}

func appendFrame(dst, data []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(data)))
	return append(dst, data...)
}
