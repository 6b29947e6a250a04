package zkio

import (
	"bytes"
	"errors"
	"io"
)

// Stdin collects the vectors handed to a guest run, in the order the guest
// reads them.
type Stdin struct {
	buffer [][]byte
}

func NewStdin() *Stdin {
	return &Stdin{}
}

// ReadStdin decodes a framed stdin stream until EOF.
func ReadStdin(r io.Reader) (*Stdin, error) {
	stdin := NewStdin()
	for {
		vec, err := readFrame(r)
		if errors.Is(err, ErrTapeExhausted) {
			return stdin, nil
		}
		if err != nil {
			return nil, err
		}
		stdin.buffer = append(stdin.buffer, vec)
	}
}

func (s *Stdin) WriteVec(data []byte) {
	vec := make([]byte, len(data))
	copy(vec, data)
	s.buffer = append(s.buffer, vec)
}

func (s *Stdin) Vecs() [][]byte {
	return s.buffer
}

func (s *Stdin) Bytes() []byte {
	var out []byte
	for _, vec := range s.buffer {
		out = appendFrame(out, vec)
	}
	return out
}

func (s *Stdin) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Bytes())
	return int64(n), err
}

// Tape returns a tape that replays the collected vectors and commits to out.
func (s *Stdin) Tape(out io.Writer) *StreamTape {
	return NewStreamTape(bytes.NewReader(s.Bytes()), out)
}
