//go:build !ziren

package main

import (
	"io"
	"os"

	"wasm-zkvm-bench/zkio"
)

// openTape backs the tape with files, "-" selecting the process stdio. The
// output file only appears once the guest commits.
func openTape(input, output string) (zkio.Tape, func(), error) {
	var in io.Reader = os.Stdin
	var out io.Writer = os.Stdout
	var inFile *os.File
	var outFile *commitFile

	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return nil, nil, err
		}
		inFile = f
		in = f
	}
	if output != "-" {
		outFile = &commitFile{path: output}
		out = outFile
	}

	closeAll := func() {
		if inFile != nil {
			inFile.Close()
		}
		if outFile != nil {
			outFile.Close()
		}
	}
	return zkio.NewStreamTape(in, out), closeAll, nil
}

// commitFile creates its file on the first write.
type commitFile struct {
	path string
	file *os.File
}

func (c *commitFile) Write(p []byte) (int, error) {
	if c.file == nil {
		f, err := os.Create(c.path)
		if err != nil {
			return 0, err
		}
		c.file = f
	}
	return c.file.Write(p)
}

func (c *commitFile) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}
