package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"wasm-zkvm-bench/guest"
	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/prover"
	"wasm-zkvm-bench/tracer"

	"github.com/alexflint/go-arg"
	"github.com/ethereum/go-ethereum/log"
)

var args struct {
	Input     string `arg:"-i,--input" default:"-" help:"Stdin tape file, - reads the process stdin"`
	Output    string `arg:"-o,--output" default:"-" help:"File receiving the committed output, - writes to stdout"`
	Report    string `arg:"-r,--report" help:"Write the call report as JSON to this file"`
	Verbosity int    `arg:"-v,--verbosity,env:WASM_GUEST_VERBOSITY" default:"3" help:"Log level (0=crit, 5=trace)"`
	Compiler  bool   `arg:"--compiler,env:WASM_GUEST_COMPILER" help:"Use the wazero compiler instead of the interpreter"`
}

func main() {
	arg.MustParse(&args)
	os.Exit(run())
}

func run() int {
	logOut := io.Writer(os.Stdout)
	if args.Output == "-" {
		logOut = os.Stderr
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(logOut, log.FromLegacyLevel(args.Verbosity), false))
	log.SetDefault(logger)

	tape, closeTape, err := openTape(args.Input, args.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening tape: %v\n", err)
		return 1
	}
	defer closeTape()

	callTracer := tracer.NewCallTracer()
	err = guest.Run(context.Background(), tape, guest.Config{
		Compiler: args.Compiler,
		Logger:   logger,
		Tracer:   callTracer,
	})

	if args.Report != "" {
		if reportErr := prover.WriteReport(args.Report, callTracer.Report()); reportErr != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", reportErr)
		}
	}
	if err != nil {
		if !errors.Is(err, hostabi.ErrHostedExit) {
			logger.Error("Guest failed", "err", err)
		}
		return hostabi.ExitStatus(err)
	}
	return 0
}
