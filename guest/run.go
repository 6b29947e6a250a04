package guest

import (
	"context"
	"fmt"

	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/zkio"
)

// Run is the guest entry point: read the module and the input from the tape,
// execute main, and commit the output. Nothing is committed on failure.
func Run(ctx context.Context, tape zkio.Tape, cfg Config) error {
	wasm, err := tape.ReadVec()
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	input, err := tape.ReadVec()
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	result, err := Execute(ctx, cfg, wasm, input)
	if err != nil {
		if fault, ok := hostabi.AsFault(err); ok && fault.Kind == hostabi.HostedExit {
			cfg.logger().Error("Guest terminated", "code", fault.Code)
		}
		return err
	}

	if err := tape.CommitSlice(result.Output); err != nil {
		return fmt.Errorf("commit output: %w", err)
	}
	return nil
}
