package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := &cobra.Command{
		Use:          "wasm-bench",
		Short:        "Cross-check WASM contracts between the EVM and the zkVM guest",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().IntVar(&verbosity, "verbosity", 3, "Log level (0=crit, 5=trace)")
	cmd.PersistentFlags().StringVar(&guestBinary, "guest-bin", "", "Run the guest through this wasm-guest binary instead of in process")

	cmd.AddCommand(runCommand(), suiteCommand(), stdinCommand())

	if err := cmd.Execute(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
