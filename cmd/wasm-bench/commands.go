package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"wasm-zkvm-bench/bench"
	"wasm-zkvm-bench/evm"
	"wasm-zkvm-bench/prover"

	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/cobra"
)

var (
	verbosity   int
	guestBinary string
)

func setupLogger() log.Logger {
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.FromLegacyLevel(verbosity), false))
	log.SetDefault(logger)
	return logger
}

func newHarness(logger log.Logger, pad int, genesisPath string) (*bench.Harness, error) {
	opts := []prover.Option{prover.WithLogger(logger)}
	if guestBinary != "" {
		opts = append(opts, prover.WithGuestBinary(guestBinary))
	}
	if pad < 0 {
		return nil, fmt.Errorf("%w: %d", bench.ErrNegativePad, pad)
	}
	h := bench.NewHarness(prover.NewClient(opts...), logger)
	h.Pad = pad
	if genesisPath != "" {
		genesis, err := evm.ReadGenesisFile(genesisPath)
		if err != nil {
			return nil, err
		}
		h.Genesis = genesis
	}
	return h, nil
}

func decodeHex(value string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(value, "0x"))
}

// readInput resolves the --input / --input-hex pair; at most one may be set.
func readInput(text, hexValue string) ([]byte, error) {
	if text != "" && hexValue != "" {
		return nil, fmt.Errorf("--input and --input-hex are mutually exclusive")
	}
	if hexValue != "" {
		return decodeHex(hexValue)
	}
	return []byte(text), nil
}

func runCommand() *cobra.Command {
	var (
		wasmFile    string
		input       string
		inputHex    string
		expectHex   string
		genesisFile string
		pad         int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one WASM module on both substrates and compare outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			wasm, err := os.ReadFile(wasmFile)
			if err != nil {
				return err
			}
			data, err := readInput(input, inputHex)
			if err != nil {
				return err
			}
			h, err := newHarness(logger, pad, genesisFile)
			if err != nil {
				return err
			}

			scenario := bench.Scenario{Name: wasmFile, Wasm: wasm, Input: data}
			if expectHex != "" {
				if scenario.Expect, err = decodeHex(expectHex); err != nil {
					return err
				}
			}

			result := h.RunScenario(cmd.Context(), scenario)
			if result.Err != nil {
				fmt.Println("✗ Cross-check failed!")
				return result.Err
			}
			fmt.Println("✓ Outputs match!")
			printOutcome(result.Outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&wasmFile, "wasm", "", "Path to the compiled WASM module")
	cmd.Flags().StringVar(&input, "input", "", "Contract input as text")
	cmd.Flags().StringVar(&inputHex, "input-hex", "", "Contract input as hex (with or without 0x prefix)")
	cmd.Flags().StringVar(&expectHex, "expect-hex", "", "Expected output as hex")
	cmd.Flags().StringVar(&genesisFile, "genesis", "", "Genesis file for the EVM side")
	cmd.Flags().IntVar(&pad, "pad", evm.SharedContextSize, "Zero bytes placed before the guest input")
	cmd.MarkFlagRequired("wasm")
	return cmd
}

func suiteCommand() *cobra.Command {
	var (
		manifestFile string
		metricsFile  string
	)

	cmd := &cobra.Command{
		Use:   "suite",
		Short: "Run every scenario of a YAML manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger()
			manifest, err := bench.LoadManifest(manifestFile)
			if err != nil {
				return err
			}
			scenarios, skipped, err := manifest.Resolve()
			if err != nil {
				return err
			}
			for _, name := range skipped {
				logger.Warn("Skipping scenario, asset missing", "name", name)
			}

			pad := evm.SharedContextSize
			if manifest.Pad != nil {
				pad = *manifest.Pad
			}
			h, err := newHarness(logger, pad, manifest.GenesisPath())
			if err != nil {
				return err
			}
			h.Metrics = bench.NewMetrics()

			results := h.RunSuite(cmd.Context(), scenarios)
			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
					fmt.Printf("✗ %s: %v\n", result.Name, result.Err)
					continue
				}
				fmt.Printf("✓ %s: gas %d, guest calls %d\n", result.Name, result.Outcome.EvmGasUsed, result.Outcome.Report.TotalCalls())
			}
			fmt.Printf("Passed %d/%d, skipped %d\n", len(results)-failed, len(results), len(skipped))

			if metricsFile != "" {
				if err := h.Metrics.WriteTextfile(metricsFile); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d scenarios failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestFile, "manifest", "bench/testdata/scenarios.yaml", "Path to the scenario manifest")
	cmd.Flags().StringVar(&metricsFile, "metrics", "", "Write Prometheus metrics in textfile format to this path")
	return cmd
}

func stdinCommand() *cobra.Command {
	var (
		wasmFile string
		input    string
		inputHex string
		outFile  string
		pad      int
	)

	cmd := &cobra.Command{
		Use:   "stdin",
		Short: "Write the guest stdin tape for a WASM module and input",
		RunE: func(cmd *cobra.Command, args []string) error {
			wasm, err := os.ReadFile(wasmFile)
			if err != nil {
				return err
			}
			data, err := readInput(input, inputHex)
			if err != nil {
				return err
			}

			h := bench.Harness{Pad: pad}
			stdin, err := h.Stdin(wasm, data)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outFile, stdin.Bytes(), 0644); err != nil {
				return err
			}
			fmt.Printf("Wrote %d bytes to %s\n", len(stdin.Bytes()), outFile)
			fmt.Println("You can run the guest by doing the following:")
			fmt.Printf("wasm-guest --input %s --output public.bin\n", outFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&wasmFile, "wasm", "", "Path to the compiled WASM module")
	cmd.Flags().StringVar(&input, "input", "", "Contract input as text")
	cmd.Flags().StringVar(&inputHex, "input-hex", "", "Contract input as hex (with or without 0x prefix)")
	cmd.Flags().StringVar(&outFile, "out", "stdin.bin", "Output path for the tape")
	cmd.Flags().IntVar(&pad, "pad", evm.SharedContextSize, "Zero bytes placed before the guest input")
	cmd.MarkFlagRequired("wasm")
	return cmd
}

func printOutcome(outcome *bench.Outcome) {
	fmt.Printf("Output: 0x%x\n", outcome.Output)
	fmt.Printf("EVM gas used: %d (%s)\n", outcome.EvmGasUsed, outcome.EvmDuration)
	fmt.Printf("Guest: %d calls in %s (%s)\n", outcome.Report.TotalCalls(), outcome.Report.Duration, outcome.Report.Mode)
	for _, name := range outcome.Report.Calls.Hottest(5) {
		fmt.Printf("  %-24s %d\n", name, outcome.Report.Calls.Functions[name])
	}
}
