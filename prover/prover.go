package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"wasm-zkvm-bench/guest"
	"wasm-zkvm-bench/hostabi"
	"wasm-zkvm-bench/tracer"
	"wasm-zkvm-bench/zkio"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

const (
	stdinFile  = "stdin.bin"
	outputFile = "public.bin"
	reportFile = "report.json"
)

type ExecutorError struct {
	Message    string
	Underlying error
}

func NewExecutorError(message string, underlying error) *ExecutorError {
	return &ExecutorError{
		Message:    message,
		Underlying: underlying,
	}
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("executor error: %s: %v", e.Message, e.Underlying)
}

func (e *ExecutorError) Unwrap() error {
	return e.Underlying
}

type Cli struct {
	workSpace string
}

func NewCli(workSpace string) Cli {
	return Cli{
		workSpace: workSpace,
	}
}

func (cli *Cli) Execute(ctx context.Context, arg ...string) (string, error) {
	if len(arg) == 0 {
		return "", fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, arg[0], arg[1:]...)
	cmd.Dir = cli.workSpace

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	return output.String(), err
}

func (cli *Cli) readFile(name string) ([]byte, error) {
	return os.ReadFile(path.Join(cli.workSpace, name))
}

func (cli *Cli) writeFile(name string, content []byte) error {
	return os.WriteFile(path.Join(cli.workSpace, name), content, 0644)
}

// =============================================================================
// EXECUTION RESULTS
// =============================================================================

// PublicValues is the byte string a guest run committed.
type PublicValues struct {
	buffer []byte
}

func NewPublicValues(buffer []byte) *PublicValues {
	return &PublicValues{buffer: buffer}
}

func (p *PublicValues) Bytes() []byte {
	return p.buffer
}

func (p *PublicValues) Hash() common.Hash {
	return crypto.Keccak256Hash(p.buffer)
}

type ExecutionReport struct {
	Mode     string            `json:"mode"`
	Calls    tracer.CallReport `json:"calls"`
	Duration time.Duration     `json:"duration"`
	Stdout   string            `json:"-"`
}

func (r *ExecutionReport) TotalCalls() uint64 {
	return r.Calls.TotalCalls()
}

// WriteReport stores a call report where the subprocess client expects it.
func WriteReport(path string, report tracer.CallReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// =============================================================================
// CLIENT
// =============================================================================

// Client executes the guest program over a prepared stdin, either in this
// process or by running the guest binary.
type Client struct {
	guestBinary string
	config      guest.Config
	logger      log.Logger
}

type Option func(*Client)

// WithGuestBinary runs executions through the wasm-guest binary at path.
func WithGuestBinary(path string) Option {
	return func(c *Client) {
		c.guestBinary = path
	}
}

func WithLogger(logger log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
		c.config.Logger = logger
	}
}

func WithCompiler() Option {
	return func(c *Client) {
		c.config.Compiler = true
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{logger: log.Root()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Execute(ctx context.Context, stdin *zkio.Stdin) (*PublicValues, *ExecutionReport, error) {
	if c.guestBinary != "" {
		return c.executeBinary(ctx, stdin)
	}
	return c.executeInProcess(ctx, stdin)
}

func (c *Client) executeInProcess(ctx context.Context, stdin *zkio.Stdin) (*PublicValues, *ExecutionReport, error) {
	callTracer := tracer.NewCallTracer()
	cfg := c.config
	cfg.Tracer = callTracer

	var output bytes.Buffer
	start := time.Now()
	if err := guest.Run(ctx, stdin.Tape(&output), cfg); err != nil {
		return nil, nil, NewExecutorError("guest execution failed", err)
	}

	report := &ExecutionReport{
		Mode:     "in-process",
		Calls:    callTracer.Report(),
		Duration: time.Since(start),
	}
	return NewPublicValues(output.Bytes()), report, nil
}

func (c *Client) executeBinary(ctx context.Context, stdin *zkio.Stdin) (*PublicValues, *ExecutionReport, error) {
	binary, err := filepath.Abs(c.guestBinary)
	if err != nil {
		return nil, nil, NewExecutorError("failed to resolve guest binary", err)
	}

	workSpace, err := os.MkdirTemp("", "wasm-guest-*")
	if err != nil {
		return nil, nil, NewExecutorError("failed to setup workspace", err)
	}
	defer os.RemoveAll(workSpace)

	cli := NewCli(workSpace)
	if err := cli.writeFile(stdinFile, stdin.Bytes()); err != nil {
		return nil, nil, NewExecutorError("failed to write stdin", err)
	}

	start := time.Now()
	stdout, err := cli.Execute(ctx, binary, "--input", stdinFile, "--output", outputFile, "--report", reportFile)
	duration := time.Since(start)
	if err != nil {
		c.logger.Debug("Guest binary failed", "output", stdout)
		return nil, nil, NewExecutorError("guest execution failed", guestFailure(err, stdout))
	}

	output, err := cli.readFile(outputFile)
	if err != nil {
		return nil, nil, NewExecutorError("failed to read public values", err)
	}

	report := &ExecutionReport{
		Mode:     "subprocess",
		Duration: duration,
		Stdout:   stdout,
	}
	if data, err := cli.readFile(reportFile); err == nil {
		if err := json.Unmarshal(data, &report.Calls); err != nil {
			return nil, nil, NewExecutorError("failed to parse report", err)
		}
	}
	return NewPublicValues(output), report, nil
}

// guestFailure recovers the fault kind from the guest's exit status.
func guestFailure(err error, stdout string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if kind, ok := hostabi.KindFromExitStatus(exitErr.ExitCode()); ok {
			return hostabi.NewFault(kind, fmt.Errorf("%w: %s", err, stdout))
		}
	}
	return fmt.Errorf("%w: %s", err, stdout)
}
