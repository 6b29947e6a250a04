package hostabi

import (
	"errors"
	"fmt"
)

type Kind int

const (
	MalformedModule Kind = iota + 1
	MissingImport
	MissingMemoryExport
	StartTrap
	MainMissingOrWrongSignature
	MainTrap
	OutOfBoundsRead
	OutOfBoundsWrite
	InterpreterTrap
	HostedExit
)

func (k Kind) String() string {
	switch k {
	case MalformedModule:
		return "malformed module"
	case MissingImport:
		return "missing import"
	case MissingMemoryExport:
		return "missing memory export"
	case StartTrap:
		return "start trap"
	case MainMissingOrWrongSignature:
		return "main missing or wrong signature"
	case MainTrap:
		return "main trap"
	case OutOfBoundsRead:
		return "out of bounds read"
	case OutOfBoundsWrite:
		return "out of bounds write"
	case InterpreterTrap:
		return "interpreter trap"
	case HostedExit:
		return "hosted exit"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Stage tracks how far a run got before it ended.
type Stage string

const (
	StageLoaded       Stage = "loaded"
	StageInstantiated Stage = "instantiated"
	StageRunningMain  Stage = "running-main"
	StageCompleted    Stage = "completed"
	StageTerminated   Stage = "terminated"
)

// Fault is a fatal run failure. Faults are never recovered locally.
type Fault struct {
	Kind  Kind
	Stage Stage
	Code  int32 // exit code, HostedExit only
	Err   error
}

// Sentinels for errors.Is; matching is by Kind only.
var (
	ErrMalformedModule             = &Fault{Kind: MalformedModule}
	ErrMissingImport               = &Fault{Kind: MissingImport}
	ErrMissingMemoryExport         = &Fault{Kind: MissingMemoryExport}
	ErrStartTrap                   = &Fault{Kind: StartTrap}
	ErrMainMissingOrWrongSignature = &Fault{Kind: MainMissingOrWrongSignature}
	ErrMainTrap                    = &Fault{Kind: MainTrap}
	ErrOutOfBoundsRead             = &Fault{Kind: OutOfBoundsRead}
	ErrOutOfBoundsWrite            = &Fault{Kind: OutOfBoundsWrite}
	ErrInterpreterTrap             = &Fault{Kind: InterpreterTrap}
	ErrHostedExit                  = &Fault{Kind: HostedExit}
)

func NewFault(kind Kind, err error) *Fault {
	return &Fault{Kind: kind, Err: err}
}

func NewFaultf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func NewExitFault(code int32) *Fault {
	return &Fault{Kind: HostedExit, Code: code}
}

func (f *Fault) Error() string {
	msg := f.Kind.String()
	if f.Kind == HostedExit {
		msg = fmt.Sprintf("exit code: %d", f.Code)
	}
	if f.Stage != "" {
		msg = fmt.Sprintf("%s (%s)", msg, f.Stage)
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func (f *Fault) Is(target error) bool {
	t, ok := target.(*Fault)
	return ok && t.Kind == f.Kind
}

// WithStage returns f with its stage set, keeping a stage already recorded.
func (f *Fault) WithStage(stage Stage) *Fault {
	if f.Stage == "" {
		f.Stage = stage
	}
	return f
}

// AsFault extracts the first Fault in err's chain.
func AsFault(err error) (*Fault, bool) {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault, true
	}
	return nil, false
}

const exitStatusBase = 10

// ExitStatus maps a run error to a process exit status: 0 on success, 1 for
// errors outside the fault taxonomy, 10+kind for faults.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	if fault, ok := AsFault(err); ok {
		return exitStatusBase + int(fault.Kind)
	}
	return 1
}

// KindFromExitStatus reverses ExitStatus.
func KindFromExitStatus(status int) (Kind, bool) {
	kind := Kind(status - exitStatusBase)
	if kind < MalformedModule || kind > HostedExit {
		return 0, false
	}
	return kind, true
}
