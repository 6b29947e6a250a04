package tracer

import (
	"context"
	"sort"

	"wasm-zkvm-bench/hostabi"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
)

// =============================================================================
// CALL TRACER
// =============================================================================

// CallTracer counts function entries during a guest run. Install it with
// WithContext before instantiating modules.
type CallTracer struct {
	functions    map[string]uint64
	hostCalls    map[string]uint64
	bytesRead    uint64
	bytesWritten uint64
	depth        int
	maxDepth     int
}

func NewCallTracer() *CallTracer {
	return &CallTracer{
		functions: make(map[string]uint64),
		hostCalls: make(map[string]uint64),
	}
}

// WithContext returns ctx carrying the tracer as wazero's listener factory.
func (t *CallTracer) WithContext(ctx context.Context) context.Context {
	return experimental.WithFunctionListenerFactory(ctx, t)
}

func (t *CallTracer) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	return &callListener{
		tracer: t,
		name:   def.DebugName(),
		host:   def.ModuleName() == hostabi.ModuleName,
	}
}

type callListener struct {
	tracer *CallTracer
	name   string
	host   bool
}

func (l *callListener) Before(ctx context.Context, mod api.Module, def api.FunctionDefinition, params []uint64, stack experimental.StackIterator) {
	t := l.tracer
	t.functions[l.name]++
	t.depth++
	if t.depth > t.maxDepth {
		t.maxDepth = t.depth
	}
	if !l.host {
		return
	}
	t.hostCalls[def.Name()]++
	switch def.Name() {
	case hostabi.FuncRead:
		if len(params) == 3 {
			t.bytesRead += uint64(api.DecodeU32(params[2]))
		}
	case hostabi.FuncWrite:
		if len(params) == 2 {
			t.bytesWritten += uint64(api.DecodeU32(params[1]))
		}
	}
}

func (l *callListener) After(ctx context.Context, mod api.Module, def api.FunctionDefinition, results []uint64) {
	l.tracer.depth--
}

func (l *callListener) Abort(ctx context.Context, mod api.Module, def api.FunctionDefinition, err error) {
	l.tracer.depth--
}

// =============================================================================
// REPORT
// =============================================================================

type CallReport struct {
	Functions    map[string]uint64
	HostCalls    map[string]uint64
	BytesRead    uint64
	BytesWritten uint64
	MaxDepth     int
}

func (t *CallTracer) Report() CallReport {
	report := CallReport{
		Functions:    make(map[string]uint64, len(t.functions)),
		HostCalls:    make(map[string]uint64, len(t.hostCalls)),
		BytesRead:    t.bytesRead,
		BytesWritten: t.bytesWritten,
		MaxDepth:     t.maxDepth,
	}
	for name, count := range t.functions {
		report.Functions[name] = count
	}
	for name, count := range t.hostCalls {
		report.HostCalls[name] = count
	}
	return report
}

// TotalCalls is the number of function entries, host functions included.
func (r CallReport) TotalCalls() uint64 {
	var total uint64
	for _, count := range r.Functions {
		total += count
	}
	return total
}

// Hottest returns up to n function names ordered by call count.
func (r CallReport) Hottest(n int) []string {
	names := make([]string, 0, len(r.Functions))
	for name := range r.Functions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.Functions[names[i]] != r.Functions[names[j]] {
			return r.Functions[names[i]] > r.Functions[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
