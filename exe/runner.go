package exe

import (
	"context"

	"github.com/marinoandrea/brane/ast"
)

// A TaskInfo packages one external task call for the runner: what to run,
// where, and with which arguments.
type TaskInfo struct {
	// CallID uniquely identifies this invocation, for tracing and
	// deduplication across retries.
	CallID string

	Package string
	Version string
	Name    string

	// Location is the resolved compute location, or "" when the call is
	// unrestricted and the runner may place it freely.
	Location string

	// Args maps declared argument names to their values.
	Args map[string]Value

	// Input lists the datasets and intermediate results the task consumes,
	// as far as the compiler could see them.
	Input []ast.DataName

	// Result is the identifier under which the task's output is tracked,
	// or "" for tasks that return nothing.
	Result string
}

// A TaskRunner executes external tasks on behalf of the machine. The
// machine suspends at every Node edge until Execute returns; Execute must
// honor ctx cancellation.
type TaskRunner interface {
	Execute(ctx context.Context, info TaskInfo) (Value, error)
	// Commit makes an intermediate result durable under the given name and
	// returns the resulting Data handle.
	Commit(ctx context.Context, name string, result Value) (Value, error)
}

// A DummyRunner is an in-process runner for tests and dry runs. Calls are
// dispatched to ExecuteFn when set; otherwise every task returns Void.
type DummyRunner struct {
	ExecuteFn func(ctx context.Context, info TaskInfo) (Value, error)
	CommitFn  func(ctx context.Context, name string, result Value) (Value, error)
}

func (r *DummyRunner) Execute(ctx context.Context, info TaskInfo) (Value, error) {
	if r.ExecuteFn != nil {
		return r.ExecuteFn(ctx, info)
	}
	return Void(), nil
}

func (r *DummyRunner) Commit(ctx context.Context, name string, result Value) (Value, error) {
	if r.CommitFn != nil {
		return r.CommitFn(ctx, name, result)
	}
	return DataHandle(name), nil
}
