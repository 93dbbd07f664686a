package exe

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/marinoandrea/brane/ast"
)

// A Status is the machine's externally visible state.
type Status string

const (
	StatusReady           Status = "ready"
	StatusRunning         Status = "running"
	StatusSuspendedOnCall Status = "suspended-on-call"
	StatusCompleted       Status = "completed"
	StatusErrored         Status = "errored"
)

// A VM executes resolved workflows. It holds the task runner, the output
// stream for print, and the toplevel variable register that persists
// across snippets of an interactive session.
//
// A VM runs one workflow at a time; parallel branches within that
// workflow run on their own goroutines.
type VM struct {
	runner TaskRunner
	stdout io.Writer

	mu     sync.Mutex
	status Status

	reg *VariableRegister // session register, used by ExecSnippet
}

// An Option configures a VM.
type Option func(*VM)

// WithStdout redirects the output of print and println.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

// New returns a VM delegating external task calls to runner.
func New(runner TaskRunner, opts ...Option) *VM {
	vm := &VM{
		runner: runner,
		stdout: os.Stdout,
		status: StatusReady,
		reg:    NewVariableRegister(),
	}
	for _, o := range opts {
		o(vm)
	}
	return vm
}

// Status returns the machine's current state.
func (vm *VM) Status() Status {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.status
}

func (vm *VM) setStatus(s Status) {
	vm.mu.Lock()
	vm.status = s
	vm.mu.Unlock()
}

func (vm *VM) printf(format string, args ...any) {
	fmt.Fprintf(vm.stdout, format, args...)
}

// Exec runs a workflow from a clean slate and returns its final value:
// the value of a toplevel return statement, or Void when the workflow
// runs to a stop.
func (vm *VM) Exec(ctx context.Context, w *ast.Workflow) (Value, error) {
	return vm.exec(ctx, w, NewVariableRegister())
}

// ExecSnippet runs a workflow against the session register, so variables
// declared by earlier snippets stay visible and assignable.
func (vm *VM) ExecSnippet(ctx context.Context, w *ast.Workflow) (Value, error) {
	return vm.exec(ctx, w, vm.reg)
}

func (vm *VM) exec(ctx context.Context, w *ast.Workflow, reg *VariableRegister) (Value, error) {
	if len(w.Graph) == 0 {
		return Void(), nil
	}
	vm.setStatus(StatusRunning)
	t := &thread{
		vm:     vm,
		w:      w,
		stack:  &Stack{},
		frames: NewFrameStack(reg),
		pc:     pc{fn: ast.MainFunc},
		base:   1,
	}
	v, err := t.run(ctx)
	if err != nil {
		vm.setStatus(StatusErrored)
		return Value{}, err
	}
	vm.setStatus(StatusCompleted)
	return v, nil
}
