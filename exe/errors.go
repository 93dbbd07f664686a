package exe

import "fmt"

// An ErrCode identifies a class of runtime error.
type ErrCode string

const (
	ErrEmptyStack            ErrCode = "empty-stack"
	ErrDuplicateDeclaration  ErrCode = "duplicate-declaration"
	ErrUndeclaredVariable    ErrCode = "undeclared-variable"
	ErrUninitializedVariable ErrCode = "uninitialized-variable"
	ErrTypeMismatch          ErrCode = "type-mismatch"
	ErrDivideByZero          ErrCode = "divide-by-zero"
	ErrOutOfBounds           ErrCode = "out-of-bounds"
	ErrUnknownField          ErrCode = "unknown-field"
	ErrTask                  ErrCode = "task-failure"
	ErrIllFormed             ErrCode = "ill-formed-workflow"
)

// A RuntimeError is an unrecoverable execution failure. The machine
// transitions to Errored and reports it upward; it never panics for
// expected error paths.
type RuntimeError struct {
	Code ErrCode
	Msg  string
	Err  error // wrapped cause, e.g. a task failure
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func errf(code ErrCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}
