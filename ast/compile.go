package ast

import (
	"github.com/google/uuid"

	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/idx"
)

// A CompileState carries compilation context across snippets of one
// interactive session: the symbol table, the toplevel variable scope and
// the bodies of every function compiled so far. Each snippet compiles to
// a workflow whose graph covers just that snippet, but whose table and
// function map cover the whole session, so the executor can keep running
// against accumulated state.
//
// A state must not be shared between goroutines; independent compilations
// should each use their own.
type CompileState struct {
	table   *SymTable
	pidx    *idx.PackageIndex
	didx    *idx.DataIndex
	globals map[string]int
	funcs   map[int]*EdgeBuffer
}

// NewCompileState returns a fresh session state with only the builtins
// registered. Either index may be nil; imports then fail and dataset
// existence goes unchecked, respectively.
func NewCompileState(pidx *idx.PackageIndex, didx *idx.DataIndex) *CompileState {
	return &CompileState{
		table:   NewSymTable(),
		pidx:    pidx,
		didx:    didx,
		globals: make(map[string]int),
		funcs:   make(map[int]*EdgeBuffer),
	}
}

// Table returns the session's symbol table.
func (s *CompileState) Table() *SymTable { return s.table }

// Compile runs the full pass pipeline over one source unit. Passes run in
// fixed order and the pipeline halts before the next pass when one
// reports errors; warnings accumulate across passes and are returned even
// when compilation fails.
func (s *CompileState) Compile(file string, src []byte) (*Workflow, []dsl.Warning, error) {
	prog, warns, err := dsl.Parse(file, src)
	if err != nil {
		return nil, warns, err
	}
	if err := resolveNames(file, prog, s.table, s.pidx, s.globals); err != nil {
		return nil, warns, err
	}
	tws, err := typeCheck(file, prog, s.table)
	warns = append(warns, tws...)
	if err != nil {
		return nil, warns, err
	}
	if err := resolveLocations(file, prog); err != nil {
		return nil, warns, err
	}
	if err := resolveData(file, prog, s.table, s.didx); err != nil {
		return nil, warns, err
	}
	prune(prog)
	u, err := flatten(file, prog, s.table, s.funcs)
	if err != nil {
		return nil, warns, err
	}
	Optimize(u)
	w, err := ResolveIndices(u)
	if err != nil {
		return nil, warns, err
	}
	w.ID = uuid.NewString()
	return w, warns, nil
}

// Compile compiles one standalone program. It is shorthand for a
// single-snippet session.
func Compile(file string, src []byte, pidx *idx.PackageIndex, didx *idx.DataIndex) (*Workflow, []dsl.Warning, error) {
	return NewCompileState(pidx, didx).Compile(file, src)
}
