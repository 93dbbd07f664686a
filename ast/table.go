// Package ast defines the workflow intermediate representation produced by
// the BraneScript compiler (a symbol table plus edge buffers) and the
// compiler passes that build, optimize and resolve it.
//
// The representation is a graph whose nodes are external, orchestratable
// tasks and whose edges are small pieces of control flow deciding which
// task runs next. It is deliberately linear and jump-based so a flat stack
// machine can execute it and so it serializes compactly for transmission
// to remote executor nodes.
package ast

import (
	"fmt"

	"github.com/marinoandrea/brane/dsl"
)

// A TableList is an append-only list whose indices are stable once
// assigned. Later passes and the executor refer to definitions purely by
// index, never by name.
type TableList[T any] struct {
	Data   []T `json:"d"`
	Offset int `json:"o"` // applied to all indices, used by nested scopes
}

// Push appends a definition and returns its index.
func (l *TableList[T]) Push(v T) int {
	l.Data = append(l.Data, v)
	return l.Offset + len(l.Data) - 1
}

// At returns a pointer to the definition at index i.
func (l *TableList[T]) At(i int) *T {
	return &l.Data[i-l.Offset]
}

// Has reports whether index i is in bounds.
func (l *TableList[T]) Has(i int) bool {
	return i >= l.Offset && i-l.Offset < len(l.Data)
}

// Len returns the number of definitions, including the offset.
func (l *TableList[T]) Len() int { return l.Offset + len(l.Data) }

// A FunctionDef describes a BraneScript function referenced by Call edges.
type FunctionDef struct {
	Name string         `json:"n"`
	Args []dsl.DataType `json:"a"`
	Ret  dsl.DataType   `json:"r"`
}

// A TaskDef describes an external compute task referenced by Node edges.
type TaskDef struct {
	Package  string         `json:"p"`
	Version  string         `json:"v"`
	Name     string         `json:"n"`
	Args     []dsl.DataType `json:"a"`
	ArgNames []string       `json:"an"`
	Ret      dsl.DataType   `json:"r"`
}

// A ClassDef describes a class referenced by Instance instructions.
type ClassDef struct {
	Name string `json:"n"`
	// Package is set for classes imported from a package, "" otherwise.
	Package string   `json:"p,omitempty"`
	Props   []VarDef `json:"pr"`
	// Methods are indices into the function table.
	Methods []int `json:"m,omitempty"`
}

// PropIndex returns the position of the named property, or -1.
func (c *ClassDef) PropIndex(name string) int {
	for i, p := range c.Props {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// A VarDef describes a variable referenced by VarDec/VarGet/VarSet.
type VarDef struct {
	Name string       `json:"n"`
	Type dsl.DataType `json:"t"`
}

// A SymTable is the workflow's definition table. All definitions of a
// workflow, including function-local variables, live in this single
// table; frames isolate variable values at runtime, not definitions.
type SymTable struct {
	Funcs   TableList[FunctionDef] `json:"f"`
	Tasks   TableList[TaskDef]     `json:"t"`
	Classes TableList[ClassDef]    `json:"c"`
	Vars    TableList[VarDef]      `json:"v"`

	// Results maps intermediate-result ids to the location that holds them.
	Results map[string]string `json:"r"`
}

// Builtin function indices. Builtins occupy the lowest indices of the
// function table, registered before any user code is compiled.
const (
	BuiltinPrint = iota
	BuiltinPrintln
	BuiltinLen
	BuiltinCommitResult
	numBuiltinFuncs
)

// Builtin class indices.
const (
	BuiltinClassData = iota
	BuiltinClassIntermediateResult
	numBuiltinClasses
)

// NewSymTable returns a table with the builtin functions and classes
// pre-registered at the lowest indices.
func NewSymTable() *SymTable {
	t := &SymTable{Results: make(map[string]string)}
	t.Funcs.Push(FunctionDef{Name: "print", Args: []dsl.DataType{dsl.Str()}, Ret: dsl.Void()})
	t.Funcs.Push(FunctionDef{Name: "println", Args: []dsl.DataType{dsl.Str()}, Ret: dsl.Void()})
	t.Funcs.Push(FunctionDef{Name: "len", Args: []dsl.DataType{dsl.Array(dsl.Any())}, Ret: dsl.Int()})
	t.Funcs.Push(FunctionDef{
		Name: "commit_result",
		Args: []dsl.DataType{dsl.Str(), dsl.IntermediateResult()},
		Ret:  dsl.Data(),
	})
	t.Classes.Push(ClassDef{
		Name:  dsl.BuiltinData,
		Props: []VarDef{{Name: "name", Type: dsl.Str()}},
	})
	t.Classes.Push(ClassDef{
		Name:  dsl.BuiltinIntermediateResult,
		Props: []VarDef{{Name: "path", Type: dsl.Str()}},
	})
	return t
}

// IsBuiltinFunc reports whether def indexes a builtin function.
func IsBuiltinFunc(def int) bool { return def >= 0 && def < numBuiltinFuncs }

// FuncByName returns the index of the named function, or -1.
func (t *SymTable) FuncByName(name string) int {
	for i, f := range t.Funcs.Data {
		if f.Name == name {
			return t.Funcs.Offset + i
		}
	}
	return -1
}

// TaskByName returns the index of the named task, or -1.
func (t *SymTable) TaskByName(name string) int {
	for i, task := range t.Tasks.Data {
		if task.Name == name {
			return t.Tasks.Offset + i
		}
	}
	return -1
}

// ClassByName returns the index of the named class, or -1.
func (t *SymTable) ClassByName(name string) int {
	for i, c := range t.Classes.Data {
		if c.Name == name {
			return t.Classes.Offset + i
		}
	}
	return -1
}

func (t *SymTable) String() string {
	return fmt.Sprintf("SymTable{%d funcs, %d tasks, %d classes, %d vars}",
		t.Funcs.Len(), t.Tasks.Len(), t.Classes.Len(), t.Vars.Len())
}
