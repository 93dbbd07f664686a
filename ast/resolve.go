package ast

import (
	"fmt"
	"sort"

	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/idx"
)

// resolver implements the name-resolution pass. It walks the tree once,
// assigning stable table indices to every declared variable, function,
// class and imported task, and annotating every use site with the index
// of its definition.
//
// Variable scoping is lexical within a function body, but function bodies
// do not capture enclosing locals: a frame starts fresh at runtime, so a
// body may only see its own parameters and declarations.
type resolver struct {
	file   string
	table  *SymTable
	pidx   *idx.PackageIndex
	errs   ErrorList
	scopes []map[string]int
}

// resolveNames runs name resolution over prog. globals is the outermost
// variable scope, shared across snippets of one session; it is updated
// with toplevel declarations.
func resolveNames(file string, prog *dsl.Program, table *SymTable, pidx *idx.PackageIndex, globals map[string]int) error {
	r := &resolver{
		file:   file,
		table:  table,
		pidx:   pidx,
		scopes: []map[string]int{globals},
	}
	// Declarations first, so functions and classes may be used before
	// their definition appears in the source.
	for _, s := range prog.Stmts {
		switch s := s.(type) {
		case *dsl.ImportStmt:
			r.importPackage(s)
		case *dsl.FuncDefStmt:
			r.declareFunc(s, "")
		case *dsl.ClassDefStmt:
			r.declareClass(s)
		}
	}
	for _, s := range prog.Stmts {
		r.stmt(s)
	}
	return r.errs.err()
}

func (r *resolver) errorf(rng dsl.TextRange, code ErrorCode, format string, args ...any) {
	r.errs.errorf(r.file, rng, code, format, args...)
}

func (r *resolver) push() { r.scopes = append(r.scopes, make(map[string]int)) }

// pop closes the innermost scope and returns the defs declared in it, in
// declaration order.
func (r *resolver) pop() []int {
	top := r.scopes[len(r.scopes)-1]
	r.scopes = r.scopes[:len(r.scopes)-1]
	locals := make([]int, 0, len(top))
	for _, def := range top {
		locals = append(locals, def)
	}
	sort.Ints(locals)
	return locals
}

// declareVar registers a variable in the innermost scope.
func (r *resolver) declareVar(name *dsl.Ident) int {
	top := r.scopes[len(r.scopes)-1]
	if _, dup := top[name.Name]; dup {
		r.errorf(name.Span(), CodeDuplicateDeclaration,
			"variable %s is already declared in this scope", name.Name)
		return top[name.Name]
	}
	def := r.table.Vars.Push(VarDef{Name: name.Name, Type: dsl.Any()})
	top[name.Name] = def
	name.Def = def
	return def
}

// lookupVar finds a variable by name, innermost scope first.
func (r *resolver) lookupVar(name string) (int, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if def, ok := r.scopes[i][name]; ok {
			return def, true
		}
	}
	return 0, false
}

// importPackage resolves an import against the package index and registers
// every function the package declares as a task definition.
func (r *resolver) importPackage(s *dsl.ImportStmt) {
	if r.pidx == nil {
		r.errorf(s.Span(), CodeUnknownPackage,
			"cannot import %s: no package index available", s.Package.Name)
		return
	}
	pkg, ok := r.pidx.Get(s.Package.Name, s.Version)
	if !ok {
		if s.Version != "" {
			r.errorf(s.Span(), CodeUnknownPackage,
				"unknown package %s[%s]", s.Package.Name, s.Version)
		} else {
			r.errorf(s.Span(), CodeUnknownPackage, "unknown package %s", s.Package.Name)
		}
		return
	}
	names := make([]string, 0, len(pkg.Functions))
	for n := range pkg.Functions {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if r.table.TaskByName(n) >= 0 {
			continue // idempotent re-import within a session
		}
		fn := pkg.Functions[n]
		r.table.Tasks.Push(TaskDef{
			Package:  pkg.Name,
			Version:  pkg.Version,
			Name:     fn.Name,
			Args:     fn.Args,
			ArgNames: fn.ArgNames,
			Ret:      fn.Ret,
		})
	}
}

// declareFunc registers a function definition in the table. Methods are
// registered under "Class.name".
func (r *resolver) declareFunc(s *dsl.FuncDefStmt, class string) {
	name := s.Name.Name
	if class != "" {
		name = class + "." + name
	}
	if r.table.FuncByName(name) >= 0 {
		r.errorf(s.Name.Span(), CodeDuplicateDeclaration,
			"function %s is already declared", name)
		s.Def = r.table.FuncByName(name)
		return
	}
	args := make([]dsl.DataType, len(s.Params))
	for i := range args {
		args[i] = dsl.Any()
	}
	s.Def = r.table.Funcs.Push(FunctionDef{Name: name, Args: args, Ret: dsl.Any()})
}

func (r *resolver) declareClass(s *dsl.ClassDefStmt) {
	if r.table.ClassByName(s.Name.Name) >= 0 {
		r.errorf(s.Name.Span(), CodeDuplicateDeclaration,
			"class %s is already declared", s.Name.Name)
		s.Def = r.table.ClassByName(s.Name.Name)
		return
	}
	props := make([]VarDef, len(s.Props))
	for i, p := range s.Props {
		props[i] = VarDef{Name: p.Name.Name, Type: p.Type}
	}
	var methods []int
	for _, m := range s.Defs {
		r.declareFunc(m, s.Name.Name)
		methods = append(methods, m.Def)
	}
	s.Def = r.table.Classes.Push(ClassDef{Name: s.Name.Name, Props: props, Methods: methods})
}

func (r *resolver) stmt(s dsl.Stmt) {
	switch s := s.(type) {
	case *dsl.ImportStmt:
		// handled up front
	case *dsl.FuncDefStmt:
		if s.Def < 0 {
			// nested definition, not covered by the toplevel sweep
			r.declareFunc(s, "")
		}
		r.funcBody(s)
	case *dsl.ClassDefStmt:
		if s.Def < 0 {
			r.declareClass(s)
		}
		for _, m := range s.Defs {
			r.funcBody(m)
		}
	case *dsl.Block:
		r.block(s)
	case *dsl.LetStmt:
		r.expr(s.Value)
		r.declareVar(s.Name)
	case *dsl.AssignStmt:
		switch t := s.Target.(type) {
		case *dsl.Ident:
			def, ok := r.lookupVar(t.Name)
			if !ok {
				r.errorf(t.Span(), CodeUndeclaredVariable, "undeclared variable %s", t.Name)
			}
			t.Def = def
		case *dsl.ProjExpr:
			r.expr(t)
		}
		r.expr(s.Value)
	case *dsl.ReturnStmt:
		if s.Value != nil {
			r.expr(s.Value)
		}
	case *dsl.IfStmt:
		r.expr(s.Cond)
		r.block(s.True)
		if s.False != nil {
			r.block(s.False)
		}
	case *dsl.WhileStmt:
		r.expr(s.Cond)
		r.block(s.Body)
	case *dsl.ForStmt:
		// The init declaration scopes over cond, step and body. It lives in
		// its own scope, not the body's: body locals are deleted on every
		// iteration, the init variable only at loop exit.
		r.push()
		r.stmt(s.Init)
		r.expr(s.Cond)
		r.stmt(s.Step)
		r.block(s.Body)
		r.pop()
	case *dsl.OnStmt:
		r.expr(s.Location)
		r.block(s.Body)
	case *dsl.ParallelStmt:
		for _, b := range s.Branches {
			r.stmt(b)
		}
		s.Def = -1
		if s.Result != nil {
			s.Def = r.declareVar(s.Result)
		}
	case *dsl.ExprStmt:
		r.expr(s.X)
	default:
		r.errorf(s.Span(), CodeInternal, "unresolvable statement %T", s)
	}
}

func (r *resolver) block(b *dsl.Block) {
	r.push()
	for _, s := range b.Stmts {
		r.stmt(s)
	}
	b.Locals = append(b.Locals, r.pop()...)
}

// funcBody resolves a function body in a fresh scope chain containing only
// the parameters.
func (r *resolver) funcBody(s *dsl.FuncDefStmt) {
	outer := r.scopes
	r.scopes = []map[string]int{make(map[string]int)}
	for _, p := range s.Params {
		r.declareVar(p)
	}
	r.block(s.Body)
	s.Body.Locals = append(s.Body.Locals, r.pop()...)
	r.scopes = outer
}

func (r *resolver) expr(e dsl.Expr) {
	switch e := e.(type) {
	case *dsl.Ident:
		def, ok := r.lookupVar(e.Name)
		if !ok {
			r.errorf(e.Span(), CodeUndeclaredVariable, "undeclared variable %s", e.Name)
		}
		e.Def = def
	case *dsl.Literal:
		// nothing to resolve
	case *dsl.CallExpr:
		r.call(e)
	case *dsl.ArrayExpr:
		for _, el := range e.Elems {
			r.expr(el)
		}
	case *dsl.IndexExpr:
		r.expr(e.X)
		r.expr(e.Index)
	case *dsl.UnaryExpr:
		r.expr(e.X)
	case *dsl.BinaryExpr:
		r.expr(e.X)
		r.expr(e.Y)
	case *dsl.ProjExpr:
		r.expr(e.X)
	case *dsl.InstanceExpr:
		def := r.table.ClassByName(e.Class.Name)
		if def < 0 {
			r.errorf(e.Class.Span(), CodeUnknownClass, "unknown class %s", e.Class.Name)
		}
		e.Def = def
		for _, p := range e.Props {
			r.expr(p.Value)
		}
	default:
		r.errorf(e.Span(), CodeInternal, "unresolvable expression %T", e)
	}
}

// call resolves a call target. Plain names resolve to a script function
// (builtins included) or, failing that, an imported task. Projection
// targets are method calls; their definition depends on the receiver's
// class, which the typing pass determines, so only the receiver is
// resolved here.
func (r *resolver) call(e *dsl.CallExpr) {
	for _, a := range e.Args {
		r.expr(a)
	}
	switch fn := e.Fn.(type) {
	case *dsl.Ident:
		if def := r.table.FuncByName(fn.Name); def >= 0 {
			e.Def = def
			return
		}
		if def := r.table.TaskByName(fn.Name); def >= 0 {
			e.Def = def
			e.IsTask = true
			return
		}
		r.errorf(fn.Span(), CodeUnknownFunction, "unknown function %s", fn.Name)
	case *dsl.ProjExpr:
		r.expr(fn.X)
		e.Def = -1 // resolved by the typing pass
	default:
		r.errorf(e.Fn.Span(), CodeUnknownFunction,
			"expression %s is not callable", exprDesc(e.Fn))
	}
}

func exprDesc(e dsl.Expr) string {
	switch e := e.(type) {
	case *dsl.Ident:
		return e.Name
	case *dsl.Literal:
		return e.Raw
	}
	return fmt.Sprintf("%T", e)
}
