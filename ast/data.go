package ast

import (
	"github.com/google/uuid"

	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/idx"
)

// datapass validates dataset references against the data index and assigns
// a fresh intermediate-result identifier to every task call that produces
// output. The identifier goes into the table's result map so the planner
// can later record where each result physically lives.
type datapass struct {
	file  string
	table *SymTable
	didx  *idx.DataIndex
	errs  ErrorList
}

// resolveData runs the data pass. didx may be nil when compiling without a
// data index, in which case dataset existence is not checked.
func resolveData(file string, prog *dsl.Program, table *SymTable, didx *idx.DataIndex) error {
	d := &datapass{file: file, table: table, didx: didx}
	for _, s := range prog.Stmts {
		d.stmt(s)
	}
	return d.errs.err()
}

func (d *datapass) stmt(s dsl.Stmt) {
	switch s := s.(type) {
	case *dsl.Block:
		for _, sub := range s.Stmts {
			d.stmt(sub)
		}
	case *dsl.FuncDefStmt:
		d.stmt(s.Body)
	case *dsl.ClassDefStmt:
		for _, m := range s.Defs {
			d.stmt(m.Body)
		}
	case *dsl.OnStmt:
		d.stmt(s.Body)
	case *dsl.IfStmt:
		d.expr(s.Cond)
		d.stmt(s.True)
		if s.False != nil {
			d.stmt(s.False)
		}
	case *dsl.WhileStmt:
		d.expr(s.Cond)
		d.stmt(s.Body)
	case *dsl.ForStmt:
		d.stmt(s.Init)
		d.expr(s.Cond)
		d.stmt(s.Step)
		d.stmt(s.Body)
	case *dsl.ParallelStmt:
		for _, b := range s.Branches {
			d.stmt(b)
		}
	case *dsl.LetStmt:
		d.expr(s.Value)
	case *dsl.AssignStmt:
		d.expr(s.Target)
		d.expr(s.Value)
	case *dsl.ReturnStmt:
		if s.Value != nil {
			d.expr(s.Value)
		}
	case *dsl.ExprStmt:
		d.expr(s.X)
	}
}

func (d *datapass) expr(e dsl.Expr) {
	switch e := e.(type) {
	case *dsl.CallExpr:
		if prj, ok := e.Fn.(*dsl.ProjExpr); ok {
			d.expr(prj.X)
		}
		for _, a := range e.Args {
			d.expr(a)
		}
		if e.IsTask && !e.Type().IsVoid() {
			e.Result = "result-" + uuid.NewString()
			d.table.Results[e.Result] = ""
		}
	case *dsl.ArrayExpr:
		for _, el := range e.Elems {
			d.expr(el)
		}
	case *dsl.IndexExpr:
		d.expr(e.X)
		d.expr(e.Index)
	case *dsl.UnaryExpr:
		d.expr(e.X)
	case *dsl.BinaryExpr:
		d.expr(e.X)
		d.expr(e.Y)
	case *dsl.ProjExpr:
		d.expr(e.X)
	case *dsl.InstanceExpr:
		d.instance(e)
	}
}

// instance checks dataset construction: `new Data{ name := "x" }` must name
// a dataset known to the index.
func (d *datapass) instance(e *dsl.InstanceExpr) {
	for _, p := range e.Props {
		d.expr(p.Value)
	}
	if d.didx == nil || !d.table.Classes.Has(e.Def) {
		return
	}
	if d.table.Classes.At(e.Def).Name != dsl.BuiltinData {
		return
	}
	for _, p := range e.Props {
		if p.Name.Name != "name" {
			continue
		}
		lit, ok := p.Value.(*dsl.Literal)
		if !ok || lit.Kind != dsl.LitString {
			return // dynamic name, checked at runtime
		}
		if !d.didx.Has(lit.Str) {
			d.errs.errorf(d.file, p.Value.Span(), CodeUnknownDataset,
				"unknown dataset %q", lit.Str)
		}
	}
}
