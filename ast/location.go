package ast

import (
	"github.com/marinoandrea/brane/dsl"
)

// locator implements the location pass: every task call is annotated with
// the set of compute locations it may run at. The set starts as "anywhere"
// and narrows by intersection for every enclosing `on` block; an empty
// intersection means no location can satisfy all restrictions, which is a
// compile error rather than a runtime dead end.
type locator struct {
	file string
	errs ErrorList
}

func resolveLocations(file string, prog *dsl.Program) error {
	l := &locator{file: file}
	all := dsl.AllLocations()
	for _, s := range prog.Stmts {
		l.stmt(s, &all)
	}
	return l.errs.err()
}

func (l *locator) stmt(s dsl.Stmt, locs *dsl.AllowedLocations) {
	switch s := s.(type) {
	case *dsl.Block:
		for _, sub := range s.Stmts {
			l.stmt(sub, locs)
		}
	case *dsl.FuncDefStmt:
		l.stmt(s.Body, locs)
	case *dsl.ClassDefStmt:
		for _, m := range s.Defs {
			l.stmt(m.Body, locs)
		}
	case *dsl.OnStmt:
		lit, ok := s.Location.(*dsl.Literal)
		if !ok || lit.Kind != dsl.LitString {
			l.errs.errorf(l.file, s.Location.Span(), CodeTypeMismatch,
				"on requires a string literal location")
			l.stmt(s.Body, locs)
			return
		}
		narrowed := locs.Intersect(dsl.RestrictedTo(lit.Str))
		if narrowed.IsEmpty() {
			l.errs.errorf(l.file, s.Span(), CodeNoLocation,
				"no allowed location: %q conflicts with enclosing restriction %s",
				lit.Str, locs)
			return
		}
		l.stmt(s.Body, &narrowed)
	case *dsl.IfStmt:
		l.expr(s.Cond, locs)
		l.stmt(s.True, locs)
		if s.False != nil {
			l.stmt(s.False, locs)
		}
	case *dsl.WhileStmt:
		l.expr(s.Cond, locs)
		l.stmt(s.Body, locs)
	case *dsl.ForStmt:
		l.stmt(s.Init, locs)
		l.expr(s.Cond, locs)
		l.stmt(s.Step, locs)
		l.stmt(s.Body, locs)
	case *dsl.ParallelStmt:
		for _, b := range s.Branches {
			l.stmt(b, locs)
		}
	case *dsl.LetStmt:
		l.expr(s.Value, locs)
	case *dsl.AssignStmt:
		l.expr(s.Target, locs)
		l.expr(s.Value, locs)
	case *dsl.ReturnStmt:
		if s.Value != nil {
			l.expr(s.Value, locs)
		}
	case *dsl.ExprStmt:
		l.expr(s.X, locs)
	}
}

func (l *locator) expr(e dsl.Expr, locs *dsl.AllowedLocations) {
	switch e := e.(type) {
	case *dsl.CallExpr:
		if prj, ok := e.Fn.(*dsl.ProjExpr); ok {
			l.expr(prj.X, locs)
		}
		for _, a := range e.Args {
			l.expr(a, locs)
		}
		if e.IsTask {
			set := *locs
			e.Locs = &set
		}
	case *dsl.ArrayExpr:
		for _, el := range e.Elems {
			l.expr(el, locs)
		}
	case *dsl.IndexExpr:
		l.expr(e.X, locs)
		l.expr(e.Index, locs)
	case *dsl.UnaryExpr:
		l.expr(e.X, locs)
	case *dsl.BinaryExpr:
		l.expr(e.X, locs)
		l.expr(e.Y, locs)
	case *dsl.ProjExpr:
		l.expr(e.X, locs)
	case *dsl.InstanceExpr:
		for _, p := range e.Props {
			l.expr(p.Value, locs)
		}
	}
}
