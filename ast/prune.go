package ast

import (
	"github.com/marinoandrea/brane/dsl"
)

// prune removes code that can never run: branches whose condition is a
// boolean literal, while loops that never start, and statements following
// a return in the same block. It runs after typing so diagnostics have
// already been reported for the pruned code.
func prune(prog *dsl.Program) {
	prog.Stmts = pruneStmts(prog.Stmts)
}

func pruneStmts(stmts []dsl.Stmt) []dsl.Stmt {
	var out []dsl.Stmt
	for _, s := range stmts {
		s = pruneStmt(s)
		if s == nil {
			continue
		}
		out = append(out, s)
		if _, ret := s.(*dsl.ReturnStmt); ret {
			break // everything after is unreachable
		}
	}
	return out
}

// pruneStmt rewrites one statement, returning nil when it is dead.
func pruneStmt(s dsl.Stmt) dsl.Stmt {
	switch s := s.(type) {
	case *dsl.Block:
		s.Stmts = pruneStmts(s.Stmts)
		return s
	case *dsl.FuncDefStmt:
		s.Body.Stmts = pruneStmts(s.Body.Stmts)
		return s
	case *dsl.ClassDefStmt:
		for _, m := range s.Defs {
			m.Body.Stmts = pruneStmts(m.Body.Stmts)
		}
		return s
	case *dsl.IfStmt:
		s.True.Stmts = pruneStmts(s.True.Stmts)
		if s.False != nil {
			s.False.Stmts = pruneStmts(s.False.Stmts)
		}
		if lit, ok := constBool(s.Cond); ok {
			if lit {
				return s.True
			}
			if s.False != nil {
				return s.False
			}
			return nil
		}
		return s
	case *dsl.WhileStmt:
		if lit, ok := constBool(s.Cond); ok && !lit {
			return nil
		}
		s.Body.Stmts = pruneStmts(s.Body.Stmts)
		return s
	case *dsl.ForStmt:
		s.Body.Stmts = pruneStmts(s.Body.Stmts)
		return s
	case *dsl.OnStmt:
		s.Body.Stmts = pruneStmts(s.Body.Stmts)
		return s
	case *dsl.ParallelStmt:
		for _, b := range s.Branches {
			pruneStmt(b)
		}
		return s
	}
	return s
}

func constBool(e dsl.Expr) (value, ok bool) {
	lit, isLit := e.(*dsl.Literal)
	if !isLit || lit.Kind != dsl.LitBool {
		return false, false
	}
	return lit.Bool, true
}
