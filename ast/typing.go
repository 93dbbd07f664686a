package ast

import (
	"github.com/marinoandrea/brane/dsl"
)

// checker implements the typing pass: bidirectional inference over the
// resolved tree. Every expression is annotated with its static type,
// variable definitions are narrowed from Any to their initializer's type,
// and function signatures are inferred from their return statements.
type checker struct {
	file  string
	table *SymTable
	errs  ErrorList
	warns []dsl.Warning

	// fn is the definition of the function body being checked, or -1 at
	// toplevel. rets collects the types of its return statements.
	fn   int
	rets []dsl.DataType
}

func typeCheck(file string, prog *dsl.Program, table *SymTable) ([]dsl.Warning, error) {
	c := &checker{file: file, table: table, fn: -1}
	for _, s := range prog.Stmts {
		c.stmt(s)
	}
	return c.warns, c.errs.err()
}

func (c *checker) errorf(rng dsl.TextRange, code ErrorCode, format string, args ...any) {
	c.errs.errorf(c.file, rng, code, format, args...)
}

func (c *checker) warnf(code dsl.WarningCode, rng dsl.TextRange, msg string) {
	c.warns = append(c.warns, dsl.Warning{Code: code, Range: rng, Msg: msg})
}

func (c *checker) varType(def int) dsl.DataType {
	if !c.table.Vars.Has(def) {
		return dsl.Any()
	}
	return c.table.Vars.At(def).Type
}

// unify returns the common type of two branches of inference, widening to
// Real across mixed numerics and to Any when the types are unrelated.
func unify(a, b dsl.DataType) dsl.DataType {
	switch {
	case a.Equal(b):
		return a
	case a.IsAny() || a.Kind == dsl.TNull:
		return b
	case b.IsAny() || b.Kind == dsl.TNull:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return dsl.Real()
	}
	return dsl.Any()
}

func (c *checker) stmt(s dsl.Stmt) {
	switch s := s.(type) {
	case *dsl.ImportStmt:
	case *dsl.FuncDefStmt:
		c.funcBody(s)
	case *dsl.ClassDefStmt:
		for _, m := range s.Defs {
			c.funcBody(m)
		}
	case *dsl.Block:
		for _, sub := range s.Stmts {
			c.stmt(sub)
		}
	case *dsl.LetStmt:
		t := c.expr(s.Value)
		if t.IsVoid() {
			c.errorf(s.Value.Span(), CodeTypeMismatch,
				"cannot assign a Void expression to %s", s.Name.Name)
			t = dsl.Any()
		}
		if c.table.Vars.Has(s.Name.Def) {
			c.table.Vars.At(s.Name.Def).Type = t
		}
		s.Name.SetType(t)
	case *dsl.AssignStmt:
		vt := c.expr(s.Target)
		t := c.expr(s.Value)
		if t.IsVoid() {
			c.errorf(s.Value.Span(), CodeTypeMismatch, "cannot assign a Void expression")
		} else if !t.CoercibleTo(vt) {
			c.errorf(s.Value.Span(), CodeTypeMismatch,
				"cannot assign %s to %s", t, vt)
		}
		// A variable declared as Any narrows on first concrete store.
		if tgt, ok := s.Target.(*dsl.Ident); ok && vt.IsAny() {
			if c.table.Vars.Has(tgt.Def) {
				c.table.Vars.At(tgt.Def).Type = t
			}
		}
	case *dsl.ReturnStmt:
		t := dsl.Void()
		if s.Value != nil {
			t = c.expr(s.Value)
		}
		s.Type = t
		if c.fn >= 0 {
			c.rets = append(c.rets, t)
			if t.Equal(dsl.IntermediateResult()) {
				c.warnf(dsl.WarnReturningIntermediateResult, s.Span(),
					"returning an IntermediateResult that was never committed; "+
						"call commit_result to make it durable Data")
			}
		}
	case *dsl.IfStmt:
		c.cond(s.Cond)
		c.stmt(s.True)
		if s.False != nil {
			c.stmt(s.False)
		}
	case *dsl.WhileStmt:
		c.cond(s.Cond)
		c.stmt(s.Body)
	case *dsl.ForStmt:
		c.stmt(s.Init)
		c.cond(s.Cond)
		c.stmt(s.Step)
		c.stmt(s.Body)
	case *dsl.OnStmt:
		t := c.expr(s.Location)
		if !t.CoercibleTo(dsl.Str()) {
			c.errorf(s.Location.Span(), CodeTypeMismatch,
				"location must be a String, not %s", t)
		}
		c.stmt(s.Body)
	case *dsl.ParallelStmt:
		for _, b := range s.Branches {
			c.stmt(b)
		}
		if s.Strategy != "" && s.Result == nil {
			c.warnf(dsl.WarnUnusedMergeStrategy, s.Span(),
				"merge strategy ["+s.Strategy+"] is specified but the result is discarded")
		}
		if s.Result != nil {
			t := dsl.Any()
			if ParseMergeStrategy(s.Strategy) == MergeAll || s.Strategy == "" {
				t = dsl.Array(dsl.Any())
			}
			if c.table.Vars.Has(s.Def) {
				c.table.Vars.At(s.Def).Type = t
			}
			s.Result.SetType(t)
		}
	case *dsl.ExprStmt:
		c.expr(s.X)
	}
}

// cond checks a control-flow condition, which must be usable as a Boolean.
func (c *checker) cond(e dsl.Expr) {
	t := c.expr(e)
	if !t.CoercibleTo(dsl.Bool()) {
		c.errorf(e.Span(), CodeTypeMismatch, "condition must be a Boolean, not %s", t)
	}
}

// funcBody checks a function body and infers the signature from parameter
// use and return statements.
func (c *checker) funcBody(s *dsl.FuncDefStmt) {
	outerFn, outerRets := c.fn, c.rets
	c.fn, c.rets = s.Def, nil
	c.stmt(s.Body)

	ret := dsl.Void()
	for i, t := range c.rets {
		if i == 0 {
			ret = t
		} else {
			ret = unify(ret, t)
		}
	}
	if c.table.Funcs.Has(s.Def) {
		def := c.table.Funcs.At(s.Def)
		def.Ret = ret
		for i, p := range s.Params {
			if i < len(def.Args) {
				def.Args[i] = c.varType(p.Def)
			}
		}
	}
	c.fn, c.rets = outerFn, outerRets
}

func (c *checker) expr(e dsl.Expr) dsl.DataType {
	t := c.exprType(e)
	if st, ok := e.(interface{ SetType(dsl.DataType) }); ok {
		st.SetType(t)
	}
	return t
}

func (c *checker) exprType(e dsl.Expr) dsl.DataType {
	switch e := e.(type) {
	case *dsl.Ident:
		return c.varType(e.Def)
	case *dsl.Literal:
		switch e.Kind {
		case dsl.LitBool:
			return dsl.Bool()
		case dsl.LitInt:
			return dsl.Int()
		case dsl.LitReal:
			return dsl.Real()
		case dsl.LitString:
			return dsl.Str()
		case dsl.LitSemver:
			return dsl.Semver()
		case dsl.LitNull:
			return dsl.Null()
		}
	case *dsl.CallExpr:
		return c.call(e)
	case *dsl.ArrayExpr:
		elem := dsl.Any()
		for i, el := range e.Elems {
			t := c.expr(el)
			if i == 0 {
				elem = t
			} else {
				elem = unify(elem, t)
			}
		}
		return dsl.Array(elem)
	case *dsl.IndexExpr:
		xt := c.expr(e.X)
		it := c.expr(e.Index)
		if !it.CoercibleTo(dsl.Int()) {
			c.errorf(e.Index.Span(), CodeTypeMismatch, "array index must be an Integer, not %s", it)
		}
		switch {
		case xt.Kind == dsl.TArray:
			return *xt.Elem
		case xt.IsAny():
			return dsl.Any()
		}
		c.errorf(e.X.Span(), CodeTypeMismatch, "cannot index a %s", xt)
		return dsl.Any()
	case *dsl.UnaryExpr:
		xt := c.expr(e.X)
		switch e.Op {
		case dsl.NOT:
			if !xt.CoercibleTo(dsl.Bool()) {
				c.errorf(e.X.Span(), CodeTypeMismatch, "operator ! requires a Boolean, not %s", xt)
			}
			return dsl.Bool()
		case dsl.MINUS:
			if !xt.IsNumeric() && !xt.IsAny() {
				c.errorf(e.X.Span(), CodeTypeMismatch, "operator - requires a number, not %s", xt)
			}
			if xt.IsNumeric() {
				return xt
			}
			return dsl.Any()
		}
	case *dsl.BinaryExpr:
		return c.binary(e)
	case *dsl.ProjExpr:
		xt := c.expr(e.X)
		switch {
		case xt.Kind == dsl.TClass:
			cls := c.table.ClassByName(xt.Class)
			if cls < 0 {
				c.errorf(e.X.Span(), CodeUnknownClass, "unknown class %s", xt.Class)
				return dsl.Any()
			}
			def := c.table.Classes.At(cls)
			if i := def.PropIndex(e.Name.Name); i >= 0 {
				return def.Props[i].Type
			}
			c.errorf(e.Name.Span(), CodeUnknownProperty,
				"class %s has no property %s", xt.Class, e.Name.Name)
			return dsl.Any()
		case xt.IsAny():
			return dsl.Any()
		}
		c.errorf(e.X.Span(), CodeTypeMismatch, "cannot project a field of a %s", xt)
		return dsl.Any()
	case *dsl.InstanceExpr:
		return c.instance(e)
	}
	return dsl.Any()
}

func (c *checker) binary(e *dsl.BinaryExpr) dsl.DataType {
	xt := c.expr(e.X)
	yt := c.expr(e.Y)
	op := e.Op.String()
	switch e.Op {
	case dsl.AND, dsl.OR:
		if !xt.CoercibleTo(dsl.Bool()) {
			c.errorf(e.X.Span(), CodeTypeMismatch, "operator %s requires Booleans, not %s", op, xt)
		}
		if !yt.CoercibleTo(dsl.Bool()) {
			c.errorf(e.Y.Span(), CodeTypeMismatch, "operator %s requires Booleans, not %s", op, yt)
		}
		return dsl.Bool()
	case dsl.EQ, dsl.NE:
		if !xt.CoercibleTo(yt) && !yt.CoercibleTo(xt) {
			c.errorf(e.Span(), CodeTypeMismatch, "cannot compare %s with %s", xt, yt)
		}
		return dsl.Bool()
	case dsl.LT, dsl.LE, dsl.GT, dsl.GE:
		c.numericOperand(op, e.X, xt)
		c.numericOperand(op, e.Y, yt)
		return dsl.Bool()
	case dsl.PLUS:
		// + doubles as string concatenation.
		if xt.Kind == dsl.TString || yt.Kind == dsl.TString {
			return dsl.Str()
		}
		fallthrough
	case dsl.MINUS, dsl.STAR, dsl.SLASH, dsl.PERCENT:
		c.numericOperand(op, e.X, xt)
		c.numericOperand(op, e.Y, yt)
		switch {
		case xt.Kind == dsl.TReal || yt.Kind == dsl.TReal:
			return dsl.Real()
		case xt.IsAny() || yt.IsAny():
			return dsl.Any()
		}
		return dsl.Int()
	}
	return dsl.Any()
}

func (c *checker) numericOperand(op string, e dsl.Expr, t dsl.DataType) {
	if !t.IsNumeric() && !t.IsAny() {
		c.errorf(e.Span(), CodeTypeMismatch, "operator %s requires numbers, not %s", op, t)
	}
}

// call checks a call's arity and argument coercibility and returns its
// result type. Method calls are resolved here, once the receiver's class
// is known: x.m(a) calls function Class.m with x as its first argument.
func (c *checker) call(e *dsl.CallExpr) dsl.DataType {
	var sigArgs []dsl.DataType
	var ret dsl.DataType
	args := e.Args

	switch fn := e.Fn.(type) {
	case *dsl.Ident:
		if e.IsTask {
			if !c.table.Tasks.Has(e.Def) {
				return dsl.Any()
			}
			task := c.table.Tasks.At(e.Def)
			sigArgs, ret = task.Args, task.Ret
		} else {
			if !c.table.Funcs.Has(e.Def) {
				return dsl.Any()
			}
			def := c.table.Funcs.At(e.Def)
			sigArgs, ret = def.Args, def.Ret
		}
	case *dsl.ProjExpr:
		xt := c.expr(fn.X)
		if xt.IsAny() {
			for _, a := range args {
				c.expr(a)
			}
			return dsl.Any()
		}
		if xt.Kind != dsl.TClass {
			c.errorf(fn.X.Span(), CodeTypeMismatch, "cannot call a method on a %s", xt)
			return dsl.Any()
		}
		def := c.table.FuncByName(xt.Class + "." + fn.Name.Name)
		if def < 0 {
			c.errorf(fn.Name.Span(), CodeUnknownFunction,
				"class %s has no method %s", xt.Class, fn.Name.Name)
			return dsl.Any()
		}
		e.Def = def
		fdef := c.table.Funcs.At(def)
		sigArgs, ret = fdef.Args, fdef.Ret
		args = append([]dsl.Expr{fn.X}, args...)
	default:
		return dsl.Any()
	}

	if len(args) != len(sigArgs) {
		c.errorf(e.Span(), CodeArityMismatch,
			"%s takes %d arguments, got %d", callDesc(e), len(sigArgs), len(args))
	}
	for i, a := range args {
		at := c.expr(a)
		if i >= len(sigArgs) {
			continue
		}
		if !at.CoercibleTo(sigArgs[i]) {
			c.errorf(a.Span(), CodeTypeMismatch,
				"argument %d of %s must be %s, not %s", i+1, callDesc(e), sigArgs[i], at)
		}
	}
	return ret
}

func (c *checker) instance(e *dsl.InstanceExpr) dsl.DataType {
	if !c.table.Classes.Has(e.Def) {
		return dsl.Any()
	}
	def := c.table.Classes.At(e.Def)
	seen := make(map[string]bool)
	for _, p := range e.Props {
		i := def.PropIndex(p.Name.Name)
		if i < 0 {
			c.errorf(p.Name.Span(), CodeUnknownProperty,
				"class %s has no property %s", def.Name, p.Name.Name)
			c.expr(p.Value)
			continue
		}
		if seen[p.Name.Name] {
			c.errorf(p.Name.Span(), CodeDuplicateDeclaration,
				"property %s is assigned twice", p.Name.Name)
		}
		seen[p.Name.Name] = true
		t := c.expr(p.Value)
		if !t.CoercibleTo(def.Props[i].Type) {
			c.errorf(p.Value.Span(), CodeTypeMismatch,
				"property %s of %s must be %s, not %s", p.Name.Name, def.Name, def.Props[i].Type, t)
		}
	}
	for _, p := range def.Props {
		if !seen[p.Name] {
			c.errorf(e.Span(), CodeTypeMismatch,
				"instance of %s is missing property %s", def.Name, p.Name)
		}
	}
	return dsl.Class(def.Name)
}

func callDesc(e *dsl.CallExpr) string {
	switch fn := e.Fn.(type) {
	case *dsl.Ident:
		return fn.Name
	case *dsl.ProjExpr:
		return fn.Name.Name
	}
	return "call"
}
