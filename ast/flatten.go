package ast

import (
	"fmt"

	"github.com/marinoandrea/brane/dsl"
)

// flattener lowers the annotated tree into edge buffers. Structured
// control flow becomes labeled jumps; expressions become stack
// instructions batched into Linear edges, split wherever a call or task
// boundary forces a new edge.
type flattener struct {
	file  string
	table *SymTable
	buf   *EdgeBuffer
	cur   []EdgeInstr
	funcs map[int]*EdgeBuffer
	errs  ErrorList
}

// flatten lowers prog into an unresolved workflow. funcs carries the
// buffers of functions compiled by earlier snippets of the same session;
// pass a fresh map for one-shot compilation.
func flatten(file string, prog *dsl.Program, table *SymTable, funcs map[int]*EdgeBuffer) (*UnresolvedWorkflow, error) {
	f := &flattener{file: file, table: table, buf: NewEdgeBuffer(), funcs: funcs}
	for _, s := range prog.Stmts {
		f.stmt(s)
	}
	f.flush()
	f.buf.Append(Edge{Kind: KindStop})
	return &UnresolvedWorkflow{Table: table, Main: f.buf, Funcs: funcs}, f.errs.err()
}

func (f *flattener) emit(is ...EdgeInstr) { f.cur = append(f.cur, is...) }

// flush appends the pending instructions as a Linear edge falling through
// to whatever edge is appended next.
func (f *flattener) flush() {
	if len(f.cur) == 0 {
		return
	}
	next := To(f.buf.Len() + 1)
	f.buf.Append(Edge{Kind: KindLinear, Instrs: f.cur, Next: &next})
	f.cur = nil
}

// jump appends the pending instructions (possibly none) as a Linear edge
// jumping to the label.
func (f *flattener) jump(l Label) {
	t := At(l)
	f.buf.Append(Edge{Kind: KindLinear, Instrs: f.cur, Next: &t})
	f.cur = nil
}

// internalf records a lowering failure, which indicates a bug in an
// earlier pass rather than a user error.
func (f *flattener) internalf(rng dsl.TextRange, format string, args ...any) {
	f.errs.errorf(f.file, rng, CodeInternal, format, args...)
}

func (f *flattener) stmt(s dsl.Stmt) {
	switch s := s.(type) {
	case *dsl.ImportStmt:
		// no runtime effect
	case *dsl.FuncDefStmt:
		f.funcDef(s)
	case *dsl.ClassDefStmt:
		for _, m := range s.Defs {
			f.funcDef(m)
		}
	case *dsl.Block:
		f.block(s)
	case *dsl.LetStmt:
		f.expr(s.Value)
		f.emit(
			EdgeInstr{Kind: InstrVarDec, Def: s.Name.Def},
			EdgeInstr{Kind: InstrVarSet, Def: s.Name.Def},
		)
	case *dsl.AssignStmt:
		switch t := s.Target.(type) {
		case *dsl.Ident:
			f.expr(s.Value)
			f.emit(EdgeInstr{Kind: InstrVarSet, Def: t.Def})
		default:
			f.errs.errorf(f.file, s.Span(), CodeIllegalStatement,
				"cannot assign to %s; fields are immutable after construction", exprDesc(s.Target))
		}
	case *dsl.ReturnStmt:
		if s.Value != nil {
			f.expr(s.Value)
		}
		f.flush()
		f.buf.Append(Edge{Kind: KindReturn})
	case *dsl.IfStmt:
		f.ifStmt(s)
	case *dsl.WhileStmt:
		f.loop(s.Cond, s.Body, nil)
	case *dsl.ForStmt:
		f.stmt(s.Init)
		f.loop(s.Cond, s.Body, s.Step)
		if let, ok := s.Init.(*dsl.LetStmt); ok {
			f.emit(EdgeInstr{Kind: InstrVarUndec, Def: let.Name.Def})
		}
	case *dsl.OnStmt:
		// location restrictions were applied by the location pass
		f.block(s.Body)
	case *dsl.ParallelStmt:
		f.parallel(s)
	case *dsl.ExprStmt:
		// Bracket the expression with a stack marker so any value it may
		// leave behind is dropped without knowing its arity statically.
		f.emit(EdgeInstr{Kind: InstrPopMarker})
		f.expr(s.X)
		f.emit(EdgeInstr{Kind: InstrDynamicPop})
	default:
		f.internalf(s.Span(), "cannot lower statement %T", s)
	}
}

func (f *flattener) block(b *dsl.Block) {
	for _, s := range b.Stmts {
		f.stmt(s)
	}
	for i := len(b.Locals) - 1; i >= 0; i-- {
		f.emit(EdgeInstr{Kind: InstrVarUndec, Def: b.Locals[i]})
	}
}

func (f *flattener) ifStmt(s *dsl.IfStmt) {
	trueL := f.buf.NewLabel()
	mergeL := f.buf.NewLabel()
	falseL := mergeL
	if s.False != nil {
		falseL = f.buf.NewLabel()
	}

	f.condition(s.Cond)
	f.flush()
	tt, ft, mt := At(trueL), At(falseL), At(mergeL)
	f.buf.Append(Edge{Kind: KindBranch, True: &tt, False: &ft, Merge: &mt})

	f.buf.Bind(trueL)
	f.block(s.True)
	f.jump(mergeL)
	if s.False != nil {
		f.buf.Bind(falseL)
		f.block(s.False)
		f.jump(mergeL)
	}
	f.buf.Bind(mergeL)
}

// loop lowers while and for loops: a Loop edge marking the construct, the
// condition feeding a Branch, and the body jumping back to the condition.
func (f *flattener) loop(cond dsl.Expr, body *dsl.Block, step dsl.Stmt) {
	condL := f.buf.NewLabel()
	bodyL := f.buf.NewLabel()
	nextL := f.buf.NewLabel()

	f.flush()
	ct, bt, nt := At(condL), At(bodyL), At(nextL)
	f.buf.Append(Edge{Kind: KindLoop, Cond: &ct, Body: &bt, Next: &nt})

	f.buf.Bind(condL)
	f.condition(cond)
	f.flush()
	bt2, nt2 := At(bodyL), At(nextL)
	f.buf.Append(Edge{Kind: KindBranch, True: &bt2, False: &nt2})

	f.buf.Bind(bodyL)
	f.block(body)
	if step != nil {
		f.stmt(step)
	}
	f.jump(condL)
	f.buf.Bind(nextL)
}

// parallel compiles each branch body as an anonymous function and emits a
// Parallel edge forking them, immediately joined under the statement's
// merge strategy.
func (f *flattener) parallel(s *dsl.ParallelStmt) {
	defs := make([]int, len(s.Branches))
	for i, b := range s.Branches {
		def := f.table.Funcs.Push(FunctionDef{
			Name: fmt.Sprintf("parallel$%d", f.table.Funcs.Len()),
			Ret:  dsl.Any(),
		})
		defs[i] = def

		sub := &flattener{file: f.file, table: f.table, buf: NewEdgeBuffer(), funcs: f.funcs}
		sub.stmt(b)
		sub.flush()
		sub.buf.Append(Edge{Kind: KindReturn})
		f.errs = append(f.errs, sub.errs...)
		f.funcs[def] = sub.buf
	}
	s.BranchFuncs = defs

	strategy := ParseMergeStrategy(s.Strategy)
	if s.Strategy == "" {
		strategy = MergeNone
		if s.Result != nil {
			strategy = MergeAll
		}
	}

	f.flush()
	mt := To(f.buf.Len() + 1)
	f.buf.Append(Edge{Kind: KindParallel, Branches: defs, Merge: &mt})
	nt := To(f.buf.Len() + 1)
	f.buf.Append(Edge{Kind: KindJoin, Strategy: strategy, Next: &nt})

	switch {
	case s.Result != nil:
		f.emit(
			EdgeInstr{Kind: InstrVarDec, Def: s.Def},
			EdgeInstr{Kind: InstrVarSet, Def: s.Def},
		)
	case strategy != MergeNone:
		f.emit(EdgeInstr{Kind: InstrPop})
	}
}

// funcDef lowers a function body into its own buffer. The prologue moves
// the arguments from the stack into the register, last argument first.
func (f *flattener) funcDef(s *dsl.FuncDefStmt) {
	sub := &flattener{file: f.file, table: f.table, buf: NewEdgeBuffer(), funcs: f.funcs}
	for i := len(s.Params) - 1; i >= 0; i-- {
		sub.emit(
			EdgeInstr{Kind: InstrVarDec, Def: s.Params[i].Def},
			EdgeInstr{Kind: InstrVarSet, Def: s.Params[i].Def},
		)
	}
	sub.block(s.Body)
	sub.flush()
	sub.buf.Append(Edge{Kind: KindReturn})
	f.errs = append(f.errs, sub.errs...)
	f.funcs[s.Def] = sub.buf
}

// condition lowers a control-flow condition, coercing to Boolean when the
// static type leaves room for doubt.
func (f *flattener) condition(e dsl.Expr) {
	f.expr(e)
	if e.Type().Kind != dsl.TBool {
		to := dsl.Bool()
		f.emit(EdgeInstr{Kind: InstrCast, Type: &to})
	}
}

// cast emits a Cast when a value of type from must flow into a slot of
// type to.
func (f *flattener) cast(from, to dsl.DataType) {
	if to.IsAny() || from.Equal(to) {
		return
	}
	t := to
	f.emit(EdgeInstr{Kind: InstrCast, Type: &t})
}

func (f *flattener) expr(e dsl.Expr) {
	switch e := e.(type) {
	case *dsl.Ident:
		f.emit(EdgeInstr{Kind: InstrVarGet, Def: e.Def})
	case *dsl.Literal:
		f.literal(e)
	case *dsl.CallExpr:
		f.call(e)
	case *dsl.ArrayExpr:
		for _, el := range e.Elems {
			f.expr(el)
		}
		t := e.Type()
		f.emit(EdgeInstr{Kind: InstrArray, Len: len(e.Elems), Type: &t})
	case *dsl.IndexExpr:
		f.expr(e.X)
		f.expr(e.Index)
		f.cast(e.Index.Type(), dsl.Int())
		t := e.Type()
		f.emit(EdgeInstr{Kind: InstrArrayIndex, Type: &t})
	case *dsl.UnaryExpr:
		f.expr(e.X)
		switch e.Op {
		case dsl.NOT:
			f.emit(EdgeInstr{Kind: InstrNot})
		case dsl.MINUS:
			f.emit(EdgeInstr{Kind: InstrNeg})
		}
	case *dsl.BinaryExpr:
		f.expr(e.X)
		f.expr(e.Y)
		f.emit(EdgeInstr{Kind: binaryInstr(e.Op)})
	case *dsl.ProjExpr:
		f.expr(e.X)
		f.emit(EdgeInstr{Kind: InstrProj, Field: e.Name.Name})
	case *dsl.InstanceExpr:
		f.instance(e)
	default:
		f.internalf(e.Span(), "cannot lower expression %T", e)
	}
}

func (f *flattener) literal(e *dsl.Literal) {
	switch e.Kind {
	case dsl.LitBool:
		f.emit(EdgeInstr{Kind: InstrBoolean, Bool: e.Bool})
	case dsl.LitInt:
		f.emit(EdgeInstr{Kind: InstrInteger, Int: e.Int})
	case dsl.LitReal:
		f.emit(EdgeInstr{Kind: InstrReal, Real: e.Real})
	case dsl.LitString:
		f.emit(EdgeInstr{Kind: InstrString, Str: e.Str})
	case dsl.LitSemver:
		// version values travel as strings
		f.emit(EdgeInstr{Kind: InstrString, Str: e.Raw})
	case dsl.LitNull:
		f.emit(EdgeInstr{Kind: InstrNull})
	}
}

// instance pushes the property values in class declaration order, then
// builds the instance in a single instruction.
func (f *flattener) instance(e *dsl.InstanceExpr) {
	if !f.table.Classes.Has(e.Def) {
		f.internalf(e.Span(), "instance of unresolved class")
		return
	}
	def := f.table.Classes.At(e.Def)
	byName := make(map[string]dsl.Expr, len(e.Props))
	for _, p := range e.Props {
		byName[p.Name.Name] = p.Value
	}
	for _, prop := range def.Props {
		v, ok := byName[prop.Name]
		if !ok {
			f.internalf(e.Span(), "instance of %s is missing property %s", def.Name, prop.Name)
			return
		}
		f.expr(v)
		f.cast(v.Type(), prop.Type)
	}
	f.emit(EdgeInstr{Kind: InstrInstance, Def: e.Def})
}

// call lowers a call. Script functions and builtins become a Function
// push followed by a Call edge; external tasks become a Node edge that
// consumes its arguments directly from the stack.
func (f *flattener) call(e *dsl.CallExpr) {
	if e.IsTask {
		f.taskCall(e)
		return
	}
	if !f.table.Funcs.Has(e.Def) {
		f.internalf(e.Span(), "call to unresolved function")
		return
	}
	sig := f.table.Funcs.At(e.Def).Args

	args := e.Args
	if prj, ok := e.Fn.(*dsl.ProjExpr); ok {
		// method call: the receiver is the first argument
		args = append([]dsl.Expr{prj.X}, args...)
	}
	for i, a := range args {
		f.expr(a)
		if i < len(sig) {
			f.cast(a.Type(), sig[i])
		}
	}
	f.emit(EdgeInstr{Kind: InstrFunction, Def: e.Def})

	f.flush()
	next := To(f.buf.Len() + 1)
	f.buf.Append(Edge{Kind: KindCall, Next: &next})
}

func (f *flattener) taskCall(e *dsl.CallExpr) {
	if !f.table.Tasks.Has(e.Def) {
		f.internalf(e.Span(), "call to unresolved task")
		return
	}
	task := f.table.Tasks.At(e.Def)
	for i, a := range e.Args {
		f.expr(a)
		if i < len(task.Args) {
			f.cast(a.Type(), task.Args[i])
		}
	}
	f.flush()
	next := To(f.buf.Len() + 1)
	f.buf.Append(Edge{
		Kind:   KindNode,
		Task:   e.Def,
		Locs:   e.Locs,
		Input:  dataInputs(e.Args),
		Result: e.Result,
		Next:   &next,
	})
}

// dataInputs collects the datasets and intermediate results a task call
// consumes, as far as they are statically visible.
func dataInputs(args []dsl.Expr) []DataName {
	var in []DataName
	for _, a := range args {
		switch a := a.(type) {
		case *dsl.InstanceExpr:
			if a.Type().Equal(dsl.Data()) {
				for _, p := range a.Props {
					if lit, ok := p.Value.(*dsl.Literal); ok && p.Name.Name == "name" && lit.Kind == dsl.LitString {
						in = append(in, DataRef(lit.Str))
					}
				}
			}
		case *dsl.CallExpr:
			if a.Result != "" {
				in = append(in, ResultRef(a.Result))
			}
		}
	}
	return in
}

func binaryInstr(op dsl.TokenKind) InstrKind {
	switch op {
	case dsl.AND:
		return InstrAnd
	case dsl.OR:
		return InstrOr
	case dsl.EQ:
		return InstrEq
	case dsl.NE:
		return InstrNe
	case dsl.LT:
		return InstrLt
	case dsl.LE:
		return InstrLe
	case dsl.GT:
		return InstrGt
	case dsl.GE:
		return InstrGe
	case dsl.PLUS:
		return InstrAdd
	case dsl.MINUS:
		return InstrSub
	case dsl.STAR:
		return InstrMul
	case dsl.SLASH:
		return InstrDiv
	case dsl.PERCENT:
		return InstrMod
	}
	return InstrPop // unreachable for well-formed trees
}
