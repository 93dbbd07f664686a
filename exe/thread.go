package exe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/marinoandrea/brane/ast"
)

// A thread executes one strand of control flow: the main program, a
// called function, or one forked parallel branch. Each thread owns its
// stack and frame stack; forked threads start with an empty stack and a
// deep copy of the frames, so branches never observe each other's
// writes and never inherit pending operands from the forking thread.
type thread struct {
	vm     *VM
	w      *ast.Workflow
	stack  *Stack
	frames *FrameStack
	pc     pc

	// base is the frame depth at which a Return edge ends the thread
	// instead of popping a frame.
	base int

	// joined carries branch results between a Parallel edge and its Join.
	joined *parallelResults
}

type parallelResults struct {
	values []Value
	done   []bool
	order  []int // branch indices in completion order
}

// run walks edges until the thread stops, returning its final value.
func (t *thread) run(ctx context.Context) (Value, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Value{}, err
		}
		edges := t.w.FuncEdges(t.pc.fn)
		if t.pc.edge < 0 || t.pc.edge >= len(edges) {
			return Value{}, errf(ErrIllFormed, "edge %d out of bounds in function %d", t.pc.edge, t.pc.fn)
		}
		e := &edges[t.pc.edge]
		switch e.Kind {
		case ast.KindLinear:
			if err := t.instrs(ctx, e.Instrs); err != nil {
				return Value{}, err
			}
			t.pc.edge = e.Next.Index

		case ast.KindStop:
			return Void(), nil

		case ast.KindBranch:
			v, err := t.stack.Pop()
			if err != nil {
				return Value{}, err
			}
			b, err := v.Truthy()
			if err != nil {
				return Value{}, err
			}
			if b {
				t.pc.edge = e.True.Index
			} else {
				if e.False == nil {
					return Value{}, errf(ErrIllFormed, "branch edge without a false target")
				}
				t.pc.edge = e.False.Index
			}

		case ast.KindLoop:
			t.pc.edge = e.Cond.Index

		case ast.KindCall:
			if err := t.call(ctx, e); err != nil {
				return Value{}, err
			}

		case ast.KindReturn:
			if t.frames.Depth() <= t.base {
				if t.stack.Empty() {
					return Void(), nil
				}
				return t.stack.Pop()
			}
			ret, err := t.frames.Pop()
			if err != nil {
				return Value{}, err
			}
			t.pc = ret

		case ast.KindNode:
			if err := t.node(ctx, e); err != nil {
				return Value{}, err
			}
			t.pc.edge = e.Next.Index

		case ast.KindParallel:
			if err := t.parallel(ctx, e); err != nil {
				return Value{}, err
			}
			t.pc.edge = e.Merge.Index

		case ast.KindJoin:
			if err := t.join(e); err != nil {
				return Value{}, err
			}
			t.pc.edge = e.Next.Index

		default:
			return Value{}, errf(ErrIllFormed, "unknown edge kind %q", e.Kind)
		}
	}
}

// call handles a Call edge: the function value on top of the stack is
// either a builtin, executed inline, or a script function, entered by
// pushing a frame.
func (t *thread) call(ctx context.Context, e *ast.Edge) error {
	fv, err := t.stack.Pop()
	if err != nil {
		return err
	}
	if fv.Kind != KindFunction {
		return errf(ErrTypeMismatch, "cannot call a %s", fv.Type())
	}
	if ast.IsBuiltinFunc(fv.Func) {
		if err := t.builtin(ctx, fv.Func); err != nil {
			return err
		}
		t.pc.edge = e.Next.Index
		return nil
	}
	if _, ok := t.w.Funcs[fv.Func]; !ok {
		return errf(ErrIllFormed, "call to unknown function %d", fv.Func)
	}
	t.frames.Push(fv.Func, pc{fn: t.pc.fn, edge: e.Next.Index})
	t.pc = pc{fn: fv.Func, edge: 0}
	return nil
}

func (t *thread) builtin(ctx context.Context, def int) error {
	switch def {
	case ast.BuiltinPrint, ast.BuiltinPrintln:
		v, err := t.stack.Pop()
		if err != nil {
			return err
		}
		if def == ast.BuiltinPrintln {
			t.vm.printf("%s\n", v.String())
		} else {
			t.vm.printf("%s", v.String())
		}
	case ast.BuiltinLen:
		v, err := t.stack.Pop()
		if err != nil {
			return err
		}
		if v.Kind != KindArray {
			return errf(ErrTypeMismatch, "len requires an Array, got %s", v.Type())
		}
		t.stack.Push(Int(int64(len(v.Elems))))
	case ast.BuiltinCommitResult:
		result, err := t.stack.Pop()
		if err != nil {
			return err
		}
		name, err := t.stack.Pop()
		if err != nil {
			return err
		}
		if name.Kind != KindString {
			return errf(ErrTypeMismatch, "commit_result requires a String name, got %s", name.Type())
		}
		data, err := t.vm.runner.Commit(ctx, name.Str, result)
		if err != nil {
			return &RuntimeError{Code: ErrTask, Msg: fmt.Sprintf("commit of %q failed", name.Str), Err: err}
		}
		t.stack.Push(data)
	default:
		return errf(ErrIllFormed, "unknown builtin %d", def)
	}
	return nil
}

// node handles a Node edge: pop the arguments, hand the call to the task
// runner and push the checked result.
func (t *thread) node(ctx context.Context, e *ast.Edge) error {
	if !t.w.Table.Tasks.Has(e.Task) {
		return errf(ErrIllFormed, "node references unknown task %d", e.Task)
	}
	task := t.w.Table.Tasks.At(e.Task)
	args, err := t.stack.PopN(len(task.Args))
	if err != nil {
		return err
	}
	named := make(map[string]Value, len(args))
	for i, v := range args {
		name := fmt.Sprintf("arg%d", i)
		if i < len(task.ArgNames) {
			name = task.ArgNames[i]
		}
		named[name] = v
	}
	loc := e.At
	if loc == "" && e.Locs != nil {
		if x, ok := e.Locs.Exact(); ok {
			loc = x
		}
	}

	t.vm.setStatus(StatusSuspendedOnCall)
	v, err := t.vm.runner.Execute(ctx, TaskInfo{
		CallID:   uuid.NewString(),
		Package:  task.Package,
		Version:  task.Version,
		Name:     task.Name,
		Location: loc,
		Args:     named,
		Input:    e.Input,
		Result:   e.Result,
	})
	t.vm.setStatus(StatusRunning)
	if err != nil {
		return &RuntimeError{Code: ErrTask, Msg: fmt.Sprintf("task %s failed", task.Name), Err: err}
	}
	if task.Ret.IsVoid() {
		return nil
	}
	checked, err := v.Cast(task.Ret)
	if err != nil {
		return errf(ErrTypeMismatch, "task %s returned a %s, expected %s", task.Name, v.Type(), task.Ret)
	}
	t.stack.Push(checked)
	return nil
}

// parallel forks one thread per branch and waits for them according to
// the merge strategy of the Join edge at the merge point. With the
// "first" strategy the siblings are cancelled as soon as a winner
// finishes; an already-dispatched external task is not aborted, its
// eventual result is simply ignored.
func (t *thread) parallel(ctx context.Context, e *ast.Edge) error {
	strategy := ast.MergeNone
	if e.Merge != nil {
		edges := t.w.FuncEdges(t.pc.fn)
		if e.Merge.Index >= 0 && e.Merge.Index < len(edges) && edges[e.Merge.Index].Kind == ast.KindJoin {
			strategy = edges[e.Merge.Index].Strategy
		}
	}

	res := &parallelResults{
		values: make([]Value, len(e.Branches)),
		done:   make([]bool, len(e.Branches)),
	}
	var mu sync.Mutex

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(pctx)
	for i, def := range e.Branches {
		i, def := i, def
		bt := &thread{
			vm:     t.vm,
			w:      t.w,
			stack:  &Stack{},
			frames: t.frames.fork(),
			pc:     pc{fn: def, edge: 0},
		}
		bt.base = bt.frames.Depth()
		g.Go(func() error {
			v, err := bt.run(gctx)
			if err != nil {
				if strategy == ast.MergeFirst && errors.Is(err, context.Canceled) {
					return nil // lost the race
				}
				return err
			}
			mu.Lock()
			res.values[i] = v
			res.done[i] = true
			res.order = append(res.order, i)
			mu.Unlock()
			if strategy == ast.MergeFirst {
				cancel()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	t.joined = res
	return nil
}

// join merges the branch results stored by the preceding Parallel edge.
func (t *thread) join(e *ast.Edge) error {
	res := t.joined
	t.joined = nil
	if res == nil {
		return errf(ErrIllFormed, "join edge without a preceding parallel")
	}
	switch e.Strategy {
	case ast.MergeNone, "":
		return nil
	case ast.MergeFirst, ast.MergeFirstBlocking:
		if len(res.order) == 0 {
			return errf(ErrIllFormed, "no parallel branch produced a value")
		}
		t.stack.Push(res.values[res.order[0]])
	case ast.MergeLast:
		if len(res.order) == 0 {
			return errf(ErrIllFormed, "no parallel branch produced a value")
		}
		t.stack.Push(res.values[res.order[len(res.order)-1]])
	case ast.MergeAll:
		// declaration order, regardless of completion order
		elems := make([]Value, len(res.values))
		for i, v := range res.values {
			if !res.done[i] {
				return errf(ErrIllFormed, "parallel branch %d produced no value", i)
			}
			elems[i] = v
		}
		t.stack.Push(ArrayOf(elems...))
	case ast.MergeSum, ast.MergeProduct, ast.MergeMax, ast.MergeMin:
		v, err := foldNumeric(e.Strategy, res)
		if err != nil {
			return err
		}
		t.stack.Push(v)
	default:
		return errf(ErrIllFormed, "unknown merge strategy %q", e.Strategy)
	}
	return nil
}

// foldNumeric combines numeric branch results in declaration order. The
// result is an Integer unless any branch produced a Real.
func foldNumeric(strategy ast.MergeStrategy, res *parallelResults) (Value, error) {
	if len(res.values) == 0 {
		return Value{}, errf(ErrIllFormed, "numeric merge over zero branches")
	}
	real := false
	ints := make([]int64, len(res.values))
	reals := make([]float64, len(res.values))
	for i, v := range res.values {
		if !res.done[i] {
			return Value{}, errf(ErrIllFormed, "parallel branch %d produced no value", i)
		}
		switch v.Kind {
		case KindInt:
			ints[i] = v.Int
			reals[i] = float64(v.Int)
		case KindReal:
			real = true
			reals[i] = v.Real
		default:
			return Value{}, errf(ErrTypeMismatch,
				"merge strategy %s requires numeric branches, branch %d produced a %s", strategy, i, v.Type())
		}
	}
	if real {
		acc := reals[0]
		for _, r := range reals[1:] {
			switch strategy {
			case ast.MergeSum:
				acc += r
			case ast.MergeProduct:
				acc *= r
			case ast.MergeMax:
				if r > acc {
					acc = r
				}
			case ast.MergeMin:
				if r < acc {
					acc = r
				}
			}
		}
		return Real(acc), nil
	}
	acc := ints[0]
	for _, n := range ints[1:] {
		switch strategy {
		case ast.MergeSum:
			acc += n
		case ast.MergeProduct:
			acc *= n
		case ast.MergeMax:
			if n > acc {
				acc = n
			}
		case ast.MergeMin:
			if n < acc {
				acc = n
			}
		}
	}
	return Int(acc), nil
}

// instrs executes one Linear edge's instruction block.
func (t *thread) instrs(ctx context.Context, instrs []ast.EdgeInstr) error {
	_ = ctx
	for ip := 0; ip < len(instrs); ip++ {
		in := &instrs[ip]
		switch in.Kind {
		case ast.InstrCast:
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			cast, err := v.Cast(*in.Type)
			if err != nil {
				return err
			}
			t.stack.Push(cast)

		case ast.InstrPop:
			if _, err := t.stack.Pop(); err != nil {
				return err
			}
		case ast.InstrPopMarker:
			t.stack.PushMarker()
		case ast.InstrDynamicPop:
			if err := t.stack.DynamicPop(); err != nil {
				return err
			}

		case ast.InstrBranch, ast.InstrBranchNot:
			// The compiler lowers control flow to Branch edges, not to
			// these instructions; they occur only in workflows produced
			// elsewhere and loaded from JSON.
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			b, err := v.Truthy()
			if err != nil {
				return err
			}
			if in.Kind == ast.InstrBranchNot {
				b = !b
			}
			if b {
				ip += in.Offset - 1
				if ip < -1 || ip >= len(instrs) {
					return errf(ErrIllFormed, "instruction branch out of bounds")
				}
			}

		case ast.InstrNot:
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			b, err := v.Truthy()
			if err != nil {
				return err
			}
			t.stack.Push(Bool(!b))
		case ast.InstrNeg:
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			switch v.Kind {
			case KindInt:
				t.stack.Push(Int(-v.Int))
			case KindReal:
				t.stack.Push(Real(-v.Real))
			default:
				return errf(ErrTypeMismatch, "cannot negate a %s", v.Type())
			}

		case ast.InstrAnd, ast.InstrOr, ast.InstrAdd, ast.InstrSub, ast.InstrMul,
			ast.InstrDiv, ast.InstrMod, ast.InstrEq, ast.InstrNe,
			ast.InstrLt, ast.InstrLe, ast.InstrGt, ast.InstrGe:
			b, err := t.stack.Pop()
			if err != nil {
				return err
			}
			a, err := t.stack.Pop()
			if err != nil {
				return err
			}
			v, err := binaryOp(in.Kind, a, b)
			if err != nil {
				return err
			}
			t.stack.Push(v)

		case ast.InstrArray:
			elems, err := t.stack.PopN(in.Len)
			if err != nil {
				return err
			}
			t.stack.Push(ArrayOf(elems...))
		case ast.InstrArrayIndex:
			idx, err := t.stack.Pop()
			if err != nil {
				return err
			}
			arr, err := t.stack.Pop()
			if err != nil {
				return err
			}
			if arr.Kind != KindArray {
				return errf(ErrTypeMismatch, "cannot index a %s", arr.Type())
			}
			if idx.Kind != KindInt {
				return errf(ErrTypeMismatch, "array index must be an Integer, got %s", idx.Type())
			}
			if idx.Int < 0 || idx.Int >= int64(len(arr.Elems)) {
				return errf(ErrOutOfBounds, "index %d out of bounds for array of length %d", idx.Int, len(arr.Elems))
			}
			t.stack.Push(arr.Elems[idx.Int])

		case ast.InstrInstance:
			if !t.w.Table.Classes.Has(in.Def) {
				return errf(ErrIllFormed, "instance of unknown class %d", in.Def)
			}
			cls := t.w.Table.Classes.At(in.Def)
			vals, err := t.stack.PopN(len(cls.Props))
			if err != nil {
				return err
			}
			props := make(map[string]Value, len(vals))
			for i, p := range cls.Props {
				props[p.Name] = vals[i]
			}
			t.stack.Push(Instance(cls.Name, props))
		case ast.InstrProj:
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			if v.Kind != KindInstance {
				return errf(ErrTypeMismatch, "cannot project a field of a %s", v.Type())
			}
			p, ok := v.Props[in.Field]
			if !ok {
				return errf(ErrUnknownField, "instance of %s has no field %s", v.Class, in.Field)
			}
			t.stack.Push(p)

		case ast.InstrVarDec:
			if err := t.frames.Reg().Declare(in.Def, t.varName(in.Def)); err != nil {
				return err
			}
		case ast.InstrVarUndec:
			if err := t.frames.Reg().Delete(in.Def); err != nil {
				return err
			}
		case ast.InstrVarGet:
			v, err := t.frames.Reg().Load(in.Def)
			if err != nil {
				return err
			}
			t.stack.Push(v)
		case ast.InstrVarSet:
			v, err := t.stack.Pop()
			if err != nil {
				return err
			}
			if err := t.frames.Reg().Store(in.Def, v); err != nil {
				return err
			}

		case ast.InstrNull:
			t.stack.Push(Null())
		case ast.InstrBoolean:
			t.stack.Push(Bool(in.Bool))
		case ast.InstrInteger:
			t.stack.Push(Int(in.Int))
		case ast.InstrReal:
			t.stack.Push(Real(in.Real))
		case ast.InstrString:
			t.stack.Push(Str(in.Str))
		case ast.InstrFunction:
			t.stack.Push(FuncRef(in.Def))

		default:
			return errf(ErrIllFormed, "unknown instruction %q", in.Kind)
		}
	}
	return nil
}

func (t *thread) varName(def int) string {
	if t.w.Table.Vars.Has(def) {
		return t.w.Table.Vars.At(def).Name
	}
	return fmt.Sprintf("v%d", def)
}

func binaryOp(kind ast.InstrKind, a, b Value) (Value, error) {
	switch kind {
	case ast.InstrAnd, ast.InstrOr:
		ab, err := a.Truthy()
		if err != nil {
			return Value{}, err
		}
		bb, err := b.Truthy()
		if err != nil {
			return Value{}, err
		}
		if kind == ast.InstrAnd {
			return Bool(ab && bb), nil
		}
		return Bool(ab || bb), nil

	case ast.InstrEq:
		return Bool(a.Equal(b)), nil
	case ast.InstrNe:
		return Bool(!a.Equal(b)), nil
	}

	// + doubles as string concatenation
	if kind == ast.InstrAdd && (a.Kind == KindString || b.Kind == KindString) {
		return Str(a.String() + b.String()), nil
	}

	if a.Kind == KindString && b.Kind == KindString {
		switch kind {
		case ast.InstrLt:
			return Bool(a.Str < b.Str), nil
		case ast.InstrLe:
			return Bool(a.Str <= b.Str), nil
		case ast.InstrGt:
			return Bool(a.Str > b.Str), nil
		case ast.InstrGe:
			return Bool(a.Str >= b.Str), nil
		}
	}

	numeric := func(v Value) (float64, bool, error) {
		switch v.Kind {
		case KindInt:
			return float64(v.Int), true, nil
		case KindReal:
			return v.Real, false, nil
		}
		return 0, false, errf(ErrTypeMismatch, "operator %s requires numbers, got %s", kind, v.Type())
	}
	af, aInt, err := numeric(a)
	if err != nil {
		return Value{}, err
	}
	bf, bInt, err := numeric(b)
	if err != nil {
		return Value{}, err
	}

	switch kind {
	case ast.InstrLt:
		return Bool(af < bf), nil
	case ast.InstrLe:
		return Bool(af <= bf), nil
	case ast.InstrGt:
		return Bool(af > bf), nil
	case ast.InstrGe:
		return Bool(af >= bf), nil
	}

	if aInt && bInt {
		switch kind {
		case ast.InstrAdd:
			return Int(a.Int + b.Int), nil
		case ast.InstrSub:
			return Int(a.Int - b.Int), nil
		case ast.InstrMul:
			return Int(a.Int * b.Int), nil
		case ast.InstrDiv:
			if b.Int == 0 {
				return Value{}, errf(ErrDivideByZero, "integer division by zero")
			}
			return Int(a.Int / b.Int), nil
		case ast.InstrMod:
			if b.Int == 0 {
				return Value{}, errf(ErrDivideByZero, "modulo by zero")
			}
			return Int(a.Int % b.Int), nil
		}
	}
	switch kind {
	case ast.InstrAdd:
		return Real(af + bf), nil
	case ast.InstrSub:
		return Real(af - bf), nil
	case ast.InstrMul:
		return Real(af * bf), nil
	case ast.InstrDiv:
		return Real(af / bf), nil
	case ast.InstrMod:
		return Value{}, errf(ErrTypeMismatch, "operator %% requires Integers")
	}
	return Value{}, errf(ErrIllFormed, "unknown operator %q", kind)
}
