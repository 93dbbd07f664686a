package exe

import "github.com/marinoandrea/brane/ast"

// A pc addresses one edge: the function it belongs to (ast.MainFunc for
// the toplevel graph) and the edge index within that buffer.
type pc struct {
	fn   int
	edge int
}

// A frame is one entry of the call stack: the register holding the
// callee's variables and where to continue when it returns.
type frame struct {
	fn  int
	ret pc
	reg *VariableRegister
}

// A FrameStack is the call stack of one thread. The topmost frame is the
// one currently executing; its register is the one variable instructions
// operate on.
type FrameStack struct {
	frames []frame
}

// NewFrameStack returns a stack holding a single toplevel frame around
// the given register.
func NewFrameStack(reg *VariableRegister) *FrameStack {
	return &FrameStack{frames: []frame{{fn: ast.MainFunc, reg: reg}}}
}

// Push enters a function call: a fresh register and the return address.
func (f *FrameStack) Push(fn int, ret pc) {
	f.frames = append(f.frames, frame{fn: fn, ret: ret, reg: NewVariableRegister()})
}

// Pop leaves the current function and returns the saved return address.
func (f *FrameStack) Pop() (pc, error) {
	if len(f.frames) == 0 {
		return pc{}, errf(ErrIllFormed, "return with an empty frame stack")
	}
	top := f.frames[len(f.frames)-1]
	f.frames = f.frames[:len(f.frames)-1]
	return top.ret, nil
}

// Reg returns the register of the executing frame.
func (f *FrameStack) Reg() *VariableRegister {
	return f.frames[len(f.frames)-1].reg
}

// Depth returns the number of frames.
func (f *FrameStack) Depth() int { return len(f.frames) }

// fork returns an independent deep copy for a forked branch thread, so
// a branch sees a snapshot of the variables visible at the fork point but
// its writes never leak back.
func (f *FrameStack) fork() *FrameStack {
	out := &FrameStack{frames: make([]frame, len(f.frames))}
	for i, fr := range f.frames {
		out.frames[i] = frame{fn: fr.fn, ret: fr.ret, reg: fr.reg.fork()}
	}
	return out
}
