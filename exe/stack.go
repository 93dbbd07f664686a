package exe

// A Stack is the expression value stack of one thread. Values are pushed
// by Linear instructions and consumed by operators, calls and task nodes.
type Stack struct {
	vals []Value
}

func (s *Stack) Push(v Value) { s.vals = append(s.vals, v) }

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, error) {
	if len(s.vals) == 0 {
		return Value{}, errf(ErrEmptyStack, "pop from an empty stack")
	}
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	if v.Kind == kindMarker {
		return Value{}, errf(ErrEmptyStack, "pop hit a stack marker")
	}
	return v, nil
}

// PopN removes the top n values and returns them in push order.
func (s *Stack) PopN(n int) ([]Value, error) {
	out := make([]Value, n)
	for i := n - 1; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// PushMarker marks the current stack depth for a later DynamicPop.
func (s *Stack) PushMarker() { s.vals = append(s.vals, Value{Kind: kindMarker}) }

// DynamicPop discards values down to and including the topmost marker,
// for expressions whose net stack effect is unknown statically.
func (s *Stack) DynamicPop() error {
	for i := len(s.vals) - 1; i >= 0; i-- {
		if s.vals[i].Kind == kindMarker {
			s.vals = s.vals[:i]
			return nil
		}
	}
	return errf(ErrEmptyStack, "dynamic pop without a stack marker")
}

// Len returns the number of values on the stack, markers included.
func (s *Stack) Len() int { return len(s.vals) }

// Empty reports whether no real value is on the stack.
func (s *Stack) Empty() bool {
	for _, v := range s.vals {
		if v.Kind != kindMarker {
			return false
		}
	}
	return true
}
