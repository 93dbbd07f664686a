package exe

import "testing"

func TestStackPushPop(t *testing.T) {
	s := &Stack{}
	if _, err := s.Pop(); err == nil {
		t.Error("pop from an empty stack succeeded")
	}
	s.Push(Int(1))
	s.Push(Int(2))
	v, err := s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 2 {
		t.Errorf("popped %s, want 2", v)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
}

func TestStackPopN(t *testing.T) {
	s := &Stack{}
	s.Push(Int(1))
	s.Push(Int(2))
	s.Push(Int(3))
	vals, err := s.PopN(2)
	if err != nil {
		t.Fatal(err)
	}
	// PopN returns values in push order, for positional arguments.
	if len(vals) != 2 || vals[0].Int != 2 || vals[1].Int != 3 {
		t.Errorf("PopN(2) = %v, want [2 3]", vals)
	}
	if _, err := s.PopN(2); err == nil {
		t.Error("PopN past the bottom succeeded")
	}
}

func TestStackMarkers(t *testing.T) {
	s := &Stack{}
	s.Push(Int(1))
	s.PushMarker()
	s.Push(Int(2))
	s.Push(Int(3))

	if s.Empty() {
		t.Error("Empty() with real values on the stack")
	}
	if err := s.DynamicPop(); err != nil {
		t.Fatal(err)
	}
	v, err := s.Pop()
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 1 {
		t.Errorf("after DynamicPop the top is %s, want 1", v)
	}
	if err := s.DynamicPop(); err == nil {
		t.Error("DynamicPop without a marker succeeded")
	}

	// A marker is a fence: Pop never crosses it.
	s.PushMarker()
	if _, err := s.Pop(); err == nil {
		t.Error("Pop across a marker succeeded")
	}
	if !s.Empty() {
		t.Error("Empty() should ignore markers")
	}
}
