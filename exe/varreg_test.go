package exe

import (
	"errors"
	"testing"
)

func wantCode(t *testing.T, err error, code ErrCode) {
	t.Helper()
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("got %v, want a runtime error with code %s", err, code)
	}
	if re.Code != code {
		t.Errorf("got code %s (%s), want %s", re.Code, re.Msg, code)
	}
}

func TestRegisterLifecycle(t *testing.T) {
	r := NewVariableRegister()

	if err := r.Declare(0, "x"); err != nil {
		t.Fatal(err)
	}
	wantCode(t, r.Declare(0, "x"), ErrDuplicateDeclaration)

	// Declared but never stored.
	_, err := r.Load(0)
	wantCode(t, err, ErrUninitializedVariable)

	if err := r.Store(0, Int(42)); err != nil {
		t.Fatal(err)
	}
	v, err := r.Load(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 42 {
		t.Errorf("loaded %s, want 42", v)
	}

	if err := r.Delete(0); err != nil {
		t.Fatal(err)
	}
	_, err = r.Load(0)
	wantCode(t, err, ErrUndeclaredVariable)
	wantCode(t, r.Store(0, Int(1)), ErrUndeclaredVariable)
	wantCode(t, r.Delete(0), ErrUndeclaredVariable)

	// A deleted slot may be redeclared by a later block.
	if err := r.Declare(0, "x"); err != nil {
		t.Errorf("redeclare after delete: %v", err)
	}
}

func TestRegisterFork(t *testing.T) {
	r := NewVariableRegister()
	r.Declare(0, "x")
	r.Store(0, Int(1))

	f := r.fork()
	f.Store(0, Int(2))
	f.Declare(1, "y")

	v, err := r.Load(0)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int != 1 {
		t.Errorf("fork write leaked into the original: x = %s, want 1", v)
	}
	if r.Has(1) {
		t.Error("fork declaration leaked into the original")
	}
}
