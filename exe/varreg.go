package exe

// A VariableRegister holds the block and function locals of one frame.
// Unlike the expression stack, its slots persist across edges: a slot is
// created by declare, filled by store, read by load and removed by delete
// when its block exits.
type VariableRegister struct {
	slots map[int]*varSlot
}

type varSlot struct {
	name  string
	value *Value // nil while declared but not yet stored
}

// NewVariableRegister returns an empty register.
func NewVariableRegister() *VariableRegister {
	return &VariableRegister{slots: make(map[int]*varSlot)}
}

// Declare creates an empty slot for the variable.
func (r *VariableRegister) Declare(def int, name string) error {
	if _, dup := r.slots[def]; dup {
		return errf(ErrDuplicateDeclaration, "variable %s (%d) is already declared", name, def)
	}
	r.slots[def] = &varSlot{name: name}
	return nil
}

// Store sets the value of a previously declared variable.
func (r *VariableRegister) Store(def int, v Value) error {
	slot, ok := r.slots[def]
	if !ok {
		return errf(ErrUndeclaredVariable, "store to undeclared variable %d", def)
	}
	slot.value = &v
	return nil
}

// Load reads the value of a variable, which must have been stored.
func (r *VariableRegister) Load(def int) (Value, error) {
	slot, ok := r.slots[def]
	if !ok {
		return Value{}, errf(ErrUndeclaredVariable, "load of undeclared variable %d", def)
	}
	if slot.value == nil {
		return Value{}, errf(ErrUninitializedVariable, "variable %s is declared but never given a value", slot.name)
	}
	return *slot.value, nil
}

// Delete removes the slot entirely, so the name may be redeclared by a
// later block.
func (r *VariableRegister) Delete(def int) error {
	if _, ok := r.slots[def]; !ok {
		return errf(ErrUndeclaredVariable, "delete of undeclared variable %d", def)
	}
	delete(r.slots, def)
	return nil
}

// Has reports whether the variable is declared.
func (r *VariableRegister) Has(def int) bool {
	_, ok := r.slots[def]
	return ok
}

// fork returns an independent copy for a forked branch thread.
func (r *VariableRegister) fork() *VariableRegister {
	out := NewVariableRegister()
	for def, slot := range r.slots {
		s := &varSlot{name: slot.name}
		if slot.value != nil {
			v := *slot.value
			s.value = &v
		}
		out.slots[def] = s
	}
	return out
}
