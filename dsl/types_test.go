package dsl

import "testing"

func TestDataTypeString(t *testing.T) {
	for _, test := range []struct {
		typ  DataType
		want string
	}{
		{Int(), "Integer"},
		{Array(Real()), "Array<Real>"},
		{Array(Array(Str())), "Array<Array<String>>"},
		{Class("Jedi"), "Jedi"},
		{Data(), "Data"},
	} {
		if got := test.typ.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}

func TestCoercibleTo(t *testing.T) {
	for _, test := range []struct {
		from, to DataType
		want     bool
	}{
		{Int(), Real(), true},
		{Real(), Int(), false},
		{Int(), Bool(), true},
		{Bool(), Int(), true},
		{Str(), Bool(), false},
		{Int(), Str(), true},
		{Data(), Str(), true},
		{Data(), IntermediateResult(), true},
		{IntermediateResult(), Data(), false},
		{Int(), Any(), true},
		{Any(), Int(), true},
		{Array(Int()), Array(Real()), true},
		{Array(Real()), Array(Int()), false},
	} {
		if got := test.from.CoercibleTo(test.to); got != test.want {
			t.Errorf("%s.CoercibleTo(%s) = %v, want %v", test.from, test.to, got, test.want)
		}
	}
}
