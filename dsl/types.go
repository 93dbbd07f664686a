package dsl

import (
	"fmt"
	"strings"
)

// A TypeKind discriminates DataType.
type TypeKind string

const (
	// Meta types.
	TAny  TypeKind = "any"  // resolve at runtime
	TVoid TypeKind = "void" // no value
	TNull TypeKind = "null" // uninitialized

	// Scalars.
	TBool   TypeKind = "bool"
	TInt    TypeKind = "int"
	TReal   TypeKind = "real"
	TString TypeKind = "str"
	TSemver TypeKind = "ver"

	// Composites.
	TArray TypeKind = "arr"
	TFunc  TypeKind = "func"
	TClass TypeKind = "class"
)

// A DataType is the static type of a BraneScript expression or variable.
// The zero value is not meaningful; use the constructors below.
type DataType struct {
	Kind TypeKind `json:"k"`

	Elem  *DataType  `json:"e,omitempty"` // element type, if Kind == TArray
	Class string     `json:"c,omitempty"` // class name, if Kind == TClass
	Args  []DataType `json:"a,omitempty"` // argument types, if Kind == TFunc
	Ret   *DataType  `json:"r,omitempty"` // return type, if Kind == TFunc
}

// Builtin class names. Data and IntermediateResult are pre-registered in
// every symbol table before user code is compiled.
const (
	BuiltinData               = "Data"
	BuiltinIntermediateResult = "IntermediateResult"
)

func Any() DataType     { return DataType{Kind: TAny} }
func Void() DataType    { return DataType{Kind: TVoid} }
func Null() DataType    { return DataType{Kind: TNull} }
func Bool() DataType    { return DataType{Kind: TBool} }
func Int() DataType     { return DataType{Kind: TInt} }
func Real() DataType    { return DataType{Kind: TReal} }
func Str() DataType     { return DataType{Kind: TString} }
func Semver() DataType  { return DataType{Kind: TSemver} }
func Array(elem DataType) DataType {
	return DataType{Kind: TArray, Elem: &elem}
}
func Class(name string) DataType { return DataType{Kind: TClass, Class: name} }
func Func(args []DataType, ret DataType) DataType {
	return DataType{Kind: TFunc, Args: args, Ret: &ret}
}

// Data returns the type of a durable dataset handle.
func Data() DataType { return Class(BuiltinData) }

// IntermediateResult returns the type of an uncommitted result handle.
func IntermediateResult() DataType { return Class(BuiltinIntermediateResult) }

func (t DataType) IsVoid() bool { return t.Kind == TVoid }
func (t DataType) IsAny() bool  { return t.Kind == TAny }

// IsNumeric reports whether t is an integer or real type.
func (t DataType) IsNumeric() bool { return t.Kind == TInt || t.Kind == TReal }

// Equal reports structural equality.
func (t DataType) Equal(o DataType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TArray:
		return t.Elem.Equal(*o.Elem)
	case TClass:
		return t.Class == o.Class
	case TFunc:
		if len(t.Args) != len(o.Args) || !t.Ret.Equal(*o.Ret) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
		return true
	}
	return true
}

// CoercibleTo reports whether a value of type t may be implicitly converted
// to type o. Any is compatible with everything; arrays recurse on their
// element type; class compatibility is by name, except that a Data may be
// demoted to an IntermediateResult.
func (t DataType) CoercibleTo(o DataType) bool {
	switch {
	case t.Kind == TAny || o.Kind == TAny:
		return true
	case o.Kind == TNull:
		return true
	case o.Kind == TString:
		return true // everything renders to a string
	case t.Kind == TInt && (o.Kind == TBool || o.Kind == TReal):
		return true
	case t.Kind == TBool && o.Kind == TInt:
		return true
	}
	switch {
	case t.Kind == TArray && o.Kind == TArray:
		return t.Elem.CoercibleTo(*o.Elem)
	case o.Kind == TArray:
		return t.CoercibleTo(*o.Elem)
	case t.Kind == TClass && o.Kind == TClass:
		if t.Class == BuiltinData && o.Class == BuiltinIntermediateResult {
			return true
		}
		return t.Class == o.Class
	case t.Kind == TFunc && o.Kind == TFunc:
		return t.Equal(o)
	}
	return t.Kind == o.Kind
}

func (t DataType) String() string {
	switch t.Kind {
	case TAny:
		return "Any"
	case TVoid:
		return "Void"
	case TNull:
		return "Null"
	case TBool:
		return "Boolean"
	case TInt:
		return "Integer"
	case TReal:
		return "Real"
	case TString:
		return "String"
	case TSemver:
		return "Semver"
	case TArray:
		return "Array<" + t.Elem.String() + ">"
	case TClass:
		return t.Class
	case TFunc:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("Func(%s) -> %s", strings.Join(args, ", "), t.Ret)
	}
	return string(t.Kind)
}
