// Package exe implements the workflow executor: a stack machine that
// walks a resolved workflow's edges, maintaining a frame stack, variable
// registers and a value stack, and delegating external task calls to a
// pluggable runner.
package exe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/marinoandrea/brane/dsl"
)

// A ValueKind discriminates Value.
type ValueKind string

const (
	KindVoid     ValueKind = "void"
	KindNull     ValueKind = "null"
	KindBool     ValueKind = "bool"
	KindInt      ValueKind = "int"
	KindReal     ValueKind = "real"
	KindString   ValueKind = "str"
	KindArray    ValueKind = "arr"
	KindInstance ValueKind = "inst"
	KindFunction ValueKind = "func"

	// kindMarker is the stack marker pushed by PopMarker. It never leaves
	// the stack through any other path than DynamicPop.
	kindMarker ValueKind = "mark"
)

// A Value is one runtime value of the machine: the tagged union over
// everything an edge instruction or task result can produce.
type Value struct {
	Kind  ValueKind        `json:"kind"`
	Bool  bool             `json:"vb,omitempty"`
	Int   int64            `json:"vi,omitempty"`
	Real  float64          `json:"vr,omitempty"`
	Str   string           `json:"vs,omitempty"`
	Elems []Value          `json:"el,omitempty"`
	Class string           `json:"c,omitempty"`
	Props map[string]Value `json:"pr,omitempty"`
	Func  int              `json:"fn,omitempty"`
}

func Void() Value            { return Value{Kind: KindVoid} }
func Null() Value            { return Value{Kind: KindNull} }
func Bool(b bool) Value      { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value      { return Value{Kind: KindInt, Int: i} }
func Real(r float64) Value   { return Value{Kind: KindReal, Real: r} }
func Str(s string) Value     { return Value{Kind: KindString, Str: s} }
func ArrayOf(elems ...Value) Value {
	return Value{Kind: KindArray, Elems: elems}
}
func Instance(class string, props map[string]Value) Value {
	return Value{Kind: KindInstance, Class: class, Props: props}
}
func FuncRef(def int) Value { return Value{Kind: KindFunction, Func: def} }

// DataHandle returns an instance of the builtin Data class.
func DataHandle(name string) Value {
	return Instance(dsl.BuiltinData, map[string]Value{"name": Str(name)})
}

// ResultHandle returns an instance of the builtin IntermediateResult class.
func ResultHandle(path string) Value {
	return Instance(dsl.BuiltinIntermediateResult, map[string]Value{"path": Str(path)})
}

// Type returns the static type this value inhabits.
func (v Value) Type() dsl.DataType {
	switch v.Kind {
	case KindVoid:
		return dsl.Void()
	case KindNull:
		return dsl.Null()
	case KindBool:
		return dsl.Bool()
	case KindInt:
		return dsl.Int()
	case KindReal:
		return dsl.Real()
	case KindString:
		return dsl.Str()
	case KindArray:
		if len(v.Elems) == 0 {
			return dsl.Array(dsl.Any())
		}
		return dsl.Array(v.Elems[0].Type())
	case KindInstance:
		return dsl.Class(v.Class)
	case KindFunction:
		return dsl.Any()
	}
	return dsl.Any()
}

// Truthy interprets the value as a branch condition.
func (v Value) Truthy() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindInt:
		return v.Int != 0, nil
	}
	return false, &RuntimeError{Code: ErrTypeMismatch,
		Msg: fmt.Sprintf("expected a Boolean, got %s", v.Type())}
}

// Cast converts the value to the target type. Conversions mirror the
// compiler's coercibility rules; anything converts to String by rendering.
func (v Value) Cast(to dsl.DataType) (Value, error) {
	if to.IsAny() || v.Type().Equal(to) {
		return v, nil
	}
	switch to.Kind {
	case dsl.TString:
		return Str(v.String()), nil
	case dsl.TBool:
		if v.Kind == KindInt {
			return Bool(v.Int != 0), nil
		}
	case dsl.TInt:
		if v.Kind == KindBool {
			if v.Bool {
				return Int(1), nil
			}
			return Int(0), nil
		}
	case dsl.TReal:
		if v.Kind == KindInt {
			return Real(float64(v.Int)), nil
		}
	case dsl.TArray:
		if v.Kind == KindArray {
			elems := make([]Value, len(v.Elems))
			for i, el := range v.Elems {
				cast, err := el.Cast(*to.Elem)
				if err != nil {
					return Value{}, err
				}
				elems[i] = cast
			}
			return ArrayOf(elems...), nil
		}
		// an element promotes to a one-element array
		el, err := v.Cast(*to.Elem)
		if err != nil {
			return Value{}, err
		}
		return ArrayOf(el), nil
	case dsl.TClass:
		if v.Kind == KindInstance {
			if v.Class == to.Class {
				return v, nil
			}
			// a Data handle may stand in for the IntermediateResult it wraps
			if v.Class == dsl.BuiltinData && to.Class == dsl.BuiltinIntermediateResult {
				return v, nil
			}
		}
	}
	return Value{}, &RuntimeError{Code: ErrTypeMismatch,
		Msg: fmt.Sprintf("cannot cast %s to %s", v.Type(), to)}
}

// Equal reports deep value equality.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		// int/real compare numerically across kinds
		if v.Kind == KindInt && o.Kind == KindReal {
			return float64(v.Int) == o.Real
		}
		if v.Kind == KindReal && o.Kind == KindInt {
			return v.Real == float64(o.Int)
		}
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt:
		return v.Int == o.Int
	case KindReal:
		return v.Real == o.Real
	case KindString:
		return v.Str == o.Str
	case KindArray:
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	case KindInstance:
		if v.Class != o.Class || len(v.Props) != len(o.Props) {
			return false
		}
		for k, p := range v.Props {
			if !p.Equal(o.Props[k]) {
				return false
			}
		}
		return true
	case KindFunction:
		return v.Func == o.Func
	}
	return true // Void, Null
}

// String renders the value the way print does.
func (v Value) String() string {
	switch v.Kind {
	case KindVoid:
		return ""
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case KindString:
		return v.Str
	case KindArray:
		parts := make([]string, len(v.Elems))
		for i, el := range v.Elems {
			parts[i] = el.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindInstance:
		keys := make([]string, 0, len(v.Props))
		for k := range v.Props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.Props[k].String()
		}
		return v.Class + " {" + strings.Join(parts, ", ") + "}"
	case KindFunction:
		return fmt.Sprintf("<function %d>", v.Func)
	}
	return string(v.Kind)
}
