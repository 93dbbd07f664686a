package ast

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/marinoandrea/brane/dsl"
)

// A Label identifies a not-yet-resolved jump target inside an EdgeBuffer.
// The zero Label means "resolved".
type Label int

// A Target is a jump target: either a resolved edge index within the same
// buffer, or a pending label that the index-resolution pass rewrites.
// Pending targets never appear in a resolved Workflow and cannot be
// serialized.
type Target struct {
	Index int
	Label Label // pending if nonzero
}

// To returns a resolved target.
func To(index int) Target { return Target{Index: index} }

// At returns a pending target for the given label.
func At(label Label) Target { return Target{Label: label} }

// Pending reports whether the target still awaits resolution.
func (t Target) Pending() bool { return t.Label != 0 }

func (t Target) String() string {
	if t.Pending() {
		return fmt.Sprintf("L%d", t.Label)
	}
	return strconv.Itoa(t.Index)
}

// MarshalJSON encodes a resolved target as its plain edge index.
func (t Target) MarshalJSON() ([]byte, error) {
	if t.Pending() {
		return nil, fmt.Errorf("cannot serialize pending jump target L%d", t.Label)
	}
	return strconv.AppendInt(nil, int64(t.Index), 10), nil
}

func (t *Target) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &t.Index)
}

// A MergeStrategy is the policy for combining the results of parallel
// branches at their Join edge.
type MergeStrategy string

const (
	// MergeFirst takes the first value to arrive and cancels the siblings.
	MergeFirst MergeStrategy = "first"
	// MergeFirstBlocking takes the first value to arrive but still waits
	// for the remaining branches.
	MergeFirstBlocking MergeStrategy = "first*"
	// MergeLast takes the last value to arrive.
	MergeLast MergeStrategy = "last"
	// MergeSum adds all numeric results together.
	MergeSum MergeStrategy = "sum"
	// MergeProduct multiplies all numeric results together.
	MergeProduct MergeStrategy = "product"
	// MergeMax takes the largest result.
	MergeMax MergeStrategy = "max"
	// MergeMin takes the smallest result.
	MergeMin MergeStrategy = "min"
	// MergeAll collects the results as an array, in branch declaration order.
	MergeAll MergeStrategy = "all"
	// MergeNone discards the results.
	MergeNone MergeStrategy = "none"
)

// ParseMergeStrategy maps the surface syntax of a merge strategy to its
// tag. Unknown names map to MergeNone, mirroring the permissive original
// syntax ("+" for sum, "*" for product).
func ParseMergeStrategy(s string) MergeStrategy {
	switch s {
	case "first":
		return MergeFirst
	case "first*":
		return MergeFirstBlocking
	case "last":
		return MergeLast
	case "+", "sum":
		return MergeSum
	case "*", "product":
		return MergeProduct
	case "max":
		return MergeMax
	case "min":
		return MergeMin
	case "all":
		return MergeAll
	}
	return MergeNone
}

// A DataName references either a durable dataset or an intermediate result.
type DataName struct {
	Kind string `json:"k"` // "data" or "res"
	Name string `json:"n"`
}

func DataRef(name string) DataName   { return DataName{Kind: "data", Name: name} }
func ResultRef(name string) DataName { return DataName{Kind: "res", Name: name} }

func (d DataName) String() string {
	if d.Kind == "res" {
		return "IntermediateResult<" + d.Name + ">"
	}
	return "Data<" + d.Name + ">"
}

// An EdgeKind discriminates Edge.
type EdgeKind string

const (
	// KindNode runs an external task: one input edge, one output edge.
	KindNode EdgeKind = "nod"
	// KindLinear runs a series of instructions, then one next edge.
	KindLinear EdgeKind = "lin"
	// KindStop halts execution of the current thread.
	KindStop EdgeKind = "stp"
	// KindBranch jumps to True or False depending on the boolean on top of
	// the stack.
	KindBranch EdgeKind = "brc"
	// KindParallel forks one thread per branch and proceeds to the join.
	KindParallel EdgeKind = "par"
	// KindJoin fences on all forked branches and merges their results.
	KindJoin EdgeKind = "join"
	// KindLoop marks a loop; execution proceeds at Cond.
	KindLoop EdgeKind = "loop"
	// KindCall calls the function object on top of the stack.
	KindCall EdgeKind = "cll"
	// KindReturn pops a frame, or ends the thread at toplevel.
	KindReturn EdgeKind = "ret"
)

// An Edge is one control-flow unit of the workflow graph.
//
// Which fields are meaningful depends on Kind; the zero value of every
// other field round-trips through JSON unchanged, so a single struct can
// represent all variants without a custom codec.
type Edge struct {
	Kind EdgeKind `json:"kind"`

	// KindNode.
	Task   int                   `json:"task,omitempty"`
	Locs   *dsl.AllowedLocations `json:"locs,omitempty"`
	At     string                `json:"at,omitempty"` // populated by the planner
	Input  []DataName            `json:"input,omitempty"`
	Result string                `json:"result,omitempty"`

	// KindLinear.
	Instrs []EdgeInstr `json:"instrs,omitempty"`

	// KindBranch. False is nil when the false arm fully returns.
	True  *Target `json:"true,omitempty"`
	False *Target `json:"false,omitempty"`

	// KindParallel. Branches are function table indices; each branch body
	// is compiled as an anonymous function and forked as its own thread.
	Branches []int   `json:"branches,omitempty"`
	Merge    *Target `json:"merge,omitempty"`

	// KindJoin.
	Strategy MergeStrategy `json:"strategy,omitempty"`

	// KindLoop.
	Cond *Target `json:"cond,omitempty"`
	Body *Target `json:"body,omitempty"`

	// Next edge for KindNode, KindLinear, KindJoin, KindLoop and KindCall.
	Next *Target `json:"next,omitempty"`
}

// targets returns pointers to every jump target of the edge, for the
// optimizer and the index resolver to inspect and rewrite.
func (e *Edge) targets() []*Target {
	var ts []*Target
	for _, t := range []*Target{e.True, e.False, e.Merge, e.Cond, e.Body, e.Next} {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return ts
}

// clone returns a deep copy of the edge: target pointers and slices are
// duplicated so the copy is independent of the buffer it came from.
// Location sets and instruction types are never mutated after lowering
// and stay shared.
func (e *Edge) clone() Edge {
	c := *e
	c.Input = append([]DataName(nil), e.Input...)
	c.Instrs = append([]EdgeInstr(nil), e.Instrs...)
	c.Branches = append([]int(nil), e.Branches...)
	c.True = cloneTarget(e.True)
	c.False = cloneTarget(e.False)
	c.Merge = cloneTarget(e.Merge)
	c.Cond = cloneTarget(e.Cond)
	c.Body = cloneTarget(e.Body)
	c.Next = cloneTarget(e.Next)
	return c
}

func cloneTarget(t *Target) *Target {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// An InstrKind discriminates EdgeInstr.
type InstrKind string

const (
	InstrCast       InstrKind = "cst"
	InstrPop        InstrKind = "pop"
	InstrPopMarker  InstrKind = "mpp"
	InstrDynamicPop InstrKind = "dpp"

	InstrBranch    InstrKind = "brc" // relative, within the instruction list
	InstrBranchNot InstrKind = "brn"

	InstrNot InstrKind = "not"
	InstrNeg InstrKind = "neg"
	InstrAnd InstrKind = "and"
	InstrOr  InstrKind = "or"
	InstrAdd InstrKind = "add"
	InstrSub InstrKind = "sub"
	InstrMul InstrKind = "mul"
	InstrDiv InstrKind = "div"
	InstrMod InstrKind = "mod"
	InstrEq  InstrKind = "eq"
	InstrNe  InstrKind = "ne"
	InstrLt  InstrKind = "lt"
	InstrLe  InstrKind = "le"
	InstrGt  InstrKind = "gt"
	InstrGe  InstrKind = "ge"

	InstrArray      InstrKind = "arr"
	InstrArrayIndex InstrKind = "arx"
	InstrInstance   InstrKind = "ins"
	InstrProj       InstrKind = "prj"

	InstrVarDec   InstrKind = "vrd"
	InstrVarUndec InstrKind = "vru"
	InstrVarGet   InstrKind = "vrg"
	InstrVarSet   InstrKind = "vrs"

	InstrNull     InstrKind = "nul"
	InstrBoolean  InstrKind = "bol"
	InstrInteger  InstrKind = "int"
	InstrReal     InstrKind = "rel"
	InstrString   InstrKind = "str"
	InstrFunction InstrKind = "fnc"
)

// An EdgeInstr is one stack operation inside a Linear edge.
type EdgeInstr struct {
	Kind InstrKind `json:"kind"`

	// InstrCast, InstrArray (result type).
	Type *dsl.DataType `json:"t,omitempty"`
	// InstrBranch/InstrBranchNot: offset relative to this instruction.
	Offset int `json:"o,omitempty"`
	// InstrArray: number of elements to group.
	Len int `json:"l,omitempty"`
	// InstrInstance, InstrVar*, InstrFunction: definition index.
	Def int `json:"d,omitempty"`
	// InstrProj: field name.
	Field string `json:"f,omitempty"`

	// Literal payloads.
	Bool bool    `json:"vb,omitempty"`
	Int  int64   `json:"vi,omitempty"`
	Real float64 `json:"vr,omitempty"`
	Str  string  `json:"vs,omitempty"`
}

func (i EdgeInstr) String() string { return "." + string(i.Kind) }
