package dsl

// A Node is a node in a BraneScript syntax tree.
type Node interface {
	// Span returns the source extent of the node.
	Span() TextRange
}

// A Program is a parsed BraneScript compilation unit (file or snippet).
type Program struct {
	File  string
	Stmts []Stmt
}

func (p *Program) Span() TextRange {
	if len(p.Stmts) == 0 {
		return TextRange{}
	}
	return rangeSpan(p.Stmts[0].Span(), p.Stmts[len(p.Stmts)-1].Span())
}

// A Stmt is a BraneScript statement.
type Stmt interface {
	Node
	stmt()
}

func (*Block) stmt()        {}
func (*ImportStmt) stmt()   {}
func (*FuncDefStmt) stmt()  {}
func (*ClassDefStmt) stmt() {}
func (*ReturnStmt) stmt()   {}
func (*IfStmt) stmt()       {}
func (*ForStmt) stmt()      {}
func (*WhileStmt) stmt()    {}
func (*OnStmt) stmt()       {}
func (*ParallelStmt) stmt() {}
func (*LetStmt) stmt()      {}
func (*AssignStmt) stmt()   {}
func (*ExprStmt) stmt()     {}

// A Block is a brace-delimited statement list with its own variable scope.
type Block struct {
	Lbrace Position
	Stmts  []Stmt
	Rbrace Position

	// set by resolver:
	Locals []int // defs of variables declared directly in this block
}

func (b *Block) Span() TextRange {
	return TextRange{Start: b.Lbrace, End: b.Rbrace.add("}")}
}

// An ImportStmt brings the functions of a package into scope:
// import hello_world; or import hello_world[1.0.0];
type ImportStmt struct {
	Import  Position
	Package *Ident
	Version string // version literal, or "" for latest
	Range   TextRange
}

func (s *ImportStmt) Span() TextRange { return s.Range }

// A FuncDefStmt declares a BraneScript function:
// func add(lhs, rhs) { return lhs + rhs; }
type FuncDefStmt struct {
	Func   Position
	Name   *Ident
	Params []*Ident
	Body   *Block

	// set by resolver:
	Def int // index into the workflow function table
}

func (s *FuncDefStmt) Span() TextRange {
	return TextRange{Start: s.Func, End: s.Body.Span().End}
}

// A ClassDefStmt declares a class with properties and methods.
type ClassDefStmt struct {
	Class Position
	Name  *Ident
	Props []*PropDecl
	Defs  []*FuncDefStmt
	Range TextRange

	// set by resolver:
	Def int // index into the workflow class table
}

func (s *ClassDefStmt) Span() TextRange { return s.Range }

// A PropDecl is a `name: Type;` property declaration inside a class.
type PropDecl struct {
	Name  *Ident
	Type  DataType
	Range TextRange
}

func (p *PropDecl) Span() TextRange { return p.Range }

// A ReturnStmt returns from a function, or stops the workflow when it
// appears at toplevel.
type ReturnStmt struct {
	Return Position
	Value  Expr // may be nil
	Range  TextRange

	// set by typing:
	Type DataType
}

func (s *ReturnStmt) Span() TextRange { return s.Range }

// An IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	If    Position
	Cond  Expr
	True  *Block
	False *Block // may be nil
}

func (s *IfStmt) Span() TextRange {
	end := s.True.Span().End
	if s.False != nil {
		end = s.False.Span().End
	}
	return TextRange{Start: s.If, End: end}
}

// A ForStmt is a counted loop: for (let i := 0; i < 10; i := i + 1) { ... }.
type ForStmt struct {
	For  Position
	Init Stmt // *LetStmt or *AssignStmt
	Cond Expr
	Step Stmt // *AssignStmt
	Body *Block
}

func (s *ForStmt) Span() TextRange {
	return TextRange{Start: s.For, End: s.Body.Span().End}
}

// A WhileStmt repeats its body while the condition holds.
type WhileStmt struct {
	While Position
	Cond  Expr
	Body  *Block
}

func (s *WhileStmt) Span() TextRange {
	return TextRange{Start: s.While, End: s.Body.Span().End}
}

// An OnStmt restricts the tasks in its body to a location:
// on "site" { ... }. Deprecated; the parser emits a warning but the
// location pass still honours the restriction.
type OnStmt struct {
	On       Position
	Location Expr
	Body     *Block
}

func (s *OnStmt) Span() TextRange {
	return TextRange{Start: s.On, End: s.Body.Span().End}
}

// A ParallelStmt runs its branches concurrently:
// let res := parallel [all] [{ ... }, { ... }];
type ParallelStmt struct {
	Let      Position // valid if Result != nil
	Result   *Ident   // may be nil
	Parallel Position
	Strategy string // raw merge-strategy name, "" if absent
	Branches []Stmt // *Block or *OnStmt
	Range    TextRange

	// set by resolver:
	Def int // variable def of Result, or -1

	// set by flattening:
	BranchFuncs []int // synthetic function defs, one per branch
}

func (s *ParallelStmt) Span() TextRange { return s.Range }

// A LetStmt declares and initializes a variable: let x := 5;
type LetStmt struct {
	Let   Position
	Name  *Ident
	Value Expr
	Range TextRange
}

func (s *LetStmt) Span() TextRange { return s.Range }

// An AssignStmt stores into a previously declared variable or a field:
// x := 5; or inst.prop := 5;
type AssignStmt struct {
	Target Expr // *Ident or *ProjExpr
	Value  Expr
	Range  TextRange
}

func (s *AssignStmt) Span() TextRange { return s.Range }

// An ExprStmt evaluates an expression for its side effects.
type ExprStmt struct {
	X     Expr
	Range TextRange
}

func (s *ExprStmt) Span() TextRange { return s.Range }

// An Expr is a BraneScript expression.
type Expr interface {
	Node
	// Type returns the static type assigned by the typing pass
	// (Any before typing has run).
	Type() DataType
	expr()
}

func (*CallExpr) expr()    {}
func (*ArrayExpr) expr()   {}
func (*IndexExpr) expr()   {}
func (*UnaryExpr) expr()   {}
func (*BinaryExpr) expr()  {}
func (*ProjExpr) expr()    {}
func (*InstanceExpr) expr() {}
func (*Ident) expr()       {}
func (*Literal) expr()     {}

// typeTag carries the type annotation written by the typing pass.
type typeTag struct {
	T DataType
}

func (t *typeTag) Type() DataType {
	if t.T.Kind == "" {
		return Any()
	}
	return t.T
}

// SetType records the inferred static type of the expression.
func (t *typeTag) SetType(dt DataType) { t.T = dt }

// An Ident names a variable (or, as a call target, a function).
type Ident struct {
	NamePos Position
	Name    string
	typeTag

	// set by resolver:
	Def int // variable def index, or -1 if this names a function
}

func (x *Ident) Span() TextRange {
	return TextRange{Start: x.NamePos, End: x.NamePos.add(x.Name)}
}

// A LitKind discriminates Literal.
type LitKind int8

const (
	LitBool LitKind = iota
	LitInt
	LitReal
	LitString
	LitSemver
	LitNull
)

// A Literal is a literal boolean, number, string, version or null.
type Literal struct {
	Kind  LitKind
	Raw   string
	Bool  bool
	Int   int64
	Real  float64
	Str   string
	Range TextRange
	typeTag
}

func (x *Literal) Span() TextRange { return x.Range }

// A CallExpr calls a function, task or method: Fn(Args).
type CallExpr struct {
	Fn     Expr // *Ident or *ProjExpr
	Lparen Position
	Args   []Expr
	Rparen Position
	typeTag

	// set by resolver:
	Def    int  // function or task def index
	IsTask bool // external task (Node edge) vs script function (Call edge)

	// set by location pass (tasks only):
	Locs *AllowedLocations

	// set by data pass (tasks only):
	Result string // fresh intermediate-result id, "" if the task returns no result
}

func (x *CallExpr) Span() TextRange {
	return TextRange{Start: x.Fn.Span().Start, End: x.Rparen.add(")")}
}

// An ArrayExpr is an array literal: [1, 2, 3].
type ArrayExpr struct {
	Lbrack Position
	Elems  []Expr
	Rbrack Position
	typeTag
}

func (x *ArrayExpr) Span() TextRange {
	return TextRange{Start: x.Lbrack, End: x.Rbrack.add("]")}
}

// An IndexExpr indexes an array: X[Y].
type IndexExpr struct {
	X      Expr
	Lbrack Position
	Index  Expr
	Rbrack Position
	typeTag
}

func (x *IndexExpr) Span() TextRange {
	return TextRange{Start: x.X.Span().Start, End: x.Rbrack.add("]")}
}

// A UnaryExpr is !X or -X.
type UnaryExpr struct {
	OpPos Position
	Op    TokenKind // NOT or MINUS
	X     Expr
	typeTag
}

func (x *UnaryExpr) Span() TextRange {
	return TextRange{Start: x.OpPos, End: x.X.Span().End}
}

// A BinaryExpr is X Op Y.
type BinaryExpr struct {
	X     Expr
	OpPos Position
	Op    TokenKind
	Y     Expr
	typeTag
}

func (x *BinaryExpr) Span() TextRange {
	return rangeSpan(x.X.Span(), x.Y.Span())
}

// A ProjExpr projects a field or method of an instance: X.Name.
type ProjExpr struct {
	X    Expr
	Dot  Position
	Name *Ident
	typeTag
}

func (x *ProjExpr) Span() TextRange {
	return rangeSpan(x.X.Span(), x.Name.Span())
}

// An InstanceExpr constructs a class instance:
// new Data { name := "st_eligible" }.
type InstanceExpr struct {
	New    Position
	Class  *Ident
	Props  []*PropAssign
	Rbrace Position
	typeTag

	// set by resolver:
	Def int // class def index
}

func (x *InstanceExpr) Span() TextRange {
	return TextRange{Start: x.New, End: x.Rbrace.add("}")}
}

// A PropAssign is a `name := value` pair inside an InstanceExpr.
type PropAssign struct {
	Name  *Ident
	Value Expr
	Range TextRange
}

func (p *PropAssign) Span() TextRange { return p.Range }
