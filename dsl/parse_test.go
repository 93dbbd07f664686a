package dsl

import (
	"strings"
	"testing"
)

// parse1 parses src and returns its single toplevel statement.
func parse1(t *testing.T, src string) Stmt {
	t.Helper()
	prog, _, err := Parse("<test>", []byte(src))
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	if len(prog.Stmts) != 1 {
		t.Fatalf("Parse(%q) = %d statements, want 1", src, len(prog.Stmts))
	}
	return prog.Stmts[0]
}

func TestParsePrecedence(t *testing.T) {
	let, ok := parse1(t, `let x := 1 + 2 * 3;`).(*LetStmt)
	if !ok {
		t.Fatal("want a let statement")
	}
	add, ok := let.Value.(*BinaryExpr)
	if !ok || add.Op != PLUS {
		t.Fatalf("let value = %T, want + at the root", let.Value)
	}
	mul, ok := add.Y.(*BinaryExpr)
	if !ok || mul.Op != STAR {
		t.Fatalf("right operand of + = %T, want *", add.Y)
	}
}

func TestParseElseIfChain(t *testing.T) {
	stmt := parse1(t, `if (a) { } else if (b) { } else { }`).(*IfStmt)
	if stmt.False == nil || len(stmt.False.Stmts) != 1 {
		t.Fatalf("else arm = %v, want a block with the nested if", stmt.False)
	}
	nested, ok := stmt.False.Stmts[0].(*IfStmt)
	if !ok {
		t.Fatalf("else arm holds %T, want a nested if", stmt.False.Stmts[0])
	}
	if nested.False == nil {
		t.Error("nested if lost its else arm")
	}
}

func TestParseParallel(t *testing.T) {
	for _, test := range []struct {
		input    string
		result   string // "" for the statement form
		strategy string
		branches int
	}{
		{`parallel [{ print(1); }];`, "", "", 1},
		{`let r := parallel [all] [{ return 1; }, { return 2; }];`, "r", "all", 2},
		{`let r := parallel [first] [{ return 1; }, { return 2; }];`, "r", "first", 2},
		{`let r := parallel [first*] [{ return 1; }, { return 2; }];`, "r", "first*", 2},
		{`let s := parallel [+] [{ return 1; }];`, "s", "+", 1},
	} {
		stmt, ok := parse1(t, test.input).(*ParallelStmt)
		if !ok {
			t.Errorf("Parse(%q): not a parallel statement", test.input)
			continue
		}
		result := ""
		if stmt.Result != nil {
			result = stmt.Result.Name
		}
		if result != test.result || stmt.Strategy != test.strategy || len(stmt.Branches) != test.branches {
			t.Errorf("Parse(%q) = result %q, strategy %q, %d branches; want %q, %q, %d",
				test.input, result, stmt.Strategy, len(stmt.Branches),
				test.result, test.strategy, test.branches)
		}
	}
}

func TestParseParallelOnBranch(t *testing.T) {
	stmt := parse1(t, `parallel [on "a" { }, { }];`).(*ParallelStmt)
	if len(stmt.Branches) != 2 {
		t.Fatalf("got %d branches, want 2", len(stmt.Branches))
	}
	if _, ok := stmt.Branches[0].(*OnStmt); !ok {
		t.Errorf("branch 0 is %T, want an on block", stmt.Branches[0])
	}
	if _, ok := stmt.Branches[1].(*Block); !ok {
		t.Errorf("branch 1 is %T, want a block", stmt.Branches[1])
	}
}

func TestParseImport(t *testing.T) {
	imp := parse1(t, `import hello_world[1.0.0];`).(*ImportStmt)
	if imp.Package.Name != "hello_world" || imp.Version != "1.0.0" {
		t.Errorf("got %s[%s], want hello_world[1.0.0]", imp.Package.Name, imp.Version)
	}
	imp = parse1(t, `import lib;`).(*ImportStmt)
	if imp.Package.Name != "lib" || imp.Version != "" {
		t.Errorf("got %s[%s], want lib with no version", imp.Package.Name, imp.Version)
	}
}

func TestParseClass(t *testing.T) {
	def := parse1(t, `class Jedi {
		name: string;
		masters: Jedi[];
		lightsabers: int;
		func describe(self) { return self.name; }
	}`).(*ClassDefStmt)
	if def.Name.Name != "Jedi" {
		t.Fatalf("class name = %q", def.Name.Name)
	}
	if len(def.Props) != 3 || len(def.Defs) != 1 {
		t.Fatalf("got %d properties and %d methods, want 3 and 1", len(def.Props), len(def.Defs))
	}
	wantTypes := []DataType{Str(), Array(Class("Jedi")), Int()}
	for i, p := range def.Props {
		if !p.Type.Equal(wantTypes[i]) {
			t.Errorf("property %s has type %s, want %s", p.Name.Name, p.Type, wantTypes[i])
		}
	}
	if def.Defs[0].Name.Name != "describe" || len(def.Defs[0].Params) != 1 {
		t.Errorf("method = %s/%d params, want describe/1", def.Defs[0].Name.Name, len(def.Defs[0].Params))
	}
}

func TestParseFor(t *testing.T) {
	stmt := parse1(t, `for (let i := 0; i < 10; i := i + 1) { }`).(*ForStmt)
	if _, ok := stmt.Init.(*LetStmt); !ok {
		t.Errorf("init is %T, want a let", stmt.Init)
	}
	if _, ok := stmt.Step.(*AssignStmt); !ok {
		t.Errorf("step is %T, want an assignment", stmt.Step)
	}
}

func TestParsePostfixChain(t *testing.T) {
	stmt := parse1(t, `obj.items(1)[2].name;`).(*ExprStmt)
	proj, ok := stmt.X.(*ProjExpr)
	if !ok || proj.Name.Name != "name" {
		t.Fatalf("outermost node is %T, want .name projection", stmt.X)
	}
	index, ok := proj.X.(*IndexExpr)
	if !ok {
		t.Fatalf("projection receiver is %T, want an index expression", proj.X)
	}
	call, ok := index.X.(*CallExpr)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("index receiver is %T, want a one-argument call", index.X)
	}
	if _, ok := call.Fn.(*ProjExpr); !ok {
		t.Errorf("call target is %T, want obj.items", call.Fn)
	}
}

func TestParseInstance(t *testing.T) {
	let := parse1(t, `let d := new Data{ name := "st_eligible" };`).(*LetStmt)
	inst, ok := let.Value.(*InstanceExpr)
	if !ok {
		t.Fatalf("let value is %T, want an instance expression", let.Value)
	}
	if inst.Class.Name != "Data" || len(inst.Props) != 1 || inst.Props[0].Name.Name != "name" {
		t.Errorf("got new %s with %d properties", inst.Class.Name, len(inst.Props))
	}
}

func TestParseOnDeprecationWarning(t *testing.T) {
	_, warns, err := Parse("<test>", []byte(`on "site-a" { print(1); }`))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, w := range warns {
		if w.Code == WarnOnDeprecated {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want %s", warns, WarnOnDeprecated)
	}
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		input string
		want  string // substring of the error
	}{
		{`let x 1;`, `expected := in let statement`},
		{`let x := ;`, `unexpected ;`},
		{`f() := 1;`, `cannot assign to this expression`},
		{`{ let x := 1;`, `unexpected end of file in block`},
		{`return 1`, `expected ; in return statement`},
		{`if true { }`, `expected ( in if statement`},
		{`class C { x int; }`, `expected : in property declaration`},
	} {
		_, _, err := Parse("<test>", []byte(test.input))
		if err == nil {
			t.Errorf("Parse(%q) succeeded, want error %q", test.input, test.want)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("Parse(%q) = error %q, want substring %q", test.input, err, test.want)
		}
	}
}
