package ast

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/idx"
)

// testIndices returns a package index with one test package and a data
// index with one registered dataset.
func testIndices(t *testing.T) (*idx.PackageIndex, *idx.DataIndex) {
	t.Helper()
	pidx := idx.NewPackageIndex()
	err := pidx.Insert(idx.Package{
		Name:    "testpkg",
		Version: "1.0.0",
		Functions: map[string]idx.Function{
			"ingest": {Name: "ingest", Ret: dsl.IntermediateResult()},
			"double": {
				Name:     "double",
				Args:     []dsl.DataType{dsl.Int()},
				ArgNames: []string{"value"},
				Ret:      dsl.Int(),
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	didx := idx.NewDataIndex()
	didx.Insert(idx.Dataset{Name: "st_eligible", Location: "site-a"})
	return pidx, didx
}

func compileSrc(t *testing.T, src string) (*Workflow, []dsl.Warning) {
	t.Helper()
	pidx, didx := testIndices(t)
	w, warns, err := Compile("<test>", []byte(src), pidx, didx)
	if err != nil {
		t.Fatalf("Compile(%q) failed: %v", src, err)
	}
	return w, warns
}

func edgeKinds(edges []Edge) []EdgeKind {
	kinds := make([]EdgeKind, len(edges))
	for i, e := range edges {
		kinds[i] = e.Kind
	}
	return kinds
}

func kindsEqual(got, want []EdgeKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func hasEdge(edges []Edge, kind EdgeKind) bool {
	for _, e := range edges {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func hasInstr(edges []Edge, kind InstrKind) bool {
	for _, e := range edges {
		for _, in := range e.Instrs {
			if in.Kind == kind {
				return true
			}
		}
	}
	return false
}

func TestCompileLinear(t *testing.T) {
	w, _ := compileSrc(t, `let x := 1 + 2; print(x);`)

	want := []EdgeKind{KindLinear, KindCall, KindLinear, KindStop}
	if got := edgeKinds(w.Graph); !kindsEqual(got, want) {
		t.Fatalf("graph = %v, want %v", got, want)
	}

	wantInstrs := []InstrKind{
		InstrInteger, InstrInteger, InstrAdd,
		InstrVarDec, InstrVarSet,
		InstrPopMarker, InstrVarGet, InstrCast, InstrFunction,
	}
	instrs := w.Graph[0].Instrs
	if len(instrs) != len(wantInstrs) {
		t.Fatalf("edge 0 has %d instructions %v, want %d", len(instrs), instrs, len(wantInstrs))
	}
	for i, in := range instrs {
		if in.Kind != wantInstrs[i] {
			t.Errorf("instruction %d = %s, want .%s", i, in, wantInstrs[i])
		}
	}
	if w.ID == "" {
		t.Error("compiled workflow has no id")
	}
}

func TestCompileBranch(t *testing.T) {
	w, _ := compileSrc(t, `
		let c := 1;
		if (c < 2) {
			let y := c + 1;
			print(y);
		}
		print(c);
	`)
	if !hasEdge(w.Graph, KindBranch) {
		t.Errorf("graph %v has no branch edge", edgeKinds(w.Graph))
	}
	// The block-local y is undeclared again on exit.
	if !hasInstr(w.Graph, InstrVarUndec) {
		t.Error("graph never undeclares the block-local variable")
	}
	for i, e := range w.Graph {
		for _, tgt := range []*Target{e.True, e.False, e.Merge, e.Cond, e.Body, e.Next} {
			if tgt != nil && tgt.Pending() {
				t.Errorf("edge %d still has a pending target", i)
			}
		}
	}
}

func TestCompileLoops(t *testing.T) {
	w, _ := compileSrc(t, `
		let i := 0;
		while (i < 3) {
			i := i + 1;
		}
	`)
	if !hasEdge(w.Graph, KindLoop) {
		t.Errorf("while graph %v has no loop edge", edgeKinds(w.Graph))
	}

	w, _ = compileSrc(t, `
		let s := 0;
		for (let i := 0; i < 4; i := i + 1) {
			s := s + i;
		}
	`)
	if !hasEdge(w.Graph, KindLoop) {
		t.Errorf("for graph %v has no loop edge", edgeKinds(w.Graph))
	}
	// The loop counter lives past the body but not past the loop.
	if !hasInstr(w.Graph, InstrVarUndec) {
		t.Error("for graph never undeclares the loop counter")
	}
}

func TestCompilePruneConstantConditions(t *testing.T) {
	w, _ := compileSrc(t, `
		if (false) { print(1); }
		while (false) { print(2); }
		print(3);
	`)
	if hasEdge(w.Graph, KindBranch) || hasEdge(w.Graph, KindLoop) {
		t.Errorf("graph %v still contains constant control flow", edgeKinds(w.Graph))
	}
}

func TestCompileTaskCall(t *testing.T) {
	w, _ := compileSrc(t, `
		import testpkg;
		let r := double(3);
		println(r);
	`)
	var node *Edge
	for i := range w.Graph {
		if w.Graph[i].Kind == KindNode {
			node = &w.Graph[i]
		}
	}
	if node == nil {
		t.Fatalf("graph %v has no node edge", edgeKinds(w.Graph))
	}
	if !w.Table.Tasks.Has(node.Task) {
		t.Fatalf("node references task %d, not in the table", node.Task)
	}
	if name := w.Table.Tasks.At(node.Task).Name; name != "double" {
		t.Errorf("node task is %q, want double", name)
	}
	// double returns a value, so the call is tracked as an intermediate result.
	if !strings.HasPrefix(node.Result, "result-") {
		t.Errorf("node result id = %q, want a result- id", node.Result)
	}
	if _, ok := w.Table.Results[node.Result]; !ok {
		t.Errorf("result %q is not registered in the table", node.Result)
	}
}

func TestCompileLocationRestriction(t *testing.T) {
	w, _ := compileSrc(t, `
		import testpkg;
		on "site-a" {
			let r := double(3);
			println(r);
		}
	`)
	for _, e := range w.Graph {
		if e.Kind != KindNode {
			continue
		}
		if e.Locs == nil {
			t.Fatal("node edge lost its location restriction")
		}
		if loc, ok := e.Locs.Exact(); !ok || loc != "site-a" {
			t.Errorf("node locations = %s, want exactly site-a", e.Locs)
		}
		return
	}
	t.Fatal("graph has no node edge")
}

func TestCompileErrors(t *testing.T) {
	for _, test := range []struct {
		src  string
		want ErrorCode
	}{
		{`let x := 1; let x := 2;`, CodeDuplicateDeclaration},
		{`print(y);`, CodeUndeclaredVariable},
		{`frobnicate(1);`, CodeUnknownFunction},
		{`import nope;`, CodeUnknownPackage},
		{`let w := new Widget{ };`, CodeUnknownClass},
		{`let d := new Data{ name := "nope" };`, CodeUnknownDataset},
		{`if ("a") { print(1); }`, CodeTypeMismatch},
		{`print(1, 2);`, CodeArityMismatch},
		{"class Point { x: int; }\nlet p := new Point{ x := 1 };\np.x := 2;", CodeIllegalStatement},
		{"import testpkg;\non \"a\" { on \"b\" { let r := double(3); } }", CodeNoLocation},
	} {
		pidx, didx := testIndices(t)
		_, _, err := Compile("<test>", []byte(test.src), pidx, didx)
		if err == nil {
			t.Errorf("Compile(%q) succeeded, want %s", test.src, test.want)
			continue
		}
		list, ok := err.(ErrorList)
		if !ok {
			t.Errorf("Compile(%q) = %T %v, want an ErrorList", test.src, err, err)
			continue
		}
		if list[0].Code != test.want {
			t.Errorf("Compile(%q) = %s (%s), want %s", test.src, list[0].Code, list[0].Msg, test.want)
		}
	}
}

func TestCompileWarnings(t *testing.T) {
	for _, test := range []struct {
		src  string
		want dsl.WarningCode
	}{
		{`parallel [max] [{ return 1; }, { return 2; }];`, dsl.WarnUnusedMergeStrategy},
		{"import testpkg;\nfunc stage() { return ingest(); }", dsl.WarnReturningIntermediateResult},
		{`on "site-a" { print(1); }`, dsl.WarnOnDeprecated},
	} {
		_, warns := compileSrc(t, test.src)
		found := false
		for _, w := range warns {
			if w.Code == test.want {
				found = true
			}
		}
		if !found {
			t.Errorf("Compile(%q) warnings = %v, want %s", test.src, warns, test.want)
		}
	}
}

// A session state carries declarations from one snippet to the next.
func TestCompileSnippets(t *testing.T) {
	state := NewCompileState(nil, nil)

	w1, _, err := state.Compile("<stdin-1>", []byte(`let x := 21;`))
	if err != nil {
		t.Fatalf("snippet 1: %v", err)
	}
	w2, _, err := state.Compile("<stdin-2>", []byte(`print(x + x);`))
	if err != nil {
		t.Fatalf("snippet 2: %v", err)
	}
	if w1.Table != w2.Table {
		t.Error("snippets do not share the session table")
	}
	if !hasEdge(w2.Graph, KindCall) {
		t.Errorf("snippet 2 graph = %v, want a call edge", edgeKinds(w2.Graph))
	}
	// Re-importing in a later snippet must not duplicate task definitions.
	pidx, didx := testIndices(t)
	state = NewCompileState(pidx, didx)
	for i := 0; i < 2; i++ {
		if _, _, err := state.Compile("<stdin>", []byte(`import testpkg;`)); err != nil {
			t.Fatalf("import %d: %v", i+1, err)
		}
	}
	if n := state.Table().Tasks.Len(); n != 2 {
		t.Errorf("after re-import the table holds %d tasks, want 2", n)
	}
}

// Definitions may appear inside nested blocks; they register in the
// table like toplevel ones and their bodies compile under their own
// function index, never under the toplevel sentinel.
func TestCompileNestedDefinitions(t *testing.T) {
	w, _ := compileSrc(t, `
		if (1 < 2) {
			func triple(n) { return n * 3; }
			func spare(n) { return n; }
			print(triple(2));
		}
	`)
	for _, name := range []string{"triple", "spare"} {
		def := w.Table.FuncByName(name)
		if def < 0 {
			t.Fatalf("block-local function %s is not in the table", name)
		}
		if _, ok := w.Funcs[def]; !ok {
			t.Errorf("function %s (%d) has no compiled body", name, def)
		}
	}
	if _, ok := w.Funcs[MainFunc]; ok {
		t.Error("a function body was compiled under the toplevel sentinel")
	}

	w, _ = compileSrc(t, `
		if (1 < 2) {
			class Pair { a: int; b: int; }
			let p := new Pair { a := 1, b := 2 };
			print(p.a);
		}
	`)
	if w.Table.ClassByName("Pair") < 0 {
		t.Error("block-local class Pair is not in the table")
	}
}

// A workflow handed out by a session must not change when a later
// snippet re-optimizes and re-resolves the shared function buffers.
func TestCompileSnippetWorkflowsIndependent(t *testing.T) {
	state := NewCompileState(nil, nil)
	w1, _, err := state.Compile("<stdin-1>", []byte(`func inc(n) { if (n > 0) { return n + 1; } return n; }`))
	if err != nil {
		t.Fatal(err)
	}
	def := w1.Table.FuncByName("inc")
	if def < 0 {
		t.Fatal("inc is not in the table")
	}
	before, err := json.Marshal(w1.Funcs[def])
	if err != nil {
		t.Fatal(err)
	}

	w2, _, err := state.Compile("<stdin-2>", []byte(`print(inc(1));`))
	if err != nil {
		t.Fatal(err)
	}
	after, err := json.Marshal(w1.Funcs[def])
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Error("compiling the second snippet changed the first snippet's edges")
	}
	// Both workflows carry the same body, in distinct storage.
	e1, e2 := w1.Funcs[def], w2.Funcs[def]
	if diff := cmp.Diff(e1, e2); diff != "" {
		t.Errorf("function body differs between snippets (-first +second):\n%s", diff)
	}
	if len(e1) > 0 && len(e2) > 0 && &e1[0] == &e2[0] {
		t.Error("snippet workflows share edge storage")
	}
}

func TestCompileParallelBranches(t *testing.T) {
	w, _ := compileSrc(t, `
		let r := parallel [all] [
			{ return 1; },
			{ return 2; }
		];
		print(r);
	`)
	var par *Edge
	for i := range w.Graph {
		if w.Graph[i].Kind == KindParallel {
			par = &w.Graph[i]
		}
	}
	if par == nil {
		t.Fatalf("graph %v has no parallel edge", edgeKinds(w.Graph))
	}
	if len(par.Branches) != 2 {
		t.Fatalf("parallel edge has %d branches, want 2", len(par.Branches))
	}
	// Each branch compiles to an anonymous function ending in a return.
	for _, def := range par.Branches {
		body, ok := w.Funcs[def]
		if !ok {
			t.Fatalf("branch function %d has no edges", def)
		}
		if body[len(body)-1].Kind != KindReturn {
			t.Errorf("branch function %d ends in %s, want a return", def, body[len(body)-1].Kind)
		}
	}
	join := w.Graph[par.Merge.Index]
	if join.Kind != KindJoin || join.Strategy != MergeAll {
		t.Errorf("merge edge = %s/%s, want a join with strategy all", join.Kind, join.Strategy)
	}
}
