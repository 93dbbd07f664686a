package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func to(i int) *Target { t := To(i); return &t }

func linear(next int, instrs ...EdgeInstr) Edge {
	return Edge{Kind: KindLinear, Instrs: instrs, Next: to(next)}
}

func instr(kind InstrKind) EdgeInstr { return EdgeInstr{Kind: kind} }

func snapshot(b *EdgeBuffer) []Edge {
	edges := make([]Edge, b.Len())
	for i := range edges {
		edges[i] = *b.Edge(i)
	}
	return edges
}

func optimizeMain(b *EdgeBuffer) {
	Optimize(&UnresolvedWorkflow{Table: NewSymTable(), Main: b, Funcs: map[int]*EdgeBuffer{}})
}

func TestOptimizeMergesLinearChains(t *testing.T) {
	b := NewEdgeBuffer()
	b.Append(linear(1, instr(InstrInteger)))
	b.Append(linear(2, instr(InstrInteger)))
	b.Append(linear(3, instr(InstrAdd)))
	b.Append(Edge{Kind: KindStop})

	optimizeMain(b)

	if b.Len() != 2 {
		t.Fatalf("got %d edges, want 2: %v", b.Len(), snapshot(b))
	}
	merged := b.Edge(0)
	if merged.Kind != KindLinear || len(merged.Instrs) != 3 {
		t.Fatalf("entry edge = %s with %d instructions, want the full chain", merged.Kind, len(merged.Instrs))
	}
	if merged.Next.Index != 1 || b.Edge(1).Kind != KindStop {
		t.Errorf("merged edge falls through to %v, want the stop at 1", merged.Next)
	}
}

// Edges that are branch destinations hold more than one reference and must
// stay addressable; only their private successors fold into them.
func TestOptimizeKeepsBranchTargets(t *testing.T) {
	b := NewEdgeBuffer()
	b.Append(linear(1, instr(InstrBoolean)))
	b.Append(Edge{Kind: KindBranch, True: to(2), False: to(4)})
	b.Append(linear(3, instr(InstrInteger)))
	b.Append(linear(5, instr(InstrPop)))
	b.Append(linear(5, instr(InstrInteger)))
	b.Append(Edge{Kind: KindStop})

	optimizeMain(b)

	if b.Len() != 5 {
		t.Fatalf("got %d edges, want 5: %v", b.Len(), snapshot(b))
	}
	br := b.Edge(1)
	if br.Kind != KindBranch {
		t.Fatalf("edge 1 = %s, want the branch", br.Kind)
	}
	tt := b.Edge(br.True.Index)
	if tt.Kind != KindLinear || len(tt.Instrs) != 2 {
		t.Errorf("true arm = %s with %d instructions, want the folded pair", tt.Kind, len(tt.Instrs))
	}
	ff := b.Edge(br.False.Index)
	if ff.Kind != KindLinear || len(ff.Instrs) != 1 {
		t.Errorf("false arm = %s with %d instructions, want it untouched", ff.Kind, len(ff.Instrs))
	}
	if tt.Next.Index != ff.Next.Index {
		t.Errorf("arms rejoin at %d and %d, want the same stop edge", tt.Next.Index, ff.Next.Index)
	}
	for i := 0; i < b.Len(); i++ {
		for _, tgt := range []*Target{b.Edge(i).True, b.Edge(i).False, b.Edge(i).Next} {
			if tgt != nil && (tgt.Index < 0 || tgt.Index >= b.Len()) {
				t.Errorf("edge %d targets %d, out of bounds", i, tgt.Index)
			}
		}
	}
}

// Labeled forward references resolve through the label table and survive
// compaction.
func TestOptimizeRewritesLabels(t *testing.T) {
	b := NewEdgeBuffer()
	end := b.NewLabel()
	et := At(end)
	b.Append(Edge{Kind: KindLinear, Instrs: []EdgeInstr{instr(InstrInteger)}, Next: &et})
	b.Append(linear(2, instr(InstrPop))) // unreferenced, but not dead
	b.Bind(end)
	b.Append(Edge{Kind: KindStop})

	optimizeMain(b)

	if i, ok := b.lookup(end); !ok || b.Edge(i).Kind != KindStop {
		t.Errorf("label resolves to %d, want the stop edge", i)
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	build := func() *EdgeBuffer {
		b := NewEdgeBuffer()
		b.Append(linear(1, instr(InstrBoolean)))
		b.Append(Edge{Kind: KindBranch, True: to(2), False: to(5)})
		b.Append(linear(3, instr(InstrInteger)))
		b.Append(linear(4, instr(InstrAdd)))
		b.Append(linear(6, instr(InstrPop)))
		b.Append(linear(6, instr(InstrInteger)))
		b.Append(Edge{Kind: KindStop})
		return b
	}

	b := build()
	optimizeMain(b)
	first := snapshot(b)
	optimizeMain(b)
	second := snapshot(b)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second optimization changed the buffer (-first +second):\n%s", diff)
	}
}
