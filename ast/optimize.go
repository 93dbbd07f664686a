package ast

// Optimize merges runs of Linear edges so the executor dispatches fewer
// edges. A successor is folded into its predecessor only when the
// predecessor holds the sole reference to it; any edge that is also a
// branch or merge destination stays put, so no jump can land in the
// middle of a merged run. The pass is idempotent: a second application
// changes nothing.
func Optimize(u *UnresolvedWorkflow) *UnresolvedWorkflow {
	optimizeBuffer(u.Main)
	for _, b := range u.Funcs {
		optimizeBuffer(b)
	}
	return u
}

func optimizeBuffer(b *EdgeBuffer) {
	n := len(b.edges)
	if n == 0 {
		return
	}

	// resolve maps a target to its edge index without rewriting it.
	resolve := func(t *Target) int {
		if t == nil {
			return -1
		}
		if t.Pending() {
			if i, ok := b.lookup(t.Label); ok {
				return i
			}
			return -1
		}
		return t.Index
	}

	refs := make([]int, n)
	for i := range b.edges {
		for _, t := range b.edges[i].targets() {
			if j := resolve(t); j >= 0 && j < n {
				refs[j]++
			}
		}
	}

	dead := make([]bool, n)
	for i := range b.edges {
		if dead[i] || b.edges[i].Kind != KindLinear {
			continue
		}
		e := &b.edges[i]
		for {
			j := resolve(e.Next)
			// Edge 0 is the entry point and must stay addressable.
			if j <= 0 || j >= n || j == i || dead[j] {
				break
			}
			if b.edges[j].Kind != KindLinear || refs[j] != 1 {
				break
			}
			e.Instrs = append(e.Instrs, b.edges[j].Instrs...)
			e.Next = b.edges[j].Next
			dead[j] = true
		}
	}

	// Compact the arena and rewrite every surviving index.
	remap := make([]int, n)
	var edges []Edge
	for i := range b.edges {
		if dead[i] {
			remap[i] = -1
			continue
		}
		remap[i] = len(edges)
		edges = append(edges, b.edges[i])
	}
	for i := range edges {
		for _, t := range edges[i].targets() {
			if !t.Pending() && t.Index >= 0 && t.Index < n && remap[t.Index] >= 0 {
				t.Index = remap[t.Index]
			}
		}
	}
	for l, i := range b.labels {
		if i >= 0 && i < n {
			if remap[i] < 0 {
				// The label's edge was folded away; nothing references it
				// anymore, since a referenced edge is never merged.
				delete(b.labels, l)
				continue
			}
			b.labels[l] = remap[i]
		}
	}
	b.edges = edges
}
