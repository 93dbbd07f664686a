package ast

import (
	"fmt"
)

// ResolveIndices rewrites every pending jump target to its bound edge
// index and validates that all targets are in bounds, turning the
// unresolved workflow into the final artifact. A failure here means an
// earlier pass produced an ill-formed buffer and is reported as an
// internal error, never attributed to user code.
func ResolveIndices(u *UnresolvedWorkflow) (*Workflow, error) {
	var errs ErrorList

	// The returned edges are clones of the buffer's: session buffers are
	// optimized and resolved again on every later snippet, and a Workflow
	// already handed out must not change under its holder.
	resolveBuffer := func(name string, b *EdgeBuffer) []Edge {
		out := make([]Edge, len(b.edges))
		for i := range b.edges {
			for _, t := range b.edges[i].targets() {
				if t.Pending() {
					idx, ok := b.lookup(t.Label)
					if !ok {
						errs = append(errs, &Error{
							Code: CodeInternal,
							Msg:  fmt.Sprintf("%s: edge %d: unbound jump target L%d", name, i, t.Label),
						})
						continue
					}
					t.Index = idx
					t.Label = 0
				}
				if t.Index < 0 || t.Index >= len(b.edges) {
					errs = append(errs, &Error{
						Code: CodeInternal,
						Msg:  fmt.Sprintf("%s: edge %d: jump target %d out of bounds [0, %d)", name, i, t.Index, len(b.edges)),
					})
				}
			}
			for _, def := range b.edges[i].Branches {
				if _, ok := u.Funcs[def]; !ok {
					errs = append(errs, &Error{
						Code: CodeInternal,
						Msg:  fmt.Sprintf("%s: edge %d: parallel branch references unknown function %d", name, i, def),
					})
				}
			}
			out[i] = b.edges[i].clone()
		}
		return out
	}

	w := &Workflow{
		Table: u.Table,
		Graph: resolveBuffer("main", u.Main),
		Funcs: make(map[int][]Edge, len(u.Funcs)),
	}
	for def, b := range u.Funcs {
		w.Funcs[def] = resolveBuffer(fmt.Sprintf("function %d", def), b)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return w, nil
}
