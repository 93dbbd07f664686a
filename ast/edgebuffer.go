package ast

import "fmt"

// An EdgeBuffer accumulates the edges of one function body during
// flattening. Edges are stored in a flat arena and referenced by index;
// forward references use labels, bound once the destination edge exists
// and rewritten to indices by ResolveIndices.
type EdgeBuffer struct {
	edges  []Edge
	labels map[Label]int
	next   Label
}

// NewEdgeBuffer returns an empty buffer.
func NewEdgeBuffer() *EdgeBuffer {
	return &EdgeBuffer{labels: make(map[Label]int)}
}

// Append adds an edge and returns its index.
func (b *EdgeBuffer) Append(e Edge) int {
	b.edges = append(b.edges, e)
	return len(b.edges) - 1
}

// Len returns the number of edges appended so far, which is also the
// index the next appended edge will get.
func (b *EdgeBuffer) Len() int { return len(b.edges) }

// Edge returns a pointer to the edge at index i, for backpatching.
func (b *EdgeBuffer) Edge(i int) *Edge { return &b.edges[i] }

// NewLabel allocates a fresh, unbound label.
func (b *EdgeBuffer) NewLabel() Label {
	b.next++
	return b.next
}

// Bind fixes the label to the index of the next edge to be appended.
// Binding the same label twice is a bug in the flattening pass.
func (b *EdgeBuffer) Bind(l Label) {
	if _, dup := b.labels[l]; dup {
		panic(fmt.Sprintf("label L%d bound twice", l))
	}
	b.labels[l] = len(b.edges)
}

// lookup returns the bound index of the label.
func (b *EdgeBuffer) lookup(l Label) (int, bool) {
	i, ok := b.labels[l]
	return i, ok
}
