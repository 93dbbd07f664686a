package ast

import (
	"encoding/json"
	"fmt"
	"io"
)

// A Workflow is a fully compiled, index-resolved program: a symbol table,
// the toplevel edge graph and one edge list per defined function. It is
// the artifact the compiler emits and the executor consumes, and it
// round-trips through JSON without loss.
type Workflow struct {
	ID    string         `json:"id,omitempty"`
	Table *SymTable      `json:"table"`
	Graph []Edge         `json:"graph"`
	Funcs map[int][]Edge `json:"funcs"`
}

// FuncEdges returns the edge list of function def, or the toplevel graph
// for MainFunc.
func (w *Workflow) FuncEdges(def int) []Edge {
	if def == MainFunc {
		return w.Graph
	}
	return w.Funcs[def]
}

// MainFunc is the sentinel function index naming the toplevel graph.
const MainFunc = -1

// WriteJSON serializes the workflow. With indent set the output is
// human-readable, otherwise compact.
func (w *Workflow) WriteJSON(out io.Writer, indent bool) error {
	enc := json.NewEncoder(out)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(w); err != nil {
		return fmt.Errorf("serialize workflow: %w", err)
	}
	return nil
}

// ReadJSON deserializes a workflow previously written by WriteJSON.
func ReadJSON(in io.Reader) (*Workflow, error) {
	var w Workflow
	if err := json.NewDecoder(in).Decode(&w); err != nil {
		return nil, fmt.Errorf("deserialize workflow: %w", err)
	}
	if w.Table == nil {
		return nil, fmt.Errorf("deserialize workflow: missing symbol table")
	}
	if w.Funcs == nil {
		w.Funcs = make(map[int][]Edge)
	}
	return &w, nil
}

// An UnresolvedWorkflow is the flattening pass output: edge buffers whose
// jump targets may still be labels. The optimizer runs on this form;
// ResolveIndices turns it into a Workflow.
type UnresolvedWorkflow struct {
	Table *SymTable
	Main  *EdgeBuffer
	Funcs map[int]*EdgeBuffer
}
