package ast

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWorkflowJSONRoundTrip(t *testing.T) {
	w, _ := compileSrc(t, `
		func add(a, b) { return a + b; }
		let total := add(1, 2);
		if (total > 2) {
			println(total);
		}
	`)

	for _, indent := range []bool{false, true} {
		var buf bytes.Buffer
		if err := w.WriteJSON(&buf, indent); err != nil {
			t.Fatalf("WriteJSON(indent=%v): %v", indent, err)
		}
		got, err := ReadJSON(&buf)
		if err != nil {
			t.Fatalf("ReadJSON(indent=%v): %v", indent, err)
		}
		if diff := cmp.Diff(w, got); diff != "" {
			t.Errorf("round trip (indent=%v) changed the workflow (-want +got):\n%s", indent, diff)
		}
	}
}

func TestReadJSONRejectsMissingTable(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"graph": [], "funcs": {}}`))
	if err == nil || !strings.Contains(err.Error(), "missing symbol table") {
		t.Errorf("got %v, want a missing-table error", err)
	}
}

func TestTargetJSON(t *testing.T) {
	data, err := json.Marshal(To(7))
	if err != nil {
		t.Fatalf("marshal resolved target: %v", err)
	}
	if string(data) != "7" {
		t.Errorf("resolved target encodes as %s, want a plain index", data)
	}

	var tgt Target
	if err := json.Unmarshal([]byte("3"), &tgt); err != nil {
		t.Fatal(err)
	}
	if tgt.Index != 3 || tgt.Pending() {
		t.Errorf("decoded target = %+v, want resolved index 3", tgt)
	}

	// Pending targets are an internal compiler state and never serialize.
	if _, err := json.Marshal(At(Label(3))); err == nil {
		t.Error("marshal of a pending target succeeded, want an error")
	}
	next := At(Label(1))
	if _, err := json.Marshal(Edge{Kind: KindLinear, Next: &next}); err == nil {
		t.Error("marshal of an edge with a pending target succeeded, want an error")
	}
}
