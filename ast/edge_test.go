package ast

import "testing"

func TestParseMergeStrategy(t *testing.T) {
	for _, test := range []struct {
		input string
		want  MergeStrategy
	}{
		{"first", MergeFirst},
		{"first*", MergeFirstBlocking},
		{"last", MergeLast},
		{"sum", MergeSum},
		{"+", MergeSum},
		{"product", MergeProduct},
		{"*", MergeProduct},
		{"max", MergeMax},
		{"min", MergeMin},
		{"all", MergeAll},
		{"none", MergeNone},
		{"bogus", MergeNone},
		{"", MergeNone},
	} {
		if got := ParseMergeStrategy(test.input); got != test.want {
			t.Errorf("ParseMergeStrategy(%q) = %s, want %s", test.input, got, test.want)
		}
	}
}

func TestEdgeBufferLabels(t *testing.T) {
	b := NewEdgeBuffer()
	l := b.NewLabel()
	if l == 0 {
		t.Fatal("labels must be nonzero; zero means resolved")
	}
	b.Append(Edge{Kind: KindLinear})
	b.Bind(l)
	b.Append(Edge{Kind: KindStop})
	if i, ok := b.lookup(l); !ok || i != 1 {
		t.Errorf("label bound to %d, want 1", i)
	}
	defer func() {
		if recover() == nil {
			t.Error("double bind did not panic")
		}
	}()
	b.Bind(l)
}
