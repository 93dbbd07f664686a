package dsl

import (
	"io"
	"strings"
	"testing"
)

// promptLines returns a readline function serving the given lines, then EOF.
func promptLines(lines ...string) func() ([]byte, error) {
	i := 0
	return func() ([]byte, error) {
		if i >= len(lines) {
			return nil, io.EOF
		}
		line := lines[i]
		i++
		return []byte(line + "\n"), nil
	}
}

func TestReadCompoundSnippet(t *testing.T) {
	for _, test := range []struct {
		lines []string
		want  int // number of lines consumed
	}{
		{[]string{`let x := 1;`}, 1},
		{[]string{`if (true) {`, `print(1);`, `}`}, 3},
		{[]string{`let xs := [`, `1, 2,`, `3`, `];`}, 4},
		// Brackets inside strings and comments do not count.
		{[]string{`print("}");`}, 1},
		{[]string{`let x := 1; // (`}, 1},
		// A blank line is not a snippet.
		{[]string{``, `print(1);`}, 2},
	} {
		src, err := ReadCompoundSnippet(promptLines(test.lines...))
		if err != nil {
			t.Errorf("ReadCompoundSnippet(%q) failed: %v", test.lines, err)
			continue
		}
		want := strings.Join(test.lines[:test.want], "\n") + "\n"
		if string(src) != want {
			t.Errorf("ReadCompoundSnippet(%q) = %q, want %q", test.lines, src, want)
		}
	}
}

func TestReadCompoundSnippetEOF(t *testing.T) {
	if _, err := ReadCompoundSnippet(promptLines()); err != io.EOF {
		t.Errorf("got %v, want io.EOF with no input", err)
	}
}

// The continuation heuristic counts '<' and '>' like brackets, so an
// unmatched comparison keeps the prompt open; EOF then yields the partial
// input so the parser can diagnose it.
func TestReadCompoundSnippetPartial(t *testing.T) {
	src, err := ReadCompoundSnippet(promptLines(`let a := b < 3;`))
	if err != nil {
		t.Fatalf("got error %v, want the partial snippet", err)
	}
	if string(src) != "let a := b < 3;\n" {
		t.Errorf("got %q, want the buffered line back", src)
	}
}
