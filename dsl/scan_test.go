package dsl

import (
	"strings"
	"testing"
)

// tokens scans src and renders the resulting token stream, EOF included,
// as a single space-separated line.
func tokens(t *testing.T, src string) string {
	t.Helper()
	toks, err := Scan("<test>", []byte(src))
	if err != nil {
		t.Fatalf("Scan(%q) failed: %v", src, err)
	}
	parts := make([]string, len(toks))
	for i, tok := range toks {
		parts[i] = tok.String()
	}
	return strings.Join(parts, " ")
}

func TestScan(t *testing.T) {
	for _, test := range []struct {
		input string
		want  string
	}{
		{`let x := 1;`,
			`let identifier "x" := integer literal "1" ; end of file`},
		{`x == y != z`,
			`identifier "x" == identifier "y" != identifier "z" end of file`},
		{`a <= b >= c < d > e`,
			`identifier "a" <= identifier "b" >= identifier "c" < identifier "d" > identifier "e" end of file`},
		{`p && q || !r`,
			`identifier "p" && identifier "q" || ! identifier "r" end of file`},
		{`1 + 2.5 * 3.5e-1 % 4`,
			`integer literal "1" + real literal "2.5" * real literal "3.5e-1" % integer literal "4" end of file`},
		{`import hello_world[1.0.0];`,
			`import identifier "hello_world" [ version literal "1.0.0" ] ; end of file`},
		// A trailing dot is not part of the number.
		{`1.`,
			`integer literal "1" . end of file`},
		// An exponent marker not followed by digits is an identifier.
		{`1.5e`,
			`real literal "1.5" identifier "e" end of file`},
		{`1.5e+2`,
			`real literal "1.5e+2" end of file`},
		{`"hi" 'there'`,
			`string literal "\"hi\"" string literal "'there'" end of file`},
		{"1 // trailing comment\n2",
			`integer literal "1" integer literal "2" end of file`},
		{"/* a\nblock */ 42",
			`integer literal "42" end of file`},
		{`parallel while on new null true false`,
			`parallel while on new null true false end of file`},
		{``,
			`end of file`},
	} {
		got := tokens(t, test.input)
		if got != test.want {
			t.Errorf("Scan(%q):\ngot  %s\nwant %s", test.input, got, test.want)
		}
	}
}

func TestScanErrors(t *testing.T) {
	for _, test := range []struct {
		input string
		want  string // substring of the error
	}{
		{`a & b`, `unexpected character '&'`},
		{`a | b`, `unexpected character '|'`},
		{`x = 1`, `unexpected character '='`},
		{`x # 1`, `unexpected character '#'`},
		{`/* open`, `unterminated block comment`},
		{`"open`, `unterminated string literal`},
		{"\"a\nb\"", `newline in string literal`},
		{`"a\qb"`, `unrecognized escape sequence \q`},
	} {
		_, err := Scan("<test>", []byte(test.input))
		if err == nil {
			t.Errorf("Scan(%q) succeeded, want error %q", test.input, test.want)
			continue
		}
		if !strings.Contains(err.Error(), test.want) {
			t.Errorf("Scan(%q) = error %q, want substring %q", test.input, err, test.want)
		}
	}
}

func TestScanStringText(t *testing.T) {
	for _, test := range []struct {
		input string
		want  string // cooked value
	}{
		{`"plain"`, "plain"},
		{`"a\nb"`, "a\nb"},
		{`"tab\there"`, "tab\there"},
		{`"esc \\ \" done"`, `esc \ " done`},
		{`'single "quoted"'`, `single "quoted"`},
		{`'it\'s'`, "it's"},
	} {
		toks, err := Scan("<test>", []byte(test.input))
		if err != nil {
			t.Errorf("Scan(%q) failed: %v", test.input, err)
			continue
		}
		if toks[0].Kind != STRING {
			t.Errorf("Scan(%q) = %s, want a string literal", test.input, toks[0])
			continue
		}
		if toks[0].Text != test.want {
			t.Errorf("Scan(%q).Text = %q, want %q", test.input, toks[0].Text, test.want)
		}
		if toks[0].Raw != test.input {
			t.Errorf("Scan(%q).Raw = %q, want the input unchanged", test.input, toks[0].Raw)
		}
	}
}

func TestScanPositions(t *testing.T) {
	toks, err := Scan("<test>", []byte("let\n  x := 1;"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := toks[0].Range.Start, (Position{Line: 1, Col: 1}); got != want {
		t.Errorf("let starts at %s, want %s", got, want)
	}
	if got, want := toks[1].Range.Start, (Position{Line: 2, Col: 3}); got != want {
		t.Errorf("x starts at %s, want %s", got, want)
	}
	last := toks[len(toks)-1]
	if last.Kind != EOF {
		t.Errorf("token stream ends with %s, want end of file", last)
	}
}
