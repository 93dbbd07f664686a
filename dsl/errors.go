package dsl

import (
	"fmt"
	"strings"
)

// A ParseError describes malformed grammar at a source position.
type ParseError struct {
	File  string
	Range TextRange
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.File, e.Range.Start, e.Msg)
}

// A WarningCode identifies a class of compile warning.
type WarningCode string

const (
	// WarnOnDeprecated is emitted for `on` blocks, which are kept for
	// backwards compatibility only.
	WarnOnDeprecated WarningCode = "on-deprecated"
	// WarnUnusedMergeStrategy is emitted when a parallel statement names a
	// merge strategy but discards the merged result.
	WarnUnusedMergeStrategy WarningCode = "unused-merge-strategy"
	// WarnReturningIntermediateResult is emitted when a function returns an
	// IntermediateResult that was never committed to durable Data.
	WarnReturningIntermediateResult WarningCode = "returning-intermediate-result"
)

// A Warning is a diagnostic that does not stop compilation. Warnings
// accumulate across all passes and are reported alongside the artifact.
type Warning struct {
	Code  WarningCode
	Range TextRange
	Msg   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: warning: %s [%s]", w.Range.Start, w.Msg, w.Code)
}

// FormatDiagnostic renders a single-line source excerpt with a caret or
// underline pointing at the offending range, in the style
//
//	file:3:8: message
//	 3 | let x := 1 + ;
//	   |          ^^^^
func FormatDiagnostic(file, source string, rng TextRange, msg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%s: %s\n", file, rng.Start, msg)

	lines := strings.Split(source, "\n")
	if rng.Start.Line < 1 || rng.Start.Line > len(lines) {
		return b.String()
	}
	line := lines[rng.Start.Line-1]
	lineno := fmt.Sprintf("%d", rng.Start.Line)
	fmt.Fprintf(&b, " %s | %s\n", lineno, line)

	width := 1
	if rng.End.Line == rng.Start.Line && rng.End.Col > rng.Start.Col {
		width = rng.End.Col - rng.Start.Col
	}
	pad := strings.Repeat(" ", len(lineno))
	caret := strings.Repeat(" ", rng.Start.Col-1) + strings.Repeat("^", width)
	fmt.Fprintf(&b, " %s | %s\n", pad, caret)
	return b.String()
}
