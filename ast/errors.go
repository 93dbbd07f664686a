package ast

import (
	"fmt"
	"io"
	"strings"

	"github.com/marinoandrea/brane/dsl"
)

// An ErrorCode identifies a class of compile error, stable across
// releases so callers can match on it.
type ErrorCode string

const (
	CodeDuplicateDeclaration ErrorCode = "duplicate-declaration"
	CodeUndeclaredVariable   ErrorCode = "undeclared-variable"
	CodeUnknownPackage       ErrorCode = "unknown-package"
	CodeUnknownFunction      ErrorCode = "unknown-function"
	CodeUnknownClass         ErrorCode = "unknown-class"
	CodeUnknownProperty      ErrorCode = "unknown-property"
	CodeIllegalStatement     ErrorCode = "illegal-statement"
	CodeTypeMismatch         ErrorCode = "type-mismatch"
	CodeArityMismatch        ErrorCode = "arity-mismatch"
	CodeNoLocation           ErrorCode = "no-allowed-location"
	CodeUnknownDataset       ErrorCode = "unknown-dataset"
	CodeInternal             ErrorCode = "internal"
)

// An Error is one compile error with source position. Compile errors
// never panic the compiler; they accumulate per pass and are reported
// together.
type Error struct {
	Code  ErrorCode
	File  string
	Range dsl.TextRange
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.File, e.Range.Start, e.Msg)
}

// An ErrorList is a non-empty list of compile errors from one pass.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// errorf appends a positioned error to the list.
func (l *ErrorList) errorf(file string, rng dsl.TextRange, code ErrorCode, format string, args ...any) {
	*l = append(*l, &Error{
		Code:  code,
		File:  file,
		Range: rng,
		Msg:   fmt.Sprintf(format, args...),
	})
}

// err returns the list as an error, or nil if empty.
func (l ErrorList) err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Prettyprint writes every error in err to w with a source excerpt, when
// err carries position information against the given source text. Errors
// of other types are written on a single line.
func Prettyprint(w io.Writer, source string, err error) {
	switch err := err.(type) {
	case ErrorList:
		for _, e := range err {
			io.WriteString(w, dsl.FormatDiagnostic(e.File, source, e.Range, e.Msg))
		}
	case *Error:
		io.WriteString(w, dsl.FormatDiagnostic(err.File, source, err.Range, err.Msg))
	case *dsl.ParseError:
		io.WriteString(w, dsl.FormatDiagnostic(err.File, source, err.Range, err.Msg))
	case *dsl.LexError:
		msg := err.Msg
		if msg == "" {
			msg = fmt.Sprintf("unexpected character %q", err.Char)
		}
		rng := dsl.TextRange{Start: err.Pos, End: err.Pos}
		io.WriteString(w, dsl.FormatDiagnostic(err.File, source, rng, msg))
	default:
		msg := err.Error()
		io.WriteString(w, msg)
		if !strings.HasSuffix(msg, "\n") {
			io.WriteString(w, "\n")
		}
	}
}

// PrintWarnings writes each warning to w with a source excerpt.
func PrintWarnings(w io.Writer, file, source string, warns []dsl.Warning) {
	for _, warn := range warns {
		msg := fmt.Sprintf("warning: %s [%s]", warn.Msg, warn.Code)
		io.WriteString(w, dsl.FormatDiagnostic(file, source, warn.Range, msg))
	}
}
