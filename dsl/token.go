// Package dsl provides a scanner and parser for BraneScript, the workflow
// language of the Brane orchestrator, along with the abstract syntax tree
// and data-type model shared by the later compiler stages.
package dsl

import "fmt"

// A Position describes the location of a rune of input.
// Lines and columns are 1-based.
type Position struct {
	Line int // 1-based line number
	Col  int // 1-based column (in runes) within the line
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// IsValid reports whether the position is valid.
func (p Position) IsValid() bool { return p.Line >= 1 }

// add returns the position at the end of s, assuming it contains no newlines.
func (p Position) add(s string) Position {
	p.Col += len([]rune(s))
	return p
}

// A TextRange is the half-open source extent of a token or syntax node,
// used for diagnostics.
type TextRange struct {
	Start Position
	End   Position
}

func (r TextRange) String() string { return fmt.Sprintf("%s-%s", r.Start, r.End) }

// rangeSpan returns the smallest range covering both a and b.
func rangeSpan(a, b TextRange) TextRange {
	return TextRange{Start: a.Start, End: b.End}
}

// A TokenKind designates the lexical class of a token.
type TokenKind int8

const (
	EOF TokenKind = iota

	IDENT  // print
	INT    // 42
	REAL   // 4.2 or 4.2e-1
	STRING // "hello"
	SEMVER // 1.0.0

	// Keywords
	BREAK    // break
	CLASS    // class
	CONTINUE // continue
	ELSE     // else
	FALSE    // false
	FOR      // for
	FUNC     // func
	IF       // if
	IMPORT   // import
	LET      // let
	NEW      // new
	NULL     // null
	ON       // on
	PARALLEL // parallel
	RETURN   // return
	TRUE     // true
	WHILE    // while

	// Operators
	ASSIGN  // :=
	EQ      // ==
	NE      // !=
	LT      // <
	LE      // <=
	GT      // >
	GE      // >=
	AND     // &&
	OR      // ||
	NOT     // !
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %

	// Punctuation
	LPAREN    // (
	RPAREN    // )
	LBRACK    // [
	RBRACK    // ]
	LBRACE    // {
	RBRACE    // }
	COMMA     // ,
	DOT       // .
	COLON     // :
	SEMICOLON // ;
)

var tokenNames = [...]string{
	EOF:       "end of file",
	IDENT:     "identifier",
	INT:       "integer literal",
	REAL:      "real literal",
	STRING:    "string literal",
	SEMVER:    "version literal",
	BREAK:     "break",
	CLASS:     "class",
	CONTINUE:  "continue",
	ELSE:      "else",
	FALSE:     "false",
	FOR:       "for",
	FUNC:      "func",
	IF:        "if",
	IMPORT:    "import",
	LET:       "let",
	NEW:       "new",
	NULL:      "null",
	ON:        "on",
	PARALLEL:  "parallel",
	RETURN:    "return",
	TRUE:      "true",
	WHILE:     "while",
	ASSIGN:    ":=",
	EQ:        "==",
	NE:        "!=",
	LT:        "<",
	LE:        "<=",
	GT:        ">",
	GE:        ">=",
	AND:       "&&",
	OR:        "||",
	NOT:       "!",
	PLUS:      "+",
	MINUS:     "-",
	STAR:      "*",
	SLASH:     "/",
	PERCENT:   "%",
	LPAREN:    "(",
	RPAREN:    ")",
	LBRACK:    "[",
	RBRACK:    "]",
	LBRACE:    "{",
	RBRACE:    "}",
	COMMA:     ",",
	DOT:       ".",
	COLON:     ":",
	SEMICOLON: ";",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenNames) {
		return tokenNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", k)
}

var keywords = map[string]TokenKind{
	"break":    BREAK,
	"class":    CLASS,
	"continue": CONTINUE,
	"else":     ELSE,
	"false":    FALSE,
	"for":      FOR,
	"func":     FUNC,
	"if":       IF,
	"import":   IMPORT,
	"let":      LET,
	"new":      NEW,
	"null":     NULL,
	"on":       ON,
	"parallel": PARALLEL,
	"return":   RETURN,
	"true":     TRUE,
	"while":    WHILE,
}

// A Token is one lexical unit of BraneScript source text.
type Token struct {
	Kind  TokenKind
	Raw   string // uninterpreted text, as written
	Text  string // cooked value for STRING (escapes applied), otherwise == Raw
	Range TextRange
}

func (t Token) String() string {
	switch t.Kind {
	case IDENT, INT, REAL, STRING, SEMVER:
		return fmt.Sprintf("%s %q", t.Kind, t.Raw)
	}
	return t.Kind.String()
}
