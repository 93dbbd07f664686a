package dsl

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A LexError describes a rune that could not be scanned.
type LexError struct {
	File string
	Pos  Position
	Char rune
	Msg  string // optional detail, e.g. for bad escapes
}

func (e *LexError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s:%s: unexpected character %q", e.File, e.Pos, e.Char)
}

// Scan tokenizes BraneScript source text.
// The returned slice always ends with an EOF token.
func Scan(file string, src []byte) ([]Token, error) {
	sc := scanner{file: file, src: string(src), pos: Position{Line: 1, Col: 1}}
	return sc.scan()
}

type scanner struct {
	file string
	src  string
	off  int // byte offset into src
	pos  Position
}

func (sc *scanner) errorf(pos Position, ch rune, format string, args ...interface{}) error {
	return &LexError{File: sc.file, Pos: pos, Char: ch, Msg: fmt.Sprintf(format, args...)}
}

// peek returns the next rune without consuming it, or 0 at end of input.
func (sc *scanner) peek() rune {
	if sc.off >= len(sc.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(sc.src[sc.off:])
	return r
}

func (sc *scanner) peekAt(n int) rune {
	off := sc.off
	for ; n > 0 && off < len(sc.src); n-- {
		_, w := utf8.DecodeRuneInString(sc.src[off:])
		off += w
	}
	if off >= len(sc.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(sc.src[off:])
	return r
}

func (sc *scanner) next() rune {
	r, w := utf8.DecodeRuneInString(sc.src[sc.off:])
	sc.off += w
	if r == '\n' {
		sc.pos.Line++
		sc.pos.Col = 1
	} else {
		sc.pos.Col++
	}
	return r
}

func (sc *scanner) scan() ([]Token, error) {
	var toks []Token
	for {
		// Skip whitespace and comments.
		for {
			r := sc.peek()
			if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
				sc.next()
				continue
			}
			if r == '/' && sc.peekAt(1) == '/' {
				for sc.off < len(sc.src) && sc.peek() != '\n' {
					sc.next()
				}
				continue
			}
			if r == '/' && sc.peekAt(1) == '*' {
				start := sc.pos
				sc.next()
				sc.next()
				closed := false
				for sc.off < len(sc.src) {
					if sc.peek() == '*' && sc.peekAt(1) == '/' {
						sc.next()
						sc.next()
						closed = true
						break
					}
					sc.next()
				}
				if !closed {
					return nil, sc.errorf(start, '*', "unterminated block comment")
				}
				continue
			}
			break
		}

		if sc.off >= len(sc.src) {
			toks = append(toks, Token{Kind: EOF, Range: TextRange{Start: sc.pos, End: sc.pos}})
			return toks, nil
		}

		tok, err := sc.scanToken()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
	}
}

func (sc *scanner) scanToken() (Token, error) {
	start := sc.pos
	startOff := sc.off
	r := sc.peek()

	mk := func(kind TokenKind) Token {
		raw := sc.src[startOff:sc.off]
		return Token{Kind: kind, Raw: raw, Text: raw, Range: TextRange{Start: start, End: sc.pos}}
	}

	switch {
	case r == '"' || r == '\'':
		return sc.scanString(start, startOff)

	case unicode.IsDigit(r):
		return sc.scanNumber(start, startOff)

	case unicode.IsLetter(r) || r == '_':
		for {
			r := sc.peek()
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				sc.next()
				continue
			}
			break
		}
		raw := sc.src[startOff:sc.off]
		if kind, ok := keywords[raw]; ok {
			return mk(kind), nil
		}
		return mk(IDENT), nil
	}

	// Operators and punctuation. Two-rune forms first.
	two := func(kind TokenKind) (Token, error) { sc.next(); sc.next(); return mk(kind), nil }
	one := func(kind TokenKind) (Token, error) { sc.next(); return mk(kind), nil }
	switch r {
	case ':':
		if sc.peekAt(1) == '=' {
			return two(ASSIGN)
		}
		return one(COLON)
	case '=':
		if sc.peekAt(1) == '=' {
			return two(EQ)
		}
	case '!':
		if sc.peekAt(1) == '=' {
			return two(NE)
		}
		return one(NOT)
	case '<':
		if sc.peekAt(1) == '=' {
			return two(LE)
		}
		return one(LT)
	case '>':
		if sc.peekAt(1) == '=' {
			return two(GE)
		}
		return one(GT)
	case '&':
		if sc.peekAt(1) == '&' {
			return two(AND)
		}
	case '|':
		if sc.peekAt(1) == '|' {
			return two(OR)
		}
	case '+':
		return one(PLUS)
	case '-':
		return one(MINUS)
	case '*':
		return one(STAR)
	case '/':
		return one(SLASH)
	case '%':
		return one(PERCENT)
	case '(':
		return one(LPAREN)
	case ')':
		return one(RPAREN)
	case '[':
		return one(LBRACK)
	case ']':
		return one(RBRACK)
	case '{':
		return one(LBRACE)
	case '}':
		return one(RBRACE)
	case ',':
		return one(COMMA)
	case '.':
		return one(DOT)
	case ';':
		return one(SEMICOLON)
	}
	return Token{}, sc.errorf(start, r, "unexpected character %q", r)
}

// scanNumber scans an integer, real or semantic-version literal.
// Versions (1.2.3) must be tried before reals to disambiguate the dot.
func (sc *scanner) scanNumber(start Position, startOff int) (Token, error) {
	digits := func() {
		for unicode.IsDigit(sc.peek()) {
			sc.next()
		}
	}
	digits()

	mk := func(kind TokenKind) Token {
		raw := sc.src[startOff:sc.off]
		return Token{Kind: kind, Raw: raw, Text: raw, Range: TextRange{Start: start, End: sc.pos}}
	}

	if sc.peek() != '.' || !unicode.IsDigit(sc.peekAt(1)) {
		return mk(INT), nil
	}
	sc.next() // '.'
	digits()

	// A second dotted group makes it a version literal.
	if sc.peek() == '.' && unicode.IsDigit(sc.peekAt(1)) {
		sc.next()
		digits()
		return mk(SEMVER), nil
	}

	// Optional exponent.
	if r := sc.peek(); r == 'e' || r == 'E' {
		if r2 := sc.peekAt(1); unicode.IsDigit(r2) || ((r2 == '+' || r2 == '-') && unicode.IsDigit(sc.peekAt(2))) {
			sc.next()
			if r := sc.peek(); r == '+' || r == '-' {
				sc.next()
			}
			digits()
		}
	}
	return mk(REAL), nil
}

func (sc *scanner) scanString(start Position, startOff int) (Token, error) {
	quote := sc.next()
	var b strings.Builder
	for {
		if sc.off >= len(sc.src) {
			return Token{}, sc.errorf(start, quote, "unterminated string literal")
		}
		r := sc.next()
		if r == quote {
			break
		}
		if r == '\n' {
			return Token{}, sc.errorf(start, quote, "newline in string literal")
		}
		if r != '\\' {
			b.WriteRune(r)
			continue
		}
		if sc.off >= len(sc.src) {
			return Token{}, sc.errorf(start, quote, "unterminated string literal")
		}
		epos := sc.pos
		e := sc.next()
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '"', '\'':
			b.WriteRune(e)
		default:
			return Token{}, sc.errorf(epos, e, "unrecognized escape sequence \\%c", e)
		}
	}
	return Token{
		Kind:  STRING,
		Raw:   sc.src[startOff:sc.off],
		Text:  b.String(),
		Range: TextRange{Start: start, End: sc.pos},
	}, nil
}
