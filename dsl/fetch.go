package dsl

import "io"

// ReadCompoundSnippet reads lines until they form a complete snippet, for
// interactive use. A snippet is complete when every opened bracket has been
// closed again and the last meaningful character is ';' or '}'.
//
// The bracket count treats '<' and '>' symmetrically with the other bracket
// pairs, even though they double as comparison operators. This is a known
// heuristic limitation: an expression such as `a < b` split across a prompt
// boundary miscounts. It is kept permissive on purpose, since '<' almost
// always closes on the same line in comparisons.
//
// readline must return one line of input including its trailing newline, or
// an error. io.EOF with no input read so far is returned as-is; io.EOF
// after a partial snippet returns the partial input so the parser can
// report where it ran out.
func ReadCompoundSnippet(readline func() ([]byte, error)) ([]byte, error) {
	var buf []byte
	depth := 0
	for {
		line, err := readline()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		buf = append(buf, line...)
		depth += bracketDelta(line)
		if depth <= 0 && snippetTerminated(buf) {
			return buf, nil
		}
	}
}

// bracketDelta returns the net bracket depth of one line, ignoring brackets
// inside string literals and comments.
func bracketDelta(line []byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '/':
			if i+1 < len(line) && line[i+1] == '/' {
				return depth
			}
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		}
	}
	return depth
}

// snippetTerminated reports whether the buffered input ends in ';' or '}'
// (ignoring trailing whitespace) and is not blank.
func snippetTerminated(buf []byte) bool {
	for i := len(buf) - 1; i >= 0; i-- {
		switch buf[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case ';', '}':
			return true
		default:
			return false
		}
	}
	return false
}
