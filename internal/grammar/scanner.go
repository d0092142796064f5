package grammar

// state is the lexical state of the scanner.
type state int

const (
	stateNormal state = iota
	stateSingleQuote
	stateDoubleQuote
)

// position describes where a rune sits, evaluated before the rune is
// consumed: an opening quote is not quoted, its closing quote is.
type position struct {
	quoted bool
	depth  int
}

// top reports whether the rune is outside quotes and brackets.
func (p position) top() bool {
	return !p.quoted && p.depth == 0
}

// scanner walks a SQL fragment one rune at a time and tracks whether the
// current position sits inside a quoted string, a quoted identifier or a
// bracketed group. Brackets are tracked on a stack so "(]" is rejected.
type scanner struct {
	input string
	state state
	stack []int // byte offsets of open brackets
	quote int   // byte offset of the open quote
}

type visitFunc func(i int, r rune, pos position)

func newScanner(input string) *scanner {
	return &scanner{input: input}
}

func (s *scanner) position() position {
	return position{quoted: s.state != stateNormal, depth: len(s.stack)}
}

// run scans the whole input. A nil visit only validates.
func (s *scanner) run(visit visitFunc) error {
	input := s.input
	escaped := false
	for i, r := range input {
		if visit != nil {
			visit(i, r, s.position())
		}
		if escaped {
			escaped = false
			continue
		}

		switch s.state {
		case stateSingleQuote:
			if r == '\'' {
				// '' inside a string literal is an escaped quote
				if i+1 < len(input) && input[i+1] == '\'' {
					escaped = true
					continue
				}
				s.state = stateNormal
			}
		case stateDoubleQuote:
			if r == '"' {
				if i+1 < len(input) && input[i+1] == '"' {
					escaped = true
					continue
				}
				s.state = stateNormal
			}
		default:
			switch r {
			case '\'':
				s.state = stateSingleQuote
				s.quote = i
			case '"':
				s.state = stateDoubleQuote
				s.quote = i
			case '(', '[':
				s.stack = append(s.stack, i)
			case ')', ']':
				if len(s.stack) == 0 {
					return newError(input, i, "unexpected "+string(r))
				}
				open := input[s.stack[len(s.stack)-1]]
				if (r == ')' && open != '(') || (r == ']' && open != '[') {
					return newError(input, i, "mismatched "+string(r))
				}
				s.stack = s.stack[:len(s.stack)-1]
			}
		}
	}

	switch s.state {
	case stateSingleQuote:
		return newError(input, s.quote, "unterminated string literal")
	case stateDoubleQuote:
		return newError(input, s.quote, "unterminated quoted identifier")
	}
	if n := len(s.stack); n > 0 {
		return newError(input, s.stack[n-1], "unclosed "+string(input[s.stack[n-1]]))
	}
	return nil
}

// Validate reports whether text has balanced quotes and brackets.
func Validate(text string) error {
	return newScanner(text).run(nil)
}
