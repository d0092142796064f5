package grammar

import (
	"errors"
	"fmt"
)

// ErrInvalid is matched by every *Error via errors.Is.
var ErrInvalid = errors.New("invalid SQL fragment")

// Error describes a malformed SQL fragment: unbalanced quotes or brackets.
type Error struct {
	Input  string
	Pos    int
	Reason string
}

func newError(input string, pos int, reason string) *Error {
	return &Error{Input: input, Pos: pos, Reason: reason}
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid SQL fragment %q at offset %d: %s", e.Input, e.Pos, e.Reason)
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}
