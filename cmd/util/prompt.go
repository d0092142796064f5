package util

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"

	"github.com/ddlkit/ddlkit/internal/resolver"
)

// IsTerminal reports whether stdin is attached to a terminal.
var IsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Confirm asks a yes/no question on the terminal. It is a variable so tests
// can answer for the user.
var Confirm = func(message string) (bool, error) {
	if !IsTerminal() {
		return false, fmt.Errorf("cannot ask %q without a terminal, use --force to skip confirmation", message)
	}
	var ok bool
	if err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// NewResolver picks the rename resolver of a command: the explicit --renames
// pairs, the interactive prompt on a terminal, or no renames at all.
func NewResolver(renames []string) (resolver.Resolver, error) {
	if len(renames) > 0 {
		r, err := resolver.NewStatic(renames...)
		if err != nil {
			return nil, fmt.Errorf("invalid --renames: %w", err)
		}
		return r, nil
	}
	if IsTerminal() {
		return resolver.NewInteractive(), nil
	}
	return resolver.None{}, nil
}
