package diff

import (
	"fmt"

	"github.com/ddlkit/ddlkit/internal/ddl"
)

// UnsupportedChangeError reports a structurally valid change that cannot be
// expressed safely for the target dialect. It aborts the whole run.
type UnsupportedChangeError struct {
	Subject ddl.Key
	Dialect ddl.Dialect
	Reason  string
}

func (e *UnsupportedChangeError) Error() string {
	return fmt.Sprintf("unsupported change to %s for %s: %s", e.Subject, e.Dialect, e.Reason)
}
