package interp

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// CircularInterpolationError reports paths whose markers reference each
// other. Cycle is in visitation order and ends with its first path.
type CircularInterpolationError struct {
	Cycle []string
}

func (e *CircularInterpolationError) Error() string {
	return "circular interpolation detected: " + strings.Join(e.Cycle, " → ")
}

// UndefinedVariableError reports an environment reference to an unset variable.
type UndefinedVariableError struct {
	Name string
	Path string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: environment variable %q is not defined", e.Path, e.Name)
}

// ReferenceNotFoundError reports a marker naming a configuration path that
// does not exist.
type ReferenceNotFoundError struct {
	Reference string
	Path      string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("%s: reference %q not found in configuration", e.Path, e.Reference)
}

// ExpressionError reports an expression marker that failed to parse or
// evaluate.
type ExpressionError struct {
	Expression string
	Path       string
	Diags      hcl.Diagnostics
	Err        error
}

func (e *ExpressionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: expression %q: %v", e.Path, e.Expression, e.Err)
	}
	return fmt.Sprintf("%s: expression %q: %s", e.Path, e.Expression, e.Diags.Error())
}

func (e *ExpressionError) Unwrap() error { return e.Err }
