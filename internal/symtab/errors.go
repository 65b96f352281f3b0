package symtab

import (
	"errors"
	"fmt"
)

// ModuleNotFoundError reports a dotted module name absent from every source root.
type ModuleNotFoundError struct {
	Module string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %q not found in source roots", e.Module)
}

// IsNotFound reports whether err is a ModuleNotFoundError.
func IsNotFound(err error) bool {
	var nf *ModuleNotFoundError
	return errors.As(err, &nf)
}

// InconsistentMROError reports a class hierarchy without a C3 linearization.
type InconsistentMROError struct {
	Class  string
	Reason string
}

func (e *InconsistentMROError) Error() string {
	return fmt.Sprintf("cannot linearize %s: %s", e.Class, e.Reason)
}

// MissingInitError reports a class whose MRO has no __init__, which only
// happens when the MRO could not be computed.
type MissingInitError struct {
	Class string
}

func (e *MissingInitError) Error() string {
	return fmt.Sprintf("class %s has no __init__", e.Class)
}
