package tracer

import (
	"fmt"
	"strings"

	"github.com/phobologic/synconf/internal/model"
)

// CircularDelegationError reports a delegation chain that reaches an identity
// already in the chain. Cycle starts and ends at that identity.
type CircularDelegationError struct {
	Cycle []model.Identity
}

func (e *CircularDelegationError) Error() string {
	return fmt.Sprintf("circular **kwargs chain detected: %s", joinIdentities(e.Cycle))
}

// MultiTargetDelegationError reports a callable that forwards its open
// keyword collector to more than one distinct target.
type MultiTargetDelegationError struct {
	Callable  model.Identity
	Collector string
	Targets   []model.Identity
}

func (e *MultiTargetDelegationError) Error() string {
	return fmt.Sprintf("%s passes **%s to multiple callees (%s), which is not supported",
		e.Callable, e.Collector, joinIdentities(e.Targets))
}

// MethodNotFoundError reports a super() call whose method no base class defines.
type MethodNotFoundError struct {
	Method string
	Class  string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method %q not found in MRO of %s", e.Method, e.Class)
}

// ClassNotFoundError reports super(X, self) where X is not in the MRO of the
// declaring class, or a super() call outside any class.
type ClassNotFoundError struct {
	Class  string
	Within string
}

func (e *ClassNotFoundError) Error() string {
	if e.Within == "" {
		return fmt.Sprintf("class %q not found: super() used outside a class", e.Class)
	}
	return fmt.Sprintf("class %q not found in MRO of %s", e.Class, e.Within)
}

// UnsupportedSuperCallError reports a super(...) call with an argument shape
// other than super() or super(Class, self).
type UnsupportedSuperCallError struct {
	Callable model.Identity
	Text     string
	Line     int
}

func (e *UnsupportedSuperCallError) Error() string {
	return fmt.Sprintf("%s line %d: unsupported super() call pattern, only super() or super(ClassName, self) are supported: %s",
		e.Callable, e.Line, e.Text)
}

// CallableNotFoundError reports a dotted name that resolves to nothing callable.
type CallableNotFoundError struct {
	Name string
}

func (e *CallableNotFoundError) Error() string {
	return fmt.Sprintf("cannot import %q: no such class or function in the source roots", e.Name)
}

func joinIdentities(ids []model.Identity) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, " → ")
}
