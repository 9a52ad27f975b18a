package resolve

import "fmt"

// UnknownRefError reports a reference to a value that is not bound in the
// environment.
type UnknownRefError struct {
	Name    string
	Context string
}

// Error implements the error interface.
func (e *UnknownRefError) Error() string {
	return fmt.Sprintf("unknown value reference ${%s} in %q", e.Name, e.Context)
}

// CycleError reports a reference chain that never terminates.
type CycleError struct {
	Context string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("value reference cycle detected while resolving %q", e.Context)
}
