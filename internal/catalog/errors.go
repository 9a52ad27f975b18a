package catalog

import "fmt"

// UnknownCollectionError reports a module reference naming a collection
// that does not exist under the sfbuild home.
type UnknownCollectionError struct {
	Collection string
	Ref        string
}

// Error implements the error interface.
func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("module collection %q does not exist (reference %q)", e.Collection, e.Ref)
}

// BadModuleRefError reports a module reference with invalid syntax.
type BadModuleRefError struct {
	Ref string
}

// Error implements the error interface.
func (e *BadModuleRefError) Error() string {
	return fmt.Sprintf("incorrect module reference %q: expected a path or collection:name", e.Ref)
}

// MissingModuleError reports a stage whose resolved module executable does
// not exist.
type MissingModuleError struct {
	Stage  string
	Module string
}

// Error implements the error interface.
func (e *MissingModuleError) Error() string {
	return fmt.Sprintf("stage %s: module file %s does not exist", e.Stage, e.Module)
}
