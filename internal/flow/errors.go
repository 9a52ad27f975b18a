package flow

import "fmt"

// MultipleProducersError reports a dependency declared in the produces list
// of more than one stage.
type MultipleProducersError struct {
	Artifact string
	First    string
	Second   string
}

// Error implements the error interface.
func (e *MultipleProducersError) Error() string {
	return fmt.Sprintf("dependency %q is produced by stage %q and %q: dependencies can have at most one producer",
		e.Artifact, e.First, e.Second)
}

// UnreachableTargetError reports a target that cannot be realised because a
// stage on its dependency chain is missing a required input.
type UnreachableTargetError struct {
	Target string
	Stage  string
	Input  string
}

// Error implements the error interface.
func (e *UnreachableTargetError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("target %q is unreachable: stage %q is missing required input %q",
			e.Target, e.Stage, e.Input)
	}
	return fmt.Sprintf("target %q is unreachable", e.Target)
}

// PromiseViolationError reports a stage that ran successfully but did not
// produce a dependency it declared.
type PromiseViolationError struct {
	Stage    string
	Artifact string
}

// Error implements the error interface.
func (e *PromiseViolationError) Error() string {
	return fmt.Sprintf("stage %q did not produce promised dependency %q", e.Stage, e.Artifact)
}
