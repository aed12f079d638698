package engine

import "fmt"

// FatalError marks a precondition failure that aborts the whole run:
// missing inventory, a group that cannot be ensured, an unregistered
// capability. Per-item reservation and binding failures are never fatal;
// they are counted in the report instead.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(stage string, err error) *FatalError {
	return &FatalError{Stage: stage, Err: err}
}
