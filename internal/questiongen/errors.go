package questiongen

import "fmt"

// MalformedResponseError indicates the model answered but the text could
// not be turned into results. Raw is kept for diagnostics and is never
// shown to end users.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed AI response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// InvalidOperationError is a local precondition failure detected before
// any gateway call.
type InvalidOperationError struct {
	Op     Operation
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid %s operation: %s", e.Op, e.Reason)
}
