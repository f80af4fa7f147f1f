package thread

import "fmt"

// Error reports a programmer error raised by the Thread Model: invalid
// role, a tool message without a tool_call_id, or any other construction
// invariant violation. These are never recovered internally.
type Error struct {
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(component, operation, message string, err error) *Error {
	return &Error{Component: component, Operation: operation, Message: message, Err: err}
}
