package assist

import "fmt"

// UnknownTaskError is returned for a task name outside Tasks.
type UnknownTaskError struct {
	Name string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown assist task %q", e.Name)
}

// ParseError means the model reply held no decodable JSON object.
type ParseError struct {
	Task Task
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s reply: %v", e.Task, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
