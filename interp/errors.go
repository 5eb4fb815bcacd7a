package interp

import (
	"errors"
	"fmt"
)

// ErrNotLinked is the diagnostic reported when an engine is requested
// before LinkInInterpreter has run.
var ErrNotLinked = errors.New("interpreter has not been linked in")

// EngineError reports a failure to create or bind an execution engine. The
// Diagnostic is the backend's own explanation.
type EngineError struct {
	Op         string
	Diagnostic string
	Err        error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("interpreter: %s: %s", e.Op, e.Diagnostic)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// RuntimeError reports a fault while executing IR.
type RuntimeError struct {
	Function string
	Block    string
	Inst     string
	Err      error
}

func (e *RuntimeError) Error() string {
	if e.Inst != "" {
		return fmt.Sprintf("interpreter: @%s:%%%s: %s: %v", e.Function, e.Block, e.Inst, e.Err)
	}
	return fmt.Sprintf("interpreter: @%s: %v", e.Function, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrStackOverflow  = errors.New("call depth limit exceeded")
	ErrUnreachable    = errors.New("reached unreachable instruction")
	ErrArgCount       = errors.New("wrong number of arguments")
	ErrArgType        = errors.New("argument type mismatch")
	ErrIntWidth       = errors.New("unsupported integer width")
	ErrAllocationSize = errors.New("invalid allocation size")
)
