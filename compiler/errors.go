package compiler

import (
	"errors"
	"fmt"
)

var (
	ErrDisposed           = errors.New("compiler has been disposed")
	ErrNotPositioned      = errors.New("builder is not positioned at a block")
	ErrBlockTerminated    = errors.New("block already has a terminator")
	ErrUndeclaredFunction = errors.New("function has not been declared")
	ErrDuplicateBlock     = errors.New("block label already used in function")
	ErrForeignBlock       = errors.New("block was not created by this compiler")
	ErrForeignValue       = errors.New("value was not produced in the current function")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrNotScalar          = errors.New("not an integer type")
	ErrNoFixedParams      = errors.New("variadic function needs at least one fixed parameter")
	ErrArgCount           = errors.New("wrong number of arguments")
	ErrArgType            = errors.New("argument type does not match parameter")
	ErrInvalidModule      = errors.New("module is not well formed")
	ErrUnsupported        = errors.New("unsupported by native lowering")
)

// EmitError reports a failure to write the module out.
type EmitError struct {
	Op   string
	Path string
	Err  error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *EmitError) Unwrap() error {
	return e.Err
}
