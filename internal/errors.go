package sqcrab

import (
	"errors"
	"fmt"
)

var (
	ErrFunctionExists    = errors.New("function is already registered")
	ErrUnknownHandle     = errors.New("vm handle is not registered")
	ErrOutOfFrame        = errors.New("stack position is outside of the call frame")
	ErrStaleReference    = errors.New("reference outlived the call that produced it")
	ErrNullReference     = errors.New("reference is null")
	ErrOutOfRange        = errors.New("value is out of range")
	ErrNoReceiver        = errors.New("no receiver is bound")
	ErrNoRefScope        = errors.New("references can only be pushed while the vm is executing")
	ErrUnsupportedType   = errors.New("type is not supported by the conversion protocol")
	ErrInvalidUnit       = errors.New("invalid precompiled unit")
	ErrFunctionNotFound  = errors.New("function not found")
	ErrInvalidTransition = errors.New("invalid vm state transition")
	ErrSuspended         = errors.New("vm is suspended")
	ErrClosed            = errors.New("vm is closed")
	ErrArity             = errors.New("wrong number of arguments")
)

// TypeMismatchError is returned when a stack slot does not hold the kind of
// value the caller asked for.
type TypeMismatchError struct {
	Depth    int
	Expected Kind
	Actual   Kind
	Want     string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("type mismatch at position %d: expected %s, got %s", e.Depth, e.Want, e.Got)
	}
	return fmt.Sprintf("type mismatch at position %d: expected %s, got %s", e.Depth, e.Expected, e.Actual)
}

// CompileError describes a script that could not be compiled.
type CompileError struct {
	Desc   string
	Source string
	Line   int
	Column int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("could not compile %s:%d:%d: %s", e.Source, e.Line, e.Column, e.Desc)
}

// CallError is returned when the engine reports a failure while running a
// script function or a unit initializer.
type CallError struct {
	Function  string
	Err       error
	Traceback string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("could not call %s: %v", e.Function, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// AdapterError is raised inside the script when a bound host function fails.
// It travels through the engine as the error object, so host code gets the
// original Go error back from Call.
type AdapterError struct {
	Function string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s: %v", e.Function, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
