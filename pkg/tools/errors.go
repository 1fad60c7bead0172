package tools

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound      = errors.New("tool not found")
	ErrInvalidDefinition = errors.New("invalid tool definition")
	ErrToolExecution     = errors.New("tool execution failed")
)

// NotFoundError is returned when no source yields a tool by that name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// InvalidDefinitionError is returned when a definition cannot be loaded.
type InvalidDefinitionError struct {
	Name   string
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("invalid tool definition: %s", e.Reason)
	}
	return fmt.Sprintf("invalid tool definition %q: %s", e.Name, e.Reason)
}

func (e *InvalidDefinitionError) Is(target error) bool { return target == ErrInvalidDefinition }

// ExecutionError wraps an error raised by a tool handler.
type ExecutionError struct {
	Name string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Name, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrToolExecution }
