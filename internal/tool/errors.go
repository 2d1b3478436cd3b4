package tool

import (
	"errors"
	"fmt"
	"strings"
)

type ToolError string

func (e ToolError) Error() string { return string(e) }

const (
	ErrToolNotFound        ToolError = "tool not found"
	ErrInvalidArgs         ToolError = "invalid arguments"
	ErrDuplicateTerminator ToolError = "registry already has a termination tool"
	ErrNoTerminator        ToolError = "registry has no termination tool"
)

// DuplicateToolError is returned when a name is registered twice
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// UnknownToolError is returned when a name is not in the registry
type UnknownToolError struct {
	Name      string
	Available []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

func (e *UnknownToolError) Unwrap() error { return ErrToolNotFound }

// InvalidSchemaError is returned when a tool's parameter schema is unusable
type InvalidSchemaError struct {
	Name   string
	Reason string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("tool %q has invalid schema: %s", e.Name, e.Reason)
}

// InvalidArgumentsError is returned when call arguments fail schema validation
type InvalidArgumentsError struct {
	Name     string
	Problems []string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %q: %s", e.Name, strings.Join(e.Problems, "; "))
}

func (e *InvalidArgumentsError) Unwrap() error { return ErrInvalidArgs }

// ToolExecutionError wraps a failure raised by a tool's Execute
type ToolExecutionError struct {
	Name string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q failed: %v", e.Name, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ConfigurationError reports an unusable tool configuration entry.
// It is never fatal: the build policy resolves it by skipping or falling back.
type ConfigurationError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Name == "" {
		return "tool configuration: " + e.Reason
	}
	return fmt.Sprintf("tool configuration %q: %s", e.Name, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsUnknownTool checks if an error is an unknown tool error
func IsUnknownTool(err error) bool {
	return errors.Is(err, ErrToolNotFound)
}

// IsInvalidArgs checks if an error is an argument validation error
func IsInvalidArgs(err error) bool {
	return errors.Is(err, ErrInvalidArgs)
}
