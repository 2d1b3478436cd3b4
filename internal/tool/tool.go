// Package tool holds the tool registry, its build policy, and the built-in tools.
package tool

import (
	"context"

	"github.com/joss/taskagent/internal/domain"
)

// Executor is the interface all tools must implement
type Executor interface {
	Info() domain.Tool
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Terminator marks the tool whose invocation ends a run.
// A registry holds exactly one.
type Terminator interface {
	Executor
	Terminal() bool
}

// Result holds the output of a tool execution
type Result struct {
	Title    string
	Output   string
	Metadata map[string]any
	Images   []domain.ImagePart
	Error    error
}

// Constructor builds a fresh tool instance
type Constructor func() Executor

func isTerminator(t Executor) bool {
	term, ok := t.(Terminator)
	return ok && term.Terminal()
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}
