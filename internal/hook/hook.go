// Package hook lets callers observe and veto steps of an agent run.
package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/joss/taskagent/internal/domain"
)

// HookType identifies when a hook should be called
type HookType string

const (
	HookPreToolExec  HookType = "pre_tool_exec"
	HookPostToolExec HookType = "post_tool_exec"

	// Lifecycle hooks
	HookRunStart HookType = "run_start"
	HookRunEnd   HookType = "run_end"
)

// Context passed to hooks
type Context struct {
	Type       HookType
	RunID      string
	Step       int
	ToolCall   *domain.ToolCallPart
	ToolResult *domain.ToolResultPart
	// State is the run's final state, set for HookRunEnd
	State string
	Error error
}

// Result returned by hooks
type Result struct {
	Continue bool  // Whether to continue processing
	Error    error // Reason when Continue is false
}

// Hook is a function called at specific points in execution
type Hook func(ctx context.Context, hctx *Context) Result

// Registry manages hooks. Hooks run in registration order and the first
// one that stops processing wins.
type Registry struct {
	mu    sync.RWMutex
	hooks map[HookType][]Hook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		hooks: make(map[HookType][]Hook),
	}
}

// Register adds a hook for a specific type
func (r *Registry) Register(hookType HookType, hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hookType] = append(r.hooks[hookType], hook)
}

// Run executes all hooks of a given type
func (r *Registry) Run(ctx context.Context, hctx *Context) Result {
	if r == nil {
		return Result{Continue: true}
	}
	r.mu.RLock()
	hooks := r.hooks[hctx.Type]
	r.mu.RUnlock()

	for _, hook := range hooks {
		result := hook(ctx, hctx)
		if !result.Continue || result.Error != nil {
			return result
		}
	}
	return Result{Continue: true}
}

// Has checks if any hooks are registered for a type
func (r *Registry) Has(hookType HookType) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks[hookType]) > 0
}

// Clear removes all hooks of a type
func (r *Registry) Clear(hookType HookType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, hookType)
}

// Predefined hooks

// LoggingHook reports hook invocations through logf
func LoggingHook(logf func(string, ...any)) Hook {
	return func(ctx context.Context, hctx *Context) Result {
		switch hctx.Type {
		case HookPreToolExec:
			if hctx.ToolCall != nil {
				logf("hook: pre_tool_exec run=%s step=%d tool=%s", hctx.RunID, hctx.Step, hctx.ToolCall.Name)
			}
		case HookPostToolExec:
			if hctx.ToolResult != nil {
				logf("hook: post_tool_exec run=%s step=%d tool=%s failed=%t",
					hctx.RunID, hctx.Step, hctx.ToolResult.Name, hctx.ToolResult.Failed())
			}
		case HookRunStart:
			logf("hook: run_start run=%s", hctx.RunID)
		case HookRunEnd:
			logf("hook: run_end run=%s state=%s", hctx.RunID, hctx.State)
		}
		return Result{Continue: true}
	}
}

// ValidationHook stops processing when validate returns an error
func ValidationHook(validate func(*Context) error) Hook {
	return func(ctx context.Context, hctx *Context) Result {
		if err := validate(hctx); err != nil {
			return Result{Continue: false, Error: err}
		}
		return Result{Continue: true}
	}
}

// DenyTools blocks calls to the named tools. Meant for HookPreToolExec.
func DenyTools(names ...string) Hook {
	denied := make(map[string]bool, len(names))
	for _, n := range names {
		denied[n] = true
	}
	return ValidationHook(func(hctx *Context) error {
		if hctx.ToolCall != nil && denied[hctx.ToolCall.Name] {
			return fmt.Errorf("tool %q is disabled", hctx.ToolCall.Name)
		}
		return nil
	})
}
