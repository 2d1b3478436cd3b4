package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/hook"
	"github.com/joss/taskagent/internal/tool"
)

// Invocation is the normalized outcome of one tool call
type Invocation struct {
	Part   domain.ToolResultPart
	Images []domain.ImagePart
	// Terminated is set when the termination tool ran successfully
	Terminated bool
	// Message is the termination tool's message argument
	Message string
}

// Invoker dispatches tool calls. Every failure (unknown tool, bad arguments,
// hook veto, tool error or panic) becomes a failed result; Invoke never
// returns an error.
type Invoker struct {
	tools  *tool.Registry
	hooks  *hook.Registry
	logger *AgentLogger
}

// NewInvoker creates an invoker over a registry
func NewInvoker(tools *tool.Registry, hooks *hook.Registry, logger *AgentLogger) *Invoker {
	if logger == nil {
		logger = NewAgentLogger()
	}
	return &Invoker{tools: tools, hooks: hooks, logger: logger}
}

// Invoke runs a single call
func (v *Invoker) Invoke(ctx context.Context, runID string, step int, call domain.ToolCallPart) Invocation {
	start := time.Now()
	part := domain.ToolResultPart{ToolID: call.ToolID, Name: call.Name}

	inv, ran := v.dispatch(ctx, runID, step, call, &part)
	part.Duration = time.Since(start)
	inv.Part = part

	if ran && part.Error == "" && v.tools.IsTerminator(call.Name) {
		inv.Terminated = true
		msg, _ := call.Args["message"].(string)
		inv.Message = msg
	}

	v.hooks.Run(ctx, &hook.Context{
		Type:       hook.HookPostToolExec,
		RunID:      runID,
		Step:       step,
		ToolCall:   &call,
		ToolResult: &inv.Part,
	})
	v.logger.ToolCall(ctx, runID, call.Name, call.Args, part.Duration, part.Output, part.Error)
	return inv
}

// dispatch fills part and reports whether the tool itself was executed
func (v *Invoker) dispatch(ctx context.Context, runID string, step int, call domain.ToolCallPart, part *domain.ToolResultPart) (Invocation, bool) {
	exec, err := v.tools.Resolve(call.Name)
	if err != nil {
		fail(part, err.Error())
		return Invocation{}, false
	}

	args, err := v.tools.Validate(call.Name, call.Args)
	if err != nil {
		fail(part, fmt.Sprintf("%v. Expected parameters: %s", err, describeParams(exec.Info().Parameters)))
		return Invocation{}, false
	}

	pre := v.hooks.Run(ctx, &hook.Context{
		Type:     hook.HookPreToolExec,
		RunID:    runID,
		Step:     step,
		ToolCall: &call,
	})
	if !pre.Continue || pre.Error != nil {
		reason := "blocked by hook"
		if pre.Error != nil {
			reason = "blocked by hook: " + pre.Error.Error()
		}
		fail(part, reason)
		return Invocation{}, false
	}

	res, err := safeExecute(ctx, exec, args)
	if err == nil && res != nil && res.Error != nil {
		err = res.Error
	}
	if err != nil {
		fail(part, (&tool.ToolExecutionError{Name: call.Name, Err: err}).Error())
		return Invocation{}, true
	}

	var inv Invocation
	if res != nil {
		part.Output = res.Output
		inv.Images = res.Images
	}
	return inv, true
}

// safeExecute runs the tool, turning a panic into an error
func safeExecute(ctx context.Context, exec tool.Executor, args map[string]any) (res *tool.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return exec.Execute(ctx, args)
}

func fail(part *domain.ToolResultPart, reason string) {
	part.Error = reason
	part.Output = "Error: " + reason
}

// describeParams renders a schema's properties as "name (type, required)"
func describeParams(schema domain.JSONSchema) string {
	props := schema.Properties()
	if len(props) == 0 {
		return "none"
	}
	required := make(map[string]bool)
	for _, r := range schema.Required() {
		required[r] = true
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := "any"
		if prop, ok := props[name].(map[string]any); ok {
			if s, ok := prop["type"].(string); ok {
				typ = s
			}
		}
		if required[name] {
			typ += ", required"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", name, typ))
	}
	return strings.Join(parts, ", ")
}
