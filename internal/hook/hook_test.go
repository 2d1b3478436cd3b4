package hook

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joss/taskagent/internal/domain"
)

func TestRegister(t *testing.T) {
	r := NewRegistry()

	r.Register(HookPreToolExec, func(ctx context.Context, hctx *Context) Result {
		return Result{Continue: true}
	})

	assert.True(t, r.Has(HookPreToolExec))
	assert.False(t, r.Has(HookPostToolExec))

	r.Clear(HookPreToolExec)
	assert.False(t, r.Has(HookPreToolExec))
}

func TestRunOrder(t *testing.T) {
	r := NewRegistry()

	var called []int
	r.Register(HookPreToolExec, func(ctx context.Context, hctx *Context) Result {
		called = append(called, 1)
		return Result{Continue: true}
	})
	r.Register(HookPreToolExec, func(ctx context.Context, hctx *Context) Result {
		called = append(called, 2)
		return Result{Continue: true}
	})

	result := r.Run(context.Background(), &Context{Type: HookPreToolExec})
	assert.True(t, result.Continue)
	assert.Equal(t, []int{1, 2}, called)
}

func TestRunNoHooks(t *testing.T) {
	result := NewRegistry().Run(context.Background(), &Context{Type: HookRunStart})
	assert.True(t, result.Continue)
	assert.NoError(t, result.Error)

	var nilRegistry *Registry
	assert.True(t, nilRegistry.Run(context.Background(), &Context{Type: HookRunStart}).Continue)
	assert.False(t, nilRegistry.Has(HookRunStart))
}

func TestRunStopsAtFirstVeto(t *testing.T) {
	r := NewRegistry()
	blocked := errors.New("blocked")

	secondCalled := false
	r.Register(HookPreToolExec, ValidationHook(func(*Context) error { return blocked }))
	r.Register(HookPreToolExec, func(ctx context.Context, hctx *Context) Result {
		secondCalled = true
		return Result{Continue: true}
	})

	result := r.Run(context.Background(), &Context{Type: HookPreToolExec})
	assert.False(t, result.Continue)
	assert.ErrorIs(t, result.Error, blocked)
	assert.False(t, secondCalled)
}

func TestDenyTools(t *testing.T) {
	hook := DenyTools("browser_use")

	denied := hook(context.Background(), &Context{
		Type:     HookPreToolExec,
		ToolCall: &domain.ToolCallPart{Name: "browser_use"},
	})
	assert.False(t, denied.Continue)
	assert.Contains(t, denied.Error.Error(), "browser_use")

	allowed := hook(context.Background(), &Context{
		Type:     HookPreToolExec,
		ToolCall: &domain.ToolCallPart{Name: "file_saver"},
	})
	assert.True(t, allowed.Continue)
}

func TestLoggingHook(t *testing.T) {
	var lines []string
	hook := LoggingHook(func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	ctx := context.Background()
	hook(ctx, &Context{Type: HookRunStart, RunID: "r1"})
	hook(ctx, &Context{Type: HookPreToolExec, RunID: "r1", Step: 1, ToolCall: &domain.ToolCallPart{Name: "end_game"}})
	hook(ctx, &Context{Type: HookPostToolExec, RunID: "r1", Step: 1, ToolResult: &domain.ToolResultPart{Name: "end_game"}})
	hook(ctx, &Context{Type: HookRunEnd, RunID: "r1", State: "terminated"})

	assert.Equal(t, []string{
		"hook: run_start run=r1",
		"hook: pre_tool_exec run=r1 step=1 tool=end_game",
		"hook: post_tool_exec run=r1 step=1 tool=end_game failed=false",
		"hook: run_end run=r1 state=terminated",
	}, lines)
}
