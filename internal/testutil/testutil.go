// Package testutil provides common test helpers and utilities.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/internal/tool"
	"github.com/joss/taskagent/pkg/llm"
)

// MockProvider replays scripted responses, one per Chat call.
// Once the script runs out the last response is repeated.
type MockProvider struct {
	responses [][]domain.StreamEvent
	requests  []*llm.ChatRequest
	err       error
	mu        sync.Mutex
}

func NewMockProvider(responses ...[]domain.StreamEvent) *MockProvider {
	return &MockProvider{responses: responses}
}

// FailingProvider returns a provider whose every Chat call fails with err
func FailingProvider(err error) *MockProvider {
	return &MockProvider{err: err}
}

func (m *MockProvider) ID() string { return "mock" }

func (m *MockProvider) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	m.mu.Lock()
	idx := len(m.requests)
	m.requests = append(m.requests, cloneRequest(req))
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var script []domain.StreamEvent
	switch {
	case idx < len(m.responses):
		script = m.responses[idx]
	case len(m.responses) > 0:
		script = m.responses[len(m.responses)-1]
	}

	events := make(chan domain.StreamEvent, len(script)+1)
	for _, event := range script {
		events <- event
	}
	close(events)
	return events, nil
}

// CallCount returns the number of Chat calls so far
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the requests received so far
func (m *MockProvider) Requests() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*llm.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func cloneRequest(req *llm.ChatRequest) *llm.ChatRequest {
	c := *req
	c.Messages = append([]domain.Message(nil), req.Messages...)
	c.Tools = append([]domain.Tool(nil), req.Tools...)
	return &c
}

// MockTool is a simple tool for testing.
type MockTool struct {
	ToolName   string
	ToolResult string
	Params     domain.JSONSchema
	Err        error
	Panic      any
	Delay      time.Duration
	OnExecute  func(args map[string]any)

	mu    sync.Mutex
	calls []map[string]any
}

func NewMockTool(name string) *MockTool {
	return &MockTool{ToolName: name}
}

func (m *MockTool) WithResult(result string) *MockTool {
	m.ToolResult = result
	return m
}

func (m *MockTool) WithError(err error) *MockTool {
	m.Err = err
	return m
}

func (m *MockTool) WithPanic(v any) *MockTool {
	m.Panic = v
	return m
}

func (m *MockTool) WithParams(params domain.JSONSchema) *MockTool {
	m.Params = params
	return m
}

func (m *MockTool) WithDelay(d time.Duration) *MockTool {
	m.Delay = d
	return m
}

func (m *MockTool) WithCallback(fn func(args map[string]any)) *MockTool {
	m.OnExecute = fn
	return m
}

func (m *MockTool) Info() domain.Tool {
	params := m.Params
	if params == nil {
		params = domain.JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
		}
	}
	return domain.Tool{
		Name:             m.ToolName,
		ShortDescription: "Mock " + m.ToolName,
		Description:      "Mock tool for testing",
		Parameters:       params,
	}
}

func (m *MockTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.OnExecute != nil {
		m.OnExecute(args)
	}
	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	if m.ToolResult != "" {
		return &tool.Result{Output: m.ToolResult}, nil
	}

	msg, _ := args["message"].(string)
	return &tool.Result{Output: msg}, nil
}

// Calls returns the arguments of every Execute call
func (m *MockTool) Calls() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockTerminator is a MockTool that ends the run when invoked
type MockTerminator struct {
	*MockTool
}

func NewMockTerminator(name string) *MockTerminator {
	return &MockTerminator{MockTool: NewMockTool(name)}
}

func (m *MockTerminator) Terminal() bool { return true }

// Registry builds a registry from tools, failing on the first error
func Registry(tools ...tool.Executor) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// TextResponse creates a simple text response event sequence.
func TextResponse(text string) []domain.StreamEvent {
	return []domain.StreamEvent{
		{Type: domain.StreamEventText, Content: text},
		{Type: domain.StreamEventDone, Done: true},
	}
}

// ToolCallResponse creates a tool call event sequence.
func ToolCallResponse(toolID, name string, args map[string]any) []domain.StreamEvent {
	return ToolCallsResponse(domain.ToolCallPart{ToolID: toolID, Name: name, Args: args})
}

// ToolCallsResponse creates an event sequence with several tool calls in order.
func ToolCallsResponse(calls ...domain.ToolCallPart) []domain.StreamEvent {
	events := make([]domain.StreamEvent, 0, len(calls)+1)
	for _, c := range calls {
		events = append(events, domain.StreamEvent{Type: domain.StreamEventToolCall, Part: c})
	}
	return append(events, domain.StreamEvent{Type: domain.StreamEventDone, Done: true})
}

// ErrorResponse creates a stream that fails with err.
func ErrorResponse(err error) []domain.StreamEvent {
	if err == nil {
		err = errors.New("stream failed")
	}
	return []domain.StreamEvent{{Type: domain.StreamEventError, Error: err}}
}
