package domain

// StreamEvent represents events during a streamed model response
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
	Part    Part            `json:"part,omitempty"`
	Error   error           `json:"error,omitempty"`
	Done    bool            `json:"done,omitempty"`
	Usage   *Usage          `json:"usage,omitempty"`
}

type StreamEventType string

const (
	StreamEventText     StreamEventType = "text"
	StreamEventToolCall StreamEventType = "tool_call"
	StreamEventDone     StreamEventType = "done"
	StreamEventError    StreamEventType = "error"
	StreamEventUsage    StreamEventType = "usage"
)

// Usage tracks token usage for one model call
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
