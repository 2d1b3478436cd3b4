package domain

import (
	"time"
)

// Message represents a single entry in a run's conversation
type Message struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runID"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Part represents content within a message
type Part interface {
	PartType() string
}

type TextPart struct {
	Text string `json:"text"`
}

func (p TextPart) PartType() string { return PartTypeText }

// ToolCallPart is a tool invocation requested by the model
type ToolCallPart struct {
	ToolID string         `json:"toolID"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args"`
}

// RawArgsKey holds call arguments that did not decode as a JSON object
const RawArgsKey = "_raw"

func (p ToolCallPart) PartType() string { return PartTypeToolCall }

// ToolResultPart answers exactly one ToolCallPart, matched by ToolID
type ToolResultPart struct {
	ToolID   string        `json:"toolID"`
	Name     string        `json:"name"`
	Output   string        `json:"output"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (p ToolResultPart) PartType() string { return PartTypeToolResult }

// Failed reports whether the tool call produced an error instead of output
func (p ToolResultPart) Failed() bool { return p.Error != "" }

type ImagePart struct {
	Base64    string `json:"base64"`
	MediaType string `json:"mediaType"`
}

func (p ImagePart) PartType() string { return PartTypeImage }

// Text concatenates all text parts of the message
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// ToolCalls returns the tool call parts of the message in order
func (m Message) ToolCalls() []ToolCallPart {
	var calls []ToolCallPart
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCallPart); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// ToolResult returns the first tool result part of the message, if any
func (m Message) ToolResult() (ToolResultPart, bool) {
	for _, p := range m.Parts {
		if tr, ok := p.(ToolResultPart); ok {
			return tr, true
		}
	}
	return ToolResultPart{}, false
}
