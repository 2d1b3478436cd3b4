package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/joss/taskagent/internal/domain"
	"github.com/joss/taskagent/pkg/llm"
)

const openaiAPIURL = "https://api.openai.com/v1/chat/completions"

// OpenAI streams chat completions from the OpenAI API or any server that
// speaks the same protocol.
type OpenAI struct {
	id      string
	apiKey  string
	baseURL string
	client  HTTPClient
}

func NewOpenAIWithClient(apiKey, baseURL string, client HTTPClient) *OpenAI {
	return &OpenAI{
		id:      string(ProviderOpenAI),
		apiKey:  apiKey,
		baseURL: completionsURL(baseURL),
		client:  client,
	}
}

// NewOpenAICompatible posts to baseURL as given, without path normalization
func NewOpenAICompatible(apiKey, baseURL string) *OpenAI {
	return NewOpenAICompatibleWithClient(apiKey, baseURL, &http.Client{})
}

func NewOpenAICompatibleWithClient(apiKey, baseURL string, client HTTPClient) *OpenAI {
	return &OpenAI{
		id:      string(ProviderCompatible),
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  client,
	}
}

// completionsURL turns a base URL into the chat completions endpoint
func completionsURL(baseURL string) string {
	if baseURL == "" {
		return openaiAPIURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasSuffix(baseURL, "/chat/completions"):
		return baseURL
	case strings.HasSuffix(baseURL, "/v1"):
		return baseURL + "/chat/completions"
	default:
		return baseURL + "/v1/chat/completions"
	}
}

func (o *OpenAI) ID() string { return o.id }

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  domain.JSONSchema `json:"parameters"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

// buildMessages converts the conversation to the wire format. Each tool
// result becomes its own "tool" message; images from tool results follow
// as a user message since tool messages only carry text.
func buildMessages(req *llm.ChatRequest) []openaiMessage {
	msgs := make([]openaiMessage, 0, len(req.Messages)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openaiMessage{Role: "system", Content: req.SystemPrompt})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			msgs = append(msgs, openaiMessage{Role: "system", Content: m.Text()})
			continue
		case domain.RoleTool:
			var images []openaiContentPart
			for _, p := range m.Parts {
				switch part := p.(type) {
				case domain.ToolResultPart:
					msgs = append(msgs, openaiMessage{
						Role:       "tool",
						Content:    part.Output,
						ToolCallID: part.ToolID,
					})
				case domain.ImagePart:
					images = append(images, imageContent(part))
				}
			}
			if len(images) > 0 {
				msgs = append(msgs, openaiMessage{Role: "user", Content: images})
			}
			continue
		}

		msg := openaiMessage{Role: string(m.Role)}
		var contentParts []openaiContentPart
		hasImage := false

		for _, p := range m.Parts {
			switch part := p.(type) {
			case domain.TextPart:
				contentParts = append(contentParts, openaiContentPart{Type: "text", Text: part.Text})
			case domain.ImagePart:
				hasImage = true
				contentParts = append(contentParts, imageContent(part))
			case domain.ToolCallPart:
				msg.ToolCalls = append(msg.ToolCalls, openaiToolCall{
					ID:   part.ToolID,
					Type: "function",
					Function: openaiFunctionCall{
						Name:      part.Name,
						Arguments: mustJSON(part.Args),
					},
				})
			}
		}

		// Use array format when there are images, string when just text
		if hasImage || len(contentParts) > 1 {
			msg.Content = contentParts
		} else if len(contentParts) == 1 {
			msg.Content = contentParts[0].Text
		}

		if msg.Content != nil || len(msg.ToolCalls) > 0 {
			msgs = append(msgs, msg)
		}
	}

	if req.NextStepPrompt != "" {
		msgs = append(msgs, openaiMessage{Role: "user", Content: req.NextStepPrompt})
	}
	return msgs
}

func imageContent(part domain.ImagePart) openaiContentPart {
	return openaiContentPart{
		Type: "image_url",
		ImageURL: &openaiImageURL{
			URL:    "data:" + part.MediaType + ";base64," + part.Base64,
			Detail: "auto",
		},
	}
}

func buildRequestBody(req *llm.ChatRequest) map[string]any {
	body := map[string]any{
		"model":          req.Model,
		"messages":       buildMessages(req),
		"stream":         true,
		"stream_options": map[string]any{"include_usage": true},
	}

	if !req.DisableTools && len(req.Tools) > 0 {
		tools := make([]openaiTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			params := t.Parameters
			if params == nil {
				params = domain.JSONSchema{"type": "object", "properties": map[string]any{}}
			}
			tools = append(tools, openaiTool{
				Type:     "function",
				Function: openaiFunction{Name: t.Name, Description: t.Description, Parameters: params},
			})
		}
		body["tools"] = tools
		body["tool_choice"] = "auto"
	}

	if req.MaxTokens > 0 {
		// Reasoning models require max_completion_tokens
		if strings.HasPrefix(req.Model, "o1") || strings.HasPrefix(req.Model, "o3") || strings.HasPrefix(req.Model, "gpt-5") {
			body["max_completion_tokens"] = req.MaxTokens
		} else {
			body["max_tokens"] = req.MaxTokens
		}
	}

	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	return body
}

func (o *OpenAI) Chat(ctx context.Context, req *llm.ChatRequest) (<-chan domain.StreamEvent, error) {
	jsonBody, err := json.Marshal(buildRequestBody(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	events := make(chan domain.StreamEvent, 100)
	go o.streamResponse(ctx, resp.Body, events)
	return events, nil
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *openaiUsage     `json:"usage,omitempty"`
	Error *openaiErrorBody `json:"error,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// pendingCall accumulates a streamed tool call; arguments arrive in fragments
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func (o *OpenAI) streamResponse(ctx context.Context, body io.ReadCloser, events chan<- domain.StreamEvent) {
	defer close(events)
	defer body.Close()

	send := func(ev domain.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	calls := make(map[int]*pendingCall)
	flushed := false
	flushCalls := func() bool {
		if flushed {
			return true
		}
		flushed = true
		for _, part := range finishCalls(calls) {
			if !send(domain.StreamEvent{Type: domain.StreamEventToolCall, Part: part}) {
				return false
			}
		}
		return true
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			if flushCalls() {
				send(domain.StreamEvent{Type: domain.StreamEventDone, Done: true})
			}
			return
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if chunk.Error != nil {
			send(domain.StreamEvent{Type: domain.StreamEventError, Error: fmt.Errorf("stream error: %s", chunk.Error.Message)})
			return
		}

		// Usage arrives in a final chunk when stream_options.include_usage is set
		if chunk.Usage != nil {
			if !send(domain.StreamEvent{
				Type: domain.StreamEventUsage,
				Usage: &domain.Usage{
					InputTokens:  chunk.Usage.PromptTokens,
					OutputTokens: chunk.Usage.CompletionTokens,
				},
			}) {
				return
			}
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if !send(domain.StreamEvent{Type: domain.StreamEventText, Content: choice.Delta.Content}) {
					return
				}
			}

			for _, tc := range choice.Delta.ToolCalls {
				call, ok := calls[tc.Index]
				if !ok {
					call = &pendingCall{}
					calls[tc.Index] = call
				}
				if tc.ID != "" {
					call.id = tc.ID
				}
				if tc.Function.Name != "" {
					call.name = tc.Function.Name
				}
				call.args.WriteString(tc.Function.Arguments)
			}

			if choice.FinishReason == "tool_calls" {
				if !flushCalls() {
					return
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(domain.StreamEvent{Type: domain.StreamEventError, Error: fmt.Errorf("read stream: %w", err)})
		return
	}
	// some compatible servers end the stream without [DONE]
	if flushCalls() {
		send(domain.StreamEvent{Type: domain.StreamEventDone, Done: true})
	}
}

// finishCalls parses accumulated arguments and returns calls in index order.
// Arguments that are not a JSON object are passed through under domain.RawArgsKey so
// schema validation reports them instead of silently dropping them.
func finishCalls(calls map[int]*pendingCall) []domain.ToolCallPart {
	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	parts := make([]domain.ToolCallPart, 0, len(indexes))
	for _, i := range indexes {
		c := calls[i]
		args := map[string]any{}
		raw := strings.TrimSpace(c.args.String())
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				args = map[string]any{domain.RawArgsKey: raw}
			}
		}
		parts = append(parts, domain.ToolCallPart{ToolID: c.id, Name: c.name, Args: args})
	}
	return parts
}

func mustJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// APIError is a non-200 response from the provider
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

var _ llm.Provider = (*OpenAI)(nil)
