package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/joss/taskagent/internal/domain"
)

// ErrEmptyStream is returned when a provider closes its stream without content
var ErrEmptyStream = errors.New("model returned an empty response")

// Response is a fully drained model reply
type Response struct {
	Decision domain.Decision
	Usage    *domain.Usage
}

// Decide sends req and folds the streamed reply into a single Decision
func Decide(ctx context.Context, p Provider, req *ChatRequest) (domain.Decision, error) {
	resp, err := Collect(ctx, p, req)
	if err != nil {
		return nil, err
	}
	return resp.Decision, nil
}

// Collect drains the provider stream. Text events are concatenated and tool
// call events kept in arrival order. An error event fails the whole reply.
func Collect(ctx context.Context, p Provider, req *ChatRequest) (*Response, error) {
	events, err := p.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat %s: %w", p.ID(), err)
	}

	var (
		text  string
		calls []domain.ToolCallPart
		usage *domain.Usage
		seen  bool
	)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event, ok := <-events:
			if !ok {
				if !seen {
					return nil, ErrEmptyStream
				}
				return &Response{Decision: decision(text, calls), Usage: usage}, nil
			}
			switch event.Type {
			case domain.StreamEventText:
				text += event.Content
				seen = true
			case domain.StreamEventToolCall:
				if tc, ok := event.Part.(domain.ToolCallPart); ok {
					calls = append(calls, tc)
					seen = true
				}
			case domain.StreamEventUsage:
				usage = event.Usage
			case domain.StreamEventError:
				if event.Error == nil {
					return nil, fmt.Errorf("%s: stream error", p.ID())
				}
				return nil, event.Error
			case domain.StreamEventDone:
				seen = true
			}
		}
	}
}

func decision(text string, calls []domain.ToolCallPart) domain.Decision {
	if len(calls) == 0 {
		return domain.TextDecision{Text: text}
	}
	return domain.ToolCallsDecision{Text: text, Calls: calls}
}
