package domain

// Decision is one model response. The loop branches on the concrete variant.
type Decision interface {
	DecisionType() string
}

const (
	DecisionTypeText      = "text"
	DecisionTypeToolCalls = "tool_calls"
)

// TextDecision is a plain assistant message without tool calls
type TextDecision struct {
	Text string
}

func (d TextDecision) DecisionType() string { return DecisionTypeText }

// ToolCallsDecision requests one or more tool calls, processed in order
type ToolCallsDecision struct {
	Text  string
	Calls []ToolCallPart
}

func (d ToolCallsDecision) DecisionType() string { return DecisionTypeToolCalls }

// Parts returns the message parts recording this decision in a conversation
func DecisionParts(d Decision) []Part {
	switch dec := d.(type) {
	case TextDecision:
		return []Part{TextPart{Text: dec.Text}}
	case ToolCallsDecision:
		parts := make([]Part, 0, len(dec.Calls)+1)
		if dec.Text != "" {
			parts = append(parts, TextPart{Text: dec.Text})
		}
		for _, c := range dec.Calls {
			parts = append(parts, c)
		}
		return parts
	}
	return nil
}
