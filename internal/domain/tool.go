package domain

// Tool describes a capability the agent can invoke. Immutable once registered.
type Tool struct {
	Name             string     `json:"name"`
	ShortDescription string     `json:"shortDescription"`
	Description      string     `json:"description"`
	Parameters       JSONSchema `json:"parameters"`
}

type JSONSchema map[string]any

// Properties returns the schema's property map, or nil
func (s JSONSchema) Properties() map[string]any {
	props, _ := s["properties"].(map[string]any)
	return props
}

// Required returns the schema's required keys
func (s JSONSchema) Required() []string {
	switch req := s["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}
