package tool

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/joss/taskagent/internal/domain"
)

type entry struct {
	info   domain.Tool
	exec   Executor
	schema *gojsonschema.Schema
}

// Registry holds the tools available to a run, in insertion order.
// It is read-only once built and safe to share between runs.
type Registry struct {
	order      []string
	entries    map[string]*entry
	terminator string
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Register adds a tool. The tool's schema is compiled here so that
// invalid schemas are rejected before any run starts.
func (r *Registry) Register(t Executor) error {
	info := t.Info()
	if info.Name == "" {
		return &InvalidSchemaError{Name: info.Name, Reason: "empty tool name"}
	}
	if _, ok := r.entries[info.Name]; ok {
		return &DuplicateToolError{Name: info.Name}
	}
	terminal := isTerminator(t)
	if terminal && r.terminator != "" {
		return ErrDuplicateTerminator
	}

	schema, err := compileSchema(info)
	if err != nil {
		return err
	}

	r.entries[info.Name] = &entry{info: info, exec: t, schema: schema}
	r.order = append(r.order, info.Name)
	if terminal {
		r.terminator = info.Name
	}
	return nil
}

// Resolve returns the executor registered under name
func (r *Registry) Resolve(name string) (Executor, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name, Available: r.Names()}
	}
	return e.exec, nil
}

// Has checks if a tool is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// List returns tool specs in insertion order
func (r *Registry) List() []domain.Tool {
	result := make([]domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.entries[name].info)
	}
	return result
}

// Names returns tool names in insertion order
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.order)
}

// Terminator returns the name of the termination tool, or "" if none
func (r *Registry) Terminator() string {
	return r.terminator
}

// IsTerminator reports whether name is the termination tool
func (r *Registry) IsTerminator(name string) bool {
	return r.terminator != "" && name == r.terminator
}

// Validate fills schema defaults into args and checks them against the
// tool's schema. The returned map is a copy; args is never modified.
func (r *Registry) Validate(name string, args map[string]any) (map[string]any, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name, Available: r.Names()}
	}
	if raw, ok := args[domain.RawArgsKey]; ok {
		return nil, &InvalidArgumentsError{
			Name:     name,
			Problems: []string{fmt.Sprintf("arguments are not a JSON object: %v", raw)},
		}
	}
	withDefaults := applyDefaults(e.info.Parameters, args)
	if err := validateArgs(name, e.schema, withDefaults); err != nil {
		return nil, err
	}
	return withDefaults, nil
}

// Close releases resources held by tools that keep state between calls
func (r *Registry) Close() {
	for _, name := range r.order {
		if c, ok := r.entries[name].exec.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
