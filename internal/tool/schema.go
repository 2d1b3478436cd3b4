package tool

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/joss/taskagent/internal/domain"
)

// compileSchema checks a parameter schema and compiles it for validation.
// Every required key must be declared under properties.
func compileSchema(info domain.Tool) (*gojsonschema.Schema, error) {
	params := info.Parameters
	if params == nil {
		params = domain.JSONSchema{"type": "object", "properties": map[string]any{}}
	}

	props := params.Properties()
	for _, key := range params.Required() {
		if _, ok := props[key]; !ok {
			return nil, &InvalidSchemaError{Name: info.Name, Reason: fmt.Sprintf("required key %q is not a property", key)}
		}
	}

	doc := make(map[string]any, len(params))
	for k, v := range params {
		doc[k] = v
	}
	// draft-04 rejects an empty required list
	if len(params.Required()) == 0 {
		delete(doc, "required")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, &InvalidSchemaError{Name: info.Name, Reason: err.Error()}
	}
	return schema, nil
}

// applyDefaults returns a copy of args with schema defaults filled in for absent keys
func applyDefaults(params domain.JSONSchema, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for key, raw := range params.Properties() {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if _, present := out[key]; present {
			continue
		}
		if def, ok := prop["default"]; ok {
			out[key] = def
		}
	}
	return out
}

// validateArgs checks args against a compiled schema
func validateArgs(name string, schema *gojsonschema.Schema, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &InvalidArgumentsError{Name: name, Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	sort.Strings(problems)
	return &InvalidArgumentsError{Name: name, Problems: problems}
}
