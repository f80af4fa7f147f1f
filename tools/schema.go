package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ParametersSchema builds the JSON-schema object describing a
// tool's parameter list. Unlike generateSchema in a struct-reflection
// setting, tool parameters are data (config-declared or MCP-discovered),
// so the schema is assembled directly rather than reflected from a type.
func ParametersSchema(params []ToolParameter) map[string]interface{} {
	props := map[string]*jsonschema.Schema{}
	var required []string

	for _, p := range params {
		prop := &jsonschema.Schema{
			Type:        p.Type,
			Description: p.Description,
		}
		if p.Default != nil {
			prop.Default = p.Default
		}
		if len(p.Enum) > 0 {
			prop.Enum = make([]interface{}, len(p.Enum))
			for i, e := range p.Enum {
				prop.Enum[i] = e
			}
		}
		if p.Type == "array" && len(p.Items) > 0 {
			itemType, _ := p.Items["type"].(string)
			prop.Items = &jsonschema.Schema{Type: itemType}
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	// Round-trip through JSON so nested jsonschema.Schema values serialize
	// into plain map[string]interface{}, matching the shape providers expect.
	data, err := json.Marshal(schema)
	if err != nil {
		return schema
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return schema
	}
	return out
}
