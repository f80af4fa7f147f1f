package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParametersSchema_RequiredAndOptional(t *testing.T) {
	schema := ParametersSchema([]ToolParameter{
		{Name: "path", Type: "string", Description: "file path", Required: true},
		{Name: "backup", Type: "boolean", Required: false, Default: true},
	})

	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "path")
	assert.Contains(t, props, "backup")

	required, ok := schema["required"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"path"}, required)
}

func TestParametersSchema_NoRequiredOmitsKey(t *testing.T) {
	schema := ParametersSchema([]ToolParameter{{Name: "q", Type: "string"}})
	_, hasRequired := schema["required"]
	assert.False(t, hasRequired)
}

func TestParametersSchema_Enum(t *testing.T) {
	schema := ParametersSchema([]ToolParameter{
		{Name: "mode", Type: "string", Enum: []string{"fast", "slow"}},
	})
	props := schema["properties"].(map[string]interface{})
	mode := props["mode"].(map[string]interface{})
	assert.ElementsMatch(t, []interface{}{"fast", "slow"}, mode["enum"])
}
