package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/llms"
)

func TestNewToolRegistryWithConfig_RegistersLocalTools(t *testing.T) {
	cfg := &config.ToolConfigs{
		DefaultRepo: "local",
		Repositories: []config.ToolRepository{
			{
				Name: "local",
				Type: "local",
				Tools: []config.ToolDefinition{
					{Name: "execute_command", Type: "command", Enabled: true},
					{Name: "write_file", Type: "file_writer", Enabled: true},
				},
			},
		},
	}

	reg, err := NewToolRegistryWithConfig(cfg)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, info := range reg.ListTools() {
		names[info.Name] = true
	}
	assert.True(t, names["execute_command"])
	assert.True(t, names["write_file"])
}

func TestToolRegistry_ExecuteToolCall_UnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	result := reg.ExecuteToolCall(context.Background(), llms.ToolCall{Name: "nonexistent", Arguments: "{}"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not registered")
}

func TestToolRegistry_ExecuteToolCall_InvalidArguments(t *testing.T) {
	cfg := &config.ToolConfigs{
		Repositories: []config.ToolRepository{{
			Name: "local",
			Type: "local",
			Tools: []config.ToolDefinition{{Name: "execute_command", Type: "command", Enabled: true}},
		}},
	}
	reg, err := NewToolRegistryWithConfig(cfg)
	require.NoError(t, err)

	result := reg.ExecuteToolCall(context.Background(), llms.ToolCall{Name: "execute_command", Arguments: "not json"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid arguments")
}

func TestToolRegistry_ListToolDefinitions(t *testing.T) {
	cfg := &config.ToolConfigs{
		Repositories: []config.ToolRepository{{
			Name: "local",
			Type: "local",
			Tools: []config.ToolDefinition{{Name: "execute_command", Type: "command", Enabled: true}},
		}},
	}
	reg, err := NewToolRegistryWithConfig(cfg)
	require.NoError(t, err)

	defs := reg.ListToolDefinitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "execute_command", defs[0].Name)
	assert.NotNil(t, defs[0].Parameters)
}
