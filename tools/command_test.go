package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
)

func TestCommandTool_ExecuteAllowedCommand(t *testing.T) {
	tool := NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		WorkingDirectory: ".",
		MaxExecutionTime: 5 * time.Second,
		EnableSandboxing: true,
	})

	result, err := tool.Execute(context.Background(), map[string]interface{}{"command": "echo hello"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Content, "hello")
}

func TestCommandTool_RejectsDisallowedCommand(t *testing.T) {
	tool := NewCommandTool(&config.CommandToolsConfig{
		AllowedCommands:  []string{"echo"},
		EnableSandboxing: true,
	})

	result, err := tool.Execute(context.Background(), map[string]interface{}{"command": "rm -rf /"})
	assert.Error(t, err)
	assert.False(t, result.Success)
}

func TestCommandTool_RequiresCommandParameter(t *testing.T) {
	tool := NewCommandTool(nil)
	result, err := tool.Execute(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
	assert.False(t, result.Success)
}

func TestNewCommandToolWithConfig_FromToolDefinition(t *testing.T) {
	tool, err := NewCommandToolWithConfig(config.ToolDefinition{
		Name: "execute_command",
		Type: "command",
		Config: map[string]interface{}{
			"allowed_commands": []interface{}{"echo"},
			"enable_sandboxing": true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "execute_command", tool.GetName())
}
