package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kadirpekel/threadrunner/config"
)

// ============================================================================
// COMMAND EXECUTOR - SECURE SHELL COMMAND EXECUTION
// ============================================================================

var defaultAllowedCommands = []string{
	"cat", "head", "tail", "ls", "find", "grep", "wc", "pwd",
	"git", "npm", "go", "curl", "wget", "echo", "date",
}

// CommandTool runs a shell command through an allow-list of base commands,
// the external collaborator the Tool Runner dispatches "execute_command"
// calls to.
type CommandTool struct {
	config *config.CommandToolsConfig
}

// NewCommandTool builds a command tool, filling any zero-valued field of
// commandConfig (or all of it, if nil) with conservative defaults: a small
// read-only/dev-tooling allow-list, the current directory and a 30s timeout.
// Sandboxing is turned on when commandConfig is nil; a non-nil
// commandConfig keeps its EnableSandboxing value as given.
func NewCommandTool(commandConfig *config.CommandToolsConfig) *CommandTool {
	if commandConfig == nil {
		commandConfig = &config.CommandToolsConfig{EnableSandboxing: true}
	}
	if len(commandConfig.AllowedCommands) == 0 {
		commandConfig.AllowedCommands = defaultAllowedCommands
	}
	if commandConfig.WorkingDirectory == "" {
		commandConfig.WorkingDirectory = "./"
	}
	if commandConfig.MaxExecutionTime == 0 {
		commandConfig.MaxExecutionTime = 30 * time.Second
	}
	return &CommandTool{config: commandConfig}
}

// NewCommandToolWithConfig decodes a ToolDefinition's generic config map
// into a CommandToolsConfig and builds the tool from it.
func NewCommandToolWithConfig(toolDef config.ToolDefinition) (*CommandTool, error) {
	commandConfig := &config.CommandToolsConfig{}
	if toolDef.Config != nil {
		if allowed, ok := toolDef.Config["allowed_commands"].([]interface{}); ok {
			commands := make([]string, len(allowed))
			for i, cmd := range allowed {
				if cmdStr, ok := cmd.(string); ok {
					commands[i] = cmdStr
				}
			}
			commandConfig.AllowedCommands = commands
		}
		if workDir, ok := toolDef.Config["working_directory"].(string); ok {
			commandConfig.WorkingDirectory = workDir
		}
		if enableSandbox, ok := toolDef.Config["enable_sandboxing"].(bool); ok {
			commandConfig.EnableSandboxing = enableSandbox
		}
	}
	return NewCommandTool(commandConfig), nil
}

func (t *CommandTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return t.createErrorResult("command parameter is required", fmt.Errorf("command parameter is required"))
	}

	workingDir, _ := args["working_dir"].(string)
	if workingDir == "" {
		workingDir = t.config.WorkingDirectory
	}

	if err := t.validateCommand(command); err != nil {
		return t.createErrorResult(err.Error(), err)
	}

	if t.config.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.MaxExecutionTime)
		defer cancel()
	}

	return t.executeCommand(ctx, command, workingDir)
}

// validateCommand checks the command's base verb against the allow-list;
// a no-op when sandboxing is disabled.
func (t *CommandTool) validateCommand(command string) error {
	if !t.config.EnableSandboxing {
		return nil
	}
	baseCmd := t.extractBaseCommand(command)
	if !t.isCommandAllowed(baseCmd) {
		return fmt.Errorf("command not allowed: %s", baseCmd)
	}
	return nil
}

func (t *CommandTool) executeCommand(ctx context.Context, command, workingDir string) (ToolResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = workingDir

	start := time.Now()
	output, err := cmd.CombinedOutput()
	executionTime := time.Since(start)

	result := ToolResult{
		Content:       string(output),
		Success:       err == nil,
		ToolName:      "execute_command",
		ExecutionTime: executionTime,
		Metadata: map[string]interface{}{
			"command":     command,
			"working_dir": workingDir,
		},
	}

	if err != nil {
		result.Error = err.Error()
		if exitError, ok := err.(*exec.ExitError); ok {
			result.Metadata["exit_code"] = exitError.ExitCode()
		}
	}

	return result, err
}

func (t *CommandTool) createErrorResult(message string, err error) (ToolResult, error) {
	return ToolResult{
		Success:  false,
		Error:    message,
		ToolName: "execute_command",
	}, err
}

// extractBaseCommand returns the first word of the first pipeline stage, so
// "cat foo | rm -rf /" is validated against "cat", not "rm".
func (t *CommandTool) extractBaseCommand(command string) string {
	parts := strings.FieldsFunc(command, func(r rune) bool {
		return r == '|' || r == '>' || r == '<' || r == ';'
	})
	if len(parts) == 0 {
		return ""
	}
	cmdParts := strings.Fields(strings.TrimSpace(parts[0]))
	if len(cmdParts) == 0 {
		return ""
	}
	return cmdParts[0]
}

func (t *CommandTool) isCommandAllowed(command string) bool {
	for _, allowed := range t.config.AllowedCommands {
		if command == allowed {
			return true
		}
	}
	return false
}

func (t *CommandTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "execute_command",
		Description: "Execute shell commands for file operations, system tasks, and development workflows",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				Type:        "string",
				Description: "Shell command to execute (supports pipes, redirects, etc.)",
				Required:    true,
			},
			{
				Name:        "working_dir",
				Type:        "string",
				Description: "Working directory (optional)",
				Required:    false,
			},
		},
		ServerURL: "local",
	}
}

func (t *CommandTool) GetName() string { return "execute_command" }

func (t *CommandTool) GetDescription() string {
	return "Execute shell commands for file operations, system tasks, and development workflows"
}
