package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/llms"
	"github.com/kadirpekel/threadrunner/thread"
	"github.com/kadirpekel/threadrunner/tools"
)

// fakeTool is a minimal tools.Tool used to drive the iteration loop without
// touching the filesystem or a subprocess.
type fakeTool struct {
	name   string
	result tools.ToolResult
}

func (f *fakeTool) GetInfo() tools.ToolInfo { return tools.ToolInfo{Name: f.name, Description: "fake"} }
func (f *fakeTool) GetName() string         { return f.name }
func (f *fakeTool) GetDescription() string  { return "fake" }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (tools.ToolResult, error) {
	return f.result, nil
}

// fakeToolSource is a minimal tools.ToolSource wrapping a single fakeTool.
type fakeToolSource struct {
	tool *fakeTool
}

func (s *fakeToolSource) GetName() string                     { return "fake" }
func (s *fakeToolSource) GetType() string                     { return "local" }
func (s *fakeToolSource) DiscoverTools(ctx context.Context) error { return nil }
func (s *fakeToolSource) ListTools() []tools.ToolInfo {
	return []tools.ToolInfo{s.tool.GetInfo()}
}
func (s *fakeToolSource) GetTool(name string) (tools.Tool, bool) {
	if name == s.tool.name {
		return s.tool, true
	}
	return nil, false
}

func newTestRegistryWithTool(t *testing.T, tool *fakeTool) *tools.ToolRegistry {
	t.Helper()
	reg := tools.NewToolRegistry()
	require.NoError(t, reg.RegisterRepository(&fakeToolSource{tool: tool}))
	return reg
}

func testAgentConfig(name string) *config.AgentConfig {
	return &config.AgentConfig{
		Name:      name,
		LLM:       "test-llm",
		Prompt:    config.PromptConfig{Purpose: "help the user"},
		Reasoning: config.ReasoningConfig{MaxToolIterations: 3},
	}
}

func TestAgent_Run_NoToolCallReturnsImmediately(t *testing.T) {
	provider := llms.NewMockProvider(llms.CompletionResponse{Content: "hello there"})
	a, err := NewAgent(testAgentConfig("assistant"), provider, nil)
	require.NoError(t, err)

	th := thread.New("t1")
	msgs, err := a.Run(context.Background(), th, "hi")
	require.NoError(t, err)

	require.Len(t, msgs, 1)
	assert.Equal(t, thread.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "hello there", msgs[0].ContentText())
	assert.Equal(t, 1, provider.CallCount())

	// system prompt was injected at sequence 0.
	sysMsg, ok := th.GetLastMessageByRole(thread.RoleSystem)
	require.True(t, ok)
	assert.Contains(t, sysMsg.ContentText(), "help the user")
}

func TestAgent_Run_SingleToolCallRoundTrip(t *testing.T) {
	tool := &fakeTool{name: "lookup", result: tools.ToolResult{Success: true, Content: "42", ToolName: "lookup"}}
	registry := newTestRegistryWithTool(t, tool)

	provider := llms.NewMockProvider(
		llms.CompletionResponse{
			ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "lookup", Arguments: `{}`}},
		},
		llms.CompletionResponse{Content: "the answer is 42"},
	)

	a, err := NewAgent(testAgentConfig("assistant"), provider, registry)
	require.NoError(t, err)

	th := thread.New("t1")
	msgs, err := a.Run(context.Background(), th, "what is the answer?")
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, thread.RoleAssistant, msgs[0].Role)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.Equal(t, "lookup", msgs[0].ToolCalls[0].Function.Name)

	assert.Equal(t, thread.RoleTool, msgs[1].Role)
	assert.Equal(t, "42", msgs[1].ContentText())
	assert.Equal(t, "call-1", msgs[1].ToolCallID)

	assert.Equal(t, thread.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "the answer is 42", msgs[2].ContentText())

	assert.Equal(t, 2, provider.CallCount())
}

func TestAgent_Run_DelegateToChild(t *testing.T) {
	provider := llms.NewMockProvider(
		llms.CompletionResponse{
			ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "delegate_to_researcher", Arguments: `{"task":"find the docs"}`}},
		},
		llms.CompletionResponse{Content: "done, see above"},
	)

	a, err := NewAgent(testAgentConfig("lead"), provider, nil)
	require.NoError(t, err)

	var receivedTask string
	a.AddDelegate("researcher", func(ctx context.Context, task string, taskContext map[string]interface{}) (string, error) {
		receivedTask = task
		return "the docs are at /docs", nil
	})

	th := thread.New("t1")
	msgs, err := a.Run(context.Background(), th, "find me the docs")
	require.NoError(t, err)

	assert.Equal(t, "find the docs", receivedTask)

	require.Len(t, msgs, 3)
	assert.Equal(t, thread.RoleTool, msgs[1].Role)
	assert.Equal(t, "the docs are at /docs", msgs[1].ContentText())
	assert.Equal(t, "delegate_to_researcher", msgs[1].Name)
}

func TestAgent_Run_MaxIterationsReachesFallbackMessage(t *testing.T) {
	tool := &fakeTool{name: "loop", result: tools.ToolResult{Success: true, Content: "again", ToolName: "loop"}}
	registry := newTestRegistryWithTool(t, tool)

	alwaysCallsTool := llms.CompletionResponse{
		ToolCalls: []llms.ToolCall{{ID: "call-x", Name: "loop", Arguments: `{}`}},
	}
	provider := llms.NewMockProvider(alwaysCallsTool, alwaysCallsTool, alwaysCallsTool)

	cfg := testAgentConfig("looper")
	cfg.Reasoning.MaxToolIterations = 3

	a, err := NewAgent(cfg, provider, registry)
	require.NoError(t, err)

	th := thread.New("t1")
	msgs, err := a.Run(context.Background(), th, "go")
	require.NoError(t, err)

	last := msgs[len(msgs)-1]
	assert.Equal(t, thread.RoleAssistant, last.Role)
	assert.Contains(t, last.ContentText(), "Maximum tool iteration count reached. Stopping further tool calls.")
	assert.Equal(t, 3, provider.CallCount())
}

func TestNewAgent_RequiresConfigAndProvider(t *testing.T) {
	_, err := NewAgent(nil, llms.NewMockProvider(), nil)
	assert.Error(t, err)

	_, err = NewAgent(testAgentConfig("a"), nil, nil)
	assert.Error(t, err)
}
