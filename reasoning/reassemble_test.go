package reasoning

import (
	"testing"

	"github.com/kadirpekel/threadrunner/llms"
	"github.com/stretchr/testify/assert"
)

func TestReassemble_Empty(t *testing.T) {
	content, calls, usage := Reassemble(nil)
	assert.Equal(t, "", content)
	assert.Nil(t, calls)
	assert.Equal(t, llms.Usage{}, usage)
}

func TestReassemble_ContentAndToolCalls(t *testing.T) {
	chunks := []llms.StreamChunk{
		{ContentDelta: "Hello, "},
		{ToolCallIndex: 0, ToolCallID: "call_1", ToolCallName: "search"},
		{ContentDelta: "world"},
		{ToolCallIndex: 0, ArgumentsDelta: `{"query":`},
		{ToolCallIndex: 0, ArgumentsDelta: `"go"}`},
		{ToolCallIndex: -1, Usage: &llms.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}},
	}

	content, calls, usage := Reassemble(chunks)
	assert.Equal(t, "Hello, world", content)
	assert.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, `{"query":"go"}`, calls[0].Arguments)
	assert.Equal(t, 15, usage.TotalTokens)
}

func TestReassemble_MultipleToolCallsByIndex(t *testing.T) {
	chunks := []llms.StreamChunk{
		{ToolCallIndex: 0, ToolCallID: "c0", ToolCallName: "a"},
		{ToolCallIndex: 1, ToolCallID: "c1", ToolCallName: "b"},
		{ToolCallIndex: 0, ArgumentsDelta: "{}"},
		{ToolCallIndex: 1, ArgumentsDelta: "{}"},
	}
	_, calls, _ := Reassemble(chunks)
	assert.Len(t, calls, 2)
	assert.Equal(t, "a", calls[0].Name)
	assert.Equal(t, "b", calls[1].Name)
}
