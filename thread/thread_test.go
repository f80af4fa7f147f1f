package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMessage_SequencingAndSystemHead(t *testing.T) {
	th := New("t1")

	_, err := th.AddMessage(MessageInput{Role: RoleUser, Content: "hello"})
	require.NoError(t, err)

	_, err = th.AddMessage(MessageInput{Role: RoleAssistant, Content: "hi"})
	require.NoError(t, err)

	sys, err := th.AddMessage(MessageInput{Role: RoleSystem, Content: "be nice"})
	require.NoError(t, err)
	assert.Equal(t, 0, sys.Sequence)
	assert.Equal(t, RoleSystem, th.Messages[0].Role, "system message must be moved to the head")

	third, err := th.AddMessage(MessageInput{Role: RoleUser, Content: "again"})
	require.NoError(t, err)
	assert.Equal(t, 3, third.Sequence, "non-system sequence ignores the system message")
}

func TestAddMessage_OnlyOneSystemMessage(t *testing.T) {
	th := New("t1")
	_, err := th.AddMessage(MessageInput{Role: RoleSystem, Content: "first"})
	require.NoError(t, err)
	_, err = th.AddMessage(MessageInput{Role: RoleSystem, Content: "second"})
	require.NoError(t, err)

	count := 0
	for _, m := range th.Messages {
		if m.Role == RoleSystem {
			count++
			assert.Equal(t, "second", m.Content)
		}
	}
	assert.Equal(t, 1, count)
}

func TestAddMessage_ToolRequiresToolCallID(t *testing.T) {
	th := New("t1")
	_, err := th.AddMessage(MessageInput{Role: RoleTool, Content: "result"})
	assert.Error(t, err)
}

func TestAddMessage_InvalidRole(t *testing.T) {
	th := New("t1")
	_, err := th.AddMessage(MessageInput{Role: Role("bogus"), Content: "x"})
	assert.Error(t, err)
}

func TestGetMessagesForChatCompletion_ExcludesSystem(t *testing.T) {
	th := New("t1")
	_, _ = th.AddMessage(MessageInput{Role: RoleSystem, Content: "sys"})
	_, _ = th.AddMessage(MessageInput{Role: RoleUser, Content: "hi"})

	msgs := th.GetMessagesForChatCompletion()
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestUserContent_WithAttachments(t *testing.T) {
	th := New("t1")
	att := NewAttachment("report.pdf", nil, "application/pdf")
	att.StoragePath = "ab/cd/report.pdf"
	_, err := th.AddMessage(MessageInput{
		Role:        RoleUser,
		Content:     "take a look",
		Attachments: []*Attachment{att},
	})
	require.NoError(t, err)

	msgs := th.GetMessagesForChatCompletion()
	require.Len(t, msgs, 1)
	content := msgs[0].Content.(string)
	assert.Contains(t, content, "take a look")
	assert.Contains(t, content, "[File: ab/cd/report.pdf (application/pdf)]")
}

func TestUserContent_AttachmentsOnly(t *testing.T) {
	th := New("t1")
	att := NewAttachment("img.png", nil, "image/png")
	att.StoragePath = "ab/cd/img.png"
	_, err := th.AddMessage(MessageInput{
		Role:        RoleUser,
		Content:     "",
		Attachments: []*Attachment{att},
	})
	require.NoError(t, err)

	msgs := th.GetMessagesForChatCompletion()
	content := msgs[0].Content.(string)
	assert.Equal(t, "[File: ab/cd/img.png (image/png)]", content)
}

func TestReactions_UpdatedAtOnlyOnChange(t *testing.T) {
	th := New("t1")
	m, err := th.AddMessage(MessageInput{Role: RoleUser, Content: "hi"})
	require.NoError(t, err)

	updatedAfterAdd := th.UpdatedAt
	changed := th.AddReaction(m.ID, "👍", "alice")
	assert.True(t, changed)
	assert.True(t, th.UpdatedAt.After(updatedAfterAdd) || th.UpdatedAt.Equal(updatedAfterAdd))

	again := th.AddReaction(m.ID, "👍", "alice")
	assert.False(t, again, "duplicate reaction should report no state change")

	removed := th.RemoveReaction(m.ID, "👍", "alice")
	assert.True(t, removed)

	removedAgain := th.RemoveReaction(m.ID, "👍", "alice")
	assert.False(t, removedAgain)
}

func TestGetToolUsage(t *testing.T) {
	th := New("t1")
	_, err := th.AddMessage(MessageInput{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "c1", Type: "function", Function: ToolCallFunction{Name: "search", Arguments: "{}"}},
			{ID: "c2", Type: "function", Function: ToolCallFunction{Name: "search", Arguments: "{}"}},
		},
	})
	require.NoError(t, err)

	usage := th.GetToolUsage()
	assert.Equal(t, 2, usage["search"])
}
