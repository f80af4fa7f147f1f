package thread

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/threadrunner/llms"
)

// GetMessagesForChatCompletion projects the thread into the provider-facing
// message list. The system message is excluded here; callers inject the
// composed system prompt separately.
func (t *Thread) GetMessagesForChatCompletion() []llms.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	msgs := t.sortedCopy()
	out := make([]llms.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		out = append(out, projectMessage(m))
	}
	return out
}

func projectMessage(m *Message) llms.Message {
	switch m.Role {
	case RoleTool:
		return llms.Message{
			Role:       string(RoleTool),
			Content:    m.ContentText(),
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}

	case RoleAssistant:
		out := llms.Message{
			Role:    string(RoleAssistant),
			Content: assistantContent(m),
			Name:    m.Name,
		}
		if len(m.ToolCalls) > 0 {
			out.ToolCalls = make([]llms.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				out.ToolCalls[i] = llms.ToolCall{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
			}
		}
		return out

	default: // user
		return llms.Message{
			Role:    string(RoleUser),
			Content: userContent(m),
			Name:    m.Name,
		}
	}
}

// userContent implements: base text + blank line + one "[File: url (mime)]"
// line per attachment, or a references-only block when there is no base text.
func userContent(m *Message) string {
	base := m.ContentText()
	if len(m.Attachments) == 0 {
		return base
	}

	var refs strings.Builder
	for _, a := range m.Attachments {
		refs.WriteString(fmt.Sprintf("[File: %s (%s)]\n", a.StoragePath, a.MimeType))
	}

	if strings.TrimSpace(base) == "" {
		return strings.TrimRight(refs.String(), "\n")
	}
	return base + "\n\n" + strings.TrimRight(refs.String(), "\n")
}

// assistantContent appends a "Generated Files:" section when the assistant
// message produced attachments.
func assistantContent(m *Message) string {
	base := m.ContentText()
	if len(m.Attachments) == 0 {
		return base
	}

	var section strings.Builder
	section.WriteString("Generated Files:\n")
	for _, a := range m.Attachments {
		section.WriteString(fmt.Sprintf("- %s (%s)\n", a.Filename, a.MimeType))
	}

	if strings.TrimSpace(base) == "" {
		return strings.TrimRight(section.String(), "\n")
	}
	return base + "\n\n" + strings.TrimRight(section.String(), "\n")
}
