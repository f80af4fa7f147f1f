package thread

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Role is one of the four message roles. System is accepted on ingest but
// never persisted by durable backends.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ContentPart is one element of a heterogeneous message content list.
type ContentPart struct {
	Type     string `json:"type"` // "text" | "image_url"
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// ToolCallFunction is the {name, arguments} pair inside a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // always a JSON-object string, even when empty
}

// ToolCall is the wire shape used on the assistant-to-tool boundary:
// {id, type:"function", function:{name, arguments}}.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// MessageInput is the caller-supplied content of a new message, before
// sequence assignment and id hashing.
type MessageInput struct {
	Role        Role
	Content     interface{} // string or []ContentPart
	Name        string
	ToolCallID  string
	ToolCalls   []ToolCall
	Attachments []*Attachment
	Attributes  map[string]interface{}
	Source      map[string]interface{}
	Metrics     map[string]interface{}
	Timestamp   time.Time // zero means "now"
}

// Message is one entry in a Thread's transcript.
type Message struct {
	ID          string
	Role        Role
	Sequence    int
	Content     interface{}
	Name        string
	ToolCallID  string
	ToolCalls   []ToolCall
	Attachments []*Attachment
	Attributes  map[string]interface{}
	Source      map[string]interface{}
	Metrics     map[string]interface{}
	Reactions   map[string]map[string]bool // emoji -> set of user ids
	Timestamp   time.Time
}

func newMessage(in MessageInput, sequence int) (*Message, error) {
	if !in.Role.valid() {
		return nil, newError("Message", "new", fmt.Sprintf("invalid role %q", in.Role), nil)
	}
	if in.Role == RoleTool && in.ToolCallID == "" {
		return nil, newError("Message", "new", "tool message requires tool_call_id", nil)
	}
	for _, tc := range in.ToolCalls {
		if tc.ID == "" || tc.Function.Name == "" {
			return nil, newError("Message", "new", "tool_calls entries require id and function.name", nil)
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
	}

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	m := &Message{
		Role:        in.Role,
		Sequence:    sequence,
		Content:     in.Content,
		Name:        in.Name,
		ToolCallID:  in.ToolCallID,
		ToolCalls:   in.ToolCalls,
		Attachments: in.Attachments,
		Attributes:  in.Attributes,
		Source:      in.Source,
		Metrics:     in.Metrics,
		Reactions:   map[string]map[string]bool{},
		Timestamp:   ts,
	}
	m.ID = m.computeID()
	return m, nil
}

// computeID derives a stable content-hash identity:
// sha256(role + sequence + content + iso-timestamp + optional name + source).
func (m *Message) computeID() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|", m.Role, m.Sequence)

	switch c := m.Content.(type) {
	case string:
		h.Write([]byte(c))
	default:
		b, _ := json.Marshal(c)
		h.Write(b)
	}

	h.Write([]byte("|" + m.Timestamp.UTC().Format(time.RFC3339Nano)))
	if m.Name != "" {
		h.Write([]byte("|" + m.Name))
	}
	if m.Source != nil {
		b, _ := json.Marshal(m.Source)
		h.Write([]byte("|"))
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentText returns the message content as a plain string, joining text
// parts if content is a heterogeneous list. Non-text parts are ignored.
func (m *Message) ContentText() string {
	switch c := m.Content.(type) {
	case string:
		return c
	case []ContentPart:
		out := ""
		for _, p := range c {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	default:
		return ""
	}
}

// AddReaction records a reaction by a user. Returns true if state changed.
func (m *Message) AddReaction(emoji, user string) bool {
	if m.Reactions == nil {
		m.Reactions = map[string]map[string]bool{}
	}
	if m.Reactions[emoji] == nil {
		m.Reactions[emoji] = map[string]bool{}
	}
	if m.Reactions[emoji][user] {
		return false
	}
	m.Reactions[emoji][user] = true
	return true
}

// RemoveReaction removes a user's reaction. Returns true if state changed.
func (m *Message) RemoveReaction(emoji, user string) bool {
	users, ok := m.Reactions[emoji]
	if !ok || !users[user] {
		return false
	}
	delete(users, user)
	if len(users) == 0 {
		delete(m.Reactions, emoji)
	}
	return true
}
