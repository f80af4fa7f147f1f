package thread

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/threadrunner/llms"
)

// Thread is the ordered container of Messages making up a conversation.
type Thread struct {
	mu sync.RWMutex

	ID         string
	Title      string
	Messages   []*Message
	Attributes map[string]interface{}
	Source     map[string]interface{}
	Platforms  map[string]interface{}
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New creates an empty thread.
func New(id string) *Thread {
	now := time.Now().UTC()
	return &Thread{
		ID:         id,
		Attributes: map[string]interface{}{},
		Source:     map[string]interface{}{},
		Platforms:  map[string]interface{}{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddMessage appends a message, assigning its sequence number: a system
// message is always sequence 0 and is moved to the head; every other role
// gets 1+max(existing non-system sequences, 0).
func (t *Thread) AddMessage(in MessageInput) (*Message, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var seq int
	if in.Role == RoleSystem {
		seq = 0
	} else {
		max := 0
		for _, m := range t.Messages {
			if m.Role != RoleSystem && m.Sequence > max {
				max = m.Sequence
			}
		}
		seq = max + 1
	}

	m, err := newMessage(in, seq)
	if err != nil {
		return nil, err
	}

	if in.Role == RoleSystem {
		// at most one system message; replace if present, otherwise
		// insert at the head.
		for i, existing := range t.Messages {
			if existing.Role == RoleSystem {
				t.Messages[i] = m
				t.UpdatedAt = time.Now().UTC()
				return m, nil
			}
		}
		t.Messages = append([]*Message{m}, t.Messages...)
	} else {
		t.Messages = append(t.Messages, m)
	}
	t.UpdatedAt = time.Now().UTC()
	return m, nil
}

// Hydrate reconstructs a Thread from already-sequenced, already-identified
// messages (as loaded from a storage backend), bypassing AddMessage's
// sequencing so persisted sequence numbers and ids are preserved exactly.
func Hydrate(id, title string, messages []*Message, attributes, source map[string]interface{}, createdAt, updatedAt time.Time) *Thread {
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	if source == nil {
		source = map[string]interface{}{}
	}
	return &Thread{
		ID:         id,
		Title:      title,
		Messages:   messages,
		Attributes: attributes,
		Source:     source,
		Platforms:  map[string]interface{}{},
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}
}

// HydrateMessage builds a Message at an explicit sequence number without
// going through Thread.AddMessage's auto-sequencing logic, for use by
// storage backends reconstructing a thread from persisted rows. The
// content-hash id is recomputed, which reproduces the original id exactly
// as long as the same fields are supplied.
func HydrateMessage(in MessageInput, sequence int) (*Message, error) {
	return newMessage(in, sequence)
}

// GetMessageByID returns the message with the given id, if present.
func (t *Thread) GetMessageByID(id string) (*Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// GetLastMessageByRole returns the most recent message with the given role.
func (t *Thread) GetLastMessageByRole(role Role) (*Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Role == role {
			return t.Messages[i], true
		}
	}
	return nil, false
}

// AddReaction adds a reaction to the message with the given id. UpdatedAt
// is bumped only when the reaction state actually changes.
func (t *Thread) AddReaction(messageID, emoji, user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.Messages {
		if m.ID == messageID {
			if m.AddReaction(emoji, user) {
				t.UpdatedAt = time.Now().UTC()
				return true
			}
			return false
		}
	}
	return false
}

// RemoveReaction removes a reaction from the message with the given id.
func (t *Thread) RemoveReaction(messageID, emoji, user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range t.Messages {
		if m.ID == messageID {
			if m.RemoveReaction(emoji, user) {
				t.UpdatedAt = time.Now().UTC()
				return true
			}
			return false
		}
	}
	return false
}

// GetReactions returns the reaction map for a message id.
func (t *Thread) GetReactions(messageID string) map[string]map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, m := range t.Messages {
		if m.ID == messageID {
			return m.Reactions
		}
	}
	return nil
}

// GetTotalTokens folds message.Metrics["usage"] across the thread. Messages
// with no usage metrics contribute zero.
func (t *Thread) GetTotalTokens() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, m := range t.Messages {
		if usage, ok := m.Metrics["usage"].(llms.Usage); ok {
			total += usage.TotalTokens
		}
	}
	return total
}

// GetModelUsage aggregates total tokens per model name found in
// message.Metrics["model"]/["usage"].
func (t *Thread) GetModelUsage() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[string]int{}
	for _, m := range t.Messages {
		model, ok := m.Metrics["model"].(string)
		if !ok {
			continue
		}
		if usage, ok := m.Metrics["usage"].(llms.Usage); ok {
			out[model] += usage.TotalTokens
		}
	}
	return out
}

// GetToolUsage counts tool_calls by function name across the thread.
func (t *Thread) GetToolUsage() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[string]int{}
	for _, m := range t.Messages {
		for _, tc := range m.ToolCalls {
			out[tc.Function.Name]++
		}
	}
	return out
}

// GetMessageTimingStats folds message.Metrics["duration_ms"] into basic
// count/total/average statistics.
func (t *Thread) GetMessageTimingStats() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total float64
	var count int
	for _, m := range t.Messages {
		d, ok := m.Metrics["duration_ms"].(float64)
		if !ok {
			continue
		}
		total += d
		count++
	}
	stats := map[string]float64{"count": float64(count), "total_ms": total}
	if count > 0 {
		stats["average_ms"] = total / float64(count)
	}
	return stats
}

// GetMessageCounts returns the number of messages per role.
func (t *Thread) GetMessageCounts() map[Role]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[Role]int{}
	for _, m := range t.Messages {
		out[m.Role]++
	}
	return out
}

// GenerateTitle asks the provider for a short (<=10 word) title summarizing
// the non-system transcript, and stores it on the thread.
func (t *Thread) GenerateTitle(ctx context.Context, provider llms.Provider, model string) (string, error) {
	t.mu.RLock()
	var b strings.Builder
	for _, m := range t.Messages {
		if m.Role == RoleSystem {
			continue
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.ContentText())
		b.WriteString("\n")
	}
	t.mu.RUnlock()

	resp, err := provider.Complete(ctx, llms.CompletionRequest{
		Model:       model,
		Temperature: 0,
		Messages: []llms.Message{
			{Role: "system", Content: "Generate a short title (10 words or fewer) summarizing this conversation. Respond with the title only."},
			{Role: "user", Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(resp.Content)
	t.mu.Lock()
	t.Title = title
	t.UpdatedAt = time.Now().UTC()
	t.mu.Unlock()
	return title, nil
}

// sortedCopy returns a copy of the messages sorted by sequence, system first.
func (t *Thread) sortedCopy() []*Message {
	out := make([]*Message, len(t.Messages))
	copy(out, t.Messages)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}
