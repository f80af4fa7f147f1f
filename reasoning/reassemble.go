package reasoning

import (
	"strings"

	"github.com/kadirpekel/threadrunner/llms"
)

// toolCallAccumulator folds the tool-call chunks seen for one index.
type toolCallAccumulator struct {
	id        string
	name      string
	arguments strings.Builder
}

// Reassemble folds a sequence of provider stream chunks into one logical
// assistant turn: content deltas are concatenated in arrival
// order; tool-call chunks are keyed by index, with the first chunk for an
// index establishing {id, name} and every chunk for that index appending to
// the accumulated arguments string; usage is taken from the final chunk that
// carries one. An empty input yields ("", nil, zero Usage).
func Reassemble(chunks []llms.StreamChunk) (content string, calls []llms.ToolCall, usage llms.Usage) {
	var contentBuf strings.Builder
	order := []int{}
	acc := map[int]*toolCallAccumulator{}

	for _, c := range chunks {
		if c.ContentDelta != "" {
			contentBuf.WriteString(c.ContentDelta)
		}
		if c.Usage != nil {
			usage = *c.Usage
		}
		if c.ToolCallIndex < 0 {
			continue
		}
		entry, ok := acc[c.ToolCallIndex]
		if !ok {
			entry = &toolCallAccumulator{}
			acc[c.ToolCallIndex] = entry
			order = append(order, c.ToolCallIndex)
		}
		if c.ToolCallID != "" && entry.id == "" {
			entry.id = c.ToolCallID
		}
		if c.ToolCallName != "" && entry.name == "" {
			entry.name = c.ToolCallName
		}
		if c.ArgumentsDelta != "" {
			entry.arguments.WriteString(c.ArgumentsDelta)
		}
	}

	for _, idx := range order {
		e := acc[idx]
		calls = append(calls, llms.ToolCall{
			ID:        e.id,
			Name:      e.name,
			Arguments: e.arguments.String(),
		})
	}

	return contentBuf.String(), calls, usage
}
