package llms

import "context"

// MockProvider is a scriptable Provider used by core tests to drive the
// Agent Iteration Loop through specific completion sequences without a live LLM.
type MockProvider struct {
	Responses []CompletionResponse
	calls     int
}

func NewMockProvider(responses ...CompletionResponse) *MockProvider {
	return &MockProvider{Responses: responses}
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.calls >= len(m.Responses) {
		return &CompletionResponse{Content: ""}, nil
	}
	resp := m.Responses[m.calls]
	m.calls++
	return &resp, nil
}

func (m *MockProvider) CompleteStreaming(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, len(resp.ToolCalls)+2)
	if resp.Content != "" {
		out <- StreamChunk{ContentDelta: resp.Content, ToolCallIndex: -1}
	}
	for i, tc := range resp.ToolCalls {
		out <- StreamChunk{ToolCallIndex: i, ToolCallID: tc.ID, ToolCallName: tc.Name}
		out <- StreamChunk{ToolCallIndex: i, ArgumentsDelta: tc.Arguments}
	}
	usage := resp.Usage
	out <- StreamChunk{ToolCallIndex: -1, Usage: &usage}
	close(out)
	return out, nil
}

// CallCount reports how many times Complete/CompleteStreaming consumed a
// scripted response.
func (m *MockProvider) CallCount() int { return m.calls }

var _ Provider = (*MockProvider)(nil)
