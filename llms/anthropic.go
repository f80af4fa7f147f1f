package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kadirpekel/threadrunner/config"
)

// AnthropicProvider implements Provider against the Anthropic Messages API.
// It is one concrete instance of the external LLM provider adapter; the
// core depends only on the Provider interface.
type AnthropicProvider struct {
	cfg    *config.LLMProviderConfig
	client *http.Client
}

func NewAnthropicProvider(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("anthropic: config is required")
	}
	return &AnthropicProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicContentBlock struct {
	Type  string                 `json:"type"` // "text" | "tool_use"
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toAnthropicMessages(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			continue // system is sent as a separate top-level field by buildRequest
		}
		out = append(out, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func toAnthropicTools(defs []ToolDefinition) []anthropicTool {
	out := make([]anthropicTool, 0, len(defs))
	for _, d := range defs {
		out = append(out, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: d.Parameters})
	}
	return out
}

func (p *AnthropicProvider) buildRequest(req CompletionRequest, stream bool) anthropicRequest {
	var system string
	for _, m := range req.Messages {
		if s, ok := m.Content.(string); ok && m.Role == "system" {
			system = s
		}
	}
	return anthropicRequest{
		Model:       req.Model,
		System:      system,
		Messages:    toAnthropicMessages(req.Messages),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
		Tools:       toAnthropicTools(req.Tools),
	}
}

func (p *AnthropicProvider) do(ctx context.Context, body anthropicRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	url := p.cfg.BaseURL
	if url == "" {
		url = "https://api.anthropic.com/v1/messages"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	return resp, nil
}

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	resp, err := p.do(ctx, p.buildRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic: %s", parsed.Error.Message)
	}

	out := &CompletionResponse{
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}
	var text strings.Builder
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(args),
			})
		}
	}
	out.Content = text.String()
	return out, nil
}

// anthropicStreamEvent captures just the fields CompleteStreaming needs from
// Anthropic's SSE event stream.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Usage anthropicUsage `json:"usage"`
}

// CompleteStreaming implements Provider. It parses Anthropic's SSE stream
// and emits one StreamChunk per delta, leaving reassembly to the caller's
// Streaming Reassembler.
func (p *AnthropicProvider) CompleteStreaming(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := p.do(ctx, p.buildRequest(req, true))
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk, 32)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		blockIndexToToolIndex := map[int]int{}
		nextToolIndex := 0

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				out <- StreamChunk{Err: ctx.Err(), ToolCallIndex: -1}
				return
			default:
			}

			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(data), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock.Type == "tool_use" {
					toolIdx := nextToolIndex
					nextToolIndex++
					blockIndexToToolIndex[ev.Index] = toolIdx
					out <- StreamChunk{
						ToolCallIndex: toolIdx,
						ToolCallID:    ev.ContentBlock.ID,
						ToolCallName:  ev.ContentBlock.Name,
					}
				}
			case "content_block_delta":
				if ev.Delta.Type == "text_delta" {
					out <- StreamChunk{ContentDelta: ev.Delta.Text, ToolCallIndex: -1}
				} else if ev.Delta.Type == "input_json_delta" {
					if toolIdx, ok := blockIndexToToolIndex[ev.Index]; ok {
						out <- StreamChunk{ToolCallIndex: toolIdx, ArgumentsDelta: ev.Delta.PartialJSON}
					}
				}
			case "message_delta":
				if ev.Usage.OutputTokens > 0 {
					usage := Usage{CompletionTokens: ev.Usage.OutputTokens, TotalTokens: ev.Usage.OutputTokens}
					out <- StreamChunk{ToolCallIndex: -1, Usage: &usage}
				}
			}
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			out <- StreamChunk{Err: fmt.Errorf("anthropic: stream read: %w", err), ToolCallIndex: -1}
		}
	}()

	return out, nil
}

var _ Provider = (*AnthropicProvider)(nil)
