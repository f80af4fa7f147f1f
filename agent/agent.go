package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/threadrunner/attachments"
	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/llms"
	"github.com/kadirpekel/threadrunner/reasoning"
	"github.com/kadirpekel/threadrunner/telemetry"
	"github.com/kadirpekel/threadrunner/thread"
	"github.com/kadirpekel/threadrunner/tools"
)

// delegate describes a child agent an Agent can hand work off to.
type delegate struct {
	name string
	run  func(ctx context.Context, task string, taskContext map[string]interface{}) (string, error)
}

// Agent runs the bounded tool-calling iteration loop against a single
// Thread: step the provider, execute any tool calls it asks
// for in parallel, fold the results back into the thread, and repeat until
// the provider stops asking for tools or the iteration cap is hit.
type Agent struct {
	name         string
	config       *config.AgentConfig
	provider     llms.Provider
	toolRegistry *tools.ToolRegistry
	delegates    []delegate

	tracer  trace.Tracer
	metrics *telemetry.Metrics

	attachmentProcessor *attachments.Processor
}

// NewAgent creates an agent bound to a single LLM provider and tool registry.
func NewAgent(cfg *config.AgentConfig, provider llms.Provider, toolRegistry *tools.ToolRegistry) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent config is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	return &Agent{
		name:         cfg.Name,
		config:       cfg,
		provider:     provider,
		toolRegistry: toolRegistry,
	}, nil
}

// SetTelemetry wires a tracer and metrics recorder into the agent. Both are
// optional; a nil tracer/metrics leaves the corresponding instrumentation a
// no-op.
func (a *Agent) SetTelemetry(tracer trace.Tracer, metrics *telemetry.Metrics) {
	a.tracer = tracer
	a.metrics = metrics
}

// SetAttachmentProcessor wires the processor Run uses to fill in
// attachment processed_content before the first LLM call of a turn. A nil
// processor (the default) skips attachment processing entirely.
func (a *Agent) SetAttachmentProcessor(p *attachments.Processor) {
	a.attachmentProcessor = p
}

// AddDelegate registers a child agent this agent can delegate to via a
// synthesized delegate_to_<name> tool.
func (a *Agent) AddDelegate(name string, run func(ctx context.Context, task string, taskContext map[string]interface{}) (string, error)) {
	a.delegates = append(a.delegates, delegate{name: name, run: run})
}

func (a *Agent) GetName() string               { return a.name }
func (a *Agent) GetDescription() string         { return a.config.Description }
func (a *Agent) GetConfig() *config.AgentConfig { return a.config }

// Run executes the iteration loop against th, optionally first appending a
// user message carrying userInput, and returns the messages it produced.
func (a *Agent) Run(ctx context.Context, th *thread.Thread, userInput string) (_ []*thread.Message, runErr error) {
	runStart := time.Now()
	defer func() { a.metrics.RecordAgentRun(a.name, time.Since(runStart), runErr) }()

	if err := a.injectSystemPrompt(th); err != nil {
		return nil, err
	}

	before := len(th.Messages)

	if userInput != "" {
		if _, err := th.AddMessage(thread.MessageInput{Role: thread.RoleUser, Content: userInput}); err != nil {
			return nil, err
		}
	}

	if err := a.processLatestUserAttachments(ctx, th); err != nil {
		return nil, err
	}

	maxIter := a.config.Reasoning.MaxToolIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	toolDefs := a.availableToolDefs()

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return a.newMessagesSince(th, before), ctx.Err()
		default:
		}

		messages := th.GetMessagesForChatCompletion()
		if sys, ok := th.GetLastMessageByRole(thread.RoleSystem); ok {
			messages = append([]llms.Message{{Role: string(thread.RoleSystem), Content: sys.ContentText()}}, messages...)
		}
		resp, weaveCall, err := a.completeWithTelemetry(ctx, llms.CompletionRequest{
			Model:       a.config.LLM,
			Messages:    messages,
			Temperature: 0.7,
			Tools:       toolDefs,
		})
		if err != nil {
			if _, addErr := th.AddMessage(thread.MessageInput{
				Role:    thread.RoleAssistant,
				Content: fmt.Sprintf("I ran into an error calling the model: %v", err),
				Metrics: map[string]interface{}{"error": err.Error()},
			}); addErr != nil {
				return nil, addErr
			}
			return a.newMessagesSince(th, before), nil
		}

		metrics := map[string]interface{}{"usage": resp.Usage, "model": a.config.LLM}
		if weaveCall != "" {
			metrics["weave_call"] = weaveCall
		}
		if _, err := th.AddMessage(thread.MessageInput{
			Role:      thread.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: toThreadToolCalls(resp.ToolCalls),
			Metrics:   metrics,
		}); err != nil {
			return nil, err
		}

		if len(resp.ToolCalls) == 0 {
			return a.newMessagesSince(th, before), nil
		}

		interrupted, err := a.dispatchToolCalls(ctx, th, resp.ToolCalls)
		if err != nil {
			return a.newMessagesSince(th, before), err
		}
		if interrupted {
			return a.newMessagesSince(th, before), nil
		}

		if iter == maxIter-1 {
			if _, err := th.AddMessage(thread.MessageInput{
				Role:    thread.RoleAssistant,
				Content: "Maximum tool iteration count reached. Stopping further tool calls.",
				Metrics: map[string]interface{}{"iteration_limit_reached": true},
			}); err != nil {
				return nil, err
			}
		}
	}

	return a.newMessagesSince(th, before), nil
}

// processLatestUserAttachments runs attachment processing over
// the most recent user message before the first model call of a turn, so
// ProcessedContent is available for the chat-completion projection. A turn
// with no attachment processor configured, or whose latest user message
// carries no attachments, is a no-op.
func (a *Agent) processLatestUserAttachments(ctx context.Context, th *thread.Thread) error {
	if a.attachmentProcessor == nil {
		return nil
	}
	msg, ok := th.GetLastMessageByRole(thread.RoleUser)
	if !ok || len(msg.Attachments) == 0 {
		return nil
	}
	return a.attachmentProcessor.ProcessMessage(ctx, msg)
}

// completeWithTelemetry wraps a single provider.Complete call in a span and
// records LLM call metrics, returning the trace id the span was assigned
// (empty if tracing is disabled) for the caller to attach as the message's
// weave_call identifier.
func (a *Agent) completeWithTelemetry(ctx context.Context, req llms.CompletionRequest) (*llms.CompletionResponse, string, error) {
	start := time.Now()

	var span trace.Span
	if a.tracer != nil {
		ctx, span = a.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.message_count", len(req.Messages)),
		))
		defer span.End()
	}

	resp, err := a.provider.Complete(ctx, req)

	a.metrics.RecordLLMCall(req.Model, a.config.LLM, time.Since(start))
	if err != nil {
		a.metrics.RecordLLMError(req.Model, a.config.LLM)
		if span != nil {
			span.RecordError(err)
		}
		return nil, "", err
	}
	if span != nil {
		span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
	}

	var weaveCall string
	if span != nil && span.SpanContext().HasTraceID() {
		weaveCall = span.SpanContext().TraceID().String()
	}
	return resp, weaveCall, nil
}

// dispatchToolCalls executes every requested tool call concurrently but
// appends their results to the thread in the order the calls were
// requested, so downstream readers see a deterministic tool_call_id
// ordering regardless of completion order. If any dispatched call names a
// tool registered with attribute type=interrupt, every already-computed
// result is still recorded in call order first, and the return value tells
// the caller to end the turn after this iteration rather than calling the
// model again.
func (a *Agent) dispatchToolCalls(ctx context.Context, th *thread.Thread, calls []llms.ToolCall) (bool, error) {
	results := make([]tools.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			if strings.HasPrefix(call.Name, "delegate_to_") {
				results[i] = a.executeDelegateCall(gctx, call)
				return nil
			}
			start := time.Now()
			results[i] = a.toolRegistry.ExecuteToolCall(gctx, call)
			a.metrics.RecordToolCall(call.Name, time.Since(start))
			if !results[i].Success {
				a.metrics.RecordToolError(call.Name)
			}
			return nil
		})
	}
	// ExecuteToolCall never returns an error through the group; failures are
	// captured as a failed ToolResult instead. Every goroutine returns nil, so
	// Wait never reports an error here.
	if err := g.Wait(); err != nil {
		return false, err
	}

	interrupted := false
	for i, call := range calls {
		res := results[i]
		content := res.Content
		if !res.Success {
			content = fmt.Sprintf("Error: %s", res.Error)
		}
		if _, err := th.AddMessage(thread.MessageInput{
			Role:        thread.RoleTool,
			Content:     content,
			ToolCallID:  call.ID,
			Name:        call.Name,
			Attachments: attachmentsFromResult(res),
		}); err != nil {
			return false, err
		}
		if a.toolRegistry != nil && a.toolRegistry.IsInterruptTool(call.Name) {
			interrupted = true
		}
	}
	return interrupted, nil
}

// executeDelegateCall parses a synthesized delegate_to_<name> call and runs
// the matching child agent, wrapping its concatenated output as a ToolResult.
func (a *Agent) executeDelegateCall(ctx context.Context, call llms.ToolCall) tools.ToolResult {
	childName := strings.TrimPrefix(call.Name, "delegate_to_")

	var args struct {
		Task    string                 `json:"task"`
		Context map[string]interface{} `json:"context"`
	}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return tools.ToolResult{Success: false, Error: fmt.Sprintf("invalid arguments for %s: %v", call.Name, err), ToolName: call.Name}
		}
	}

	output, err := a.RunDelegate(ctx, childName, args.Task, args.Context)
	if err != nil {
		return tools.ToolResult{Success: false, Error: err.Error(), ToolName: call.Name}
	}
	return tools.ToolResult{Success: true, Content: output, ToolName: call.Name}
}

// attachmentsFromResult lifts a file-bearing tool result into a thread
// attachment: tools that produce files place a
// *thread.Attachment under Metadata["attachment"].
func attachmentsFromResult(res tools.ToolResult) []*thread.Attachment {
	if res.Metadata == nil {
		return nil
	}
	if att, ok := res.Metadata["attachment"].(*thread.Attachment); ok {
		return []*thread.Attachment{att}
	}
	return nil
}

func toThreadToolCalls(calls []llms.ToolCall) []thread.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]thread.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = thread.ToolCall{
			ID:   c.ID,
			Type: "function",
			Function: thread.ToolCallFunction{
				Name:      c.Name,
				Arguments: c.Arguments,
			},
		}
	}
	return out
}

// newMessagesSince returns every message added since index `before`,
// excluding user-role messages.
func (a *Agent) newMessagesSince(th *thread.Thread, before int) []*thread.Message {
	if before > len(th.Messages) {
		return nil
	}
	var out []*thread.Message
	for _, m := range th.Messages[before:] {
		if m.Role == thread.RoleUser {
			continue
		}
		out = append(out, m)
	}
	return out
}

// injectSystemPrompt composes and (re)installs the system message at
// sequence 0, reflecting the tools and delegates currently
// available to this agent.
func (a *Agent) injectSystemPrompt(th *thread.Thread) error {
	var toolDescs []reasoning.ToolDescriptor
	if a.toolRegistry != nil {
		for _, info := range a.toolRegistry.ListTools() {
			toolDescs = append(toolDescs, reasoning.ToolDescriptor{Name: info.Name, Description: info.Description})
		}
	}

	var children []string
	for _, d := range a.delegates {
		children = append(children, d.name)
	}

	prompt := reasoning.ComposeSystemPrompt(a.config.Prompt, reasoning.PromptSlots{}, toolDescs, children)
	if prompt == "" {
		return nil
	}

	_, err := th.AddMessage(thread.MessageInput{Role: thread.RoleSystem, Content: prompt})
	return err
}

// availableToolDefs returns the registered tools plus one synthesized
// delegate_to_<Name> tool per registered child agent.
func (a *Agent) availableToolDefs() []llms.ToolDefinition {
	var defs []llms.ToolDefinition
	if a.toolRegistry != nil {
		defs = a.toolRegistry.ListToolDefinitions()
	}

	for _, d := range a.delegates {
		defs = append(defs, llms.ToolDefinition{
			Name:        "delegate_to_" + d.name,
			Description: fmt.Sprintf("Delegate a task to the %s sub-agent.", d.name),
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"task":    map[string]interface{}{"type": "string", "description": "The task to delegate"},
					"context": map[string]interface{}{"type": "object", "description": "Optional additional context"},
				},
				"required": []string{"task"},
			},
		})
	}
	return defs
}

// RunDelegate invokes a registered delegate by name (used by the agent
// registry when synthesizing tool calls into real sub-agent runs).
func (a *Agent) RunDelegate(ctx context.Context, name, task string, taskContext map[string]interface{}) (string, error) {
	for _, d := range a.delegates {
		if d.name == name {
			return d.run(ctx, task, taskContext)
		}
	}
	return "", fmt.Errorf("no delegate registered for %q", name)
}
