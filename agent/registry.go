package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/logger"
	"github.com/kadirpekel/threadrunner/registry"
	"github.com/kadirpekel/threadrunner/thread"
)

// agentRunnerSource tags every message run_agent synthesizes, distinguishing
// a delegated sub-task's transcript from a top-level conversation.
var agentRunnerSource = map[string]interface{}{"id": "agent_runner", "type": "tool"}

// AgentEntry pairs a runnable Agent with the configuration it was built from.
type AgentEntry struct {
	Agent  *Agent
	Config *config.AgentConfig
	Name   string
}

// AgentRegistryError reports a registry-level failure (unknown agent name).
type AgentRegistryError struct {
	Component string
	Action    string
	Message   string
	Err       error
}

func (e *AgentRegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Action, e.Message)
}

func NewAgentRegistryError(component, action, message string, err error) *AgentRegistryError {
	return &AgentRegistryError{Component: component, Action: action, Message: message, Err: err}
}

// AgentRegistry is the Agent Runner's process-wide registry of named
// agents: register_agent, list_agents, get_agent, run_agent.
type AgentRegistry struct {
	*registry.BaseRegistry[AgentEntry]
}

// NewAgentRegistry creates an empty agent registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{BaseRegistry: registry.NewBaseRegistry[AgentEntry]()}
}

// RegisterAgent inserts or replaces the agent entry under name, warning on
// replacement.
func (r *AgentRegistry) RegisterAgent(name string, a *Agent, cfg *config.AgentConfig) error {
	if name == "" {
		return NewAgentRegistryError("AgentRegistry", "RegisterAgent", "agent name cannot be empty", nil)
	}
	if a == nil {
		return NewAgentRegistryError("AgentRegistry", "RegisterAgent", "agent cannot be nil", nil)
	}
	if cfg == nil {
		return NewAgentRegistryError("AgentRegistry", "RegisterAgent", "agent config cannot be nil", nil)
	}

	if _, exists := r.Get(name); exists {
		logger.Get().Warn("replacing already-registered agent", slog.String("name", name))
	}

	return r.Register(name, AgentEntry{Agent: a, Config: cfg, Name: name})
}

// GetAgent retrieves a registered agent by name.
func (r *AgentRegistry) GetAgent(name string) (*Agent, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, NewAgentRegistryError("AgentRegistry", "GetAgent", fmt.Sprintf("agent %q not found", name), nil)
	}
	return entry.Agent, nil
}

// GetAgentConfig retrieves a registered agent's configuration by name.
func (r *AgentRegistry) GetAgentConfig(name string) (*config.AgentConfig, error) {
	entry, exists := r.Get(name)
	if !exists {
		return nil, NewAgentRegistryError("AgentRegistry", "GetAgentConfig", fmt.Sprintf("agent %q not found", name), nil)
	}
	return entry.Config, nil
}

// ListAgents returns every registered agent name, sorted.
func (r *AgentRegistry) ListAgents() []string {
	entries := r.List()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// RunAgent runs a registered agent as a sub-task: a fresh thread is
// constructed with a user message carrying task and, if context is
// provided, a second user message formatted as "Here is additional context
// that may be helpful:\n<context>" — both tagged with the agent_runner
// source so the child's transcript is distinguishable from a top-level
// conversation. The output is the double-newline-joined concatenation of
// every assistant message the run produced — not just the last one, since
// a delegated agent may legitimately answer across multiple turns of tool
// use.
func (r *AgentRegistry) RunAgent(ctx context.Context, name, task string, taskContext map[string]interface{}) (string, error) {
	a, err := r.GetAgent(name)
	if err != nil {
		return "", err
	}

	th := thread.New("")
	if _, err := th.AddMessage(thread.MessageInput{
		Role:    thread.RoleUser,
		Content: task,
		Source:  agentRunnerSource,
	}); err != nil {
		return "", err
	}
	if len(taskContext) > 0 {
		encoded, err := json.Marshal(taskContext)
		if err != nil {
			return "", fmt.Errorf("encoding delegation context: %w", err)
		}
		if _, err := th.AddMessage(thread.MessageInput{
			Role:    thread.RoleUser,
			Content: fmt.Sprintf("Here is additional context that may be helpful:\n%s", encoded),
			Source:  agentRunnerSource,
		}); err != nil {
			return "", err
		}
	}

	newMessages, err := a.Run(ctx, th, "")
	if err != nil {
		return "", err
	}

	var parts []string
	for _, m := range newMessages {
		if m.Role == thread.RoleAssistant {
			if text := m.ContentText(); strings.TrimSpace(text) != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
