// Package component wires the orchestration core's registries (LLM
// providers, tools, agents) from a loaded configuration.
package component

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/threadrunner/agent"
	"github.com/kadirpekel/threadrunner/attachments"
	"github.com/kadirpekel/threadrunner/config"
	"github.com/kadirpekel/threadrunner/llms"
	"github.com/kadirpekel/threadrunner/storage"
	"github.com/kadirpekel/threadrunner/telemetry"
	"github.com/kadirpekel/threadrunner/tools"
)

// ComponentManager owns the process-wide registries and the global
// configuration they were built from.
type ComponentManager struct {
	globalConfig *config.Config

	llmRegistry   *llms.Registry
	toolRegistry  *tools.ToolRegistry
	agentRegistry *agent.AgentRegistry

	fileStore   storage.FileStore
	threadStore storage.ThreadStore

	tracer              trace.Tracer
	metrics             *telemetry.Metrics
	attachmentProcessor *attachments.Processor
}

// NewComponentManager builds every registry from globalConfig: LLM
// providers, the tool registry, and every configured agent (wiring child
// delegation after all agents exist, since delegation targets may be
// defined later in the map).
func NewComponentManager(globalConfig *config.Config) (*ComponentManager, error) {
	toolRegistry, err := tools.NewToolRegistryWithConfig(&globalConfig.Tools)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}

	llmRegistry := llms.NewRegistry()
	for name := range globalConfig.LLMs {
		cfg := globalConfig.LLMs[name]
		if _, err := llmRegistry.CreateFromConfig(name, &cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize llm %q: %w", name, err)
		}
	}

	fileStore, err := storage.NewLocalFileStore(globalConfig.Storage.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to create file store: %w", err)
	}

	threadStore, err := buildThreadStore(globalConfig.Storage.Threads, fileStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create thread store: %w", err)
	}

	telemetryCfg := telemetry.Config{
		Enabled:          globalConfig.Observability.Enabled,
		ServiceName:      globalConfig.Observability.ServiceName,
		MetricsNamespace: globalConfig.Observability.MetricsNamespace,
	}
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	cm := &ComponentManager{
		globalConfig:        globalConfig,
		llmRegistry:         llmRegistry,
		toolRegistry:        toolRegistry,
		agentRegistry:       agent.NewAgentRegistry(),
		fileStore:           fileStore,
		threadStore:         threadStore,
		tracer:              tracerProvider.Tracer("github.com/kadirpekel/threadrunner"),
		metrics:             telemetry.NewMetrics(telemetryCfg),
		attachmentProcessor: attachments.NewProcessor(toolRegistry, fileStore),
	}

	if err := cm.buildAgents(); err != nil {
		return nil, err
	}

	return cm, nil
}

// buildThreadStore selects the thread store backend named by cfg.Backend,
// wiring the file store in so Save can ensure attachments are persisted
// before the thread record commits.
func buildThreadStore(cfg config.ThreadStoreConfig, fs storage.FileStore) (storage.ThreadStore, error) {
	switch cfg.Backend {
	case "", "memory":
		return storage.NewMemoryThreadStoreWithFileStore(fs), nil
	case "sqlite", "postgres", "mysql":
		store, err := storage.NewSQLThreadStore(cfg, fs)
		if err != nil {
			return nil, err
		}
		if err := store.Initialize(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported thread store backend: %s", cfg.Backend)
	}
}

// buildAgents instantiates every agent in config, then wires delegation:
// a parent agent's Children names must already be registered.
func (cm *ComponentManager) buildAgents() error {
	for name := range cm.globalConfig.Agents {
		cfg := cm.globalConfig.Agents[name]

		provider, err := cm.llmRegistry.GetProvider(cfg.LLM)
		if err != nil {
			return fmt.Errorf("agent %q references unknown llm %q", name, cfg.LLM)
		}

		a, err := agent.NewAgent(&cfg, provider, cm.toolRegistry)
		if err != nil {
			return fmt.Errorf("failed to build agent %q: %w", name, err)
		}
		a.SetTelemetry(cm.tracer, cm.metrics)
		a.SetAttachmentProcessor(cm.attachmentProcessor)

		if err := cm.agentRegistry.RegisterAgent(name, a, &cfg); err != nil {
			return fmt.Errorf("failed to register agent %q: %w", name, err)
		}
	}

	for name := range cm.globalConfig.Agents {
		cfg := cm.globalConfig.Agents[name]
		if len(cfg.Children) == 0 {
			continue
		}

		parent, err := cm.agentRegistry.GetAgent(name)
		if err != nil {
			return err
		}

		for _, childName := range cfg.Children {
			if _, err := cm.agentRegistry.GetAgent(childName); err != nil {
				return fmt.Errorf("agent %q delegates to unknown agent %q", name, childName)
			}
			child := childName
			parent.AddDelegate(child, func(ctx context.Context, task string, taskContext map[string]interface{}) (string, error) {
				return cm.agentRegistry.RunAgent(ctx, child, task, taskContext)
			})
		}
	}

	return nil
}

// GetGlobalConfig returns the loaded configuration.
func (cm *ComponentManager) GetGlobalConfig() *config.Config { return cm.globalConfig }

// GetLLMRegistry returns the LLM provider registry.
func (cm *ComponentManager) GetLLMRegistry() *llms.Registry { return cm.llmRegistry }

// GetToolRegistry returns the tool registry.
func (cm *ComponentManager) GetToolRegistry() *tools.ToolRegistry { return cm.toolRegistry }

// GetAgentRegistry returns the agent registry.
func (cm *ComponentManager) GetAgentRegistry() *agent.AgentRegistry { return cm.agentRegistry }

// GetLLM returns a named LLM provider.
func (cm *ComponentManager) GetLLM(name string) (llms.Provider, error) {
	return cm.llmRegistry.GetProvider(name)
}

// GetAgent returns a named agent.
func (cm *ComponentManager) GetAgent(name string) (*agent.Agent, error) {
	return cm.agentRegistry.GetAgent(name)
}

// GetFileStore returns the configured attachment file store.
func (cm *ComponentManager) GetFileStore() storage.FileStore { return cm.fileStore }

// GetThreadStore returns the configured thread store.
func (cm *ComponentManager) GetThreadStore() storage.ThreadStore { return cm.threadStore }

// GetMetrics returns the process-wide metrics recorder (nil if observability
// is disabled in configuration).
func (cm *ComponentManager) GetMetrics() *telemetry.Metrics { return cm.metrics }
