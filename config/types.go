// Package config provides configuration types and utilities for the orchestration core.
// This file contains all configuration types in a unified structure.
package config

import (
	"fmt"
	"time"
)

// ============================================================================
// LLM PROVIDER CONFIGURATION
// ============================================================================

// LLMProviderConfig configures a single LLM provider instance.
type LLMProviderConfig struct {
	Type        string        `yaml:"type"` // "anthropic", "mock", ...
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key,omitempty"` // usually supplied via env expansion
	BaseURL     string        `yaml:"base_url,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

func (c *LLMProviderConfig) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("type is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	return nil
}

func (c *LLMProviderConfig) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// ============================================================================
// AGENT CONFIGURATION
// ============================================================================

// PromptConfig controls system prompt composition.
type PromptConfig struct {
	Purpose      string `yaml:"purpose,omitempty"`
	Notes        string `yaml:"notes,omitempty"`
	SystemPrompt string `yaml:"system_prompt,omitempty"` // full override, bypasses Purpose/Notes
}

func (c *PromptConfig) Validate() error { return nil }
func (c *PromptConfig) SetDefaults()    {}

// ReasoningConfig controls the Agent Iteration Loop.
type ReasoningConfig struct {
	MaxToolIterations int  `yaml:"max_tool_iterations"` // default 10
	EnableStreaming   bool `yaml:"enable_streaming"`
	ShowDebugInfo     bool `yaml:"show_debug_info"`
}

func (c *ReasoningConfig) Validate() error {
	if c.MaxToolIterations < 0 {
		return fmt.Errorf("max_tool_iterations must not be negative")
	}
	return nil
}

func (c *ReasoningConfig) SetDefaults() {
	if c.MaxToolIterations == 0 {
		c.MaxToolIterations = 10
	}
}

// AgentConfig is the full configuration of one Agent.
type AgentConfig struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	LLM         string          `yaml:"llm"` // name of a registered LLMProviderConfig
	Prompt      PromptConfig    `yaml:"prompt,omitempty"`
	Reasoning   ReasoningConfig `yaml:"reasoning,omitempty"`
	Tools       ToolConfigs     `yaml:"tools,omitempty"`
	Children    []string        `yaml:"children,omitempty"` // names of child agents to delegate to
}

func (c *AgentConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.LLM == "" {
		return fmt.Errorf("llm is required")
	}
	if err := c.Prompt.Validate(); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	if err := c.Reasoning.Validate(); err != nil {
		return fmt.Errorf("reasoning: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	return nil
}

func (c *AgentConfig) SetDefaults() {
	c.Prompt.SetDefaults()
	c.Reasoning.SetDefaults()
	c.Tools.SetDefaults()
}

// ============================================================================
// TOOL CONFIGURATIONS
// ============================================================================

// ToolDefinition configures one tool within a local repository.
type ToolDefinition struct {
	Name    string                 `yaml:"name"`
	Type    string                 `yaml:"type"` // "command", "file_writer", "read_file"
	Enabled bool                   `yaml:"enabled"`
	Config  map[string]interface{} `yaml:"config,omitempty"`
}

// ToolRepository configures one tool source (local, mcp).
type ToolRepository struct {
	Name        string                 `yaml:"name"`
	Type        string                 `yaml:"type"` // "local" | "mcp"
	Description string                 `yaml:"description,omitempty"`
	URL         string                 `yaml:"url,omitempty"` // not used by the stdio mcp repository
	Config      map[string]interface{} `yaml:"config,omitempty"`
	Tools       []ToolDefinition       `yaml:"tools,omitempty"`
}

func (c *ToolRepository) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Type {
	case "local", "mcp":
	default:
		return fmt.Errorf("unsupported repository type: %s", c.Type)
	}
	if c.Type == "mcp" {
		if command, _ := c.Config["command"].(string); command == "" {
			return fmt.Errorf("mcp repository %q requires config.command", c.Name)
		}
	}
	return nil
}

func (c *ToolRepository) SetDefaults() {}

// ToolConfigs represents tool configuration for an agent.
type ToolConfigs struct {
	DefaultRepo  string           `yaml:"default_repo,omitempty"`
	Repositories []ToolRepository `yaml:"repositories,omitempty"`
}

func (c *ToolConfigs) Validate() error {
	names := make(map[string]bool)
	for i := range c.Repositories {
		if err := c.Repositories[i].Validate(); err != nil {
			return fmt.Errorf("repository %d: %w", i, err)
		}
		if names[c.Repositories[i].Name] {
			return fmt.Errorf("duplicate repository name: %s", c.Repositories[i].Name)
		}
		names[c.Repositories[i].Name] = true
	}
	if c.DefaultRepo != "" && !names[c.DefaultRepo] {
		return fmt.Errorf("default_repo %s not found in repositories", c.DefaultRepo)
	}
	return nil
}

func (c *ToolConfigs) SetDefaults() {
	if len(c.Repositories) == 0 {
		c.DefaultRepo = "local"
		c.Repositories = []ToolRepository{{
			Name: "local",
			Type: "local",
			Tools: []ToolDefinition{
				{Name: "execute_command", Type: "command", Enabled: true},
				{Name: "write_file", Type: "file_writer", Enabled: true},
				{Name: "read-file", Type: "read_file", Enabled: true},
			},
		}}
	}
	for i := range c.Repositories {
		c.Repositories[i].SetDefaults()
	}
}

// CommandToolsConfig configures the built-in "command" tool.
type CommandToolsConfig struct {
	AllowedCommands  []string      `yaml:"allowed_commands,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time,omitempty"`
	EnableSandboxing bool          `yaml:"enable_sandboxing,omitempty"`
}

// FileWriterToolConfig configures the built-in "file_writer" tool.
type FileWriterToolConfig struct {
	WorkingDirectory  string   `yaml:"working_directory,omitempty"`
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty"`
	MaxFileSize       int64    `yaml:"max_file_size,omitempty"`
}

// ============================================================================
// STORAGE CONFIGURATION
// ============================================================================

// ThreadStoreConfig configures the pluggable thread store.
type ThreadStoreConfig struct {
	Backend     string `yaml:"backend,omitempty"` // "memory" | "sqlite" | "postgres" | "mysql"
	DSN         string `yaml:"dsn,omitempty"`
	Echo        bool   `yaml:"echo,omitempty"`         // TYLER_DB_ECHO
	PoolSize    int    `yaml:"pool_size,omitempty"`     // TYLER_DB_POOL_SIZE
	MaxOverflow int    `yaml:"max_overflow,omitempty"` // TYLER_DB_MAX_OVERFLOW
}

func (c *ThreadStoreConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported thread store backend: %s", c.Backend)
	}
	return nil
}

func (c *ThreadStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.PoolSize == 0 {
		c.PoolSize = 5
	}
}

// FileStoreConfig configures the pluggable file store.
type FileStoreConfig struct {
	BasePath      string   `yaml:"base_path,omitempty"` // TYLER_FILE_STORAGE_PATH
	MaxFileSize   int64    `yaml:"max_file_size,omitempty"`
	AllowedMIMEs  []string `yaml:"allowed_mimes,omitempty"`
	MaxTotalBytes int64    `yaml:"max_total_bytes,omitempty"` // 0 = uncapped
}

func (c *FileStoreConfig) Validate() error { return nil }

func (c *FileStoreConfig) SetDefaults() {
	if c.BasePath == "" {
		c.BasePath = "~/.tyler/files"
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if len(c.AllowedMIMEs) == 0 {
		c.AllowedMIMEs = []string{
			"image/png", "image/jpeg", "image/gif", "image/webp",
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"text/plain", "text/markdown", "text/csv",
			"application/zip",
		}
	}
}

// StorageConfig groups the thread store and file store configuration.
type StorageConfig struct {
	Threads ThreadStoreConfig `yaml:"threads,omitempty"`
	Files   FileStoreConfig   `yaml:"files,omitempty"`
}

func (c *StorageConfig) Validate() error {
	if err := c.Threads.Validate(); err != nil {
		return fmt.Errorf("threads: %w", err)
	}
	if err := c.Files.Validate(); err != nil {
		return fmt.Errorf("files: %w", err)
	}
	return nil
}

func (c *StorageConfig) SetDefaults() {
	c.Threads.SetDefaults()
	c.Files.SetDefaults()
}

// ============================================================================
// OBSERVABILITY CONFIGURATION
// ============================================================================

// ObservabilityConfig controls the tracer and metrics registry every agent
// is wired with: per-step spans (populating message.metrics.weave_call) and
// the Prometheus counters/histograms the Tool Runner and Agent Iteration
// Loop emit on every call.
type ObservabilityConfig struct {
	Enabled          bool   `yaml:"enabled,omitempty"`
	ServiceName      string `yaml:"service_name,omitempty"`
	MetricsNamespace string `yaml:"metrics_namespace,omitempty"`
}

func (c *ObservabilityConfig) Validate() error { return nil }

func (c *ObservabilityConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "threadrunner"
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "threadrunner"
	}
}
