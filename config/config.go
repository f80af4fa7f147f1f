// Package config provides configuration types and utilities for the orchestration core.
// This file contains the main unified configuration entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// Config is the single entry point for all configuration: LLM providers,
// agents, the shared tool registry and storage.
type Config struct {
	Version string `yaml:"version,omitempty"`

	LLMs          map[string]LLMProviderConfig `yaml:"llms,omitempty"`
	Agents        map[string]AgentConfig       `yaml:"agents,omitempty"`
	Tools         ToolConfigs                  `yaml:"tools,omitempty"`
	Storage       StorageConfig                `yaml:"storage,omitempty"`
	Observability ObservabilityConfig          `yaml:"observability,omitempty"`
}

// Validate implements ConfigInterface for Config.
func (c *Config) Validate() error {
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm '%s': %w", name, err)
		}
	}
	for name, agent := range c.Agents {
		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok {
				return fmt.Errorf("agent '%s' references unknown llm '%s'", name, agent.LLM)
			}
		}
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent '%s': %w", name, err)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}

// SetDefaults implements ConfigInterface for Config.
func (c *Config) SetDefaults() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]LLMProviderConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	for name := range c.LLMs {
		llm := c.LLMs[name]
		llm.SetDefaults()
		c.LLMs[name] = llm
	}
	for name := range c.Agents {
		agent := c.Agents[name]
		if agent.Name == "" {
			agent.Name = name
		}
		agent.SetDefaults()
		c.Agents[name] = agent
	}
	c.Storage.SetDefaults()
	c.Observability.SetDefaults()
}

// Load reads a YAML configuration file, expands environment variable
// references of the form ${VAR}, ${VAR:-default} and $VAR, applies defaults
// and validates the result.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("loading .env files: %w", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var asMap map[string]interface{}
	if err := yaml.Unmarshal(raw, &asMap); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	expanded := ExpandEnvVarsInData(asMap)

	reEncoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("re-encoding expanded config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(reEncoded, cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
