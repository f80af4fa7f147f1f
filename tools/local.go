package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/kadirpekel/threadrunner/config"
)

// ============================================================================
// LOCAL - BUILT-IN TOOL REPOSITORY
// ============================================================================

// LocalToolRepository holds the built-in tools compiled into this binary,
// as opposed to a repository backed by a remote MCP server.
type LocalToolRepository struct {
	name  string
	tools map[string]Tool
	mu    sync.RWMutex
}

func NewLocalToolRepository(name string) *LocalToolRepository {
	if name == "" {
		name = "local"
	}
	return &LocalToolRepository{
		name:  name,
		tools: make(map[string]Tool),
	}
}

// NewLocalToolRepositoryWithConfig builds each enabled tool named in
// repoConfig, dispatching by its configured type.
func NewLocalToolRepositoryWithConfig(repoConfig config.ToolRepository) (*LocalToolRepository, error) {
	repo := &LocalToolRepository{
		name:  repoConfig.Name,
		tools: make(map[string]Tool),
	}

	for _, toolDef := range repoConfig.Tools {
		if !toolDef.Enabled {
			continue
		}

		var tool Tool
		var err error

		switch toolDef.Type {
		case "command":
			tool, err = NewCommandToolWithConfig(toolDef)
		case "file_writer":
			tool, err = NewFileWriterToolWithConfig(toolDef)
		case "read_file":
			tool, err = NewReadFileTool(), nil
		default:
			fmt.Printf("Warning: Unknown local tool type '%s' for tool '%s', skipping\n", toolDef.Type, toolDef.Name)
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to create tool '%s': %w", toolDef.Name, err)
		}

		if err := repo.RegisterTool(tool); err != nil {
			return nil, fmt.Errorf("failed to register tool '%s': %w", toolDef.Name, err)
		}
	}

	return repo, nil
}

func (r *LocalToolRepository) GetName() string { return r.name }
func (r *LocalToolRepository) GetType() string { return "local" }

func (r *LocalToolRepository) RegisterTool(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.GetName()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered in repository %s", name, r.name)
	}
	r.tools[name] = tool
	return nil
}

// DiscoverTools is a no-op: local tools are registered directly by
// NewLocalToolRepositoryWithConfig, not discovered out-of-process.
func (r *LocalToolRepository) DiscoverTools(ctx context.Context) error {
	return nil
}

func (r *LocalToolRepository) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tools []ToolInfo
	for _, tool := range r.tools {
		info := tool.GetInfo()
		info.ServerURL = r.name
		tools = append(tools, info)
	}
	return tools
}

func (r *LocalToolRepository) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, exists := r.tools[name]
	return tool, exists
}

func (r *LocalToolRepository) RemoveTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return fmt.Errorf("tool %s not found in repository %s", name, r.name)
	}

	delete(r.tools, name)
	return nil
}
