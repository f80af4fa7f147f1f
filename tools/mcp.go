package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/threadrunner/config"
)

// MCPToolRepository is a ToolSource backed by a Model Context Protocol
// server, reached over stdio (a locally spawned subprocess). The connection
// is established lazily on the first DiscoverTools call rather than at
// construction; ListTools does not connect.
type MCPToolRepository struct {
	mu      sync.Mutex
	name    string
	command string
	args    []string
	env     []string

	client    *client.Client
	toolInfos []ToolInfo
	toolsByName map[string]*mcpTool
	connected bool
}

// NewMCPToolRepositoryWithConfig builds an MCP tool source from a
// config.ToolRepository entry of type "mcp". The subprocess command is read
// from repoConfig.Config["command"]/["args"]/["env"] since config.ToolRepository
// only carries a URL field for remote HTTP servers, which this local-subprocess
// transport does not use.
func NewMCPToolRepositoryWithConfig(repoConfig config.ToolRepository) (*MCPToolRepository, error) {
	command, _ := repoConfig.Config["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("mcp repository %q requires config.command (stdio transport)", repoConfig.Name)
	}

	var args []string
	if raw, ok := repoConfig.Config["args"].([]interface{}); ok {
		for _, a := range raw {
			if s, ok := a.(string); ok {
				args = append(args, s)
			}
		}
	}

	var env []string
	if raw, ok := repoConfig.Config["env"].(map[string]interface{}); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				env = append(env, fmt.Sprintf("%s=%s", k, s))
			}
		}
	}

	return &MCPToolRepository{
		name:        repoConfig.Name,
		command:     command,
		args:        args,
		env:         env,
		toolsByName: map[string]*mcpTool{},
	}, nil
}

func (r *MCPToolRepository) GetName() string { return r.name }
func (r *MCPToolRepository) GetType() string { return "mcp" }

// DiscoverTools connects to the MCP server (if not already connected) and
// lists its tools.
func (r *MCPToolRepository) DiscoverTools(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return nil
	}
	return r.connectLocked(ctx)
}

func (r *MCPToolRepository) connectLocked(ctx context.Context) error {
	mcpClient, err := client.NewStdioMCPClient(r.command, r.env, r.args...)
	if err != nil {
		return fmt.Errorf("failed to create mcp client for %q: %w", r.name, err)
	}
	if err := mcpClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mcp client for %q: %w", r.name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "threadrunner", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize mcp session for %q: %w", r.name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list mcp tools for %q: %w", r.name, err)
	}

	infos := make([]ToolInfo, 0, len(listResp.Tools))
	byName := map[string]*mcpTool{}
	for _, t := range listResp.Tools {
		info := ToolInfo{Name: t.Name, Description: t.Description, ServerURL: r.name}
		infos = append(infos, info)
		byName[t.Name] = &mcpTool{repo: r, info: info}
	}

	r.client = mcpClient
	r.toolInfos = infos
	r.toolsByName = byName
	r.connected = true
	return nil
}

func (r *MCPToolRepository) ListTools() []ToolInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ToolInfo, len(r.toolInfos))
	copy(out, r.toolInfos)
	return out
}

func (r *MCPToolRepository) GetTool(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.toolsByName[name]
	return t, ok
}

// mcpTool adapts one remote MCP tool to the Tool interface, delegating
// execution back to the repository's shared client connection.
type mcpTool struct {
	repo *MCPToolRepository
	info ToolInfo
}

func (t *mcpTool) GetInfo() ToolInfo       { return t.info }
func (t *mcpTool) GetName() string         { return t.info.Name }
func (t *mcpTool) GetDescription() string  { return t.info.Description }

func (t *mcpTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	t.repo.mu.Lock()
	mcpClient := t.repo.client
	t.repo.mu.Unlock()
	if mcpClient == nil {
		return ToolResult{Success: false, Error: "mcp client not connected", ToolName: t.info.Name}, nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = t.info.Name
	req.Params.Arguments = args

	resp, err := mcpClient.CallTool(ctx, req)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error(), ToolName: t.info.Name}, nil
	}

	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	content := ""
	if len(texts) > 0 {
		content = texts[0]
	}
	if len(texts) > 1 {
		for _, extra := range texts[1:] {
			content += "\n" + extra
		}
	}

	if resp.IsError {
		return ToolResult{Success: false, Error: content, ToolName: t.info.Name}, nil
	}
	return ToolResult{Success: true, Content: content, ToolName: t.info.Name}, nil
}
