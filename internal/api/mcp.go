package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// MCPServerName is the MCP server name advertised to clients
	MCPServerName = "metaseek"
	// MCPServerVersion is the advertised server version
	MCPServerVersion = "1.0.0"
)

// MCPServer exposes the search tools to agent clients over MCP.
type MCPServer struct {
	mcp *server.MCPServer
	api *Server
}

// NewMCPServer wraps the API server's components as MCP tools.
func NewMCPServer(api *Server) *MCPServer {
	s := &MCPServer{
		mcp: server.NewMCPServer(MCPServerName, MCPServerVersion),
		api: api,
	}
	s.mcp.AddTool(searchFilesTool(), s.handleSearchFiles)
	s.mcp.AddTool(recentFilesTool(), s.handleRecentFiles)
	s.mcp.AddTool(popularFilesTool(), s.handlePopularFiles)
	return s
}

// ServeStdio runs the MCP server on stdin/stdout and blocks until the
// client disconnects.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func searchFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_files",
		Description: "Search local files by meaning and metadata using a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language search query",
				},
			},
			Required: []string{"query"},
		},
	}
}

func recentFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "recent_files",
		Description: "List the most recently modified indexed files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of files to return",
					"default":     5,
				},
			},
		},
	}
}

func popularFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "popular_files",
		Description: "List the most frequently surfaced indexed files",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of files to return",
					"default":     5,
				},
			},
		},
	}
}

func (s *MCPServer) handleSearchFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments"), nil
	}
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	plan, err := s.api.planner.Plan(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query planning failed: %v", err)), nil
	}
	results, err := s.api.engine.Search(ctx, plan, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(results)), nil
}

func (s *MCPServer) handleRecentFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.api.meta.GetRecent(ctx, limitArg(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recent query failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(toResults(records))), nil
}

func (s *MCPServer) handlePopularFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.api.meta.GetPopular(ctx, limitArg(request))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("popular query failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(toResults(records))), nil
}

func limitArg(request mcp.CallToolRequest) int {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return 5
	}
	if val, ok := args["limit"].(float64); ok && val >= 1 {
		return int(val)
	}
	return 5
}

func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
