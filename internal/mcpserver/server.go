// Package mcpserver exposes the capability registry as an MCP stdio
// server. The claude CLI provider points its --mcp-config at this
// process, so CLI runs reach the exact same runtime the HTTP API
// provider calls natively.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dbrain-dev/dbrain/internal/capability"
	"github.com/dbrain-dev/dbrain/internal/runtime"
)

// serverName is the MCP server identifier. Prompts reference tools as
// mcp__todoist__<tool>, so the name is part of the tool contract.
const serverName = "todoist"

// Server wraps an MCP stdio server over the capability runtime.
type Server struct {
	mcp     *server.MCPServer
	runtime runtime.Runtime
	logger  *slog.Logger
}

// New registers every capability in the registry as an MCP tool.
func New(registry capability.Registry, rt runtime.Runtime, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:     server.NewMCPServer(serverName, version),
		runtime: rt,
		logger:  logger.With("component", "mcpserver"),
	}

	for _, name := range registry.Names() {
		spec, _ := registry.Get(name)
		tool := mcp.NewToolWithRawSchema(ToolName(name), spec.Description, spec.InputSchema)
		s.mcp.AddTool(tool, s.handler(name))
	}
	return s
}

// ToolName maps a capability name to its MCP tool name: the todoist
// prefix is dropped (the server itself is named todoist) and
// underscores become dashes, e.g. todoist.user_info -> user-info,
// vault.read_file -> vault-read-file.
func ToolName(capabilityName string) string {
	name := strings.TrimPrefix(capabilityName, "todoist.")
	name = strings.ReplaceAll(name, ".", "-")
	return strings.ReplaceAll(name, "_", "-")
}

func (s *Server) handler(capabilityName string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := s.runtime.Execute(ctx, capabilityName, request.GetArguments())
		raw, err := json.Marshal(struct {
			OK    bool              `json:"ok"`
			Data  map[string]any    `json:"data"`
			Error *capability.Error `json:"error"`
		}{OK: result.OK, Data: result.Data, Error: result.Error})
		if err != nil {
			return mcp.NewToolResultError("failed to encode tool result"), nil
		}
		if !result.OK {
			s.logger.Warn("tool call failed",
				"capability", capabilityName,
				"code", result.Error.Code)
			return mcp.NewToolResultError(string(raw)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

// ServeStdio blocks serving MCP over stdin/stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}
