package mcp

import (
	"context"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/routines/internal/config"
	"github.com/hpungsan/routines/internal/ops"
)

// tool is one registrable MCP tool. handle is a method expression on Handlers.
type tool struct {
	def    mcp.Tool
	handle func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

var tools = []tool{
	{listToolDef, (*Handlers).HandleList},
	{getToolDef, (*Handlers).HandleGet},
	{saveToolDef, (*Handlers).HandleSave},
	{deleteToolDef, (*Handlers).HandleDelete},
	{validateToolDef, (*Handlers).HandleValidate},
	{parseToolDef, (*Handlers).HandleParse},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.def.Name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the entries of names that are not tools.
func ValidateDisabledTools(names []string) []string {
	known := make(map[string]bool, len(tools))
	for _, t := range tools {
		known[t.def.Name] = true
	}
	unknown := []string{}
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

const instructions = `Routines bundle several voice commands under one nickname.
Use routine_validate before routine_save to see which line fails to parse.
Saving with previous_name renames a routine; the old entry is removed.`

// NewServer builds the MCP server with every tool not listed in cfg.DisabledTools.
func NewServer(sync *ops.Synchronizer, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer("routines", version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	h := NewHandlers(sync, logger)
	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for _, t := range tools {
		if disabled[t.def.Name] {
			logger.Debug("tool disabled", zap.String("tool", t.def.Name))
			continue
		}
		handle := t.handle
		s.AddTool(t.def, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handle(h, ctx, req)
		})
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(sync *ops.Synchronizer, cfg *config.Config, logger *zap.Logger, version string) error {
	return server.ServeStdio(NewServer(sync, cfg, logger, version))
}
