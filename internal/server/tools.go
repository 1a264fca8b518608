// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
)

// ToolDefinition represents a tool that can be registered with the MCP server
type ToolDefinition struct {
	// Name is the name of the tool
	Name string

	// Description is a brief description of what the tool does
	Description string

	// Handler is the function that will be called when the tool is invoked
	Handler func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)

	// Parameters is the parameter schema for the tool (can be a struct)
	Parameters interface{}
}

// toolDefinitions lists every tool the server exposes
func (s *MCPServer) toolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "list_commands",
			Description: "Lists the AutoDaveSave menu commands with their checkmarks",
			Handler:     s.handleListCommands,
			Parameters:  EmptyParams{},
		},
		{
			Name:        "run_command",
			Description: "Runs an AutoDaveSave menu command",
			Handler:     s.handleRunCommand,
			Parameters:  RunCommandParams{},
		},
		{
			Name:        "set_interval",
			Description: "Sets the autosave interval in minutes",
			Handler:     s.handleSetInterval,
			Parameters:  SetIntervalParams{},
		},
		{
			Name:        "close_window",
			Description: "Closes a plugin window as the user would",
			Handler:     s.handleCloseWindow,
			Parameters:  CloseWindowParams{},
		},
		{
			Name:        "status",
			Description: "Reports the autosave state, checkmarks and open windows",
			Handler:     s.handleStatus,
			Parameters:  EmptyParams{},
		},
	}
}

// registerToolsDeclarative sets up all the MCP tools using a more declarative approach
func (s *MCPServer) registerToolsDeclarative() {
	for _, tool := range s.toolDefinitions() {
		registerToolWithError(s.server, tool)
	}
}

// registerToolWithError registers a tool with error handling
func registerToolWithError(srv *server.Server, def ToolDefinition) {
	tool, err := protocol.NewTool(def.Name, def.Description, def.Parameters)
	if err != nil {
		// Parameter structs are static, so this only fails on a programming error
		panic(err)
	}

	srv.RegisterTool(tool, def.Handler)
}
