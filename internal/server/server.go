// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/ThinkInAIXYZ/go-mcp/server"
	"github.com/ThinkInAIXYZ/go-mcp/transport"

	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/loop"
	"github.com/netwebdave/autodavesave/internal/plugin"
)

// RunCommandParams holds the command parameter used by run_command
type RunCommandParams struct {
	Command string `json:"command" description:"menu command: toggle_autosave, interval_1, interval_3, interval_10, toggle_debug or about"`
}

// SetIntervalParams defines parameters for set_interval
type SetIntervalParams struct {
	Minutes int `json:"minutes" description:"autosave interval in minutes, values below 1 are clamped to 1"`
}

// CloseWindowParams defines parameters for close_window
type CloseWindowParams struct {
	Title string `json:"title" description:"title of the window to close"`
}

// EmptyParams is used by tools without parameters
type EmptyParams struct{}

// MCPServer exposes a loaded plugin over MCP. Every tool call runs on the
// event loop.
type MCPServer struct {
	plugin         *plugin.Plugin
	host           *Host
	loop           *loop.Loop
	server         *server.Server
	stopCh         chan struct{}
	wg             sync.WaitGroup
	config         *config.Config
	logger         *logging.Logger
	shutdownMutex  sync.Mutex
	isShuttingDown bool
}

// NewMCPServer creates a new MCP control server
func NewMCPServer(cfg *config.Config, p *plugin.Plugin, host *Host, l *loop.Loop) (*MCPServer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := logging.GetDefaultLogger()

	mcpServer := &MCPServer{
		plugin: p,
		host:   host,
		loop:   l,
		stopCh: make(chan struct{}),
		config: cfg,
		logger: logger,
	}

	var svrTransport transport.ServerTransport
	var err error

	switch cfg.Server.TransportMode {
	case "stdio":
		logger.Infof("Using stdio transport")
		svrTransport = transport.NewStdioServerTransport()
	case "sse":
		addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
		logger.Infof("Using SSE transport on %s", addr)

		svrTransport, err = transport.NewSSEServerTransport(addr)
		if err != nil {
			return nil, errors.Internal(fmt.Errorf("failed to create SSE transport: %w", err))
		}
	default:
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported transport mode: %s", cfg.Server.TransportMode))
	}

	mcpServer.server, err = server.NewServer(
		svrTransport,
		server.WithServerInfo(protocol.Implementation{
			Name:    cfg.Server.Name,
			Version: cfg.Server.Version,
		}),
	)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to create MCP server: %w", err))
	}

	return mcpServer, nil
}

// Start starts the MCP server
func (s *MCPServer) Start(ctx context.Context) error {
	s.registerToolsDeclarative()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if err := s.server.Run(); err != nil {
			s.logger.Errorf("Error running MCP server: %v", err)
			return
		}
	}()

	go s.watchContext(ctx)

	return nil
}

// watchContext stops the server when ctx is done. It returns early once
// Stop has been called directly.
func (s *MCPServer) watchContext(ctx context.Context) {
	select {
	case <-ctx.Done():
		if err := s.Stop(); err != nil {
			s.logger.Errorf("Error stopping MCP server: %v", err)
		}
	case <-s.stopCh:
	}
}

// Stop stops the MCP server
func (s *MCPServer) Stop() error {
	s.shutdownMutex.Lock()
	defer s.shutdownMutex.Unlock()

	if s.isShuttingDown {
		s.logger.Debugf("Stop called but server is already shutting down, ignoring")
		return nil
	}

	s.isShuttingDown = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.Internal(fmt.Errorf("error shutting down MCP server: %w", err))
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.wg.Wait()
	return nil
}

// onLoop runs fn on the event loop, mapping loop failures to internal errors
func (s *MCPServer) onLoop(ctx context.Context, fn func()) error {
	if err := s.loop.Do(ctx, fn); err != nil {
		return errors.Internal(fmt.Errorf("event loop: %w", err))
	}
	return nil
}

// status collects the current plugin and host state. Must run on the loop.
func (s *MCPServer) status() StatusResponse {
	return StatusResponse{
		Plugin:    s.plugin.Name(),
		State:     s.plugin.Snapshot(),
		Commands:  s.plugin.Commands(),
		Checks:    s.host.Checks(),
		DebugText: s.plugin.DebugText(),
		Windows:   s.host.Windows(),
	}
}

// handleListCommands lists the menu commands with their checkmarks
func (s *MCPServer) handleListCommands(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.logger.Debugf("Handling list_commands request")

	var items []plugin.CommandItem
	if err := s.onLoop(ctx, func() { items = s.plugin.Commands() }); err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(items)
}

// handleRunCommand runs a menu command as if the user picked it
func (s *MCPServer) handleRunCommand(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	cmd, err := extractCommandParam(request)
	if err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling run_command request for %s", cmd)

	var resp StatusResponse
	var runErr error
	if err := s.onLoop(ctx, func() {
		runErr = s.plugin.Handle(cmd)
		resp = s.status()
	}); err != nil {
		return createErrorResponse(err)
	}
	if runErr != nil {
		return createErrorResponse(runErr)
	}
	return createJSONResponse(resp)
}

// handleSetInterval sets an arbitrary autosave interval
func (s *MCPServer) handleSetInterval(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params SetIntervalParams
	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}

	s.logger.Debugf("Handling set_interval request for %d minutes", params.Minutes)

	var resp StatusResponse
	if err := s.onLoop(ctx, func() {
		s.plugin.SetIntervalMinutes(params.Minutes)
		resp = s.status()
	}); err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(resp)
}

// handleCloseWindow closes a plugin window as the user would
func (s *MCPServer) handleCloseWindow(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params CloseWindowParams
	if err := extractParams(request, &params); err != nil {
		return createErrorResponse(err)
	}
	if params.Title == "" {
		return createErrorResponse(errors.InvalidInput("title is required"))
	}

	s.logger.Debugf("Handling close_window request for %q", params.Title)

	var resp StatusResponse
	var closeErr error
	if err := s.onLoop(ctx, func() {
		closeErr = s.host.CloseWindow(params.Title)
		resp = s.status()
	}); err != nil {
		return createErrorResponse(err)
	}
	if closeErr != nil {
		return createErrorResponse(closeErr)
	}
	return createJSONResponse(resp)
}

// handleStatus reports the scheduler state, checkmarks and open windows
func (s *MCPServer) handleStatus(ctx context.Context, request *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	s.logger.Debugf("Handling status request")

	var resp StatusResponse
	if err := s.onLoop(ctx, func() { resp = s.status() }); err != nil {
		return createErrorResponse(err)
	}
	return createJSONResponse(resp)
}

