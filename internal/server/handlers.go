// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"encoding/json"
	"fmt"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/plugin"
)

// StatusResponse is the payload returned by state-reporting tools
type StatusResponse struct {
	Plugin    string               `json:"plugin"`
	State     model.Snapshot       `json:"state"`
	Commands  []plugin.CommandItem `json:"commands"`
	Checks    map[string]bool      `json:"checks"`
	DebugText string               `json:"debug_text"`
	Windows   []WindowView         `json:"windows"`
}

// extractParams extracts parameters from a tool request
func extractParams(request *protocol.CallToolRequest, params interface{}) error {
	if len(request.RawArguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(request.RawArguments, params); err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid parameters: %v", err))
	}
	return nil
}

// extractCommandParam resolves the command named in a request
func extractCommandParam(request *protocol.CallToolRequest) (model.Command, error) {
	var params RunCommandParams
	if err := extractParams(request, &params); err != nil {
		return 0, err
	}
	if params.Command == "" {
		return 0, errors.InvalidInput("command is required")
	}
	cmd, ok := model.ParseCommand(params.Command)
	if !ok {
		return 0, errors.InvalidInput(fmt.Sprintf("unknown command %q", params.Command))
	}
	return cmd, nil
}

// createErrorResponse creates an error response
func createErrorResponse(err error) (*protocol.CallToolResult, error) {
	return nil, err
}

// createJSONResponse creates a text response holding v as JSON
func createJSONResponse(v interface{}) (*protocol.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to marshal response: %w", err))
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			&protocol.TextContent{
				Type: "text",
				Text: string(b),
			},
		},
	}, nil
}
