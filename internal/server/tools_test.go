// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/debugview"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/loop"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/plugin"
	"github.com/netwebdave/autodavesave/internal/timer/timertest"
)

type fixture struct {
	server     *MCPServer
	host       *Host
	dispatcher *MockDispatcher
	timers     *timertest.Factory
	loop       *loop.Loop
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l := loop.New(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		l.Close()
	})

	d := new(MockDispatcher)
	h := NewHost(d, nil)
	timers := timertest.New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	var p *plugin.Plugin
	require.NoError(t, l.Do(ctx, func() {
		p = plugin.Load(h, plugin.Options{Timers: timers, Clock: timers.Clock})
		p.OnHostReady()
	}))

	srv, err := NewMCPServer(config.DefaultConfig(), p, h, l)
	require.NoError(t, err)

	return &fixture{server: srv, host: h, dispatcher: d, timers: timers, loop: l}
}

func request(t *testing.T, args interface{}) *protocol.CallToolRequest {
	t.Helper()
	req := &protocol.CallToolRequest{}
	if args != nil {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		req.RawArguments = raw
	}
	return req
}

func decode(t *testing.T, result *protocol.CallToolResult, v interface{}) {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*protocol.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

// TestRegisterToolsDeclarative tests if tools are registered correctly
func TestRegisterToolsDeclarative(t *testing.T) {
	f := newFixture(t)

	names := make([]string, 0)
	for _, def := range f.server.toolDefinitions() {
		names = append(names, def.Name)
		_, err := protocol.NewTool(def.Name, def.Description, def.Parameters)
		assert.NoError(t, err, def.Name)
	}
	assert.Equal(t, []string{"list_commands", "run_command", "set_interval", "close_window", "status"}, names)

	assert.NotPanics(t, func() { f.server.registerToolsDeclarative() })
}

func TestNewMCPServerRejectsUnknownTransport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.TransportMode = "carrier-pigeon"

	_, err := NewMCPServer(cfg, nil, nil, nil)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestWatchContextReturnsAfterStop(t *testing.T) {
	s := &MCPServer{stopCh: make(chan struct{}), logger: logging.Nop()}

	done := make(chan struct{})
	go func() {
		s.watchContext(context.Background())
		close(done)
	}()

	close(s.stopCh)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("context watcher still running after stop")
	}
}

func TestHandleListCommands(t *testing.T) {
	f := newFixture(t)

	result, err := f.server.handleListCommands(context.Background(), request(t, nil))
	require.NoError(t, err)

	var items []plugin.CommandItem
	decode(t, result, &items)
	require.Len(t, items, model.CommandCount)
	assert.Equal(t, model.CmdToggleAutosave, items[0].Command)
	assert.True(t, items[0].Checked)
	assert.True(t, items[2].Checked, "3 minute preset is checked by default")
	assert.False(t, items[5].Checked)
}

func TestHandleRunCommand(t *testing.T) {
	f := newFixture(t)

	result, err := f.server.handleRunCommand(context.Background(), request(t, RunCommandParams{Command: "interval_10"}))
	require.NoError(t, err)

	var status StatusResponse
	decode(t, result, &status)
	assert.Equal(t, 10, status.State.IntervalMinutes)
	assert.True(t, status.State.Enabled)
	assert.True(t, status.Checks["interval_10"])
	assert.False(t, status.Checks["interval_3"])
}

func TestHandleRunCommandValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args interface{}
	}{
		{"missing", RunCommandParams{}},
		{"unknown", RunCommandParams{Command: "save_now"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.server.handleRunCommand(context.Background(), request(t, tt.args))
			assert.Nil(t, result)
			assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
		})
	}

	bad := &protocol.CallToolRequest{RawArguments: []byte("{not json")}
	_, err := f.server.handleRunCommand(context.Background(), bad)
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))
}

func TestHandleRunCommandToggleOff(t *testing.T) {
	f := newFixture(t)

	result, err := f.server.handleRunCommand(context.Background(), request(t, RunCommandParams{Command: "toggle_autosave"}))
	require.NoError(t, err)

	var status StatusResponse
	decode(t, result, &status)
	assert.False(t, status.State.Enabled)
	assert.True(t, status.State.NextDeadline.IsZero())
	assert.False(t, status.Checks["toggle_autosave"])
}

func TestHandleSetIntervalClamps(t *testing.T) {
	f := newFixture(t)

	result, err := f.server.handleSetInterval(context.Background(), request(t, SetIntervalParams{Minutes: -4}))
	require.NoError(t, err)

	var status StatusResponse
	decode(t, result, &status)
	assert.Equal(t, 1, status.State.IntervalMinutes)
	assert.True(t, status.Checks["interval_1"])

	result, err = f.server.handleSetInterval(context.Background(), request(t, SetIntervalParams{Minutes: 200_000_000}))
	require.NoError(t, err)

	status = StatusResponse{}
	decode(t, result, &status)
	assert.Equal(t, model.MaxIntervalMinutes, status.State.IntervalMinutes)
	assert.True(t, status.State.NextDeadline.After(f.timers.Clock.Now()))
}

func TestDebugWindowRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.server.handleRunCommand(ctx, request(t, RunCommandParams{Command: "toggle_debug"}))
	require.NoError(t, err)

	var status StatusResponse
	decode(t, result, &status)
	assert.True(t, status.State.DebugEnabled)
	require.Len(t, status.Windows, 1)
	assert.Equal(t, debugview.Title, status.Windows[0].Title)
	assert.Contains(t, status.Windows[0].Text, "Enabled: Yes")
	assert.Equal(t, status.DebugText, status.Windows[0].Text)

	result, err = f.server.handleCloseWindow(ctx, request(t, CloseWindowParams{Title: debugview.Title}))
	require.NoError(t, err)

	status = StatusResponse{}
	decode(t, result, &status)
	assert.False(t, status.State.DebugEnabled)
	assert.False(t, status.Checks["toggle_debug"])
	assert.Empty(t, status.Windows)
}

func TestHandleCloseWindowErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.server.handleCloseWindow(ctx, request(t, CloseWindowParams{}))
	assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err))

	_, err = f.server.handleCloseWindow(ctx, request(t, CloseWindowParams{Title: "nope"}))
	assert.Equal(t, errors.KindNotFound, errors.KindOf(err))
}

func TestHandleStatusReportsFire(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", config.SaveAllCommandID).Return(errors.Dispatch(config.SaveAllCommandID, errors.CodeQueueFull)).Once()

	require.NoError(t, f.loop.Do(context.Background(), func() {
		f.timers.Advance(3 * time.Minute)
	}))

	result, err := f.server.handleStatus(context.Background(), request(t, nil))
	require.NoError(t, err)

	var status StatusResponse
	decode(t, result, &status)
	assert.Equal(t, model.FireFailed, status.State.LastFire.Status)
	assert.Equal(t, errors.CodeQueueFull, status.State.LastFire.Code)
	assert.Equal(t, model.PluginName, status.Plugin)
	f.dispatcher.AssertExpectations(t)
}

func TestHandlersFailWhenLoopClosed(t *testing.T) {
	f := newFixture(t)
	f.loop.Close()

	_, err := f.server.handleStatus(context.Background(), request(t, nil))
	assert.Equal(t, errors.KindInternal, errors.KindOf(err))

	_, err = f.server.handleListCommands(context.Background(), request(t, nil))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
}
