// SPDX-License-Identifier: AGPL-3.0-only

// Package debugview shows live autosave telemetry in a host window.
//
// The view is Hidden or Visible. While Visible it owns a refresh task that
// re-renders once per second, independent of the autosave task.
package debugview

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/netwebdave/autodavesave/internal/broadcast"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/timer"
	"github.com/netwebdave/autodavesave/internal/window"
)

// Title is the caption of the debug window
const Title = model.PluginName + " Debug"

// RefreshInterval is the fixed refresh period of a visible view
const RefreshInterval = time.Second

const refreshLabel = "1 second"

// Options wires a View
type Options struct {
	State       *model.State
	Timers      timer.Factory
	Windows     window.Opener
	Broadcaster *broadcast.Broadcaster
	Clock       clockwork.Clock
	Logger      *logging.Logger
}

// View is the debug telemetry window. It reads the state and only writes
// it when the user closes the window.
type View struct {
	state       *model.State
	timers      timer.Factory
	windows     window.Opener
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock
	logger      *logging.Logger

	win  window.Window
	task timer.Task
}

// New creates a hidden view
func New(opts Options) *View {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.New()
	}
	return &View{
		state:       opts.State,
		timers:      opts.Timers,
		windows:     opts.Windows,
		broadcaster: opts.Broadcaster,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}
}

// Visible reports whether the window is open
func (v *View) Visible() bool { return v.win != nil }

// Show opens the window, starts the refresh task and renders once.
// If the view is already visible it is raised and re-rendered. When the
// host cannot create the window the view stays hidden.
func (v *View) Show() {
	if v.win != nil {
		v.win.Raise()
		v.render()
		return
	}

	win, err := v.windows.OpenWindow(Title, v.userClosed)
	if err != nil {
		v.logger.Warnf("Failed to open debug window: %v", err)
		return
	}
	v.win = win

	var task timer.Task
	task = v.timers.Schedule(RefreshInterval, func() { v.onRefresh(task) })
	v.task = task
	v.render()
	v.logger.Debugf("Debug view shown")
}

// Hide cancels the refresh task and destroys the window
func (v *View) Hide() {
	if v.win == nil {
		return
	}
	v.teardown()
	v.win.Close()
	v.win = nil
	v.logger.Debugf("Debug view hidden")
}

// Sync implements broadcast.Observer. A visible view re-renders right away
// so state changes show without waiting for the next refresh.
func (v *View) Sync(model.Snapshot) {
	if v.win != nil {
		v.render()
	}
}

// Text returns the text the view would show now
func (v *View) Text() string {
	return Render(v.state.Snapshot(), v.clock.Now())
}

// userClosed handles the user closing the window directly: debug is no
// longer wanted, so the flag is cleared and observers are told.
func (v *View) userClosed() {
	if v.win == nil {
		return
	}
	v.teardown()
	v.win = nil
	v.state.SetDebugEnabled(false)
	v.logger.Infof("Debug window closed by user")
	v.broadcaster.Broadcast(v.state)
}

func (v *View) teardown() {
	if v.task != nil {
		v.task.Cancel()
		v.task = nil
	}
}

func (v *View) onRefresh(task timer.Task) {
	if task != v.task || v.win == nil {
		return
	}
	v.render()
}

func (v *View) render() {
	v.win.SetText(v.Text())
}
