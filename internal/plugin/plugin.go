// SPDX-License-Identifier: AGPL-3.0-only

// Package plugin is the entry point the host talks to. It owns the single
// State instance and routes every menu command through Handle.
//
// Typical host usage, all on the host's event loop:
//
//	p := plugin.Load(host, plugin.Options{Timers: timers})
//	items := p.Commands()   // build the menu
//	p.OnHostReady()         // once the menu exists
//	p.Handle(model.CmdInterval10)
//	p.Unload()
package plugin

import (
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/netwebdave/autodavesave/internal/broadcast"
	"github.com/netwebdave/autodavesave/internal/debugview"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/scheduler"
	"github.com/netwebdave/autodavesave/internal/timer"
	"github.com/netwebdave/autodavesave/internal/window"
)

// Host is what the plugin needs from the application loading it
type Host interface {
	broadcast.CheckSetter
	scheduler.Dispatcher
	window.Opener
}

// CommandItem is one menu entry with its initial checkmark
type CommandItem struct {
	Command model.Command `json:"command"`
	Name    string        `json:"name"`
	Checked bool          `json:"checked"`
}

// Options configures Load
type Options struct {
	Timers timer.Factory
	Clock  clockwork.Clock
	Logger *logging.Logger
	// CommandID overrides the save-all command posted on each fire
	CommandID int
}

// Plugin is the loaded plugin context
type Plugin struct {
	host        Host
	state       *model.State
	broadcaster *broadcast.Broadcaster
	scheduler   scheduler.Scheduler
	debug       *debugview.View
	about       window.Window
	items       [model.CommandCount]CommandItem
	logger      *logging.Logger
	ready       bool
	unloaded    bool
}

// Load creates the plugin with the fixed defaults and starts autosave
func Load(host Host, opts Options) *Plugin {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	logger := opts.Logger.With("plugin", model.PluginName)

	p := &Plugin{
		host:        host,
		state:       model.NewState(),
		broadcaster: broadcast.New(),
		logger:      logger,
	}
	for _, cmd := range model.Commands() {
		p.items[cmd] = CommandItem{Command: cmd, Name: cmd.Title()}
	}

	p.debug = debugview.New(debugview.Options{
		State:       p.state,
		Timers:      opts.Timers,
		Windows:     host,
		Broadcaster: p.broadcaster,
		Clock:       opts.Clock,
		Logger:      logger.With("component", "debugview"),
	})
	p.scheduler = scheduler.NewScheduler(scheduler.Options{
		State:       p.state,
		Timers:      opts.Timers,
		Dispatcher:  host,
		Broadcaster: p.broadcaster,
		Clock:       opts.Clock,
		Logger:      logger.With("component", "scheduler"),
		CommandID:   opts.CommandID,
	})

	// Initial checks first so the menu items are right even before the
	// host is ready to accept runtime checkmarks.
	p.broadcaster.Register(broadcast.ObserverFunc(p.updateInitChecks))
	p.broadcaster.Register(broadcast.ObserverFunc(func(snap model.Snapshot) {
		if p.ready {
			broadcast.Checkmarks(p.host).Sync(snap)
		}
	}))
	p.broadcaster.Register(p.debug)

	p.state.SetIntervalMinutes(model.DefaultIntervalMinutes)
	p.state.SetDebugEnabled(model.DefaultDebugEnabled)
	p.scheduler.SetEnabled(model.DefaultEnabled)

	logger.Infof("Plugin loaded")
	return p
}

// Name returns the plugin name shown by the host
func (p *Plugin) Name() string { return model.PluginName }

// Commands returns the menu entries with their current checkmarks
func (p *Plugin) Commands() []CommandItem {
	return append([]CommandItem(nil), p.items[:]...)
}

// Snapshot returns a copy of the current state
func (p *Plugin) Snapshot() model.Snapshot { return p.state.Snapshot() }

// DebugText renders the telemetry text for the current instant
func (p *Plugin) DebugText() string { return p.debug.Text() }

// DebugVisible reports whether the debug window is open
func (p *Plugin) DebugVisible() bool { return p.debug.Visible() }

// OnHostReady is called once the host has built its menu. Command ids are
// final from here on, so every checkmark is pushed again.
func (p *Plugin) OnHostReady() {
	if p.unloaded {
		return
	}
	p.ready = true
	p.logger.Debugf("Host ready, pushing checkmarks")
	p.broadcaster.Broadcast(p.state)
}

// Handle runs a menu command
func (p *Plugin) Handle(cmd model.Command) error {
	if p.unloaded {
		return errors.Internal(fmt.Errorf("plugin unloaded"))
	}
	if !cmd.Valid() {
		return errors.InvalidInput(fmt.Sprintf("unknown command %d", int(cmd)))
	}
	p.logger.Debugf("Handling command %s", cmd)

	switch cmd {
	case model.CmdToggleAutosave:
		p.scheduler.SetEnabled(!p.state.Enabled())
		p.reshowDebug()
	case model.CmdInterval1, model.CmdInterval3, model.CmdInterval10:
		m, _ := cmd.PresetMinutes()
		p.SetIntervalMinutes(m)
	case model.CmdDebugView:
		p.toggleDebug()
	case model.CmdAbout:
		p.showAbout()
	}
	return nil
}

// SetIntervalMinutes sets an arbitrary interval; values below one minute
// are clamped
func (p *Plugin) SetIntervalMinutes(m int) {
	if p.unloaded {
		return
	}
	p.scheduler.SetIntervalMinutes(m)
	p.reshowDebug()
}

// Unload cancels the autosave task and closes every window. Later calls
// do nothing.
func (p *Plugin) Unload() {
	if p.unloaded {
		return
	}
	p.unloaded = true
	p.scheduler.Close()
	p.debug.Hide()
	if p.about != nil {
		p.about.Close()
		p.about = nil
	}
	p.broadcaster.Close()
	p.logger.Infof("Plugin unloaded")
}

func (p *Plugin) toggleDebug() {
	on := !p.state.DebugEnabled()
	p.state.SetDebugEnabled(on)
	if on {
		p.debug.Show()
	} else {
		p.debug.Hide()
	}
	p.logger.Infof("Debug view toggled: %t", on)
	p.broadcaster.Broadcast(p.state)
}

// reshowDebug brings the debug view back after an autosave change. This
// also retries a window the host failed to create earlier.
func (p *Plugin) reshowDebug() {
	if p.state.DebugEnabled() {
		p.debug.Show()
	}
}

func (p *Plugin) updateInitChecks(snap model.Snapshot) {
	for i := range p.items {
		p.items[i].Checked = snap.Checked(p.items[i].Command)
	}
}
