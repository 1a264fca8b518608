// SPDX-License-Identifier: AGPL-3.0-only
package server

import (
	"sort"

	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/scheduler"
	"github.com/netwebdave/autodavesave/internal/window"
)

// Host is a headless plugin host. Checkmarks and window contents are kept
// in memory and reported through the MCP tools. Every method must be
// called on the event loop.
type Host struct {
	dispatcher scheduler.Dispatcher
	checks     map[model.Command]bool
	windows    map[string]*textWindow
	logger     *logging.Logger
}

// NewHost creates a host posting commands through dispatcher
func NewHost(dispatcher scheduler.Dispatcher, logger *logging.Logger) *Host {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Host{
		dispatcher: dispatcher,
		checks:     make(map[model.Command]bool),
		windows:    make(map[string]*textWindow),
		logger:     logger,
	}
}

// SetCommandChecked implements broadcast.CheckSetter
func (h *Host) SetCommandChecked(cmd model.Command, checked bool) {
	if prev, ok := h.checks[cmd]; !ok || prev != checked {
		h.logger.Debugf("Menu item %s checked=%t", cmd, checked)
	}
	h.checks[cmd] = checked
}

// PostCommand implements scheduler.Dispatcher
func (h *Host) PostCommand(commandID int) error {
	return h.dispatcher.PostCommand(commandID)
}

// OpenWindow implements window.Opener
func (h *Host) OpenWindow(title string, onClose func()) (window.Window, error) {
	if _, exists := h.windows[title]; exists {
		return nil, errors.InvalidInput("window already open: " + title)
	}
	w := &textWindow{host: h, title: title, onClose: onClose}
	h.windows[title] = w
	h.logger.Debugf("Opened window %q", title)
	return w, nil
}

// CloseWindow closes a window as if the user had closed it
func (h *Host) CloseWindow(title string) error {
	w, ok := h.windows[title]
	if !ok {
		return errors.NotFound("window", title)
	}
	delete(h.windows, title)
	if w.onClose != nil {
		w.onClose()
	}
	return nil
}

// Checks returns a copy of the pushed checkmarks keyed by command
func (h *Host) Checks() map[string]bool {
	out := make(map[string]bool, len(h.checks))
	for cmd, v := range h.checks {
		out[cmd.String()] = v
	}
	return out
}

// WindowView is an open window as reported to clients
type WindowView struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Raised int    `json:"raised"`
}

// Windows returns the open windows sorted by title
func (h *Host) Windows() []WindowView {
	out := make([]WindowView, 0, len(h.windows))
	for _, w := range h.windows {
		out = append(out, WindowView{Title: w.title, Text: w.text, Raised: w.raised})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

type textWindow struct {
	host    *Host
	title   string
	text    string
	raised  int
	onClose func()
}

func (w *textWindow) SetText(text string) { w.text = text }

func (w *textWindow) Raise() { w.raised++ }

// Close removes the window without calling onClose
func (w *textWindow) Close() {
	if cur, ok := w.host.windows[w.title]; ok && cur == w {
		delete(w.host.windows, w.title)
	}
}
