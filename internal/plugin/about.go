// SPDX-License-Identifier: AGPL-3.0-only
package plugin

import (
	"strings"

	"github.com/netwebdave/autodavesave/internal/model"
)

// AboutTitle is the caption of the informational panel
const AboutTitle = "About " + model.PluginName

// RepositoryURL is the project home shown in the About panel
const RepositoryURL = "https://github.com/netwebdave/AutoDaveSave"

// AboutText returns the static About panel text
func AboutText() string {
	lines := []string{
		model.PluginName,
		"",
		"License",
		"- Apache License 2.0 (see LICENSE)",
		"",
		"Repository",
		"- " + RepositoryURL,
		"",
		"How to use",
		"1) Plugins > " + model.PluginName + " > " + model.CmdToggleAutosave.Title(),
		"2) Select interval: 1, 3, or 10 minutes",
		"3) Optional: " + model.CmdDebugView.Title(),
		"",
		"Notes",
		"- Untitled tabs can trigger Save As prompts when Save All runs",
	}
	return strings.Join(lines, "\n") + "\n"
}

// showAbout opens the About panel, or raises it if it is already open
func (p *Plugin) showAbout() {
	if p.about != nil {
		p.about.Raise()
		return
	}
	win, err := p.host.OpenWindow(AboutTitle, func() { p.about = nil })
	if err != nil {
		p.logger.Warnf("Failed to open about window: %v", err)
		return
	}
	win.SetText(AboutText())
	p.about = win
}
