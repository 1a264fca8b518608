// SPDX-License-Identifier: AGPL-3.0-only
package model

import "fmt"

// PluginName is the name the host shows for the plugin menu
const PluginName = "AutoDaveSave"

// Command is one of the fixed menu commands the plugin registers
type Command int

// Menu commands, in registration order
const (
	CmdToggleAutosave Command = iota
	CmdInterval1
	CmdInterval3
	CmdInterval10
	CmdDebugView
	CmdAbout

	CommandCount = int(CmdAbout) + 1
)

var commandKeys = [CommandCount]string{
	"toggle_autosave",
	"interval_1",
	"interval_3",
	"interval_10",
	"toggle_debug",
	"about",
}

var commandTitles = [CommandCount]string{
	"Start or Stop Autosave",
	"Set Autosave to 1 Minute",
	"Set Autosave to 3 Minutes",
	"Set Autosave to 10 Minutes",
	"Show Timer Selection (Debug)",
	"About " + PluginName,
}

// Commands returns every command in registration order
func Commands() []Command {
	out := make([]Command, CommandCount)
	for i := range out {
		out[i] = Command(i)
	}
	return out
}

// Valid reports whether c is a known command
func (c Command) Valid() bool {
	return c >= 0 && int(c) < CommandCount
}

// String returns the stable key of the command
func (c Command) String() string {
	if !c.Valid() {
		return fmt.Sprintf("command(%d)", int(c))
	}
	return commandKeys[c]
}

// Title returns the menu label of the command
func (c Command) Title() string {
	if !c.Valid() {
		return c.String()
	}
	return commandTitles[c]
}

// PresetMinutes returns the interval selected by a preset command
func (c Command) PresetMinutes() (int, bool) {
	switch c {
	case CmdInterval1:
		return 1, true
	case CmdInterval3:
		return 3, true
	case CmdInterval10:
		return 10, true
	}
	return 0, false
}

// Checkable reports whether the command carries a checkmark
func (c Command) Checkable() bool {
	return c.Valid() && c != CmdAbout
}

// ParseCommand resolves a command key
func ParseCommand(key string) (Command, bool) {
	for i, k := range commandKeys {
		if k == key {
			return Command(i), true
		}
	}
	return 0, false
}
