// SPDX-License-Identifier: AGPL-3.0-only

// Package window describes the text windows the host opens for the plugin.
package window

// Window is a host-owned read-only text window
type Window interface {
	SetText(text string)
	// Raise brings an already open window to the front
	Raise()
	// Close destroys the window without calling its onClose callback
	Close()
}

// Opener creates windows. onClose runs on the event loop when the user
// closes the window; it may be nil.
type Opener interface {
	OpenWindow(title string, onClose func()) (Window, error)
}
