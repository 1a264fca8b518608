// SPDX-License-Identifier: AGPL-3.0-only
package scheduler

// Scheduler is the interface for the autosave scheduler
type Scheduler interface {
	SetEnabled(on bool)
	SetIntervalMinutes(m int)
	Close()
}

// Dispatcher posts a command to the host without waiting for it to run.
// A non-nil error carries the platform error code of a refused post.
type Dispatcher interface {
	PostCommand(commandID int) error
}
