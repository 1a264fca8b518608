// SPDX-License-Identifier: AGPL-3.0-only
package scheduler

import (
	"github.com/jonboulle/clockwork"

	"github.com/netwebdave/autodavesave/internal/broadcast"
	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/logging"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/timer"
)

// Options wires the scheduler to its collaborators
type Options struct {
	State       *model.State
	Timers      timer.Factory
	Dispatcher  Dispatcher
	Broadcaster *broadcast.Broadcaster
	Clock       clockwork.Clock
	Logger      *logging.Logger
	// CommandID is the host command posted on every fire
	CommandID int
}

// autosaveScheduler owns the single recurring autosave task.
// Every method runs on the event loop.
type autosaveScheduler struct {
	state       *model.State
	timers      timer.Factory
	dispatcher  Dispatcher
	broadcaster *broadcast.Broadcaster
	clock       clockwork.Clock
	logger      *logging.Logger
	commandID   int

	// task is non-nil exactly when state.Enabled() is true
	task timer.Task
}

// NewScheduler creates a scheduler over opts.State. The state is left as
// is; call SetEnabled to arm it.
func NewScheduler(opts Options) Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.New()
	}
	if opts.CommandID == 0 {
		opts.CommandID = config.SaveAllCommandID
	}
	return &autosaveScheduler{
		state:       opts.State,
		timers:      opts.Timers,
		dispatcher:  opts.Dispatcher,
		broadcaster: opts.Broadcaster,
		clock:       opts.Clock,
		logger:      opts.Logger,
		commandID:   opts.CommandID,
	}
}

// SetEnabled arms or disarms autosave. Calling it with the current value
// leaves the running task alone.
func (s *autosaveScheduler) SetEnabled(on bool) {
	switch {
	case on && !s.state.Enabled():
		s.start()
		s.logger.Infof("Autosave enabled, every %d minute(s)", s.state.IntervalMinutes())
	case !on && s.state.Enabled():
		s.stop()
		s.logger.Infof("Autosave disabled")
	}
	s.broadcaster.Broadcast(s.state)
}

// SetIntervalMinutes stores the clamped interval and, while enabled,
// replaces the running task with one using the new period
func (s *autosaveScheduler) SetIntervalMinutes(m int) {
	stored := s.state.SetIntervalMinutes(m)
	if stored != m {
		s.logger.Debugf("Interval %d clamped to %d minute(s)", m, stored)
	}
	if s.state.Enabled() {
		s.start()
	}
	s.logger.Infof("Autosave interval set to %d minute(s)", stored)
	s.broadcaster.Broadcast(s.state)
}

// Close cancels the task without touching observers
func (s *autosaveScheduler) Close() {
	if s.state.Enabled() {
		s.stop()
	}
}

// start cancels any running task before creating the next one, so at most
// one task exists at any time
func (s *autosaveScheduler) start() {
	s.cancelTask()

	interval := s.state.Interval()
	var task timer.Task
	task = s.timers.Schedule(interval, func() { s.onFire(task) })
	s.task = task
	s.state.Arm(s.clock.Now().Add(interval))
}

func (s *autosaveScheduler) stop() {
	s.cancelTask()
	s.state.Disarm()
}

func (s *autosaveScheduler) cancelTask() {
	if s.task != nil {
		s.task.Cancel()
		s.task = nil
	}
}

// onFire runs when task expires. Fires from a replaced task, or arriving
// after a disable, are ignored.
func (s *autosaveScheduler) onFire(task timer.Task) {
	if task != s.task || !s.state.Enabled() {
		s.logger.Debugf("Ignoring stale autosave fire")
		return
	}

	var result model.FireResult
	if err := s.dispatcher.PostCommand(s.commandID); err != nil {
		code, ok := errors.DispatchCode(err)
		if !ok {
			code = -1
		}
		result = model.Failed(code)
		s.logger.Warnf("Autosave dispatch failed: %v", err)
	} else {
		result = model.Succeeded(s.clock.Now().Local())
		s.logger.Debugf("Autosave dispatched command %d", s.commandID)
	}

	// Fixed delay: the next deadline counts from this fire whatever the
	// dispatch outcome.
	s.state.RecordFire(result, s.clock.Now().Add(s.state.Interval()))
	s.broadcaster.Broadcast(s.state)
}
