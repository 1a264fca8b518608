// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"math"
	"time"
)

// Defaults applied every time the plugin is loaded
const (
	DefaultEnabled         = true
	DefaultIntervalMinutes = 3
	DefaultDebugEnabled    = false
)

// FireStatus is the outcome of the most recent autosave dispatch
type FireStatus string

const (
	// FireNone means no dispatch has been attempted yet
	FireNone FireStatus = "none"
	// FireSucceeded means the host accepted the save-all post
	FireSucceeded FireStatus = "succeeded"
	// FireFailed means the host refused the post with an error code
	FireFailed FireStatus = "failed"
)

// String returns the string representation of the status
func (s FireStatus) String() string {
	return string(s)
}

// FireResult is the telemetry kept for the last dispatch attempt
type FireResult struct {
	Status FireStatus `json:"status"`
	At     time.Time  `json:"at,omitempty"`
	Code   int        `json:"code,omitempty"`
}

// Succeeded returns a result recording a successful post at t
func Succeeded(t time.Time) FireResult {
	return FireResult{Status: FireSucceeded, At: t}
}

// Failed returns a result recording a refused post
func Failed(code int) FireResult {
	return FireResult{Status: FireFailed, Code: code}
}

// MaxIntervalMinutes is the longest interval whose period still fits in
// a time.Duration
const MaxIntervalMinutes = int(math.MaxInt64 / int64(time.Minute))

// ClampMinutes returns m limited to [1, MaxIntervalMinutes]
func ClampMinutes(m int) int {
	if m <= 0 {
		return 1
	}
	if m > MaxIntervalMinutes {
		return MaxIntervalMinutes
	}
	return m
}

// Interval converts whole minutes to the firing period
func Interval(minutes int) time.Duration {
	return time.Duration(ClampMinutes(minutes)) * time.Minute
}

// IntervalMs converts whole minutes to milliseconds
func IntervalMs(minutes int) int64 {
	return int64(ClampMinutes(minutes)) * 60000
}

// State is the single source of truth for the plugin.
// The zero value is not ready for use; call NewState.
//
// Enabled and the next deadline change together: Arm sets both,
// Disarm clears both.
type State struct {
	enabled         bool
	intervalMinutes int
	debugEnabled    bool
	nextDeadline    time.Time
	lastFire        FireResult
}

// NewState returns a state holding the load-time defaults.
// The state starts disarmed; the scheduler arms it.
func NewState() *State {
	return &State{
		intervalMinutes: DefaultIntervalMinutes,
		debugEnabled:    DefaultDebugEnabled,
		lastFire:        FireResult{Status: FireNone},
	}
}

func (s *State) Enabled() bool           { return s.enabled }
func (s *State) IntervalMinutes() int    { return s.intervalMinutes }
func (s *State) DebugEnabled() bool      { return s.debugEnabled }
func (s *State) LastFire() FireResult    { return s.lastFire }
func (s *State) Interval() time.Duration { return Interval(s.intervalMinutes) }

// NextDeadline returns the next fire time; ok is false while disabled
func (s *State) NextDeadline() (deadline time.Time, ok bool) {
	return s.nextDeadline, s.enabled
}

// SetIntervalMinutes stores m clamped to at least one minute and returns
// the stored value
func (s *State) SetIntervalMinutes(m int) int {
	s.intervalMinutes = ClampMinutes(m)
	return s.intervalMinutes
}

// SetDebugEnabled records whether the telemetry view is wanted
func (s *State) SetDebugEnabled(on bool) {
	s.debugEnabled = on
}

// Arm marks autosave enabled with the given deadline
func (s *State) Arm(deadline time.Time) {
	s.enabled = true
	s.nextDeadline = deadline
}

// Disarm marks autosave disabled and drops the deadline
func (s *State) Disarm() {
	s.enabled = false
	s.nextDeadline = time.Time{}
}

// RecordFire stores the outcome of a dispatch and the following deadline
func (s *State) RecordFire(result FireResult, next time.Time) {
	s.lastFire = result
	if s.enabled {
		s.nextDeadline = next
	}
}

// Snapshot returns a read-only copy for observers
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Enabled:         s.enabled,
		IntervalMinutes: s.intervalMinutes,
		DebugEnabled:    s.debugEnabled,
		NextDeadline:    s.nextDeadline,
		LastFire:        s.lastFire,
	}
}

// Snapshot is a copy of State handed to observers.
// NextDeadline is zero when Enabled is false.
type Snapshot struct {
	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	DebugEnabled    bool       `json:"debug_enabled"`
	NextDeadline    time.Time  `json:"next_deadline,omitempty"`
	LastFire        FireResult `json:"last_fire"`
}

// Checked reports whether cmd's checkmark should be shown for this snapshot
func (s Snapshot) Checked(cmd Command) bool {
	switch cmd {
	case CmdToggleAutosave:
		return s.Enabled
	case CmdDebugView:
		return s.DebugEnabled
	}
	if m, ok := cmd.PresetMinutes(); ok {
		return s.IntervalMinutes == m
	}
	return false
}
