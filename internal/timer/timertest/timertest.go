// SPDX-License-Identifier: AGPL-3.0-only

// Package timertest provides a timer.Factory driven by a fake clock.
package timertest

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/netwebdave/autodavesave/internal/timer"
)

// Factory records scheduled tasks and fires them when Advance moves the
// fake clock past their due time.
type Factory struct {
	Clock *clockwork.FakeClock

	mu    sync.Mutex
	tasks []*Task
}

// New returns a factory over a fake clock starting at start
func New(start time.Time) *Factory {
	return &Factory{Clock: clockwork.NewFakeClockAt(start)}
}

// Task is a manually driven task
type Task struct {
	Period time.Duration

	fire     func()
	due      time.Time
	canceled bool
	fires    int
}

// Schedule implements timer.Factory
func (f *Factory) Schedule(period time.Duration, fire func()) timer.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &Task{Period: period, fire: fire, due: f.Clock.Now().Add(period)}
	f.tasks = append(f.tasks, t)
	return t
}

// Cancel implements timer.Task
func (t *Task) Cancel() { t.canceled = true }

// Canceled reports whether Cancel was called
func (t *Task) Canceled() bool { return t.canceled }

// Due returns the next time the task fires
func (t *Task) Due() time.Time { return t.due }

// Fires returns how many times the task fired
func (t *Task) Fires() int { return t.fires }

// Fire runs the callback now, as if the timer had expired
func (t *Task) Fire() {
	if t.canceled {
		return
	}
	t.fires++
	t.fire()
}

// All returns every task ever scheduled, in order
func (f *Factory) All() []*Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Task(nil), f.tasks...)
}

// Active returns tasks that have not been canceled
func (f *Factory) Active() []*Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Task
	for _, t := range f.tasks {
		if !t.canceled {
			out = append(out, t)
		}
	}
	return out
}

// Advance moves the clock forward by d, firing due tasks in time order.
// The clock reads each task's due time while its callback runs; the next
// due time is measured from that fire.
func (f *Factory) Advance(d time.Duration) {
	target := f.Clock.Now().Add(d)
	for {
		t := f.nextDue(target)
		if t == nil {
			break
		}
		if now := f.Clock.Now(); t.due.After(now) {
			f.Clock.Advance(t.due.Sub(now))
		}
		t.due = f.Clock.Now().Add(t.Period)
		t.Fire()
	}
	if now := f.Clock.Now(); target.After(now) {
		f.Clock.Advance(target.Sub(now))
	}
}

func (f *Factory) nextDue(limit time.Time) *Task {
	active := f.Active()
	sort.SliceStable(active, func(i, j int) bool { return active[i].due.Before(active[j].due) })
	for _, t := range active {
		if !t.due.After(limit) {
			return t
		}
	}
	return nil
}
