// SPDX-License-Identifier: AGPL-3.0-only
package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/netwebdave/autodavesave/internal/broadcast"
	"github.com/netwebdave/autodavesave/internal/config"
	"github.com/netwebdave/autodavesave/internal/errors"
	"github.com/netwebdave/autodavesave/internal/model"
	"github.com/netwebdave/autodavesave/internal/timer/timertest"
)

// MockDispatcher is a mock implementation of the host dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) PostCommand(commandID int) error {
	args := m.Called(commandID)
	return args.Error(0)
}

var loadTime = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type fixture struct {
	state      *model.State
	timers     *timertest.Factory
	dispatcher *MockDispatcher
	syncs      int
	sched      *autosaveScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:      model.NewState(),
		timers:     timertest.New(loadTime),
		dispatcher: new(MockDispatcher),
	}
	b := broadcast.New()
	b.Register(broadcast.ObserverFunc(func(model.Snapshot) { f.syncs++ }))
	f.sched = NewScheduler(Options{
		State:       f.state,
		Timers:      f.timers,
		Dispatcher:  f.dispatcher,
		Broadcaster: b,
		Clock:       f.timers.Clock,
	}).(*autosaveScheduler)
	return f
}

func (f *fixture) deadline(t *testing.T) time.Time {
	t.Helper()
	d, ok := f.state.NextDeadline()
	require.True(t, ok, "expected a deadline")
	return d
}

func (f *fixture) requireOneActiveTask(t *testing.T) *timertest.Task {
	t.Helper()
	active := f.timers.Active()
	require.Len(t, active, 1)
	return active[0]
}

func TestLoadArmsWithDefaultInterval(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(model.DefaultEnabled)

	assert.True(t, f.state.Enabled())
	assert.Equal(t, loadTime.Add(180000*time.Millisecond), f.deadline(t))
	task := f.requireOneActiveTask(t)
	assert.Equal(t, 3*time.Minute, task.Period)
	assert.Equal(t, 1, f.syncs)
}

func TestSetEnabledIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	f.timers.Advance(30 * time.Second)
	f.sched.SetEnabled(true)

	assert.Len(t, f.timers.All(), 1, "no task churn for a repeated enable")
	assert.Equal(t, loadTime.Add(3*time.Minute), f.deadline(t))

	f.sched.SetEnabled(false)
	f.sched.SetEnabled(false)
	assert.Empty(t, f.timers.Active())
	assert.Len(t, f.timers.All(), 1)
}

func TestDisableClearsDeadlineAndCancelsTask(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	task := f.requireOneActiveTask(t)

	f.sched.SetEnabled(false)
	assert.False(t, f.state.Enabled())
	_, ok := f.state.NextDeadline()
	assert.False(t, ok)
	assert.True(t, task.Canceled())
	assert.Nil(t, f.sched.task)
}

func TestNoDispatchWhileDisabled(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	task := f.requireOneActiveTask(t)
	f.sched.SetEnabled(false)

	f.timers.Advance(time.Hour)
	// A fire that was already queued before the disable was processed.
	f.sched.onFire(task)

	f.dispatcher.AssertNotCalled(t, "PostCommand", mock.Anything)
	assert.Equal(t, model.FireNone, f.state.LastFire().Status)
}

func TestSetIntervalWhileEnabledRestartsFromNow(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	old := f.requireOneActiveTask(t)

	f.timers.Advance(100 * time.Second)
	changeAt := f.timers.Clock.Now()
	f.sched.SetIntervalMinutes(10)

	assert.True(t, old.Canceled())
	task := f.requireOneActiveTask(t)
	assert.Equal(t, 10*time.Minute, task.Period)
	assert.Equal(t, changeAt.Add(600000*time.Millisecond), f.deadline(t))
	assert.Equal(t, 10, f.state.IntervalMinutes())
}

func TestSetIntervalWhileDisabledOnlyStores(t *testing.T) {
	f := newFixture(t)
	f.sched.SetIntervalMinutes(1)

	assert.Equal(t, 1, f.state.IntervalMinutes())
	assert.Empty(t, f.timers.All())
	assert.False(t, f.state.Enabled())
	assert.Equal(t, 1, f.syncs)
}

func TestSetIntervalClamps(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	f.sched.SetIntervalMinutes(0)

	assert.Equal(t, 1, f.state.IntervalMinutes())
	assert.Equal(t, time.Minute, f.requireOneActiveTask(t).Period)

	f.sched.SetIntervalMinutes(-7)
	assert.Equal(t, 1, f.state.IntervalMinutes())
	assert.Len(t, f.timers.Active(), 1)
}

func TestSetIntervalHugeValueKeepsFutureDeadline(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	f.sched.SetIntervalMinutes(200_000_000)

	assert.Equal(t, model.MaxIntervalMinutes, f.state.IntervalMinutes())
	task := f.requireOneActiveTask(t)
	assert.Positive(t, task.Period)
	assert.Equal(t, model.Interval(model.MaxIntervalMinutes), task.Period)
	assert.True(t, f.deadline(t).After(loadTime))

	f.timers.Advance(time.Hour)
	f.dispatcher.AssertNotCalled(t, "PostCommand", mock.Anything)
}

func TestFireSuccessRecordsTimestamp(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", config.SaveAllCommandID).Return(nil)
	f.sched.SetEnabled(true)

	f.timers.Advance(3 * time.Minute)
	fireAt := loadTime.Add(3 * time.Minute)

	f.dispatcher.AssertNumberOfCalls(t, "PostCommand", 1)
	last := f.state.LastFire()
	assert.Equal(t, model.FireSucceeded, last.Status)
	assert.WithinDuration(t, fireAt, last.At, 0)
	assert.Equal(t, fireAt.Add(3*time.Minute), f.deadline(t))
}

func TestFireFailureKeepsCadence(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", config.SaveAllCommandID).Return(errors.Dispatch(config.SaveAllCommandID, 5))
	f.sched.SetEnabled(true)

	f.timers.Advance(3 * time.Minute)
	fireAt := loadTime.Add(3 * time.Minute)

	assert.Equal(t, model.Failed(5), f.state.LastFire())
	assert.True(t, f.state.Enabled(), "a failed dispatch never disables autosave")
	assert.Equal(t, fireAt.Add(180000*time.Millisecond), f.deadline(t))
	f.requireOneActiveTask(t)

	// No retry before the next regular tick.
	f.timers.Advance(3*time.Minute - time.Second)
	f.dispatcher.AssertNumberOfCalls(t, "PostCommand", 1)
	f.timers.Advance(time.Second)
	f.dispatcher.AssertNumberOfCalls(t, "PostCommand", 2)
}

func TestFireFailureWithoutCode(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", mock.Anything).Return(assert.AnError)
	f.sched.SetEnabled(true)
	f.timers.Advance(3 * time.Minute)

	assert.Equal(t, model.Failed(-1), f.state.LastFire())
}

func TestFireBroadcasts(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", mock.Anything).Return(nil)
	f.sched.SetEnabled(true)
	before := f.syncs

	f.timers.Advance(3 * time.Minute)
	assert.Equal(t, before+1, f.syncs)
}

func TestToggleRestoresIntervalWithFreshDeadline(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	f.timers.Advance(time.Minute)
	f.sched.SetEnabled(false)
	f.timers.Advance(45 * time.Second)
	reenableAt := f.timers.Clock.Now()
	f.sched.SetEnabled(true)

	assert.Equal(t, 3, f.state.IntervalMinutes())
	assert.Equal(t, reenableAt.Add(180000*time.Millisecond), f.deadline(t))
	assert.Len(t, f.timers.Active(), 1)
}

func TestStaleTaskFireIgnoredAfterRestart(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	old := f.requireOneActiveTask(t)
	f.sched.SetIntervalMinutes(10)

	f.sched.onFire(old)
	f.dispatcher.AssertNotCalled(t, "PostCommand", mock.Anything)
}

func TestOneTaskInvariantAcrossOperations(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.On("PostCommand", mock.Anything).Return(nil)

	steps := []func(){
		func() { f.sched.SetEnabled(true) },
		func() { f.sched.SetIntervalMinutes(1) },
		func() { f.timers.Advance(90 * time.Second) },
		func() { f.sched.SetIntervalMinutes(10) },
		func() { f.sched.SetEnabled(false) },
		func() { f.sched.SetIntervalMinutes(3) },
		func() { f.sched.SetEnabled(true) },
		func() { f.sched.SetEnabled(true) },
	}
	for i, step := range steps {
		step()
		want := 0
		if f.state.Enabled() {
			want = 1
		}
		assert.Len(t, f.timers.Active(), want, "step %d", i)
		_, ok := f.state.NextDeadline()
		assert.Equal(t, f.state.Enabled(), ok, "step %d", i)
	}
}

func TestCloseCancelsTask(t *testing.T) {
	f := newFixture(t)
	f.sched.SetEnabled(true)
	syncs := f.syncs
	f.sched.Close()

	assert.Empty(t, f.timers.Active())
	assert.False(t, f.state.Enabled())
	assert.Equal(t, syncs, f.syncs)
	f.sched.Close()
}
