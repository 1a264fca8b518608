// SPDX-License-Identifier: AGPL-3.0-only

// Package timer provides cancellable recurring tasks whose callbacks are
// delivered onto the caller's event loop.
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/netwebdave/autodavesave/internal/logging"
)

// Task is a scheduled recurring callback
type Task interface {
	// Cancel stops future fires. A fire already queued on the loop
	// when Cancel runs is dropped.
	Cancel()
}

// Factory schedules recurring tasks
type Factory interface {
	// Schedule calls fire every period, measured from the previous fire
	Schedule(period time.Duration, fire func()) Task
}

// Poster hands a callback to the event loop. It returns false once the
// loop no longer accepts events.
type Poster func(fn func()) bool

// CronFactory schedules tasks as fixed-delay cron entries.
// Periods below one second are rounded up to one second.
type CronFactory struct {
	cron   *cron.Cron
	post   Poster
	logger *logging.Logger
}

// NewCron returns a cron runner logging through logger and recovering
// from panicking jobs
func NewCron(logger *logging.Logger) *cron.Cron {
	cl := CronLogger(logger)
	return cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
}

// NewCronFactory creates a factory adding entries to c. Fires are
// delivered through post.
func NewCronFactory(c *cron.Cron, post Poster, logger *logging.Logger) *CronFactory {
	if logger == nil {
		logger = logging.Nop()
	}
	return &CronFactory{cron: c, post: post, logger: logger}
}

// Schedule implements Factory
func (f *CronFactory) Schedule(period time.Duration, fire func()) Task {
	t := &cronTask{cron: f.cron}
	job := func() {
		if t.canceled.Load() {
			return
		}
		ok := f.post(func() {
			// Re-check on the loop: Cancel may have run between the
			// cron tick and this event being processed.
			if t.canceled.Load() {
				return
			}
			fire()
		})
		if !ok {
			f.logger.Debugf("event loop closed, dropping timer fire")
		}
	}
	t.id = f.cron.Schedule(FixedDelay(period), cron.FuncJob(job))
	return t
}

// fixedDelay activates exactly period after the previous activation,
// keeping sub-second offsets
type fixedDelay struct {
	period time.Duration
}

// FixedDelay returns a cron.Schedule activating every period without
// rounding. Periods below one second become one second.
func FixedDelay(period time.Duration) cron.Schedule {
	if period < time.Second {
		period = time.Second
	}
	return fixedDelay{period: period}
}

func (s fixedDelay) Next(t time.Time) time.Time {
	return t.Add(s.period)
}

type cronTask struct {
	cron     *cron.Cron
	id       cron.EntryID
	canceled atomic.Bool
	once     sync.Once
}

func (t *cronTask) Cancel() {
	t.once.Do(func() {
		t.canceled.Store(true)
		t.cron.Remove(t.id)
	})
}

type cronLogger struct {
	l *logging.Logger
}

// CronLogger adapts logger to the cron.Logger interface. Cron's routine
// messages are written at debug level.
func CronLogger(logger *logging.Logger) cron.Logger {
	if logger == nil {
		logger = logging.Nop()
	}
	return cronLogger{l: logger}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugf("cron: %s %v", msg, keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
