// SPDX-License-Identifier: AGPL-3.0-only

// Package loop runs posted events one at a time on a single goroutine.
// Everything that touches plugin state is delivered through a Loop, so the
// state itself needs no locking.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/netwebdave/autodavesave/internal/logging"
)

// ErrClosed is returned when the loop no longer accepts events
var ErrClosed = errors.New("event loop closed")

// Loop is a cooperative single-threaded event loop
type Loop struct {
	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
	logger    *logging.Logger
}

// New creates a loop whose queue holds buffer pending events
func New(buffer int, logger *logging.Logger) *Loop {
	if buffer < 1 {
		buffer = 64
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loop{
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes events until ctx is done or Close is called.
// Events still queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.events:
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Errorf("event panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

// Post enqueues fn. It blocks while the queue is full and returns false
// once the loop has stopped. Post must not be called from inside an event
// while the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
// Calling Do from inside an event deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	var panicked interface{}
	ok := l.Post(func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				panicked = r
				l.logger.Errorf("event panicked: %v", r)
			}
		}()
		fn()
	})
	if !ok {
		return ErrClosed
	}
	select {
	case <-finished:
		if panicked != nil {
			return fmt.Errorf("event panicked: %v", panicked)
		}
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop. It is safe to call more than once.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Done is closed when the loop stops
func (l *Loop) Done() <-chan struct{} { return l.done }
