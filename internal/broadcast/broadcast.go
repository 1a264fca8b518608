// SPDX-License-Identifier: AGPL-3.0-only

// Package broadcast pushes the plugin state to its observers.
//
// Contract:
//   - Broadcast delivers synchronously; every observer has seen the new
//     state when it returns.
//   - Observers receive a Snapshot copy and cannot mutate the state.
//   - All calls happen on the event loop, so nothing here locks.
package broadcast

import "github.com/netwebdave/autodavesave/internal/model"

// Observer is notified with a copy of the state after every change
type Observer interface {
	Sync(snap model.Snapshot)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(snap model.Snapshot)

// Sync implements Observer
func (f ObserverFunc) Sync(snap model.Snapshot) { f(snap) }

// Broadcaster fans state out to registered observers in registration order
type Broadcaster struct {
	observers []registration
	seq       uint64
}

type registration struct {
	id uint64
	o  Observer
}

// New returns an empty broadcaster
func New() *Broadcaster {
	return &Broadcaster{}
}

// Register adds o and returns a function removing it again
func (b *Broadcaster) Register(o Observer) (unregister func()) {
	b.seq++
	id := b.seq
	b.observers = append(b.observers, registration{id: id, o: o})
	return func() {
		for i, r := range b.observers {
			if r.id == id {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered observers
func (b *Broadcaster) Len() int { return len(b.observers) }

// Broadcast pushes the current state to every observer
func (b *Broadcaster) Broadcast(state *model.State) {
	snap := state.Snapshot()
	// Observers may unregister while being notified.
	obs := append([]registration(nil), b.observers...)
	for _, r := range obs {
		r.o.Sync(snap)
	}
}

// Close drops every observer
func (b *Broadcaster) Close() {
	b.observers = nil
}

// CheckSetter is the host side of a command checkmark
type CheckSetter interface {
	SetCommandChecked(cmd model.Command, checked bool)
}

// Checkmarks returns an observer that pushes the checked state of every
// checkable command to setter
func Checkmarks(setter CheckSetter) Observer {
	return ObserverFunc(func(snap model.Snapshot) {
		for _, cmd := range model.Commands() {
			if !cmd.Checkable() {
				continue
			}
			setter.SetCommandChecked(cmd, snap.Checked(cmd))
		}
	})
}
