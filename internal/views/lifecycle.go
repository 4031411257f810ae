// Package views holds the headless view models that front ends render.
// Every view owns only local state, talks to the backend through the API
// client and discards results that arrive after it was closed.
package views

import (
	"context"
	"sync"
	"sync/atomic"
)

// Lifecycle tracks whether a view is open and cancels its in-flight
// requests when it closes.
type Lifecycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewLifecycle returns an open Lifecycle.
func NewLifecycle() *Lifecycle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lifecycle{ctx: ctx, cancel: cancel}
}

// Context derives a request context from parent that is also cancelled
// when the view closes.
func (l *Lifecycle) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(l.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Closed reports whether Close was called.
func (l *Lifecycle) Closed() bool {
	return l.closed.Load()
}

// Close marks the view closed and cancels its requests. It returns false
// if the view was already closed.
func (l *Lifecycle) Close() bool {
	if !l.closed.CompareAndSwap(false, true) {
		return false
	}
	l.cancel()
	return true
}

// Observers is a list of change callbacks.
type Observers struct {
	mu     sync.Mutex
	nextID int
	fns    map[int]func()
	order  []int
}

// Add registers fn and returns a function that removes it.
func (o *Observers) Add(fn func()) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fns == nil {
		o.fns = make(map[int]func())
	}
	o.nextID++
	id := o.nextID
	o.fns[id] = fn
	o.order = append(o.order, id)

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.fns, id)
	}
}

// Notify calls every registered callback in registration order.
func (o *Observers) Notify() {
	o.mu.Lock()
	fns := make([]func(), 0, len(o.fns))
	live := o.order[:0]
	for _, id := range o.order {
		if fn, ok := o.fns[id]; ok {
			fns = append(fns, fn)
			live = append(live, id)
		}
	}
	o.order = live
	o.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
