// Package debounce coalesces rapid triggers per key into a single callback
// fired after a quiet window.
package debounce

import (
	"sync"
	"time"
)

// pending is a scheduled callback for one key.
type pending[T any] struct {
	value T
	seq   uint64
	timer *time.Timer
}

// Debouncer fires fn once per key after the key has been quiet for the
// window, with the most recent value. It is safe for concurrent use.
type Debouncer[T any] struct {
	window   time.Duration
	callback func(key string, value T)
	merge    func(old, new T) T

	mu      sync.Mutex
	pending map[string]*pending[T]
	seq     uint64
	stopped bool
}

// New creates a debouncer with the given window and callback. A later
// trigger replaces the pending value.
func New[T any](window time.Duration, callback func(key string, value T)) *Debouncer[T] {
	return NewWithMerge(window, nil, callback)
}

// NewWithMerge creates a debouncer that combines a pending value with a new
// one using merge instead of replacing it.
func NewWithMerge[T any](window time.Duration, merge func(old, new T) T, callback func(key string, value T)) *Debouncer[T] {
	return &Debouncer[T]{
		window:   window,
		callback: callback,
		merge:    merge,
		pending:  make(map[string]*pending[T]),
	}
}

// Trigger (re)starts the window for key with value.
func (d *Debouncer[T]) Trigger(key string, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	seq := d.seq

	if existing, ok := d.pending[key]; ok {
		existing.timer.Stop()
		if d.merge != nil {
			value = d.merge(existing.value, value)
		}
	}

	d.pending[key] = &pending[T]{
		value: value,
		seq:   seq,
		timer: time.AfterFunc(d.window, func() {
			d.fire(key, seq)
		}),
	}
}

// Cancel drops the pending callback for key, if any.
func (d *Debouncer[T]) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Flush fires the pending callback for key immediately. It reports whether
// anything was pending.
func (d *Debouncer[T]) Flush(key string) bool {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || d.stopped {
		d.mu.Unlock()
		return false
	}
	p.timer.Stop()
	d.mu.Unlock()

	return d.fire(key, p.seq)
}

// Pending reports whether a callback is scheduled for key.
func (d *Debouncer[T]) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels all pending callbacks. No callback starts after Stop
// returns.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = make(map[string]*pending[T])
}

// fire runs the callback for key if seq is still the latest trigger. A
// timer that was stopped too late to prevent its run is ignored here.
func (d *Debouncer[T]) fire(key string, seq uint64) bool {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.seq != seq || d.stopped {
		d.mu.Unlock()
		return false
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(key, p.value)
	}
	return true
}
