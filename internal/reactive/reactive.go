// Package reactive is a small dataflow graph: value nodes with declared,
// debounced downstream effects.
//
// An effect runs at most once per quiet window. A change that arrives while
// the window is open restarts it; a change that arrives while the effect is
// running cancels that run's context. Setting a node to its current value is
// not a change.
package reactive

import (
	"context"
	"sync"
	"time"
)

// Node holds a comparable value and the effects that depend on it.
type Node[T comparable] struct {
	mu      sync.Mutex
	value   T
	effects []*Effect[T]
	closed  bool
}

// NewNode creates a node holding initial.
func NewNode[T comparable](initial T) *Node[T] {
	return &Node[T]{value: initial}
}

// Get returns the current value.
func (n *Node[T]) Get() T {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Set stores v and schedules every effect if v differs from the current
// value. It reports whether the value changed.
func (n *Node[T]) Set(v T) bool {
	n.mu.Lock()
	if n.closed || n.value == v {
		n.mu.Unlock()
		return false
	}
	n.value = v
	effects := append([]*Effect[T](nil), n.effects...)
	n.mu.Unlock()

	for _, e := range effects {
		e.schedule(v)
	}
	return true
}

// Effect declares fn as a downstream effect debounced by window.
func (n *Node[T]) Effect(window time.Duration, fn func(ctx context.Context, v T)) *Effect[T] {
	e := &Effect[T]{window: window, fn: fn}
	n.mu.Lock()
	n.effects = append(n.effects, e)
	n.mu.Unlock()
	return e
}

// Close cancels pending and running effects and waits for running ones to
// return. Later Sets are ignored.
func (n *Node[T]) Close() {
	n.mu.Lock()
	n.closed = true
	effects := n.effects
	n.effects = nil
	n.mu.Unlock()

	for _, e := range effects {
		e.Cancel()
	}
}

// Effect is a debounced reaction to a node's changes.
type Effect[T comparable] struct {
	window time.Duration
	fn     func(ctx context.Context, v T)

	mu        sync.Mutex
	gen       uint64
	timer     *time.Timer
	runCancel context.CancelFunc
	closed    bool
	runs      int
	wg        sync.WaitGroup
}

// Runs returns how many times fn has been invoked.
func (e *Effect[T]) Runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

// Pending reports whether a run is scheduled but has not started.
func (e *Effect[T]) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

// Stop drops the pending call and cancels a running one. Later changes
// schedule again.
func (e *Effect[T]) Stop() {
	e.mu.Lock()
	e.supersedeLocked()
	e.mu.Unlock()
}

// Cancel stops the effect permanently.
func (e *Effect[T]) Cancel() {
	e.mu.Lock()
	e.closed = true
	e.supersedeLocked()
	e.mu.Unlock()

	e.wg.Wait()
}

func (e *Effect[T]) schedule(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.supersedeLocked()
	gen := e.gen
	e.timer = time.AfterFunc(e.window, func() { e.fire(gen, v) })
}

// supersedeLocked invalidates the pending timer and any running call.
func (e *Effect[T]) supersedeLocked() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.runCancel != nil {
		e.runCancel()
		e.runCancel = nil
	}
}

func (e *Effect[T]) fire(gen uint64, v T) {
	e.mu.Lock()
	if e.closed || gen != e.gen {
		e.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.timer = nil
	e.runCancel = cancel
	e.runs++
	e.wg.Add(1)
	e.mu.Unlock()

	defer e.wg.Done()
	defer cancel()

	e.fn(ctx, v)

	e.mu.Lock()
	if gen == e.gen {
		e.runCancel = nil
	}
	e.mu.Unlock()
}
