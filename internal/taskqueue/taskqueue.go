// ABOUTME: Keyed single-flight queue collapsing concurrent duplicate work
// ABOUTME: Exposes per-key pending status for liveness reporting
package taskqueue

import "sync"

// Status describes the lifecycle of a keyed computation.
type Status string

// StatusPending marks a computation that has started and not yet settled.
const StatusPending Status = "pending"

type entry struct {
	done chan struct{}
	val  any
	err  error
}

// Queue collapses concurrent calls for the same key into one computation.
// All callers that arrive while a computation is in flight observe the same
// result. A settled entry is dropped; a later call for the same key runs a
// fresh computation. Permanent memoization is the caller's concern.
type Queue struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{entries: make(map[string]*entry)}
}

// do runs fn under single-flight semantics for key.
func (q *Queue) do(key string, fn func() (any, error)) (any, error) {
	q.mu.Lock()
	if e, ok := q.entries[key]; ok {
		q.mu.Unlock()
		<-e.done
		return e.val, e.err
	}

	e := &entry{done: make(chan struct{})}
	q.entries[key] = e
	q.mu.Unlock()

	e.val, e.err = fn()

	q.mu.Lock()
	delete(q.entries, key)
	q.mu.Unlock()
	close(e.done)

	return e.val, e.err
}

// Status returns the current status for key. The second return is false
// when no computation for key is in flight.
func (q *Queue) Status(key string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[key]; ok {
		return StatusPending, true
	}
	return "", false
}

// Loading reports whether any of the given keys has an in-flight computation.
func (q *Queue) Loading(keys ...string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, key := range keys {
		if _, ok := q.entries[key]; ok {
			return true
		}
	}
	return false
}

// Do runs fn under single-flight semantics for key, preserving fn's result
// type. Concurrent callers for the same key share the first caller's result,
// errors included; the queue never retries on its own.
func Do[T any](q *Queue, key string, fn func() (T, error)) (T, error) {
	val, err := q.do(key, func() (any, error) {
		return fn()
	})
	if val == nil {
		var zero T
		return zero, err
	}
	return val.(T), err
}
