// Package rpcs tracks in-flight outgoing RPCs so a transaction can
// abort every outstanding heartbeat/commit/abort call on teardown
// without going through its own mutex: every handle is canceled via
// this shared registry instead, avoiding a reentrant deadlock between
// an RPC callback and the transaction's own lock.
package rpcs

import (
	"context"
	"sync"
	"time"
)

// Handle identifies one registered, cancelable RPC. The zero Handle is
// invalid, matching InvalidHandle() below.
type Handle uint64

// InvalidHandle is the sentinel value meaning "no RPC registered".
const InvalidHandle Handle = 0

// Registry tracks every in-flight RPC's cancel function, keyed by a
// monotonically increasing Handle, guarded by its own mutex
// independent of any transaction's mutex.
type Registry struct {
	mux     sync.Mutex
	nextID  uint64
	pending map[Handle]context.CancelFunc
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[Handle]context.CancelFunc)}
}

// RegisterAndStart derives a cancelable context from parent with the
// given timeout, registers its cancel function under a fresh handle,
// and runs fn in its own goroutine, passing the derived context. The
// handle is returned immediately so the caller can store it before fn
// completes.
func (r *Registry) RegisterAndStart(parent context.Context, timeout time.Duration, fn func(ctx context.Context)) Handle {
	ctx, cancel := context.WithTimeout(parent, timeout)

	r.mux.Lock()
	r.nextID++
	handle := Handle(r.nextID)
	r.pending[handle] = cancel
	r.mux.Unlock()

	go func() {
		defer cancel()
		fn(ctx)
	}()

	return handle
}

// Unregister drops the bookkeeping for handle once its RPC has
// completed (successfully or not). It does not cancel the RPC; the
// caller is expected to have already finished it.
func (r *Registry) Unregister(handle *Handle) {
	if handle == nil || *handle == InvalidHandle {
		return
	}
	r.mux.Lock()
	delete(r.pending, *handle)
	r.mux.Unlock()
	*handle = InvalidHandle
}

// Abort cancels every handle passed in (nil and already-invalid
// handles are ignored) and clears each one to InvalidHandle. Safe to
// call concurrently with RegisterAndStart/Unregister.
func (r *Registry) Abort(handles ...*Handle) {
	r.mux.Lock()
	defer r.mux.Unlock()
	for _, h := range handles {
		if h == nil || *h == InvalidHandle {
			continue
		}
		if cancel, ok := r.pending[*h]; ok {
			cancel()
			delete(r.pending, *h)
		}
		*h = InvalidHandle
	}
}

// Len reports how many RPCs are currently tracked, for tests.
func (r *Registry) Len() int {
	r.mux.Lock()
	defer r.mux.Unlock()
	return len(r.pending)
}

// Scheduler runs callbacks after a delay, the way the manager's shared
// scheduler.Schedule does for heartbeat rescheduling. It is a thin
// wrapper over time.AfterFunc so tests can substitute a fake.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is the subset of *time.Timer a Scheduler's caller needs.
type Timer interface {
	Stop() bool
}

type realScheduler struct{}

// RealScheduler is a Scheduler backed by the standard library's timer
// wheel.
var RealScheduler Scheduler = realScheduler{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
