// Package statustablet resolves and pings the replicated status
// tablet a transaction registers itself with: a one-shot Locator that
// picks and resolves a tablet exactly once, and a Heartbeat loop that
// keeps that tablet informed the transaction is still alive.
package statustablet

import (
	"context"
	"sync/atomic"

	"github.com/cedarsql/txncoord/manager"
)

// Locator picks a status tablet from the replicated pool and resolves
// its routing handle, exactly once no matter how many times Request
// is called concurrently.
type Locator struct {
	mgr       manager.TransactionManager
	requested int32
}

// NewLocator builds a Locator backed by mgr's pool and tablet cache.
func NewLocator(mgr manager.TransactionManager) *Locator {
	return &Locator{mgr: mgr}
}

// Request triggers the pick-then-resolve lookup on the first call;
// every subsequent call is a no-op. onResolved runs on whatever
// goroutine the lookup completes on, exactly once, with either a
// resolved tablet or the first error encountered.
func (l *Locator) Request(onResolved func(tablet manager.RemoteTablet, err error)) {
	if !atomic.CompareAndSwapInt32(&l.requested, 0, 1) {
		return
	}
	l.mgr.PickStatusTablet(func(tabletID string, err error) {
		if err != nil {
			onResolved(manager.RemoteTablet{}, err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.mgr.Config().RPCTimeout)
		defer cancel()
		tablet, err := l.mgr.ResolveTablet(ctx, tabletID)
		onResolved(tablet, err)
	})
}
