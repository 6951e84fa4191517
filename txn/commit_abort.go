package txn

import (
	"context"

	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/log"
	"github.com/cedarsql/txncoord/manager"
	"github.com/cedarsql/txncoord/txnerr"
	"github.com/cedarsql/txncoord/wire"
)

// Commit transitions the transaction to Committed and reports the
// outcome to callback. Committing a child, or a transaction whose
// read point requires a restart, fails immediately with IllegalState.
// If the transaction is not yet ready, the commit is queued as a
// waiter and runs once the first heartbeat succeeds.
func (t *Transaction) Commit(callback func(error)) {
	t.mux.Lock()
	if err := t.checkRunningLocked(); err != nil {
		t.mux.Unlock()
		callback(err)
		return
	}
	if t.child {
		t.mux.Unlock()
		callback(txnerr.NewIllegalState("commit of child transaction is not allowed"))
		return
	}
	if t.read.IsRestartRequired() {
		t.mux.Unlock()
		callback(txnerr.NewIllegalState("commit of transaction that requires restart is not allowed"))
		return
	}

	t.state.Store(StateCommitted)
	t.commitCallback = callback
	if !t.ready {
		t.waiters = append(t.waiters, t.doCommit)
		t.mux.Unlock()
		t.requestStatusTablet()
		return
	}
	t.mux.Unlock()
	t.doCommit(nil)
}

// CommitFuture is Commit's channel-based counterpart.
func (t *Transaction) CommitFuture() <-chan error {
	out := make(chan error, 1)
	t.Commit(func(err error) { out <- err })
	return out
}

// doCommit runs once the transaction is ready (immediately, or via the
// waiter queue). A transaction with no involved tablets sends no commit
// RPC: it is aborted instead (doAbort sends the abort RPC to the status
// tablet), and the caller is still told the commit succeeded.
func (t *Transaction) doCommit(err error) {
	if err != nil {
		t.invokeCommitCallback(err)
		return
	}

	t.mux.Lock()
	tabletIDs := t.tablets.TabletIDs()
	statusTablet := t.statusTablet
	req := wire.UpdateTransactionRequest{
		StatusTabletID:       statusTablet.TabletID,
		PropagatedHybridTime: t.mgr.Now(),
		TransactionID:        t.id,
		Status:               wire.StatusCommitted,
		InvolvedTabletIDs:    tabletIDs,
	}
	t.mux.Unlock()

	if len(tabletIDs) == 0 {
		t.doAbort(nil)
		t.invokeCommitCallback(nil)
		return
	}

	t.mux.Lock()
	t.commitHandle = t.mgr.RPCs().RegisterAndStart(context.Background(), t.mgr.Config().RPCTimeout, func(ctx context.Context) {
		resp, err := t.mgr.Client().UpdateTransaction(ctx, statusTablet, req)
		t.commitDone(err, resp.PropagatedHybridTime)
	})
	t.mux.Unlock()
}

func (t *Transaction) commitDone(err error, propagated hlc.Timestamp) {
	t.mgr.UpdateClock(propagated)

	t.mux.Lock()
	t.mgr.RPCs().Unregister(&t.commitHandle)
	t.mux.Unlock()

	if err == nil {
		manager.ObserveCommit()
		t.notifyAuditCommit()
	}
	t.invokeCommitCallback(err)
}

func (t *Transaction) invokeCommitCallback(err error) {
	t.mux.Lock()
	cb := t.commitCallback
	t.commitCallback = nil
	t.mux.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Abort transitions the transaction to Aborted. A second Abort call
// on an already-aborted transaction is a silent no-op; calling it on a
// committed transaction is a misuse logged as a warning. A child
// transaction cannot be aborted directly (its lifecycle is owned by
// the parent). If the transaction is not yet ready, the abort is
// queued as a waiter.
func (t *Transaction) Abort() {
	t.mux.Lock()
	state := t.state.Load()
	if state != StateRunning {
		t.mux.Unlock()
		if state != StateAborted {
			log.Warnf("abort of %s transaction %s", state, t.id)
		}
		return
	}
	if t.child {
		t.mux.Unlock()
		log.Warnf("abort of child transaction %s", t.id)
		return
	}

	t.state.Store(StateAborted)
	if !t.ready {
		t.waiters = append(t.waiters, t.doAbort)
		t.mux.Unlock()
		t.requestStatusTablet()
		return
	}
	t.mux.Unlock()
	t.doAbort(nil)
}

func (t *Transaction) doAbort(err error) {
	if err != nil {
		log.Warnf("failed to abort transaction %s: %v", t.id, err)
		return
	}

	t.mux.Lock()
	statusTablet := t.statusTablet
	req := wire.AbortTransactionRequest{
		StatusTabletID:       statusTablet.TabletID,
		PropagatedHybridTime: t.mgr.Now(),
		TransactionID:        t.id,
	}
	t.mux.Unlock()

	manager.ObserveAbort()
	t.notifyAuditAbort(nil)

	t.mux.Lock()
	t.abortHandle = t.mgr.RPCs().RegisterAndStart(context.Background(), t.mgr.Config().RPCTimeout, func(ctx context.Context) {
		resp, err := t.mgr.Client().AbortTransaction(ctx, statusTablet, req)
		t.abortDone(err, resp)
	})
	t.mux.Unlock()
}

func (t *Transaction) abortDone(err error, resp wire.AbortTransactionResponse) {
	if resp.HasPropagatedHybridTime {
		t.mgr.UpdateClock(resp.PropagatedHybridTime)
	}

	t.mux.Lock()
	t.mgr.RPCs().Unregister(&t.abortHandle)
	t.mux.Unlock()

	if err != nil {
		// Heartbeats have already stopped by the time abort is sent, so
		// the status tablet will time the transaction out regardless.
		log.Warnf("abort rpc failed for transaction %s: %v", t.id, err)
	}
}
