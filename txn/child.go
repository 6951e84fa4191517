package txn

import (
	"github.com/cedarsql/txncoord/registry"
	"github.com/cedarsql/txncoord/txnerr"
	"github.com/cedarsql/txncoord/wire"
)

// PrepareChildResult is PrepareChildFuture's channel payload.
type PrepareChildResult struct {
	Data wire.ChildTransactionData
	Err  error
}

// PrepareChild exports this transaction's identity and read point as a
// descriptor a peer process can import as a child transaction. Fails
// with IllegalState if the transaction is not Running or its read
// point requires a restart (a child cannot inherit a tainted read
// point). If not yet ready, the export is queued as a waiter.
func (t *Transaction) PrepareChild(callback func(wire.ChildTransactionData, error)) {
	t.mux.Lock()
	if err := t.checkRunningLocked(); err != nil {
		t.mux.Unlock()
		callback(wire.ChildTransactionData{}, err)
		return
	}
	if t.read.IsRestartRequired() {
		t.mux.Unlock()
		callback(wire.ChildTransactionData{}, txnerr.NewIllegalState("restart required"))
		return
	}
	if !t.ready {
		t.waiters = append(t.waiters, func(err error) {
			t.doPrepareChild(callback, err)
		})
		t.mux.Unlock()
		t.requestStatusTablet()
		return
	}
	t.mux.Unlock()
	t.doPrepareChild(callback, nil)
}

// PrepareChildFuture is PrepareChild's channel-based counterpart.
func (t *Transaction) PrepareChildFuture() <-chan PrepareChildResult {
	out := make(chan PrepareChildResult, 1)
	t.PrepareChild(func(data wire.ChildTransactionData, err error) {
		out <- PrepareChildResult{Data: data, Err: err}
	})
	return out
}

func (t *Transaction) doPrepareChild(callback func(wire.ChildTransactionData, error), err error) {
	if err != nil {
		callback(wire.ChildTransactionData{}, err)
		return
	}

	t.mux.Lock()
	var data wire.ChildTransactionData
	data.Metadata = t.metadata
	t.read.PrepareChildTransactionData(&data)
	t.mux.Unlock()

	callback(data, nil)
}

// FinishChild completes a child transaction, reporting every involved
// tablet's state and the read point's updated local limits and
// restart signal for the parent to merge back in. FinishChild never
// issues network I/O: a child's life is purely logical.
func (t *Transaction) FinishChild() (wire.ChildTransactionResult, error) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if err := t.checkRunningLocked(); err != nil {
		return wire.ChildTransactionResult{}, err
	}
	if !t.child {
		return wire.ChildTransactionResult{}, txnerr.NewIllegalState("finish child of non child transaction")
	}

	t.state.Store(StateCommitted)

	var result wire.ChildTransactionResult
	for _, snap := range t.tablets.Export() {
		result.Tablets = append(result.Tablets, wire.InvolvedTablet{
			TabletID:      snap.TabletID,
			HasParameters: snap.HasParameters,
		})
	}
	t.read.FinishChildTransactionResult(&result)
	return result, nil
}

// ApplyChildResult merges a child's involved-tablet contributions and
// read-limit updates back into this (parent) transaction.
func (t *Transaction) ApplyChildResult(result wire.ChildTransactionResult) error {
	t.mux.Lock()
	defer t.mux.Unlock()

	if err := t.checkRunningLocked(); err != nil {
		return err
	}
	if t.child {
		return txnerr.NewIllegalState("apply child result of child transaction")
	}

	snapshots := make([]registry.Snapshot, len(result.Tablets))
	for i, tablet := range result.Tablets {
		snapshots[i] = registry.Snapshot{TabletID: tablet.TabletID, HasParameters: tablet.HasParameters}
	}
	t.tablets.Merge(snapshots)
	t.read.ApplyChildTransactionResult(result)
	return nil
}
