package txn

import "github.com/cedarsql/txncoord/wire"

// TestMetadata returns a channel that delivers the transaction's
// metadata once it is available. If the transaction is already ready,
// the channel is pre-filled; otherwise it is queued behind the
// readiness waiter like any other deferred call. A test seam: it
// works outside of tests too (Go has no friend-class mechanism to
// gate it), but nothing in the coordinator's own logic calls it.
func (t *Transaction) TestMetadata() <-chan wire.TransactionMetadata {
	out := make(chan wire.TransactionMetadata, 1)

	t.mux.Lock()
	if t.ready {
		md := t.metadata
		t.mux.Unlock()
		out <- md
		return out
	}
	t.waiters = append(t.waiters, func(error) {
		t.mux.Lock()
		md := t.metadata
		t.mux.Unlock()
		out <- md
	})
	t.mux.Unlock()

	t.requestStatusTablet()
	return out
}
