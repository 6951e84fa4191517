package txn

import (
	"github.com/cedarsql/txncoord/log"
	"github.com/cedarsql/txncoord/manager"
)

// CreateRestartedTransaction builds a fresh transaction sharing this
// one's manager and isolation level, resamples its read point fresh
// from the clock, and aborts this transaction. The read point is not
// carried over: querying this transaction after restart is a misuse
// the caller must not do (it has nothing current to offer).
func (t *Transaction) CreateRestartedTransaction() *Transaction {
	t.mux.Lock()
	isolation := t.metadata.Isolation
	t.mux.Unlock()

	successor := New(t.mgr, isolation)
	t.setupRestart(successor)
	manager.ObserveRestart()
	return successor
}

// setupRestart marks this transaction Aborted under lock, resamples
// the successor's read point, and then aborts this transaction over
// the network. The successor is not yet visible to any other caller
// at this point, so mutating its read point here needs no lock on it.
func (t *Transaction) setupRestart(successor *Transaction) {
	t.mux.Lock()
	if t.state.Load() != StateRunning {
		t.mux.Unlock()
		log.Errorf("restart of completed transaction %s", t.id)
		return
	}
	successor.read.Restart()
	t.state.Store(StateAborted)
	t.mux.Unlock()

	t.doAbort(nil)
}
