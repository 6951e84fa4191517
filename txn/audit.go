package txn

import "github.com/cedarsql/txncoord/wire"

// Auditor receives best-effort notifications of terminal transaction
// events for offline observability. A transaction's correctness never
// depends on its auditor: every call below is fired from its own
// goroutine so a slow or failing sink cannot delay or fail a commit
// or abort.
type Auditor interface {
	RecordCommit(id wire.TransactionID, tabletIDs []string)
	RecordAbort(id wire.TransactionID, cause error)
}

// SetAuditor wires an Auditor into the transaction. Must be called
// before the transaction reaches a terminal state to have any effect.
func (t *Transaction) SetAuditor(a Auditor) {
	t.mux.Lock()
	t.auditor = a
	t.mux.Unlock()
}

func (t *Transaction) notifyAuditCommit() {
	t.mux.Lock()
	auditor := t.auditor
	tabletIDs := t.tablets.TabletIDs()
	t.mux.Unlock()
	if auditor == nil {
		return
	}
	go auditor.RecordCommit(t.id, tabletIDs)
}

func (t *Transaction) notifyAuditAbort(cause error) {
	t.mux.Lock()
	auditor := t.auditor
	if cause == nil && t.errSet {
		cause = t.err
	}
	t.mux.Unlock()
	if auditor == nil {
		return
	}
	go auditor.RecordAbort(t.id, cause)
}
