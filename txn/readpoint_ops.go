package txn

import "github.com/cedarsql/txncoord/hlc"

// RequireRestart flags that the chosen read time crossed uncertainty
// for some tablet and must be resampled before this transaction can
// commit. Driven by the op-response handling that sits upstream of
// Prepare/Flushed, outside this package's scope, when a tablet server
// response indicates as much.
func (t *Transaction) RequireRestart() {
	t.mux.Lock()
	t.read.RequireRestart()
	t.mux.Unlock()
}

// UpdateLocalLimit records, or raises, the per-tablet uncertainty
// window limit learned from a tablet server's response.
func (t *Transaction) UpdateLocalLimit(tabletID string, limit hlc.Timestamp) {
	t.mux.Lock()
	t.read.UpdateLocalLimit(tabletID, limit)
	t.mux.Unlock()
}

// ReadTime returns the transaction's currently chosen read time.
func (t *Transaction) ReadTime() hlc.Timestamp {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.read.GetReadTime()
}
