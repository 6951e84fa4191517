// Package txn implements the transaction state machine: the running/
// committed/aborted lifecycle, the involved-tablet bookkeeping a batch
// flush updates, the commit/abort protocol, and the parent/child split
// used to coordinate a transaction across client processes.
package txn

import (
	"sync"
	"sync/atomic"

	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/log"
	"github.com/cedarsql/txncoord/manager"
	"github.com/cedarsql/txncoord/readpoint"
	"github.com/cedarsql/txncoord/registry"
	"github.com/cedarsql/txncoord/rpcs"
	"github.com/cedarsql/txncoord/statustablet"
	"github.com/cedarsql/txncoord/txnerr"
	"github.com/cedarsql/txncoord/wire"
)

// State is a transaction's lifecycle state. Transitions are one-way
// from Running; Committed and Aborted are terminal.
type State int32

const (
	StateRunning State = iota
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Waiter is a deferred continuation run once a transaction becomes
// ready (or, for error paths, with the error that made it terminal).
type Waiter func(err error)

// Transaction drives a single multi-tablet transaction's lifecycle:
// identity and read point at construction, involved-tablet tracking as
// operations flush, a liveness heartbeat once a status tablet is
// resolved, and a terminal commit or abort. One mutex guards every
// mutable field below except state, which is additionally mirrored in
// an atomic for the heartbeat's lock-free self-cancel check.
type Transaction struct {
	mgr manager.TransactionManager
	id  wire.TransactionID

	mux      sync.Mutex
	metadata wire.TransactionMetadata
	read     *readpoint.ReadPoint
	tablets  *registry.Registry

	state State32
	child bool
	ready bool

	waiters []Waiter

	errSet bool
	err    error

	commitCallback func(error)

	locator      *statustablet.Locator
	heartbeat    *statustablet.Heartbeat
	statusTablet manager.RemoteTablet

	commitHandle rpcs.Handle
	abortHandle  rpcs.Handle

	auditor Auditor
}

// State32 is an atomic.Int32-shaped holder for State, giving the
// heartbeat loop's IsRunning probe a lock-free fast path. It is a thin
// wrapper rather than a bare atomic.Int32 field so State's own type
// stays the public API surface.
type State32 struct {
	v atomic.Int32
}

func (s *State32) Load() State      { return State(s.v.Load()) }
func (s *State32) Store(v State)    { s.v.Store(int32(v)) }

// New builds a freshly created (non-child) transaction. Snapshot
// isolation captures a read time immediately; every other isolation
// level reads at the coordinator's current clock time, deferred until
// the first real read (matching that isolation's weaker guarantee).
func New(mgr manager.TransactionManager, isolation wire.IsolationLevel) *Transaction {
	read := readpoint.New(mgr.Clock())

	var metadata wire.TransactionMetadata
	if isolation == wire.SnapshotIsolation {
		read.SetCurrentReadTime()
		metadata = wire.NewTransactionMetadata(isolation, read.GetReadTime())
	} else {
		metadata = wire.NewTransactionMetadata(isolation, mgr.Now())
	}

	t := &Transaction{
		mgr:      mgr,
		id:       metadata.TransactionID,
		metadata: metadata,
		read:     read,
		tablets:  registry.New(),
		locator:  statustablet.NewLocator(mgr),
	}
	t.state.Store(StateRunning)
	log.Debugf("transaction %s started, isolation=%s", t.id, isolation)
	return t
}

// NewChild builds a transaction from a parent's exported descriptor.
// Children are ready immediately and skip the status-tablet locator,
// the heartbeat loop, and commit RPCs entirely: their logical identity
// and liveness are owned by the parent.
func NewChild(mgr manager.TransactionManager, data wire.ChildTransactionData) *Transaction {
	read := readpoint.New(mgr.Clock())
	read.SetReadTime(data.ReadTime, data.LocalLimits)

	t := &Transaction{
		mgr:      mgr,
		id:       data.Metadata.TransactionID,
		metadata: data.Metadata,
		read:     read,
		tablets:  registry.New(),
		child:    true,
		ready:    true,
	}
	t.state.Store(StateRunning)
	log.Debugf("child transaction %s started", t.id)
	return t
}

// TransactionID returns the transaction's identifier. Also satisfies
// statustablet.Target so the heartbeat loop can address requests.
func (t *Transaction) TransactionID() wire.TransactionID {
	return t.id
}

// IsRestartRequired reports whether the chosen read time must be
// resampled before this transaction can commit.
func (t *Transaction) IsRestartRequired() bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	return t.read.IsRestartRequired()
}

// IsRunning reports whether the heartbeat loop should keep going: true
// while the transaction is in the Running state (checked via the
// lock-free atomic probe), and also while it is not yet ready, so a
// Commit or Abort queued behind readiness still gets the CREATED round
// trip that runs it. Also satisfies statustablet.Target.
func (t *Transaction) IsRunning() bool {
	if t.state.Load() == StateRunning {
		return true
	}
	t.mux.Lock()
	defer t.mux.Unlock()
	return !t.ready
}

// checkRunningLocked must be called with mux held. It returns nil if
// the transaction is Running, otherwise the recorded error (or a
// generic IllegalState if none was ever recorded).
func (t *Transaction) checkRunningLocked() error {
	if t.state.Load() == StateRunning {
		return nil
	}
	if t.errSet {
		return t.err
	}
	return txnerr.NewIllegalState("transaction already completed")
}

// setError records err into the write-once error slot, transitions
// the transaction to Aborted, and resumes every still-queued waiter
// with err, in the order they arrived. A no-op if an error was already
// set.
func (t *Transaction) setError(err error) {
	t.mux.Lock()
	if t.errSet {
		t.mux.Unlock()
		return
	}
	t.errSet = true
	t.err = err
	t.state.Store(StateAborted)
	waiters := t.waiters
	t.waiters = nil
	t.mux.Unlock()

	for _, w := range waiters {
		if w != nil {
			w(err)
		}
	}
}

// Prepare registers tabletIDs as involved in this transaction. If the
// transaction is not yet ready (its status tablet has not completed
// its first heartbeat), waiter is queued and Prepare reports not
// ready; the caller must re-issue once waiter fires. Otherwise Prepare
// reports the metadata a server needs: full metadata the first time
// any of tabletIDs is new or still missing parameters, id-only
// afterwards.
func (t *Transaction) Prepare(tabletIDs []string, waiter Waiter) (wire.TransactionMetadata, bool) {
	t.mux.Lock()
	if !t.ready {
		t.waiters = append(t.waiters, waiter)
		t.mux.Unlock()
		t.requestStatusTablet()
		return wire.TransactionMetadata{}, false
	}

	needsFull := t.tablets.EnsureTablets(tabletIDs)
	var out wire.TransactionMetadata
	if needsFull {
		out = t.metadata
	} else {
		out = wire.TransactionMetadata{TransactionID: t.metadata.TransactionID}
	}
	t.mux.Unlock()
	return out, true
}

// Flushed reports the outcome of a batch of operations against
// tabletIDs that already succeeded. A nil status marks those tablets
// as having the transaction's full parameters now on file; a TryAgain
// status aborts the transaction via the error slot. Any other status
// is the caller's to handle and is ignored here.
func (t *Transaction) Flushed(succeededTabletIDs []string, status error) {
	if status == nil {
		t.mux.Lock()
		for _, id := range succeededTabletIDs {
			t.tablets.MarkHasParameters(id)
		}
		t.mux.Unlock()
		return
	}
	if txnerr.IsTryAgain(status) {
		t.setError(status)
	}
}

// requestStatusTablet triggers the one-shot status-tablet lookup and,
// once resolved, starts the heartbeat loop. Safe to call repeatedly;
// the underlying locator only issues one lookup.
func (t *Transaction) requestStatusTablet() {
	if t.locator == nil {
		return
	}
	t.locator.Request(func(tablet manager.RemoteTablet, err error) {
		if err != nil {
			t.setError(err)
			return
		}

		t.mux.Lock()
		t.statusTablet = tablet
		t.metadata.StatusTabletID = tablet.TabletID
		t.mux.Unlock()

		hb := statustablet.NewHeartbeat(t.mgr, tablet, t)
		t.mux.Lock()
		t.heartbeat = hb
		t.mux.Unlock()
		hb.Start()
	})
}

// OnHeartbeatCreated flips the transaction ready and drains whatever
// Prepare/Commit/Abort/PrepareChild calls queued up while it was not,
// in the order they arrived.
func (t *Transaction) OnHeartbeatCreated(propagated hlc.Timestamp) {
	t.mux.Lock()
	t.ready = true
	waiters := t.waiters
	t.waiters = nil
	t.mux.Unlock()

	for _, w := range waiters {
		if w != nil {
			w(nil)
		}
	}
}

// OnHeartbeatExpired records that the status tablet no longer
// considers the transaction alive. Any still-queued waiters are
// resumed with the Expired error, and every later call that checks the
// transaction's state reports that same recorded error.
func (t *Transaction) OnHeartbeatExpired(err error) {
	t.setError(txnerr.NewExpired(err))
}

// Close tears down the transaction: stops the heartbeat loop, aborts
// any outstanding commit/abort RPCs through the shared RPC registry
// rather than this transaction's own mutex (avoiding a reentrant
// deadlock with an in-flight RPC callback), and closes the audit
// sink if one is wired in. Safe to call once; calling twice aborts
// already-aborted (by then invalid) handles harmlessly.
func (t *Transaction) Close() error {
	t.mux.Lock()
	hb := t.heartbeat
	auditor := t.auditor
	t.mux.Unlock()

	if hb != nil {
		hb.Stop()
	}
	t.mgr.RPCs().Abort(&t.commitHandle, &t.abortHandle)

	if closer, ok := auditor.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
