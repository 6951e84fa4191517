package statustablet

import (
	"context"

	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/manager"
	"github.com/cedarsql/txncoord/rpcs"
	"github.com/cedarsql/txncoord/txnerr"
	"github.com/cedarsql/txncoord/weakref"
	"github.com/cedarsql/txncoord/wire"
)

// Target is the slice of a transaction's state a Heartbeat needs to
// touch. It is satisfied by the transaction package without this
// package importing it back, avoiding an import cycle.
type Target interface {
	// TransactionID reports the transaction's identifier for requests.
	TransactionID() wire.TransactionID
	// IsRunning reports whether the transaction still needs its
	// heartbeat; a false return makes the heartbeat loop stop
	// scheduling itself, and no ping is sent for a target that
	// reports false.
	IsRunning() bool
	// OnHeartbeatCreated fires exactly once, when the first CREATED
	// heartbeat completes successfully: this is the signal that flips
	// a transaction from "not yet registered" to ready, draining
	// whatever calls queued up waiting for it.
	OnHeartbeatCreated(propagated hlc.Timestamp)
	// OnHeartbeatExpired fires when a heartbeat comes back with an
	// Expired error: the status tablet has given up on the
	// transaction and it can no longer be committed.
	OnHeartbeatExpired(err error)
}

// Heartbeat keeps a status tablet informed that a transaction is
// still alive: an initial CREATED round trip registers the
// transaction, then periodic PENDING pings renew it until the
// transaction stops running or a ping comes back Expired.
//
// Heartbeat holds its Target behind a weakref.Handle rather than a
// direct pointer, so a transaction's teardown can sever the back
// reference without waiting for an in-flight or scheduled heartbeat
// to notice on its own.
type Heartbeat struct {
	mgr    manager.TransactionManager
	tablet manager.RemoteTablet
	token  *weakref.Handle[Target]
	handle rpcs.Handle
}

// NewHeartbeat builds a Heartbeat for a transaction whose status
// tablet has already been resolved, addressed by target through a
// weak handle.
func NewHeartbeat(mgr manager.TransactionManager, tablet manager.RemoteTablet, target Target) *Heartbeat {
	return &Heartbeat{
		mgr:    mgr,
		tablet: tablet,
		token:  weakref.New[Target](target),
	}
}

// Start sends the initial CREATED heartbeat that registers the
// transaction with its status tablet.
func (h *Heartbeat) Start() {
	h.send(wire.StatusCreated)
}

// Stop cancels any in-flight heartbeat RPC and severs the back
// reference to the target, so no future callback touches it. Safe to
// call more than once.
func (h *Heartbeat) Stop() {
	h.mgr.RPCs().Abort(&h.handle)
	h.token.Release()
}

func (h *Heartbeat) send(status wire.TransactionStatus) {
	target, ok := h.token.Resolve()
	if !ok || !target.IsRunning() {
		return
	}

	if status != wire.StatusCreated && h.mgr.Config().DisableHeartbeatInTests {
		h.done(target, nil, hlc.Invalid, status)
		return
	}

	req := wire.UpdateTransactionRequest{
		StatusTabletID:       h.tablet.TabletID,
		PropagatedHybridTime: h.mgr.Now(),
		TransactionID:        target.TransactionID(),
		Status:               status,
	}

	h.handle = h.mgr.RPCs().RegisterAndStart(context.Background(), h.mgr.Config().RPCTimeout, func(ctx context.Context) {
		resp, err := h.mgr.Client().UpdateTransaction(ctx, h.tablet, req)
		if target, ok := h.token.Resolve(); ok {
			h.done(target, err, resp.PropagatedHybridTime, status)
		}
	})
}

func (h *Heartbeat) done(target Target, err error, propagated hlc.Timestamp, status wire.TransactionStatus) {
	h.mgr.UpdateClock(propagated)
	h.mgr.RPCs().Unregister(&h.handle)

	if !target.IsRunning() {
		return
	}

	if err == nil {
		manager.ObserveHeartbeat("ok")
		if status == wire.StatusCreated {
			target.OnHeartbeatCreated(propagated)
		}
		h.mgr.Scheduler().AfterFunc(h.mgr.Config().HeartbeatInterval, func() {
			h.send(wire.StatusPending)
		})
		return
	}

	if txnerr.IsExpired(err) {
		manager.ObserveHeartbeat("expired")
		target.OnHeartbeatExpired(err)
		return
	}

	manager.ObserveHeartbeat("retry")
	h.send(status)
}
