package txn

import (
	"context"
	"sync"
	"time"

	"github.com/cedarsql/txncoord/config"
	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/manager"
	"github.com/cedarsql/txncoord/rpcs"
	"github.com/cedarsql/txncoord/wire"
)

// fakeScheduler never fires on its own; tests advance the heartbeat's
// periodic loop explicitly via FireAll.
type fakeScheduler struct {
	mux     sync.Mutex
	pending []func()
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) rpcs.Timer {
	s.mux.Lock()
	s.pending = append(s.pending, fn)
	s.mux.Unlock()
	return fakeTimer{}
}

func (s *fakeScheduler) FireAll() {
	s.mux.Lock()
	due := s.pending
	s.pending = nil
	s.mux.Unlock()
	for _, fn := range due {
		fn()
	}
}

type fakeTimer struct{}

func (fakeTimer) Stop() bool { return true }

// recordingClient replies OK to every call (unless scripted
// otherwise via nextUpdateErr/nextAbortErr) and records every request
// it sees, so tests can assert on what was actually sent.
type recordingClient struct {
	mux     sync.Mutex
	updates []wire.UpdateTransactionRequest
	aborts  []wire.AbortTransactionRequest

	nextUpdateErr error
	nextAbortErr  error
}

func newRecordingClient() *recordingClient {
	return &recordingClient{}
}

func (c *recordingClient) UpdateTransaction(ctx context.Context, tablet manager.RemoteTablet, req wire.UpdateTransactionRequest) (wire.UpdateTransactionResponse, error) {
	c.mux.Lock()
	c.updates = append(c.updates, req)
	err := c.nextUpdateErr
	c.nextUpdateErr = nil
	c.mux.Unlock()
	if err != nil {
		return wire.UpdateTransactionResponse{}, err
	}
	return wire.UpdateTransactionResponse{PropagatedHybridTime: hlc.Timestamp{Physical: 1}}, nil
}

func (c *recordingClient) AbortTransaction(ctx context.Context, tablet manager.RemoteTablet, req wire.AbortTransactionRequest) (wire.AbortTransactionResponse, error) {
	c.mux.Lock()
	c.aborts = append(c.aborts, req)
	err := c.nextAbortErr
	c.nextAbortErr = nil
	c.mux.Unlock()
	if err != nil {
		return wire.AbortTransactionResponse{}, err
	}
	return wire.AbortTransactionResponse{HasPropagatedHybridTime: true, PropagatedHybridTime: hlc.Timestamp{Physical: 2}}, nil
}

func (c *recordingClient) updateCount() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.updates)
}

func (c *recordingClient) abortCount() int {
	c.mux.Lock()
	defer c.mux.Unlock()
	return len(c.aborts)
}

func (c *recordingClient) committedTabletSets() [][]string {
	c.mux.Lock()
	defer c.mux.Unlock()
	var out [][]string
	for _, u := range c.updates {
		if u.Status == wire.StatusCommitted {
			out = append(out, u.InvolvedTabletIDs)
		}
	}
	return out
}

type fakeManager struct {
	clock     hlc.Clock
	cfg       config.Config
	client    manager.StatusTabletClient
	rpcs      *rpcs.Registry
	scheduler *fakeScheduler

	pickErr error
}

func newFakeManager(client manager.StatusTabletClient) *fakeManager {
	return &fakeManager{
		clock:     hlc.NewPhysicalLogicalClock(0),
		cfg:       config.Default(),
		client:    client,
		rpcs:      rpcs.NewRegistry(),
		scheduler: &fakeScheduler{},
	}
}

func (m *fakeManager) Now() hlc.Timestamp                        { return m.clock.Now() }
func (m *fakeManager) UpdateClock(t hlc.Timestamp)                { m.clock.Update(t) }
func (m *fakeManager) Clock() hlc.Clock                           { return m.clock }
func (m *fakeManager) Config() config.Config                      { return m.cfg }
func (m *fakeManager) Client() manager.StatusTabletClient         { return m.client }
func (m *fakeManager) RPCs() *rpcs.Registry                       { return m.rpcs }
func (m *fakeManager) Scheduler() rpcs.Scheduler                  { return m.scheduler }
func (m *fakeManager) PickStatusTablet(callback func(tabletID string, err error)) {
	if m.pickErr != nil {
		callback("", m.pickErr)
		return
	}
	callback("status-tablet-1", nil)
}
func (m *fakeManager) ResolveTablet(ctx context.Context, tabletID string) (manager.RemoteTablet, error) {
	return manager.RemoteTablet{TabletID: tabletID}, nil
}
