// Package manager provides the TransactionManager a transaction
// consumes: a clock, an RPC handle registry, a scheduler, a way to
// pick a status tablet from the replicated pool, and a tablet-lookup
// cache resolving a tablet id to its routing handle.
package manager

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xiaoxuxiansheng/redis_lock"

	"github.com/cedarsql/txncoord/config"
	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/log"
	"github.com/cedarsql/txncoord/rpcs"
	"github.com/cedarsql/txncoord/wire"
)

// RemoteTablet is the routing handle a tablet id resolves to: which
// tablet server currently serves it. In a real deployment this would
// carry a live RPC channel; here it carries just enough for the
// StatusTabletClient to be addressed.
type RemoteTablet struct {
	TabletID string
	Addr     string
}

// StatusTabletClient is the narrow RPC surface used to actually talk
// to a status tablet, standing in for the messenger-level transport
// this module leaves out of scope.
type StatusTabletClient interface {
	UpdateTransaction(ctx context.Context, tablet RemoteTablet, req wire.UpdateTransactionRequest) (wire.UpdateTransactionResponse, error)
	AbortTransaction(ctx context.Context, tablet RemoteTablet, req wire.AbortTransactionRequest) (wire.AbortTransactionResponse, error)
}

// TransactionManager is the interface a Transaction consumes to reach
// the clock, RPC plumbing, and status-tablet pool it shares with every
// other transaction in the process.
type TransactionManager interface {
	Now() hlc.Timestamp
	UpdateClock(hlc.Timestamp)
	Clock() hlc.Clock
	Config() config.Config
	Client() StatusTabletClient
	RPCs() *rpcs.Registry
	Scheduler() rpcs.Scheduler
	// PickStatusTablet asynchronously selects a status tablet from the
	// replicated pool and reports it (or an error) to callback.
	PickStatusTablet(callback func(tabletID string, err error))
	// ResolveTablet looks up tabletID's current routing handle,
	// through the LRU-backed tablet-lookup cache.
	ResolveTablet(ctx context.Context, tabletID string) (RemoteTablet, error)
}

// StatusTabletPool is the free-choice pool of replicated status
// tablets a manager picks from. A distributed deployment shares one
// pool across many client processes and wants their picks spread out,
// hence the Redis-backed round robin below.
type StatusTabletPool interface {
	Pick(ctx context.Context) (string, error)
}

// localPool round-robins in-process, no coordination across processes.
type localPool struct {
	mux       sync.Mutex
	tabletIDs []string
	next      int
}

// NewLocalPool builds a StatusTabletPool that round-robins in process
// memory only, for single-process deployments and tests.
func NewLocalPool(tabletIDs []string) StatusTabletPool {
	return &localPool{tabletIDs: tabletIDs}
}

func (p *localPool) Pick(ctx context.Context) (string, error) {
	if len(p.tabletIDs) == 0 {
		return "", fmt.Errorf("status tablet pool is empty")
	}
	p.mux.Lock()
	defer p.mux.Unlock()
	id := p.tabletIDs[p.next%len(p.tabletIDs)]
	p.next++
	return id, nil
}

// distributedPool round-robins across the pool using a Redis-backed
// lock so many client processes sharing the same manager configuration
// spread their picks instead of piling onto tablet zero. The
// coordination is over *which* status tablet a fresh transaction
// registers with, not over any transaction's state, so it does not
// touch the memory-only-state non-goal.
type distributedPool struct {
	tabletIDs []string
	client    *redis_lock.Client
	lockKey   string
	counterKey string
}

// NewDistributedPool builds a StatusTabletPool backed by a Redis lock
// shared across client processes.
func NewDistributedPool(tabletIDs []string, client *redis_lock.Client) StatusTabletPool {
	return &distributedPool{
		tabletIDs:  tabletIDs,
		client:     client,
		lockKey:    "txncoord:status_tablet_pool:lock",
		counterKey: "txncoord:status_tablet_pool:counter",
	}
}

func (p *distributedPool) Pick(ctx context.Context) (string, error) {
	if len(p.tabletIDs) == 0 {
		return "", fmt.Errorf("status tablet pool is empty")
	}

	lock := redis_lock.NewRedisLock(p.lockKey, p.client, redis_lock.WithExpireSeconds(5))
	if err := lock.Lock(ctx); err != nil {
		return "", err
	}
	defer func() {
		if err := lock.Unlock(ctx); err != nil {
			log.Warnf("failed to unlock status tablet pool: %v", err)
		}
	}()

	raw, err := p.client.Get(ctx, p.counterKey)
	var counter int64
	if err == nil {
		fmt.Sscanf(raw, "%d", &counter)
	}
	counter++
	if _, err := p.client.Set(ctx, p.counterKey, fmt.Sprintf("%d", counter)); err != nil {
		return "", err
	}

	return p.tabletIDs[(counter-1)%int64(len(p.tabletIDs))], nil
}

var (
	heartbeatsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "txncoord",
		Name:      "heartbeats_total",
		Help:      "Heartbeats sent to status tablets, by outcome.",
	}, []string{"outcome"})

	commitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "txncoord",
		Name:      "commits_total",
		Help:      "Transactions successfully committed.",
	})

	abortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "txncoord",
		Name:      "aborts_total",
		Help:      "Transactions aborted, for any reason.",
	})

	restartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "txncoord",
		Name:      "restarts_total",
		Help:      "Transactions restarted due to read-time uncertainty.",
	})
)

func init() {
	prometheus.MustRegister(heartbeatsTotal, commitsTotal, abortsTotal, restartsTotal)
}

// ObserveHeartbeat records a heartbeat's outcome ("ok", "retry", or
// "expired") for metrics.
func ObserveHeartbeat(outcome string) {
	heartbeatsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCommit records a successful commit for metrics.
func ObserveCommit() { commitsTotal.Inc() }

// ObserveAbort records an abort for metrics.
func ObserveAbort() { abortsTotal.Inc() }

// ObserveRestart records a transaction restart for metrics.
func ObserveRestart() { restartsTotal.Inc() }

// Manager is the default TransactionManager implementation: it owns a
// clock, an RPC registry, a status tablet pool, and an LRU-backed
// tablet-lookup cache, and delegates the actual wire traffic to a
// StatusTabletClient the caller supplies (so tests can substitute a
// fake one without a live cluster).
type Manager struct {
	clock     hlc.Clock
	cfg       config.Config
	client    StatusTabletClient
	rpcs      *rpcs.Registry
	scheduler rpcs.Scheduler
	pool      StatusTabletPool
	cache     *lru.Cache[string, RemoteTablet]
}

// New builds a Manager. cacheSize bounds the tablet-lookup LRU cache.
func New(clock hlc.Clock, cfg config.Config, client StatusTabletClient, pool StatusTabletPool, cacheSize int) (*Manager, error) {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[string, RemoteTablet](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Manager{
		clock:     clock,
		cfg:       cfg,
		client:    client,
		rpcs:      rpcs.NewRegistry(),
		scheduler: rpcs.RealScheduler,
		pool:      pool,
		cache:     cache,
	}, nil
}

func (m *Manager) Now() hlc.Timestamp        { return m.clock.Now() }
func (m *Manager) UpdateClock(t hlc.Timestamp) { m.clock.Update(t) }
func (m *Manager) Clock() hlc.Clock          { return m.clock }
func (m *Manager) Config() config.Config     { return m.cfg }
func (m *Manager) Client() StatusTabletClient { return m.client }
func (m *Manager) RPCs() *rpcs.Registry       { return m.rpcs }
func (m *Manager) Scheduler() rpcs.Scheduler  { return m.scheduler }

// PickStatusTablet runs the pool's choice on its own goroutine so
// callers (the locator) never block.
func (m *Manager) PickStatusTablet(callback func(tabletID string, err error)) {
	go func() {
		id, err := m.pool.Pick(context.Background())
		callback(id, err)
	}()
}

// ResolveTablet resolves tabletID's routing handle, consulting the LRU
// cache before treating the id itself as the routing address (a real
// deployment would fall through to the meta cache / master lookup).
func (m *Manager) ResolveTablet(ctx context.Context, tabletID string) (RemoteTablet, error) {
	if cached, ok := m.cache.Get(tabletID); ok {
		return cached, nil
	}
	resolved := RemoteTablet{TabletID: tabletID, Addr: tabletID}
	m.cache.Add(tabletID, resolved)
	return resolved, nil
}
