// Package hlc provides the hybrid-logical clock consumed by the
// transaction coordinator. The coordinator treats the clock purely
// through the Clock interface; this package's Clock is a standalone
// stand-in for the server-shared clock that a real deployment would
// inject (see manager.TransactionManager.Clock).
package hlc

import (
	"fmt"
	"sync"
	"time"
)

// Timestamp is a hybrid time: a physical component in microseconds
// since the epoch paired with a logical tie-breaker, comparable and
// max-mergeable without exposing any particular wire packing.
type Timestamp struct {
	Physical int64
	Logical  int32
}

// Invalid is the zero-value sentinel used for "no timestamp known yet".
var Invalid = Timestamp{}

// Valid reports whether the timestamp has been sampled from a clock.
func (t Timestamp) Valid() bool {
	return t.Physical != 0
}

// Less reports whether t happened strictly before other.
func (t Timestamp) Less(other Timestamp) bool {
	if t.Physical != other.Physical {
		return t.Physical < other.Physical
	}
	return t.Logical < other.Logical
}

// Equal reports whether t and other name the same instant.
func (t Timestamp) Equal(other Timestamp) bool {
	return t.Physical == other.Physical && t.Logical == other.Logical
}

// Max returns the larger of t and other.
func (t Timestamp) Max(other Timestamp) Timestamp {
	if other.Less(t) {
		return t
	}
	return other
}

func (t Timestamp) String() string {
	return fmt.Sprintf("{ physical: %d logical: %d }", t.Physical, t.Logical)
}

// Clock is the narrow interface the coordinator needs from the
// process-shared hybrid clock: a monotonic reading and a way to fold
// an externally observed timestamp back in so the local clock never
// drifts behind anything it has seen over the wire.
type Clock interface {
	Now() Timestamp
	Update(Timestamp)
	MaxSkew() time.Duration
}

// PhysicalLogicalClock is a minimal, thread-safe Clock built on the
// host's wall clock plus a logical tie-breaker, advanced whenever Now
// observes a physical time not strictly greater than the last one
// recorded. Update only moves the recorded time forward to a later
// observed timestamp and otherwise leaves it unchanged.
type PhysicalLogicalClock struct {
	mux      sync.Mutex
	last     Timestamp
	maxSkew  time.Duration
	nowFunc  func() time.Time
}

// NewPhysicalLogicalClock constructs a Clock with the given configured
// maximum clock skew tolerance (see config.Config.MaxClockSkew).
func NewPhysicalLogicalClock(maxSkew time.Duration) *PhysicalLogicalClock {
	return &PhysicalLogicalClock{
		maxSkew: maxSkew,
		nowFunc: time.Now,
	}
}

// Now returns a timestamp guaranteed to be greater than every
// timestamp previously returned by Now or folded in via Update.
func (c *PhysicalLogicalClock) Now() Timestamp {
	c.mux.Lock()
	defer c.mux.Unlock()

	physical := c.nowFunc().UnixMicro()
	if physical > c.last.Physical {
		c.last = Timestamp{Physical: physical, Logical: 0}
	} else {
		c.last.Logical++
	}
	return c.last
}

// Update folds an externally observed timestamp into the clock so a
// later Now() never returns something the caller has already seen
// come back from a remote tablet.
func (c *PhysicalLogicalClock) Update(observed Timestamp) {
	if !observed.Valid() {
		return
	}
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.last.Less(observed) {
		c.last = observed
	}
}

// MaxSkew returns the configured maximum clock skew tolerance.
func (c *PhysicalLogicalClock) MaxSkew() time.Duration {
	return c.maxSkew
}
