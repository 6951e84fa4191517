// Package readpoint implements the consistent read point every
// transaction carries: a chosen read time plus, per tablet, the local
// uncertainty-window limit the coordinator has been told about. A
// ReadPoint has no internal synchronization: it is always manipulated
// while the owning transaction holds its own mutex.
package readpoint

import (
	"github.com/cedarsql/txncoord/hlc"
	"github.com/cedarsql/txncoord/wire"
)

// ReadPoint tracks the chosen read time and, per tablet, the local
// uncertainty-window limit the coordinator has been told about.
type ReadPoint struct {
	clock clock

	readTime        hlc.Timestamp
	localLimits     map[string]hlc.Timestamp
	restartRequired bool
}

// clock is the narrow slice of hlc.Clock a ReadPoint needs to sample
// the current time; kept as its own interface so tests can fake it
// without standing up a full hlc.Clock.
type clock interface {
	Now() hlc.Timestamp
}

// New builds a ReadPoint that samples from clk on demand.
func New(clk clock) *ReadPoint {
	return &ReadPoint{
		clock:       clk,
		localLimits: make(map[string]hlc.Timestamp),
	}
}

// SetCurrentReadTime samples the clock and adopts it as the read time,
// used for SNAPSHOT_ISOLATION transactions at construction.
func (r *ReadPoint) SetCurrentReadTime() {
	r.readTime = r.clock.Now()
}

// SetReadTime adopts an explicit read time and local-limit set,
// used when importing a child transaction's descriptor.
func (r *ReadPoint) SetReadTime(readTime hlc.Timestamp, localLimits map[string]hlc.Timestamp) {
	r.readTime = readTime
	r.localLimits = cloneLimits(localLimits)
}

// GetReadTime returns the currently chosen read time.
func (r *ReadPoint) GetReadTime() hlc.Timestamp {
	return r.readTime
}

// IsRestartRequired reports whether a server has indicated the chosen
// read time crossed uncertainty for some tablet.
func (r *ReadPoint) IsRestartRequired() bool {
	return r.restartRequired
}

// RequireRestart flags that the chosen read time must be resampled,
// e.g. because a tablet server's response crossed uncertainty.
func (r *ReadPoint) RequireRestart() {
	r.restartRequired = true
}

// Restart resamples the read time from the clock and clears both the
// restart flag and every per-tablet local limit.
func (r *ReadPoint) Restart() {
	r.readTime = r.clock.Now()
	r.localLimits = make(map[string]hlc.Timestamp)
	r.restartRequired = false
}

// LocalLimit returns the local limit recorded for tablet, if any.
func (r *ReadPoint) LocalLimit(tabletID string) (hlc.Timestamp, bool) {
	limit, ok := r.localLimits[tabletID]
	return limit, ok
}

// UpdateLocalLimit records, or raises, the local limit for tabletID to
// at least limit. Per invariant, local_limits[t] >= read_time always.
func (r *ReadPoint) UpdateLocalLimit(tabletID string, limit hlc.Timestamp) {
	if limit.Less(r.readTime) {
		limit = r.readTime
	}
	if existing, ok := r.localLimits[tabletID]; ok {
		r.localLimits[tabletID] = existing.Max(limit)
		return
	}
	r.localLimits[tabletID] = limit
}

// PrepareChildTransactionData writes the read time and local limits
// into a child descriptor for export via PrepareChild.
func (r *ReadPoint) PrepareChildTransactionData(out *wire.ChildTransactionData) {
	out.ReadTime = r.readTime
	out.LocalLimits = cloneLimits(r.localLimits)
}

// FinishChildTransactionResult writes this (child) read point's
// updated limits and restart signal into a result descriptor, for
// FinishChild to hand back to the parent.
func (r *ReadPoint) FinishChildTransactionResult(out *wire.ChildTransactionResult) {
	out.ReadTime = r.readTime
	out.LocalLimits = cloneLimits(r.localLimits)
	out.RestartRequired = r.restartRequired
}

// ApplyChildTransactionResult folds a child's local limits and restart
// signal back into this (parent) read point: per-tablet limits take
// the element-wise maximum, restart_required is OR-ed. Associative and
// commutative over disjoint child results, so applying several
// children in any order converges to the same parent state.
func (r *ReadPoint) ApplyChildTransactionResult(result wire.ChildTransactionResult) {
	for tabletID, limit := range result.LocalLimits {
		if existing, ok := r.localLimits[tabletID]; ok {
			r.localLimits[tabletID] = existing.Max(limit)
		} else {
			r.localLimits[tabletID] = limit
		}
	}
	r.restartRequired = r.restartRequired || result.RestartRequired
}

func cloneLimits(in map[string]hlc.Timestamp) map[string]hlc.Timestamp {
	out := make(map[string]hlc.Timestamp, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
