// Package registry implements the involved-tablet registry: a map
// from tablet id to whether that tablet's server already has the
// transaction's full parameters. A Registry has no internal mutex of
// its own — it is always manipulated while the owning transaction
// holds its own mutex.
package registry

// TabletState tracks whether a tablet's server has already been told
// the transaction's full metadata.
type TabletState struct {
	HasParameters bool
}

// Registry maps tablet id to TabletState.
type Registry struct {
	tablets map[string]*TabletState
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{tablets: make(map[string]*TabletState)}
}

// EnsureTablets inserts a fresh, has_parameters=false entry for every
// tablet id not already present. It reports whether any tablet in the
// set is new, or pre-existing with has_parameters still false — the
// wire-economy signal that decides whether a Prepare call must carry
// full metadata.
func (r *Registry) EnsureTablets(tabletIDs []string) (needsFullMetadata bool) {
	for _, id := range tabletIDs {
		state, ok := r.tablets[id]
		if !ok {
			r.tablets[id] = &TabletState{}
			needsFullMetadata = true
			continue
		}
		if !state.HasParameters {
			needsFullMetadata = true
		}
	}
	return needsFullMetadata
}

// MarkHasParameters flips has_parameters to true for tabletID. A
// tablet that is not yet tracked (one Prepare did not first register)
// is inserted already marked, so it still counts as involved; entries
// are never removed and the flag never goes back to false.
func (r *Registry) MarkHasParameters(tabletID string) {
	state, ok := r.tablets[tabletID]
	if !ok {
		state = &TabletState{}
		r.tablets[tabletID] = state
	}
	state.HasParameters = true
}

// TabletIDs returns every involved tablet id, in no particular order.
func (r *Registry) TabletIDs() []string {
	ids := make([]string, 0, len(r.tablets))
	for id := range r.tablets {
		ids = append(ids, id)
	}
	return ids
}

// Len reports how many tablets are involved so far.
func (r *Registry) Len() int {
	return len(r.tablets)
}

// HasParameters reports whether tabletID is tracked and already has
// parameters, for tests and diagnostics.
func (r *Registry) HasParameters(tabletID string) bool {
	state, ok := r.tablets[tabletID]
	return ok && state.HasParameters
}

// Snapshot is the wire shape a registry merges into / out of.
type Snapshot struct {
	TabletID      string
	HasParameters bool
}

// Export dumps the registry's current contents as a list of
// snapshots, used by FinishChild to hand a child's tablet
// contributions back to its parent.
func (r *Registry) Export() []Snapshot {
	out := make([]Snapshot, 0, len(r.tablets))
	for id, state := range r.tablets {
		out = append(out, Snapshot{TabletID: id, HasParameters: state.HasParameters})
	}
	return out
}

// Merge ORs each snapshot's has_parameters into this registry,
// inserting a fresh entry for any tablet id not yet seen. Used by
// ApplyChildResult.
func (r *Registry) Merge(snapshots []Snapshot) {
	for _, snap := range snapshots {
		state, ok := r.tablets[snap.TabletID]
		if !ok {
			state = &TabletState{}
			r.tablets[snap.TabletID] = state
		}
		state.HasParameters = state.HasParameters || snap.HasParameters
	}
}
