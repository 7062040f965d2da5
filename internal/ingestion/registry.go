package ingestion

import "sync"

// Registry is the in-memory store of the latest pool snapshot per pool.
// Writers are the NATS snapshot consumer; readers are quote handlers.
// Last write wins: snapshots carry their producer timestamp, and stale
// deliveries (older than what is already stored) are ignored.
type Registry struct {
	mu    sync.RWMutex
	pools map[string]PoolSnapshot
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pools: make(map[string]PoolSnapshot)}
}

// Put stores a snapshot unless a newer one is already present. Returns
// whether the snapshot was accepted.
func (r *Registry) Put(snap PoolSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pools[snap.PoolID]; ok && cur.ObservedAt.After(snap.ObservedAt) {
		return false
	}
	r.pools[snap.PoolID] = snap
	return true
}

// Get returns the latest snapshot for a pool.
func (r *Registry) Get(poolID string) (PoolSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.pools[poolID]
	return snap, ok
}

// Len returns the number of pools tracked.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Pools returns the tracked pool IDs.
func (r *Registry) Pools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.pools))
	for id := range r.pools {
		ids = append(ids, id)
	}
	return ids
}
