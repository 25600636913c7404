package idcodec

import (
	"fmt"
	"sync"
)

// Registry tracks which message id is already claimed within each codec
// group (spec §5: "a schema load must reject two messages in the same
// group declaring the same id"). Ids are scoped per group: the same
// numeric id may be reused by unrelated groups (e.g. "v3" and
// "legacy-ccl") since they are never decoded against each other.
type Registry struct {
	mu     sync.Mutex
	claims map[string]map[uint32]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{claims: make(map[string]map[uint32]string)}
}

// Claim records that messageName owns id within group, failing if another
// message in the same group already claimed it.
func (r *Registry) Claim(group string, id uint32, messageName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byGroup, ok := r.claims[group]
	if !ok {
		byGroup = make(map[uint32]string)
		r.claims[group] = byGroup
	}
	if existing, taken := byGroup[id]; taken && existing != messageName {
		return fmt.Errorf("idcodec: id %d in group %q already claimed by %q, cannot also claim for %q", id, group, existing, messageName)
	}
	byGroup[id] = messageName
	return nil
}

// Release forgets messageName's claim, used when a schema is reloaded.
func (r *Registry) Release(group string, id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims[group], id)
}
