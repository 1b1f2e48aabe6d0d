// Package registry builds the static, read-only lookup tables derived from
// the loaded topology: dao slug to dao id, and (dao slug, governor variant,
// network) to governor id. Indexers consult these instead of querying the database
// on every event so hot loops stay allocation-free.
package registry

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"daoindexer/config"
)

// Registry is a concurrency-safe lookup filled at startup (PutDAO,
// PutGovernor) from the static topology and the ids persistence assigned on first
// upsert of each DAO/Governor row.
type Registry struct {
	mu         sync.RWMutex
	daoIDs     map[string]uuid.UUID
	governorID map[governorKey]uuid.UUID
}

type governorKey struct {
	daoSlug string
	variant string
	network string
}

// New builds an empty registry sized for the given topology.
func New(cfg *config.Config) *Registry {
	return &Registry{
		daoIDs:     make(map[string]uuid.UUID, len(cfg.DAOs)),
		governorID: make(map[governorKey]uuid.UUID, len(cfg.Governors)),
	}
}

// PutDAO records the persisted id for a DAO slug.
func (r *Registry) PutDAO(slug string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.daoIDs[slug] = id
}

// DAO returns the persisted id for a DAO slug.
func (r *Registry) DAO(slug string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.daoIDs[slug]
	return id, ok
}

// MustDAO panics if the DAO slug was never registered. Only safe to call
// after startup registration has completed.
func (r *Registry) MustDAO(slug string) uuid.UUID {
	id, ok := r.DAO(slug)
	if !ok {
		panic(fmt.Sprintf("registry: dao %q not registered", slug))
	}
	return id
}

// PutGovernor records the persisted id for a (dao, variant, network) triple.
func (r *Registry) PutGovernor(daoSlug, variant, network string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.governorID[governorKey{daoSlug, variant, network}] = id
}

// Governor returns the persisted id for a (dao, variant, network) triple.
func (r *Registry) Governor(daoSlug, variant, network string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.governorID[governorKey{daoSlug, variant, network}]
	return id, ok
}
