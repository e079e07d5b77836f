/*
cache.go - TTL cache over configuration reads

PURPOSE:
  Offices, clinicians and rules change rarely but are read on every
  resolution, so the engine wraps its Repository in a TTL cache. Reads
  inside the TTL window can lag a just-written configuration change;
  callers that mutate configuration must call the matching Invalidate
  method immediately afterwards.

  Appointment reads and all writes pass straight through - only
  configuration is cached.
*/
package scheduling

import (
	"context"
	"sync"
	"time"
)

// DefaultConfigTTL is how long cached configuration stays fresh.
const DefaultConfigTTL = 5 * time.Minute

// CachedRepository decorates a Repository with TTL caching of the three
// configuration reads.
type CachedRepository struct {
	Repository

	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	offices    cachedValue[[]Office]
	clinicians cachedValue[[]Clinician]
	rules      cachedValue[[]AssignmentRule]
}

type cachedValue[T any] struct {
	value     T
	fetchedAt time.Time
	valid     bool
}

// NewCachedRepository wraps repo with the given TTL. A zero ttl uses
// DefaultConfigTTL.
func NewCachedRepository(repo Repository, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	return &CachedRepository{Repository: repo, ttl: ttl, now: time.Now}
}

func (c *CachedRepository) fresh(at time.Time) bool {
	return c.now().Sub(at) < c.ttl
}

// ActiveOffices returns the cached office list, refreshing on expiry.
func (c *CachedRepository) ActiveOffices(ctx context.Context) ([]Office, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offices.valid && c.fresh(c.offices.fetchedAt) {
		return c.offices.value, nil
	}
	offices, err := c.Repository.ActiveOffices(ctx)
	if err != nil {
		return nil, err
	}
	c.offices = cachedValue[[]Office]{value: offices, fetchedAt: c.now(), valid: true}
	return offices, nil
}

// Clinicians returns the cached clinician list, refreshing on expiry.
func (c *CachedRepository) Clinicians(ctx context.Context) ([]Clinician, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clinicians.valid && c.fresh(c.clinicians.fetchedAt) {
		return c.clinicians.value, nil
	}
	clinicians, err := c.Repository.Clinicians(ctx)
	if err != nil {
		return nil, err
	}
	c.clinicians = cachedValue[[]Clinician]{value: clinicians, fetchedAt: c.now(), valid: true}
	return clinicians, nil
}

// AssignmentRules returns the cached rule table, refreshing on expiry.
func (c *CachedRepository) AssignmentRules(ctx context.Context) ([]AssignmentRule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rules.valid && c.fresh(c.rules.fetchedAt) {
		return c.rules.value, nil
	}
	rules, err := c.Repository.AssignmentRules(ctx)
	if err != nil {
		return nil, err
	}
	c.rules = cachedValue[[]AssignmentRule]{value: rules, fetchedAt: c.now(), valid: true}
	return rules, nil
}

// InvalidateOffices drops the cached office list.
func (c *CachedRepository) InvalidateOffices() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offices.valid = false
}

// InvalidateClinicians drops the cached clinician list.
func (c *CachedRepository) InvalidateClinicians() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clinicians.valid = false
}

// InvalidateAll drops every cached configuration value. Call after any
// configuration mutation.
func (c *CachedRepository) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offices.valid = false
	c.clinicians.valid = false
	c.rules.valid = false
}
