package persistence

import (
	"sync"

	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

// MemoryUnitRepository is the in-memory unit registry. Units are kept in
// creation order.
type MemoryUnitRepository struct {
	units []*unit.Unit
	mu    sync.RWMutex
}

// NewMemoryUnitRepository creates a new in-memory unit registry
func NewMemoryUnitRepository() *MemoryUnitRepository {
	return &MemoryUnitRepository{}
}

// Add registers a unit
func (r *MemoryUnitRepository) Add(u *unit.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.units {
		if existing == u || (existing.Group() == u.Group() && existing.Index() == u.Index()) {
			return unit.ErrUnitAlreadyExists
		}
	}
	r.units = append(r.units, u)
	return nil
}

// Remove unregisters a unit
func (r *MemoryUnitRepository) Remove(u *unit.Unit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.units {
		if existing == u {
			r.units = append(r.units[:i], r.units[i+1:]...)
			return true
		}
	}
	return false
}

// Find retrieves a unit by group and index
func (r *MemoryUnitRepository) Find(group string, index int) *unit.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.units {
		if u.Group() == group && u.Index() == index {
			return u
		}
	}
	return nil
}

// FindByGroup retrieves the units of a group
func (r *MemoryUnitRepository) FindByGroup(group string) []*unit.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*unit.Unit, 0)
	for _, u := range r.units {
		if u.Group() == group {
			result = append(result, u)
		}
	}
	return result
}

// FindByHandle retrieves the unit owning a provider handle
func (r *MemoryUnitRepository) FindByHandle(h unit.Handle) *unit.Unit {
	if h == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.units {
		if u.Handle() == h {
			return u
		}
	}
	return nil
}

// All retrieves every unit
func (r *MemoryUnitRepository) All() []*unit.Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*unit.Unit, len(r.units))
	copy(result, r.units)
	return result
}

// NextIndex returns the index the next unit of group receives
func (r *MemoryUnitRepository) NextIndex(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := 0
	for _, u := range r.units {
		if u.Group() == group && u.Index() >= next {
			next = u.Index() + 1
		}
	}
	return next
}

// Count returns the number of registered units
func (r *MemoryUnitRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.units)
}

// Clear unregisters every unit
func (r *MemoryUnitRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units = nil
}
