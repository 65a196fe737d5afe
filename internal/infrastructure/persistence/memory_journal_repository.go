package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/personal/adunit-lifecycle/internal/domain/journal"
)

// MemoryJournalRepository implements journal.Repository using in-memory storage.
// It keeps at most capacity entries, dropping the oldest.
type MemoryJournalRepository struct {
	entries  []*journal.Entry
	ids      map[string]struct{}
	capacity int
	mutex    sync.RWMutex
}

// NewMemoryJournalRepository creates a new in-memory journal repository
func NewMemoryJournalRepository(capacity int) *MemoryJournalRepository {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryJournalRepository{
		ids:      make(map[string]struct{}),
		capacity: capacity,
	}
}

// Append stores an entry
func (r *MemoryJournalRepository) Append(ctx context.Context, e *journal.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.ids[e.ID]; exists {
		return nil
	}
	r.entries = append(r.entries, e)
	r.ids[e.ID] = struct{}{}

	if overflow := len(r.entries) - r.capacity; overflow > 0 {
		for _, old := range r.entries[:overflow] {
			delete(r.ids, old.ID)
		}
		r.entries = append([]*journal.Entry(nil), r.entries[overflow:]...)
	}
	return nil
}

// FindRecent finds recent entries
func (r *MemoryJournalRepository) FindRecent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	return r.find(func(*journal.Entry) bool { return true }, limit), nil
}

// FindByGroup finds recent entries of a group
func (r *MemoryJournalRepository) FindByGroup(ctx context.Context, group string, limit int) ([]*journal.Entry, error) {
	return r.find(func(e *journal.Entry) bool { return e.Group == group }, limit), nil
}

// Count returns the number of stored entries
func (r *MemoryJournalRepository) Count(ctx context.Context) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return int64(len(r.entries)), nil
}

// CleanupOlderThan removes entries older than the specified duration
func (r *MemoryJournalRepository) CleanupOlderThan(maxAge time.Duration) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	threshold := time.Now().Add(-maxAge)
	kept := r.entries[:0]
	count := 0
	for _, e := range r.entries {
		if e.RecordedAt.Before(threshold) {
			delete(r.ids, e.ID)
			count++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return count
}

func (r *MemoryJournalRepository) find(match func(*journal.Entry) bool, limit int) []*journal.Entry {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*journal.Entry, 0)
	for _, e := range r.entries {
		if match(e) {
			result = append(result, e)
		}
	}

	// Sort by recording time (most recent first)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].RecordedAt.After(result[j].RecordedAt)
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result
}
