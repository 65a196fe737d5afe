package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded lifecycle change. Entries are append-only audit
// records; nothing reads them back to restore unit state.
type Entry struct {
	ID         string    `json:"id"`
	Group      string    `json:"group"`
	Index      int       `json:"index"`
	Kind       string    `json:"kind"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Cause      string    `json:"cause"`
	Error      string    `json:"error,omitempty"`
	Failures   int       `json:"failures"`
	Frame      uint64    `json:"frame"`
	RecordedAt time.Time `json:"recordedAt"`
}

// NewEntry creates an entry with a fresh ID
func NewEntry(group string, index int, kind, from, to, cause string, frame uint64) *Entry {
	return &Entry{
		ID:         uuid.New().String(),
		Group:      group,
		Index:      index,
		Kind:       kind,
		From:       from,
		To:         to,
		Cause:      cause,
		Frame:      frame,
		RecordedAt: time.Now().UTC(),
	}
}

// Repository defines the interface for journal persistence
type Repository interface {
	// Append stores an entry. Appending an existing ID is a no-op.
	Append(ctx context.Context, e *Entry) error

	// FindRecent returns the most recent entries, newest first
	FindRecent(ctx context.Context, limit int) ([]*Entry, error)

	// FindByGroup returns the most recent entries of a group, newest first
	FindByGroup(ctx context.Context, group string, limit int) ([]*Entry, error)

	// Count returns the total number of entries
	Count(ctx context.Context) (int64, error)
}

// Publisher ships entries to out-of-process consumers
type Publisher interface {
	Publish(ctx context.Context, e *Entry) error
}
