package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/internal/domain/journal"
)

func entryAt(group string, at time.Time) *journal.Entry {
	e := journal.NewEntry(group, 0, "banner", "none", "loading", "load", 1)
	e.RecordedAt = at
	return e
}

func TestMemoryJournalRepository_AppendAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJournalRepository(10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := entryAt("menu", base)
	second := entryAt("shop", base.Add(time.Second))
	third := entryAt("menu", base.Add(2*time.Second))
	for _, e := range []*journal.Entry{first, second, third} {
		require.NoError(t, repo.Append(ctx, e))
	}
	require.NoError(t, repo.Append(ctx, first), "appending an existing id is a no-op")

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []*journal.Entry{third, second}, recent)

	menu, err := repo.FindByGroup(ctx, "menu", 0)
	require.NoError(t, err)
	assert.Equal(t, []*journal.Entry{third, first}, menu)
}

func TestMemoryJournalRepository_RejectsInvalid(t *testing.T) {
	repo := NewMemoryJournalRepository(10)
	err := repo.Append(context.Background(), &journal.Entry{ID: "x"})
	assert.ErrorIs(t, err, journal.ErrInvalidEntry)
}

func TestMemoryJournalRepository_DropsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJournalRepository(2)
	base := time.Now()

	oldest := entryAt("menu", base)
	require.NoError(t, repo.Append(ctx, oldest))
	require.NoError(t, repo.Append(ctx, entryAt("menu", base.Add(time.Second))))
	require.NoError(t, repo.Append(ctx, entryAt("menu", base.Add(2*time.Second))))

	all, _ := repo.FindRecent(ctx, 0)
	assert.Len(t, all, 2)
	assert.NotContains(t, all, oldest)

	// the evicted id can be stored again
	require.NoError(t, repo.Append(ctx, oldest))
}

func TestMemoryJournalRepository_CleanupOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryJournalRepository(10)
	require.NoError(t, repo.Append(ctx, entryAt("menu", time.Now().Add(-2*time.Hour))))
	require.NoError(t, repo.Append(ctx, entryAt("menu", time.Now())))

	assert.Equal(t, 1, repo.CleanupOlderThan(time.Hour))
	count, _ := repo.Count(ctx)
	assert.Equal(t, int64(1), count)
}
