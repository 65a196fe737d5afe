package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

const journalTable = "unit_events"

// PostgresJournalRepository implements journal.Repository using PostgreSQL
type PostgresJournalRepository struct {
	db *sql.DB
}

// NewPostgresJournalRepository creates a new PostgresJournalRepository
func NewPostgresJournalRepository(db *sql.DB) *PostgresJournalRepository {
	return &PostgresJournalRepository{db: db}
}

// JournalStats holds journal table statistics
type JournalStats struct {
	TotalEntries     int64            `json:"totalEntries"`
	EntriesByCause   map[string]int64 `json:"entriesByCause"`
	OpenConnections  int              `json:"openConnections"`
	InUseConnections int              `json:"inUseConnections"`
	IdleConnections  int              `json:"idleConnections"`
}

const insertEntryQuery = `
	INSERT INTO unit_events (
		event_id, group_name, unit_index, kind, from_state, to_state,
		cause, error, failures, frame, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (event_id) DO NOTHING
`

const selectEntryColumns = `
	SELECT event_id, group_name, unit_index, kind, from_state, to_state,
		   cause, error, failures, frame, recorded_at
	FROM unit_events
`

// Append stores an entry
func (r *PostgresJournalRepository) Append(ctx context.Context, e *journal.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, insertEntryQuery, entryArgs(e)...)
	monitoring.RecordDatabaseQuery("insert", journalTable, time.Since(start), err)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23502" {
			return fmt.Errorf("%w: %s", journal.ErrInvalidEntry, pqErr.Column)
		}
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// FindRecent finds recent entries
func (r *PostgresJournalRepository) FindRecent(ctx context.Context, limit int) ([]*journal.Entry, error) {
	query := selectEntryColumns + `
		ORDER BY recorded_at DESC
		LIMIT $1
	`
	return r.query(ctx, "select_recent", query, limit)
}

// FindByGroup finds recent entries of a group
func (r *PostgresJournalRepository) FindByGroup(ctx context.Context, group string, limit int) ([]*journal.Entry, error) {
	query := selectEntryColumns + `
		WHERE group_name = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	return r.query(ctx, "select_group", query, group, limit)
}

// Count returns the number of stored entries
func (r *PostgresJournalRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	start := time.Now()
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM unit_events").Scan(&count)
	monitoring.RecordDatabaseQuery("count", journalTable, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return count, nil
}

// GetStats returns journal table statistics
func (r *PostgresJournalRepository) GetStats(ctx context.Context) (*JournalStats, error) {
	stats := &JournalStats{EntriesByCause: make(map[string]int64)}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalEntries = total

	rows, err := r.db.QueryContext(ctx, "SELECT cause, COUNT(*) FROM unit_events GROUP BY cause")
	if err != nil {
		return nil, fmt.Errorf("failed to get entries by cause: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cause string
		var count int64
		if err := rows.Scan(&cause, &count); err == nil {
			stats.EntriesByCause[cause] = count
		}
	}

	dbStats := r.db.Stats()
	stats.OpenConnections = dbStats.OpenConnections
	stats.InUseConnections = dbStats.InUse
	stats.IdleConnections = dbStats.Idle

	return stats, rows.Err()
}

// DeleteOlderThan removes entries recorded before the cutoff
func (r *PostgresJournalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	result, err := r.db.ExecContext(ctx, "DELETE FROM unit_events WHERE recorded_at < $1", cutoff)
	monitoring.RecordDatabaseQuery("delete", journalTable, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete journal entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresJournalRepository) query(ctx context.Context, queryType, query string, args ...interface{}) ([]*journal.Entry, error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	monitoring.RecordDatabaseQuery(queryType, journalTable, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*journal.Entry, 0)
	for rows.Next() {
		var e journal.Entry
		var errText sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Group,
			&e.Index,
			&e.Kind,
			&e.From,
			&e.To,
			&e.Cause,
			&errText,
			&e.Failures,
			&e.Frame,
			&e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.Error = errText.String
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

func entryArgs(e *journal.Entry) []interface{} {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	return []interface{}{
		e.ID,
		e.Group,
		e.Index,
		e.Kind,
		e.From,
		e.To,
		e.Cause,
		errText,
		e.Failures,
		int64(e.Frame),
		e.RecordedAt,
	}
}
