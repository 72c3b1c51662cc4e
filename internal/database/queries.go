package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"distill/internal/domain"
)

const summaryColumns = "id, run_id, kind, handle, model, final_text, partial, chunk_count, metadata, created_at"

func (d *Database) SaveSummary(ctx context.Context, r *domain.SummaryResult) (int64, error) {
	if r == nil {
		return 0, errors.New("summary is nil")
	}

	metadata, err := json.Marshal(r.SourceMetadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := "insert into summaries " +
		"(run_id, kind, handle, model, final_text, partial, chunk_count, metadata, created_at) " +
		"values (?, ?, ?, ?, ?, ?, ?, ?, ?)"

	res, err := d.db.ExecContext(ctx, query,
		r.RunID,
		string(r.SourceKind),
		r.SourceHandle,
		r.Model,
		r.FinalText,
		r.Partial,
		r.ChunkCount,
		string(metadata),
		createdAt.UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return res.LastInsertId()
}

func (d *Database) GetSummary(ctx context.Context, id int64) (*domain.StoredSummary, error) {
	query := "select " + summaryColumns + " from summaries where id = ?"

	s, err := scanSummary(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("summary %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return s, nil
}

// ListSummaries returns the newest summaries first.
func (d *Database) ListSummaries(ctx context.Context, limit int) ([]domain.StoredSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := "select " + summaryColumns + " from summaries order by created_at desc, id desc limit ?"

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListSummaries")
		}
	}()

	var summaries []domain.StoredSummary
	for rows.Next() {
		s, scanErr := scanSummary(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}

		summaries = append(summaries, *s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return summaries, nil
}

// PruneSummaries deletes summaries created before the cutoff and reports how
// many were removed.
func (d *Database) PruneSummaries(ctx context.Context, before time.Time) (int64, error) {
	query := "delete from summaries where created_at < ?"

	res, err := d.db.ExecContext(ctx, query, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	return res.RowsAffected()
}

// AddWatch registers a source and returns its id. Adding the same source
// twice returns the existing id.
func (d *Database) AddWatch(ctx context.Context, kind domain.SourceKind, handle string) (int64, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return 0, errors.New("watch handle is empty")
	}

	if _, err := domain.ParseSourceKind(string(kind)); err != nil {
		return 0, err
	}

	query := "insert or ignore into watches (kind, handle) values (?, ?)"
	if _, err := d.db.ExecContext(ctx, query, string(kind), handle); err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	var id int64

	query = "select id from watches where kind = ? and handle = ?"
	if err := d.db.QueryRowContext(ctx, query, string(kind), handle).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}

	return id, nil
}

func (d *Database) ListWatches(ctx context.Context) ([]domain.Watch, error) {
	query := "select id, kind, handle, last_hash, last_run_at from watches order by id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "ListWatches")
		}
	}()

	var watches []domain.Watch
	for rows.Next() {
		var (
			w         domain.Watch
			kind      string
			lastRunAt int64
		)

		if err = rows.Scan(&w.ID, &kind, &w.Handle, &w.LastHash, &lastRunAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		w.Kind = domain.SourceKind(kind)
		if lastRunAt > 0 {
			w.LastRunAt = time.Unix(lastRunAt, 0).UTC()
		}

		watches = append(watches, w)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return watches, nil
}

func (d *Database) RemoveWatch(ctx context.Context, id int64) error {
	query := "delete from watches where id = ?"

	res, err := d.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("watch %d: %w", id, ErrNotFound)
	}

	return nil
}

func (d *Database) UpdateWatchHash(ctx context.Context, id int64, hash string, at time.Time) error {
	query := "update watches set last_hash = ?, last_run_at = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, hash, at.UTC().Unix(), id)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*domain.StoredSummary, error) {
	var (
		s         domain.StoredSummary
		kind      string
		metadata  string
		createdAt int64
	)

	if err := row.Scan(
		&s.ID,
		&s.RunID,
		&kind,
		&s.Handle,
		&s.Model,
		&s.FinalText,
		&s.Partial,
		&s.ChunkCount,
		&metadata,
		&createdAt,
	); err != nil {
		return nil, err
	}

	s.Kind = domain.SourceKind(kind)
	s.CreatedAt = time.Unix(createdAt, 0).UTC()

	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &s.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}

	return &s, nil
}
