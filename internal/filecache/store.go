package filecache

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultBatchSize bounds the rows written per transaction.
const DefaultBatchSize = 1000

const recordColumns = "src_path, dst_path, hash, mtime, size, config"

const upsertSQL = `INSERT INTO files (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(src_path) DO UPDATE SET
    dst_path = excluded.dst_path,
    hash = excluded.hash,
    mtime = excluded.mtime,
    size = excluded.size,
    config = excluded.config`

// Load reads every record keyed by source path.
func (s *Store) Load(ctx context.Context) (map[string]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM files")
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]Record)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records[rec.SourcePath] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Get returns the record for sourcePath, or nil when none exists.
func (s *Store) Get(ctx context.Context, sourcePath string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM files WHERE src_path = ?", sourcePath)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertBatch inserts or overwrites records in a single transaction. Callers
// bound the batch; see BatchWriter.
func (s *Store) UpsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin upsert tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, upsertSQL)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx,
				rec.SourcePath,
				rec.DestinationPath,
				rec.Hash,
				rec.ModTime.UnixNano(),
				rec.Size,
				rec.Config,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", rec.SourcePath, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit upsert: %w", err)
		}
		return nil
	})
}

// DeleteBatch removes the records for the given source paths in a single
// transaction. Unknown paths are ignored.
func (s *Store) DeleteBatch(ctx context.Context, sourcePaths []string) (int64, error) {
	if len(sourcePaths) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		removed = 0
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin delete tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, "DELETE FROM files WHERE src_path = ?")
		if err != nil {
			return fmt.Errorf("prepare delete: %w", err)
		}
		defer stmt.Close()

		for _, path := range sourcePaths {
			res, err := stmt.ExecContext(ctx, path)
			if err != nil {
				return fmt.Errorf("delete %s: %w", path, err)
			}
			if n, err := res.RowsAffected(); err == nil {
				removed += n
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit delete: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Summary groups records by processing tag, largest group first.
func (s *Store) Summary(ctx context.Context) ([]TagSummary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT config, COUNT(*), COALESCE(SUM(size), 0) FROM files GROUP BY config ORDER BY COUNT(*) DESC, config")
	if err != nil {
		return nil, fmt.Errorf("summarize records: %w", err)
	}
	defer rows.Close()

	var out []TagSummary
	for rows.Next() {
		var entry TagSummary
		if err := rows.Scan(&entry.Config, &entry.Files, &entry.Bytes); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec   Record
		mtime int64
	)
	if err := scanner.Scan(
		&rec.SourcePath,
		&rec.DestinationPath,
		&rec.Hash,
		&mtime,
		&rec.Size,
		&rec.Config,
	); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	rec.ModTime = time.Unix(0, mtime)
	return rec, nil
}
