package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"paustdb/internal/model"
	"paustdb/internal/repository"
)

// maxIDsPerQuery bounds the IN list of a single Get statement.
const maxIDsPerQuery = 500

// PointPostgres is a PostgreSQL implementation of repository.PointRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type PointPostgres struct {
	db *sql.DB
}

// NewPointPostgres creates a new PointPostgres repository.
func NewPointPostgres(db *sql.DB) *PointPostgres {
	return &PointPostgres{db: db}
}

var _ repository.PointRepository = (*PointPostgres)(nil)

// PutBatch upserts every record inside one transaction.
func (r *PointPostgres) PutBatch(ctx context.Context, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}

	const q = `
		INSERT INTO points (id, ts, owner_id, qualifier, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET ts = EXCLUDED.ts, owner_id = EXCLUDED.owner_id, qualifier = EXCLUDED.qualifier, data = EXCLUDED.data
	`
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		data := rec.Data
		if data == nil {
			data = []byte{}
		}
		if _, err := stmt.ExecContext(ctx,
			[]byte(rec.ID),
			int64(rec.Timestamp),
			rec.OwnerID,
			rec.Qualifier,
			data,
		); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Scan returns metadata in [q.Start, q.End) ordered by row key.
func (r *PointPostgres) Scan(ctx context.Context, q model.RangeQuery) ([]model.Meta, error) {
	const qScan = `
		SELECT id, ts, owner_id, qualifier
		FROM points
		WHERE ts >= $1 AND ts < $2
		  AND ($3 = '' OR owner_id = $3)
		  AND ($4 = '' OR qualifier = $4)
		ORDER BY id
	`
	items := make([]model.Meta, 0)
	if q.Start >= q.End {
		return items, nil
	}

	rows, err := r.db.QueryContext(ctx, qScan, int64(q.Start), int64(q.End), q.OwnerID, q.Qualifier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m  model.Meta
			id []byte
			ts int64
		)
		if err := rows.Scan(&id, &ts, &m.OwnerID, &m.Qualifier); err != nil {
			return nil, err
		}
		m.ID = model.RowKey(id)
		m.Timestamp = uint64(ts)
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get fetches records by id and returns them in request order.
func (r *PointPostgres) Get(ctx context.Context, ids []model.RowKey) ([]model.Record, error) {
	found := make(map[string]model.Record, len(ids))

	for start := 0; start < len(ids); start += maxIDsPerQuery {
		end := min(start+maxIDsPerQuery, len(ids))
		chunk := ids[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
			args[i] = []byte(id)
		}
		q := "SELECT id, ts, owner_id, qualifier, data FROM points WHERE id IN (" + strings.Join(placeholders, ", ") + ")"

		if err := r.collect(ctx, q, args, found); err != nil {
			return nil, err
		}
	}

	items := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := found[string(id)]; ok {
			items = append(items, rec)
		}
	}
	return items, nil
}

func (r *PointPostgres) collect(ctx context.Context, q string, args []any, into map[string]model.Record) error {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec model.Record
			id  []byte
			ts  int64
		)
		if err := rows.Scan(&id, &ts, &rec.OwnerID, &rec.Qualifier, &rec.Data); err != nil {
			return err
		}
		rec.ID = model.RowKey(id)
		rec.Timestamp = uint64(ts)
		into[string(id)] = rec
	}
	return rows.Err()
}

// Ping checks database connectivity.
func (r *PointPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (r *PointPostgres) Close() error {
	return r.db.Close()
}
