package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"paustdb/internal/model"
	"paustdb/internal/repository"
)

// SQLite caps bound parameters per statement; stay well below the limit.
const maxIDsPerQuery = 500

// PointSQLite stores points in an embedded SQLite database.
// Writes serialize on the single connection opened by database.NewSQLite.
type PointSQLite struct {
	db *sql.DB
}

// NewPointSQLite creates a new PointSQLite repository.
func NewPointSQLite(db *sql.DB) *PointSQLite {
	return &PointSQLite{db: db}
}

var _ repository.PointRepository = (*PointSQLite)(nil)

func (r *PointSQLite) PutBatch(ctx context.Context, recs []model.Record) error {
	if len(recs) == 0 {
		return nil
	}

	const q = `
		INSERT INTO points (id, ts, owner_id, qualifier, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET ts = excluded.ts, owner_id = excluded.owner_id, qualifier = excluded.qualifier, data = excluded.data
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
		if _, err := stmt.ExecContext(ctx, []byte(rec.ID), int64(rec.Timestamp), rec.OwnerID, rec.Qualifier, data); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PointSQLite) Scan(ctx context.Context, q model.RangeQuery) ([]model.Meta, error) {
	const qScan = `
		SELECT id, ts, owner_id, qualifier
		FROM points
		WHERE ts >= ? AND ts < ?
		  AND (? = '' OR owner_id = ?)
		  AND (? = '' OR qualifier = ?)
		ORDER BY id
	`
	items := make([]model.Meta, 0)
	if q.Start >= q.End {
		return items, nil
	}

	rows, err := r.db.QueryContext(ctx, qScan,
		int64(q.Start), int64(q.End),
		q.OwnerID, q.OwnerID,
		q.Qualifier, q.Qualifier,
	)
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

func (r *PointSQLite) Get(ctx context.Context, ids []model.RowKey) ([]model.Record, error) {
	found := make(map[string]model.Record, len(ids))

	for start := 0; start < len(ids); start += maxIDsPerQuery {
		chunk := ids[start:min(start+maxIDsPerQuery, len(ids))]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = []byte(id)
		}
		q := "SELECT id, ts, owner_id, qualifier, data FROM points WHERE id IN (?" + strings.Repeat(", ?", len(chunk)-1) + ")"

		rows, err := r.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var (
				rec model.Record
				id  []byte
				ts  int64
			)
			if err := rows.Scan(&id, &ts, &rec.OwnerID, &rec.Qualifier, &rec.Data); err != nil {
				rows.Close()
				return nil, err
			}
			rec.ID = model.RowKey(id)
			rec.Timestamp = uint64(ts)
			found[string(id)] = rec
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
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

func (r *PointSQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PointSQLite) Close() error {
	return r.db.Close()
}
