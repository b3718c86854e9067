package repository

import (
	"context"
	"errors"

	"paustdb/internal/model"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("repository closed")

// PointRepository defines data access for time-series points.
// Strictly persistence operations, no business logic.
type PointRepository interface {
	// PutBatch stores all records or none of them. Records with an existing ID overwrite it.
	PutBatch(ctx context.Context, recs []model.Record) error

	// Scan returns the metadata of points with q.Start <= ts < q.End that match the
	// owner/qualifier filters, ordered by row key.
	Scan(ctx context.Context, q model.RangeQuery) ([]model.Meta, error)

	// Get returns the records for ids in the given order. Unknown ids are skipped.
	Get(ctx context.Context, ids []model.RowKey) ([]model.Record, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
