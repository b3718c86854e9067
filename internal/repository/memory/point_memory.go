package memory

import (
	"context"
	"sync"

	"github.com/tidwall/btree"

	"paustdb/internal/model"
	"paustdb/internal/repository"
)

type entry struct {
	ownerID   string
	qualifier string
	data      []byte
}

// PointMemory keeps points in an in-memory B-tree keyed by row key.
// Byte order of the key equals time order, so range scans walk the tree in order.
type PointMemory struct {
	mu     sync.RWMutex
	rows   *btree.Map[string, entry]
	closed bool
}

// NewPointMemory creates an empty in-memory repository.
func NewPointMemory() *PointMemory {
	return &PointMemory{
		rows: btree.NewMap[string, entry](0),
	}
}

var _ repository.PointRepository = (*PointMemory)(nil)

// PutBatch inserts the records under a single write lock.
func (r *PointMemory) PutBatch(ctx context.Context, recs []model.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return repository.ErrClosed
	}

	for _, rec := range recs {
		data := make([]byte, len(rec.Data))
		copy(data, rec.Data)
		r.rows.Set(string(rec.ID), entry{
			ownerID:   rec.OwnerID,
			qualifier: rec.Qualifier,
			data:      data,
		})
	}
	return nil
}

// Scan walks the tree from the start bound until the first key at or past the end bound.
func (r *PointMemory) Scan(ctx context.Context, q model.RangeQuery) ([]model.Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, repository.ErrClosed
	}

	out := make([]model.Meta, 0)
	if q.Start >= q.End {
		return out, nil
	}

	end := string(model.TimeBound(q.End))
	r.rows.Ascend(string(model.TimeBound(q.Start)), func(key string, e entry) bool {
		if key >= end {
			return false
		}
		id := model.RowKey(key)
		m := model.Meta{
			ID:        id,
			Timestamp: id.Timestamp(),
			OwnerID:   e.ownerID,
			Qualifier: e.qualifier,
		}
		if q.Matches(m) {
			out = append(out, m)
		}
		return true
	})
	return out, nil
}

// Get looks up each id in order.
func (r *PointMemory) Get(ctx context.Context, ids []model.RowKey) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, repository.ErrClosed
	}

	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		e, ok := r.rows.Get(string(id))
		if !ok {
			continue
		}
		data := make([]byte, len(e.data))
		copy(data, e.data)
		out = append(out, model.Record{
			ID:        id,
			Timestamp: id.Timestamp(),
			OwnerID:   e.ownerID,
			Qualifier: e.qualifier,
			Data:      data,
		})
	}
	return out, nil
}

// Ping fails only after Close.
func (r *PointMemory) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return repository.ErrClosed
	}
	return ctx.Err()
}

// Close drops every stored row.
func (r *PointMemory) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows.Clear()
	r.closed = true
	return nil
}
