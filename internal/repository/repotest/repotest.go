// Package repotest holds behaviour tests shared by every PointRepository backend.
package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paustdb/internal/model"
	"paustdb/internal/repository"
)

// Factory returns a fresh, empty repository. Cleanup is the factory's job.
type Factory func(t *testing.T) repository.PointRepository

func record(ts uint64, salt uint16, owner, qualifier, data string) model.Record {
	return model.Record{
		ID:        model.NewRowKey(ts, salt),
		Timestamp: ts,
		OwnerID:   owner,
		Qualifier: qualifier,
		Data:      []byte(data),
	}
}

func seed() []model.Record {
	return []model.Record{
		record(300, 1, "alice", "cpu", "c"),
		record(100, 9, "alice", "cpu", "a"),
		record(100, 2, "bob", "memory", "b"),
		record(200, 5, "alice", "memory", "d"),
		record(400, 0, "bob", "cpu", "e"),
	}
}

func ids(metas []model.Meta) []model.RowKey {
	out := make([]model.RowKey, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.ID)
	}
	return out
}

// Run exercises the PointRepository contract against backends built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	ctx := context.Background()

	t.Run("scan orders by row key and honours half-open range", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.PutBatch(ctx, seed()))

		metas, err := repo.Scan(ctx, model.RangeQuery{Start: 100, End: 400})
		require.NoError(t, err)

		assert.Equal(t, []model.RowKey{
			model.NewRowKey(100, 2),
			model.NewRowKey(100, 9),
			model.NewRowKey(200, 5),
			model.NewRowKey(300, 1),
		}, ids(metas))
		assert.Equal(t, "bob", metas[0].OwnerID)
		assert.Equal(t, "memory", metas[0].Qualifier)
		assert.Equal(t, uint64(100), metas[0].Timestamp)
	})

	t.Run("scan filters by owner and qualifier", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.PutBatch(ctx, seed()))

		tests := []struct {
			name  string
			query model.RangeQuery
			want  []model.RowKey
		}{
			{
				name:  "owner",
				query: model.RangeQuery{Start: 0, End: 1000, OwnerID: "bob"},
				want:  []model.RowKey{model.NewRowKey(100, 2), model.NewRowKey(400, 0)},
			},
			{
				name:  "qualifier",
				query: model.RangeQuery{Start: 0, End: 1000, Qualifier: "memory"},
				want:  []model.RowKey{model.NewRowKey(100, 2), model.NewRowKey(200, 5)},
			},
			{
				name:  "owner and qualifier",
				query: model.RangeQuery{Start: 0, End: 1000, OwnerID: "alice", Qualifier: "cpu"},
				want:  []model.RowKey{model.NewRowKey(100, 9), model.NewRowKey(300, 1)},
			},
			{
				name:  "no match",
				query: model.RangeQuery{Start: 0, End: 1000, OwnerID: "carol"},
				want:  []model.RowKey{},
			},
			{
				name:  "empty range",
				query: model.RangeQuery{Start: 200, End: 200},
				want:  []model.RowKey{},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				metas, err := repo.Scan(ctx, tt.query)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(metas))
			})
		}
	})

	t.Run("get returns records in request order and skips unknown ids", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.PutBatch(ctx, seed()))

		recs, err := repo.Get(ctx, []model.RowKey{
			model.NewRowKey(400, 0),
			model.NewRowKey(999, 9),
			model.NewRowKey(100, 9),
		})
		require.NoError(t, err)
		require.Len(t, recs, 2)

		assert.Equal(t, record(400, 0, "bob", "cpu", "e"), recs[0])
		assert.Equal(t, record(100, 9, "alice", "cpu", "a"), recs[1])
	})

	t.Run("put overwrites an existing id", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.PutBatch(ctx, []model.Record{record(10, 1, "alice", "cpu", "old")}))
		require.NoError(t, repo.PutBatch(ctx, []model.Record{record(10, 1, "alice", "cpu", "new")}))

		recs, err := repo.Get(ctx, []model.RowKey{model.NewRowKey(10, 1)})
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, []byte("new"), recs[0].Data)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.PutBatch(ctx, nil))

		metas, err := repo.Scan(ctx, model.RangeQuery{Start: 0, End: 1 << 62})
		require.NoError(t, err)
		assert.Empty(t, metas)
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(ctx))
	})
}
