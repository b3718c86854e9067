package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paustdb/internal/model"
	"paustdb/internal/repository"
	"paustdb/internal/repository/repotest"
)

func TestPointMemory(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.PointRepository {
		repo := NewPointMemory()
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	})
}

func TestPointMemory_CopiesData(t *testing.T) {
	ctx := context.Background()
	repo := NewPointMemory()

	data := []byte("abc")
	id := model.NewRowKey(1, 1)
	require.NoError(t, repo.PutBatch(ctx, []model.Record{{ID: id, Timestamp: 1, OwnerID: "o", Data: data}}))
	data[0] = 'z'

	recs, err := repo.Get(ctx, []model.RowKey{id})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []byte("abc"), recs[0].Data)

	recs[0].Data[0] = 'y'
	again, err := repo.Get(ctx, []model.RowKey{id})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again[0].Data)
}

func TestPointMemory_Closed(t *testing.T) {
	ctx := context.Background()
	repo := NewPointMemory()
	require.NoError(t, repo.Close())

	assert.ErrorIs(t, repo.Ping(ctx), repository.ErrClosed)
	assert.ErrorIs(t, repo.PutBatch(ctx, nil), repository.ErrClosed)
	_, err := repo.Scan(ctx, model.RangeQuery{End: 10})
	assert.ErrorIs(t, err, repository.ErrClosed)
	_, err = repo.Get(ctx, nil)
	assert.ErrorIs(t, err, repository.ErrClosed)
}

func TestPointMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewPointMemory()

	assert.ErrorIs(t, repo.PutBatch(ctx, nil), context.Canceled)
}
