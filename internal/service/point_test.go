package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"paustdb/internal/model"
	repoMocks "paustdb/internal/repository/mocks"
	"paustdb/internal/storage"
	storeMocks "paustdb/internal/storage/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fixedSalts returns the given salts in order, then repeats the last one.
func fixedSalts(salts ...uint16) func() uint16 {
	i := 0
	return func() uint16 {
		s := salts[min(i, len(salts)-1)]
		i++
		return s
	}
}

func newTestService(repo *repoMocks.MockPointRepository, store storage.Storage, opts Options) *pointService {
	svc := NewPointService(repo, store, opts).(*pointService)
	svc.salt = fixedSalts(1, 2, 3, 4)
	return svc
}

func TestPointService_Put(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		points     []model.Point
		setupMocks func(mRepo *repoMocks.MockPointRepository)
		wantIDs    []model.RowKey
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "happy path",
			points: []model.Point{
				{Timestamp: 100, OwnerID: "alice", Qualifier: "cpu", Data: []byte("a")},
				{Timestamp: 200, OwnerID: "bob", Data: []byte("b")},
			},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("PutBatch", mock.Anything, []model.Record{
					{ID: model.NewRowKey(100, 1), Timestamp: 100, OwnerID: "alice", Qualifier: "cpu", Data: []byte("a")},
					{ID: model.NewRowKey(200, 2), Timestamp: 200, OwnerID: "bob", Data: []byte("b")},
				}).Return(nil)
			},
			wantIDs: []model.RowKey{model.NewRowKey(100, 1), model.NewRowKey(200, 2)},
		},
		{
			name:       "validation - empty batch",
			points:     nil,
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrEmptyBatch,
		},
		{
			name:       "validation - batch too large",
			points:     make([]model.Point, 3),
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrBatchTooLarge,
		},
		{
			name:       "validation - missing owner",
			points:     []model.Point{{Timestamp: 1, OwnerID: ""}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidOwner,
		},
		{
			name:       "validation - owner too long",
			points:     []model.Point{{Timestamp: 1, OwnerID: strings.Repeat("o", MaxOwnerIDLen+1)}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidOwner,
		},
		{
			name:       "validation - qualifier too long",
			points:     []model.Point{{Timestamp: 1, OwnerID: "alice", Qualifier: strings.Repeat("q", MaxQualifierLen+1)}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidQualifier,
		},
		{
			name:       "validation - timestamp overflow",
			points:     []model.Point{{Timestamp: math.MaxInt64 + 1, OwnerID: "alice"}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidTimestamp,
		},
		{
			name:   "repository error",
			points: []model.Point{{Timestamp: 1, OwnerID: "alice"}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("PutBatch", mock.Anything, mock.Anything).Return(errors.New("db fail"))
			},
			wantErrMsg: "put batch: db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPointRepository)
			svc := newTestService(mRepo, nil, Options{MaxBatchSize: 2})

			tt.setupMocks(mRepo)

			ids, err := svc.Put(ctx, tt.points)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ids)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantIDs, ids)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPointService_Put_RerollsCollidingSalt(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockPointRepository)
	svc := newTestService(mRepo, nil, Options{})
	svc.salt = fixedSalts(7, 7, 8)

	mRepo.On("PutBatch", mock.Anything, mock.Anything).Return(nil)

	ids, err := svc.Put(ctx, []model.Point{
		{Timestamp: 5, OwnerID: "alice"},
		{Timestamp: 5, OwnerID: "alice"},
	})

	require.NoError(t, err)
	assert.Equal(t, []model.RowKey{model.NewRowKey(5, 7), model.NewRowKey(5, 8)}, ids)
}

func TestPointService_Put_SaltSpaceExhausted(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{name: "every salt taken", size: maxPointsPerTimestamp},
		{name: "one past the salt space", size: maxPointsPerTimestamp + 1, wantErr: ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPointRepository)
			svc := newTestService(mRepo, nil, Options{MaxBatchSize: maxPointsPerTimestamp + 10})
			var next uint16
			svc.salt = func() uint16 {
				next++
				return next - 1
			}
			if tt.wantErr == nil {
				mRepo.On("PutBatch", mock.Anything, mock.Anything).Return(nil)
			}

			points := make([]model.Point, tt.size)
			for i := range points {
				points[i] = model.Point{Timestamp: 42, OwnerID: "alice"}
			}

			done := make(chan struct{})
			var ids []model.RowKey
			var err error
			go func() {
				defer close(done)
				ids, err = svc.Put(ctx, points)
			}()

			select {
			case <-done:
			case <-time.After(10 * time.Second):
				t.Fatal("Put did not return")
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ids)
				return
			}
			require.NoError(t, err)
			require.Len(t, ids, tt.size)
			assert.Equal(t, model.NewRowKey(42, 0), ids[0])
			assert.Equal(t, model.NewRowKey(42, math.MaxUint16), ids[tt.size-1])
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPointService_Put_CountsWrites(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	mRepo := new(repoMocks.MockPointRepository)
	mRepo.On("PutBatch", mock.Anything, mock.Anything).Return(nil)
	svc := newTestService(mRepo, nil, Options{Metrics: metrics})

	_, err = svc.Put(ctx, []model.Point{{Timestamp: 1, OwnerID: "a"}, {Timestamp: 2, OwnerID: "a"}})
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.pointsWritten))
}

func TestPointService_Query(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		query      model.RangeQuery
		setupMocks func(mRepo *repoMocks.MockPointRepository)
		wantLen    int
		wantErr    error
	}{
		{
			name:  "happy path",
			query: model.RangeQuery{Start: 10, End: 20, OwnerID: "alice"},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("Scan", mock.Anything, model.RangeQuery{Start: 10, End: 20, OwnerID: "alice"}).
					Return([]model.Meta{{ID: model.NewRowKey(11, 0)}, {ID: model.NewRowKey(12, 0)}}, nil)
			},
			wantLen: 2,
		},
		{
			name:  "empty range is allowed",
			query: model.RangeQuery{Start: 10, End: 10},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("Scan", mock.Anything, model.RangeQuery{Start: 10, End: 10}).Return([]model.Meta{}, nil)
			},
		},
		{
			name:       "validation - start after end",
			query:      model.RangeQuery{Start: 20, End: 10},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidRange,
		},
		{
			name:       "validation - end overflow",
			query:      model.RangeQuery{Start: 0, End: math.MaxUint64},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidRange,
		},
		{
			name:       "validation - qualifier too long",
			query:      model.RangeQuery{End: 1, Qualifier: strings.Repeat("q", MaxQualifierLen+1)},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidQualifier,
		},
		{
			name:  "repository error",
			query: model.RangeQuery{Start: 0, End: 1},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("Scan", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPointRepository)
			svc := newTestService(mRepo, nil, Options{})

			tt.setupMocks(mRepo)

			metas, err := svc.Query(ctx, tt.query)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrInvalidRange) || errors.Is(tt.wantErr, ErrInvalidQualifier) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, metas)
			} else {
				assert.NoError(t, err)
				assert.Len(t, metas, tt.wantLen)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPointService_Fetch(t *testing.T) {
	ctx := context.Background()
	id := model.NewRowKey(42, 1)

	tests := []struct {
		name       string
		ids        [][]byte
		setupMocks func(mRepo *repoMocks.MockPointRepository)
		wantLen    int
		wantErr    error
	}{
		{
			name: "happy path",
			ids:  [][]byte{id},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("Get", mock.Anything, []model.RowKey{id}).
					Return([]model.Record{{ID: id, Timestamp: 42, Data: []byte("x")}}, nil)
			},
			wantLen: 1,
		},
		{
			name:       "no ids",
			ids:        nil,
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
		},
		{
			name:       "validation - malformed id",
			ids:        [][]byte{{0x01, 0x02}},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrInvalidID,
		},
		{
			name:       "validation - too many ids",
			ids:        [][]byte{id, id, id},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {},
			wantErr:    ErrBatchTooLarge,
		},
		{
			name: "repository error",
			ids:  [][]byte{id},
			setupMocks: func(mRepo *repoMocks.MockPointRepository) {
				mRepo.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockPointRepository)
			svc := newTestService(mRepo, nil, Options{MaxBatchSize: 2})

			tt.setupMocks(mRepo)

			recs, err := svc.Fetch(ctx, tt.ids)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrInvalidID) || errors.Is(tt.wantErr, ErrBatchTooLarge) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, recs)
			} else {
				assert.NoError(t, err)
				assert.Len(t, recs, tt.wantLen)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestPointService_Archive(t *testing.T) {
	ctx := context.Background()
	query := model.RangeQuery{Start: 0, End: 100}
	id := model.NewRowKey(50, 3)
	rec := model.Record{ID: id, Timestamp: 50, OwnerID: "alice", Qualifier: "cpu", Data: []byte("payload")}

	seedRepo := func(mRepo *repoMocks.MockPointRepository) {
		mRepo.On("Scan", mock.Anything, query).Return([]model.Meta{rec.Meta()}, nil)
		mRepo.On("Get", mock.Anything, []model.RowKey{id}).Return([]model.Record{rec}, nil)
	}

	t.Run("happy path", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		mStore := new(storeMocks.MockStorage)
		svc := newTestService(mRepo, mStore, Options{URLExpiry: time.Minute})
		seedRepo(mRepo)

		var uploaded []byte
		mStore.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
			return strings.HasPrefix(key, "archives/") && strings.HasSuffix(key, ".ndjson")
		}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
			return opt.ContentType == "application/x-ndjson" && opt.Metadata["count"] == "1"
		})).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
			uploaded, _ = io.ReadAll(r)
			return storage.ObjectInfo{Key: key, Size: opt.Size}
		}, nil)
		mStore.On("PresignGet", mock.Anything, mock.Anything, time.Minute).Return("https://minio.local/archive", nil)

		res, err := svc.Archive(ctx, query)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
		assert.Equal(t, "https://minio.local/archive", res.URL)
		assert.True(t, strings.HasPrefix(res.Key, "archives/"))

		sc := bufio.NewScanner(bytes.NewReader(uploaded))
		require.True(t, sc.Scan())
		var got model.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		assert.Equal(t, rec, got)
		assert.False(t, sc.Scan())

		mRepo.AssertExpectations(t)
		mStore.AssertExpectations(t)
	})

	t.Run("disabled without storage", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		svc := newTestService(mRepo, nil, Options{})

		res, err := svc.Archive(ctx, query)
		assert.ErrorIs(t, err, ErrArchiveDisabled)
		assert.Nil(t, res)
	})

	t.Run("upload error", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		mStore := new(storeMocks.MockStorage)
		svc := newTestService(mRepo, mStore, Options{})
		seedRepo(mRepo)

		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{}, errors.New("bucket gone"))

		_, err := svc.Archive(ctx, query)
		assert.ErrorContains(t, err, "upload archive: bucket gone")
	})

	t.Run("presign error rolls back upload", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		mStore := new(storeMocks.MockStorage)
		svc := newTestService(mRepo, mStore, Options{})
		seedRepo(mRepo)

		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "archives/x.ndjson"}, nil)
		mStore.On("PresignGet", mock.Anything, "archives/x.ndjson", mock.Anything).Return("", errors.New("clock skew"))
		mStore.On("Delete", mock.Anything, "archives/x.ndjson").Return(nil)

		_, err := svc.Archive(ctx, query)
		assert.ErrorContains(t, err, "presign failed: clock skew")
		mStore.AssertExpectations(t)
	})

	t.Run("presign and rollback errors", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		mStore := new(storeMocks.MockStorage)
		svc := newTestService(mRepo, mStore, Options{})
		seedRepo(mRepo)

		mStore.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(storage.ObjectInfo{Key: "archives/x.ndjson"}, nil)
		mStore.On("PresignGet", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("clock skew"))
		mStore.On("Delete", mock.Anything, mock.Anything).Return(errors.New("delete fail"))

		_, err := svc.Archive(ctx, query)
		assert.ErrorContains(t, err, "rollback delete failed: delete fail")
	})

	t.Run("invalid range", func(t *testing.T) {
		mRepo := new(repoMocks.MockPointRepository)
		mStore := new(storeMocks.MockStorage)
		svc := newTestService(mRepo, mStore, Options{})

		_, err := svc.Archive(ctx, model.RangeQuery{Start: 10, End: 1})
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}
