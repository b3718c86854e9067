package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"paustdb/internal/logging"
	"paustdb/internal/model"
	"paustdb/internal/repository"
	"paustdb/internal/storage"
)

const (
	// MaxOwnerIDLen bounds the owner id of a point.
	MaxOwnerIDLen = 64
	// MaxQualifierLen bounds the qualifier of a point.
	MaxQualifierLen = 64

	// maxPointsPerTimestamp is the number of distinct salts, so the number of
	// ids one timestamp can take within a batch.
	maxPointsPerTimestamp = 1 << (8 * model.SaltLen)

	defaultMaxBatchSize = 1000
	defaultURLExpiry    = 15 * time.Minute
)

var (
	ErrEmptyBatch       = errors.New("batch is empty")
	ErrBatchTooLarge    = errors.New("batch is too large")
	ErrInvalidOwner     = errors.New("owner id must be 1-64 bytes")
	ErrInvalidQualifier = errors.New("qualifier must be at most 64 bytes")
	ErrInvalidTimestamp = errors.New("timestamp must fit in a signed 64-bit integer")
	ErrInvalidRange     = errors.New("invalid time range")
	ErrInvalidID        = errors.New("invalid point id")
	ErrArchiveDisabled  = errors.New("archive storage is not configured")
)

var tracer = otel.Tracer("paustdb/internal/service")

// ArchiveResult describes an uploaded archive.
type ArchiveResult struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	URL   string `json:"url"`
}

// PointService defines the use cases for writing and reading time-series points.
type PointService interface {
	// Put validates the points, assigns each a row key and stores the batch atomically.
	// The returned ids are in input order.
	Put(ctx context.Context, points []model.Point) ([]model.RowKey, error)

	// Query returns the metadata of points in [q.Start, q.End) matching the optional filters.
	Query(ctx context.Context, q model.RangeQuery) ([]model.Meta, error)

	// Fetch returns stored records for the given raw ids in request order. Unknown ids are omitted.
	Fetch(ctx context.Context, ids [][]byte) ([]model.Record, error)

	// Archive exports the records matching q as NDJSON into object storage.
	Archive(ctx context.Context, q model.RangeQuery) (*ArchiveResult, error)
}

// Options tune a PointService. Zero values fall back to defaults.
type Options struct {
	MaxBatchSize int
	URLExpiry    time.Duration
	Metrics      *Metrics
	Logger       *slog.Logger
}

type pointService struct {
	repo      repository.PointRepository
	store     storage.Storage
	maxBatch  int
	urlExpiry time.Duration
	metrics   *Metrics
	logger    *slog.Logger
	salt      func() uint16
}

// NewPointService constructs a new PointService. store may be nil, which disables Archive.
func NewPointService(repo repository.PointRepository, store storage.Storage, opts Options) PointService {
	s := &pointService{
		repo:      repo,
		store:     store,
		maxBatch:  opts.MaxBatchSize,
		urlExpiry: opts.URLExpiry,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		salt:      func() uint16 { return uint16(rand.Uint32()) },
	}
	if s.maxBatch <= 0 {
		s.maxBatch = defaultMaxBatchSize
	}
	if s.urlExpiry <= 0 {
		s.urlExpiry = defaultURLExpiry
	}
	if s.metrics == nil {
		s.metrics = newUnregisteredMetrics()
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.With("component", "service")
	return s
}

func (s *pointService) Put(ctx context.Context, points []model.Point) (ids []model.RowKey, err error) {
	ctx, span := tracer.Start(ctx, "PointService.Put", trace.WithAttributes(attribute.Int("points", len(points))))
	defer func() { endSpan(span, err) }()

	if len(points) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(points) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d points, limit %d", ErrBatchTooLarge, len(points), s.maxBatch)
	}

	recs := make([]model.Record, len(points))
	ids = make([]model.RowKey, len(points))
	seen := make(map[string]struct{}, len(points))
	perTimestamp := make(map[uint64]int)
	for i, p := range points {
		if err := validatePoint(p); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		perTimestamp[p.Timestamp]++
		if perTimestamp[p.Timestamp] > maxPointsPerTimestamp {
			return nil, fmt.Errorf("%w: more than %d points at timestamp %d", ErrBatchTooLarge, maxPointsPerTimestamp, p.Timestamp)
		}

		// A salt taken inside the batch moves to the next free one. The count
		// check above guarantees a free salt exists.
		salt := s.salt()
		id := model.NewRowKey(p.Timestamp, salt)
		for {
			if _, dup := seen[string(id)]; !dup {
				break
			}
			salt++
			id = model.NewRowKey(p.Timestamp, salt)
		}
		seen[string(id)] = struct{}{}

		ids[i] = id
		recs[i] = model.Record{
			ID:        id,
			Timestamp: p.Timestamp,
			OwnerID:   p.OwnerID,
			Qualifier: p.Qualifier,
			Data:      p.Data,
		}
	}

	if err := s.repo.PutBatch(ctx, recs); err != nil {
		s.logger.Error("put_failed", "size", len(recs), "err", err)
		return nil, fmt.Errorf("put batch: %w", err)
	}

	s.metrics.pointsWritten.Add(float64(len(recs)))
	s.logger.Debug("put_success", "size", len(recs))
	return ids, nil
}

func (s *pointService) Query(ctx context.Context, q model.RangeQuery) (metas []model.Meta, err error) {
	ctx, span := tracer.Start(ctx, "PointService.Query", trace.WithAttributes(
		attribute.Int64("start", int64(min(q.Start, math.MaxInt64))),
		attribute.Int64("end", int64(min(q.End, math.MaxInt64))),
	))
	defer func() { endSpan(span, err) }()

	if err := validateQuery(q); err != nil {
		return nil, err
	}

	metas, err = s.repo.Scan(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	s.metrics.pointsRead.WithLabelValues("query").Add(float64(len(metas)))
	s.logger.Debug("query_success", "size", len(metas))
	return metas, nil
}

func (s *pointService) Fetch(ctx context.Context, raw [][]byte) (recs []model.Record, err error) {
	ctx, span := tracer.Start(ctx, "PointService.Fetch", trace.WithAttributes(attribute.Int("ids", len(raw))))
	defer func() { endSpan(span, err) }()

	if len(raw) > s.maxBatch {
		return nil, fmt.Errorf("%w: %d ids, limit %d", ErrBatchTooLarge, len(raw), s.maxBatch)
	}

	ids := make([]model.RowKey, len(raw))
	for i, b := range raw {
		id, err := model.ParseRowKey(b)
		if err != nil {
			return nil, fmt.Errorf("id %d: %w: %v", i, ErrInvalidID, err)
		}
		ids[i] = id
	}
	if len(ids) == 0 {
		return []model.Record{}, nil
	}

	recs, err = s.repo.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	s.metrics.pointsRead.WithLabelValues("fetch").Add(float64(len(recs)))
	s.logger.Debug("fetch_success", "requested", len(ids), "size", len(recs))
	return recs, nil
}

func (s *pointService) Archive(ctx context.Context, q model.RangeQuery) (res *ArchiveResult, err error) {
	ctx, span := tracer.Start(ctx, "PointService.Archive")
	defer func() { endSpan(span, err) }()

	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	metas, err := s.repo.Scan(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	ids := make([]model.RowKey, len(metas))
	for i, m := range metas {
		ids[i] = m.ID
	}
	recs, err := s.repo.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode archive: %w", err)
		}
	}

	key := "archives/" + uuid.NewString() + ".ndjson"
	size := int64(buf.Len())
	obj, err := s.store.Put(ctx, key, &buf, storage.PutObjectOptions{
		Size:        size,
		ContentType: "application/x-ndjson",
		Metadata: map[string]string{
			"range-start": strconv.FormatUint(q.Start, 10),
			"range-end":   strconv.FormatUint(q.End, 10),
			"count":       strconv.Itoa(len(recs)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload archive: %w", err)
	}

	url, err := s.store.PresignGet(ctx, obj.Key, s.urlExpiry)
	if err != nil {
		// Rollback: an archive nobody can download is removed.
		if delErr := s.store.Delete(ctx, obj.Key); delErr != nil {
			return nil, fmt.Errorf("presign failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("presign failed: %w", err)
	}

	s.metrics.pointsRead.WithLabelValues("archive").Add(float64(len(recs)))
	s.logger.Info("archive_success", "key", obj.Key, "size", len(recs), "bytes", size)
	return &ArchiveResult{Key: obj.Key, Count: len(recs), URL: url}, nil
}

func validatePoint(p model.Point) error {
	if p.OwnerID == "" || len(p.OwnerID) > MaxOwnerIDLen {
		return ErrInvalidOwner
	}
	if len(p.Qualifier) > MaxQualifierLen {
		return ErrInvalidQualifier
	}
	if p.Timestamp > math.MaxInt64 {
		return ErrInvalidTimestamp
	}
	return nil
}

func validateQuery(q model.RangeQuery) error {
	if q.Start > q.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidRange, q.Start, q.End)
	}
	if q.End > math.MaxInt64 {
		return fmt.Errorf("%w: end exceeds %d", ErrInvalidRange, int64(math.MaxInt64))
	}
	if len(q.OwnerID) > MaxOwnerIDLen {
		return ErrInvalidOwner
	}
	if len(q.Qualifier) > MaxQualifierLen {
		return ErrInvalidQualifier
	}
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
