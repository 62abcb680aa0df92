package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"

	"github.com/stackcheck-labs/stackcheck-go/internal/domain"
	"github.com/stackcheck-labs/stackcheck-go/internal/service/ingest"
)

const processedSetKey = "stackcheck:ingested-reports"

// reportSource lists and reads raw report objects.
type reportSource interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// processedMarks remembers which report objects already ingested, so
// the poll loop and the event endpoint stay idempotent together.
type processedMarks interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// reportSyncer is the fallback ingestion path: it polls the reports
// bucket for objects the event source never delivered.
type reportSyncer struct {
	logger   *slog.Logger
	source   reportSource
	marks    processedMarks
	ingestor *ingest.Ingestor
	interval time.Duration
}

func startReportSyncer(ctx context.Context, logger *slog.Logger, source reportSource, marks processedMarks, ingestor *ingest.Ingestor, interval time.Duration) {
	if source == nil || ingestor == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	s := &reportSyncer{
		logger:   logger,
		source:   source,
		marks:    marks,
		ingestor: ingestor,
		interval: interval,
	}

	go s.run(ctx)
}

func (s *reportSyncer) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce(ctx)
		}
	}
}

func (s *reportSyncer) syncOnce(ctx context.Context) {
	keys, err := s.source.List(ctx)
	if err != nil {
		s.logger.Warn("report sync list failed", "error", err)
		return
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		seen, err := s.marks.Seen(ctx, key)
		if err != nil {
			s.logger.Warn("report sync mark lookup failed", "key", key, "error", err)
			return
		}
		if seen {
			continue
		}
		s.ingestOne(ctx, key)
	}
}

func (s *reportSyncer) ingestOne(ctx context.Context, key string) {
	raw, err := s.source.Fetch(ctx, key)
	if err != nil {
		s.logger.Warn("report sync fetch failed", "key", key, "error", err)
		return
	}
	if _, err := s.ingestor.Ingest(ctx, raw); err != nil {
		if !errors.Is(err, domain.ErrInvalidReport) {
			// Transient failure: leave the object unmarked so the next
			// tick retries it.
			s.logger.Warn("report sync ingest failed", "key", key, "error", err)
			return
		}
		// Malformed payloads are dead objects: mark them so the loop
		// does not spin on them.
		s.logger.Error("malformed report object", "key", key, "error", err)
	}
	if err := s.marks.Mark(ctx, key); err != nil {
		s.logger.Warn("report sync mark failed", "key", key, "error", err)
	}
}

// minioReportSource lists the whole reports bucket. Steady-state
// buckets stay small because processed objects are tracked in redis,
// not deleted here.
type minioReportSource struct {
	client *minio.Client
	bucket string
}

func (m *minioReportSource) List(ctx context.Context) ([]string, error) {
	if m == nil || m.client == nil {
		return nil, errors.New("report source not initialized")
	}
	var keys []string
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list %s: %w", m.bucket, object.Err)
		}
		keys = append(keys, object.Key)
	}
	return keys, nil
}

func (m *minioReportSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	if m == nil || m.client == nil {
		return nil, errors.New("report source not initialized")
	}
	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", m.bucket, key, err)
	}
	defer func() { _ = object.Close() }()

	raw, err := io.ReadAll(io.LimitReader(object, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", m.bucket, key, err)
	}
	return raw, nil
}

type redisMarks struct {
	client *redis.Client
}

func (r *redisMarks) Seen(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil {
		return false, errors.New("marks not initialized")
	}
	return r.client.SIsMember(ctx, processedSetKey, key).Result()
}

func (r *redisMarks) Mark(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return errors.New("marks not initialized")
	}
	return r.client.SAdd(ctx, processedSetKey, key).Err()
}
