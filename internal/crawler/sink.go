package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/campground-crawler/internal/campground"
	"github.com/JakeFAU/campground-crawler/internal/metrics"
)

// DefaultBatchSize is the number of campgrounds written per store batch.
const DefaultBatchSize = 100

// StoreSink coerces records into campgrounds and upserts them in batches.
type StoreSink struct {
	store     campground.Writer
	batchSize int
	logger    *zap.Logger
}

// NewStoreSink builds a sink over store. Non-positive batch sizes use
// DefaultBatchSize.
func NewStoreSink(store campground.Writer, batchSize int, logger *zap.Logger) *StoreSink {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, batchSize: batchSize, logger: logger}
}

// Persist upserts every record. Records that cannot be coerced are counted
// as failed. A batch that fails to commit is counted as failed in full and
// the remaining batches still run; the returned error joins those failures.
func (s *StoreSink) Persist(ctx context.Context, records []campground.RawRecord) (campground.UpsertResult, error) {
	var total campground.UpsertResult
	entities := make([]campground.Campground, 0, len(records))
	for _, rec := range records {
		c, err := campground.FromRecord(rec)
		if err != nil {
			total.Failed++
			s.logger.Warn("Skipping record", zap.Any("name", rec.Get(campground.FieldName)), zap.Error(err))
			continue
		}
		entities = append(entities, c)
	}

	var errs []error
	for start := 0; start < len(entities); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			total.Failed += len(entities) - start
			errs = append(errs, err)
			break
		}
		end := min(start+s.batchSize, len(entities))
		result, err := s.store.UpsertBatch(ctx, entities[start:end])
		if err != nil {
			result = campground.UpsertResult{Failed: end - start}
			errs = append(errs, fmt.Errorf("batch %d-%d: %w", start, end, err))
			s.logger.Error("Batch upsert failed", zap.Int("start", start), zap.Int("end", end), zap.Error(err))
		}
		total.Add(result)
		metrics.ObserveUpserts(result.Inserted, result.Updated, result.Failed)
		s.logger.Info("Upsert progress",
			zap.Int("processed", end),
			zap.Int("total", len(entities)),
			zap.Int("inserted", total.Inserted),
			zap.Int("updated", total.Updated),
			zap.Int("failed", total.Failed),
		)
	}
	return total, errors.Join(errs...)
}
