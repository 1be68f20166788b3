package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campground-crawler/internal/campground"
)

type batchWriter struct {
	batches [][]campground.Campground
	failOn  int
}

func (w *batchWriter) UpsertBatch(_ context.Context, batch []campground.Campground) (campground.UpsertResult, error) {
	w.batches = append(w.batches, batch)
	if len(w.batches) == w.failOn {
		return campground.UpsertResult{}, errors.New("commit failed")
	}
	return campground.UpsertResult{Inserted: len(batch)}, nil
}

func TestStoreSinkBatchesAndCountsFailures(t *testing.T) {
	t.Parallel()

	recs := records("r", 5)
	recs = append(recs, campground.RawRecord{Attributes: map[string]any{"name": "no url"}})

	writer := &batchWriter{}
	result, err := NewStoreSink(writer, 2, nil).Persist(context.Background(), recs)
	require.NoError(t, err)

	assert.Len(t, writer.batches, 3)
	assert.Len(t, writer.batches[2], 1)
	assert.Equal(t, campground.UpsertResult{Inserted: 5, Failed: 1}, result)
}

func TestStoreSinkContinuesAfterBatchFailure(t *testing.T) {
	t.Parallel()

	writer := &batchWriter{failOn: 1}
	result, err := NewStoreSink(writer, 2, nil).Persist(context.Background(), records("r", 4))
	require.Error(t, err)

	assert.Len(t, writer.batches, 2)
	assert.Equal(t, campground.UpsertResult{Inserted: 2, Failed: 2}, result)
}

func TestStoreSinkEmptyInput(t *testing.T) {
	t.Parallel()

	writer := &batchWriter{}
	result, err := NewStoreSink(writer, 0, nil).Persist(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Total())
	assert.Empty(t, writer.batches)
}
