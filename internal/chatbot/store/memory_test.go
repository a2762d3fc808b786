package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(id string, embedding []float32, subject string) *Record {
	return &Record{
		ID:        id,
		Text:      "교재 내용 " + id,
		Embedding: embedding,
		Metadata:  Metadata{Source: "교과서.txt", Subject: subject},
	}
}

func TestMemoryStoreAdd(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	require.NoError(t, s.Add(ctx, newRecord("a", []float32{1, 0, 0}, "수학")))

	err := s.Add(ctx, newRecord("a", []float32{0, 1, 0}, "수학"))
	require.Error(t, err)

	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.ID)
}

func TestMemoryStoreAddDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	err := s.Add(ctx, newRecord("a", []float32{1, 0}, ""))
	require.Error(t, err)
}

func TestMemoryStoreAddDefaultsSource(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Add(ctx, &Record{ID: "a", Text: "t", Embedding: []float32{1, 0}}))

	results, err := s.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, DefaultSource, results[0].Metadata.Source)
}

func TestMemoryStoreQueryOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Add(ctx, newRecord("exact", []float32{1, 0}, "수학")))
	require.NoError(t, s.Add(ctx, newRecord("far", []float32{0, 1}, "과학")))
	require.NoError(t, s.Add(ctx, newRecord("near", []float32{0.9, 0.1}, "수학")))

	results, err := s.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.Equal(t, "far", results[2].ID)

	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
		assert.GreaterOrEqual(t, results[i].Distance, float32(0))
	}
}

func TestMemoryStoreQueryBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	// Empty store never errors.
	results, err := s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Add(ctx, newRecord("a", []float32{1, 0}, "")))

	results, err = s.Query(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Add(ctx, newRecord("a", []float32{1, 0}, "수학")))
	require.NoError(t, s.Clear(ctx))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
	assert.Empty(t, stats.Subjects)

	// Immediately usable again, a cleared id can be reinserted.
	require.NoError(t, s.Add(ctx, newRecord("a", []float32{1, 0}, "수학")))
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Add(ctx, newRecord("a", []float32{1, 0}, "수학")))
	require.NoError(t, s.Add(ctx, newRecord("b", []float32{0, 1}, "수학")))
	require.NoError(t, s.Add(ctx, newRecord("c", []float32{1, 1}, "과학")))
	require.NoError(t, s.Add(ctx, newRecord("d", []float32{1, 2}, "")))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(4), stats.TotalDocuments)
	assert.Equal(t, int64(2), stats.Subjects["수학"])
	assert.Equal(t, int64(1), stats.Subjects["과학"])
	assert.Equal(t, int64(1), stats.Subjects[UnclassifiedSubject])
}

func TestMemoryStoreCopyOnInsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	embedding := []float32{1, 0}
	record := newRecord("a", embedding, "수학")
	require.NoError(t, s.Add(ctx, record))

	// Mutating the caller's slice must not affect stored state.
	embedding[0] = 0
	embedding[1] = 1

	results, err := s.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := fmt.Sprintf("w%d-%d", n, j)
				_ = s.Add(ctx, newRecord(id, []float32{float32(j), 1}, "수학"))
				_, _ = s.Query(ctx, []float32{1, 0}, 3)
				_, _ = s.Stats(ctx)
			}
		}(i)
	}
	wg.Wait()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), stats.TotalDocuments)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	assert.Equal(t, float32(1), cosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, float32(1), cosineDistance([]float32{1}, []float32{1, 0}))
}
