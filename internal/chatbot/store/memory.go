package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is the embedded default backend: brute-force cosine search
// over an in-memory record list, guarded by a single RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   []*Record
	index     map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store. dimension fixes the
// embedding length for the store's lifetime; 0 adopts the first insert's.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		index:     make(map[string]struct{}),
	}
}

// Add inserts a copy of record so later caller mutations cannot tear a
// concurrent read.
func (s *MemoryStore) Add(_ context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[record.ID]; exists {
		return &DuplicateIDError{ID: record.ID}
	}

	if s.dimension == 0 {
		s.dimension = len(record.Embedding)
	}
	if len(record.Embedding) != s.dimension {
		return fmt.Errorf("embedding dimension %d, store expects %d", len(record.Embedding), s.dimension)
	}

	clone := &Record{
		ID:        record.ID,
		Text:      record.Text,
		Embedding: append([]float32(nil), record.Embedding...),
		Metadata:  record.Metadata,
	}
	if clone.Metadata.Source == "" {
		clone.Metadata.Source = DefaultSource
	}

	s.records = append(s.records, clone)
	s.index[clone.ID] = struct{}{}
	return nil
}

// Query scans all records and returns the n nearest, ascending by cosine
// distance with the id as a deterministic tie-break.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, n int) ([]*QueryResult, error) {
	if n <= 0 {
		return []*QueryResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*QueryResult, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, &QueryResult{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Distance: cosineDistance(embedding, r.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > n {
		results = results[:n]
	}
	return results, nil
}

// Clear drops every record in one critical section.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]struct{})
	return nil
}

// Stats counts records per subject under the read lock.
func (s *MemoryStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{
		TotalDocuments: int64(len(s.records)),
		Subjects:       make(map[string]int64),
	}
	for _, r := range s.records {
		subject := r.Metadata.Subject
		if subject == "" {
			subject = UnclassifiedSubject
		}
		stats.Subjects[subject]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

// cosineDistance returns 1 - cosine similarity, clamped at 0. A zero
// vector on either side yields the maximum-dissimilarity distance 1.
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	distance := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	if distance < 0 {
		distance = 0
	}
	return float32(distance)
}

var _ VectorStore = (*MemoryStore)(nil)
