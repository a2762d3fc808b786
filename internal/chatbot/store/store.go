package store

import (
	"context"
	"fmt"
)

// UnclassifiedSubject is the stats bucket for records without a subject.
const UnclassifiedSubject = "미분류"

// Metadata describes one stored unit of study material. Source is always
// set; the store defaults it when missing. Page and TotalPages are only
// set for page oriented documents.
type Metadata struct {
	Source     string
	Page       int
	TotalPages int
	Subject    string
	Grade      string
	Topic      string
}

// DefaultSource labels records whose origin was not supplied.
const DefaultSource = "직접 입력"

// Record is a stored document unit with its embedding. Records are never
// mutated after insertion.
type Record struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// QueryResult is one ranked hit. Distance is cosine distance, smaller
// means more similar, never negative.
type QueryResult struct {
	ID       string
	Text     string
	Metadata Metadata
	Distance float32
}

// Stats summarizes the store contents. Subjects maps each subject value
// to its record count, with UnclassifiedSubject collecting records that
// carry none.
type Stats struct {
	TotalDocuments int64
	Subjects       map[string]int64
}

// DuplicateIDError reports an insert with an id that already exists. It
// indicates an id generation bug, not a recoverable condition.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("record id %q already exists", e.ID)
}

// VectorStore persists vector records and answers nearest-neighbor
// queries. All operations appear atomic to concurrent callers: reads
// observe either the pre- or post-mutation state, never a mix.
type VectorStore interface {
	// Add inserts a record. Fails with DuplicateIDError when the id
	// already exists.
	Add(ctx context.Context, record *Record) error

	// Query returns up to n records nearest to embedding, ascending by
	// cosine distance. An empty store yields an empty slice, not an error.
	Query(ctx context.Context, embedding []float32, n int) ([]*QueryResult, error)

	// Clear removes all records atomically. The store is immediately
	// usable (empty) after return.
	Clear(ctx context.Context) error

	// Stats returns the total record count and per-subject counts.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
