package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kenneth-kang/elementary-chatbot/pkg/component/milvus"
)

// statsQueryLimit bounds the subject scan for Stats. The corpus is
// classroom material, far below this.
const statsQueryLimit = 16384

// milvusClient is the slice of the Milvus component the store uses.
type milvusClient interface {
	CreateCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	HasEntity(ctx context.Context, collectionName, id string) (bool, error)
	Insert(ctx context.Context, collectionName string, data *milvus.InsertData) error
	Search(ctx context.Context, collectionName string, vector []float32, topK int, outputFields []string) ([]milvus.SearchResult, error)
	QueryField(ctx context.Context, collectionName, expr, field string, limit int) ([]string, error)
	GetCollectionStats(ctx context.Context, collectionName string) (int64, error)
	DropCollection(ctx context.Context, collectionName string) error
	Close(ctx context.Context) error
}

// MilvusStore is the Milvus-backed VectorStore. The collection uses the
// COSINE metric; scores come back as similarities and are converted to
// the same cosine-distance form the memory backend uses.
type MilvusStore struct {
	mu         sync.RWMutex
	client     milvusClient
	collection string
	dimension  int
}

// NewMilvusStore connects the store to a collection, creating it when
// absent.
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dimension int) (*MilvusStore, error) {
	s := &MilvusStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
	}
	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureCollection(ctx context.Context) error {
	schema := &milvus.CollectionSchema{
		Name:        s.collection,
		Description: "elementary study materials",
		Dimension:   s.dimension,
		MetaFields: []milvus.MetaField{
			{Name: "text", DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: "source", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "subject", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "grade", DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: "topic", DataType: entity.FieldTypeVarChar, MaxLen: 255},
			{Name: "page", DataType: entity.FieldTypeInt64},
			{Name: "total_pages", DataType: entity.FieldTypeInt64},
		},
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return fmt.Errorf("failed to prepare collection %s: %w", s.collection, err)
	}
	return nil
}

// Add inserts one record, rejecting duplicate ids. The existence check
// and the insert run under the write lock so concurrent Adds with the
// same id cannot both pass the check.
func (s *MilvusStore) Add(ctx context.Context, record *Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record must have an id")
	}
	if len(record.Embedding) != s.dimension {
		return fmt.Errorf("embedding dimension %d, store expects %d", len(record.Embedding), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.client.HasEntity(ctx, s.collection, record.ID)
	if err != nil {
		return err
	}
	if exists {
		return &DuplicateIDError{ID: record.ID}
	}

	meta := record.Metadata
	if meta.Source == "" {
		meta.Source = DefaultSource
	}

	data := &milvus.InsertData{
		IDs:        []string{record.ID},
		Embeddings: [][]float32{record.Embedding},
		Metadata: map[string][]any{
			"text":        {record.Text},
			"source":      {meta.Source},
			"subject":     {meta.Subject},
			"grade":       {meta.Grade},
			"topic":       {meta.Topic},
			"page":        {int64(meta.Page)},
			"total_pages": {int64(meta.TotalPages)},
		},
	}
	return s.client.Insert(ctx, s.collection, data)
}

var milvusOutputFields = []string{"text", "source", "subject", "grade", "topic", "page", "total_pages"}

// Query searches the collection and returns hits ascending by cosine
// distance.
func (s *MilvusStore) Query(ctx context.Context, embedding []float32, n int) ([]*QueryResult, error) {
	if n <= 0 {
		return []*QueryResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.client.Search(ctx, s.collection, embedding, n, milvusOutputFields)
	if err != nil {
		return nil, err
	}

	results := make([]*QueryResult, 0, len(hits))
	for _, hit := range hits {
		distance := 1 - hit.Score
		if distance < 0 {
			distance = 0
		}
		results = append(results, &QueryResult{
			ID:       hit.ID,
			Text:     stringField(hit.Metadata, "text"),
			Distance: distance,
			Metadata: Metadata{
				Source:     stringField(hit.Metadata, "source"),
				Subject:    stringField(hit.Metadata, "subject"),
				Grade:      stringField(hit.Metadata, "grade"),
				Topic:      stringField(hit.Metadata, "topic"),
				Page:       intField(hit.Metadata, "page"),
				TotalPages: intField(hit.Metadata, "total_pages"),
			},
		})
	}
	return results, nil
}

// Clear drops and recreates the collection under the write lock so no
// caller observes a partially cleared state.
func (s *MilvusStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.DropCollection(ctx, s.collection); err != nil {
		return err
	}
	return s.ensureCollection(ctx)
}

// Stats counts rows per subject.
func (s *MilvusStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, err := s.client.GetCollectionStats(ctx, s.collection)
	if err != nil {
		return nil, err
	}

	subjects, err := s.client.QueryField(ctx, s.collection, `id != ""`, "subject", statsQueryLimit)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalDocuments: total,
		Subjects:       make(map[string]int64),
	}
	for _, subject := range subjects {
		if subject == "" {
			subject = UnclassifiedSubject
		}
		stats.Subjects[subject]++
	}
	return stats, nil
}

// Close closes the underlying Milvus connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func stringField(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

func intField(metadata map[string]any, key string) int {
	if v, ok := metadata[key].(int64); ok {
		return int(v)
	}
	return 0
}

var _ VectorStore = (*MilvusStore)(nil)
