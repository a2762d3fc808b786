package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/metrics"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/extract"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
	"github.com/kenneth-kang/elementary-chatbot/pkg/id"
	"github.com/kenneth-kang/elementary-chatbot/pkg/llm"
)

var tracer = otel.Tracer("elementary-chatbot/biz")

// IngestionError reports a partial ingestion failure. CommittedIDs lists
// the units already stored before the failure; the service does not roll
// them back.
type IngestionError struct {
	CommittedIDs []string
	Err          error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed after %d committed units: %v", len(e.CommittedIDs), e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Retrieval orchestrates extraction, embedding and vector storage.
type Retrieval struct {
	embedder llm.EmbeddingProvider
	store    store.VectorStore
	ids      *id.Generator
	topK     int
	metrics  *metrics.ChatMetrics
}

// NewRetrieval creates the retrieval service. topK bounds search results
// and context blocks.
func NewRetrieval(embedder llm.EmbeddingProvider, vectorStore store.VectorStore, topK int) *Retrieval {
	return &Retrieval{
		embedder: embedder,
		store:    vectorStore,
		ids:      id.NewGenerator(),
		topK:     topK,
		metrics:  metrics.GetChatMetrics(),
	}
}

// mergeMetadata combines caller supplied base metadata with a unit's own.
// Base wins on every field except page/total_pages, which only the
// extractor may set.
func mergeMetadata(base store.Metadata, unit extract.Unit) store.Metadata {
	merged := base
	if unit.Page > 0 {
		merged.Page = unit.Page
		merged.TotalPages = unit.TotalPages
	}
	return merged
}

// Ingest extracts data as kind, embeds each unit and stores it. Returned
// ids follow extraction order. On a mid-document failure the error is an
// IngestionError carrying the ids already committed.
func (r *Retrieval) Ingest(ctx context.Context, data []byte, kind extract.Kind, base store.Metadata) ([]string, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("document.kind", string(kind)))

	units, err := extract.Extract(data, kind)
	if err != nil {
		r.metrics.RecordIngest(0, err)
		return nil, errors.ErrExtraction.WithCause(err)
	}

	committed, err := r.ingestUnits(ctx, units, base)
	if err != nil {
		r.metrics.RecordIngest(0, err)
		return nil, err
	}

	r.metrics.RecordIngest(len(committed), nil)
	logger.Infow("document ingested",
		"kind", string(kind),
		"units", len(committed),
		"source", base.Source,
	)
	return committed, nil
}

// ingestUnits embeds and stores units one by one, reporting the ids
// already committed when a later unit fails.
func (r *Retrieval) ingestUnits(ctx context.Context, units []extract.Unit, base store.Metadata) ([]string, error) {
	committed := make([]string, 0, len(units))
	for _, unit := range units {
		embedding, err := r.embedder.EmbedSingle(ctx, unit.Text)
		if err != nil {
			return nil, &IngestionError{
				CommittedIDs: committed,
				Err:          errors.ErrEmbedding.WithCause(err),
			}
		}

		record := &store.Record{
			ID:        r.ids.Generate(),
			Text:      unit.Text,
			Embedding: embedding,
			Metadata:  mergeMetadata(base, unit),
		}
		if err := r.store.Add(ctx, record); err != nil {
			var dup *store.DuplicateIDError
			if stderrors.As(err, &dup) {
				err = errors.ErrDuplicateID.WithCause(err)
			}
			return nil, &IngestionError{
				CommittedIDs: committed,
				Err:          err,
			}
		}
		committed = append(committed, record.ID)
	}

	return committed, nil
}

// Search embeds the query and returns up to n nearest records.
func (r *Retrieval) Search(ctx context.Context, query string, n int) ([]*store.QueryResult, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()

	if n <= 0 {
		n = r.topK
	}

	start := time.Now()
	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		r.metrics.RecordRetrieval(time.Since(start), err)
		return nil, errors.ErrEmbedding.WithCause(err)
	}

	results, err := r.store.Query(ctx, embedding, n)
	r.metrics.RecordRetrieval(time.Since(start), err)
	if err != nil {
		return nil, errors.ErrStoreQuery.WithCause(err)
	}
	return results, nil
}

// BuildContext searches for the query and renders the hits as a
// citation-annotated context block. An empty result yields "" with no
// sources, which is a legitimate outcome, not an error.
func (r *Retrieval) BuildContext(ctx context.Context, query string, n int) (string, []string, error) {
	results, err := r.Search(ctx, query, n)
	if err != nil {
		return "", nil, err
	}
	if len(results) == 0 {
		return "", nil, nil
	}

	var sb strings.Builder
	sources := make([]string, 0, len(results))
	for i, result := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}

		citation := result.Metadata.Source
		if result.Metadata.Page > 0 {
			citation = fmt.Sprintf("%s (페이지 %d)", citation, result.Metadata.Page)
		}
		sb.WriteString(fmt.Sprintf("[참고자료 %d - %s]\n%s", i+1, citation, result.Text))
		sources = append(sources, citation)
	}

	return sb.String(), sources, nil
}

// Clear removes every stored record.
func (r *Retrieval) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return errors.ErrStoreClear.WithCause(err)
	}
	logger.Infow("vector store cleared")
	return nil
}

// Stats reports the store contents.
func (r *Retrieval) Stats(ctx context.Context) (*store.Stats, error) {
	stats, err := r.store.Stats(ctx)
	if err != nil {
		return nil, errors.ErrStoreQuery.WithCause(err)
	}
	return stats, nil
}
