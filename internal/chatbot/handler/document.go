package handler

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/biz"
	"github.com/kenneth-kang/elementary-chatbot/internal/chatbot/store"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/extract"
	"github.com/kenneth-kang/elementary-chatbot/internal/pkg/httputils"
	"github.com/kenneth-kang/elementary-chatbot/pkg/errors"
)

// maxUploadBytes caps an uploaded learning material at 20 MiB.
const maxUploadBytes = 20 << 20

// DocumentHandler handles learning material management.
type DocumentHandler struct {
	retrieval *biz.Retrieval
	uploadDir string
}

// NewDocumentHandler creates a new DocumentHandler. uploadDir may be
// empty to disable keeping uploaded files on disk.
func NewDocumentHandler(retrieval *biz.Retrieval, uploadDir string) *DocumentHandler {
	return &DocumentHandler{
		retrieval: retrieval,
		uploadDir: uploadDir,
	}
}

// ingestData is the response payload for document ingestion.
type ingestData struct {
	IDs    []string `json:"ids"`
	Units  int      `json:"units"`
	Source string   `json:"source"`
}

// Upload handles POST /documents/upload with a multipart file plus
// subject, grade and topic form fields.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithMessages(
			"file field is required", "file 필드가 필요합니다").WithCause(err))
		return
	}
	if fileHeader.Size > maxUploadBytes {
		httputils.WriteError(c, errors.ErrRequestTooLarge)
		return
	}

	kind, ok := extract.KindForFilename(fileHeader.Filename)
	if !ok {
		httputils.WriteError(c, errors.ErrUnsupportedKind)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httputils.WriteError(c, errors.ErrInternal.WithCause(err))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		httputils.WriteError(c, errors.ErrInternal.WithCause(err))
		return
	}

	h.keepUpload(fileHeader.Filename, data)

	base := store.Metadata{
		Source:  fileHeader.Filename,
		Subject: c.PostForm("subject"),
		Grade:   c.PostForm("grade"),
		Topic:   c.PostForm("topic"),
	}
	ids, err := h.retrieval.Ingest(c.Request.Context(), data, kind, base)
	if err != nil {
		writeIngestError(c, err)
		return
	}

	httputils.WriteSuccess(c, ingestData{IDs: ids, Units: len(ids), Source: base.Source})
}

// keepUpload stores a copy of the uploaded file for later re-ingestion.
func (h *DocumentHandler) keepUpload(filename string, data []byte) {
	if h.uploadDir == "" {
		return
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		logger.Warnw("failed to create upload dir", "dir", h.uploadDir, "error", err.Error())
		return
	}
	path := filepath.Join(h.uploadDir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Warnw("failed to keep uploaded file", "path", path, "error", err.Error())
	}
}

// textRequest is the request body for POST /documents/text.
type textRequest struct {
	Text    string `json:"text" binding:"required"`
	Source  string `json:"source"`
	Subject string `json:"subject"`
	Grade   string `json:"grade"`
	Topic   string `json:"topic"`
}

// IngestText handles POST /documents/text.
func (h *DocumentHandler) IngestText(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	base := store.Metadata{
		Source:  req.Source,
		Subject: req.Subject,
		Grade:   req.Grade,
		Topic:   req.Topic,
	}
	ids, err := h.retrieval.Ingest(c.Request.Context(), []byte(req.Text), extract.KindText, base)
	if err != nil {
		writeIngestError(c, err)
		return
	}

	source := req.Source
	if source == "" {
		source = store.DefaultSource
	}
	httputils.WriteSuccess(c, ingestData{IDs: ids, Units: len(ids), Source: source})
}

// searchRequest is the request body for POST /documents/search.
type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}

// searchHit is one search result entry.
type searchHit struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Distance float32        `json:"distance"`
	Metadata store.Metadata `json:"metadata"`
}

// Search handles POST /documents/search.
func (h *DocumentHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, errors.ErrInvalidParam.WithCause(err))
		return
	}

	results, err := h.retrieval.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		httputils.WriteError(c, err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, result := range results {
		hits = append(hits, searchHit{
			ID:       result.ID,
			Text:     result.Text,
			Distance: result.Distance,
			Metadata: result.Metadata,
		})
	}
	httputils.WriteSuccess(c, gin.H{"query": req.Query, "results": hits})
}

// Stats handles GET /documents.
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.retrieval.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, err)
		return
	}
	httputils.WriteSuccess(c, gin.H{
		"total_documents": stats.TotalDocuments,
		"subjects":        stats.Subjects,
	})
}

// Clear handles POST /documents/clear.
func (h *DocumentHandler) Clear(c *gin.Context) {
	if err := h.retrieval.Clear(c.Request.Context()); err != nil {
		httputils.WriteError(c, err)
		return
	}
	logger.Infow("documents cleared via API")
	httputils.WriteSuccess(c, gin.H{"cleared": true})
}

// writeIngestError surfaces partial-commit information so callers can
// see which units made it into the store before the failure.
func writeIngestError(c *gin.Context, err error) {
	var ingestErr *biz.IngestionError
	if stderrors.As(err, &ingestErr) {
		httputils.WriteErrorDetails(c, errors.ErrIngestion.WithCause(err), gin.H{
			"committed_ids": ingestErr.CommittedIDs,
		})
		return
	}
	httputils.WriteError(c, err)
}
