// Package extract converts uploaded study materials into indexable text units.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind identifies how a document's bytes should be parsed.
type Kind string

const (
	// KindText is plain UTF-8 text, one unit for the whole content.
	KindText Kind = "text"
	// KindPDF is a page oriented document, one unit per non-empty page.
	KindPDF Kind = "pdf"
	// KindDocx is a flow document, all paragraphs joined into one unit.
	KindDocx Kind = "docx"
)

// Unit is one indexable span of extracted text. Page and TotalPages are
// 1-based and only set for page oriented kinds.
type Unit struct {
	Text       string
	Page       int
	TotalPages int
}

// ExtractionError reports that a document could not be parsed as its
// declared kind. The caller never receives partial units.
type ExtractionError struct {
	Kind Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract %s document: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// KindForFilename maps a file name to a document kind by extension.
func KindForFilename(name string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return KindText, true
	case ".pdf":
		return KindPDF, true
	case ".docx":
		return KindDocx, true
	default:
		return "", false
	}
}

// Extract parses data as the given kind and returns its text units.
// It is a pure transform over the supplied bytes.
func Extract(data []byte, kind Kind) ([]Unit, error) {
	switch kind {
	case KindText:
		return extractText(data), nil
	case KindPDF:
		return extractPDF(data)
	case KindDocx:
		return extractDocx(data)
	default:
		return nil, &ExtractionError{Kind: kind, Err: fmt.Errorf("unsupported document kind %q", kind)}
	}
}
