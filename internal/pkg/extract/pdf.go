package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF produces one unit per page that contains non-whitespace text.
func extractPDF(data []byte) (units []Unit, err error) {
	// The pdf library panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = &ExtractionError{Kind: KindPDF, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Kind: KindPDF, Err: err}
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, &ExtractionError{Kind: KindPDF, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		pages = append(pages, text)
	}

	return unitsFromPages(pages), nil
}

// unitsFromPages assigns 1-based page numbers and skips pages whose text
// is empty or whitespace-only. TotalPages counts skipped pages too.
func unitsFromPages(pages []string) []Unit {
	total := len(pages)
	units := make([]Unit, 0, total)
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, Unit{
			Text:       text,
			Page:       i + 1,
			TotalPages: total,
		})
	}
	return units
}
