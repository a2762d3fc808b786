package extract

import (
	"bytes"
	"fmt"

	"github.com/fumiama/go-docx"
)

// extractDocx joins all paragraphs into a single unit.
func extractDocx(data []byte) (units []Unit, err error) {
	defer func() {
		if r := recover(); r != nil {
			units = nil
			err = &ExtractionError{Kind: KindDocx, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Kind: KindDocx, Err: err}
	}

	paragraphs := make([]string, 0, len(doc.Document.Body.Items))
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok {
			paragraphs = append(paragraphs, para.String())
		}
	}

	return []Unit{{Text: joinParagraphs(paragraphs)}}, nil
}

func joinParagraphs(paragraphs []string) string {
	var buf bytes.Buffer
	for i, p := range paragraphs {
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p)
	}
	return buf.String()
}
