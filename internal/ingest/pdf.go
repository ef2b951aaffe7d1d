package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// metaPage carries the zero-based page index on extracted page documents.
const metaPage = "page"

// PDFLoader extracts text from a local PDF, one document per page.
type PDFLoader struct {
	path   string
	logger *logging.Logger
}

// NewPDFLoader creates a loader for one PDF file.
func NewPDFLoader(path string, logger *logging.Logger) *PDFLoader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &PDFLoader{path: path, logger: logger.Named("pdf")}
}

// Load extracts every page. Pages that fail extraction are skipped with a
// warning; the whole file fails only when nothing could be extracted.
func (l *PDFLoader) Load(ctx context.Context) ([]vectorstore.Document, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrExtraction, l.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrExtraction, l.path, err)
	}

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrExtraction, l.path, err)
	}

	var docs []vectorstore.Document
	pageCount := reader.NumPage()
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			l.logger.Warn(ctx, "skipping unreadable page",
				zap.String("file", l.path),
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, vectorstore.Document{
			Content:  text,
			Metadata: map[string]any{metaPage: i - 1},
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyContent, l.path)
	}
	return docs, nil
}
