// Package extractor pulls plain text out of PDF files.
package extractor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"docqa/internal/errs"
	"docqa/internal/logger"
)

// PDFExtractor reads text page by page with ledongthuc/pdf.
type PDFExtractor struct {
	log *logger.Logger
}

func NewPDFExtractor(log *logger.Logger) *PDFExtractor {
	return &PDFExtractor{log: log.With("component", "PDFExtractor")}
}

// Extract returns the non-empty text segments of the document joined by a
// blank line. A page that fails to decode is skipped with a warning; a file
// that cannot be opened as a PDF is an extraction error.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	const op = "extractor.Extract"
	info, err := os.Stat(path)
	if err != nil {
		return "", errs.E(errs.Extraction, op, err)
	}
	if info.IsDir() {
		return "", errs.Errorf(errs.Extraction, op, "%s is a directory", path)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errs.Errorf(errs.Extraction, op, "parse %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", errs.E(errs.Extraction, op, fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	pages := reader.NumPage()
	segments := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", errs.E(errs.Extraction, op, err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			e.log.Warn("skipping unreadable page", "path", path, "page", i, "error", err)
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		segments = append(segments, pageText)
	}

	e.log.Debug("pdf extracted", "path", path, "pages", pages, "segments", len(segments))
	return strings.Join(segments, "\n\n"), nil
}
