package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"ragdesk/internal/model"
	"ragdesk/internal/pkg/pdfextract"
	"ragdesk/internal/pkg/webpage"
)

// Loader turns a submitted document into extracted pages: the stored pdf
// file page by page, or the fetched web page as a single unit.
type Loader struct {
	httpClient *http.Client
}

func NewLoader() *Loader {
	return &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *Loader) Load(ctx context.Context, doc *model.Document) ([]Page, error) {
	switch doc.SourceType {
	case model.SourcePDF:
		return l.loadPDF(doc.StoragePath)
	case model.SourceWeb:
		return l.loadWeb(ctx, doc.SourceURL)
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnknownSourceType, doc.SourceType)
}

func (l *Loader) loadPDF(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stored pdf failed: %w", err)
	}
	defer f.Close()

	texts, err := pdfextract.ExtractPages(f)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text failed: %w", err)
	}

	pages := make([]Page, len(texts))
	for i, text := range texts {
		pages[i] = Page{Text: text, Number: i + 1}
	}
	return pages, nil
}

func (l *Loader) loadWeb(ctx context.Context, url string) ([]Page, error) {
	page, err := webpage.Fetch(ctx, l.httpClient, url)
	if err != nil {
		return nil, err
	}
	return []Page{{Text: page.Text, URL: url}}, nil
}
