package app

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150
)

// Page is one unit of extracted source text with its provenance: a single
// pdf page or a whole web page.
type Page struct {
	Text   string
	Number int    // 1-indexed pdf page number, 0 for web pages
	URL    string // source url for web pages, empty for pdf
}

// Window is one overlapping slice of a page's text. It keeps the page's
// provenance so a chunk can always be cited.
type Window struct {
	Text string
	Page int
	URL  string
}

// Chunker splits extracted pages into overlapping windows by rune count.
type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split windows every page. Windows never span page boundaries, so each one
// maps to exactly one provenance location. Whitespace-only windows are
// dropped.
func (c *Chunker) Split(pages []Page) []Window {
	var windows []Window
	for _, page := range pages {
		for _, text := range splitText(page.Text, c.size, c.overlap) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			windows = append(windows, Window{
				Text: text,
				Page: page.Number,
				URL:  page.URL,
			})
		}
	}
	return windows
}

// splitText splits text into overlapping chunks by rune count. The last
// chunk ends exactly at the text end; no window is emitted that sits fully
// inside the previous one.
func splitText(text string, size, overlap int) []string {
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
		i += size - overlap
	}
	return chunks
}
