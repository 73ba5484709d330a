package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ExtractsTitleAndText(t *testing.T) {
	page := Parse(`<html><head><title>Leave Policy</title></head>
<body><h1>Leave Policy</h1><p>Employees accrue 20 days per year.</p></body></html>`)

	assert.Equal(t, "Leave Policy", page.Title)
	assert.Contains(t, page.Text, "Employees accrue 20 days per year.")
}

func TestParse_SkipsScriptAndStyle(t *testing.T) {
	page := Parse(`<html><body>
<script>var secret = "tracking";</script>
<style>.hidden { display: none; }</style>
<p>Visible paragraph.</p>
</body></html>`)

	assert.Contains(t, page.Text, "Visible paragraph.")
	assert.NotContains(t, page.Text, "tracking")
	assert.NotContains(t, page.Text, "display")
}

func TestParse_BlockElementsBreakLines(t *testing.T) {
	page := Parse(`<html><body><p>First block.</p><p>Second block.</p></body></html>`)

	assert.Contains(t, page.Text, "First block.")
	assert.Contains(t, page.Text, "Second block.")
	assert.NotContains(t, page.Text, "First block. Second block.")
}

func TestFetch_ReturnsParsedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Handbook</title></head><body><p>Remote work is allowed.</p></body></html>`))
	}))
	defer srv.Close()

	page, err := Fetch(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Handbook", page.Title)
	assert.Contains(t, page.Text, "Remote work is allowed.")
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
}
