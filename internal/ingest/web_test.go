package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWebLoaderExtractsMainText(t *testing.T) {
	server := serveHTML(t, `<html><body>
		<div class="header">site chrome</div>
		<div class="main_text">Once upon a time<br/>there was a servant.</div>
		<div class="footer">more chrome</div>
	</body></html>`)

	loader := NewWebLoader(server.URL, 0, nil)
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].Content, "Once upon a time")
	assert.Contains(t, docs[0].Content, "there was a servant.")
	assert.NotContains(t, docs[0].Content, "site chrome")
	assert.NotContains(t, docs[0].Content, "more chrome")
}

func TestWebLoaderStripsRubyAnnotations(t *testing.T) {
	server := serveHTML(t, `<html><body><div class="main_text">
		<ruby><rb>下人</rb><rp>（</rp><rt>げにん</rt><rp>）</rp></ruby>が雨やみを待っていた。
	</div></body></html>`)

	loader := NewWebLoader(server.URL, 0, nil)
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].Content, "下人")
	assert.NotContains(t, docs[0].Content, "げにん")
	assert.NotContains(t, docs[0].Content, "（")
}

func TestWebLoaderFallsBackToBody(t *testing.T) {
	server := serveHTML(t, `<html><head><style>p{}</style></head><body>
		<p>plain page text</p><script>alert(1)</script>
	</body></html>`)

	loader := NewWebLoader(server.URL, 0, nil)
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Contains(t, docs[0].Content, "plain page text")
	assert.NotContains(t, docs[0].Content, "alert")
}

func TestWebLoaderStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	loader := NewWebLoader(server.URL, 0, nil)
	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestWebLoaderEmptyPage(t *testing.T) {
	server := serveHTML(t, `<html><body><div class="main_text">   </div></body></html>`)

	loader := NewWebLoader(server.URL, 0, nil)
	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyContent)
}
