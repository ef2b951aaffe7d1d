package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// fakeStore records inserted chunks.
type fakeStore struct {
	mu    sync.Mutex
	added []vectorstore.Document
}

func (s *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, docs...)
	return make([]string, len(docs)), nil
}

func (s *fakeStore) Search(context.Context, string, int) ([]vectorstore.Document, error) {
	return nil, nil
}

func (s *fakeStore) SearchWithScore(context.Context, string, int) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

// fakeLoader returns scripted page documents.
type fakeLoader struct {
	docs []vectorstore.Document
	err  error
}

func (l *fakeLoader) Load(context.Context) ([]vectorstore.Document, error) {
	return l.docs, l.err
}

func TestChooseLoader(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    any
		wantErr error
	}{
		{name: "http url", source: "http://example.com/cards/000879/files/127_15260.html", want: &WebLoader{}},
		{name: "https url", source: "https://example.com/page.html", want: &WebLoader{}},
		{name: "pdf path", source: "/drop/novel.PDF", want: &PDFLoader{}},
		{name: "unsupported", source: "notes.txt", wantErr: ErrUnsupportedSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, err := ChooseLoader(tt.source, 0, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, loader)
		})
	}
}

func TestSplitterCarriesMetadata(t *testing.T) {
	splitter := NewSplitter(50, 0)
	chunks, err := splitter.Split([]vectorstore.Document{{
		Content:  strings.Repeat("sentence one. ", 20),
		Metadata: map[string]any{"page": 3},
	}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1, "long text must split into multiple chunks")
	for _, chunk := range chunks {
		assert.Equal(t, 3, chunk.Metadata["page"])
	}
}

func TestServiceIngestEnrichesMetadata(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(Config{ChunkSize: 10_000}, store, nil)

	count, err := svc.ingest(context.Background(), &fakeLoader{docs: []vectorstore.Document{
		{Content: "page one text", Metadata: map[string]any{metaPage: 0}},
		{Content: "page two text", Metadata: map[string]any{metaPage: 1}},
	}}, "/uploads/rashomon.pdf", "Rashomon")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, store.added, 2)
	first := store.added[0].Metadata
	assert.Equal(t, "Rashomon", first[metaUserTitle])
	assert.Equal(t, "rashomon.pdf", first[metaSourceFile])
	assert.Equal(t, 1, first[metaPageInfo], "display pages are 1-based")
	assert.NotContains(t, first, metaPage)

	assert.Equal(t, 2, store.added[1].Metadata[metaPageInfo])
}

func TestServiceIngestUntitledSource(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(Config{ChunkSize: 10_000}, store, nil)

	_, err := svc.ingest(context.Background(), &fakeLoader{docs: []vectorstore.Document{
		{Content: "body text"},
	}}, "https://example.com/cards/127_15260.html", "")
	require.NoError(t, err)

	require.Len(t, store.added, 1)
	metadata := store.added[0].Metadata
	assert.NotContains(t, metadata, metaUserTitle)
	assert.Equal(t, "127_15260.html", metadata[metaSourceFile])
}

func TestServiceIngestExtractionFailure(t *testing.T) {
	svc := NewService(Config{}, &fakeStore{}, nil)

	_, err := svc.ingest(context.Background(), &fakeLoader{err: ErrEmptyContent}, "x.pdf", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestServiceIngestUploadRejectsNonPDF(t *testing.T) {
	svc := NewService(Config{UploadDir: t.TempDir()}, &fakeStore{}, nil)

	_, err := svc.IngestUpload(context.Background(), strings.NewReader("data"), "notes.txt", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestServiceStageCleansPath(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(Config{UploadDir: dir}, &fakeStore{}, nil)

	staged, err := svc.stage(strings.NewReader("content"), "../../etc/evil.pdf")
	require.NoError(t, err)
	assert.Contains(t, staged, dir)
	assert.Contains(t, staged, "evil.pdf")
	assert.NotContains(t, staged, "..")
}
