package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

var ingestTracer = otel.Tracer("aozora.ingest")

// Metadata keys stamped on every indexed chunk.
const (
	metaUserTitle  = "user_title"
	metaSourceFile = "source_file"
	metaPageInfo   = "page_info"
)

// Config holds ingestion settings.
type Config struct {
	// ChunkSize and ChunkOverlap control text splitting.
	ChunkSize    int
	ChunkOverlap int

	// Batch controls rate-limited indexing.
	Batch vectorstore.BatchOptions

	// UploadDir receives uploaded files before extraction.
	// Default: "temp_uploads".
	UploadDir string

	// WebTimeout bounds one page fetch.
	WebTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Batch.BatchSize <= 0 {
		c.Batch.BatchSize = 100
	}
	if c.Batch.Pause <= 0 {
		c.Batch.Pause = time.Second
	}
	if c.Batch.MaxRetries <= 0 {
		c.Batch.MaxRetries = 5
	}
	if c.Batch.BaseBackoff <= 0 {
		c.Batch.BaseBackoff = time.Second
	}
	if c.UploadDir == "" {
		c.UploadDir = "temp_uploads"
	}
	if c.WebTimeout <= 0 {
		c.WebTimeout = DefaultWebTimeout
	}
}

// Service extracts, chunks, and indexes documents.
type Service struct {
	config   Config
	splitter *Splitter
	store    vectorstore.Store
	logger   *logging.Logger
}

// NewService creates an ingestion service over the document index.
func NewService(cfg Config, store vectorstore.Store, logger *logging.Logger) *Service {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		config:   cfg,
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		store:    store,
		logger:   logger.Named("ingest"),
	}
}

// IngestSource loads a source by its string form (URL or file path),
// chunks it, and indexes the chunks. It returns the chunk count.
func (s *Service) IngestSource(ctx context.Context, source, title string) (int, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.source")
	defer span.End()

	loader, err := ChooseLoader(source, s.config.WebTimeout, s.logger)
	if err != nil {
		return 0, err
	}
	return s.ingest(ctx, loader, source, title)
}

// IngestUpload saves an uploaded PDF to the staging directory, indexes it,
// and removes the staged file afterwards. It returns the chunk count.
func (s *Service) IngestUpload(ctx context.Context, content io.Reader, filename, title string) (int, error) {
	ctx, span := ingestTracer.Start(ctx, "ingest.upload")
	defer span.End()

	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return 0, fmt.Errorf("%w: only PDF uploads are accepted: %s", ErrUnsupportedSource, filename)
	}

	staged, err := s.stage(content, filename)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := os.Remove(staged); err != nil {
			s.logger.Warn(ctx, "failed to remove staged upload",
				zap.String("path", staged), zap.Error(err))
		}
	}()

	return s.ingest(ctx, NewPDFLoader(staged, s.logger), filename, title)
}

// stage writes the upload under a collision-free name in the staging
// directory and returns its path.
func (s *Service) stage(content io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(s.config.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: creating upload dir: %v", ErrIngestion, err)
	}

	// filepath.Base strips any client-supplied directory components.
	staged := filepath.Join(s.config.UploadDir, uuid.NewString()+"_"+filepath.Base(filename))
	out, err := os.Create(staged)
	if err != nil {
		return "", fmt.Errorf("%w: staging upload: %v", ErrIngestion, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, content); err != nil {
		os.Remove(staged)
		return "", fmt.Errorf("%w: writing upload: %v", ErrIngestion, err)
	}
	return staged, nil
}

// ingest runs extract, enrich, split, index for one source.
func (s *Service) ingest(ctx context.Context, loader Loader, source, title string) (int, error) {
	start := time.Now()

	docs, err := loader.Load(ctx)
	if err != nil {
		return 0, err
	}
	enrichMetadata(docs, source, title)

	chunks, err := s.splitter.Split(docs)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIngestion, err)
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyContent, source)
	}

	count, err := vectorstore.BatchAdd(ctx, s.store, chunks, s.config.Batch, s.logger)
	if err != nil {
		return count, fmt.Errorf("%w: %v", ErrIngestion, err)
	}

	s.logger.Info(ctx, "ingested source",
		zap.String("source", source),
		zap.Int("pages", len(docs)),
		zap.Int("chunks", count),
		zap.Duration("elapsed", time.Since(start)),
	)
	return count, nil
}

// enrichMetadata stamps provenance fields onto extracted documents. The
// zero-based extraction page index becomes a 1-based display page.
func enrichMetadata(docs []vectorstore.Document, source, title string) {
	sourceFile := filepath.Base(source)
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any, 3)
		}
		if title != "" {
			docs[i].Metadata[metaUserTitle] = title
		}
		docs[i].Metadata[metaSourceFile] = sourceFile
		if page, ok := docs[i].Metadata[metaPage].(int); ok {
			docs[i].Metadata[metaPageInfo] = page + 1
			delete(docs[i].Metadata, metaPage)
		}
	}
}
