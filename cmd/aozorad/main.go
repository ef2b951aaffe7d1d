// Aozorad is the question-answering daemon.
//
// It serves a retrieval-augmented chat API over a local document corpus:
// documents are ingested via upload or URL, chunked and embedded into a
// vector index, and questions are answered by a language model grounded on
// retrieved chunks, with a semantic cache in front of the pipeline.
//
// Configuration is loaded from a YAML file and overridden by environment
// variables (SERVER_PORT, LLM_API_KEY, ...). See internal/config.
//
// Usage:
//
//	# Start with defaults
//	aozorad
//
//	# Start with a config file
//	aozorad -config config.yaml
//
//	aozorad version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/bot"
	"github.com/onodera-10002/aozora/internal/config"
	"github.com/onodera-10002/aozora/internal/embeddings"
	aozorahttp "github.com/onodera-10002/aozora/internal/http"
	"github.com/onodera-10002/aozora/internal/ingest"
	"github.com/onodera-10002/aozora/internal/llm"
	"github.com/onodera-10002/aozora/internal/logging"
	"github.com/onodera-10002/aozora/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  aozorad [-config FILE]   Start the daemon\n")
			fmt.Fprintf(os.Stderr, "  aozorad version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("aozorad\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes all services and blocks until ctx is canceled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info(ctx, "starting aozorad",
		zap.String("version", version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
	)

	embedder, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey.Value(),
	})
	if err != nil {
		return fmt.Errorf("initializing embeddings: %w", err)
	}

	docsStore, cacheStore, err := initStores(cfg, embedder, logger)
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}

	client, err := llm.NewOpenAIClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey.Value(),
		Timeout:     cfg.LLM.Timeout.Duration(),
		MaxRetries:  cfg.LLM.MaxRetries,
		BaseBackoff: cfg.LLM.BaseBackoff.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing language model client: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	chatBot := bot.New(bot.Config{
		RetrieverK:     cfg.Pipeline.RetrieverK,
		CacheThreshold: cfg.Pipeline.CacheThreshold,
		MaxConcurrent:  cfg.Pipeline.MaxConcurrent,
		MaxQuestionLen: cfg.Pipeline.MaxQuestionLen,
	}, client, docsStore, cacheStore, bot.NewMetrics(registry), logger)

	ingester := ingest.NewService(ingest.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		Batch: vectorstore.BatchOptions{
			BatchSize:   cfg.Ingest.BatchSize,
			Pause:       cfg.Ingest.BatchPause.Duration(),
			MaxRetries:  cfg.Ingest.MaxRetries,
			BaseBackoff: cfg.Ingest.BaseBackoff.Duration(),
		},
		UploadDir:  cfg.Ingest.UploadDir,
		WebTimeout: cfg.Ingest.WebTimeout.Duration(),
	}, docsStore, logger)

	if cfg.Ingest.WebSource != "" {
		go func() {
			count, err := ingester.IngestSource(ctx, cfg.Ingest.WebSource, "")
			if err != nil {
				logger.Error(ctx, "startup ingestion failed",
					zap.String("source", cfg.Ingest.WebSource), zap.Error(err))
				return
			}
			logger.Info(ctx, "startup ingestion complete",
				zap.String("source", cfg.Ingest.WebSource), zap.Int("chunks", count))
		}()
	}

	if cfg.Ingest.WatchDir != "" {
		watcher, err := ingest.NewWatcher(cfg.Ingest.WatchDir, ingester, logger)
		if err != nil {
			return fmt.Errorf("initializing drop-directory watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting drop-directory watcher: %w", err)
		}
		defer watcher.Stop()
	}

	server, err := aozorahttp.NewServer(aozorahttp.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxQuestions:   cfg.Pipeline.MaxQuestions,
		MaxQuestionLen: cfg.Pipeline.MaxQuestionLen,
	}, chatBot, ingester, registry, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// initStores builds the document and cache stores for the configured
// provider. Each store is bound to its own collection.
func initStores(cfg *config.Config, embedder *embeddings.Service, logger *logging.Logger) (vectorstore.Store, vectorstore.Store, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant":
		docs, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.QdrantURL,
			Collection: cfg.VectorStore.DocumentCollection,
		}, embedder.Langchain(), logger)
		if err != nil {
			return nil, nil, err
		}
		cache, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			URL:        cfg.VectorStore.QdrantURL,
			Collection: cfg.VectorStore.CacheCollection,
		}, embedder.Langchain(), logger)
		if err != nil {
			return nil, nil, err
		}
		return docs, cache, nil

	default:
		db, err := vectorstore.NewChromemDB(vectorstore.ChromemConfig{
			Path:     cfg.VectorStore.Path,
			Compress: cfg.VectorStore.Compress,
		}, embedder, logger)
		if err != nil {
			return nil, nil, err
		}
		docs, err := db.Collection(cfg.VectorStore.DocumentCollection)
		if err != nil {
			return nil, nil, err
		}
		cache, err := db.Collection(cfg.VectorStore.CacheCollection)
		if err != nil {
			return nil, nil, err
		}
		return docs, cache, nil
	}
}
