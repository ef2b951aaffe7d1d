// Package http provides the HTTP API for the question-answering service.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/onodera-10002/aozora/internal/bot"
	"github.com/onodera-10002/aozora/internal/ingest"
	"github.com/onodera-10002/aozora/internal/logging"
)

// ChatBot answers questions, singly or in batches.
type ChatBot interface {
	Run(ctx context.Context, question string) (bot.ChatResponse, error)
	RunBatch(ctx context.Context, questions []string) []bot.BatchResult
}

// Ingester indexes documents from uploads and source references.
type Ingester interface {
	IngestUpload(ctx context.Context, content io.Reader, filename, title string) (int, error)
	IngestSource(ctx context.Context, source, title string) (int, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigins []string

	// MaxQuestions bounds questions per batch request.
	MaxQuestions int

	// MaxQuestionLen bounds question length in runes.
	MaxQuestionLen int

	// MaxUploadBytes bounds upload size. Default: 50 MiB.
	MaxUploadBytes int64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8005
	}
	if c.MaxQuestions <= 0 {
		c.MaxQuestions = 10
	}
	if c.MaxQuestionLen <= 0 {
		c.MaxQuestionLen = bot.DefaultMaxQuestionLen
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	bot      ChatBot
	ingester Ingester
	logger   *logging.Logger
	config   Config
}

// NewServer creates an HTTP server. registry may be nil to use the default
// Prometheus registry.
func NewServer(cfg Config, chatBot ChatBot, ingester Ingester, registry *prometheus.Registry, logger *logging.Logger) (*Server, error) {
	if chatBot == nil {
		return nil, fmt.Errorf("chat bot is required")
	}
	if ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
		}))
	}
	e.Use(requestLogger(logger))

	s := &Server{
		echo:     e,
		bot:      chatBot,
		ingester: ingester,
		logger:   logger.Named("http"),
		config:   cfg,
	}
	s.registerRoutes(registry)
	return s, nil
}

// requestLogger logs each request and threads the request ID into the
// handler context for downstream log correlation.
func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.ContextWithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			start := time.Now()
			err := next(c)

			logger.Info(ctx, "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.echo.GET("/healthz", s.handleHealth)

	if registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	} else {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/upload", s.handleUpload)
	v1.POST("/ingest", s.handleIngest)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChat answers one question or a batch.
//
// The single form returns the answer directly; a pipeline failure is a
// request failure. The batch form always returns per-question results,
// with failures carried inside the affected result.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	questions, isBatch, err := req.normalize(s.config.MaxQuestions, s.config.MaxQuestionLen)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	ctx := c.Request().Context()

	if !isBatch {
		resp, err := s.bot.Run(ctx, questions[0])
		if err != nil {
			if bot.IsValidationError(err) {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
			}
			s.logger.Error(ctx, "chat failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, publicError(err))
		}
		return c.JSON(http.StatusOK, SingleChatResponse{
			Answer:  resp.Answer,
			Sources: resp.Sources,
		})
	}

	results := s.bot.RunBatch(ctx, questions)
	return c.JSON(http.StatusOK, BatchChatResponse{Results: batchResults(results)})
}

// handleUpload ingests a multipart PDF upload with an optional title.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if fileHeader.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", s.config.MaxUploadBytes))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read upload")
	}
	defer file.Close()

	ctx := c.Request().Context()
	title := c.FormValue("title")

	chunks, err := s.ingester.IngestUpload(ctx, file, fileHeader.Filename, title)
	if err != nil {
		return s.ingestError(c, err)
	}
	return c.JSON(http.StatusOK, UploadResponse{
		Filename: fileHeader.Filename,
		Chunks:   chunks,
	})
}

// handleIngest ingests a source by URL or server-local path.
func (s *Server) handleIngest(c echo.Context) error {
	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Source == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "source field is required")
	}

	ctx := c.Request().Context()
	chunks, err := s.ingester.IngestSource(ctx, req.Source, req.Title)
	if err != nil {
		return s.ingestError(c, err)
	}
	return c.JSON(http.StatusOK, IngestResponse{Source: req.Source, Chunks: chunks})
}

func (s *Server) ingestError(c echo.Context, err error) error {
	ctx := c.Request().Context()
	switch {
	case errors.Is(err, ingest.ErrUnsupportedSource):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrExtraction), errors.Is(err, ingest.ErrEmptyContent):
		s.logger.Warn(ctx, "extraction failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not extract content from source")
	default:
		s.logger.Error(ctx, "ingestion failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingestion failed")
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
