// Package server provides the HTTP API for shashin.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/shashin/internal/config"
	"github.com/hyperjump/shashin/internal/ingest"
	"github.com/hyperjump/shashin/internal/search"
	"github.com/hyperjump/shashin/internal/storage"
	"github.com/hyperjump/shashin/internal/vector"
)

// maxUploadBytes bounds the size of a multipart upload request.
const maxUploadBytes = 32 << 20

// Server is the HTTP server for the shashin API.
type Server struct {
	engine    *search.Engine
	ingester  *ingest.Ingester
	storage   storage.Storage
	vectors   *vector.Store
	config    *config.ServerConfig
	uploadDir string
	logger    *zap.Logger

	mu      sync.Mutex
	server  *http.Server
	stopped bool
}

// NewServer creates a server with the given dependencies. Files under uploadDir are served
// at /uploads/.
func NewServer(
	engine *search.Engine,
	ingester *ingest.Ingester,
	storage storage.Storage,
	vectors *vector.Store,
	cfg *config.ServerConfig,
	uploadDir string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:    engine,
		ingester:  ingester,
		storage:   storage,
		vectors:   vectors,
		config:    cfg,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Compress(5)).Get("/search", s.handleSearchGet)
		r.With(middleware.Compress(5)).Post("/search", s.handleSearchPost)
		r.Post("/photos", s.handleUpload)
		r.Get("/photos", s.handleListPhotos)
		r.Get("/photos/{id}", s.handleGetPhoto)
		r.Delete("/photos/{id}", s.handleDeletePhoto)
		r.Get("/photos/{id}/similar", s.handleSimilar)
		r.Post("/embeddings", s.handleAddEmbedding)
		r.Get("/albums", s.handleAlbums)
		r.Get("/stats", s.handleStats)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadDir))))
	return r
}

// requestLogger logs each request with zap once the response is written.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// Start starts the HTTP server and blocks until it stops. A server stopped with Stop,
// before or after Start, returns nil.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("Starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
