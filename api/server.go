// Package api exposes the document chat service over HTTP.
//
// Endpoints:
//
//	GET  /health                     liveness probe
//	GET  /ready                      readiness probe (pings the database)
//	POST /api/chat                   upload a document and/or ask a question
//	POST /api/scrape                 scrape a URL into the document store
//	GET  /api/documents              list stored documents
//	GET  /api/sessions               list chat sessions
//	GET  /api/history/{session_id}   full transcript of one session
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - chat.go: chat and upload endpoint
//   - scrape.go: manual scraping endpoint
//   - documents.go: document listing
//   - sessions.go: session listing and history
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/impar-ai/docchat/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris-style
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads can be large; keep this generous.
	ReadTimeout = 60 * time.Second

	// WriteTimeout must cover LLM generation, which can take up to the
	// configured generation timeout.
	WriteTimeout = 180 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Config carries the dependencies for the HTTP server.
type Config struct {
	Pool     *pgxpool.Pool
	Answerer Answerer
	Ingestor Ingestor
	Fetcher  PageFetcher
	Docs     DocumentLister
	Sessions SessionReader

	// DefaultScrapeURL is used by /api/scrape when the request omits a URL.
	DefaultScrapeURL string

	Logger log.Logger
}

// Server is the HTTP server for the document chat REST API.
type Server struct {
	mux *http.ServeMux

	health    *HealthHandler
	chat      *ChatHandler
	scrape    *ScrapeHandler
	documents *DocumentsHandler
	sessions  *SessionsHandler

	logger log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		health:    NewHealthHandler(cfg.Pool, cfg.Logger),
		chat:      NewChatHandler(cfg.Answerer, cfg.Ingestor, cfg.Logger),
		scrape:    NewScrapeHandler(cfg.Fetcher, cfg.Ingestor, cfg.DefaultScrapeURL, cfg.Logger),
		documents: NewDocumentsHandler(cfg.Docs, cfg.Logger),
		sessions:  NewSessionsHandler(cfg.Sessions, cfg.Logger),
		logger:    cfg.Logger,
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.scrape.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.sessions.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
