package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"talktocode/config"
	"talktocode/internal/domain"
	"talktocode/internal/usecase"
)

// Ingestor runs the ingestion pipeline for one repository.
type Ingestor interface {
	Ingest(ctx context.Context, owner, repo string, progress usecase.ProgressFunc) (*usecase.IngestResult, error)
}

// Answerer resolves a natural-language question to ranked snippets.
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) ([]domain.QueryResult, error)
}

// Server exposes the two pipeline endpoints over HTTP.
type Server struct {
	ingestor Ingestor
	answerer Answerer
	topK     int
	log      *slog.Logger

	httpServer    *http.Server
	shutdownGrace time.Duration
}

func New(cfg config.ServerConfig, ingestor Ingestor, answerer Answerer, topK int, log *slog.Logger) *Server {
	if topK <= 0 {
		topK = 5
	}

	s := &Server{
		ingestor:      ingestor,
		answerer:      answerer,
		topK:          topK,
		log:           log,
		shutdownGrace: time.Duration(cfg.ShutdownSecs) * time.Second,
	}
	if s.shutdownGrace == 0 {
		s.shutdownGrace = 10 * time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/parse-repo", s.handleParseRepo)
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
	}
	return s
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownGrace)
	defer cancel()

	s.log.Info("shutting down http server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
