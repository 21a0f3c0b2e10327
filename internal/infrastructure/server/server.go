package server

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/deckardhq/deckard/internal/adapter/assistant"
	"github.com/deckardhq/deckard/internal/adapter/repository"
	"github.com/deckardhq/deckard/internal/adapter/rest"
	"github.com/deckardhq/deckard/internal/infrastructure/config"
	"github.com/deckardhq/deckard/internal/usecase"
	"github.com/deckardhq/deckard/internal/worker"
)

// Server represents the application server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	worker     *worker.ImportWorker
	logger     *logrus.Logger
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logrus.Logger, pool *pgxpool.Pool) *Server {
	// Repositories
	deckRepo := repository.NewDeckRepository(pool)
	cardRepo := repository.NewCardRepository(pool)
	studyRepo := repository.NewStudyRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	jobRepo := repository.NewImportJobRepository(pool)

	// Local model client serves both topic extraction and generation.
	ollama := assistant.NewOllama(assistant.Config{
		Host:    cfg.Assistant.Host,
		Model:   cfg.Assistant.Model,
		Timeout: cfg.Assistant.Timeout,
	}, logger)

	// Usecases
	cardUC := usecase.NewCardUsecase(deckRepo, cardRepo, logger)
	studyUC := usecase.NewStudyUsecase(studyRepo)
	sessionUC := usecase.NewSessionUsecase(sessionRepo, studyRepo, cardRepo, ollama, ollama, logger)
	importUC := usecase.NewImportUsecase(jobRepo, deckRepo, cardRepo, ollama, logger)

	handler := rest.NewHandler(studyUC, sessionUC, cardUC, importUC, logger).Routes()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}).Handler(handler)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: h2c.NewHandler(corsHandler, &http2.Server{}),
	}

	return &Server{
		config:     cfg,
		httpServer: httpServer,
		worker:     worker.NewImportWorker(importUC, cfg.Worker.ImportInterval, logger),
		logger:     logger,
	}
}

// Start runs the HTTP server and the background import worker, blocking
// until the listener fails or is shut down.
func (s *Server) Start() error {
	s.worker.Start()

	s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	s.worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Failed to shutdown HTTP server: %v", err)
		return err
	}

	s.logger.Info("Server shutdown complete")
	return nil
}
