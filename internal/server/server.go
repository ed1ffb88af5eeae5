// Package server exposes metadata management, language probing and
// translation over a JSON HTTP API built on gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edgard/botmeta/internal/config"
	"github.com/edgard/botmeta/internal/logger"
	"github.com/edgard/botmeta/internal/metadata"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/telegram"
	"github.com/edgard/botmeta/internal/translate"
)

// MetadataService is the Bot API surface the handlers use. *telegram.Client satisfies it.
type MetadataService interface {
	FetchDefaultMetadata(ctx context.Context, token string) (metadata.BotMetadata, error)
	FetchLocalizedMetadata(ctx context.Context, token, code string) (metadata.BotMetadata, error)
	SaveMetadata(ctx context.Context, token string, md metadata.BotMetadata, code string) metadata.Outcomes
	DeleteLocalization(ctx context.Context, token, code string) metadata.Outcomes
	ValidateCredential(ctx context.Context, token string) (telegram.BotIdentity, error)
}

// Prober runs language coverage probes. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, token string) (probe.Result, error)
	Stream(ctx context.Context, token string) (<-chan probe.Event, error)
}

// Translator translates metadata. *translate.Client satisfies it.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (metadata.BotMetadata, error)
}

// Server is the HTTP API.
type Server struct {
	cfg        config.ServerConfig
	svc        MetadataService
	prober     Prober
	translator Translator
	log        *slog.Logger
	engine     *gin.Engine
}

// New wires the routes. translator may be nil, in which case /api/translate
// answers 503.
func New(cfg config.ServerConfig, svc MetadataService, prober Prober, translator Translator, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:        cfg,
		svc:        svc,
		prober:     prober,
		translator: translator,
		log:        log.With("component", "http_server"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), logger.Middleware(s.log))

	r.GET("/healthz", s.handleHealth)

	api := r.Group("/api")
	api.GET("/languages", s.handleLanguages)
	api.POST("/translate", s.handleTranslate)

	tg := api.Group("/telegram")
	tg.POST("/validate", s.handleValidate)
	tg.POST("/metadata", s.handleMetadata)
	tg.POST("/save", s.handleSave)
	tg.POST("/delete-localization", s.handleDeleteLocalization)
	tg.POST("/probe-languages", s.handleProbeLanguages)

	s.engine = r
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// cfg.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
		s.log.Info("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Error during HTTP server shutdown", "error", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
		s.log.Info("HTTP server stopped gracefully.")
		return nil
	}
}
