package main

import (
	"context"
	"net/http"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
	"github.com/llmify/llmstxt-service/common/db"
	"github.com/llmify/llmstxt-service/common/queue"
	"github.com/llmify/llmstxt-service/handler"
	"github.com/llmify/llmstxt-service/middlewares"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

type AppHttpServer struct {
	router   *chi.Mux
	cfg      config.Config
	server   *http.Server
	db       *db.DB
	registry *queue.Registry
}

func NewAppHttpServer(cfg config.Config) *AppHttpServer {
	router := chi.NewRouter()

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-KEY"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(2 * time.Minute))

	return &AppHttpServer{
		router: router,
		cfg:    cfg,
	}
}

func (s *AppHttpServer) SetDB(db *db.DB) {
	s.db = db
}

func (s *AppHttpServer) SetRegistry(registry *queue.Registry) {
	s.registry = registry
}

func (s *AppHttpServer) setupRoute() {
	healthHandler := handler.NewHealthHandler(s.db)
	generationHandler := handler.NewGenerationHandler(s.db, s.registry)
	orderHandler := handler.NewOrderHandler(s.db, s.registry)

	s.router.Mount("/health", healthHandler.Router())

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(middlewares.ApiKey(s.cfg.Security.BackendApiKey))
		r.Mount("/generations", generationHandler.Router())
		r.Mount("/orders", orderHandler.Router())
	})
}

func (s *AppHttpServer) start() error {
	s.setupRoute()

	s.server = &http.Server{
		Addr:         s.cfg.Listen.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("address", s.cfg.Listen.Addr()).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AppHttpServer) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
