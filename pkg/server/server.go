// Package server provides the public entry point for initializing the
// support bot server: configuration, telemetry, tenant registry, session
// store, the decision cascade, and the HTTP router.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	srv.Start(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/api"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/api/handlers"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/bot"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/classify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/config"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/embeddings"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/faults"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/knowledge"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/lead"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/llm"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/memory"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/metrics"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/notify"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/patterns"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/prompt"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/telemetry"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/tenant"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/internal/validate"
	"github.com/adrianfolkeson/vallhamragruppen-support-bot/pkg/contracts"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized support bot.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	sessions *memory.Store
	tenants  *tenant.Registry

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	embedder := embedderFrom(cfg.Embeddings)
	sessions := memory.NewStore(cfg.Sessions.TTL)
	tenants := tenant.NewRegistry(cfg.TenantDir, cfg.Cascade, embedder)
	collector := metrics.NewCollector()

	dispatcher := notify.NewDispatcher()
	dispatcher.Register(notify.NewWebhookSink(cfg.WebhookSecret))

	registry := llm.NewRegistry()
	var model contracts.ModelDriver
	if cfg.Remote.Provider != "" && cfg.Remote.Provider != "none" {
		model = llm.FromConfig(cfg.Remote)
		registry.Register(model)
		log.Info().Str("provider", cfg.Remote.Provider).Str("model", cfg.Remote.Model).Msg("Remote model configured")
	} else {
		log.Info().Msg("No remote model configured, cascade ends at fallback")
	}

	orch := bot.New(bot.Options{
		Validator:  validate.New(cfg.Cascade.MaxMessageChars),
		Tenants:    tenants,
		Store:      sessions,
		Matcher:    patterns.NewMatcher(),
		Detector:   faults.NewDetector(),
		Catalog:    knowledge.NewCatalog(embedder, cfg.Cascade),
		Classifier: classify.New(),
		Leads:      lead.New(),
		Composer:   prompt.New(),
		Model:      model,
		Dispatcher: dispatcher,
		Collector:  collector,
	})

	h := handlers.New(orch, sessions, tenants, collector, registry)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Config:       cfg,
		Port:         cfg.Port,
		sessions:     sessions,
		tenants:      tenants,
		ShutdownFunc: shutdown,
	}, nil
}

// Start launches the background workers: the session reaper and the
// tenant config watcher. Both stop when ctx is canceled.
func (s *Server) Start(ctx context.Context) {
	go s.sessions.StartReaper(ctx, s.Config.Sessions.ReaperInterval)
	go func() {
		if err := s.tenants.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("Tenant config watcher unavailable, reload via API only")
		}
	}()
}

// embedderFrom builds the optional embedding driver for semantic catalog
// lookup. Nil when not configured; the catalog then runs keyword lookup
// only.
func embedderFrom(cfg config.EmbeddingsConfig) contracts.EmbeddingDriver {
	switch cfg.Provider {
	case "openai":
		return embeddings.NewOpenAIDriver(cfg.APIKey, cfg.Model)
	case "ollama":
		return embeddings.NewOllamaDriver(cfg.Endpoint, cfg.Model)
	default:
		return nil
	}
}
