// Package server provides the public entry point for initializing the
// onboarding gateway.
//
// This package exists in pkg/ (not internal/) so that an embedding process
// can compose the gateway with its own middleware or mount it on its own mux.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/Hazard-House/openclaw/internal/api"
	"github.com/Hazard-House/openclaw/internal/api/handlers"
	"github.com/Hazard-House/openclaw/internal/broker"
	"github.com/Hazard-House/openclaw/internal/config"
	"github.com/Hazard-House/openclaw/internal/connections"
	"github.com/Hazard-House/openclaw/internal/onboard"
	"github.com/Hazard-House/openclaw/internal/provision"
	"github.com/Hazard-House/openclaw/internal/recipes"
	"github.com/Hazard-House/openclaw/internal/telemetry"
	"github.com/Hazard-House/openclaw/pkg/middleware"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized onboarding gateway.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Onboard is the service behind /rpc, for in-process callers.
	Onboard *onboard.Service

	// Brokers owns the cached broker client. Reset it after rotating credentials.
	Brokers *broker.Provider

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and builds a Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig builds a Server from an explicit configuration.
func NewWithConfig(_ context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	svc, brokers := NewService(cfg)

	h := handlers.New(svc)
	router := api.NewRouter(cfg, h)

	log.Info().
		Str("config", cfg.State.ConfigPath).
		Str("workspaces", cfg.State.WorkspaceRoot).
		Msg("Onboarding service initialized")

	return &Server{
		Handler:      router,
		Onboard:      svc,
		Brokers:      brokers,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// NewService wires the onboarding service without the HTTP surface.
func NewService(cfg *config.Config) (*onboard.Service, *broker.Provider) {
	store := agentconfig.NewStore(cfg.State.ConfigPath)
	catalog := recipes.Default()
	brokers := broker.NewProvider()

	conns := connections.New(connections.Options{
		Resolver:        middleware.EntityFromContext,
		DefaultEntityID: cfg.Broker.DefaultEntityID,
		MaxAppsPerBatch: cfg.Broker.MaxAppsPerBatch,
	})
	pipeline := provision.New(provision.Options{
		Store:         store,
		Recipes:       catalog,
		StateDir:      cfg.State.Dir,
		WorkspaceRoot: cfg.State.WorkspaceRoot,
	})

	log.Debug().
		Str("config", store.Path()).
		Int("max_apps_per_batch", conns.MaxAppsPerBatch()).
		Msg("Onboarding service wired")

	svc := onboard.New(onboard.Options{
		Store:         store,
		Recipes:       catalog,
		Brokers:       brokers,
		Connections:   conns,
		Pipeline:      pipeline,
		BrokerBaseURL: cfg.Broker.BaseURL,
	})
	return svc, brokers
}
