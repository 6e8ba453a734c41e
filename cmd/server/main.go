// OpenClaw onboarding gateway.
//
// Serves the onboarding RPC surface over HTTP:
//   - recipe listing and agent provisioning (onboard.recipes, onboard.simple)
//   - broker connection lifecycle (onboard.auth.*, connections.*)
//   - the agent registry (agents.list)

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hazard-House/openclaw/internal/agentconfig"
	"github.com/Hazard-House/openclaw/internal/broker"
	"github.com/Hazard-House/openclaw/internal/config"
	"github.com/Hazard-House/openclaw/pkg/server"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("Unknown log level, using info")
	}

	log.Info().Str("version", cfg.Version).Msg("OpenClaw onboarding gateway starting")

	ctx := context.Background()
	srv, err := server.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer srv.ShutdownFunc(ctx)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", srv.Port),
		Handler:      srv.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if _, ok := srv.Brokers.Resolve(broker.Settings{BaseURL: cfg.Broker.BaseURL}); !ok {
		log.Warn().Msgf("%s not set; connection methods need plugins.entries.%s.config.apiKey in %s",
			broker.APIKeyEnv, agentconfig.BrokerPlugin, cfg.State.ConfigPath)
	}

	// SIGHUP drops the cached broker client so a rotated key is picked up.
	// SIGINT and SIGTERM shut down gracefully.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				srv.Brokers.Reset()
				log.Info().Msg("Broker client reset")
				continue
			}

			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Shutdown incomplete")
			}
			cancel()
			return
		}
	}()

	log.Info().
		Int("port", srv.Port).
		Bool("auth", len(cfg.Auth.Keys()) > 0).
		Str("state_dir", cfg.State.Dir).
		Str("workspaces", cfg.State.WorkspaceRoot).
		Msg("Listening")

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}
