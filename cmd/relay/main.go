package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/phab-relay/internal/config"
	"github.com/phab-relay/internal/infrastructure/conduit"
	"github.com/phab-relay/internal/infrastructure/disabled"
	"github.com/phab-relay/internal/infrastructure/jwtauth"
	"github.com/phab-relay/internal/infrastructure/slack"
	"github.com/phab-relay/internal/metrics"
	transporthttp "github.com/phab-relay/internal/transport/http"
	"github.com/rs/zerolog"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	m := metrics.New()

	conduitClient := conduit.NewClient(cfg, logger, m)
	slackClient := slack.NewClient(cfg, logger)
	store := disabled.NewStore(cfg.DisabledUsersFile)

	// JWT provider (optional; without it the admin routes are not mounted).
	var jwtProvider *jwtauth.Provider
	if p, err := jwtauth.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		logger.Warn().Err(err).Msg("JWT provider not available, admin routes disabled")
	}

	deps := &transporthttp.Deps{
		Conduit:     conduitClient,
		Chat:        slackClient,
		Store:       store,
		JWTProvider: jwtProvider,
		Metrics:     m,
		Logger:      logger,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.AppPort).Str("env", cfg.AppEnv).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}
