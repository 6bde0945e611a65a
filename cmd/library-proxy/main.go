package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/granth-library/pkg/bookcache"
	"github.com/Sternrassler/granth-library/pkg/config"
	"github.com/Sternrassler/granth-library/pkg/logging"
	"github.com/Sternrassler/granth-library/pkg/ratelimit"
	"github.com/Sternrassler/granth-library/pkg/recent"
	"github.com/Sternrassler/granth-library/pkg/related"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(".env.local", ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger(logging.ComponentProxy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cfg.Cache.OpenStore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Cache.Backend).Msg("Failed to open cache store")
	}
	defer closeStore()

	limiter := ratelimit.NewTracker(store, logging.NewLogger(logging.ComponentCatalog))
	source, closeSource, err := cfg.Catalog.OpenSource(ctx, limiter)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Catalog.Backend).Msg("Failed to open catalog")
	}
	defer closeSource()

	cache := bookcache.NewManager(store, cfg.Cache.Manager(), logging.NewLogger(logging.ComponentCache))
	srv := &server{
		cache:   cache,
		source:  source,
		related: related.NewService(source, cache, cfg.Catalog.RelatedLimit, logging.NewLogger(logging.ComponentRelated)),
		recent:  recent.NewList(store, 0, logging.NewLogger(logging.ComponentRecent)),
		limiter: limiter,
		logger:  logger,
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", cfg.ListenAddr).
		Str("cache_backend", cfg.Cache.Backend).
		Str("catalog_backend", cfg.Catalog.Backend).
		Msg("Starting library proxy")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Library proxy stopped")
}
