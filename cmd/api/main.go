package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fazecat/smarttrader/Internal/handlers"
	"github.com/fazecat/smarttrader/Internal/utils/config"
	"github.com/fazecat/smarttrader/Internal/utils/logger"
	"github.com/fazecat/smarttrader/cmd/api/internal"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		boot := logger.New(logger.Config{Level: "info", Pretty: true})
		boot.Fatal().Err(err).Msg("loading config")
	}
	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := handlers.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring application")
	}
	defer app.Close()

	jwtManager, err := internal.NewJWTManager(cfg.Secrets.JWTSecret, cfg.Server.TokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("JWT manager")
	}
	if cfg.Secrets.APIPassword == "" {
		log.Warn().Msg("API_PASSWORD not set; token issuance disabled")
	}

	apiServer := &internal.API{
		Service:        app.Service,
		JWT:            jwtManager,
		DB:             app.DB,
		Password:       cfg.Secrets.APIPassword,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log.With().Str("component", "api").Logger(),
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loopDone := app.Start(ctx)
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting API server")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server stopped")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("screening loop stopped")
	}
}
