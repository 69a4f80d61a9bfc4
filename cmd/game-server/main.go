package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"pong-server/internal/config"
	"pong-server/internal/logging"
	"pong-server/internal/notify"
	"pong-server/internal/session"
	"pong-server/internal/ws"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	notifier := notify.New(cfg.Server)
	manager := session.NewManager(notifier, session.Config{
		WinScore:         cfg.Game.WinScore,
		TickInterval:     cfg.Game.TickInterval,
		CountdownSeconds: cfg.Game.CountdownSeconds,
		AbandonTimeout:   cfg.Game.AbandonTimeout,
		ReconnectGrace:   cfg.Game.ReconnectGrace,
	})
	wsServer := ws.NewServer(manager, cfg.Game)

	r := newRouter(manager, wsServer, cfg.Server)
	logRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	log.Info().Str("addr", cfg.Server.HTTPAddr).Msg("http listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	// Close player connections first so peers see a clean going-away
	// before the listener drops.
	manager.ForceCleanup()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
