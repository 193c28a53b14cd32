// File: cmd/scanner/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ticketgate/internal/application"
	"ticketgate/internal/config"
	"ticketgate/internal/domain/ports/adapter"
	"ticketgate/internal/infra/camera"
	"ticketgate/internal/infra/i18n"
	"ticketgate/internal/infra/logging"
	"ticketgate/internal/infra/metrics"
	"ticketgate/internal/infra/presentation"
	"ticketgate/internal/infra/qr"
	"ticketgate/internal/infra/sched"
	"ticketgate/internal/infra/telegram"
	"ticketgate/internal/infra/web"
	"ticketgate/internal/infra/worker"
	"ticketgate/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (unredacted logs, console output)")
	station := flag.String("station", "", "station name shown in staff notifications (default: hostname)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Store, codec, use cases ----
	st, err := application.NewStation(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("station")
	}
	defer st.Close()

	// ---- Frame source ----
	var (
		source adapter.FrameSource
		push   *camera.PushSource
	)
	switch strings.ToLower(cfg.Scanner.Source) {
	case "dir":
		source = camera.NewDirSource(cfg.Scanner.Dir, logger)
	default:
		push = camera.NewPushSource(logger)
		source = push
	}

	// ---- Presentation ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Presentation.Language)
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}
	pool := worker.NewPool(cfg.Telegram.Workers, logger)
	pool.Start(ctx)
	defer pool.Stop()

	sinks := presentation.Fanout{presentation.NewLogSink(logger, cfg.Runtime.Dev)}
	if cfg.Presentation.Terminal {
		sinks = append(sinks, presentation.NewTerminalSink(os.Stdout, tr))
	}
	if sink := telegramSink(cfg, tr, stationName(*station), logger); sink != nil {
		sinks = append(sinks, presentation.NewAsyncSink(sink, pool, logger))
	}

	// ---- Scan controller ----
	ctrl := usecase.NewScanController(source, qr.NewDecoder(), st.RedeemUC, sinks, usecase.ScanControllerConfig{
		FrameInterval: cfg.Scanner.FrameInterval,
		FacingMode:    cfg.Scanner.FacingMode,
	}, logger)

	// ---- Reconciler ----
	if st.ReconcileUC != nil && cfg.Store.ReconcileInterval > 0 {
		rec := sched.NewReconciler(st.ReconcileUC, st.Locker, cfg.Store.ReconcileInterval, logger)
		go rec.Start(ctx)
	}

	// ---- HTTP API ----
	var auth *web.AuthManager
	if cfg.HTTP.JWTSecret != "" {
		if auth, err = web.NewAuthManager(cfg.HTTP.JWTSecret); err != nil {
			logger.Fatal().Err(err).Msg("auth")
		}
	} else {
		logger.Warn().Msg("http.jwt_secret is empty; /api/v1 is disabled")
	}
	var frames web.FrameSubmitter
	if push != nil {
		frames = push
	}
	api := web.NewServer(ctrl, frames, st.IssueUC, st.StatusUC, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("source", cfg.Scanner.Source).Msg("scanner api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	if err := ctrl.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("scan session did not conclude before shutdown")
	}
	if push != nil {
		push.Close()
	}
}

func telegramSink(cfg *config.Config, tr *i18n.Translator, station string, logger *zerolog.Logger) adapter.PresentationSink {
	if len(cfg.Telegram.ChatIDs) == 0 {
		return nil
	}
	var bot adapter.TelegramMessenger
	if cfg.Telegram.Token == "" || cfg.Runtime.Dev {
		bot = telegram.NewNoopBot(logger)
	} else {
		rb, err := telegram.NewRealBot(cfg.Telegram.Token)
		if err != nil {
			logger.Error().Err(err).Msg("telegram unavailable; staff notifications disabled")
			return nil
		}
		logger.Info().Str("bot", rb.Username()).Msg("telegram notifications enabled")
		bot = rb
	}
	return presentation.NewTelegramSink(bot, cfg.Telegram.ChatIDs, tr, station, logger)
}

func stationName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "ticketgate"
}
