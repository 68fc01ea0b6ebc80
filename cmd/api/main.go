package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"nova-xfinity/internal/adapters/httpapi"
	"nova-xfinity/internal/adapters/ranker"
	"nova-xfinity/internal/app"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/config"
	httpinfra "nova-xfinity/internal/infra/http"
	applog "nova-xfinity/internal/infra/log"
	"nova-xfinity/internal/infra/metrics"
	filesettings "nova-xfinity/internal/infra/settings"
	"nova-xfinity/internal/usecase/assistant"
	"nova-xfinity/internal/usecase/feedback"
	"nova-xfinity/internal/usecase/quota"
	"nova-xfinity/internal/usecase/settings"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogFormat)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("api: JWT_SECRET is not set")
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStorage(ctx, cfg, applog.Component(logger, "storage"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage unavailable")
	}
	defer closeStore()

	rdb, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis unavailable")
	}
	if rdb == nil {
		logger.Warn().Msg("api: REDIS_ADDR is not set, assistant sessions are kept in memory")
	} else {
		defer rdb.Close()
	}
	_, sessions := app.Caches(rdb, cfg.Redis.SessionTTL)

	settingsService, err := settings.NewService(ctx, filesettings.NewFileStore(cfg.SettingsFile), providerKeys(cfg), applog.Component(logger, "settings"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to load settings")
	}

	quotaService := quota.NewService(store, store, store, applog.Component(logger, "quota"))
	feedbackService := feedback.NewService(store, ranker.NewSimple(), store, applog.Component(logger, "feedback"))
	assistantService := assistant.NewService(sessions, quotaService, store, applog.Component(logger, "assistant"))

	srv := httpinfra.NewServer(applog.Component(logger, "http"), cfg.HTTP.RequestTimeout)
	httpapi.NewHandler(feedbackService, quotaService, assistantService, settingsService, applog.Component(logger, "api")).
		WithFeedbackDefaults(cfg.Feedback.WindowDays, cfg.Feedback.MinRating).
		Routes(srv.Router, cfg.Auth.JWTSecret)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(":" + strconv.Itoa(cfg.HTTP.Port))
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api: server stopped")
		}
	}

	logger.Info().Msg("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("api: graceful shutdown failed")
	}
}

// providerKeys maps configured API keys to providers; empty keys are skipped.
func providerKeys(cfg config.AppConfig) map[domain.Provider]string {
	out := make(map[domain.Provider]string)
	for name, key := range cfg.APIKeys() {
		if key == "" {
			continue
		}
		p, err := domain.ParseProvider(name)
		if err != nil {
			continue
		}
		out[p] = key
	}
	return out
}
