package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"nova-xfinity/internal/app"
	"nova-xfinity/internal/infra/config"
	applog "nova-xfinity/internal/infra/log"
	"nova-xfinity/internal/infra/metrics"
	"nova-xfinity/internal/usecase/quota"
	"nova-xfinity/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, cfg.LogFormat)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	store, closeStore, err := app.OpenStorage(ctx, cfg, applog.Component(logger, "storage"))
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: storage unavailable")
	}
	defer closeStore()

	rdb, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: redis unavailable")
	}
	if rdb != nil {
		defer rdb.Close()
	} else {
		logger.Warn().Msg("scheduler: REDIS_ADDR is not set, alert deduplication lasts only for this process")
	}
	dedup, _ := app.Caches(rdb, cfg.Redis.SessionTTL)

	alertQueue, closeQueue, err := app.OpenAlertQueue(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: alert queue unavailable")
	}
	defer closeQueue()

	quotaService := quota.NewService(store, store, store, applog.Component(logger, "quota"))
	scheduler := schedule.NewService(quotaService, alertQueue, dedup, store, applog.Component(logger, "scheduler"), cfg.Quota.WarningPercent)

	logger.Info().
		Dur("interval", cfg.Quota.CheckInterval).
		Int("warn_percent", cfg.Quota.WarningPercent).
		Msg("scheduler: started")
	scheduler.Run(ctx, cfg.Quota.CheckInterval)
	logger.Info().Msg("scheduler: stopped")
}
