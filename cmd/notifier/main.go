package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"nova-xfinity/internal/adapters/notifier"
	"nova-xfinity/internal/app"
	"nova-xfinity/internal/domain"
	"nova-xfinity/internal/infra/config"
	applog "nova-xfinity/internal/infra/log"
	"nova-xfinity/internal/infra/metrics"
	"nova-xfinity/internal/infra/queue"
	"nova-xfinity/internal/usecase/alerts"
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
		logger.Fatal().Err(err).Msg("notifier: storage unavailable")
	}
	defer closeStore()

	rdb, err := app.OpenRedis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: redis unavailable")
	}
	if rdb != nil {
		defer rdb.Close()
	}

	alertQueue, closeQueue, err := app.OpenAlertQueue(cfg, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: alert queue unavailable")
	}
	defer closeQueue()

	// jobs left in the processing list by a crashed worker go back to the queue
	if rq, ok := alertQueue.(*queue.RedisAlertQueue); ok {
		requeueCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		moved, err := rq.Requeue(requeueCtx)
		cancel()
		if err != nil {
			logger.Error().Err(err).Msg("notifier: requeue of in-flight jobs failed")
		} else if moved > 0 {
			logger.Info().Int("jobs", moved).Msg("notifier: requeued in-flight jobs")
		}
	}

	var sink domain.Notifier
	if cfg.Telegram.Token == "" {
		logger.Warn().Msg("notifier: TG_BOT_TOKEN is not set, alerts are only logged")
		sink = notifier.NewLog(applog.Component(logger, "alerts"))
	} else {
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: failed to create bot")
		}
		tg, err := notifier.NewTelegram(botAPI, cfg.Telegram.AlertChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("notifier: invalid telegram settings")
		}
		sink = tg
	}

	worker := alerts.NewWorker(alertQueue, store, sink, store, applog.Component(logger, "notifier"))

	logger.Info().Msg("notifier: consuming alert queue")
	worker.Run(ctx)
	logger.Info().Msg("notifier: stopped")
}
