package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prescripto/booking/config"
	"github.com/prescripto/booking/internal/cache"
	"github.com/prescripto/booking/internal/domain"
	"github.com/prescripto/booking/internal/email"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/prescripto/booking/internal/logger"
	"github.com/prescripto/booking/internal/repository"
	"github.com/prescripto/booking/internal/service/reconcile"
	zlog "github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer stores.Close(context.Background())

	lockTTL := time.Duration(cfg.Booking.SlotLockTTLSeconds) * time.Second
	reconcileOpts := []reconcile.ReconcileServiceOption{}
	if cfg.Redis.Addr != "" {
		// The sweep must share the API's lock store; an in-process lock would not
		// see bookings running in another process.
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.DoctorsCacheTTLSeconds)*time.Second)
		defer redisCache.Close()
		reconcileOpts = append(reconcileOpts,
			reconcile.WithSlotLocker(redisCache, lockTTL),
			reconcile.WithDoctorsCache(redisCache),
		)
	}
	if !stores.AtomicBooking {
		reconcileOpts = append(reconcileOpts, reconcile.RequireSlotLock())
	}
	reconcileService := reconcile.NewReconcileService(stores.Doctors, stores.Appointments, log, reconcileOpts...)

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
		defer consumer.Close()

		emailSender := email.NewSender(cfg.SMTP, log)

		go func() {
			if err := consumer.Consume(ctx, emailSender.Send); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("consumer stopped")
			}
		}()
	}

	sweepTicker := time.NewTicker(time.Duration(cfg.Worker.ReconcileIntervalMinutes) * time.Minute)
	defer sweepTicker.Stop()
	sweeps := sweepTicker.C
	if !stores.AtomicBooking && cfg.Redis.Addr == "" {
		log.Warn().Str("driver", cfg.Database.Driver).Msg("reconciliation disabled: this database needs redis for shared slot locks")
		sweeps = nil
	}

	log.Info().Int("interval_minutes", cfg.Worker.ReconcileIntervalMinutes).Msg("worker started")

	for {
		select {
		case <-sweeps:
			report, err := reconcileService.Run(ctx)
			if err != nil {
				log.Error().Err(domain.Cause(err)).Msg("reconciliation failed")
				continue
			}
			if report.Removed > 0 {
				log.Info().Int("removed", report.Removed).Msg("phantom slots cleaned up")
			}
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return
		}
	}
}
