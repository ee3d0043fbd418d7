package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prescripto/booking/config"
	"github.com/prescripto/booking/internal/cache"
	"github.com/prescripto/booking/internal/kafka"
	"github.com/prescripto/booking/internal/logger"
	"github.com/prescripto/booking/internal/payment"
	"github.com/prescripto/booking/internal/repository"
	"github.com/prescripto/booking/internal/service/booking"
	"github.com/prescripto/booking/internal/service/doctors"
	"github.com/prescripto/booking/internal/service/lifecycle"
	"github.com/prescripto/booking/internal/service/reconcile"
	"github.com/rs/zerolog"
)

type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	stores *repository.Stores
	redis  *cache.RedisCache
	kafka  *kafka.Producer

	booking   *booking.BookingService
	lifecycle *lifecycle.LifecycleService
	doctors   *doctors.DoctorService
	reconcile *reconcile.ReconcileService
}

// slotLocker is satisfied by both the redis cache and the in-process locker.
type slotLocker interface {
	booking.SlotLocker
	lifecycle.SlotLocker
	reconcile.SlotLocker
}

// newApp wires the services. serving is true when bookings run in this
// process, so an in-process lock is shared with the sweep.
func newApp(ctx context.Context, configPath string, serving bool) (*app, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	stores, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Database.Driver, err)
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("storage ready")

	a := &app{cfg: cfg, log: log, stores: stores}
	lockTTL := time.Duration(cfg.Booking.SlotLockTTLSeconds) * time.Second

	var locker slotLocker = cache.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.DoctorsCacheTTLSeconds)*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable, using in-process slot locks")
			_ = redisCache.Close()
		} else {
			a.redis = redisCache
			locker = redisCache
		}
	}

	bookingOpts := []booking.BookingServiceOption{booking.WithSlotLocker(locker, lockTTL)}
	lifecycleOpts := []lifecycle.LifecycleServiceOption{lifecycle.WithSlotLocker(locker, lockTTL)}
	reconcileOpts := []reconcile.ReconcileServiceOption{}
	if serving || a.redis != nil {
		reconcileOpts = append(reconcileOpts, reconcile.WithSlotLocker(locker, lockTTL))
	}
	if !stores.AtomicBooking {
		reconcileOpts = append(reconcileOpts, reconcile.RequireSlotLock())
	}
	var doctorCache doctors.DoctorCache
	if a.redis != nil {
		bookingOpts = append(bookingOpts, booking.WithDoctorsCache(a.redis))
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithDoctorsCache(a.redis))
		reconcileOpts = append(reconcileOpts, reconcile.WithDoctorsCache(a.redis))
		doctorCache = a.redis
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.AppointmentsTopic != "" {
		a.kafka = kafka.NewProducer(cfg.Kafka.Brokers, log)
		if err := a.kafka.CheckConnection(ctx); err != nil {
			log.Warn().Err(err).Msg("kafka unreachable, events will be retried per publish")
		}
		bookingOpts = append(bookingOpts,
			booking.WithProducer(a.kafka, cfg.Kafka.AppointmentsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
		lifecycleOpts = append(lifecycleOpts,
			lifecycle.WithProducer(a.kafka, cfg.Kafka.AppointmentsTopic),
			lifecycle.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	if cfg.Payment.KeyID != "" {
		lifecycleOpts = append(lifecycleOpts, lifecycle.WithPaymentGateway(
			payment.NewRazorpay(cfg.Payment.KeyID, cfg.Payment.KeySecret),
			cfg.Payment.Currency,
		))
	}

	a.booking = booking.NewBookingService(stores.Doctors, stores.Patients, stores.Appointments, log, bookingOpts...)
	a.lifecycle = lifecycle.NewLifecycleService(stores.Doctors, stores.Appointments, log, lifecycleOpts...)
	a.reconcile = reconcile.NewReconcileService(stores.Doctors, stores.Appointments, log, reconcileOpts...)
	a.doctors = doctors.NewDoctorService(stores.Doctors, stores.Patients, stores.Appointments, doctorCache, log)
	return a, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close kafka producer")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if err := a.stores.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("close storage")
	}
}
