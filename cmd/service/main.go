package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"booking-service/config"
	"booking-service/internal/cleanup"
	"booking-service/internal/consumer"
	"booking-service/internal/lock"
	"booking-service/internal/producer"
	"booking-service/internal/repository"
	"booking-service/internal/router"
	"booking-service/internal/service"
	"booking-service/pkg/database"
	"booking-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}

	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)

	repos := repository.New(db)

	var locker lock.Locker
	switch cfg.Lock.Mode {
	case config.LockModeDisabled:
		locker = lock.NewNoopLocker(log)
	default:
		rdb, err := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("failed to create redis client", zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, log)
	}

	var events service.EventBus
	if cfg.Kafka.Enabled() {
		prod := producer.NewBookingEventProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer prod.Close()
		events = prod
		log.Info("Kafka events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	} else {
		log.Info("Kafka events disabled")
	}

	bookingSvc := service.NewBookingService(repos, locker, events, service.Options{
		LockLease:       cfg.Lock.Lease,
		HoldWindow:      cfg.Booking.HoldWindow,
		ReferencePrefix: cfg.Booking.ReferencePrefix,
	}, log)

	var scheduler *cleanup.Scheduler
	// общий контекст фоновых задач: свипер и потребитель платежей
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if cfg.Sweeper.Enabled {
		expirySvc := cleanup.NewExpiryService(repos.Reservations, repos.Refunds, bookingSvc, log)
		scheduler = cleanup.NewScheduler(expirySvc, cfg.Sweeper.Interval, log)
		scheduler.Start(sweepCtx)
	}

	if cfg.Kafka.PaymentsEnabled() {
		cons := consumer.NewKafkaPaymentConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.PaymentsTopic, bookingSvc, log)
		defer cons.Close()
		go func() {
			if err := cons.Run(sweepCtx); err != nil {
				log.Error("payment consumer stopped", zap.Error(err))
			}
		}()
	}

	if !isDev {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           router.Router(bookingSvc, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("Starting HTTP server", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-quit
	log.Info("Shutting down HTTP server...")

	// Останавливаем планировщик
	if scheduler != nil {
		scheduler.Stop()
	}
	sweepCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	log.Info("HTTP server stopped gracefully")
}
