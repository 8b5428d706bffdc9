package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"booking-service/config"
	"booking-service/internal/cleanup"
	"booking-service/internal/lock"
	"booking-service/internal/repository"
	"booking-service/internal/service"
	"booking-service/pkg/database"
	"booking-service/pkg/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Отдельный свипер для развёртываний, где сервис запущен с SWEEPER_ENABLED=false.
// Переход в expired не берёт распределённую блокировку, поэтому хватает NoopLocker.
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
	bookingSvc := service.NewBookingService(repos, lock.NewNoopLocker(log), nil, service.Options{
		HoldWindow:      cfg.Booking.HoldWindow,
		ReferencePrefix: cfg.Booking.ReferencePrefix,
	}, log)
	expirySvc := cleanup.NewExpiryService(repos.Reservations, repos.Refunds, bookingSvc, log)

	ctx := context.Background()

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/sweeper/main.go [expire|refunds|once|run]")
		fmt.Println("  expire  - expire stale holds once")
		fmt.Println("  refunds - report pending refund obligations")
		fmt.Println("  once    - run full cleanup once")
		fmt.Println("  run     - run scheduler until SIGINT/SIGTERM")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "expire":
		n, err := expirySvc.ExpireHolds(ctx)
		if err != nil {
			log.Fatal("failed to expire holds", zap.Error(err))
		}
		log.Info("expire holds done", zap.Int("expired", n))
	case "refunds":
		if _, err := expirySvc.ReportPendingRefunds(ctx); err != nil {
			log.Fatal("failed to report pending refunds", zap.Error(err))
		}
	case "run":
		scheduler := cleanup.NewScheduler(expirySvc, cfg.Sweeper.Interval, log)
		runCtx, cancel := context.WithCancel(ctx)
		scheduler.Start(runCtx)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		scheduler.Stop()
		cancel()
	case "once":
		fallthrough
	default:
		if err := expirySvc.RunFullCleanup(ctx); err != nil {
			log.Fatal("failed to run full cleanup", zap.Error(err))
		}
	}

	log.Info("sweeper completed successfully")
}
