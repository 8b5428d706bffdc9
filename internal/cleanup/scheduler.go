package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const refundReportInterval = 15 * time.Minute

type Scheduler struct {
	cleanup  *ExpiryService
	interval time.Duration
	log      *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(cleanup *ExpiryService, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		cleanup:  cleanup,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start запускает планировщик задач
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting expiry scheduler", zap.Duration("interval", s.interval))

	s.wg.Add(2)
	go s.runExpireHolds(ctx)
	go s.runRefundReport(ctx)
}

// Stop останавливает планировщик и ждёт завершения текущих проходов
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.log.Info("stopping expiry scheduler")
		close(s.stopCh)
	})
	s.wg.Wait()
}

func (s *Scheduler) runExpireHolds(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Выполняем сразу при старте
	if _, err := s.cleanup.ExpireHolds(ctx); err != nil {
		s.log.Error("initial expire holds failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if _, err := s.cleanup.ExpireHolds(ctx); err != nil {
				s.log.Error("expire holds failed", zap.Error(err))
			}
		case <-s.stopCh:
			s.log.Info("expire holds stopped")
			return
		case <-ctx.Done():
			s.log.Info("expire holds cancelled")
			return
		}
	}
}

func (s *Scheduler) runRefundReport(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(refundReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.cleanup.ReportPendingRefunds(ctx); err != nil {
				s.log.Error("refund report failed", zap.Error(err))
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunOnceNow выполняет полную очистку немедленно
func (s *Scheduler) RunOnceNow(ctx context.Context) error {
	return s.cleanup.RunFullCleanup(ctx)
}
