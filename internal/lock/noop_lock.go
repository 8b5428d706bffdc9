package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoopLocker: режим без защиты от конкуренции (LOCK_MODE=disabled).
// Только для dev/test: корректность держится на проверке доступности в транзакции,
// но лишняя работа под конкуренцией не отсекается.
type NoopLocker struct {
	log *zap.Logger
}

func NewNoopLocker(log *zap.Logger) *NoopLocker {
	log.Warn("distributed lock disabled: running WITHOUT concurrency protection")
	return &NoopLocker{log: log}
}

func (l *NoopLocker) Acquire(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.log.Warn("lock bypassed (degraded mode)", zap.String("key", key))
	return "noop-" + uuid.NewString(), true, nil
}

func (l *NoopLocker) Release(context.Context, string, string) error { return nil }
